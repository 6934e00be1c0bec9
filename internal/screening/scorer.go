package screening

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// SignalScores carries the independent similarity signals for one string
// pair, each in [0,100].
type SignalScores struct {
	Levenshtein    float64 `json:"levenshtein"`
	Phonetic       float64 `json:"phonetic"`
	Ratio          float64 `json:"ratio"`
	PartialRatio   float64 `json:"partial_ratio"`
	TokenSortRatio float64 `json:"token_sort_ratio"`
	TokenSetRatio  float64 `json:"token_set_ratio"`
}

// AsMap exposes the signals keyed by algorithm name for explainability.
func (s SignalScores) AsMap() map[string]float64 {
	return map[string]float64{
		"levenshtein":      s.Levenshtein,
		"phonetic":         s.Phonetic,
		"ratio":            s.Ratio,
		"partial_ratio":    s.PartialRatio,
		"token_sort_ratio": s.TokenSortRatio,
		"token_set_ratio":  s.TokenSetRatio,
	}
}

// Phonetic agreement scores: both codes agree, exactly one agrees, none.
const (
	phoneticBothAgree = 95.0
	phoneticOneAgrees = 75.0
)

// Score computes all similarity signals between two normalized strings.
// Empty input on either side yields all-zero scores. A failure inside one
// sub-algorithm degrades that signal to 0 and never aborts the comparison.
func Score(a, b string) SignalScores {
	if a == "" || b == "" {
		return SignalScores{}
	}

	return SignalScores{
		Levenshtein:    guarded(levenshteinScore, a, b),
		Phonetic:       guarded(phoneticScore, a, b),
		Ratio:          guarded(ratio, a, b),
		PartialRatio:   guarded(partialRatio, a, b),
		TokenSortRatio: guarded(tokenSortRatio, a, b),
		TokenSetRatio:  guarded(tokenSetRatio, a, b),
	}
}

// guarded runs one sub-algorithm and converts any panic into a zero score
// for that signal only.
func guarded(fn func(a, b string) float64, a, b string) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
		}
	}()
	score = fn(a, b)
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	return score
}

// levenshteinScore scales edit distance by the longer input length.
func levenshteinScore(a, b string) float64 {
	distance := levenshtein.ComputeDistance(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	return (1 - float64(distance)/float64(maxLen)) * 100
}

// phoneticScore compares Soundex and Metaphone codes. Empty codes are
// treated as non-matching.
func phoneticScore(a, b string) float64 {
	agreements := 0
	if sa, sb := soundex(a), soundex(b); sa != "" && sa == sb {
		agreements++
	}
	if ma, mb := metaphone(a), metaphone(b); ma != "" && ma == mb {
		agreements++
	}
	switch agreements {
	case 2:
		return phoneticBothAgree
	case 1:
		return phoneticOneAgrees
	default:
		return 0
	}
}

// ratio is the whole-string similarity: the edit distance scaled by the
// combined length of both inputs.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return float64(total-distance) / float64(total) * 100
}

// partialRatio slides the shorter string across the longer one and keeps
// the best windowed ratio.
func partialRatio(a, b string) float64 {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	if len(shorter) == len(longer) {
		return ratio(string(shorter), string(longer))
	}

	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if score := ratio(string(shorter), window); score > best {
			best = score
		}
	}
	return best
}

// tokenSortRatio compares the token-sorted renditions of both inputs, so
// component order does not matter.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

// tokenSetRatio is tolerant of token subsets: the shared tokens are
// compared against each side's remainder and the best pairing wins.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var shared, onlyA, onlyB []string
	for tok := range setA {
		if setB[tok] {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if !setA[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := 0.0
	if base != "" {
		if score := ratio(base, combinedA); score > best {
			best = score
		}
		if score := ratio(base, combinedB); score > best {
			best = score
		}
	}
	if score := ratio(combinedA, combinedB); score > best {
		best = score
	}
	return best
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// soundex computes the classic four-character Soundex code of a string.
// Non-letter leading input yields an empty code.
func soundex(s string) string {
	s = strings.ToUpper(s)
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	mapping := map[byte]byte{
		'B': '1', 'F': '1', 'P': '1', 'V': '1',
		'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
		'D': '3', 'T': '3',
		'L': '4',
		'M': '5', 'N': '5',
		'R': '6',
	}

	result := []byte{s[start]}
	prev := mapping[s[start]]
	for i := start + 1; i < len(s) && len(result) < 4; i++ {
		c := s[i]
		if c < 'A' || c > 'Z' {
			continue
		}
		code, ok := mapping[c]
		if !ok {
			// Vowels and H/W/Y reset the adjacency rule.
			if c != 'H' && c != 'W' {
				prev = 0
			}
			continue
		}
		if code != prev {
			result = append(result, code)
			prev = code
		}
	}

	for len(result) < 4 {
		result = append(result, '0')
	}
	return string(result)
}

// metaphone computes a simplified Metaphone code: a second, independent
// phonetic signal alongside Soundex.
func metaphone(s string) string {
	s = strings.ToUpper(s)
	var clean []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			clean = append(clean, s[i])
		}
	}
	if len(clean) == 0 {
		return ""
	}
	s = string(clean)

	var result strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				result.WriteByte(c)
			}
		case 'B':
			// Silent terminal B after M, as in "lamb".
			if i == len(s)-1 && i > 0 && s[i-1] == 'M' {
				continue
			}
			result.WriteByte('B')
		case 'C':
			if i+1 < len(s) && s[i+1] == 'H' {
				result.WriteByte('X')
			} else if i+1 < len(s) && (s[i+1] == 'I' || s[i+1] == 'E' || s[i+1] == 'Y') {
				result.WriteByte('S')
			} else {
				result.WriteByte('K')
			}
		case 'D':
			if i+2 < len(s) && s[i+1] == 'G' && (s[i+2] == 'E' || s[i+2] == 'Y' || s[i+2] == 'I') {
				result.WriteByte('J')
			} else {
				result.WriteByte('T')
			}
		case 'F', 'J', 'L', 'M', 'N', 'R':
			result.WriteByte(c)
		case 'G':
			if i+1 < len(s) && (s[i+1] == 'H' || s[i+1] == 'N') {
				continue
			}
			result.WriteByte('K')
		case 'H':
			if i > 0 && isVowelByte(s[i-1]) && (i+1 >= len(s) || !isVowelByte(s[i+1])) {
				continue
			}
			if i > 0 && (s[i-1] == 'C' || s[i-1] == 'S' || s[i-1] == 'P' || s[i-1] == 'T' || s[i-1] == 'G') {
				continue
			}
			result.WriteByte('H')
		case 'K':
			if i > 0 && s[i-1] == 'C' {
				continue
			}
			result.WriteByte('K')
		case 'P':
			if i+1 < len(s) && s[i+1] == 'H' {
				result.WriteByte('F')
			} else {
				result.WriteByte('P')
			}
		case 'Q':
			result.WriteByte('K')
		case 'S':
			if i+1 < len(s) && s[i+1] == 'H' {
				result.WriteByte('X')
			} else {
				result.WriteByte('S')
			}
		case 'T':
			if i+1 < len(s) && s[i+1] == 'H' {
				result.WriteByte('0')
			} else {
				result.WriteByte('T')
			}
		case 'V':
			result.WriteByte('F')
		case 'W', 'Y':
			if i+1 < len(s) && isVowelByte(s[i+1]) {
				result.WriteByte(c)
			}
		case 'X':
			result.WriteString("KS")
		case 'Z':
			result.WriteByte('S')
		}
	}
	return result.String()
}

func isVowelByte(c byte) bool {
	return c == 'A' || c == 'E' || c == 'I' || c == 'O' || c == 'U'
}
