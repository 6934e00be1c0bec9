package screening

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// honorifics are title tokens stripped wherever they appear in a name.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "mx": true,
	"dr": true, "prof": true, "professor": true,
	"sir": true, "dame": true, "lord": true, "lady": true,
	"rev": true, "fr": true, "hon": true,
	"sheikh": true, "shaikh": true, "sheik": true,
	"haji": true, "hajji": true, "hajj": true,
	"sayyid": true, "sayed": true, "syed": true,
	"eng": true, "engr": true, "capt": true, "col": true, "gen": true,
	// Generational and professional suffixes travel with person names
	// and are stripped wherever they appear.
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
	"phd": true, "md": true, "esq": true,
}

// legalSuffixes are corporate designators stripped only from the tail of a
// name, so that e.g. "ltd trading co" keeps its interior tokens.
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true,
	"corp": true, "corporation": true,
	"ltd": true, "limited": true,
	"llc": true, "llp": true, "lp": true, "plc": true,
	"co": true, "company": true,
	"gmbh": true, "ag": true, "kg": true,
	"sa": true, "sarl": true, "sas": true,
	"bv": true, "nv": true,
	"ab": true, "as": true, "oy": true,
	"spa": true, "srl": true,
	"pte": true, "pty": true, "bhd": true, "sdn": true,
	"kk": true, "pjsc": true, "jsc": true, "ooo": true, "oao": true,
}

// diacriticFolder strips combining marks after canonical decomposition, so
// accented letters compare equal to their base form.
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a raw name for comparison: folds diacritics,
// lower-cases, replaces punctuation with spaces, strips honorific tokens
// and trailing legal-entity suffixes, and collapses whitespace. It is pure
// and total; unusable input yields the empty string.
func Normalize(raw string) string {
	folded, _, err := transform.String(diacriticFolder, raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())

	kept := tokens[:0]
	for _, tok := range tokens {
		if honorifics[tok] {
			continue
		}
		kept = append(kept, tok)
	}

	// Trailing legal designators only; never strip the whole name.
	for len(kept) > 1 && legalSuffixes[kept[len(kept)-1]] {
		kept = kept[:len(kept)-1]
	}

	return strings.Join(kept, " ")
}
