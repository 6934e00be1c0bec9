package screening

import "strings"

// Variants derives the plausible alternate forms of a normalized name:
// the name itself, first+last token only, each single-middle-token
// elision, and the fully reversed token order. The expansion is bounded
// by design; no general permutations are generated.
func Variants(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	tokens := strings.Fields(name)

	seen := make(map[string]bool, 2*len(tokens))
	variants := make([]string, 0, 2*len(tokens))
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	add(name)

	if len(tokens) > 2 {
		add(tokens[0] + " " + tokens[len(tokens)-1])

		// Middle-name elision: drop one interior token at a time.
		for i := 1; i < len(tokens)-1; i++ {
			dropped := make([]string, 0, len(tokens)-1)
			dropped = append(dropped, tokens[:i]...)
			dropped = append(dropped, tokens[i+1:]...)
			add(strings.Join(dropped, " "))
		}
	}

	if len(tokens) >= 2 {
		reversed := make([]string, len(tokens))
		for i, tok := range tokens {
			reversed[len(tokens)-1-i] = tok
		}
		add(strings.Join(reversed, " "))
	}

	return variants
}
