package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "AHMED ALI", "ahmed ali"},
		{"folds diacritics", "José García", "jose garcia"},
		{"strips punctuation", "Al-Rashid, Mohammed.", "al rashid mohammed"},
		{"collapses whitespace", "  John   Smith  ", "john smith"},
		{"strips honorifics", "Dr. John Smith", "john smith"},
		{"strips regional honorifics", "Sheikh Mohammed bin Rashid", "mohammed bin rashid"},
		{"strips personal suffixes", "John Smith Jr", "john smith"},
		{"strips trailing legal suffix", "ACME Holdings, Inc.", "acme holdings"},
		{"strips stacked legal suffixes", "Global Trading Co Ltd", "global trading"},
		{"keeps interior legal tokens", "Co Operative Stores", "co operative stores"},
		{"empty input", "", ""},
		{"garbage input", "!!! --- ???", ""},
		{"numbers survive", "Division 9 Holdings LLC", "division 9 holdings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Dr. José María García-López Jr.",
		"MOHAMMED AL-RASHID",
		"Acme Widgets, Inc.",
		"   ",
		"Åke Lindström",
		"O'Brien & Sons Ltd",
	}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", input)
	}
}

func TestNormalizeNeverStripsWholeLegalName(t *testing.T) {
	// A name that is nothing but a legal designator keeps its last token.
	assert.Equal(t, "ltd", Normalize("Ltd"))
}
