package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreEmptyInputs(t *testing.T) {
	assert.Equal(t, SignalScores{}, Score("", "ahmed ali"))
	assert.Equal(t, SignalScores{}, Score("ahmed ali", ""))
	assert.Equal(t, SignalScores{}, Score("", ""))
}

func TestScoreIdenticalStrings(t *testing.T) {
	s := Score("ahmed ali", "ahmed ali")
	assert.Equal(t, 100.0, s.Levenshtein)
	assert.Equal(t, 100.0, s.Ratio)
	assert.Equal(t, 100.0, s.PartialRatio)
	assert.Equal(t, 100.0, s.TokenSortRatio)
	assert.Equal(t, 100.0, s.TokenSetRatio)
	assert.Equal(t, phoneticBothAgree, s.Phonetic)
}

func TestScorePhoneticVariants(t *testing.T) {
	s := Score("steven", "stephen")
	assert.Equal(t, phoneticBothAgree, s.Phonetic)

	s = Score("smith", "smyth")
	assert.GreaterOrEqual(t, s.Phonetic, phoneticOneAgrees)
}

func TestScoreTokenOrderIndependence(t *testing.T) {
	s := Score("ali ahmed", "ahmed ali")
	assert.Equal(t, 100.0, s.TokenSortRatio)
	assert.Equal(t, 100.0, s.TokenSetRatio)
	assert.Less(t, s.Levenshtein, 100.0)
}

func TestScoreTokenSubsetTolerance(t *testing.T) {
	s := Score("ahmed ali", "ahmed ali mohammed")
	assert.Equal(t, 100.0, s.TokenSetRatio)
	assert.Less(t, s.TokenSortRatio, 100.0)
}

func TestScorePartialRatioSubstring(t *testing.T) {
	s := Score("ahmed", "ahmed ali mohammed")
	assert.Equal(t, 100.0, s.PartialRatio)
}

func TestScoreBounds(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different string"},
		{"ahmed ali", "mohammed al rashid"},
		{"x", "y"},
		{"acme holdings", "acme"},
		{"jean-pierre", "jeanpierre"},
		{"123", "abc"},
	}
	for _, pair := range pairs {
		s := Score(pair[0], pair[1])
		for name, value := range s.AsMap() {
			assert.GreaterOrEqual(t, value, 0.0, "%s for %v", name, pair)
			assert.LessOrEqual(t, value, 100.0, "%s for %v", name, pair)
		}
	}
}

func TestSoundex(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Steven", "S315"},
		{"Stephen", "S315"},
		{"Tymczak", "T522"},
		{"", ""},
		{"123", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, soundex(tt.input), "soundex(%q)", tt.input)
	}
}

func TestMetaphoneAgreement(t *testing.T) {
	assert.Equal(t, metaphone("Steven"), metaphone("Stephen"))
	assert.NotEqual(t, metaphone("Ahmed"), metaphone("Smith"))
	assert.Empty(t, metaphone("!!!"))
}
