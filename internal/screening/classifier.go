package screening

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// Combination weights for the final confidence. The rule is a weighted
// maximum, not a weighted sum: the single strongest signal wins.
// PartialRatio is reported for explainability but carries no weight.
const (
	weightLevenshtein    = 0.3
	weightPhonetic       = 0.2
	weightRatio          = 0.2
	weightTokenSortRatio = 0.15
	weightTokenSetRatio  = 0.15
)

// MatchConfig carries the classification thresholds.
type MatchConfig struct {
	// ExactMatchThreshold applies to the combined confidence.
	ExactMatchThreshold float64 `yaml:"exact_match_threshold" json:"exact_match_threshold"`
	// PhoneticThreshold applies to the phonetic signal specifically.
	PhoneticThreshold float64 `yaml:"phonetic_threshold" json:"phonetic_threshold"`
	// MinScoreThreshold is the fuzzy cutoff on the combined confidence.
	MinScoreThreshold float64 `yaml:"min_score_threshold" json:"min_score_threshold"`
}

// DefaultMatchConfig returns the standard classification thresholds.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		ExactMatchThreshold: 95.0,
		PhoneticThreshold:   80.0,
		MinScoreThreshold:   75.0,
	}
}

// Classifier combines similarity signals into one confidence value and a
// match-type label. It is stateless apart from its thresholds and safe for
// concurrent use.
type Classifier struct {
	cfg    MatchConfig
	logger *zap.SugaredLogger
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg MatchConfig, logger *zap.SugaredLogger) *Classifier {
	return &Classifier{cfg: cfg, logger: logger}
}

// Classify scores a query name against a target name and its aliases,
// enumerating all variant pairs and keeping the best combined confidence.
// It never panics past its boundary; unexpected failures come back as a
// MatchResult of type error with score 0.
func (c *Classifier) Classify(query, target string, aliases []string) (result MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("classification panic recovered",
				"query", query,
				"target", target,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = MatchResult{
				MatchType:       MatchTypeError,
				AlgorithmScores: map[string]float64{},
			}
		}
	}()

	normalizedQuery := Normalize(query)
	normalizedTarget := Normalize(target)

	if normalizedQuery == "" || normalizedTarget == "" {
		return MatchResult{
			MatchType:       MatchTypeNoMatch,
			Query:           normalizedQuery,
			Target:          normalizedTarget,
			AlgorithmScores: map[string]float64{},
		}
	}

	if normalizedQuery == normalizedTarget {
		return MatchResult{
			Score:           100,
			MatchType:       MatchTypeExact,
			Query:           normalizedQuery,
			Target:          normalizedTarget,
			AlgorithmScores: Score(normalizedQuery, normalizedTarget).AsMap(),
		}
	}

	targetVariants := Variants(normalizedTarget)
	for _, alias := range aliases {
		targetVariants = append(targetVariants, Variants(Normalize(alias))...)
	}

	var (
		bestScore   float64
		bestSignals SignalScores
		bestQuery   = normalizedQuery
		bestTarget  = normalizedTarget
	)

	for _, qv := range Variants(normalizedQuery) {
		for _, tv := range targetVariants {
			if qv == "" || tv == "" {
				continue
			}
			signals := Score(qv, tv)
			combined := combine(signals)
			if combined > bestScore {
				bestScore = combined
				bestSignals = signals
				bestQuery = qv
				bestTarget = tv
			}
		}
	}

	return MatchResult{
		Score:           bestScore,
		MatchType:       c.matchType(bestScore, bestSignals.Phonetic),
		Query:           bestQuery,
		Target:          bestTarget,
		AlgorithmScores: bestSignals.AsMap(),
	}
}

// combine applies the weighted-maximum rule to a set of signals.
func combine(s SignalScores) float64 {
	best := s.Levenshtein * weightLevenshtein
	if v := s.Phonetic * weightPhonetic; v > best {
		best = v
	}
	if v := s.Ratio * weightRatio; v > best {
		best = v
	}
	if v := s.TokenSortRatio * weightTokenSortRatio; v > best {
		best = v
	}
	if v := s.TokenSetRatio * weightTokenSetRatio; v > best {
		best = v
	}
	return best
}

func (c *Classifier) matchType(score, phonetic float64) MatchType {
	switch {
	case score >= c.cfg.ExactMatchThreshold:
		return MatchTypeExact
	case phonetic >= c.cfg.PhoneticThreshold:
		return MatchTypePhonetic
	case score >= c.cfg.MinScoreThreshold:
		return MatchTypeFuzzy
	default:
		return MatchTypeNoMatch
	}
}
