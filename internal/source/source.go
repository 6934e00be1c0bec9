// Package source provides candidate source adapters: clients that return
// raw watchlist candidate records for a query string. Concrete adapters
// are selected at construction time via New.
package source

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/veridex/namescreen/internal/screening"
)

// Kind selects a concrete candidate source implementation.
type Kind string

const (
	KindOpenSanctions Kind = "opensanctions"
)

// Config carries candidate source settings.
type Config struct {
	Kind     Kind   `yaml:"kind" json:"kind"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	// Dataset is the default dataset scope used when a caller passes none.
	Dataset    string `yaml:"dataset" json:"dataset"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// StatusError reports a non-success HTTP status from a candidate source.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("candidate source returned status %d: %s", e.StatusCode, e.Body)
}

// Code returns the HTTP status code; callers classify failures through
// this without depending on the adapter package.
func (e *StatusError) Code() int {
	return e.StatusCode
}

// New constructs the candidate source named by cfg.Kind.
func New(cfg Config, logger *zap.SugaredLogger) (screening.CandidateSource, error) {
	switch cfg.Kind {
	case KindOpenSanctions, "":
		return NewOpenSanctionsClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown candidate source kind: %q", cfg.Kind)
	}
}
