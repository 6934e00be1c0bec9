package screening

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityType declares what kind of party a submitted name refers to.
type EntityType string

const (
	EntityTypePerson       EntityType = "Person"
	EntityTypeCompany      EntityType = "Company"
	EntityTypeOrganization EntityType = "Organization"
)

// NameQuery is one submitted entity to screen. Immutable once submitted.
type NameQuery struct {
	RowNumber    int        `json:"row_number"`
	Name         string     `json:"name"`
	Type         EntityType `json:"type"`
	DateOfBirth  string     `json:"date_of_birth,omitempty"`
	PlaceOfBirth string     `json:"place_of_birth,omitempty"`
	Nationality  string     `json:"nationality,omitempty"`
	Country      string     `json:"country,omitempty"`
	ReferenceID  string     `json:"reference_id,omitempty"`
}

// CandidateEntity is a watchlist record returned by a candidate source.
// Read-only to the matching engine.
type CandidateEntity struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Aliases   []string `json:"aliases,omitempty"`
	Schema    string   `json:"schema"`
	Countries []string `json:"countries,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Datasets  []string `json:"datasets,omitempty"`
	// Relevance is the source's own relevance score in [0,1].
	Relevance float64 `json:"relevance"`
}

// MatchType classifies the strength of a name match.
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypePhonetic MatchType = "phonetic"
	MatchTypeFuzzy    MatchType = "fuzzy"
	MatchTypeNoMatch  MatchType = "no_match"
	MatchTypeError    MatchType = "error"
)

// MatchResult is the outcome of classifying one (query, candidate) pair.
// Created once, never mutated.
type MatchResult struct {
	// Score is the combined confidence in [0,100]. Exactly 100 only for
	// exact normalized equality.
	Score     float64   `json:"score"`
	MatchType MatchType `json:"match_type"`
	// Query and Target are the normalized strings of the best-scoring
	// variant pair.
	Query  string `json:"query"`
	Target string `json:"target"`
	// AlgorithmScores holds the per-algorithm sub-scores of the winning
	// pair for explainability.
	AlgorithmScores map[string]float64 `json:"algorithm_scores"`
}

// RiskLevel is a discretized risk label derived from the candidate
// source's relevance score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// CandidateMatch couples a candidate with the engine's match assessment.
type CandidateMatch struct {
	Candidate CandidateEntity `json:"candidate"`
	Match     MatchResult     `json:"match"`
	RiskLevel RiskLevel       `json:"risk_level"`
	// RankScore is the combined ranking key used to order candidates
	// within a screening record.
	RankScore float64 `json:"rank_score"`
}

// RecordStatus reports how screening one entity ended.
type RecordStatus string

const (
	RecordStatusSuccess  RecordStatus = "success"
	RecordStatusAPIError RecordStatus = "api_error"
	RecordStatusTimeout  RecordStatus = "timeout"
	RecordStatusError    RecordStatus = "error"
)

// ScreeningRecord is the per-entity screening outcome. Matches are ordered
// descending by RankScore, ties broken by the candidate's relevance.
type ScreeningRecord struct {
	ID          uuid.UUID        `json:"id"`
	RowNumber   int              `json:"row_number"`
	ReferenceID string           `json:"reference_id,omitempty"`
	EntityName  string           `json:"entity_name"`
	EntityType  EntityType       `json:"entity_type"`
	Status      RecordStatus     `json:"status"`
	Matches     []CandidateMatch `json:"matches"`
	// HighestRisk points at the top-ranked match, if any.
	HighestRisk *CandidateMatch `json:"highest_risk_match,omitempty"`
	Error       string          `json:"error,omitempty"`
	ScreenedAt  time.Time       `json:"screened_at"`
}

// BatchStatus reports the overall state of a screening job.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// RecordError describes one entity whose screening failed.
type RecordError struct {
	RowNumber  int          `json:"row_number"`
	EntityName string       `json:"entity_name"`
	Status     RecordStatus `json:"status"`
	Message    string       `json:"message"`
}

// BatchJobResult aggregates all per-entity outcomes of one screening job.
// Once Status is completed or failed, ProcessedRecords equals
// SuccessfulRecords+FailedRecords and TotalRecords equals
// len(Results)+len(Errors).
type BatchJobResult struct {
	JobID             uuid.UUID         `json:"job_id"`
	Dataset           string            `json:"dataset"`
	TotalRecords      int               `json:"total_records"`
	ProcessedRecords  int               `json:"processed_records"`
	SuccessfulRecords int               `json:"successful_records"`
	FailedRecords     int               `json:"failed_records"`
	Elapsed           time.Duration     `json:"elapsed"`
	Status            BatchStatus       `json:"status"`
	Results           []ScreeningRecord `json:"results"`
	Errors            []RecordError     `json:"errors"`
}

// SearchFilters narrows a candidate source query.
type SearchFilters struct {
	Schema  string `json:"schema,omitempty"`
	Country string `json:"country,omitempty"`
}

// SearchResponse is the raw candidate payload returned by a source.
type SearchResponse struct {
	Results []CandidateEntity `json:"results"`
	Total   int               `json:"total"`
}

// CandidateSource hands back raw candidate records for a query string.
// Implementations must honor ctx deadlines and report unreachability
// through ValidateConnection. NormalizeEntity converts one wire record
// into the engine's candidate shape, so callers can reuse the mapping on
// records obtained outside Search.
type CandidateSource interface {
	Search(ctx context.Context, dataset, query string, limit int, filters SearchFilters) (*SearchResponse, error)
	NormalizeEntity(raw json.RawMessage) (CandidateEntity, error)
	ValidateConnection(ctx context.Context) error
}

// CandidateCache stores candidate source responses keyed by query. A nil
// cache means every lookup goes to the source.
type CandidateCache interface {
	Get(ctx context.Context, key string) (*SearchResponse, bool)
	Set(ctx context.Context, key string, resp *SearchResponse)
}
