package screening

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridex/namescreen/pkg/metrics"
)

// Ranking key weights. Relevance is on a [0,1] scale while the match
// confidence is on a [0,100] scale; the weights keep the source's
// relevance dominant and use confidence as a fine-grained tiebreaker.
// The scale mismatch is deliberate and under review, not an accident to
// normalize away here.
const (
	rankRelevanceWeight  = 0.7
	rankConfidenceWeight = 0.003
)

// Relevance cutoffs for the discretized risk label.
const (
	riskCriticalRelevance = 0.9
	riskHighRelevance     = 0.7
	riskMediumRelevance   = 0.5
)

// Config carries the orchestrator's tunables.
type Config struct {
	Match MatchConfig `yaml:"match" json:"match"`
	// GroupSize bounds how many candidate source calls run in parallel.
	GroupSize int `yaml:"group_size" json:"group_size"`
	// SearchLimit bounds the candidates retrieved per entity.
	SearchLimit int `yaml:"search_limit" json:"search_limit"`
	// CallTimeout is the independent per-entity source call timeout.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`
}

// DefaultConfig returns the standard orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Match:       DefaultMatchConfig(),
		GroupSize:   50,
		SearchLimit: 15,
		CallTimeout: 10 * time.Second,
	}
}

// Service is the screening orchestrator. It carries only configuration
// and collaborators; all mutable state lives in the per-call records, so
// one Service may be shared across concurrent batches.
type Service struct {
	cfg        Config
	source     CandidateSource
	cache      CandidateCache
	classifier *Classifier
	logger     *zap.SugaredLogger
}

// NewService creates a screening service. cache may be nil.
func NewService(cfg Config, source CandidateSource, cache CandidateCache, logger *zap.SugaredLogger) *Service {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultConfig().GroupSize
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultConfig().SearchLimit
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	return &Service{
		cfg:        cfg,
		source:     source,
		cache:      cache,
		classifier: NewClassifier(cfg.Match, logger),
		logger:     logger,
	}
}

// Classifier exposes the service's match classifier for single-pair use.
func (s *Service) Classifier() *Classifier {
	return s.classifier
}

// ScreenBatch screens every submitted entity against the candidate source
// and aggregates the per-entity outcomes. Entities are processed in
// bounded concurrent groups; one entity's failure never aborts its
// siblings. Output ordering follows submission order.
func (s *Service) ScreenBatch(ctx context.Context, entities []NameQuery, dataset string) *BatchJobResult {
	start := time.Now()
	result := &BatchJobResult{
		JobID:        uuid.New(),
		Dataset:      dataset,
		TotalRecords: len(entities),
		Status:       BatchStatusProcessing,
		Results:      []ScreeningRecord{},
		Errors:       []RecordError{},
	}

	s.logger.Infow("screening batch started",
		"job_id", result.JobID,
		"dataset", dataset,
		"total_records", len(entities),
		"group_size", s.cfg.GroupSize,
	)

	if len(entities) == 0 {
		result.Status = BatchStatusCompleted
		result.Elapsed = time.Since(start)
		return result
	}

	// A source that is unreachable before any group runs is a batch-level
	// failure, not N per-entity failures worth N network timeouts.
	if err := s.source.ValidateConnection(ctx); err != nil {
		s.logger.Errorw("candidate source unreachable, failing batch",
			"job_id", result.JobID, "error", err)
		for _, entity := range entities {
			result.Errors = append(result.Errors, RecordError{
				RowNumber:  entity.RowNumber,
				EntityName: entity.Name,
				Status:     RecordStatusAPIError,
				Message:    err.Error(),
			})
		}
		result.ProcessedRecords = len(entities)
		result.FailedRecords = len(entities)
		result.Status = BatchStatusFailed
		result.Elapsed = time.Since(start)
		metrics.BatchDuration.Observe(result.Elapsed.Seconds())
		return result
	}

	records := make([]*ScreeningRecord, len(entities))
	cancelled := false

	for groupStart := 0; groupStart < len(entities); groupStart += s.cfg.GroupSize {
		if ctx.Err() != nil {
			// Caller abort: stop launching groups but keep what finished.
			cancelled = true
			break
		}
		groupEnd := groupStart + s.cfg.GroupSize
		if groupEnd > len(entities) {
			groupEnd = len(entities)
		}

		var wg sync.WaitGroup
		for i := groupStart; i < groupEnd; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				records[idx] = s.screenOne(ctx, entities[idx], dataset)
			}(i)
		}
		wg.Wait()
	}

	for i, rec := range records {
		if rec == nil {
			result.Errors = append(result.Errors, RecordError{
				RowNumber:  entities[i].RowNumber,
				EntityName: entities[i].Name,
				Status:     RecordStatusError,
				Message:    "batch cancelled before entity was screened",
			})
			result.ProcessedRecords++
			result.FailedRecords++
			continue
		}
		result.ProcessedRecords++
		if rec.Status == RecordStatusSuccess {
			result.SuccessfulRecords++
			result.Results = append(result.Results, *rec)
		} else {
			result.FailedRecords++
			result.Errors = append(result.Errors, RecordError{
				RowNumber:  rec.RowNumber,
				EntityName: rec.EntityName,
				Status:     rec.Status,
				Message:    rec.Error,
			})
		}
	}

	if cancelled {
		result.Status = BatchStatusFailed
	} else {
		result.Status = BatchStatusCompleted
	}
	result.Elapsed = time.Since(start)
	metrics.BatchDuration.Observe(result.Elapsed.Seconds())

	s.logger.Infow("screening batch finished",
		"job_id", result.JobID,
		"status", result.Status,
		"processed", result.ProcessedRecords,
		"successful", result.SuccessfulRecords,
		"failed", result.FailedRecords,
		"elapsed", result.Elapsed,
	)
	return result
}

// ScreenEntity screens one submitted entity and returns its record. The
// record's status captures any failure; the error channel of this method
// is reserved for misuse (nil source), which cannot happen through New.
func (s *Service) ScreenEntity(ctx context.Context, entity NameQuery, dataset string) *ScreeningRecord {
	return s.screenOne(ctx, entity, dataset)
}

func (s *Service) screenOne(ctx context.Context, entity NameQuery, dataset string) (rec *ScreeningRecord) {
	rec = &ScreeningRecord{
		ID:          uuid.New(),
		RowNumber:   entity.RowNumber,
		ReferenceID: entity.ReferenceID,
		EntityName:  entity.Name,
		EntityType:  entity.Type,
		Matches:     []CandidateMatch{},
		ScreenedAt:  time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("screening panic recovered",
				"row", entity.RowNumber,
				"name", entity.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			rec.Status = RecordStatusError
			rec.Error = "internal screening failure"
		}
		metrics.ScreeningsProcessed.WithLabelValues(string(rec.Status)).Inc()
	}()

	normalized := Normalize(entity.Name)
	if normalized == "" {
		// Unusable input screens clean rather than failing.
		rec.Status = RecordStatusSuccess
		return rec
	}

	filters := SearchFilters{
		Schema:  schemaForType(entity.Type),
		Country: entity.Country,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	resp, err := s.lookup(callCtx, dataset, normalized, filters)
	if err != nil {
		rec.Status = statusForError(err)
		rec.Error = err.Error()
		s.logger.Warnw("candidate lookup failed",
			"row", entity.RowNumber,
			"name", entity.Name,
			"status", rec.Status,
			"error", err,
		)
		return rec
	}

	for _, candidate := range resp.Results {
		match := s.classifier.Classify(entity.Name, candidate.Name, candidate.Aliases)
		rec.Matches = append(rec.Matches, CandidateMatch{
			Candidate: candidate,
			Match:     match,
			RiskLevel: riskFromRelevance(candidate.Relevance),
			RankScore: rankScore(candidate.Relevance, match.Score),
		})
	}

	sort.SliceStable(rec.Matches, func(i, j int) bool {
		if rec.Matches[i].RankScore != rec.Matches[j].RankScore {
			return rec.Matches[i].RankScore > rec.Matches[j].RankScore
		}
		return rec.Matches[i].Candidate.Relevance > rec.Matches[j].Candidate.Relevance
	})

	if len(rec.Matches) > 0 {
		top := rec.Matches[0]
		rec.HighestRisk = &top
		metrics.MatchesClassified.WithLabelValues(string(top.Match.MatchType)).Inc()
	}

	rec.Status = RecordStatusSuccess
	return rec
}

// lookup consults the cache before the live source. Cache problems never
// fail a lookup.
func (s *Service) lookup(ctx context.Context, dataset, query string, filters SearchFilters) (*SearchResponse, error) {
	key := dataset + "|" + query + "|" + filters.Schema + "|" + filters.Country
	if s.cache != nil {
		if resp, ok := s.cache.Get(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return resp, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	resp, err := s.source.Search(ctx, dataset, query, s.cfg.SearchLimit, filters)
	metrics.SourceRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, resp)
	}
	return resp, nil
}

// rankScore combines external relevance with the engine's confidence.
func rankScore(relevance, confidence float64) float64 {
	return rankRelevanceWeight*relevance + rankConfidenceWeight*confidence
}

// riskFromRelevance discretizes the source relevance score.
func riskFromRelevance(relevance float64) RiskLevel {
	switch {
	case relevance >= riskCriticalRelevance:
		return RiskLevelCritical
	case relevance >= riskHighRelevance:
		return RiskLevelHigh
	case relevance >= riskMediumRelevance:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// schemaForType maps the declared entity type onto the source's schema
// filter vocabulary.
func schemaForType(t EntityType) string {
	switch t {
	case EntityTypePerson:
		return "Person"
	case EntityTypeCompany:
		return "Company"
	case EntityTypeOrganization:
		return "Organization"
	default:
		return ""
	}
}

// apiStatusError is satisfied by source status errors without importing
// the adapter package.
type apiStatusError interface {
	error
	Code() int
}

// statusForError maps a lookup failure onto a record status.
func statusForError(err error) RecordStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return RecordStatusTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return RecordStatusTimeout
	}
	var statusErr apiStatusError
	if errors.As(err, &statusErr) {
		return RecordStatusAPIError
	}
	return RecordStatusError
}
