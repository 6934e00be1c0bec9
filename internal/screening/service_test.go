package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeSource is a scriptable CandidateSource for orchestrator tests.
type fakeSource struct {
	searchFn    func(ctx context.Context, dataset, query string, limit int, filters SearchFilters) (*SearchResponse, error)
	validateErr error
}

func (f *fakeSource) Search(ctx context.Context, dataset, query string, limit int, filters SearchFilters) (*SearchResponse, error) {
	if f.searchFn == nil {
		return &SearchResponse{Results: []CandidateEntity{}}, nil
	}
	return f.searchFn(ctx, dataset, query, limit, filters)
}

func (f *fakeSource) NormalizeEntity(raw json.RawMessage) (CandidateEntity, error) {
	var entity CandidateEntity
	err := json.Unmarshal(raw, &entity)
	return entity, err
}

func (f *fakeSource) ValidateConnection(context.Context) error {
	return f.validateErr
}

func newTestService(t *testing.T, src CandidateSource, opts ...func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GroupSize = 4
	cfg.CallTimeout = 2 * time.Second
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewService(cfg, src, nil, zaptest.NewLogger(t).Sugar())
}

func candidates(entries ...CandidateEntity) *SearchResponse {
	return &SearchResponse{Results: entries, Total: len(entries)}
}

func TestScreenBatchSuccess(t *testing.T) {
	src := &fakeSource{
		searchFn: func(_ context.Context, _, query string, _ int, _ SearchFilters) (*SearchResponse, error) {
			return candidates(CandidateEntity{
				ID:        "Q1",
				Name:      strings.ToUpper(query),
				Schema:    "Person",
				Relevance: 0.8,
			}), nil
		},
	}
	service := newTestService(t, src)

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali", Type: EntityTypePerson},
		{RowNumber: 2, Name: "John Smith", Type: EntityTypePerson},
		{RowNumber: 3, Name: "Acme Holdings Inc", Type: EntityTypeCompany},
	}
	result := service.ScreenBatch(context.Background(), entities, "sanctions")

	assert.Equal(t, BatchStatusCompleted, result.Status)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Equal(t, 3, result.ProcessedRecords)
	assert.Equal(t, 3, result.SuccessfulRecords)
	assert.Equal(t, 0, result.FailedRecords)
	require.Len(t, result.Results, 3)
	assert.Empty(t, result.Errors)

	// Output follows submission order regardless of completion order.
	for i, rec := range result.Results {
		assert.Equal(t, entities[i].RowNumber, rec.RowNumber)
		assert.Equal(t, RecordStatusSuccess, rec.Status)
		require.NotNil(t, rec.HighestRisk)
		assert.Equal(t, MatchTypeExact, rec.HighestRisk.Match.MatchType)
	}
}

func TestScreenBatchAccountingInvariant(t *testing.T) {
	src := &fakeSource{
		searchFn: func(_ context.Context, _, query string, _ int, _ SearchFilters) (*SearchResponse, error) {
			if strings.Contains(query, "broken") {
				return nil, errors.New("connection reset")
			}
			return candidates(), nil
		},
	}
	service := newTestService(t, src)

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali"},
		{RowNumber: 2, Name: "Broken Record"},
		{RowNumber: 3, Name: "John Smith"},
	}
	result := service.ScreenBatch(context.Background(), entities, "sanctions")

	assert.Equal(t, BatchStatusCompleted, result.Status)
	assert.Equal(t, result.ProcessedRecords, result.SuccessfulRecords+result.FailedRecords)
	assert.Equal(t, result.TotalRecords, len(result.Results)+len(result.Errors))
	assert.Equal(t, 2, result.SuccessfulRecords)
	assert.Equal(t, 1, result.FailedRecords)
}

func TestScreenBatchPartialFailureIsolation(t *testing.T) {
	src := &fakeSource{
		searchFn: func(ctx context.Context, _, query string, _ int, _ SearchFilters) (*SearchResponse, error) {
			if strings.Contains(query, "slow") {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return candidates(CandidateEntity{ID: "Q1", Name: query, Relevance: 0.6}), nil
		},
	}
	service := newTestService(t, src, func(cfg *Config) {
		cfg.CallTimeout = 50 * time.Millisecond
	})

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali"},
		{RowNumber: 2, Name: "Slow Poke"},
		{RowNumber: 3, Name: "John Smith"},
	}
	result := service.ScreenBatch(context.Background(), entities, "sanctions")

	assert.Equal(t, BatchStatusCompleted, result.Status, "per-entity timeout must not fail the batch")
	assert.Equal(t, 2, result.SuccessfulRecords)
	assert.Equal(t, 1, result.FailedRecords)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].RowNumber)
	assert.Equal(t, RecordStatusTimeout, result.Errors[0].Status)
}

func TestScreenBatchSourceUnreachable(t *testing.T) {
	src := &fakeSource{validateErr: errors.New("dial tcp: connection refused")}
	service := newTestService(t, src)

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali"},
		{RowNumber: 2, Name: "John Smith"},
	}
	result := service.ScreenBatch(context.Background(), entities, "sanctions")

	assert.Equal(t, BatchStatusFailed, result.Status)
	assert.Empty(t, result.Results)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, result.ProcessedRecords, result.SuccessfulRecords+result.FailedRecords)
	assert.Equal(t, result.TotalRecords, len(result.Results)+len(result.Errors))
}

func TestScreenBatchCancelledBeforeStart(t *testing.T) {
	src := &fakeSource{}
	service := newTestService(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali"},
		{RowNumber: 2, Name: "John Smith"},
	}
	result := service.ScreenBatch(ctx, entities, "sanctions")

	assert.Equal(t, BatchStatusFailed, result.Status)
	assert.Equal(t, result.TotalRecords, len(result.Results)+len(result.Errors))
	assert.Equal(t, result.ProcessedRecords, result.SuccessfulRecords+result.FailedRecords)
}

func TestScreenBatchCancelMidBatchFlushesCompletedGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{
		searchFn: func(_ context.Context, _, query string, _ int, _ SearchFilters) (*SearchResponse, error) {
			if strings.Contains(query, "ahmed") {
				// The caller aborts once the first entity is in flight;
				// its group still finishes.
				defer cancel()
			}
			return candidates(CandidateEntity{ID: "Q1", Name: query, Relevance: 0.6}), nil
		},
	}
	service := newTestService(t, src, func(cfg *Config) { cfg.GroupSize = 1 })

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali"},
		{RowNumber: 2, Name: "John Smith"},
		{RowNumber: 3, Name: "Jane Doe"},
	}
	result := service.ScreenBatch(ctx, entities, "sanctions")

	assert.Equal(t, BatchStatusFailed, result.Status)
	require.Len(t, result.Results, 1, "completed groups must flush their records")
	assert.Equal(t, 1, result.Results[0].RowNumber)
	assert.Equal(t, RecordStatusSuccess, result.Results[0].Status)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, result.ProcessedRecords, result.SuccessfulRecords+result.FailedRecords)
	assert.Equal(t, result.TotalRecords, len(result.Results)+len(result.Errors))
}

func TestScreenBatchEmpty(t *testing.T) {
	service := newTestService(t, &fakeSource{})
	result := service.ScreenBatch(context.Background(), nil, "sanctions")
	assert.Equal(t, BatchStatusCompleted, result.Status)
	assert.Zero(t, result.TotalRecords)
}

func TestScreenEntityRanking(t *testing.T) {
	src := &fakeSource{
		searchFn: func(_ context.Context, _, _ string, _ int, _ SearchFilters) (*SearchResponse, error) {
			return candidates(
				CandidateEntity{ID: "low", Name: "Ahmed Ali", Relevance: 0.3},
				CandidateEntity{ID: "high", Name: "Totally Different Person", Relevance: 0.95},
				CandidateEntity{ID: "mid", Name: "Ahmad Aly", Relevance: 0.6},
			), nil
		},
	}
	service := newTestService(t, src)

	rec := service.ScreenEntity(context.Background(), NameQuery{RowNumber: 1, Name: "Ahmed Ali"}, "sanctions")
	require.Equal(t, RecordStatusSuccess, rec.Status)
	require.Len(t, rec.Matches, 3)

	// External relevance dominates the ranking key; confidence only
	// breaks ties.
	assert.Equal(t, "high", rec.Matches[0].Candidate.ID)
	require.NotNil(t, rec.HighestRisk)
	assert.Equal(t, "high", rec.HighestRisk.Candidate.ID)
	assert.Equal(t, RiskLevelCritical, rec.Matches[0].RiskLevel)

	for i := 1; i < len(rec.Matches); i++ {
		assert.GreaterOrEqual(t, rec.Matches[i-1].RankScore, rec.Matches[i].RankScore)
	}
}

func TestScreenEntityRankingTieBrokenByRelevance(t *testing.T) {
	// Two candidates engineered to the same rank key except for the
	// relevance term.
	src := &fakeSource{
		searchFn: func(_ context.Context, _, _ string, _ int, _ SearchFilters) (*SearchResponse, error) {
			return candidates(
				CandidateEntity{ID: "a", Name: "Nobody Here", Relevance: 0.5},
				CandidateEntity{ID: "b", Name: "Nobody Here", Relevance: 0.5},
			), nil
		},
	}
	service := newTestService(t, src)

	rec := service.ScreenEntity(context.Background(), NameQuery{RowNumber: 1, Name: "Ahmed Ali"}, "sanctions")
	require.Len(t, rec.Matches, 2)
	// Stable sort keeps submission order on full ties.
	assert.Equal(t, "a", rec.Matches[0].Candidate.ID)
}

func TestScreenEntityEmptyNameScreensClean(t *testing.T) {
	calls := 0
	src := &fakeSource{
		searchFn: func(_ context.Context, _, _ string, _ int, _ SearchFilters) (*SearchResponse, error) {
			calls++
			return candidates(), nil
		},
	}
	service := newTestService(t, src)

	rec := service.ScreenEntity(context.Background(), NameQuery{RowNumber: 1, Name: "!!!"}, "sanctions")
	assert.Equal(t, RecordStatusSuccess, rec.Status)
	assert.Empty(t, rec.Matches)
	assert.Nil(t, rec.HighestRisk)
	assert.Zero(t, calls, "unusable input must not reach the source")
}

func TestScreenEntityAPIErrorStatus(t *testing.T) {
	src := &fakeSource{
		searchFn: func(_ context.Context, _, _ string, _ int, _ SearchFilters) (*SearchResponse, error) {
			return nil, &fakeStatusError{code: 503}
		},
	}
	service := newTestService(t, src)

	rec := service.ScreenEntity(context.Background(), NameQuery{RowNumber: 1, Name: "Ahmed Ali"}, "sanctions")
	assert.Equal(t, RecordStatusAPIError, rec.Status)
	assert.NotEmpty(t, rec.Error)
}

type fakeStatusError struct{ code int }

func (e *fakeStatusError) Error() string { return fmt.Sprintf("status %d", e.code) }
func (e *fakeStatusError) Code() int     { return e.code }

func TestScreenEntityFiltersForwarded(t *testing.T) {
	var gotFilters SearchFilters
	var gotLimit int
	var gotDataset string
	src := &fakeSource{
		searchFn: func(_ context.Context, dataset, _ string, limit int, filters SearchFilters) (*SearchResponse, error) {
			gotFilters = filters
			gotLimit = limit
			gotDataset = dataset
			return candidates(), nil
		},
	}
	service := newTestService(t, src, func(cfg *Config) { cfg.SearchLimit = 7 })

	service.ScreenEntity(context.Background(), NameQuery{
		RowNumber: 1,
		Name:      "Ahmed Ali",
		Type:      EntityTypeCompany,
		Country:   "AE",
	}, "peps")

	assert.Equal(t, "peps", gotDataset)
	assert.Equal(t, 7, gotLimit)
	assert.Equal(t, "Company", gotFilters.Schema)
	assert.Equal(t, "AE", gotFilters.Country)
}

func TestScreenBatchUsesCache(t *testing.T) {
	calls := 0
	src := &fakeSource{
		searchFn: func(_ context.Context, _, _ string, _ int, _ SearchFilters) (*SearchResponse, error) {
			calls++
			return candidates(CandidateEntity{ID: "Q1", Name: "Ahmed Ali", Relevance: 0.5}), nil
		},
	}
	cfg := DefaultConfig()
	cfg.GroupSize = 1
	service := NewService(cfg, src, newMapCache(), zaptest.NewLogger(t).Sugar())

	entities := []NameQuery{
		{RowNumber: 1, Name: "Ahmed Ali"},
		{RowNumber: 2, Name: "Ahmed Ali"},
	}
	result := service.ScreenBatch(context.Background(), entities, "sanctions")

	assert.Equal(t, 2, result.SuccessfulRecords)
	assert.Equal(t, 1, calls, "identical queries should be served from cache")
}

// mapCache is a minimal CandidateCache for tests.
type mapCache struct{ entries map[string]*SearchResponse }

func newMapCache() *mapCache { return &mapCache{entries: map[string]*SearchResponse{}} }

func (m *mapCache) Get(_ context.Context, key string) (*SearchResponse, bool) {
	resp, ok := m.entries[key]
	return resp, ok
}

func (m *mapCache) Set(_ context.Context, key string, resp *SearchResponse) {
	m.entries[key] = resp
}
