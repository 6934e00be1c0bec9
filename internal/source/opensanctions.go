package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridex/namescreen/internal/screening"
)

const (
	defaultUserAgent  = "namescreen/1.0"
	defaultMaxRetries = 2
	retryDelay        = 500 * time.Millisecond
)

// OpenSanctionsClient queries a yente-compatible matching API. Per-call
// deadlines come from the caller's context; the embedded client timeout is
// only a hard upper bound.
type OpenSanctionsClient struct {
	cfg    Config
	client *http.Client
	logger *zap.SugaredLogger
}

// NewOpenSanctionsClient creates a client for the endpoint in cfg.
func NewOpenSanctionsClient(cfg Config, logger *zap.SugaredLogger) *OpenSanctionsClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &OpenSanctionsClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// searchEnvelope is the wire shape of a search response.
type searchEnvelope struct {
	Results []wireEntity `json:"results"`
	Total   struct {
		Value int `json:"value"`
	} `json:"total"`
}

// wireEntity is one candidate record as returned on the wire.
type wireEntity struct {
	ID         string              `json:"id"`
	Caption    string              `json:"caption"`
	Schema     string              `json:"schema"`
	Score      float64             `json:"score"`
	Datasets   []string            `json:"datasets"`
	Properties map[string][]string `json:"properties"`
}

// Search queries the /search/{dataset} endpoint and returns normalized
// candidate entities.
func (c *OpenSanctionsClient) Search(ctx context.Context, dataset, query string, limit int, filters screening.SearchFilters) (*screening.SearchResponse, error) {
	if dataset == "" {
		dataset = c.cfg.Dataset
	}
	if dataset == "" {
		dataset = "default"
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	if filters.Schema != "" {
		params.Set("schema", filters.Schema)
	}
	if filters.Country != "" {
		params.Set("countries", strings.ToLower(filters.Country))
	}

	endpoint := fmt.Sprintf("%s/search/%s?%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), url.PathEscape(dataset), params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var envelope searchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	resp := &screening.SearchResponse{
		Results: make([]screening.CandidateEntity, 0, len(envelope.Results)),
		Total:   envelope.Total.Value,
	}
	for _, raw := range envelope.Results {
		resp.Results = append(resp.Results, c.normalizeWire(raw))
	}
	return resp, nil
}

// NormalizeEntity converts one raw wire record into the engine's
// candidate shape.
func (c *OpenSanctionsClient) NormalizeEntity(raw json.RawMessage) (screening.CandidateEntity, error) {
	var entity wireEntity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return screening.CandidateEntity{}, fmt.Errorf("decoding candidate record: %w", err)
	}
	return c.normalizeWire(entity), nil
}

// normalizeWire maps the decoded wire fields onto a CandidateEntity. Weak
// aliases are merged with strong ones; the matching engine treats them
// alike.
func (c *OpenSanctionsClient) normalizeWire(raw wireEntity) screening.CandidateEntity {
	entity := screening.CandidateEntity{
		ID:        raw.ID,
		Name:      raw.Caption,
		Schema:    raw.Schema,
		Datasets:  raw.Datasets,
		Relevance: clamp01(raw.Score),
	}
	if entity.Name == "" {
		if names := raw.Properties["name"]; len(names) > 0 {
			entity.Name = names[0]
		}
	}
	entity.Aliases = appendUnique(entity.Aliases, raw.Properties["alias"]...)
	entity.Aliases = appendUnique(entity.Aliases, raw.Properties["weakAlias"]...)
	for _, name := range raw.Properties["name"] {
		if name != entity.Name {
			entity.Aliases = appendUnique(entity.Aliases, name)
		}
	}
	entity.Countries = raw.Properties["country"]
	entity.Topics = raw.Properties["topics"]
	return entity
}

// ValidateConnection probes the service health endpoint.
func (c *OpenSanctionsClient) ValidateConnection(ctx context.Context) error {
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/") + "/healthz"
	_, err := c.get(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("candidate source unreachable: %w", err)
	}
	return nil
}

// get issues a GET with auth headers, retrying transient failures. Context
// cancellation and client-side deadlines are never retried.
func (c *OpenSanctionsClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			c.logger.Debugw("retrying candidate source request",
				"endpoint", endpoint, "attempt", attempt)
		}

		body, err := c.doGet(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			// Client errors will not heal on retry.
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *OpenSanctionsClient) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		exists := false
		for _, existing := range dst {
			if existing == v {
				exists = true
				break
			}
		}
		if !exists {
			dst = append(dst, v)
		}
	}
	return dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
