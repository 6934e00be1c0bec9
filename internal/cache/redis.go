package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veridex/namescreen/internal/screening"
)

const redisKeyPrefix = "namescreen:candidates:"

// RedisCache is a CandidateCache backed by Redis, for sharing cached
// candidate lookups across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedisCache creates a Redis-backed candidate cache.
func NewRedisCache(cfg Config, logger *zap.SugaredLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

// Get returns a cached response if Redis holds one. Redis errors are
// logged and reported as a miss.
func (r *RedisCache) Get(ctx context.Context, key string) (*screening.SearchResponse, bool) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warnw("candidate cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var resp screening.SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		r.logger.Warnw("candidate cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

// Set stores a response in Redis for the configured TTL. Failures are
// logged and otherwise ignored.
func (r *RedisCache) Set(ctx context.Context, key string, resp *screening.SearchResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		r.logger.Warnw("candidate cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, payload, r.ttl).Err(); err != nil {
		r.logger.Warnw("candidate cache write failed", "key", key, "error", err)
	}
}

// Close releases the underlying Redis connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// New builds the cache selected by cfg, or nil when caching is disabled.
// Both backends satisfy screening.CandidateCache.
func New(cfg Config, logger *zap.SugaredLogger) screening.CandidateCache {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg, logger)
	default:
		return NewMemoryCache(cfg.TTL)
	}
}
