// Package cache provides an optional, TTL-bound cache for candidate
// source responses. Cache failures always degrade to a live source call.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/veridex/namescreen/internal/screening"
)

// Config carries candidate cache settings.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Backend is "memory" or "redis".
	Backend string        `yaml:"backend" json:"backend"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`

	// Redis settings, used when Backend is "redis".
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
}

// DefaultConfig returns a disabled cache with sane settings for when it is
// switched on.
func DefaultConfig() Config {
	return Config{
		Backend:   "memory",
		TTL:       15 * time.Minute,
		RedisAddr: "localhost:6379",
	}
}

// memoryEntry pairs a cached response with its expiry.
type memoryEntry struct {
	resp      *screening.SearchResponse
	expiresAt time.Time
}

// sweepEvery is the number of writes between full expiry sweeps, so that
// one-shot keys never read again still get reclaimed.
const sweepEvery = 256

// MemoryCache is an in-process CandidateCache. Expired entries are
// reclaimed lazily on read and swept periodically on write.
type MemoryCache struct {
	mu         sync.RWMutex
	ttl        time.Duration
	entries    map[string]memoryEntry
	writeCount int
}

// NewMemoryCache creates a memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns a cached response if present and unexpired.
func (m *MemoryCache) Get(_ context.Context, key string) (*screening.SearchResponse, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.resp, true
}

// Set stores a response under key for the configured TTL.
func (m *MemoryCache) Set(_ context.Context, key string, resp *screening.SearchResponse) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{resp: resp, expiresAt: time.Now().Add(m.ttl)}
	m.writeCount++
	if m.writeCount >= sweepEvery {
		m.writeCount = 0
		now := time.Now()
		for k, entry := range m.entries {
			if now.After(entry.expiresAt) {
				delete(m.entries, k)
			}
		}
	}
	m.mu.Unlock()
}
