// Package cache provides a content-addressed response cache for LLM calls.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"coursecraft/internal/domain"
)

// ResponseCache is an in-memory LRU cache with per-entry TTL. Identical
// prompts against the same model share one entry; a miss only costs an extra
// provider call, never correctness.
type ResponseCache struct {
	lru    *expirable.LRU[string, string]
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a cache holding up to size entries that expire after ttl.
func New(size int, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResponseCache{
		lru:    expirable.NewLRU[string, string](size, nil, ttl),
		ttl:    ttl,
		logger: logger,
	}
}

// Get implements domain.ResponseCache.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.logger.Debug("response cache hit", "key", key)
	}
	return v, ok
}

// Set implements domain.ResponseCache. The per-cache TTL applies; the ttl
// argument is accepted for interface compatibility but entries share the
// cache-wide expiry configured at construction.
func (c *ResponseCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.lru.Add(key, value)
}

// Len returns the number of live entries.
func (c *ResponseCache) Len() int { return c.lru.Len() }

// Purge drops all entries.
func (c *ResponseCache) Purge() { c.lru.Purge() }

var _ domain.ResponseCache = (*ResponseCache)(nil)
