// File: internal/infra/cache/response_cache.go
package cache

import (
	"sync"
	"time"

	"math-eval-service/internal/infra/metrics"
)

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// ResponseCache is a process-wide TTL memoization map keyed by request
// fingerprints. Operations are atomic per key; a read past expiry behaves
// as a miss and evicts the stale entry.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewResponseCache(defaultTTL time.Duration) *ResponseCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &ResponseCache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the stored value if present and not expired.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		metrics.IncCacheRequest("response", "miss")
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		metrics.IncCacheRequest("response", "expired")
		metrics.SetCacheEntries("response", len(c.entries))
		return nil, false
	}
	metrics.IncCacheRequest("response", "hit")
	return e.value, true
}

// Set stores the value with an absolute expiry of now+ttl, overwriting any
// existing entry for the key. ttl <= 0 falls back to the default TTL.
func (c *ResponseCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = entry{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	metrics.SetCacheEntries("response", len(c.entries))
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	metrics.SetCacheEntries("response", 0)
}

func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns up to limit live keys, in map order. Used by the stats
// endpoint to show a sample of what is cached.
func (c *ResponseCache) Keys(limit int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, limit)
	for k := range c.entries {
		if len(out) >= limit {
			break
		}
		out = append(out, k)
	}
	return out
}

// Sweep drops every expired entry and reports how many were removed.
// Called periodically by the janitor; Get still evicts lazily on its own.
func (c *ResponseCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	metrics.SetCacheEntries("response", len(c.entries))
	return removed
}
