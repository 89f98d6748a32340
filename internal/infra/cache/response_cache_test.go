// File: internal/infra/cache/response_cache_test.go
package cache

import (
	"testing"
	"time"
)

// fixedClock lets tests move time without sleeping.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newCacheWithClock(ttl time.Duration) (*ResponseCache, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewResponseCache(ttl)
	c.now = clock.now
	return c, clock
}

func TestCache_SetGet(t *testing.T) {
	t.Parallel()
	c, _ := newCacheWithClock(time.Hour)

	c.Set("k", "v", 0)
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get = (%v, %v), want (v, true)", got, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	t.Parallel()
	c, _ := newCacheWithClock(time.Hour)
	if _, ok := c.Get("nope"); ok {
		t.Fatal("unknown key must miss")
	}
}

func TestCache_ExpiredReadIsMissAndEvicts(t *testing.T) {
	t.Parallel()
	c, clock := newCacheWithClock(time.Hour)

	c.Set("k", "v", time.Minute)
	clock.advance(time.Minute + time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry must read as miss")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not evicted, size = %d", c.Size())
	}
}

func TestCache_OverwriteResetsExpiry(t *testing.T) {
	t.Parallel()
	c, clock := newCacheWithClock(time.Hour)

	c.Set("k", "old", time.Minute)
	clock.advance(30 * time.Second)
	c.Set("k", "new", time.Minute)
	clock.advance(45 * time.Second)

	got, ok := c.Get("k")
	if !ok || got != "new" {
		t.Fatalf("Get = (%v, %v), want (new, true)", got, ok)
	}
}

func TestCache_DefaultTTLApplies(t *testing.T) {
	t.Parallel()
	c, clock := newCacheWithClock(time.Minute)

	c.Set("k", "v", 0)
	clock.advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired before default TTL")
	}
	clock.advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry alive past default TTL")
	}
}

func TestCache_ClearAndSize(t *testing.T) {
	t.Parallel()
	c, _ := newCacheWithClock(time.Hour)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("size after clear = %d, want 0", c.Size())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("cleared key must miss")
	}
}

func TestCache_SweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	c, clock := newCacheWithClock(time.Hour)

	c.Set("old", 1, time.Minute)
	c.Set("fresh", 2, time.Hour)
	clock.advance(2 * time.Minute)

	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("swept = %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry must survive the sweep")
	}
}

func TestCache_KeysBounded(t *testing.T) {
	t.Parallel()
	c, _ := newCacheWithClock(time.Hour)
	for _, k := range []string{"a", "b", "c", "d"} {
		c.Set(k, 1, 0)
	}
	if got := len(c.Keys(2)); got != 2 {
		t.Fatalf("Keys(2) returned %d entries", got)
	}
	if got := len(c.Keys(10)); got != 4 {
		t.Fatalf("Keys(10) returned %d entries", got)
	}
}
