// File: internal/infra/redis/region_store_test.go
package redis

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"

	goredis "github.com/go-redis/redis/v8"
)

// fakeRedis is an in-memory RedisClient for unit tests.
type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	for k := range f.data {
		if ok, _ := filepath.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttls, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRedis) Close() error { return nil }

func sampleRecord(attempts int) *model.CumulativeRegion {
	return &model.CumulativeRegion{
		MinX: 1, MinY: 2, MaxX: 30, MaxY: 40,
		TotalAttempts: attempts,
		LastUpdated:   time.Now().UTC().Truncate(time.Second),
		Regions: []model.Region{
			{X: 1, Y: 2, Width: 29, Height: 38, Timestamp: time.Now().UTC().Truncate(time.Second)},
		},
	}
}

func TestRegionStore_SetGetRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cli := newFakeRedis()
	store := NewRegionStore(cli)

	rec := sampleRecord(3)
	if err := store.Set(ctx, "s1", "abcd1234", rec, 24*time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := store.Get(ctx, "s1", "abcd1234")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TotalAttempts != 3 || got.MaxX != 30 || len(got.Regions) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRegionStore_KeyLayoutAndTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cli := newFakeRedis()
	store := NewRegionStore(cli)

	if err := store.Set(ctx, "s1", "abcd1234", sampleRecord(1), 24*time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	key := "bbox:session:s1:question:abcd1234"
	if _, ok := cli.data[key]; !ok {
		t.Fatalf("expected key %q, have %v", key, cli.data)
	}
	if cli.ttls[key] != 24*time.Hour {
		t.Fatalf("ttl = %v, want 24h", cli.ttls[key])
	}
}

func TestRegionStore_GetMissing(t *testing.T) {
	t.Parallel()
	store := NewRegionStore(newFakeRedis())
	_, err := store.Get(context.Background(), "s1", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegionStore_DeleteReportsExistence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewRegionStore(newFakeRedis())

	if err := store.Set(ctx, "s1", "abcd1234", sampleRecord(1), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	existed, err := store.Delete(ctx, "s1", "abcd1234")
	if err != nil || !existed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = store.Delete(ctx, "s1", "abcd1234")
	if err != nil || existed {
		t.Fatalf("second Delete = (%v, %v), want (false, nil)", existed, err)
	}
}

func TestRegionStore_ScanSessionIsolatesSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewRegionStore(newFakeRedis())

	if err := store.Set(ctx, "s1", "q1hash00", sampleRecord(1), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "s1", "q2hash00", sampleRecord(2), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "other", "q1hash00", sampleRecord(9), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	out, err := store.ScanSession(ctx, "s1")
	if err != nil {
		t.Fatalf("ScanSession: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("scanned %d records, want 2", len(out))
	}
	for _, ts := range out {
		if ts.QuestionHash != "q1hash00" && ts.QuestionHash != "q2hash00" {
			t.Fatalf("unexpected hash %q", ts.QuestionHash)
		}
	}
}
