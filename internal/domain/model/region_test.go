// File: internal/domain/model/region_test.go
package model

import (
	"errors"
	"testing"
	"time"

	"math-eval-service/internal/domain"
)

func TestNewRegionFromBounds(t *testing.T) {
	t.Parallel()
	now := time.Now()

	r, err := NewRegionFromBounds(RectBounds{MinX: 10, MaxX: 110, MinY: 20, MaxY: 80}, "a1", now)
	if err != nil {
		t.Fatalf("NewRegionFromBounds: %v", err)
	}
	if r.X != 10 || r.Y != 20 || r.Width != 100 || r.Height != 60 {
		t.Fatalf("region = %+v", r)
	}

	bad := []RectBounds{
		{MinX: 110, MaxX: 10, MinY: 20, MaxY: 80}, // inverted x
		{MinX: 10, MaxX: 110, MinY: 80, MaxY: 20}, // inverted y
		{MinX: -1, MaxX: 10, MinY: 0, MaxY: 10},   // negative origin
		{MinX: 5, MaxX: 5, MinY: 0, MaxY: 10},     // zero width
	}
	for _, b := range bad {
		if _, err := NewRegionFromBounds(b, "", now); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("bounds %+v: expected ErrInvalidArgument, got %v", b, err)
		}
	}
}

func TestCumulativeRegion_MergeNeverShrinks(t *testing.T) {
	t.Parallel()
	now := time.Now()

	c := NewCumulativeRegion(Region{X: 10, Y: 10, Width: 10, Height: 10, Timestamp: now})
	c.Merge(Region{X: 12, Y: 12, Width: 2, Height: 2, Timestamp: now.Add(time.Second)})

	if c.MinX != 10 || c.MinY != 10 || c.MaxX != 20 || c.MaxY != 20 {
		t.Fatalf("inner region changed bounds: %+v", c)
	}
	if c.TotalAttempts != 2 {
		t.Fatalf("attempts = %d, want 2", c.TotalAttempts)
	}

	c.Merge(Region{X: 0, Y: 5, Width: 40, Height: 5, Timestamp: now.Add(2 * time.Second)})
	if c.MinX != 0 || c.MinY != 5 || c.MaxX != 40 || c.MaxY != 20 {
		t.Fatalf("union wrong: %+v", c)
	}
}

func TestStatsFor(t *testing.T) {
	t.Parallel()

	empty := StatsFor(nil)
	if empty.HasData || empty.TotalAttempts != 0 || empty.Bounds != nil {
		t.Fatalf("nil record must yield empty stats, got %+v", empty)
	}

	base := time.Now()
	c := NewCumulativeRegion(Region{X: 0, Y: 0, Width: 10, Height: 10, Timestamp: base})
	c.Merge(Region{X: 10, Y: 0, Width: 10, Height: 10, Timestamp: base.Add(30 * time.Second)})

	stats := StatsFor(c)
	if !stats.HasData || stats.TotalAttempts != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Area != 200 {
		t.Fatalf("area = %d, want 200", stats.Area)
	}
	if stats.DurationSeconds != 30 {
		t.Fatalf("duration = %v, want 30s", stats.DurationSeconds)
	}
	if stats.CenterX != 10 || stats.CenterY != 5 {
		t.Fatalf("centroid = (%v,%v)", stats.CenterX, stats.CenterY)
	}
}

func TestRectBounds_MidY(t *testing.T) {
	t.Parallel()
	b := RectBounds{MinX: 0, MaxX: 10, MinY: 20, MaxY: 80}
	if got := b.MidY(); got != 50 {
		t.Fatalf("MidY = %v, want 50", got)
	}
}
