package model

import (
	"time"

	"math-eval-service/internal/domain"
)

// RectBounds is the corner form clients submit: {minX, maxX, minY, maxY}.
type RectBounds struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

func (b RectBounds) Valid() bool {
	return b.MinX >= 0 && b.MinY >= 0 && b.MaxX > b.MinX && b.MaxY > b.MinY
}

// MidY is the vertical midpoint, used as the flagged-error coordinate.
func (b RectBounds) MidY() float64 { return (b.MinY + b.MaxY) / 2 }

// Region is the canonical x/y/width/height form stored in the tracker.
// A Region is owned by the CumulativeRegion holding it and never shared.
type Region struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	AttemptID string    `json:"attempt_id,omitempty"`
}

// NewRegionFromBounds normalizes corner bounds into a Region.
func NewRegionFromBounds(b RectBounds, attemptID string, now time.Time) (Region, error) {
	if !b.Valid() {
		return Region{}, domain.ErrInvalidArgument
	}
	return Region{
		X:         int(b.MinX),
		Y:         int(b.MinY),
		Width:     int(b.MaxX - b.MinX),
		Height:    int(b.MaxY - b.MinY),
		Timestamp: now,
		AttemptID: attemptID,
	}, nil
}

func (r Region) MaxX() int { return r.X + r.Width }
func (r Region) MaxY() int { return r.Y + r.Height }

// CumulativeRegion is the running union of every Region submitted for one
// session+question key. Bounds never shrink while the key is alive.
type CumulativeRegion struct {
	MinX          int       `json:"min_x"`
	MinY          int       `json:"min_y"`
	MaxX          int       `json:"max_x"`
	MaxY          int       `json:"max_y"`
	TotalAttempts int       `json:"total_attempts"`
	LastUpdated   time.Time `json:"last_updated"`
	Regions       []Region  `json:"regions"`
}

// NewCumulativeRegion seeds a record from its first region.
func NewCumulativeRegion(r Region) *CumulativeRegion {
	return &CumulativeRegion{
		MinX:          r.X,
		MinY:          r.Y,
		MaxX:          r.MaxX(),
		MaxY:          r.MaxY(),
		TotalAttempts: 1,
		LastUpdated:   r.Timestamp,
		Regions:       []Region{r},
	}
}

// Merge folds a new region into the union (componentwise min/max).
func (c *CumulativeRegion) Merge(r Region) {
	c.Regions = append(c.Regions, r)
	c.TotalAttempts++
	c.LastUpdated = r.Timestamp
	if r.X < c.MinX {
		c.MinX = r.X
	}
	if r.Y < c.MinY {
		c.MinY = r.Y
	}
	if r.MaxX() > c.MaxX {
		c.MaxX = r.MaxX()
	}
	if r.MaxY() > c.MaxY {
		c.MaxY = r.MaxY()
	}
}

// Bounds returns the union in API corner form.
func (c *CumulativeRegion) Bounds() RectBounds {
	return RectBounds{
		MinX: float64(c.MinX),
		MaxX: float64(c.MaxX),
		MinY: float64(c.MinY),
		MaxY: float64(c.MaxY),
	}
}

func (c *CumulativeRegion) Area() int {
	return (c.MaxX - c.MinX) * (c.MaxY - c.MinY)
}

// Centroid of the union bounds.
func (c *CumulativeRegion) Centroid() (float64, float64) {
	return float64(c.MinX+c.MaxX) / 2, float64(c.MinY+c.MaxY) / 2
}

// Duration is the span from the earliest region to the last update.
func (c *CumulativeRegion) Duration() time.Duration {
	if len(c.Regions) == 0 {
		return 0
	}
	first := c.Regions[0].Timestamp
	for _, r := range c.Regions[1:] {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
	}
	return c.LastUpdated.Sub(first)
}

// SessionStats is the read model served by the session endpoints.
type SessionStats struct {
	TotalAttempts   int         `json:"total_attempts"`
	HasData         bool        `json:"has_data"`
	DurationSeconds float64     `json:"session_duration_seconds"`
	Area            int         `json:"bounding_box_area"`
	Bounds          *RectBounds `json:"cumulative_bounds,omitempty"`
	CenterX         float64     `json:"center_x,omitempty"`
	CenterY         float64     `json:"center_y,omitempty"`
	LastUpdated     *time.Time  `json:"last_updated,omitempty"`
}

// StatsFor derives stats from a record; a nil record yields the empty result.
func StatsFor(c *CumulativeRegion) SessionStats {
	if c == nil {
		return SessionStats{}
	}
	bounds := c.Bounds()
	cx, cy := c.Centroid()
	last := c.LastUpdated
	return SessionStats{
		TotalAttempts:   c.TotalAttempts,
		HasData:         true,
		DurationSeconds: c.Duration().Seconds(),
		Area:            c.Area(),
		Bounds:          &bounds,
		CenterX:         cx,
		CenterY:         cy,
		LastUpdated:     &last,
	}
}
