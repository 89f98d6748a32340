package repository

import (
	"context"
	"time"

	"math-eval-service/internal/domain/model"
)

// TrackedSession pairs a question key with its stored record, as returned
// by a session-wide scan.
type TrackedSession struct {
	QuestionHash string
	Record       *model.CumulativeRegion
}

// RegionStore is the keyed backing store for cumulative regions. Records
// live under (session, question-hash) keys with a sliding TTL that every
// Set resets to its full duration.
type RegionStore interface {
	// Get returns the record for the key, or domain.ErrNotFound.
	Get(ctx context.Context, sessionID, questionHash string) (*model.CumulativeRegion, error)
	// Set stores the record and resets the sliding TTL.
	Set(ctx context.Context, sessionID, questionHash string, rec *model.CumulativeRegion, ttl time.Duration) error
	// Delete removes the key, reporting whether it existed.
	Delete(ctx context.Context, sessionID, questionHash string) (bool, error)
	// ScanSession enumerates every question key stored for the session.
	ScanSession(ctx context.Context, sessionID string) ([]TrackedSession, error)
}
