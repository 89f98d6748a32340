// File: internal/usecase/tracker_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/repository"
	"math-eval-service/internal/infra/metrics"
	"math-eval-service/internal/infra/redis"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ TrackerUseCase = (*trackerUC)(nil)

// TrackerUseCase maintains the cumulative drawn-region record per
// session+question key.
type TrackerUseCase interface {
	AddRegion(ctx context.Context, sessionID, questionRef string, bounds model.RectBounds, attemptID string) (*model.CumulativeRegion, error)
	Stats(ctx context.Context, sessionID, questionRef string) (model.SessionStats, error)
	ListAll(ctx context.Context, sessionID string) (map[string]model.SessionStats, error)
	Clear(ctx context.Context, sessionID, questionRef string) (bool, error)
}

type trackerUC struct {
	store  repository.RegionStore
	locker redis.Locker
	ttl    time.Duration

	log *zerolog.Logger
}

func NewTrackerUseCase(store repository.RegionStore, locker redis.Locker, ttl time.Duration, logger *zerolog.Logger) *trackerUC {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &trackerUC{store: store, locker: locker, ttl: ttl, log: logger}
}

// AddRegion folds a newly drawn rectangle into the cumulative record and
// resets its sliding TTL. The read-modify-write cycle holds a per-key lock
// so concurrent submissions for the same question cannot lose updates.
func (t *trackerUC) AddRegion(ctx context.Context, sessionID, questionRef string, bounds model.RectBounds, attemptID string) (*model.CumulativeRegion, error) {
	region, err := model.NewRegionFromBounds(bounds, attemptID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}
	hash := QuestionDigest(questionRef)

	lockKey := fmt.Sprintf("lock:bbox:session:%s:question:%s", sessionID, hash)
	token, err := t.locker.TryLock(ctx, lockKey, 10*time.Second)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			metrics.IncTrackerLockContention()
		}
		return nil, fmt.Errorf("lock region key: %w", err)
	}
	defer func() {
		if err := t.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			t.log.Warn().Err(err).Str("key", lockKey).Msg("failed to release region lock")
		}
	}()

	rec, err := t.store.Get(ctx, sessionID, hash)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec = model.NewCumulativeRegion(region)
	case err != nil:
		return nil, fmt.Errorf("load region record: %w", err)
	default:
		rec.Merge(region)
	}

	if err := t.store.Set(ctx, sessionID, hash, rec, t.ttl); err != nil {
		return nil, fmt.Errorf("store region record: %w", err)
	}
	metrics.IncTrackerOp("add")
	t.log.Debug().Str("session_id", sessionID).Str("question", hash).
		Int("total_attempts", rec.TotalAttempts).Msg("region added")
	return rec, nil
}

// Stats returns the aggregate view for one key. An unknown key yields the
// empty stats value, not an error.
func (t *trackerUC) Stats(ctx context.Context, sessionID, questionRef string) (model.SessionStats, error) {
	rec, err := t.store.Get(ctx, sessionID, QuestionDigest(questionRef))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncTrackerOp("stats")
			return model.StatsFor(nil), nil
		}
		return model.SessionStats{}, fmt.Errorf("load region record: %w", err)
	}
	metrics.IncTrackerOp("stats")
	return model.StatsFor(rec), nil
}

// ListAll enumerates every tracked question for the session, keyed by
// question digest.
func (t *trackerUC) ListAll(ctx context.Context, sessionID string) (map[string]model.SessionStats, error) {
	tracked, err := t.store.ScanSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("scan session %s: %w", sessionID, err)
	}
	out := make(map[string]model.SessionStats, len(tracked))
	for _, ts := range tracked {
		out[ts.QuestionHash] = model.StatsFor(ts.Record)
	}
	metrics.IncTrackerOp("list")
	return out, nil
}

// Clear removes the record for one key, reporting whether it existed.
func (t *trackerUC) Clear(ctx context.Context, sessionID, questionRef string) (bool, error) {
	existed, err := t.store.Delete(ctx, sessionID, QuestionDigest(questionRef))
	if err != nil {
		return false, fmt.Errorf("delete region record: %w", err)
	}
	metrics.IncTrackerOp("clear")
	return existed, nil
}
