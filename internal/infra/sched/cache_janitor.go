// File: internal/infra/sched/cache_janitor.go
package sched

import (
	"context"
	"time"

	"math-eval-service/internal/infra/cache"

	"github.com/rs/zerolog"
)

// CacheJanitor periodically sweeps expired entries out of the response
// cache so a quiet cache does not pin stale values until the next read.
type CacheJanitor struct {
	cache    *cache.ResponseCache
	interval time.Duration
	log      *zerolog.Logger
}

func NewCacheJanitor(c *cache.ResponseCache, interval time.Duration, log *zerolog.Logger) *CacheJanitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheJanitor{cache: c, interval: interval, log: log}
}

// Start blocks until ctx is cancelled. Run it in a goroutine.
func (j *CacheJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.Info().Dur("interval", j.interval).Msg("cache janitor started")
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("cache janitor stopping")
			return
		case <-ticker.C:
			if removed := j.cache.Sweep(); removed > 0 {
				j.log.Debug().Int("removed", removed).Msg("swept expired cache entries")
			}
		}
	}
}
