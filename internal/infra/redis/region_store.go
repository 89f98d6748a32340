package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"math-eval-service/internal/domain"
	"math-eval-service/internal/domain/model"
	"math-eval-service/internal/domain/ports/repository"

	goredis "github.com/go-redis/redis/v8"
)

var _ repository.RegionStore = (*RegionStore)(nil)

// RegionStore keeps cumulative-region records in Redis under
// bbox:session:<sessionID>:question:<hash> keys with a sliding TTL.
type RegionStore struct {
	client RedisClient
}

func NewRegionStore(client RedisClient) *RegionStore {
	return &RegionStore{client: client}
}

func regionKey(sessionID, questionHash string) string {
	return fmt.Sprintf("bbox:session:%s:question:%s", sessionID, questionHash)
}

func (s *RegionStore) Get(ctx context.Context, sessionID, questionHash string) (*model.CumulativeRegion, error) {
	data, err := s.client.Get(ctx, regionKey(sessionID, questionHash))
	if err != nil {
		if err == goredis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("region store get: %w", err)
	}

	var rec model.CumulativeRegion
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("region store decode: %w", err)
	}
	return &rec, nil
}

func (s *RegionStore) Set(ctx context.Context, sessionID, questionHash string, rec *model.CumulativeRegion, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("region store encode: %w", err)
	}
	// Writing with the full expiration resets the sliding TTL.
	return s.client.Set(ctx, regionKey(sessionID, questionHash), data, ttl)
}

func (s *RegionStore) Delete(ctx context.Context, sessionID, questionHash string) (bool, error) {
	n, err := s.client.Del(ctx, regionKey(sessionID, questionHash))
	if err != nil {
		return false, fmt.Errorf("region store delete: %w", err)
	}
	return n > 0, nil
}

func (s *RegionStore) ScanSession(ctx context.Context, sessionID string) ([]repository.TrackedSession, error) {
	pattern := regionKey(sessionID, "*")
	keys, err := s.client.Keys(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("region store scan: %w", err)
	}

	out := make([]repository.TrackedSession, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key)
		if err != nil {
			if err == goredis.Nil {
				continue // expired between KEYS and GET
			}
			return nil, fmt.Errorf("region store scan get: %w", err)
		}
		var rec model.CumulativeRegion
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		parts := strings.Split(key, ":")
		out = append(out, repository.TrackedSession{
			QuestionHash: parts[len(parts)-1],
			Record:       &rec,
		})
	}
	return out, nil
}
