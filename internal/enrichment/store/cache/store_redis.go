package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
	"enrichd/pkg/platform/sentinel"
	"enrichd/pkg/requestcontext"
)

const (
	// Redis key prefix for enrichment cache entries.
	cacheKeyPrefix = "enrich:cache:"

	// Entries outlive their freshness window so stale lookups keep working.
	// Redis eviction is a hard floor well past every retention window.
	redisHardTTL = 90 * 24 * time.Hour
)

// RedisStore is the Redis-backed cache implementation for distributed
// deployments where multiple instances share cache state.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type redisEntry struct {
	Payload    models.Payload `json:"payload"`
	Confidence float64        `json:"confidence"`
	ValidUntil time.Time      `json:"valid_until"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func cacheKey(dt models.DataType, entityID id.EntityID) string {
	return fmt.Sprintf("%s%s:%s", cacheKeyPrefix, dt, entityID)
}

func (s *RedisStore) Get(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error) {
	entry, err := s.GetStale(ctx, dt, entityID)
	if err != nil {
		return nil, err
	}
	if !entry.IsFresh(requestcontext.Now(ctx)) {
		return nil, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *RedisStore) GetStale(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error) {
	raw, err := s.client.Get(ctx, cacheKey(dt, entityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return &models.CacheEntry{
		DataType:        dt,
		EntityID:        entityID,
		Payload:         stored.Payload,
		ConfidenceScore: stored.Confidence,
		ValidUntil:      stored.ValidUntil,
		UpdatedAt:       stored.UpdatedAt,
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, dt models.DataType, entityID id.EntityID, payload models.Payload, confidence float64, ttl time.Duration) error {
	now := requestcontext.Now(ctx)
	raw, err := json.Marshal(redisEntry{
		Payload:    payload,
		Confidence: confidence,
		ValidUntil: now.Add(ttl),
		UpdatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, cacheKey(dt, entityID), raw, redisHardTTL).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (s *RedisStore) IsComplete(ctx context.Context, entityID id.EntityID, requested []models.DataType) (bool, error) {
	if len(requested) == 0 {
		return true, nil
	}

	// Pipeline the reads; each entry still needs its own freshness check
	// because expiry is payload data, not redis TTL.
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(requested))
	for i, dt := range requested {
		cmds[i] = pipe.Get(ctx, cacheKey(dt, entityID))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("check cache completeness: %w", err)
	}

	now := requestcontext.Now(ctx)
	for _, cmd := range cmds {
		raw, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("check cache completeness: %w", err)
		}
		var stored redisEntry
		if err := json.Unmarshal(raw, &stored); err != nil {
			return false, fmt.Errorf("check cache completeness: %w", err)
		}
		if !now.Before(stored.ValidUntil) {
			return false, nil
		}
	}
	return true, nil
}

func (s *RedisStore) Stats(ctx context.Context) (*models.CacheStats, error) {
	now := requestcontext.Now(ctx)
	byType := make(map[models.DataType]*models.DataTypeStats)
	stats := &models.CacheStats{}

	if err := s.scan(ctx, func(key string, stored redisEntry) error {
		dt := typeFromKey(key)
		ts, ok := byType[dt]
		if !ok {
			ts = &models.DataTypeStats{DataType: dt}
			byType[dt] = ts
		}
		ts.Entries++
		stats.TotalEntries++
		if !now.Before(stored.ValidUntil) {
			ts.Expired++
			stats.ExpiredEntries++
		}
		return nil
	}); err != nil {
		return nil, err
	}

	for _, dt := range models.AllDataTypes() {
		if ts, ok := byType[dt]; ok {
			stats.ByDataType = append(stats.ByDataType, *ts)
		}
	}
	return stats, nil
}

func (s *RedisStore) DeleteExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	deleted := 0
	if err := s.scan(ctx, func(key string, stored redisEntry) error {
		if !now.Before(stored.ValidUntil) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return fmt.Errorf("delete expired cache entry: %w", err)
			}
			deleted++
		}
		return nil
	}); err != nil {
		return 0, err
	}
	return deleted, nil
}

// scan iterates every cache entry, invoking fn per decoded entry.
func (s *RedisStore) scan(ctx context.Context, fn func(key string, stored redisEntry) error) error {
	iter := s.client.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan cache entries: %w", err)
		}
		var stored redisEntry
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("scan cache entries: %w", err)
		}
		if err := fn(key, stored); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache entries: %w", err)
	}
	return nil
}

// typeFromKey recovers the data type segment of "enrich:cache:<type>:<entity>".
func typeFromKey(key string) models.DataType {
	rest := key[len(cacheKeyPrefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return models.DataType(rest[:i])
		}
	}
	return models.DataType(rest)
}
