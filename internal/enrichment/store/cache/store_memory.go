package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
	"enrichd/pkg/requestcontext"
	"enrichd/pkg/platform/sentinel"
)

type key struct {
	dataType models.DataType
	entityID id.EntityID
}

// InMemoryStore keeps cache entries in a map. Expired entries are kept
// until DeleteExpired so stale lookups still work, matching the durable
// implementations.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[key]*models.CacheEntry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[key]*models.CacheEntry),
	}
}

func (s *InMemoryStore) Get(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[key{dt, entityID}]
	if !exists || !entry.IsFresh(requestcontext.Now(ctx)) {
		return nil, sentinel.ErrNotFound
	}
	return cloneEntry(entry), nil
}

func (s *InMemoryStore) GetStale(_ context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[key{dt, entityID}]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneEntry(entry), nil
}

func (s *InMemoryStore) Set(ctx context.Context, dt models.DataType, entityID id.EntityID, payload models.Payload, confidence float64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	s.entries[key{dt, entityID}] = &models.CacheEntry{
		DataType:        dt,
		EntityID:        entityID,
		Payload:         clonePayload(payload),
		ConfidenceScore: confidence,
		ValidUntil:      now.Add(ttl),
		UpdatedAt:       now,
	}
	return nil
}

func (s *InMemoryStore) IsComplete(ctx context.Context, entityID id.EntityID, requested []models.DataType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := requestcontext.Now(ctx)
	for _, dt := range requested {
		entry, exists := s.entries[key{dt, entityID}]
		if !exists || !entry.IsFresh(now) {
			return false, nil
		}
	}
	return true, nil
}

func (s *InMemoryStore) Stats(ctx context.Context) (*models.CacheStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := requestcontext.Now(ctx)
	byType := make(map[models.DataType]*models.DataTypeStats)
	stats := &models.CacheStats{}

	for k, entry := range s.entries {
		ts, ok := byType[k.dataType]
		if !ok {
			ts = &models.DataTypeStats{DataType: k.dataType}
			byType[k.dataType] = ts
		}
		ts.Entries++
		stats.TotalEntries++
		if !entry.IsFresh(now) {
			ts.Expired++
			stats.ExpiredEntries++
		}
	}

	for _, ts := range byType {
		stats.ByDataType = append(stats.ByDataType, *ts)
	}
	sort.Slice(stats.ByDataType, func(i, j int) bool {
		return stats.ByDataType[i].DataType < stats.ByDataType[j].DataType
	})
	return stats, nil
}

func (s *InMemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	deleted := 0
	for k, entry := range s.entries {
		if !entry.IsFresh(now) {
			delete(s.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

func cloneEntry(entry *models.CacheEntry) *models.CacheEntry {
	out := *entry
	out.Payload = clonePayload(entry.Payload)
	return &out
}

func clonePayload(payload models.Payload) models.Payload {
	out := make(models.Payload, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
