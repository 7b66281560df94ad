package runconfig

import (
	"context"
	"sync"

	"enrichd/internal/enrichment/models"
	"enrichd/pkg/platform/sentinel"
)

// InMemoryStore holds default run configuration records.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.ConfigRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*models.ConfigRecord),
	}
}

func (s *InMemoryStore) Put(_ context.Context, record *models.ConfigRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records[record.ID] = &copied
	return nil
}

// Resolve returns the highest-priority record for the entity kind.
func (s *InMemoryStore) Resolve(_ context.Context, kind models.EntityKind) (*models.ConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.ConfigRecord
	for _, record := range s.records {
		if record.EntityKind != kind {
			continue
		}
		if best == nil || record.Priority > best.Priority {
			best = record
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *best
	return &copied, nil
}
