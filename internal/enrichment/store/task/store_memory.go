package task

import (
	"context"
	"sync"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
	"enrichd/pkg/platform/sentinel"
)

// InMemoryStore keeps tasks in a map. Used by unit tests and single-node
// development; production uses PostgresStore.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[id.TaskID]*models.EnrichmentTask
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		tasks: make(map[id.TaskID]*models.EnrichmentTask),
	}
}

func (s *InMemoryStore) Create(_ context.Context, task *models.EnrichmentTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return sentinel.ErrConflict
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, taskID id.TaskID) (*models.EnrichmentTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneTask(task), nil
}

func (s *InMemoryStore) Update(_ context.Context, task *models.EnrichmentTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// cloneTask copies a task so callers never share slices with the store.
func cloneTask(task *models.EnrichmentTask) *models.EnrichmentTask {
	out := *task
	out.RequestedDataTypes = append([]models.DataType(nil), task.RequestedDataTypes...)
	out.CompletedDataTypes = append([]models.DataType(nil), task.CompletedDataTypes...)
	out.FailedDataTypes = append([]models.DataType(nil), task.FailedDataTypes...)
	if task.QualityScore != nil {
		score := *task.QualityScore
		out.QualityScore = &score
	}
	if task.CompletedAt != nil {
		at := *task.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}
