// Package tracker owns the enrichment task lifecycle. All status changes
// go through it so the state machine stays monotonic and concurrent
// progress updates for one task never race.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"enrichd/internal/enrichment/models"
	"enrichd/internal/enrichment/ports"
	id "enrichd/pkg/domain"
	dErrors "enrichd/pkg/domain-errors"
	"enrichd/pkg/requestcontext"
)

type Store = ports.TaskStore

// Tracker serializes updates per task id. Fan-out fetch completions for a
// single run land here from multiple goroutines.
type Tracker struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[id.TaskID]*sync.Mutex
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func New(store Store, opts ...Option) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("task store is required")
	}

	t := &Tracker{
		store: store,
		locks: make(map[id.TaskID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start creates a task in pending and immediately transitions it to
// in_progress, returning the persisted record.
func (t *Tracker) Start(ctx context.Context, entityID id.EntityID, kind models.EntityKind, requested []models.DataType, autoEnrich bool) (*models.EnrichmentTask, error) {
	task := &models.EnrichmentTask{
		ID:                 id.NewTaskID(),
		EntityID:           entityID,
		EntityKind:         kind,
		Status:             models.TaskPending,
		RequestedDataTypes: requested,
		AutoEnrich:         autoEnrich,
		StartedAt:          requestcontext.Now(ctx),
	}
	if err := t.store.Create(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create enrichment task")
	}

	if err := t.transition(ctx, task.ID, models.TaskInProgress, func(*models.EnrichmentTask) {}); err != nil {
		return nil, err
	}
	task.Status = models.TaskInProgress
	return task, nil
}

// RecordCompleted marks one requested data type as obtained. Allowed only
// while the task is in_progress.
func (t *Tracker) RecordCompleted(ctx context.Context, taskID id.TaskID, dt models.DataType) error {
	return t.transition(ctx, taskID, models.TaskInProgress, func(task *models.EnrichmentTask) {
		task.CompletedDataTypes = appendType(task.CompletedDataTypes, dt)
	})
}

// RecordFailed marks one requested data type as failed. Allowed only while
// the task is in_progress.
func (t *Tracker) RecordFailed(ctx context.Context, taskID id.TaskID, dt models.DataType) error {
	return t.transition(ctx, taskID, models.TaskInProgress, func(task *models.EnrichmentTask) {
		task.FailedDataTypes = appendType(task.FailedDataTypes, dt)
	})
}

// Complete moves the task to its completed terminal state with the final
// quality score. Partial runs (non-empty failed set) still complete.
func (t *Tracker) Complete(ctx context.Context, taskID id.TaskID, score float64) error {
	return t.transition(ctx, taskID, models.TaskCompleted, func(task *models.EnrichmentTask) {
		s := score
		task.QualityScore = &s
	})
}

// Fail moves the task to its failed terminal state with the triggering error.
func (t *Tracker) Fail(ctx context.Context, taskID id.TaskID, detail string) error {
	return t.transition(ctx, taskID, models.TaskFailed, func(task *models.EnrichmentTask) {
		task.ErrorDetail = detail
	})
}

// Get returns the persisted task.
func (t *Tracker) Get(ctx context.Context, taskID id.TaskID) (*models.EnrichmentTask, error) {
	task, err := t.store.Get(ctx, taskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "enrichment task not found")
	}
	return task, nil
}

// transition applies mutate under the task's lock after checking the state
// machine. Terminal transitions stamp CompletedAt exactly once and release
// the per-task lock entry.
func (t *Tracker) transition(ctx context.Context, taskID id.TaskID, next models.TaskStatus, mutate func(*models.EnrichmentTask)) error {
	lock := t.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := t.store.Get(ctx, taskID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load enrichment task")
	}

	if !task.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("illegal task transition %s -> %s", task.Status, next))
	}

	mutate(task)
	task.Status = next
	if next.IsTerminal() {
		now := requestcontext.Now(ctx)
		task.CompletedAt = &now
	}

	if err := t.store.Update(ctx, task); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update enrichment task")
	}

	if next.IsTerminal() {
		t.release(taskID)
		if t.logger != nil {
			t.logger.InfoContext(ctx, "enrichment task finished",
				"task_id", taskID,
				"status", next,
				"duration_ms", durationMS(task),
			)
		}
	}
	return nil
}

func (t *Tracker) lockFor(taskID id.TaskID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[taskID] = lock
	}
	return lock
}

func (t *Tracker) release(taskID id.TaskID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locks, taskID)
}

func appendType(list []models.DataType, dt models.DataType) []models.DataType {
	for _, existing := range list {
		if existing == dt {
			return list
		}
	}
	return append(list, dt)
}

func durationMS(task *models.EnrichmentTask) int64 {
	if task.CompletedAt == nil {
		return 0
	}
	return task.CompletedAt.Sub(task.StartedAt).Milliseconds()
}
