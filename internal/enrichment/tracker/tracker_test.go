package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"enrichd/internal/enrichment/models"
	taskStore "enrichd/internal/enrichment/store/task"
	dErrors "enrichd/pkg/domain-errors"
)

// =============================================================================
// Task Tracker Test Suite
// =============================================================================
// Justification for unit tests: the tracker enforces the task state machine
// and per-task serialization; illegal transitions and concurrent progress
// updates are hard to provoke reliably through the orchestrator.

type TrackerSuite struct {
	suite.Suite
	store   *taskStore.InMemoryStore
	tracker *Tracker
	ctx     context.Context
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerSuite))
}

func (s *TrackerSuite) SetupTest() {
	s.store = taskStore.NewInMemory()
	s.ctx = context.Background()

	var err error
	s.tracker, err = New(s.store)
	s.Require().NoError(err)
}

func (s *TrackerSuite) start() *models.EnrichmentTask {
	task, err := s.tracker.Start(s.ctx, "pol-1", models.EntityKindPolicy,
		[]models.DataType{models.DataTypeCredit, models.DataTypeBackground}, false)
	s.Require().NoError(err)
	return task
}

func (s *TrackerSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
		s.Contains(err.Error(), "task store is required")
	})
}

// =============================================================================
// Lifecycle
// =============================================================================

func (s *TrackerSuite) TestStart() {
	task := s.start()
	s.Equal(models.TaskInProgress, task.Status)
	s.False(task.StartedAt.IsZero())
	s.Nil(task.CompletedAt)

	persisted, err := s.tracker.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskInProgress, persisted.Status)
}

func (s *TrackerSuite) TestProgressAndComplete() {
	task := s.start()

	s.Require().NoError(s.tracker.RecordCompleted(s.ctx, task.ID, models.DataTypeCredit))
	s.Require().NoError(s.tracker.RecordFailed(s.ctx, task.ID, models.DataTypeBackground))
	s.Require().NoError(s.tracker.Complete(s.ctx, task.ID, 72.5))

	got, err := s.tracker.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskCompleted, got.Status)
	s.Equal([]models.DataType{models.DataTypeCredit}, got.CompletedDataTypes)
	s.Equal([]models.DataType{models.DataTypeBackground}, got.FailedDataTypes)
	s.Require().NotNil(got.QualityScore)
	s.Equal(72.5, *got.QualityScore)
	s.NotNil(got.CompletedAt)
}

func (s *TrackerSuite) TestFail() {
	task := s.start()

	s.Require().NoError(s.tracker.Fail(s.ctx, task.ID, "credit: provider unavailable"))

	got, err := s.tracker.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskFailed, got.Status)
	s.Equal("credit: provider unavailable", got.ErrorDetail)
	s.NotNil(got.CompletedAt)
}

// =============================================================================
// State Machine Enforcement
// =============================================================================

func (s *TrackerSuite) TestIllegalTransitions() {
	s.Run("terminal states are immutable", func() {
		task := s.start()
		s.Require().NoError(s.tracker.Complete(s.ctx, task.ID, 90))

		err := s.tracker.Fail(s.ctx, task.ID, "too late")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		err = s.tracker.RecordCompleted(s.ctx, task.ID, models.DataTypeCredit)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("completed task keeps its first completion timestamp", func() {
		task := s.start()
		s.Require().NoError(s.tracker.Complete(s.ctx, task.ID, 90))

		got, err := s.tracker.Get(s.ctx, task.ID)
		s.Require().NoError(err)
		first := *got.CompletedAt

		_ = s.tracker.Complete(s.ctx, task.ID, 10)

		again, err := s.tracker.Get(s.ctx, task.ID)
		s.Require().NoError(err)
		s.Equal(first, *again.CompletedAt)
	})
}

// =============================================================================
// Concurrent Progress
// =============================================================================

func (s *TrackerSuite) TestConcurrentProgressUpdates() {
	task, err := s.tracker.Start(s.ctx, "pol-2", models.EntityKindPolicy, models.AllDataTypes(), true)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for _, dt := range models.AllDataTypes() {
		wg.Add(1)
		go func(dt models.DataType) {
			defer wg.Done()
			s.NoError(s.tracker.RecordCompleted(s.ctx, task.ID, dt))
		}(dt)
	}
	wg.Wait()

	got, err := s.tracker.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Len(got.CompletedDataTypes, 4)
	s.Equal(models.TaskInProgress, got.Status)
}
