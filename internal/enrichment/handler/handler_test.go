package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"enrichd/internal/enrichment/handler/mocks"
	"enrichd/internal/enrichment/models"
	"enrichd/internal/enrichment/store/cache"
	id "enrichd/pkg/domain"
	dErrors "enrichd/pkg/domain-errors"
	"enrichd/pkg/requestcontext"
	"enrichd/pkg/testutil"
)

// =============================================================================
// Enrichment Handler Test Suite
// =============================================================================
// Justification for unit tests: the handler owns URL/body parsing and
// error-to-status mapping; pipeline behavior itself is mocked.

type HandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *HandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, chi.Router, *mocks.MockService, *mocks.MockTaskReader, *cache.InMemoryStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	service := mocks.NewMockService(ctrl)
	tasks := mocks.NewMockTaskReader(ctrl)
	cacheStore := cache.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(service, tasks, cacheStore, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	return h, r, service, tasks, cacheStore
}

func (s *HandlerSuite) TestEnrichWithBody() {
	_, router, service, _, _ := newTestHandler(s.T())

	taskID := id.NewTaskID()
	service.EXPECT().
		Enrich(gomock.Any(), id.EntityID("POL-1001"), models.EntityKindPolicy, &models.RunConfig{
			DataTypes:        []models.DataType{models.DataTypeCredit},
			FallbackBehavior: models.FallbackUseCached,
		}).
		Return(&models.EnrichmentResult{
			TaskID:       taskID,
			EntityID:     id.EntityID("POL-1001"),
			EntityKind:   models.EntityKindPolicy,
			Status:       models.ResultCompleted,
			QualityScore: 92.5,
		}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/enrichment/policy/POL-1001", EnrichRequest{
		DataTypes:        []string{"credit"},
		FallbackBehavior: "use_cached",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "status", "completed")
	testutil.AssertJSONContains(s.T(), rr, "quality_score", 92.5)
	testutil.AssertJSONContains(s.T(), rr, "task_id", taskID.String())
}

func (s *HandlerSuite) TestEnrichWithoutBodyUsesDefaults() {
	_, router, service, _, _ := newTestHandler(s.T())

	service.EXPECT().
		Enrich(gomock.Any(), id.EntityID("CLM-2001"), models.EntityKindClaim, nil).
		Return(&models.EnrichmentResult{
			TaskID:     id.NewTaskID(),
			EntityID:   id.EntityID("CLM-2001"),
			EntityKind: models.EntityKindClaim,
			Status:     models.ResultCompleted,
		}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodPost, "/enrichment/claim/CLM-2001"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *HandlerSuite) TestEnrichRejectsUnknownKind() {
	_, router, _, _, _ := newTestHandler(s.T())

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodPost, "/enrichment/vendor/X-1"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func (s *HandlerSuite) TestEnrichRejectsUnknownDataType() {
	_, router, _, _, _ := newTestHandler(s.T())

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/enrichment/policy/POL-1", `{"data_types":["astrology"]}`)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestEnrichMapsManualReviewToConflict() {
	_, router, service, _, _ := newTestHandler(s.T())

	service.EXPECT().
		Enrich(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeManualReview, "manual review required: credit fetch failed"))

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodPost, "/enrichment/policy/POL-1"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeManualReview))
}

func (s *HandlerSuite) TestGetTask() {
	_, router, _, tasks, _ := newTestHandler(s.T())

	taskID := id.NewTaskID()
	score := 88.0
	tasks.EXPECT().
		Get(gomock.Any(), taskID).
		Return(&models.EnrichmentTask{
			ID:           taskID,
			EntityID:     id.EntityID("POL-1001"),
			EntityKind:   models.EntityKindPolicy,
			Status:       models.TaskCompleted,
			QualityScore: &score,
		}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/enrichment/tasks/"+taskID.String()))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "status", "completed")
	testutil.AssertJSONContains(s.T(), rr, "quality_score", 88.0)
}

func (s *HandlerSuite) TestGetTaskRejectsMalformedID() {
	_, router, _, _, _ := newTestHandler(s.T())

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/enrichment/tasks/not-a-uuid"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func (s *HandlerSuite) TestGetTaskNotFound() {
	_, router, _, tasks, _ := newTestHandler(s.T())

	taskID := id.NewTaskID()
	tasks.EXPECT().
		Get(gomock.Any(), taskID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "enrichment task not found"))

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/enrichment/tasks/"+taskID.String()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func (s *HandlerSuite) TestCacheStats() {
	_, router, _, _, cacheStore := newTestHandler(s.T())

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, now)
	err := cacheStore.Set(ctx, models.DataTypeCredit, id.EntityID("POL-1"), models.Payload{"credit_score": 700}, 0.9, 30*24*time.Hour)
	s.Require().NoError(err)

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/enrichment/cache/stats"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "total_entries", 1.0)
}

func (s *HandlerSuite) TestClearExpired() {
	_, router, _, _, cacheStore := newTestHandler(s.T())

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	testutil.Given(s.T(), "one cache entry well past its retention window", func(t *testing.T) {
		seedCtx := requestcontext.WithTime(s.ctx, now.Add(-60*24*time.Hour))
		err := cacheStore.Set(seedCtx, models.DataTypeCredit, id.EntityID("POL-1"), models.Payload{"credit_score": 700}, 0.9, 30*24*time.Hour)
		s.Require().NoError(err)
	})

	testutil.When(s.T(), "an operator clears expired entries", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/admin/enrichment/cache/clear-expired"))

		testutil.Then(t, "the deleted count is reported", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusOK)
			testutil.AssertJSONContains(t, rr, "deleted_count", 1.0)
		})
	})
}
