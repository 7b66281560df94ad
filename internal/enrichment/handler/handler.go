// Package handler exposes the enrichment pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"enrichd/internal/enrichment/models"
	"enrichd/internal/enrichment/ports"
	id "enrichd/pkg/domain"
	dErrors "enrichd/pkg/domain-errors"
	"enrichd/pkg/platform/httputil"
	"enrichd/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks

// Service defines the interface for running the pipeline.
type Service interface {
	Enrich(ctx context.Context, entityID id.EntityID, kind models.EntityKind, cfg *models.RunConfig) (*models.EnrichmentResult, error)
}

// TaskReader looks up enrichment task state.
type TaskReader interface {
	Get(ctx context.Context, taskID id.TaskID) (*models.EnrichmentTask, error)
}

// Handler wires enrichment endpoints to the pipeline service.
type Handler struct {
	service Service
	tasks   TaskReader
	cache   ports.CacheStore
	logger  *slog.Logger
}

// New constructs an enrichment handler with its dependencies.
func New(service Service, tasks TaskReader, cache ports.CacheStore, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		tasks:   tasks,
		cache:   cache,
		logger:  logger,
	}
}

// Register mounts the public enrichment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/enrichment/{kind}/{entityID}", h.handleEnrich)
	r.Get("/enrichment/tasks/{taskID}", h.handleGetTask)
}

// RegisterAdmin mounts operator endpoints. The caller decides what guards
// the /admin subtree.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/enrichment/cache/stats", h.handleCacheStats)
	r.Post("/admin/enrichment/cache/clear-expired", h.handleClearExpired)
}

// EnrichRequest is the optional request body for POST /enrichment. An
// empty body runs with persisted or built-in defaults.
type EnrichRequest struct {
	DataTypes        []string `json:"data_types,omitempty"`
	FallbackBehavior string   `json:"fallback_behavior,omitempty"`
	AutoEnrich       bool     `json:"auto_enrich,omitempty"`
}

func (req *EnrichRequest) runConfig() (*models.RunConfig, error) {
	cfg := &models.RunConfig{AutoEnrich: req.AutoEnrich}

	for _, raw := range req.DataTypes {
		dt, err := models.ParseDataType(raw)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, err.Error())
		}
		cfg.DataTypes = append(cfg.DataTypes, dt)
	}
	if req.FallbackBehavior != "" {
		fb, err := models.ParseFallbackBehavior(req.FallbackBehavior)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, err.Error())
		}
		cfg.FallbackBehavior = fb
	}
	return cfg, nil
}

// handleEnrich handles POST /enrichment/{kind}/{entityID} requests.
func (h *Handler) handleEnrich(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	kind, err := models.ParseEntityKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, err.Error()))
		return
	}
	entityID := id.EntityID(chi.URLParam(r, "entityID"))

	var cfg *models.RunConfig
	if r.ContentLength != 0 {
		req, ok := httputil.Decode[EnrichRequest](w, r, h.logger)
		if !ok {
			return
		}
		cfg, err = req.runConfig()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	result, err := h.service.Enrich(ctx, entityID, kind, cfg)
	if err != nil {
		h.logger.ErrorContext(ctx, "enrichment run failed",
			"request_id", requestID,
			"entity_kind", kind,
			"entity_id", entityID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "enrichment run finished",
		"request_id", requestID,
		"entity_kind", kind,
		"entity_id", entityID,
		"task_id", result.TaskID,
		"status", result.Status,
		"quality_score", result.QualityScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleGetTask handles GET /enrichment/tasks/{taskID} requests.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, err := id.ParseTaskID(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "task id must be a UUID"))
		return
	}

	task, err := h.tasks.Get(ctx, taskID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

// handleCacheStats handles GET /admin/enrichment/cache/stats requests.
func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "cache stats failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "cache stats failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// handleClearExpired handles POST /admin/enrichment/cache/clear-expired requests.
func (h *Handler) handleClearExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.cache.DeleteExpired(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "cache cleanup failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "cache cleanup failed"))
		return
	}

	h.logger.InfoContext(ctx, "expired cache entries removed", "count", removed)
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"deleted_count": removed})
}
