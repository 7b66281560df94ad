// Package service contains the pipeline orchestrator: given an entity and
// a run configuration it drives cache lookup, provider fan-out, fallback
// handling, cross-source validation, scoring, cache writes, task
// bookkeeping, and downstream dispatch.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	enrichcfg "enrichd/internal/enrichment/config"
	"enrichd/internal/enrichment/metrics"
	"enrichd/internal/enrichment/models"
	"enrichd/internal/enrichment/ports"
	"enrichd/internal/enrichment/quality"
	"enrichd/internal/enrichment/tracker"
	id "enrichd/pkg/domain"
	dErrors "enrichd/pkg/domain-errors"
	"enrichd/pkg/platform/circuit"
	"enrichd/pkg/platform/sentinel"
	"enrichd/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	CacheStore  = ports.CacheStore
	ConfigStore = ports.ConfigStore
	Dispatcher  = ports.Dispatcher
	ProviderSet = ports.ProviderSet
)

type Service struct {
	cache      CacheStore
	tracker    *tracker.Tracker
	providers  ProviderSet
	dispatcher Dispatcher
	configs    ConfigStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
	rules      []Rule
	breakers   map[models.DataType]*circuit.Breaker

	providerTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func WithConfigStore(store ConfigStore) Option {
	return func(s *Service) {
		s.configs = store
	}
}

// WithRules appends cross-source validation rules to the defaults.
func WithRules(rules ...Rule) Option {
	return func(s *Service) {
		s.rules = append(s.rules, rules...)
	}
}

func WithProviderTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.providerTimeout = timeout
		}
	}
}

func New(cache CacheStore, taskTracker *tracker.Tracker, providers ProviderSet, opts ...Option) (*Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if taskTracker == nil {
		return nil, fmt.Errorf("task tracker is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	breakers := make(map[models.DataType]*circuit.Breaker, len(providers))
	for dt := range providers {
		breakers[dt] = circuit.New(string(dt),
			circuit.WithFailureThreshold(enrichcfg.BreakerFailureThreshold),
			circuit.WithSuccessThreshold(enrichcfg.BreakerSuccessThreshold),
		)
	}

	svc := &Service{
		cache:           cache,
		tracker:         taskTracker,
		providers:       providers,
		rules:           DefaultRules(),
		breakers:        breakers,
		providerTimeout: enrichcfg.ProviderTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Enrich runs the full pipeline for one entity. The returned result is
// completed or partial; manual_review aborts and store failures return an
// error instead.
func (s *Service) Enrich(ctx context.Context, entityID id.EntityID, kind models.EntityKind, cfg *models.RunConfig) (*models.EnrichmentResult, error) {
	if entityID.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity kind must be 'policy' or 'claim'")
	}

	runCfg := s.resolveConfig(ctx, kind, cfg)
	requested := enrichcfg.NormalizeDataTypes(kind, runCfg.DataTypes)

	task, err := s.tracker.Start(ctx, entityID, kind, requested, runCfg.AutoEnrich)
	if err != nil {
		return nil, err
	}

	result, err := s.run(ctx, task, entityID, kind, requested, runCfg)
	if err != nil {
		s.failTask(ctx, task.ID, err)
		if s.metrics != nil {
			s.metrics.ObserveRun("failed")
		}
		return nil, err
	}

	if err := s.tracker.Complete(ctx, task.ID, result.QualityScore); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(string(result.Status))
		s.metrics.ObserveQuality(result.QualityScore)
	}

	s.dispatch(ctx, entityID, kind, result.Data)
	return result, nil
}

// run executes steps 2-7 of the pipeline: cache probe, fan-out, fallback,
// validation, scoring, and cache writes. Task progress is recorded along
// the way; terminal transitions belong to the caller.
func (s *Service) run(ctx context.Context, task *models.EnrichmentTask, entityID id.EntityID, kind models.EntityKind, requested []models.DataType, runCfg models.RunConfig) (*models.EnrichmentResult, error) {
	result := &models.EnrichmentResult{
		TaskID:     task.ID,
		EntityID:   entityID,
		EntityKind: kind,
		Data:       make(map[models.DataType]models.Payload, len(requested)),
		FromCache:  make(map[models.DataType]bool, len(requested)),
		Confidence: make(map[models.DataType]float64, len(requested)),
	}
	ages := make(map[models.DataType]time.Duration, len(requested))
	now := requestcontext.Now(ctx)

	// Cache probe. Fresh hits are merged up front; only the remainder
	// goes to providers.
	var toFetch []models.DataType
	for _, dt := range requested {
		entry, err := s.cache.Get(ctx, dt, entityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				if s.metrics != nil {
					s.metrics.IncrementCacheMiss()
				}
				toFetch = append(toFetch, dt)
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cache read failed")
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheHit()
		}
		result.Data[dt] = entry.Payload
		result.FromCache[dt] = true
		result.Confidence[dt] = entry.ConfidenceScore
		ages[dt] = now.Sub(entry.UpdatedAt)
		if err := s.tracker.RecordCompleted(ctx, task.ID, dt); err != nil {
			return nil, err
		}
	}

	// Short-circuit: every requested type satisfied from cache. No
	// provider calls; the score comes from stored confidences alone.
	if len(toFetch) == 0 {
		confidences := make([]float64, 0, len(requested))
		for _, dt := range requested {
			confidences = append(confidences, result.Confidence[dt])
		}
		result.QualityScore = quality.FromCachedConfidence(confidences)
		result.Status = models.ResultCompleted
		result.Notices = s.validate(result.Data)
		return result, nil
	}

	outcomes, err := s.fanOut(ctx, entityID, toFetch, runCfg.FallbackBehavior)
	if err != nil {
		// manual_review abort: no partial cache writes for this run.
		return nil, err
	}

	var fresh []models.DataType
	for _, outcome := range outcomes {
		switch {
		case outcome.err == nil:
			result.Data[outcome.dataType] = outcome.payload
			result.Confidence[outcome.dataType] = 1.0
			ages[outcome.dataType] = 0
			fresh = append(fresh, outcome.dataType)
			if err := s.tracker.RecordCompleted(ctx, task.ID, outcome.dataType); err != nil {
				return nil, err
			}

		case runCfg.FallbackBehavior == models.FallbackUseCached:
			if done, err := s.substituteStale(ctx, task.ID, entityID, outcome, result, ages); err != nil {
				return nil, err
			} else if done {
				continue
			}
			// No stale entry; behaves as skip.
			fallthrough

		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", outcome.dataType, outcome.err))
			if err := s.tracker.RecordFailed(ctx, task.ID, outcome.dataType); err != nil {
				return nil, err
			}
		}
	}

	result.Notices = append(result.Notices, s.validate(result.Data)...)
	result.QualityScore = quality.Score(quality.Input{Data: result.Data, Ages: ages})

	// Persist only freshly fetched types, each with its retention window
	// and the run's confidence.
	confidence := result.QualityScore / 100
	for _, dt := range fresh {
		ttl := enrichcfg.RetentionWindow(dt)
		if err := s.cache.Set(ctx, dt, entityID, result.Data[dt], confidence, ttl); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cache write failed")
		}
	}

	if len(result.Errors) > 0 {
		result.Status = models.ResultPartial
	} else {
		result.Status = models.ResultCompleted
	}
	return result, nil
}

// substituteStale applies the use_cached fallback for one failed type:
// any prior value counts, regardless of age, at reduced confidence.
// Returns false when no prior value exists.
func (s *Service) substituteStale(ctx context.Context, taskID id.TaskID, entityID id.EntityID, outcome fetchOutcome, result *models.EnrichmentResult, ages map[models.DataType]time.Duration) (bool, error) {
	entry, err := s.cache.GetStale(ctx, outcome.dataType, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "stale cache read failed")
	}

	dt := outcome.dataType
	result.Data[dt] = entry.Payload
	result.FromCache[dt] = true
	result.Confidence[dt] = entry.ConfidenceScore * enrichcfg.StaleConfidencePenalty
	result.Notices = append(result.Notices, models.ValidationNotice{
		Rule:    "stale_cache_substituted",
		Message: fmt.Sprintf("%s: provider failed, substituted cache entry from %s", dt, entry.UpdatedAt.Format(time.RFC3339)),
	})
	ages[dt] = requestcontext.Now(ctx).Sub(entry.UpdatedAt)

	if err := s.tracker.RecordCompleted(ctx, taskID, dt); err != nil {
		return false, err
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "substituted stale cache entry",
			"entity_id", entityID,
			"data_type", dt,
			"entry_age", ages[dt].String(),
			"provider_error", outcome.err,
		)
	}
	return true, nil
}

// resolveConfig picks the run configuration: caller-supplied first, then
// the highest-priority persisted record for the kind, then defaults.
func (s *Service) resolveConfig(ctx context.Context, kind models.EntityKind, cfg *models.RunConfig) models.RunConfig {
	var out models.RunConfig
	switch {
	case cfg != nil:
		out = *cfg
	case s.configs != nil:
		record, err := s.configs.Resolve(ctx, kind)
		if err == nil {
			out = record.Config
		} else if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "run config resolution failed, using defaults",
				"entity_kind", kind,
				"error", err,
			)
		}
	}

	if !out.FallbackBehavior.IsValid() {
		out.FallbackBehavior = models.FallbackSkip
	}
	if len(out.DataTypes) == 0 {
		out.DataTypes = enrichcfg.DefaultDataTypes(kind)
	}
	return out
}

func (s *Service) validate(data map[models.DataType]models.Payload) []models.ValidationNotice {
	var notices []models.ValidationNotice
	for _, rule := range s.rules {
		notices = append(notices, rule(data)...)
	}
	return notices
}

// dispatch hands the merged result downstream. Failures are logged and
// counted; they never change the enrichment outcome.
func (s *Service) dispatch(ctx context.Context, entityID id.EntityID, kind models.EntityKind, merged map[models.DataType]models.Payload) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Notify(ctx, entityID, kind, merged); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementDispatchFailure()
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "downstream dispatch failed",
				"entity_id", entityID,
				"entity_kind", kind,
				"error", err,
			)
		}
	}
}

// failTask marks the task failed, best effort: if bookkeeping itself is
// broken the original error still reaches the caller.
func (s *Service) failTask(ctx context.Context, taskID id.TaskID, cause error) {
	if err := s.tracker.Fail(ctx, taskID, cause.Error()); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to mark task failed",
			"task_id", taskID,
			"error", err,
		)
	}
}
