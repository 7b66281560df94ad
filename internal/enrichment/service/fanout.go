package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
	dErrors "enrichd/pkg/domain-errors"
	"enrichd/pkg/platform/circuit"
)

// fetchOutcome is one provider call's result, success or failure.
type fetchOutcome struct {
	dataType models.DataType
	payload  models.Payload
	err      error
}

// fanOut fetches the given data types concurrently, one goroutine per
// type. Each fetch has an independent timeout so a slow provider never
// blocks its siblings.
//
// Under skip and use_cached, failures are isolated: every goroutine
// reports its outcome and returns nil, and the caller applies fallback
// per type. Under manual_review the group shares a cancellable context:
// the first failure cancels the remaining fetches and aborts the run.
func (s *Service) fanOut(parent context.Context, entityID id.EntityID, types []models.DataType, fallback models.FallbackBehavior) ([]fetchOutcome, error) {
	outcomes := make([]fetchOutcome, len(types))

	var g *errgroup.Group
	ctx := parent
	abortOnFailure := fallback == models.FallbackManualReview
	if abortOnFailure {
		g, ctx = errgroup.WithContext(parent)
	} else {
		g = &errgroup.Group{}
	}

	for i, dt := range types {
		// Each goroutine owns outcomes[i]; no lock needed on the slice.
		g.Go(func() error {
			outcome := s.fetchOne(ctx, dt, entityID)
			outcomes[i] = outcome
			if abortOnFailure && outcome.err != nil {
				return dErrors.Wrap(outcome.err, dErrors.CodeManualReview,
					fmt.Sprintf("manual review required: %s fetch failed", dt))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// fetchOne runs a single provider call under its own timeout, guarded by
// the provider's circuit breaker: an open breaker fails fast so the
// configured fallback applies without waiting out the timeout.
func (s *Service) fetchOne(ctx context.Context, dt models.DataType, entityID id.EntityID) fetchOutcome {
	provider, ok := s.providers[dt]
	if !ok {
		return fetchOutcome{dataType: dt, err: fmt.Errorf("no provider configured for %s", dt)}
	}

	breaker := s.breakers[dt]
	if breaker != nil && breaker.IsOpen() {
		if s.metrics != nil {
			s.metrics.ObserveFetch(string(dt), "short_circuited", 0)
		}
		return fetchOutcome{dataType: dt, err: fmt.Errorf("provider circuit open for %s", dt)}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	start := time.Now()
	payload, err := provider.Fetch(fetchCtx, entityID)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if s.metrics != nil {
		s.metrics.ObserveFetch(string(dt), outcome, elapsed)
	}
	// A failure after the run's context is done says nothing about the
	// provider: a sibling abort under manual_review cancels healthy
	// fetches, and counting those would open their breakers.
	if err == nil || ctx.Err() == nil {
		s.recordBreaker(ctx, breaker, err)
	}
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "provider fetch failed",
			"data_type", dt,
			"entity_id", entityID,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
	}
	return fetchOutcome{dataType: dt, payload: payload, err: err}
}

// recordBreaker feeds the call outcome to the breaker and logs open/close
// transitions exactly once.
func (s *Service) recordBreaker(ctx context.Context, breaker *circuit.Breaker, err error) {
	if breaker == nil {
		return
	}
	if err != nil {
		if _, change := breaker.RecordFailure(); change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "provider circuit opened", "provider", breaker.Name())
		}
		return
	}
	if _, change := breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "provider circuit closed", "provider", breaker.Name())
	}
}
