// Package sweeper removes expired cache entries in the background so the
// stale window for use_cached substitution stays bounded by storage, not
// by unbounded growth.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"enrichd/internal/enrichment/ports"
)

type Sweeper struct {
	cache  ports.CacheStore
	logger *slog.Logger
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func New(cache ports.CacheStore, opts ...Option) (*Sweeper, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	s := &Sweeper{cache: cache}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps on the given interval until ctx is cancelled. Sweep errors
// are logged and the loop continues; a flaky store must not stop cleanup.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := s.cache.DeleteExpired(ctx)
			if err != nil {
				if s.logger != nil {
					s.logger.ErrorContext(ctx, "cache sweep failed", "error", err)
				}
				continue
			}
			if removed > 0 && s.logger != nil {
				s.logger.InfoContext(ctx, "cache sweep removed expired entries", "count", removed)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
