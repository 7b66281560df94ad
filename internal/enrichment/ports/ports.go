// Package ports defines shared interfaces for the enrichment module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication; implementations live under store/, providers/, dispatch/.
package ports

import (
	"context"
	"time"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Provider fetches one data type for an entity from an external source.
// Implementations are swappable; the orchestrator never depends on a
// concrete provider.
type Provider interface {
	// Fetch returns the provider's payload for the entity. The payload is
	// opaque to the pipeline.
	Fetch(ctx context.Context, entityID id.EntityID) (models.Payload, error)
}

// ProviderSet maps data types to their providers.
type ProviderSet map[models.DataType]Provider

// CacheStore persists provider payloads keyed by (data type, entity).
type CacheStore interface {
	// Get returns the entry if present and unexpired; sentinel.ErrNotFound
	// when absent or stale.
	Get(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error)

	// GetStale returns the entry regardless of expiry; sentinel.ErrNotFound
	// when absent. Used only by the use_cached fallback.
	GetStale(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error)

	// Set upserts an entry with the given TTL. Last writer wins per key.
	Set(ctx context.Context, dt models.DataType, entityID id.EntityID, payload models.Payload, confidence float64, ttl time.Duration) error

	// IsComplete reports whether every requested type has an unexpired entry.
	IsComplete(ctx context.Context, entityID id.EntityID, requested []models.DataType) (bool, error)

	// Stats returns operator-facing totals, including expired rows.
	Stats(ctx context.Context) (*models.CacheStats, error)

	// DeleteExpired removes expired entries and returns the count removed.
	DeleteExpired(ctx context.Context) (int, error)
}

// TaskStore persists enrichment tasks. Transition legality is enforced by
// the tracker service, not the store.
type TaskStore interface {
	Create(ctx context.Context, task *models.EnrichmentTask) error
	Get(ctx context.Context, taskID id.TaskID) (*models.EnrichmentTask, error)
	Update(ctx context.Context, task *models.EnrichmentTask) error
}

// ConfigStore persists default run configurations, resolved per entity
// kind in descending priority order.
type ConfigStore interface {
	Put(ctx context.Context, record *models.ConfigRecord) error
	// Resolve returns the highest-priority record for the kind, or
	// sentinel.ErrNotFound when none exists.
	Resolve(ctx context.Context, kind models.EntityKind) (*models.ConfigRecord, error)
}

// Dispatcher receives the validated merged result. It is fire-and-forget
// from the pipeline's perspective: errors are logged, never propagated.
type Dispatcher interface {
	Notify(ctx context.Context, entityID id.EntityID, kind models.EntityKind, merged map[models.DataType]models.Payload) error
}
