package dispatch

import (
	"context"
	"log/slog"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
)

// LogDispatcher is the no-broker fallback: it records what would have
// been published. Used in development and single-node deployments.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(ctx context.Context, entityID id.EntityID, kind models.EntityKind, merged map[models.DataType]models.Payload) error {
	if d.logger != nil {
		d.logger.InfoContext(ctx, "enrichment result ready for downstream",
			"entity_id", entityID,
			"entity_kind", kind,
			"data_types", len(merged),
		)
	}
	return nil
}
