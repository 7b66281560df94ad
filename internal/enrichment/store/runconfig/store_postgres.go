package runconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"enrichd/internal/enrichment/models"
	"enrichd/pkg/platform/sentinel"
)

// PostgresStore persists run configuration records.
//
// Schema:
//
//	CREATE TABLE enrichment_configs (
//	    id          TEXT PRIMARY KEY,
//	    entity_kind TEXT NOT NULL,
//	    priority    INTEGER NOT NULL,
//	    config      JSONB NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, record *models.ConfigRecord) error {
	raw, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	query := `
		INSERT INTO enrichment_configs (id, entity_kind, priority, config, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			entity_kind = EXCLUDED.entity_kind,
			priority = EXCLUDED.priority,
			config = EXCLUDED.config
	`
	if _, err := s.db.ExecContext(ctx, query,
		record.ID, record.EntityKind.String(), record.Priority, raw, record.CreatedAt); err != nil {
		return fmt.Errorf("put run config: %w", err)
	}
	return nil
}

func (s *PostgresStore) Resolve(ctx context.Context, kind models.EntityKind) (*models.ConfigRecord, error) {
	query := `
		SELECT id, entity_kind, priority, config, created_at
		FROM enrichment_configs
		WHERE entity_kind = $1
		ORDER BY priority DESC
		LIMIT 1
	`
	var (
		record models.ConfigRecord
		raw    []byte
	)
	err := s.db.QueryRowContext(ctx, query, kind.String()).Scan(
		&record.ID, &record.EntityKind, &record.Priority, &raw, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("resolve run config: %w", err)
	}
	if err := json.Unmarshal(raw, &record.Config); err != nil {
		return nil, fmt.Errorf("unmarshal run config: %w", err)
	}
	return &record, nil
}
