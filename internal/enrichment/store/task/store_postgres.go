package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
	"enrichd/pkg/platform/sentinel"
)

// PostgresStore persists enrichment tasks in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE enrichment_tasks (
//	    id                   UUID PRIMARY KEY,
//	    entity_id            TEXT NOT NULL,
//	    entity_kind          TEXT NOT NULL,
//	    status               TEXT NOT NULL,
//	    requested_data_types TEXT[] NOT NULL,
//	    completed_data_types TEXT[] NOT NULL DEFAULT '{}',
//	    failed_data_types    TEXT[] NOT NULL DEFAULT '{}',
//	    quality_score        DOUBLE PRECISION,
//	    error_detail         TEXT NOT NULL DEFAULT '',
//	    auto_enrich          BOOLEAN NOT NULL DEFAULT FALSE,
//	    started_at           TIMESTAMPTZ NOT NULL,
//	    completed_at         TIMESTAMPTZ
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, task *models.EnrichmentTask) error {
	query := `
		INSERT INTO enrichment_tasks
			(id, entity_id, entity_kind, status, requested_data_types,
			 completed_data_types, failed_data_types, quality_score,
			 error_detail, auto_enrich, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID.String(),
		task.EntityID.String(),
		task.EntityKind.String(),
		string(task.Status),
		pq.Array(typeStrings(task.RequestedDataTypes)),
		pq.Array(typeStrings(task.CompletedDataTypes)),
		pq.Array(typeStrings(task.FailedDataTypes)),
		nullFloat(task.QualityScore),
		task.ErrorDetail,
		task.AutoEnrich,
		task.StartedAt,
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("create enrichment task: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, taskID id.TaskID) (*models.EnrichmentTask, error) {
	query := `
		SELECT id, entity_id, entity_kind, status, requested_data_types,
		       completed_data_types, failed_data_types, quality_score,
		       error_detail, auto_enrich, started_at, completed_at
		FROM enrichment_tasks
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, taskID.String())

	var (
		task       models.EnrichmentTask
		rawID      string
		requested  []string
		completed  []string
		failed     []string
		score      sql.NullFloat64
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&rawID,
		&task.EntityID,
		&task.EntityKind,
		&task.Status,
		pq.Array(&requested),
		pq.Array(&completed),
		pq.Array(&failed),
		&score,
		&task.ErrorDetail,
		&task.AutoEnrich,
		&task.StartedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get enrichment task: %w", err)
	}

	task.ID, err = id.ParseTaskID(rawID)
	if err != nil {
		return nil, fmt.Errorf("get enrichment task: %w", err)
	}
	task.RequestedDataTypes = toTypes(requested)
	task.CompletedDataTypes = toTypes(completed)
	task.FailedDataTypes = toTypes(failed)
	if score.Valid {
		task.QualityScore = &score.Float64
	}
	if finishedAt.Valid {
		task.CompletedAt = &finishedAt.Time
	}
	return &task, nil
}

func (s *PostgresStore) Update(ctx context.Context, task *models.EnrichmentTask) error {
	query := `
		UPDATE enrichment_tasks
		SET status = $2,
		    completed_data_types = $3,
		    failed_data_types = $4,
		    quality_score = $5,
		    error_detail = $6,
		    completed_at = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		task.ID.String(),
		string(task.Status),
		pq.Array(typeStrings(task.CompletedDataTypes)),
		pq.Array(typeStrings(task.FailedDataTypes)),
		nullFloat(task.QualityScore),
		task.ErrorDetail,
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update enrichment task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrichment task: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func typeStrings(types []models.DataType) []string {
	out := make([]string, len(types))
	for i, dt := range types {
		out[i] = string(dt)
	}
	return out
}

func toTypes(raw []string) []models.DataType {
	out := make([]models.DataType, len(raw))
	for i, s := range raw {
		out[i] = models.DataType(s)
	}
	return out
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
