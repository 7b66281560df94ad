package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
	"enrichd/pkg/platform/sentinel"
	"enrichd/pkg/requestcontext"
)

// PostgresStore persists cache entries in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE enrichment_cache (
//	    data_type   TEXT NOT NULL,
//	    entity_id   TEXT NOT NULL,
//	    payload     JSONB NOT NULL,
//	    confidence  DOUBLE PRECISION NOT NULL,
//	    valid_until TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (data_type, entity_id)
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error) {
	query := `
		SELECT data_type, entity_id, payload, confidence, valid_until, updated_at
		FROM enrichment_cache
		WHERE data_type = $1 AND entity_id = $2 AND valid_until > $3
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, string(dt), entityID.String(), requestcontext.Now(ctx)))
}

func (s *PostgresStore) GetStale(ctx context.Context, dt models.DataType, entityID id.EntityID) (*models.CacheEntry, error) {
	query := `
		SELECT data_type, entity_id, payload, confidence, valid_until, updated_at
		FROM enrichment_cache
		WHERE data_type = $1 AND entity_id = $2
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, string(dt), entityID.String()))
}

func (s *PostgresStore) Set(ctx context.Context, dt models.DataType, entityID id.EntityID, payload models.Payload, confidence float64, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}

	now := requestcontext.Now(ctx)
	query := `
		INSERT INTO enrichment_cache (data_type, entity_id, payload, confidence, valid_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (data_type, entity_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			confidence = EXCLUDED.confidence,
			valid_until = EXCLUDED.valid_until,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, string(dt), entityID.String(), raw, confidence, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsComplete(ctx context.Context, entityID id.EntityID, requested []models.DataType) (bool, error) {
	if len(requested) == 0 {
		return true, nil
	}

	query := `
		SELECT COUNT(DISTINCT data_type)
		FROM enrichment_cache
		WHERE entity_id = $1 AND data_type = ANY($2) AND valid_until > $3
	`
	types := make([]string, len(requested))
	for i, dt := range requested {
		types[i] = string(dt)
	}
	var count int
	err := s.db.QueryRowContext(ctx, query, entityID.String(), pq.Array(types), requestcontext.Now(ctx)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check cache completeness: %w", err)
	}
	return count == len(requested), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.CacheStats, error) {
	query := `
		SELECT data_type,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE valid_until <= $1)
		FROM enrichment_cache
		GROUP BY data_type
		ORDER BY data_type
	`
	rows, err := s.db.QueryContext(ctx, query, requestcontext.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	stats := &models.CacheStats{}
	for rows.Next() {
		var ts models.DataTypeStats
		if err := rows.Scan(&ts.DataType, &ts.Entries, &ts.Expired); err != nil {
			return nil, fmt.Errorf("cache stats: %w", err)
		}
		stats.ByDataType = append(stats.ByDataType, ts)
		stats.TotalEntries += ts.Entries
		stats.ExpiredEntries += ts.Expired
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE valid_until <= $1`, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.CacheEntry, error) {
	var (
		entry models.CacheEntry
		raw   []byte
	)
	err := row.Scan(&entry.DataType, &entry.EntityID, &raw, &entry.ConfidenceScore, &entry.ValidUntil, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	if err := json.Unmarshal(raw, &entry.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal cache payload: %w", err)
	}
	return &entry, nil
}
