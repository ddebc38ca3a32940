package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/markr-hq/markr-api/internal/models"
)

// AggregateRepository stores the materialized statistics snapshot per test.
// Purely derived state: always recomputable from test_results, never the
// system of record for raw scores.
type AggregateRepository struct {
	db *sqlx.DB
}

// NewAggregateRepository constructs an AggregateRepository.
func NewAggregateRepository(db *sqlx.DB) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// Upsert replaces any prior snapshot for the test wholesale inside the
// caller's transaction.
func (r *AggregateRepository) Upsert(ctx context.Context, tx *sqlx.Tx, snapshot *models.AggregateSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now
	const query = `INSERT INTO test_aggregates (id, test_id, data, created_at, updated_at)
        VALUES (:id, :test_id, :data, :created_at, :updated_at)
        ON CONFLICT (test_id) DO UPDATE
        SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("upsert aggregate: %w", err)
	}
	return nil
}

// Get fetches the snapshot for one test.
func (r *AggregateRepository) Get(ctx context.Context, testID string) (*models.AggregateSnapshot, error) {
	var snapshot models.AggregateSnapshot
	if err := r.db.GetContext(ctx, &snapshot,
		`SELECT id, test_id, data, created_at, updated_at FROM test_aggregates WHERE test_id = $1`, testID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListAll returns every snapshot, most recently updated first.
func (r *AggregateRepository) ListAll(ctx context.Context) ([]models.AggregateSnapshot, error) {
	var snapshots []models.AggregateSnapshot
	if err := r.db.SelectContext(ctx, &snapshots,
		`SELECT id, test_id, data, created_at, updated_at FROM test_aggregates ORDER BY updated_at DESC`); err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	return snapshots, nil
}
