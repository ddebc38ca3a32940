package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markr-hq/markr-api/internal/models"
	"github.com/markr-hq/markr-api/internal/repository"
	"github.com/markr-hq/markr-api/internal/stats"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
)

// AggregateService recomputes and serves the per-test statistics snapshots.
type AggregateService struct {
	db         *sqlx.DB
	results    *repository.ResultRepository
	aggregates *repository.AggregateRepository
	registry   *stats.Registry
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewAggregateService constructs an aggregate service.
func NewAggregateService(db *sqlx.DB, results *repository.ResultRepository, aggregates *repository.AggregateRepository, registry *stats.Registry, metrics *MetricsService, logger *zap.Logger) *AggregateService {
	if registry == nil {
		registry = stats.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateService{
		db:         db,
		results:    results,
		aggregates: aggregates,
		registry:   registry,
		metrics:    metrics,
		logger:     logger,
	}
}

// Recompute rebuilds the snapshot for one test inside a single transaction,
// serialized per test by an advisory lock: two concurrent recomputations for
// the same test cannot interleave their read-scores and write-snapshot steps,
// so a slower writer can never overwrite a newer snapshot with stale data.
// No partial snapshot is ever published; the write only lands on commit.
func (s *AggregateService) Recompute(ctx context.Context, testID string) (*models.AggregateSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "begin recompute")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := repository.AcquireTestLock(ctx, tx, testID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "lock test")
	}

	scores, err := s.results.ScoresForTest(ctx, tx, testID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "read scores")
	}

	snapshot := &models.AggregateSnapshot{
		TestID: testID,
		Data:   s.registry.Report(scores),
	}
	if err := s.aggregates.Upsert(ctx, tx, snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "write snapshot")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "commit recompute")
	}

	s.metrics.ObserveRecompute()
	s.logger.Sugar().Debugw("snapshot recomputed", "test_id", testID, "count", len(scores))
	return snapshot, nil
}

// Get returns the stored snapshot for one test.
func (s *AggregateService) Get(ctx context.Context, testID string) (*models.AggregateSnapshot, error) {
	snapshot, err := s.aggregates.Get(ctx, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "load snapshot")
	}
	return snapshot, nil
}

// ListAll returns every snapshot, most recently updated first.
func (s *AggregateService) ListAll(ctx context.Context) ([]models.AggregateSnapshot, error) {
	snapshots, err := s.aggregates.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "list snapshots")
	}
	return snapshots, nil
}
