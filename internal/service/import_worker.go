package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/markr-hq/markr-api/internal/loader"
	"github.com/markr-hq/markr-api/internal/models"
	"github.com/markr-hq/markr-api/pkg/jobs"
)

type identityRegistry interface {
	UpsertBatch(ctx context.Context, tx *sqlx.Tx, names map[string]string) (map[string]string, error)
}

type resultMerger interface {
	BulkMerge(ctx context.Context, tx *sqlx.Tx, results []models.TestResult) error
}

type aggregateRecomputer interface {
	Recompute(ctx context.Context, testID string) (*models.AggregateSnapshot, error)
}

// ImportWorker drives one document through the pipeline: full parse,
// business validation, transactional merge, then serialized statistics
// recomputation for every affected test.
type ImportWorker struct {
	db         *sqlx.DB
	students   identityRegistry
	results    resultMerger
	aggregates aggregateRecomputer
	status     jobStatusStore
	loaders    *loader.Registry
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewImportWorker constructs a worker.
func NewImportWorker(db *sqlx.DB, students identityRegistry, results resultMerger, aggregates aggregateRecomputer, status jobStatusStore, loaders *loader.Registry, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ImportWorker {
	if loaders == nil {
		loaders = loader.Default()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportWorker{
		db:         db,
		students:   students,
		results:    results,
		aggregates: aggregates,
		status:     status,
		loaders:    loaders,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes one queued document. Returning a non-nil error asks the
// queue to retry; deterministic failures (malformed documents, invalid
// records) are marked failed and swallowed, since retrying them cannot
// succeed.
func (w *ImportWorker) Handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()

	payload, ok := job.Payload.(DocumentPayload)
	if !ok {
		return w.failTerminal(ctx, job.ID, fmt.Errorf("unexpected payload type %T", job.Payload), start)
	}

	w.setStatus(ctx, models.ImportJob{ID: job.ID, Status: models.ImportStatusProcessing})

	l, err := w.loaders.Get(payload.ContentType)
	if err != nil {
		// The submitter checks the content type before enqueueing, so this
		// only fires when a loader was deregistered mid-flight.
		return w.failTerminal(ctx, job.ID, err, start)
	}

	scanned, err := l.Parse(payload.Content)
	if err != nil {
		return w.failTerminal(ctx, job.ID, err, start)
	}
	for _, record := range scanned {
		if err := record.Validate(); err != nil {
			return w.failTerminal(ctx, job.ID, fmt.Errorf("invalid record: %w", err), start)
		}
	}

	testIDs, err := w.mergeDocument(ctx, scanned)
	if err != nil {
		return w.failRetryable(ctx, job, fmt.Errorf("merge document: %w", err), start)
	}

	for _, testID := range testIDs {
		if _, err := w.aggregates.Recompute(ctx, testID); err != nil {
			return w.failRetryable(ctx, job, fmt.Errorf("recompute %s: %w", testID, err), start)
		}
	}

	w.setStatus(ctx, models.ImportJob{ID: job.ID, Status: models.ImportStatusCompleted, TestIDs: testIDs})
	w.metrics.ObserveImport("completed", len(scanned), time.Since(start))
	w.logger.Sugar().Infow("document imported", "job_id", job.ID, "records", len(scanned), "tests", testIDs)
	return nil
}

// mergeDocument persists every record in one transaction: batch identity
// upsert, then the max-wins record merge. A mid-batch failure rolls the whole
// document back.
func (w *ImportWorker) mergeDocument(ctx context.Context, scanned []models.ScannedResult) ([]string, error) {
	// Last non-empty name in the document wins per student.
	names := make(map[string]string, len(scanned))
	for _, record := range scanned {
		if _, ok := names[record.StudentNumber]; !ok || record.StudentName != "" {
			names[record.StudentNumber] = record.StudentName
		}
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	ids, err := w.students.UpsertBatch(ctx, tx, names)
	if err != nil {
		return nil, err
	}

	rows := make([]models.TestResult, 0, len(scanned))
	seenTests := make(map[string]struct{})
	var testIDs []string
	for _, record := range scanned {
		studentID, ok := ids[record.StudentNumber]
		if !ok {
			return nil, fmt.Errorf("no identity resolved for student %s", record.StudentNumber)
		}
		row := models.TestResult{
			StudentID:      studentID,
			TestID:         record.TestID,
			MarksAvailable: *record.MarksAvailable,
			MarksObtained:  *record.MarksObtained,
		}
		if record.ScannedOn != "" {
			scannedOn := record.ScannedOn
			row.ScannedOn = &scannedOn
		}
		rows = append(rows, row)
		if _, ok := seenTests[record.TestID]; !ok {
			seenTests[record.TestID] = struct{}{}
			testIDs = append(testIDs, record.TestID)
		}
	}

	if err := w.results.BulkMerge(ctx, tx, rows); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sort.Strings(testIDs)
	return testIDs, nil
}

// failTerminal marks a deterministic failure and tells the queue not to
// retry.
func (w *ImportWorker) failTerminal(ctx context.Context, jobID string, cause error, start time.Time) error {
	w.setStatus(ctx, models.ImportJob{ID: jobID, Status: models.ImportStatusFailed, ErrorMessage: cause.Error()})
	w.metrics.ObserveImport("failed", 0, time.Since(start))
	w.logger.Sugar().Warnw("import failed", "job_id", jobID, "error", cause)
	return nil
}

// failRetryable marks a transient failure and propagates the error so the
// queue retries with backoff; the last attempt moves the job to dead.
func (w *ImportWorker) failRetryable(ctx context.Context, job jobs.Job, cause error, start time.Time) error {
	status := models.ImportStatusFailed
	if job.Attempt >= w.maxRetries {
		status = models.ImportStatusDead
		w.metrics.ObserveImport("dead", 0, time.Since(start))
	}
	w.setStatus(ctx, models.ImportJob{ID: job.ID, Status: status, ErrorMessage: cause.Error()})
	w.logger.Sugar().Warnw("import attempt failed", "job_id", job.ID, "attempt", job.Attempt, "status", status, "error", cause)
	return cause
}

func (w *ImportWorker) setStatus(ctx context.Context, job models.ImportJob) {
	if err := w.status.Set(ctx, job); err != nil {
		w.logger.Sugar().Warnw("failed to record job status", "job_id", job.ID, "status", job.Status, "error", err)
	}
}
