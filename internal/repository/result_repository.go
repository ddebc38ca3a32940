package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/markr-hq/markr-api/internal/models"
)

// ResultRepository persists canonical test results, one per (student, test)
// pair.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// BulkMerge inserts or merges all records inside the caller's transaction.
// On conflict, marks available and obtained are each replaced by the maximum
// of the old and new value independently. A merged row's pair may therefore
// never have been observed together in any single submission; that tolerance
// for partial rescans is deliberate and must not be collapsed into a
// whole-record replace.
func (r *ResultRepository) BulkMerge(ctx context.Context, tx *sqlx.Tx, results []models.TestResult) error {
	const query = `INSERT INTO test_results (id, student_id, test_id, marks_available, marks_obtained, scanned_on, created_at, updated_at)
        VALUES (:id, :student_id, :test_id, :marks_available, :marks_obtained, :scanned_on, :created_at, :updated_at)
        ON CONFLICT (student_id, test_id) DO UPDATE
        SET marks_available = GREATEST(test_results.marks_available, EXCLUDED.marks_available),
            marks_obtained = GREATEST(test_results.marks_obtained, EXCLUDED.marks_obtained),
            updated_at = EXCLUDED.updated_at`
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if results[i].CreatedAt.IsZero() {
			results[i].CreatedAt = now
		}
		results[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, results[i]); err != nil {
			return fmt.Errorf("merge result: %w", err)
		}
	}
	return nil
}

// ScoresForTest returns the percentage scores for one test inside the
// recompute transaction. Deliberately narrow: no identity join, percentages
// derived from the two mark columns only.
func (r *ResultRepository) ScoresForTest(ctx context.Context, tx *sqlx.Tx, testID string) ([]float64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT marks_available, marks_obtained FROM test_results WHERE test_id = $1`, testID)
	if err != nil {
		return nil, fmt.Errorf("scores for test: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var available, obtained int
		if err := rows.Scan(&available, &obtained); err != nil {
			return nil, fmt.Errorf("scan marks: %w", err)
		}
		result := models.TestResult{MarksAvailable: available, MarksObtained: obtained}
		scores = append(scores, result.Percentage())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scores for test: %w", err)
	}
	return scores, nil
}

// ExistsForTest reports whether any result has been stored for the test.
func (r *ResultRepository) ExistsForTest(ctx context.Context, testID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		`SELECT 1 FROM test_results WHERE test_id = $1 LIMIT 1`, testID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check test: %w", err)
	}
	return true, nil
}

// FindByStudent returns all results for one identity.
func (r *ResultRepository) FindByStudent(ctx context.Context, studentID string) ([]models.TestResult, error) {
	var results []models.TestResult
	if err := r.db.SelectContext(ctx, &results,
		`SELECT id, student_id, test_id, marks_available, marks_obtained, scanned_on, created_at, updated_at
         FROM test_results WHERE student_id = $1 ORDER BY test_id`, studentID); err != nil {
		return nil, fmt.Errorf("find results by student: %w", err)
	}
	return results, nil
}

// FindByStudentAndTest fetches one (student, test) record.
func (r *ResultRepository) FindByStudentAndTest(ctx context.Context, studentID, testID string) (*models.TestResult, error) {
	var result models.TestResult
	if err := r.db.GetContext(ctx, &result,
		`SELECT id, student_id, test_id, marks_available, marks_obtained, scanned_on, created_at, updated_at
         FROM test_results WHERE student_id = $1 AND test_id = $2`, studentID, testID); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListForTest returns the leaderboard rows for a test, rank-ordered by marks
// obtained descending.
func (r *ResultRepository) ListForTest(ctx context.Context, testID string) ([]models.TestRanking, error) {
	var rankings []models.TestRanking
	if err := r.db.SelectContext(ctx, &rankings,
		`SELECT s.student_number, s.name, t.marks_available, t.marks_obtained
         FROM test_results t
         JOIN students s ON s.id = t.student_id
         WHERE t.test_id = $1
         ORDER BY t.marks_obtained DESC, s.student_number`, testID); err != nil {
		return nil, fmt.Errorf("list results for test: %w", err)
	}
	return rankings, nil
}
