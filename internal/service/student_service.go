package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/markr-hq/markr-api/internal/models"
	"github.com/markr-hq/markr-api/internal/repository"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
)

// StudentService serves the identity read paths consumed by the query layer.
type StudentService struct {
	students *repository.StudentRepository
	results  *repository.ResultRepository
	logger   *zap.Logger
}

// NewStudentService constructs a student service.
func NewStudentService(students *repository.StudentRepository, results *repository.ResultRepository, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, results: results, logger: logger}
}

// List returns all known identities ordered by student number.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "list students")
	}
	return students, nil
}

// Results returns a student and every stored result for them.
func (s *StudentService) Results(ctx context.Context, number string) (*models.Student, []models.TestResult, error) {
	student, err := s.students.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "find student")
	}
	results, err := s.results.FindByStudent(ctx, student.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "load student results")
	}
	return student, results, nil
}

// TestResult returns one (student, test) record.
func (s *StudentService) TestResult(ctx context.Context, number, testID string) (*models.TestResult, error) {
	student, err := s.students.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "find student")
	}
	result, err := s.results.FindByStudentAndTest(ctx, student.ID, testID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "load result")
	}
	return result, nil
}

// Leaderboard returns all students for a test, rank-ordered by marks
// obtained descending. Empty leaderboards surface as not-found, matching the
// read API contract.
func (s *StudentService) Leaderboard(ctx context.Context, testID string) ([]models.TestRanking, error) {
	rankings, err := s.results.ListForTest(ctx, testID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStore.Code, appErrors.ErrStore.Status, "load leaderboard")
	}
	if len(rankings) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "test not found or no students")
	}
	return rankings, nil
}
