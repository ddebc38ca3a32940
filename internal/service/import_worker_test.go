package service

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markr-hq/markr-api/internal/models"
	"github.com/markr-hq/markr-api/pkg/jobs"
)

type identityStub struct {
	ids       map[string]string
	err       error
	lastNames map[string]string
}

func (s *identityStub) UpsertBatch(_ context.Context, _ *sqlx.Tx, names map[string]string) (map[string]string, error) {
	s.lastNames = names
	return s.ids, s.err
}

type mergerStub struct {
	rows []models.TestResult
	err  error
}

func (s *mergerStub) BulkMerge(_ context.Context, _ *sqlx.Tx, results []models.TestResult) error {
	s.rows = results
	return s.err
}

type recomputeStub struct {
	testIDs []string
	err     error
}

func (s *recomputeStub) Recompute(_ context.Context, testID string) (*models.AggregateSnapshot, error) {
	s.testIDs = append(s.testIDs, testID)
	if s.err != nil {
		return nil, s.err
	}
	return &models.AggregateSnapshot{TestID: testID}, nil
}

func newWorkerMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

const workerXML = `<mcq-test-results>
  <mcq-test-result>
    <student-name>Jane Austen</student-name>
    <student-number>521585128</student-number>
    <test-id>1234</test-id>
    <summary-marks available="20" obtained="13" />
  </mcq-test-result>
  <mcq-test-result>
    <student-number>002299</student-number>
    <test-id>9863</test-id>
    <summary-marks available="20" obtained="7" />
  </mcq-test-result>
</mcq-test-results>`

func TestImportWorkerHandleSuccess(t *testing.T) {
	db, mock, cleanup := newWorkerMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	students := &identityStub{ids: map[string]string{"521585128": "id-1", "002299": "id-2"}}
	merger := &mergerStub{}
	recompute := &recomputeStub{}
	status := &statusStoreStub{}
	worker := NewImportWorker(db, students, merger, recompute, status, nil, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{
		ID:      "job-1",
		Payload: DocumentPayload{Content: []byte(workerXML), ContentType: "text/xml+markr"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"521585128": "Jane Austen", "002299": ""}, students.lastNames)

	require.Len(t, merger.rows, 2)
	assert.Equal(t, "id-1", merger.rows[0].StudentID)
	assert.Equal(t, 20, merger.rows[0].MarksAvailable)
	assert.Equal(t, 13, merger.rows[0].MarksObtained)

	assert.Equal(t, []string{"1234", "9863"}, recompute.testIDs)

	require.Len(t, status.sets, 2)
	assert.Equal(t, models.ImportStatusProcessing, status.sets[0].Status)
	assert.Equal(t, models.ImportStatusCompleted, status.sets[1].Status)
	assert.Equal(t, []string{"1234", "9863"}, status.sets[1].TestIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportWorkerHandleBadPayload(t *testing.T) {
	db, _, cleanup := newWorkerMock(t)
	defer cleanup()

	status := &statusStoreStub{}
	worker := NewImportWorker(db, &identityStub{}, &mergerStub{}, &recomputeStub{}, status, nil, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Payload: "not a document"})
	require.NoError(t, err)

	require.Len(t, status.sets, 1)
	assert.Equal(t, models.ImportStatusFailed, status.sets[0].Status)
}

func TestImportWorkerHandleMalformedDocument(t *testing.T) {
	db, _, cleanup := newWorkerMock(t)
	defer cleanup()

	status := &statusStoreStub{}
	recompute := &recomputeStub{}
	worker := NewImportWorker(db, &identityStub{}, &mergerStub{}, recompute, status, nil, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{
		ID:      "job-1",
		Payload: DocumentPayload{Content: []byte("<mcq-test-results><mcq-test-result/></mcq-test-results>"), ContentType: "text/xml+markr"},
	})
	require.NoError(t, err)

	require.Len(t, status.sets, 2)
	assert.Equal(t, models.ImportStatusFailed, status.sets[1].Status)
	assert.Contains(t, status.sets[1].ErrorMessage, "missing student-number")
	assert.Empty(t, recompute.testIDs)
}

func TestImportWorkerHandleInvalidRecord(t *testing.T) {
	db, _, cleanup := newWorkerMock(t)
	defer cleanup()

	doc := `<mcq-test-results><mcq-test-result>
		<student-number>1</student-number>
		<test-id>1234</test-id>
		<summary-marks obtained="13" />
	</mcq-test-result></mcq-test-results>`

	status := &statusStoreStub{}
	worker := NewImportWorker(db, &identityStub{}, &mergerStub{}, &recomputeStub{}, status, nil, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{
		ID:      "job-1",
		Payload: DocumentPayload{Content: []byte(doc), ContentType: "text/xml+markr"},
	})
	require.NoError(t, err)

	require.Len(t, status.sets, 2)
	assert.Equal(t, models.ImportStatusFailed, status.sets[1].Status)
	assert.Contains(t, status.sets[1].ErrorMessage, "invalid record")
}

func TestImportWorkerHandleMergeFailureRetries(t *testing.T) {
	db, mock, cleanup := newWorkerMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	status := &statusStoreStub{}
	merger := &mergerStub{err: errors.New("deadlock detected")}
	students := &identityStub{ids: map[string]string{"521585128": "id-1", "002299": "id-2"}}
	worker := NewImportWorker(db, students, merger, &recomputeStub{}, status, nil, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{
		ID:      "job-1",
		Attempt: 0,
		Payload: DocumentPayload{Content: []byte(workerXML), ContentType: "text/xml+markr"},
	})
	require.Error(t, err)

	require.Len(t, status.sets, 2)
	assert.Equal(t, models.ImportStatusFailed, status.sets[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportWorkerHandleExhaustedRetriesMarksDead(t *testing.T) {
	db, mock, cleanup := newWorkerMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	status := &statusStoreStub{}
	students := &identityStub{ids: map[string]string{"521585128": "id-1", "002299": "id-2"}}
	recompute := &recomputeStub{err: errors.New("database unavailable")}
	worker := NewImportWorker(db, students, &mergerStub{}, recompute, status, nil, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{
		ID:      "job-1",
		Attempt: 3,
		Payload: DocumentPayload{Content: []byte(workerXML), ContentType: "text/xml+markr"},
	})
	require.Error(t, err)

	require.Len(t, status.sets, 2)
	assert.Equal(t, models.ImportStatusDead, status.sets[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
