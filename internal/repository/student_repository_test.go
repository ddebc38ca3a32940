package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_number", "name", "created_at", "updated_at"})
}

func TestStudentRepositoryFindOrCreateExisting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	name := "Jane Austen"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_number, name, created_at, updated_at FROM students WHERE student_number = $1")).
		WithArgs("521585128").
		WillReturnRows(studentRows().AddRow("id-1", "521585128", name, time.Now(), time.Now()))

	student, err := repo.FindOrCreate(context.Background(), "521585128", "Jane Austen")
	require.NoError(t, err)
	assert.Equal(t, "id-1", student.ID)
	require.NotNil(t, student.Name)
	assert.Equal(t, "Jane Austen", *student.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindOrCreateUpdatesName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_number, name, created_at, updated_at FROM students WHERE student_number = $1")).
		WithArgs("521585128").
		WillReturnRows(studentRows().AddRow("id-1", "521585128", "J Austen", time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET name = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("id-1", "Jane Austen", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	student, err := repo.FindOrCreate(context.Background(), "521585128", "Jane Austen")
	require.NoError(t, err)
	assert.Equal(t, "Jane Austen", *student.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindOrCreateEmptyNameKeepsStored(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_number, name, created_at, updated_at FROM students WHERE student_number = $1")).
		WithArgs("521585128").
		WillReturnRows(studentRows().AddRow("id-1", "521585128", "Jane Austen", time.Now(), time.Now()))

	student, err := repo.FindOrCreate(context.Background(), "521585128", "")
	require.NoError(t, err)
	assert.Equal(t, "Jane Austen", *student.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindOrCreateNew(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_number, name, created_at, updated_at FROM students WHERE student_number = $1")).
		WithArgs("002299").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student, err := repo.FindOrCreate(context.Background(), "002299", "KJ Alysander")
	require.NoError(t, err)
	assert.Equal(t, "002299", student.StudentNumber)
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "521585128", "Jane Austen").
		WillReturnRows(sqlmock.NewRows([]string{"student_number", "id"}).AddRow("521585128", "id-1"))

	tx, err := db.Beginx()
	require.NoError(t, err)

	ids, err := repo.UpsertBatch(context.Background(), tx, map[string]string{"521585128": "Jane Austen"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"521585128": "id-1"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	tx, err := db.Beginx()
	require.NoError(t, err)

	ids, err := repo.UpsertBatch(context.Background(), tx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_number, name, created_at, updated_at FROM students ORDER BY student_number")).
		WillReturnRows(studentRows().
			AddRow("id-1", "002299", "KJ Alysander", time.Now(), time.Now()).
			AddRow("id-2", "521585128", nil, time.Now(), time.Now()))

	students, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "002299", students[0].StudentNumber)
	assert.Nil(t, students[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
