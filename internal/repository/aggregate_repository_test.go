package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markr-hq/markr-api/internal/models"
)

func TestAggregateRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAggregateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO test_aggregates").
		WithArgs(sqlmock.AnyArg(), "1234", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)

	snapshot := &models.AggregateSnapshot{
		TestID: "1234",
		Data:   models.StatMap{"mean": 65.0, "count": 1},
	}
	err = repo.Upsert(context.Background(), tx, snapshot)
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.ID)
	assert.False(t, snapshot.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepositoryGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAggregateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, test_id, data, created_at, updated_at FROM test_aggregates WHERE test_id = $1")).
		WithArgs("1234").
		WillReturnRows(sqlmock.NewRows([]string{"id", "test_id", "data", "created_at", "updated_at"}).
			AddRow("agg-1", "1234", []byte(`{"mean":65,"count":2}`), time.Now(), time.Now()))

	snapshot, err := repo.Get(context.Background(), "1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", snapshot.TestID)
	assert.Equal(t, 65.0, snapshot.Data["mean"])
	assert.Equal(t, 2.0, snapshot.Data["count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAggregateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, test_id, data, created_at, updated_at FROM test_aggregates ORDER BY updated_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "test_id", "data", "created_at", "updated_at"}).
			AddRow("agg-2", "5678", []byte(`{"mean":80}`), time.Now(), time.Now()).
			AddRow("agg-1", "1234", []byte(`{"mean":65}`), time.Now(), time.Now()))

	snapshots, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "5678", snapshots[0].TestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
