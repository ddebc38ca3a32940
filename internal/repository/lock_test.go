package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKeyStable(t *testing.T) {
	assert.Equal(t, LockKey("1234"), LockKey("1234"))
	assert.NotEqual(t, LockKey("1234"), LockKey("5678"))
	assert.NotEqual(t, LockKey(""), LockKey("1234"))
}

func TestAcquireTestLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(LockKey("1234")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Beginx()
	require.NoError(t, err)

	require.NoError(t, AcquireTestLock(context.Background(), tx, "1234"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
