package repository

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
)

// LockKey derives a stable advisory lock key from a test identifier by
// reducing an FNV-1a 64 hash into the signed integer domain Postgres
// advisory locks use.
func LockKey(testID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(testID))
	return int64(h.Sum64())
}

// AcquireTestLock serializes statistics recomputation per test. The advisory
// lock is transaction-scoped: it is released when the surrounding transaction
// commits or rolls back, so the caller must hold the transaction open across
// the read-scores and write-snapshot steps.
func AcquireTestLock(ctx context.Context, tx *sqlx.Tx, testID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, LockKey(testID)); err != nil {
		return fmt.Errorf("acquire test lock %s: %w", testID, err)
	}
	return nil
}
