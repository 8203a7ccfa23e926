package db

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestLedgerTxSnapshotsPerStatement(t *testing.T) {
	// Lock-then-read chains require the balance read to snapshot after the
	// advisory lock is granted. Any snapshot-isolation level would pin the
	// snapshot at the lock statement, before the lock wait ends, and allow
	// two appends to chain from the same stale balance.
	require.Equal(t, pgx.ReadCommitted, LedgerTxOptions.IsoLevel)
}
