package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerTxOptions are the options for ledger append and approval transactions.
// These transactions take a transaction-scoped advisory lock and then read the
// partition's newest balance, so every statement must snapshot after the lock
// wait ends. READ COMMITTED gives each statement a fresh snapshot; under
// snapshot isolation the lock statement itself would pin a snapshot taken
// before the lock was granted, and the balance read could chain from a
// predecessor that a concurrent committed append already replaced.
var LedgerTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx executes a function within a transaction using the given options.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
