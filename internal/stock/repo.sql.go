package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaflow/aquaflow/internal/platform/db"
	"github.com/aquaflow/aquaflow/internal/shared"
)

// LedgerName keys advisory locks for stock partitions.
const LedgerName = "stock"

// Repository persists stock ledger rows in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockPartition(ctx context.Context, tenantID, courierID int64) error
	LastBalance(ctx context.Context, tenantID, courierID int64) (int64, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
}

type txRepository struct {
	tx          pgx.Tx
	lockTimeout time.Duration
}

// WithTx executes the callback inside a read-committed transaction, so the
// balance read after LockPartition snapshots after the lock is granted.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.LedgerTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, lockTimeout: r.lockTimeout})
	})
}

// LatestBalance returns the newest balance for the partition, 0 when the
// partition has no entries yet.
func (r *Repository) LatestBalance(ctx context.Context, tenantID, courierID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM stock_entries
WHERE tenant_id = $1 AND courier_id = $2 ORDER BY id DESC LIMIT 1`, tenantID, courierID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// ListEntries returns recent entries for a partition, newest first.
func (r *Repository) ListEntries(ctx context.Context, tenantID, courierID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, courier_id, courier_name,
occurred_date, occurred_time, operation, units_in, units_out, balance, note, created_at
FROM stock_entries WHERE tenant_id = $1 AND courier_id = $2 ORDER BY id DESC LIMIT $3`,
		tenantID, courierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			op string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.CourierID, &e.CourierName,
			&e.OccurredDate, &e.OccurredTime, &op, &e.UnitsIn, &e.UnitsOut, &e.Balance, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Operation = Operation(op)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LockPartition serializes appends for one (tenant, courier) partition using
// a transaction-scoped advisory lock, same scheme as the cash ledger.
func (r *txRepository) LockPartition(ctx context.Context, tenantID, courierID int64) error {
	key := shared.PartitionLockKey(LedgerName, tenantID, courierID)
	if _, err := r.tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return fmt.Errorf("stock: partition %d/%d: %w", tenantID, courierID, shared.ErrContended)
		}
		return err
	}
	return nil
}

// LastBalance reads the newest balance inside the transaction.
func (r *txRepository) LastBalance(ctx context.Context, tenantID, courierID int64) (int64, error) {
	var balance int64
	err := r.tx.QueryRow(ctx, `SELECT balance FROM stock_entries
WHERE tenant_id = $1 AND courier_id = $2 ORDER BY id DESC LIMIT 1`, tenantID, courierID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// InsertEntry appends one ledger row.
func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_entries
(tenant_id, courier_id, courier_name, occurred_date, occurred_time, operation, units_in, units_out, balance, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()) RETURNING id`,
		entry.TenantID, entry.CourierID, entry.CourierName,
		entry.OccurredDate, entry.OccurredTime, string(entry.Operation),
		entry.UnitsIn, entry.UnitsOut, entry.Balance, entry.Note).Scan(&id)
	return id, err
}
