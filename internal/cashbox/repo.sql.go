package cashbox

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
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// LedgerName keys advisory locks for cash partitions.
const LedgerName = "cash"

// Repository persists cash ledger rows in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository. lockTimeout bounds the wait for the
// partition lock; contention past it surfaces as shared.ErrContended.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockPartition(ctx context.Context, tenantID, actorID int64) error
	LastBalance(ctx context.Context, tenantID, actorID int64) (int64, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
}

type txRepository struct {
	tx          pgx.Tx
	lockTimeout time.Duration
}

// WithTx executes the callback inside a read-committed transaction. The
// append path locks the partition and then reads the newest balance, and a
// snapshot-isolation level would pin that read before the lock was granted.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("cashbox repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.LedgerTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, lockTimeout: r.lockTimeout})
	})
}

// LatestBalance returns the newest balance for the partition, 0 when the
// partition has no entries yet.
func (r *Repository) LatestBalance(ctx context.Context, tenantID, actorID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM cash_entries
WHERE tenant_id = $1 AND actor_id = $2 ORDER BY id DESC LIMIT 1`, tenantID, actorID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// ListEntries returns recent entries for a partition, newest first.
func (r *Repository) ListEntries(ctx context.Context, tenantID, actorID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, actor_role, actor_id, actor_name,
occurred_date, occurred_time, kind, income, expense, balance, message, created_at
FROM cash_entries WHERE tenant_id = $1 AND actor_id = $2 ORDER BY id DESC LIMIT $3`,
		tenantID, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			role string
			kind string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &role, &e.ActorID, &e.ActorName,
			&e.OccurredDate, &e.OccurredTime, &kind, &e.Income, &e.Expense, &e.Balance, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorRole = tenants.ActorRole(role)
		e.Kind = MovementKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LockPartition serializes appends for one (tenant, actor) partition using a
// transaction-scoped advisory lock. The wait is bounded by lock_timeout;
// SQLSTATE 55P03 maps to the retryable contended error.
func (r *txRepository) LockPartition(ctx context.Context, tenantID, actorID int64) error {
	key := shared.PartitionLockKey(LedgerName, tenantID, actorID)
	if _, err := r.tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return fmt.Errorf("cashbox: partition %d/%d: %w", tenantID, actorID, shared.ErrContended)
		}
		return err
	}
	return nil
}

// LastBalance reads the newest balance inside the transaction.
func (r *txRepository) LastBalance(ctx context.Context, tenantID, actorID int64) (int64, error) {
	var balance int64
	err := r.tx.QueryRow(ctx, `SELECT balance FROM cash_entries
WHERE tenant_id = $1 AND actor_id = $2 ORDER BY id DESC LIMIT 1`, tenantID, actorID).Scan(&balance)
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
	err := r.tx.QueryRow(ctx, `INSERT INTO cash_entries
(tenant_id, actor_role, actor_id, actor_name, occurred_date, occurred_time, kind, income, expense, balance, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()) RETURNING id`,
		entry.TenantID, string(entry.ActorRole), entry.ActorID, entry.ActorName,
		entry.OccurredDate, entry.OccurredTime, string(entry.Kind),
		entry.Income, entry.Expense, entry.Balance, entry.Message).Scan(&id)
	return id, err
}
