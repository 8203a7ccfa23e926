package approvals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaflow/aquaflow/internal/cashbox"
	"github.com/aquaflow/aquaflow/internal/platform/db"
	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// Repository persists pending movements in PostgreSQL. Its transactional view
// also spans the cash ledger table: approval must read the prior balance and
// write both the new entry and the status flip in one atomic unit.
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

// TxRepository exposes the operations used inside one approval transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id uuid.UUID) (PendingMovement, error)
	LockCashPartition(ctx context.Context, tenantID, actorID int64) error
	LastCashBalance(ctx context.Context, tenantID, actorID int64) (int64, error)
	InsertCashEntry(ctx context.Context, entry cashbox.Entry) (int64, error)
	GetCashEntry(ctx context.Context, id int64) (cashbox.Entry, error)
	MarkApproved(ctx context.Context, id uuid.UUID, approverID, entryID int64, at time.Time) error
	MarkRejected(ctx context.Context, id uuid.UUID, approverID int64, at time.Time) error
}

type txRepository struct {
	tx          pgx.Tx
	lockTimeout time.Duration
}

// WithTx executes the callback inside a read-committed transaction. The
// approval path locks the cash partition and then reads the prior balance;
// per-statement snapshots guarantee that read happens after the lock grant.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("approvals repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.LedgerTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, lockTimeout: r.lockTimeout})
	})
}

// Insert stores a new pending movement.
func (r *Repository) Insert(ctx context.Context, m PendingMovement) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO pending_movements
(id, tenant_id, submitter_id, submitter_name, approver_role, occurred_date, occurred_time, kind, amount, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		m.ID, m.TenantID, m.SubmitterID, m.SubmitterName, m.ApproverRole,
		m.OccurredDate, m.OccurredTime, string(m.Kind), m.Amount, string(m.Status))
	return err
}

// Get loads one pending movement.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (PendingMovement, error) {
	return scanMovement(r.pool.QueryRow(ctx, selectMovement+` WHERE id = $1`, id))
}

// ListPending returns pending movements for a tenant, oldest first.
func (r *Repository) ListPending(ctx context.Context, tenantID int64) ([]PendingMovement, error) {
	rows, err := r.pool.Query(ctx, selectMovement+` WHERE tenant_id = $1 AND status = 'pending' ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []PendingMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// CountStalePending counts pending rows older than cutoff, for the worker scan.
func (r *Repository) CountStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pending_movements WHERE status = 'pending' AND created_at < $1`, cutoff).Scan(&count)
	return count, err
}

const selectMovement = `SELECT id, tenant_id, submitter_id, submitter_name, approver_role,
occurred_date, occurred_time, kind, amount, status, resolved_at, approver_id, entry_id, created_at
FROM pending_movements`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row rowScanner) (PendingMovement, error) {
	var (
		m      PendingMovement
		kind   string
		status string
	)
	err := row.Scan(&m.ID, &m.TenantID, &m.SubmitterID, &m.SubmitterName, &m.ApproverRole,
		&m.OccurredDate, &m.OccurredTime, &kind, &m.Amount, &status, &m.ResolvedAt, &m.ApproverID, &m.EntryID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingMovement{}, fmt.Errorf("approvals: movement: %w", shared.ErrNotFound)
		}
		return PendingMovement{}, err
	}
	m.Kind = cashbox.MovementKind(kind)
	m.Status = Status(status)
	return m, nil
}

// GetForUpdate locks the pending row so concurrent decisions on the same
// movement serialize.
func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (PendingMovement, error) {
	return scanMovement(r.tx.QueryRow(ctx, selectMovement+` WHERE id = $1 FOR UPDATE`, id))
}

// LockCashPartition takes the same advisory lock the direct cash append path
// uses, so approvals of different rows for the same actor never compute from
// a stale balance.
func (r *txRepository) LockCashPartition(ctx context.Context, tenantID, actorID int64) error {
	key := shared.PartitionLockKey(cashbox.LedgerName, tenantID, actorID)
	if _, err := r.tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return fmt.Errorf("approvals: partition %d/%d: %w", tenantID, actorID, shared.ErrContended)
		}
		return err
	}
	return nil
}

// LastCashBalance reads the newest cash balance inside the transaction.
func (r *txRepository) LastCashBalance(ctx context.Context, tenantID, actorID int64) (int64, error) {
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

// InsertCashEntry materializes the approved movement into the cash ledger.
func (r *txRepository) InsertCashEntry(ctx context.Context, entry cashbox.Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cash_entries
(tenant_id, actor_role, actor_id, actor_name, occurred_date, occurred_time, kind, income, expense, balance, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()) RETURNING id`,
		entry.TenantID, string(entry.ActorRole), entry.ActorID, entry.ActorName,
		entry.OccurredDate, entry.OccurredTime, string(entry.Kind),
		entry.Income, entry.Expense, entry.Balance, entry.Message).Scan(&id)
	return id, err
}

// GetCashEntry loads a materialized entry by id.
func (r *txRepository) GetCashEntry(ctx context.Context, id int64) (cashbox.Entry, error) {
	var (
		e    cashbox.Entry
		role string
		kind string
	)
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, actor_role, actor_id, actor_name,
occurred_date, occurred_time, kind, income, expense, balance, message, created_at
FROM cash_entries WHERE id = $1`, id).Scan(&e.ID, &e.TenantID, &role, &e.ActorID, &e.ActorName,
		&e.OccurredDate, &e.OccurredTime, &kind, &e.Income, &e.Expense, &e.Balance, &e.Message, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cashbox.Entry{}, fmt.Errorf("approvals: entry %d: %w", id, shared.ErrNotFound)
		}
		return cashbox.Entry{}, err
	}
	e.ActorRole = tenants.ActorRole(role)
	e.Kind = cashbox.MovementKind(kind)
	return e, nil
}

// MarkApproved flips pending → approved and records the materialized entry.
func (r *txRepository) MarkApproved(ctx context.Context, id uuid.UUID, approverID, entryID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE pending_movements
SET status = 'approved', approver_id = $2, entry_id = $3, resolved_at = $4
WHERE id = $1 AND status = 'pending'`, id, approverID, entryID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementResolved
	}
	return nil
}

// MarkRejected flips pending → rejected.
func (r *txRepository) MarkRejected(ctx context.Context, id uuid.UUID, approverID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE pending_movements
SET status = 'rejected', approver_id = $2, resolved_at = $3
WHERE id = $1 AND status = 'pending'`, id, approverID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementResolved
	}
	return nil
}
