package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CounterSums aggregates recorded order quantities for the year, month and
// day windows containing now, across all tenants.
func (r *Repository) CounterSums(ctx context.Context, now time.Time) (CounterSums, error) {
	var sums CounterSums
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(quantity) FILTER (WHERE created_at >= date_trunc('year', $1::timestamptz)), 0),
COALESCE(SUM(quantity) FILTER (WHERE created_at >= date_trunc('month', $1::timestamptz)), 0),
COALESCE(SUM(quantity) FILTER (WHERE created_at >= date_trunc('day', $1::timestamptz)), 0)
FROM orders WHERE status <> 'cancelled'`, now).Scan(&sums.Year, &sums.Month, &sums.Day)
	return sums, err
}

// TenantPeriodUnits sums the tenant's recorded order quantities for the
// billing period window containing now. This is the pricing counter, taken
// before adding the current order's quantity.
func (r *Repository) TenantPeriodUnits(ctx context.Context, tenantID int64, period pricing.Period, now time.Time) (int64, error) {
	window := "year"
	if period == pricing.PeriodMonthly {
		window = "month"
	}
	var units int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(SUM(quantity), 0) FROM orders
WHERE tenant_id = $1 AND status <> 'cancelled' AND created_at >= date_trunc('%s', $2::timestamptz)`, window),
		tenantID, now).Scan(&units)
	return units, err
}

// Insert stores one order. A unique violation on the number column maps to
// ErrNumberTaken so the caller can regenerate and retry.
func (r *Repository) Insert(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO orders
(tenant_id, client_name, address, number, quantity, unit_price, amount, period, counter, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()) RETURNING id`,
		o.TenantID, o.ClientName, o.Address, o.Number, o.Quantity, o.UnitPrice, o.Amount,
		string(o.Period), o.Counter, string(o.Status)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrNumberTaken
		}
		return 0, err
	}
	return id, nil
}

// UpdateStatus transitions an order. Terminal states are never left.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status = $2
WHERE id = $1 AND status = 'created'`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: order %d not open: %w", id, shared.ErrConflict)
	}
	return nil
}

const selectOrder = `SELECT id, tenant_id, client_name, address, number, quantity,
unit_price, amount, period, counter, status, created_at FROM orders`

// Get loads one order.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
}

// GetByNumber loads one order by its assigned number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE number = $1`, number))
}

// ListByTenant returns a tenant's recent orders, newest first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE tenant_id = $1 ORDER BY id DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o      Order
		period string
		status string
	)
	err := row.Scan(&o.ID, &o.TenantID, &o.ClientName, &o.Address, &o.Number, &o.Quantity,
		&o.UnitPrice, &o.Amount, &period, &o.Counter, &status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("orders: order: %w", shared.ErrNotFound)
		}
		return Order{}, err
	}
	o.Period = pricing.Period(period)
	o.Status = Status(status)
	return o, nil
}
