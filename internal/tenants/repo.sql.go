package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
)

// Repository persists tenants in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a tenant and returns its id.
func (r *Repository) Create(ctx context.Context, t Tenant) (int64, error) {
	tiersJSON, err := json.Marshal(t.Tiers)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO tenants (name, city, region, phone, billing_period, price_tiers, pin_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		t.Name, t.City, t.Region, t.Phone, string(t.BillingPeriod), tiersJSON, t.PinHash).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("tenants: create: %w", err)
	}
	return id, nil
}

// Get loads a tenant by id.
func (r *Repository) Get(ctx context.Context, id int64) (Tenant, error) {
	var (
		t         Tenant
		period    string
		tiersJSON []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, city, region, phone, billing_period, price_tiers, pin_hash, created_at
FROM tenants WHERE id = $1`, id).Scan(&t.ID, &t.Name, &t.City, &t.Region, &t.Phone, &period, &tiersJSON, &t.PinHash, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, fmt.Errorf("tenants: %d: %w", id, shared.ErrNotFound)
		}
		return Tenant{}, err
	}
	t.BillingPeriod = pricing.Period(period)
	if len(tiersJSON) > 0 {
		if err := json.Unmarshal(tiersJSON, &t.Tiers); err != nil {
			return Tenant{}, fmt.Errorf("tenants: decode tiers: %w", err)
		}
	}
	return t, nil
}

// UpdateTiers stores a validated tier set and billing period.
func (r *Repository) UpdateTiers(ctx context.Context, id int64, period pricing.Period, tiers pricing.TierSet) error {
	tiersJSON, err := json.Marshal(tiers)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET billing_period = $2, price_tiers = $3 WHERE id = $1`,
		id, string(period), tiersJSON)
	if err != nil {
		return fmt.Errorf("tenants: update tiers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenants: %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// UpdatePinHash stores a new PIN hash.
func (r *Repository) UpdatePinHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET pin_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenants: %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Exists reports whether the tenant id is present.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// ReferenceCount counts ledger rows still pointing at the tenant. Deletion is
// refused while this is non-zero (protection, not cascade).
func (r *Repository) ReferenceCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM cash_entries WHERE tenant_id = $1) +
  (SELECT COUNT(*) FROM stock_entries WHERE tenant_id = $1) +
  (SELECT COUNT(*) FROM pending_movements WHERE tenant_id = $1) +
  (SELECT COUNT(*) FROM orders WHERE tenant_id = $1)`, id).Scan(&count)
	return count, err
}

// Delete removes a tenant row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenants: %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
