package tenants

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
)

type memoryRepo struct {
	tenants map[int64]Tenant
	refs    map[int64]int64
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tenants: make(map[int64]Tenant), refs: make(map[int64]int64)}
}

func (r *memoryRepo) Create(ctx context.Context, t Tenant) (int64, error) {
	r.nextID++
	t.ID = r.nextID
	r.tenants[t.ID] = t
	return t.ID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Tenant, error) {
	t, ok := r.tenants[id]
	if !ok {
		return Tenant{}, fmt.Errorf("tenants: %d: %w", id, shared.ErrNotFound)
	}
	return t, nil
}

func (r *memoryRepo) UpdateTiers(ctx context.Context, id int64, period pricing.Period, tiers pricing.TierSet) error {
	t, ok := r.tenants[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.BillingPeriod = period
	t.Tiers = tiers
	r.tenants[id] = t
	return nil
}

func (r *memoryRepo) UpdatePinHash(ctx context.Context, id int64, hash string) error {
	t, ok := r.tenants[id]
	if !ok {
		return shared.ErrNotFound
	}
	t.PinHash = hash
	r.tenants[id] = t
	return nil
}

func (r *memoryRepo) ReferenceCount(ctx context.Context, id int64) (int64, error) {
	return r.refs[id], nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.tenants[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.tenants, id)
	return nil
}

func end(v int64) *int64 { return &v }

func TestCreateValidatesTiers(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	tenant, err := svc.Create(ctx, CreateInput{
		Name:  "Chashma Suv",
		Tiers: pricing.TierSet{{Start: 0, End: end(99), UnitPrice: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.PeriodMonthly, tenant.BillingPeriod)

	_, err = svc.Create(ctx, CreateInput{
		Name:  "Toza Suv",
		Tiers: pricing.TierSet{{Start: 0, End: end(50), UnitPrice: 100}, {Start: 40, End: end(90), UnitPrice: 200}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Name: ""})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConfigureTiersRejectsBadPeriod(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, CreateInput{Name: "Chashma Suv"})
	require.NoError(t, err)

	err = svc.ConfigureTiers(ctx, tenant.ID, "weekly", nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.ConfigureTiers(ctx, tenant.ID, pricing.PeriodYearly,
		pricing.TierSet{{Start: 0, End: nil, UnitPrice: 800}})
	require.NoError(t, err)

	stored, err := svc.Get(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, pricing.PeriodYearly, stored.BillingPeriod)
	require.EqualValues(t, 800, stored.Tiers.Resolve(0))
}

func TestPinRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, CreateInput{Name: "Chashma Suv"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetPin(ctx, tenant.ID, "12"), shared.ErrValidation)
	require.NoError(t, svc.SetPin(ctx, tenant.ID, "4217"))
	require.NoError(t, svc.VerifyPin(ctx, tenant.ID, "4217"))
	require.ErrorIs(t, svc.VerifyPin(ctx, tenant.ID, "0000"), shared.ErrValidation)
}

func TestDeleteRefusedWhileReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, CreateInput{Name: "Chashma Suv"})
	require.NoError(t, err)

	repo.refs[tenant.ID] = 3
	require.ErrorIs(t, svc.Delete(ctx, tenant.ID), shared.ErrConflict)

	repo.refs[tenant.ID] = 0
	require.NoError(t, svc.Delete(ctx, tenant.ID))
	_, err = svc.Get(ctx, tenant.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
