package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

type memoryRepo struct {
	mu      sync.Mutex
	orders  []Order
	nextID  int64
	collide int // number of forced ErrNumberTaken results before Insert succeeds
}

func (r *memoryRepo) CounterSums(ctx context.Context, now time.Time) (CounterSums, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sums CounterSums
	for _, o := range r.orders {
		if o.Status == StatusCancelled {
			continue
		}
		if o.CreatedAt.Year() == now.Year() {
			sums.Year += o.Quantity
			if o.CreatedAt.Month() == now.Month() {
				sums.Month += o.Quantity
				if o.CreatedAt.Day() == now.Day() {
					sums.Day += o.Quantity
				}
			}
		}
	}
	return sums, nil
}

func (r *memoryRepo) TenantPeriodUnits(ctx context.Context, tenantID int64, period pricing.Period, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var units int64
	for _, o := range r.orders {
		if o.TenantID != tenantID || o.Status == StatusCancelled {
			continue
		}
		if o.CreatedAt.Year() != now.Year() {
			continue
		}
		if period == pricing.PeriodMonthly && o.CreatedAt.Month() != now.Month() {
			continue
		}
		units += o.Quantity
	}
	return units, nil
}

func (r *memoryRepo) Insert(ctx context.Context, o Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collide > 0 {
		r.collide--
		return 0, ErrNumberTaken
	}
	for _, existing := range r.orders {
		if existing.Number == o.Number {
			return 0, ErrNumberTaken
		}
	}
	r.nextID++
	o.ID = r.nextID
	o.CreatedAt = time.Now().UTC()
	r.orders = append(r.orders, o)
	return o.ID, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.orders {
		if o.ID == id {
			if o.Status != StatusCreated {
				return shared.ErrConflict
			}
			r.orders[i].Status = status
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, shared.ErrNotFound
}

func (r *memoryRepo) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for i := len(r.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if r.orders[i].TenantID == tenantID {
			out = append(out, r.orders[i])
		}
	}
	return out, nil
}

type fakeLock struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (l *fakeLock) Acquire(ctx context.Context) (string, error) {
	l.mu.Lock()
	l.acquired++
	return "token", nil
}

func (l *fakeLock) Release(ctx context.Context, token string) error {
	l.released++
	l.mu.Unlock()
	return nil
}

type fakeTenants struct {
	tenant tenants.Tenant
}

func (f *fakeTenants) Get(ctx context.Context, id int64) (tenants.Tenant, error) {
	if id != f.tenant.ID {
		return tenants.Tenant{}, shared.ErrNotFound
	}
	return f.tenant, nil
}

func end(v int64) *int64 { return &v }

func testTenant() *fakeTenants {
	return &fakeTenants{tenant: tenants.Tenant{
		ID:            1,
		Name:          "Chashma Suv",
		BillingPeriod: pricing.PeriodMonthly,
		Tiers: pricing.TierSet{
			{Start: 0, End: end(99), UnitPrice: 1000},
			{Start: 100, End: nil, UnitPrice: 900},
		},
	}}
}

func TestSequenceFromEmptyStore(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, &fakeLock{}, testTenant(), nil)
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, "03-03-03", out.Order.Number)
	require.EqualValues(t, 1000, out.UnitPrice)
	require.EqualValues(t, 3000, out.Order.Amount)
	require.EqualValues(t, 0, out.Counter)

	out, err = svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 5})
	require.NoError(t, err)
	require.Equal(t, "08-08-08", out.Order.Number)
	require.EqualValues(t, 3, out.Counter)
}

func TestSegmentsGrowPastTwoDigits(t *testing.T) {
	require.Equal(t, "103-103-103", FormatNumber(CounterSums{Year: 100, Month: 100, Day: 100}, 3))
	require.Equal(t, "01-01-01", FormatNumber(CounterSums{}, 0))
}

func TestTierPriceSwitchesWithCounter(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, &fakeLock{}, testTenant(), nil)
	ctx := context.Background()

	// First order fills the whole first tier.
	out, err := svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 100})
	require.NoError(t, err)
	require.EqualValues(t, 1000, out.UnitPrice)

	// Counter is now 100, inside the unbounded tier.
	out, err = svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 10})
	require.NoError(t, err)
	require.EqualValues(t, 900, out.UnitPrice)
	require.EqualValues(t, 100, out.Counter)
	require.EqualValues(t, 9000, out.Order.Amount)
}

func TestNumberCollisionRetries(t *testing.T) {
	repo := &memoryRepo{collide: 2}
	svc := NewService(repo, &fakeLock{}, testTenant(), nil)

	out, err := svc.Create(context.Background(), CreateInput{TenantID: 1, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, "02-02-02", out.Order.Number)
	require.Len(t, repo.orders, 1)
}

func TestNumberCollisionGivesUp(t *testing.T) {
	repo := &memoryRepo{collide: maxNumberAttempts}
	lock := &fakeLock{}
	svc := NewService(repo, lock, testTenant(), nil)

	_, err := svc.Create(context.Background(), CreateInput{TenantID: 1, Quantity: 2})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, repo.orders)
	require.Equal(t, lock.acquired, lock.released)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(&memoryRepo{}, &fakeLock{}, testTenant(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(ctx, CreateInput{TenantID: 9, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUnpricedTenantRejected(t *testing.T) {
	unpriced := &fakeTenants{tenant: tenants.Tenant{ID: 1, BillingPeriod: pricing.PeriodMonthly}}
	svc := NewService(&memoryRepo{}, &fakeLock{}, unpriced, nil)

	_, err := svc.Create(context.Background(), CreateInput{TenantID: 1, Quantity: 3})
	require.ErrorIs(t, err, ErrUnpriced)
}

func TestCancelledOrdersLeaveCounters(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, &fakeLock{}, testTenant(), nil)
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 4})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, out.Order.ID))

	// Cancelled quantity no longer counts toward numbering or pricing.
	out, err = svc.Create(ctx, CreateInput{TenantID: 1, Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, "02-02-02", out.Order.Number)
	require.EqualValues(t, 0, out.Counter)
}
