package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// maxNumberAttempts bounds the allocate-and-insert retry loop on number
// collisions. The numbering lock already prevents concurrent duplicate
// computation; the retry only tolerates races with non-serialized writers.
const maxNumberAttempts = 5

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	CounterSums(ctx context.Context, now time.Time) (CounterSums, error)
	TenantPeriodUnits(ctx context.Context, tenantID int64, period pricing.Period, now time.Time) (int64, error)
	Insert(ctx context.Context, o Order) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Get(ctx context.Context, id int64) (Order, error)
	ListByTenant(ctx context.Context, tenantID int64, limit int) ([]Order, error)
}

// LockPort serializes order-number allocation system-wide.
type LockPort interface {
	Acquire(ctx context.Context) (string, error)
	Release(ctx context.Context, token string) error
}

// TenantPort loads tenant pricing configuration.
type TenantPort interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// AuditPort records audit trail entries best effort.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service creates and queries orders.
type Service struct {
	repo    RepositoryPort
	lock    LockPort
	tenants TenantPort
	audit   AuditPort
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, lock LockPort, tenantPort TenantPort, audit AuditPort) *Service {
	return &Service{
		repo:    repo,
		lock:    lock,
		tenants: tenantPort,
		audit:   audit,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the fields for order creation.
type CreateInput struct {
	TenantID   int64
	ClientName string
	Address    string
	Quantity   int64
}

// CreateOutput reports the created order plus the pricing inputs used, for
// the caller's own audit logging.
type CreateOutput struct {
	Order     Order
	UnitPrice int64
	Period    pricing.Period
	Counter   int64
}

// Create places an order: it resolves the unit price from the tenant's tiers
// against the running period counter, then allocates the order number under
// the global numbering lock and inserts the row. A number collision retries
// the whole allocate-and-insert sequence with a regenerated number.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateOutput, error) {
	if input.TenantID == 0 {
		return CreateOutput{}, fmt.Errorf("orders: tenant required: %w", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return CreateOutput{}, ErrInvalidQuantity
	}

	tenant, err := s.tenants.Get(ctx, input.TenantID)
	if err != nil {
		return CreateOutput{}, err
	}
	period := tenant.BillingPeriod
	if !period.Valid() {
		period = pricing.PeriodMonthly
	}

	now := s.now()
	counter, err := s.repo.TenantPeriodUnits(ctx, input.TenantID, period, now)
	if err != nil {
		return CreateOutput{}, err
	}
	unitPrice := tenant.Tiers.Resolve(counter)
	if unitPrice <= 0 {
		return CreateOutput{}, ErrUnpriced
	}

	token, err := s.lock.Acquire(ctx)
	if err != nil {
		return CreateOutput{}, err
	}
	defer func() { _ = s.lock.Release(ctx, token) }()

	var order Order
	for attempt := 0; ; attempt++ {
		sums, err := s.repo.CounterSums(ctx, now)
		if err != nil {
			return CreateOutput{}, err
		}
		order = Order{
			TenantID:   input.TenantID,
			ClientName: input.ClientName,
			Address:    input.Address,
			Number:     FormatNumber(sums, input.Quantity),
			Quantity:   input.Quantity,
			UnitPrice:  unitPrice,
			Amount:     unitPrice * input.Quantity,
			Period:     period,
			Counter:    counter,
			Status:     StatusCreated,
		}
		id, err := s.repo.Insert(ctx, order)
		if err == nil {
			order.ID = id
			break
		}
		if !errors.Is(err, ErrNumberTaken) || attempt+1 >= maxNumberAttempts {
			return CreateOutput{}, err
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			Action:   "orders:create",
			Entity:   "order",
			EntityID: order.Number,
			Meta: map[string]any{
				"quantity":   input.Quantity,
				"unit_price": unitPrice,
				"amount":     order.Amount,
				"counter":    counter,
				"period":     period,
			},
		})
	}
	return CreateOutput{Order: order, UnitPrice: unitPrice, Period: period, Counter: counter}, nil
}

// Deliver marks an open order delivered.
func (s *Service) Deliver(ctx context.Context, id int64) error {
	return s.repo.UpdateStatus(ctx, id, StatusDelivered)
}

// Cancel withdraws an open order.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.repo.UpdateStatus(ctx, id, StatusCancelled)
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// ListByTenant lists a tenant's recent orders, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]Order, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("orders: tenant required: %w", shared.ErrValidation)
	}
	return s.repo.ListByTenant(ctx, tenantID, limit)
}
