package tenants

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, t Tenant) (int64, error)
	Get(ctx context.Context, id int64) (Tenant, error)
	UpdateTiers(ctx context.Context, id int64, period pricing.Period, tiers pricing.TierSet) error
	UpdatePinHash(ctx context.Context, id int64, hash string) error
	ReferenceCount(ctx context.Context, id int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// Service coordinates tenant configuration.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields for registering a tenant.
type CreateInput struct {
	Name          string
	City          string
	Region        string
	Phone         string
	BillingPeriod pricing.Period
	Tiers         pricing.TierSet
	Pin           string
}

// Create validates and registers a tenant.
func (s *Service) Create(ctx context.Context, input CreateInput) (Tenant, error) {
	if input.Name == "" {
		return Tenant{}, fmt.Errorf("tenants: name required: %w", shared.ErrValidation)
	}
	if input.BillingPeriod == "" {
		input.BillingPeriod = pricing.PeriodMonthly
	}
	if !input.BillingPeriod.Valid() {
		return Tenant{}, fmt.Errorf("tenants: unknown billing period %q: %w", input.BillingPeriod, shared.ErrValidation)
	}
	if err := input.Tiers.Validate(); err != nil {
		return Tenant{}, err
	}
	t := Tenant{
		Name:          input.Name,
		City:          input.City,
		Region:        input.Region,
		Phone:         input.Phone,
		BillingPeriod: input.BillingPeriod,
		Tiers:         input.Tiers,
	}
	if input.Pin != "" {
		hash, err := hashPin(input.Pin)
		if err != nil {
			return Tenant{}, err
		}
		t.PinHash = hash
	}
	id, err := s.repo.Create(ctx, t)
	if err != nil {
		return Tenant{}, err
	}
	t.ID = id
	return t, nil
}

// Get loads a tenant.
func (s *Service) Get(ctx context.Context, id int64) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// ConfigureTiers validates and stores a tier set for the period.
// Validation happens once here; resolution at order time never fails.
func (s *Service) ConfigureTiers(ctx context.Context, id int64, period pricing.Period, tiers pricing.TierSet) error {
	if !period.Valid() {
		return fmt.Errorf("tenants: unknown billing period %q: %w", period, shared.ErrValidation)
	}
	if err := tiers.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateTiers(ctx, id, period, tiers)
}

// SetPin hashes and stores the tenant PIN code.
func (s *Service) SetPin(ctx context.Context, id int64, pin string) error {
	if len(pin) < 4 {
		return fmt.Errorf("tenants: pin too short: %w", shared.ErrValidation)
	}
	hash, err := hashPin(pin)
	if err != nil {
		return err
	}
	return s.repo.UpdatePinHash(ctx, id, hash)
}

// VerifyPin checks a PIN against the stored hash.
func (s *Service) VerifyPin(ctx context.Context, id int64, pin string) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.PinHash == "" {
		return fmt.Errorf("tenants: no pin configured: %w", shared.ErrValidation)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.PinHash), []byte(pin)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("tenants: pin mismatch: %w", shared.ErrValidation)
		}
		return err
	}
	return nil
}

// Delete removes a tenant unless ledger rows still reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	refs, err := s.repo.ReferenceCount(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("tenants: %d ledger rows reference tenant: %w", refs, shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}

func hashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
