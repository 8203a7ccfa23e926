package cashbox

import (
	"context"
	"fmt"
	"time"

	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	LatestBalance(ctx context.Context, tenantID, actorID int64) (int64, error)
	ListEntries(ctx context.Context, tenantID, actorID int64, limit int) ([]Entry, error)
}

// TenantPort verifies tenant existence.
type TenantPort interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// AuditPort records audit trail entries best effort.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates cash ledger appends and balance queries.
type Service struct {
	repo    RepositoryPort
	tenants TenantPort
	audit   AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, tenantPort TenantPort, audit AuditPort) *Service {
	return &Service{repo: repo, tenants: tenantPort, audit: audit}
}

// AppendInput carries the fields for a direct ledger append.
type AppendInput struct {
	TenantID   int64
	ActorRole  tenants.ActorRole
	ActorID    int64
	ActorName  string
	Kind       MovementKind
	Amount     int64
	OccurredAt time.Time
}

// Append validates the movement and appends it to the partition under the
// partition lock: read last balance, compute, insert is one atomic unit.
// All validation happens before any write (fail closed).
func (s *Service) Append(ctx context.Context, input AppendInput) (Entry, error) {
	if input.TenantID == 0 || input.ActorID == 0 {
		return Entry{}, fmt.Errorf("cashbox: tenant and actor required: %w", shared.ErrValidation)
	}
	if !input.ActorRole.Valid() {
		return Entry{}, ErrInvalidRole
	}
	if !input.Kind.Valid() {
		return Entry{}, ErrInvalidKind
	}
	if input.Amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	if s.tenants != nil {
		if _, err := s.tenants.Get(ctx, input.TenantID); err != nil {
			return Entry{}, err
		}
	}

	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPartition(ctx, input.TenantID, input.ActorID); err != nil {
			return err
		}
		prev, err := tx.LastBalance(ctx, input.TenantID, input.ActorID)
		if err != nil {
			return err
		}
		income, expense, balance, err := Apply(prev, input.Kind, input.Amount)
		if err != nil {
			return err
		}
		entry = Entry{
			TenantID:     input.TenantID,
			ActorRole:    input.ActorRole,
			ActorID:      input.ActorID,
			ActorName:    input.ActorName,
			OccurredDate: shared.DayOf(occurred),
			OccurredTime: occurred,
			Kind:         input.Kind,
			Income:       income,
			Expense:      expense,
			Balance:      balance,
			Message:      MovementMessage(input.Kind, input.Amount, input.ActorName),
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("cashbox:%s", input.Kind),
			Entity:   "cash_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"amount":  input.Amount,
				"balance": entry.Balance,
				"role":    input.ActorRole,
			},
		})
	}
	return entry, nil
}

// LatestBalance returns the newest balance for the partition.
func (s *Service) LatestBalance(ctx context.Context, tenantID, actorID int64) (int64, error) {
	if tenantID == 0 || actorID == 0 {
		return 0, fmt.Errorf("cashbox: tenant and actor required: %w", shared.ErrValidation)
	}
	return s.repo.LatestBalance(ctx, tenantID, actorID)
}

// ListEntries lists recent partition entries, newest first.
func (s *Service) ListEntries(ctx context.Context, tenantID, actorID int64, limit int) ([]Entry, error) {
	if tenantID == 0 || actorID == 0 {
		return nil, fmt.Errorf("cashbox: tenant and actor required: %w", shared.ErrValidation)
	}
	return s.repo.ListEntries(ctx, tenantID, actorID, limit)
}
