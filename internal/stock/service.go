package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	LatestBalance(ctx context.Context, tenantID, courierID int64) (int64, error)
	ListEntries(ctx context.Context, tenantID, courierID int64, limit int) ([]Entry, error)
}

// TenantPort verifies tenant existence.
type TenantPort interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// AuditPort records audit trail entries best effort.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates externally submitted movements.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates stock movements and balance queries.
type Service struct {
	repo        RepositoryPort
	tenants     TenantPort
	audit       AuditPort
	idempotency IdempotencyPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, tenantPort TenantPort, audit AuditPort, idempotency IdempotencyPort) *Service {
	return &Service{repo: repo, tenants: tenantPort, audit: audit, idempotency: idempotency}
}

// MovementInput carries the fields for one stock movement.
type MovementInput struct {
	TenantID       int64
	CourierID      int64
	CourierName    string
	Operation      Operation
	UnitsIn        int64
	UnitsOut       int64
	Note           string
	OccurredAt     time.Time
	IdempotencyKey string
}

// RecordMovement validates the operation legs and appends the movement under
// the partition lock. The empty-returned operation persists a row with both
// legs zero and the balance carried forward unchanged.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Entry, error) {
	if input.TenantID == 0 || input.CourierID == 0 {
		return Entry{}, fmt.Errorf("stock: tenant and courier required: %w", shared.ErrValidation)
	}
	if !input.Operation.Valid() {
		return Entry{}, ErrInvalidOperation
	}
	if err := CheckLegs(input.Operation, input.UnitsIn, input.UnitsOut); err != nil {
		return Entry{}, err
	}
	if s.tenants != nil {
		if _, err := s.tenants.Get(ctx, input.TenantID); err != nil {
			return Entry{}, err
		}
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "stock"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Entry{}, fmt.Errorf("stock: duplicate movement: %w", shared.ErrConflict)
			}
			return Entry{}, err
		}
	}

	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPartition(ctx, input.TenantID, input.CourierID); err != nil {
			return err
		}
		prev, err := tx.LastBalance(ctx, input.TenantID, input.CourierID)
		if err != nil {
			return err
		}
		entry = Entry{
			TenantID:     input.TenantID,
			CourierID:    input.CourierID,
			CourierName:  input.CourierName,
			OccurredDate: shared.DayOf(occurred),
			OccurredTime: occurred,
			Operation:    input.Operation,
			UnitsIn:      input.UnitsIn,
			UnitsOut:     input.UnitsOut,
			Balance:      NextBalance(prev, input.UnitsIn, input.UnitsOut),
			Note:         input.Note,
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			ActorID:  input.CourierID,
			Action:   fmt.Sprintf("stock:%s", input.Operation),
			Entity:   "stock_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"units_in":  input.UnitsIn,
				"units_out": input.UnitsOut,
				"balance":   entry.Balance,
			},
		})
	}
	return entry, nil
}

// LatestBalance returns the newest stock balance for the partition.
func (s *Service) LatestBalance(ctx context.Context, tenantID, courierID int64) (int64, error) {
	if tenantID == 0 || courierID == 0 {
		return 0, fmt.Errorf("stock: tenant and courier required: %w", shared.ErrValidation)
	}
	return s.repo.LatestBalance(ctx, tenantID, courierID)
}

// ListEntries lists recent partition entries, newest first.
func (s *Service) ListEntries(ctx context.Context, tenantID, courierID int64, limit int) ([]Entry, error) {
	if tenantID == 0 || courierID == 0 {
		return nil, fmt.Errorf("stock: tenant and courier required: %w", shared.ErrValidation)
	}
	return s.repo.ListEntries(ctx, tenantID, courierID, limit)
}
