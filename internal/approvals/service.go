package approvals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflow/aquaflow/internal/cashbox"
	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, m PendingMovement) error
	Get(ctx context.Context, id uuid.UUID) (PendingMovement, error)
	ListPending(ctx context.Context, tenantID int64) ([]PendingMovement, error)
}

// TenantPort verifies tenant existence.
type TenantPort interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
}

// AuditPort records audit trail entries best effort.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the submit/approve/reject workflow.
type Service struct {
	repo    RepositoryPort
	tenants TenantPort
	audit   AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, tenantPort TenantPort, audit AuditPort) *Service {
	return &Service{repo: repo, tenants: tenantPort, audit: audit}
}

// SubmitInput carries a courier-submitted movement.
type SubmitInput struct {
	TenantID      int64
	SubmitterID   int64
	SubmitterName string
	Kind          cashbox.MovementKind
	Amount        int64
	SubmittedAt   time.Time
}

// Approver identifies who decides on a pending movement.
type Approver struct {
	Role tenants.ActorRole
	ID   int64
}

func (a Approver) canDecide() bool {
	return a.ID != 0 && (a.Role == tenants.RoleOwner || a.Role == tenants.RoleManager)
}

// Submit stages a courier movement. No balance is touched until approval.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (PendingMovement, error) {
	if input.TenantID == 0 || input.SubmitterID == 0 {
		return PendingMovement{}, fmt.Errorf("approvals: tenant and submitter required: %w", shared.ErrValidation)
	}
	if !input.Kind.Valid() {
		return PendingMovement{}, cashbox.ErrInvalidKind
	}
	if input.Amount <= 0 {
		return PendingMovement{}, cashbox.ErrInvalidAmount
	}
	if s.tenants != nil {
		if _, err := s.tenants.Get(ctx, input.TenantID); err != nil {
			return PendingMovement{}, err
		}
	}

	submitted := input.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	m := PendingMovement{
		ID:            uuid.New(),
		TenantID:      input.TenantID,
		SubmitterID:   input.SubmitterID,
		SubmitterName: input.SubmitterName,
		ApproverRole:  string(tenants.RoleOwner),
		OccurredDate:  shared.DayOf(submitted),
		OccurredTime:  submitted,
		Kind:          input.Kind,
		Amount:        input.Amount,
		Status:        StatusPending,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return PendingMovement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			ActorID:  input.SubmitterID,
			Action:   "approvals:submit",
			Entity:   "pending_movement",
			EntityID: m.ID.String(),
			Meta:     map[string]any{"kind": input.Kind, "amount": input.Amount},
		})
	}
	return m, nil
}

// Approve materializes a pending movement into the cash ledger.
//
// It is idempotent for already-approved movements: the existing entry comes
// back with no side effects, never a second materialization. Approving a
// rejected movement fails with ErrMovementResolved and writes nothing.
// The status flip and the ledger insert share one transaction with the cash
// partition lock, so two concurrent approvals for the same actor always chain
// sequential balances.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approver Approver, now time.Time) (*cashbox.Entry, error) {
	if !approver.canDecide() {
		return nil, ErrNotApprover
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		entry        *cashbox.Entry
		materialized bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch m.Status {
		case StatusApproved:
			if m.EntryID == nil {
				return nil
			}
			existing, err := tx.GetCashEntry(ctx, *m.EntryID)
			if err != nil {
				return err
			}
			entry = &existing
			return nil
		case StatusRejected:
			return ErrMovementResolved
		}

		if err := tx.LockCashPartition(ctx, m.TenantID, m.SubmitterID); err != nil {
			return err
		}
		prev, err := tx.LastCashBalance(ctx, m.TenantID, m.SubmitterID)
		if err != nil {
			return err
		}
		income, expense, balance, err := cashbox.Apply(prev, m.Kind, m.Amount)
		if err != nil {
			return err
		}
		e := cashbox.Entry{
			TenantID:     m.TenantID,
			ActorRole:    tenants.RoleCourier,
			ActorID:      m.SubmitterID,
			ActorName:    m.SubmitterName,
			OccurredDate: m.OccurredDate,
			OccurredTime: m.OccurredTime,
			Kind:         m.Kind,
			Income:       income,
			Expense:      expense,
			Balance:      balance,
			Message:      cashbox.MovementMessage(m.Kind, m.Amount, m.SubmitterName),
		}
		entryID, err := tx.InsertCashEntry(ctx, e)
		if err != nil {
			return err
		}
		if err := tx.MarkApproved(ctx, id, approver.ID, entryID, now); err != nil {
			return err
		}
		e.ID = entryID
		entry = &e
		materialized = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if materialized && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  approver.ID,
			Action:   "approvals:approve",
			Entity:   "pending_movement",
			EntityID: id.String(),
			Meta:     map[string]any{"entry_id": entry.ID, "balance": entry.Balance},
		})
	}
	return entry, nil
}

// Reject discards a pending movement. Rejecting a movement that already left
// the pending state is a no-op.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, approver Approver, now time.Time) error {
	if !approver.canDecide() {
		return ErrNotApprover
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rejected bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != StatusPending {
			return nil
		}
		if err := tx.MarkRejected(ctx, id, approver.ID, now); err != nil {
			return err
		}
		rejected = true
		return nil
	})
	if err != nil {
		return err
	}

	if rejected && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  approver.ID,
			Action:   "approvals:reject",
			Entity:   "pending_movement",
			EntityID: id.String(),
		})
	}
	return nil
}

// Get loads one pending movement.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (PendingMovement, error) {
	return s.repo.Get(ctx, id)
}

// ListPending lists a tenant's undecided movements, oldest first.
func (s *Service) ListPending(ctx context.Context, tenantID int64) ([]PendingMovement, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("approvals: tenant required: %w", shared.ErrValidation)
	}
	return s.repo.ListPending(ctx, tenantID)
}
