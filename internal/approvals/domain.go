// Package approvals implements the staging workflow for courier-submitted
// cash movements. A movement affects no balance until an owner or manager
// approves it; approval materializes exactly one cash ledger entry.
package approvals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aquaflow/aquaflow/internal/cashbox"
	"github.com/aquaflow/aquaflow/internal/shared"
)

// Status enumerates the pending-movement lifecycle. pending is the only
// non-terminal state and is left exactly once.
type Status string

const (
	// StatusPending awaits an approval decision.
	StatusPending Status = "pending"
	// StatusApproved has materialized a ledger entry.
	StatusApproved Status = "approved"
	// StatusRejected was discarded without touching any balance.
	StatusRejected Status = "rejected"
)

// PendingMovement is a staged courier movement. It is the only entity in the
// ledger core with an in-place state transition.
type PendingMovement struct {
	ID            uuid.UUID
	TenantID      int64
	SubmitterID   int64
	SubmitterName string
	ApproverRole  string
	OccurredDate  time.Time
	OccurredTime  time.Time
	Kind          cashbox.MovementKind
	Amount        int64
	Status        Status
	ResolvedAt    *time.Time
	ApproverID    int64
	EntryID       *int64
	CreatedAt     time.Time
}

// Domain errors.
var (
	// ErrMovementResolved flags an approval attempt on a rejected movement.
	ErrMovementResolved = fmt.Errorf("approvals: movement already resolved: %w", shared.ErrConflict)
	// ErrNotApprover flags a decision by a non-owner/manager actor.
	ErrNotApprover = fmt.Errorf("approvals: approver must be owner or manager: %w", shared.ErrValidation)
)
