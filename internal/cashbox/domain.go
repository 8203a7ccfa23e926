// Package cashbox implements the balance-chained cash ledger. Entries are an
// immutable event log: every balance is derived from the immediately
// preceding entry of the same (tenant, actor) partition, never from a
// mutable aggregate.
package cashbox

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/tenants"
)

// MovementKind classifies a cash movement.
type MovementKind string

const (
	// KindIncome increases the balance.
	KindIncome MovementKind = "income"
	// KindExpense decreases the balance.
	KindExpense MovementKind = "expense"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Entry is one immutable cash ledger row. Exactly one of Income/Expense is
// non-zero and matches Kind.
type Entry struct {
	ID           int64
	TenantID     int64
	ActorRole    tenants.ActorRole
	ActorID      int64
	ActorName    string
	OccurredDate time.Time
	OccurredTime time.Time
	Kind         MovementKind
	Income       int64
	Expense      int64
	Balance      int64
	Message      string
	CreatedAt    time.Time
}

// Domain errors.
var (
	// ErrInvalidAmount flags a non-positive magnitude.
	ErrInvalidAmount = fmt.Errorf("cashbox: amount must be positive: %w", shared.ErrValidation)
	// ErrInvalidKind flags an unknown movement kind.
	ErrInvalidKind = fmt.Errorf("cashbox: unknown movement kind: %w", shared.ErrValidation)
	// ErrInvalidRole flags an unknown actor role.
	ErrInvalidRole = fmt.Errorf("cashbox: unknown actor role: %w", shared.ErrValidation)
)

// Apply computes the next balance and the income/expense legs for a movement.
// It is the single place the chaining arithmetic lives, shared with the
// approval workflow's materialization path.
func Apply(prev int64, kind MovementKind, amount int64) (income, expense, balance int64, err error) {
	if amount <= 0 {
		return 0, 0, 0, ErrInvalidAmount
	}
	switch kind {
	case KindIncome:
		return amount, 0, prev + amount, nil
	case KindExpense:
		return 0, amount, prev - amount, nil
	default:
		return 0, 0, 0, ErrInvalidKind
	}
}

var msgPrinter = message.NewPrinter(language.Uzbek)

// MovementMessage composes the human-readable ledger note stored with each
// entry, mirroring the operator-facing cash journal.
func MovementMessage(kind MovementKind, amount int64, actorName string) string {
	switch kind {
	case KindIncome:
		if actorName != "" {
			return msgPrinter.Sprintf("Kirim: %d so'm (%s)", amount, actorName)
		}
		return msgPrinter.Sprintf("Kirim: %d so'm", amount)
	case KindExpense:
		return msgPrinter.Sprintf("Naqd pul topshirildi: %d so'm", amount)
	default:
		return ""
	}
}
