// Package stock implements the courier bottle-stock ledger. It follows the
// same balance-chaining model as the cash ledger but carries two legs per
// row (units in, units out) with operation-specific sign rules, and the
// running balance is floored at zero.
package stock

import (
	"fmt"
	"time"

	"github.com/aquaflow/aquaflow/internal/shared"
)

// Operation classifies a stock movement.
type Operation string

const (
	// OpReceivedFromOwner loads full containers onto a courier.
	OpReceivedFromOwner Operation = "received-from-owner"
	// OpSoldToClient hands full containers to a client.
	OpSoldToClient Operation = "sold-to-client"
	// OpEmptyReturned records empties coming back. Audit only, the full
	// container balance does not move.
	OpEmptyReturned Operation = "empty-returned"
	// OpAdjustment corrects the balance in either direction.
	OpAdjustment Operation = "adjustment"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpReceivedFromOwner, OpSoldToClient, OpEmptyReturned, OpAdjustment:
		return true
	}
	return false
}

// Entry is one immutable stock ledger row.
type Entry struct {
	ID           int64
	TenantID     int64
	CourierID    int64
	CourierName  string
	OccurredDate time.Time
	OccurredTime time.Time
	Operation    Operation
	UnitsIn      int64
	UnitsOut     int64
	Balance      int64
	Note         string
	CreatedAt    time.Time
}

// Domain errors.
var (
	// ErrInvalidOperation flags an unknown operation.
	ErrInvalidOperation = fmt.Errorf("stock: unknown operation: %w", shared.ErrValidation)
	// ErrLegMismatch flags in/out legs inconsistent with the operation.
	ErrLegMismatch = fmt.Errorf("stock: units do not match operation: %w", shared.ErrValidation)
)

// CheckLegs validates the in/out legs against the operation's sign rules.
// received-from-owner takes units in only, sold-to-client units out only,
// empty-returned takes neither, and adjustment needs at least one leg set.
func CheckLegs(op Operation, in, out int64) error {
	if in < 0 || out < 0 {
		return ErrLegMismatch
	}
	switch op {
	case OpReceivedFromOwner:
		if in <= 0 || out != 0 {
			return ErrLegMismatch
		}
	case OpSoldToClient:
		if out <= 0 || in != 0 {
			return ErrLegMismatch
		}
	case OpEmptyReturned:
		if in != 0 || out != 0 {
			return ErrLegMismatch
		}
	case OpAdjustment:
		if in == 0 && out == 0 {
			return ErrLegMismatch
		}
	default:
		return ErrInvalidOperation
	}
	return nil
}

// NextBalance chains the new balance from the previous one, floored at zero.
func NextBalance(prev, in, out int64) int64 {
	balance := prev + in - out
	if balance < 0 {
		return 0
	}
	return balance
}
