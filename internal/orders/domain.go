// Package orders creates water delivery orders: it resolves the unit price
// from the tenant's tier configuration and assigns a globally unique,
// human-readable order number under concurrent writers.
package orders

import (
	"fmt"
	"time"

	"github.com/aquaflow/aquaflow/internal/pricing"
	"github.com/aquaflow/aquaflow/internal/shared"
)

// Status enumerates the order lifecycle.
type Status string

const (
	// StatusCreated is a freshly placed order.
	StatusCreated Status = "created"
	// StatusDelivered has been fulfilled by a courier.
	StatusDelivered Status = "delivered"
	// StatusCancelled was withdrawn before delivery.
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order is a write-once order row. Number is assigned exactly once at
// creation and never mutated; a uniqueness collision regenerates the number
// on a fresh row instead.
type Order struct {
	ID         int64
	TenantID   int64
	ClientName string
	Address    string
	Number     string
	Quantity   int64
	UnitPrice  int64
	Amount     int64
	Period     pricing.Period
	Counter    int64
	Status     Status
	CreatedAt  time.Time
}

// Domain errors.
var (
	// ErrInvalidQuantity flags a non-positive unit quantity.
	ErrInvalidQuantity = fmt.Errorf("orders: quantity must be positive: %w", shared.ErrValidation)
	// ErrNumberTaken reports an order-number uniqueness collision. The
	// creation path retries the whole allocate-and-insert sequence on it.
	ErrNumberTaken = fmt.Errorf("orders: number already taken: %w", shared.ErrConflict)
	// ErrUnpriced flags order creation for a tenant without a matching tier.
	ErrUnpriced = fmt.Errorf("orders: no price tier matches: %w", shared.ErrValidation)
)
