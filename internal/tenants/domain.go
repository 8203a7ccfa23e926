// Package tenants manages the business accounts that own ledgers, tier
// configuration and counters.
package tenants

import (
	"time"

	"github.com/aquaflow/aquaflow/internal/pricing"
)

// Tenant is an independent business account. All ledger rows, tiers and
// counters are scoped by its identifier.
type Tenant struct {
	ID            int64
	Name          string
	City          string
	Region        string
	Phone         string
	BillingPeriod pricing.Period
	Tiers         pricing.TierSet
	PinHash       string
	CreatedAt     time.Time
}

// ActorRole identifies who initiated a movement.
type ActorRole string

const (
	// RoleOwner is the business owner.
	RoleOwner ActorRole = "owner"
	// RoleManager acts on the owner's behalf.
	RoleManager ActorRole = "manager"
	// RoleCourier submits movements that require approval.
	RoleCourier ActorRole = "courier"
)

// Valid reports whether r is a known role.
func (r ActorRole) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleCourier:
		return true
	}
	return false
}
