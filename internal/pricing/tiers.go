// Package pricing implements tiered unit-price configuration and resolution.
// Tier sets are parsed and validated once at configuration write time, so
// resolution is a pure scan that never fails.
package pricing

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aquaflow/aquaflow/internal/shared"
)

// Period enumerates the billing periods a tier set can be scoped to.
type Period string

const (
	// PeriodMonthly prices against the month-to-date unit counter.
	PeriodMonthly Period = "monthly"
	// PeriodYearly prices against the year-to-date unit counter.
	PeriodYearly Period = "yearly"
)

// Valid reports whether p is a known billing period.
func (p Period) Valid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// Tier maps a contiguous range of cumulative usage to a unit price.
// A nil End means the tier is unbounded above.
type Tier struct {
	Start     int64  `json:"start"`
	End       *int64 `json:"end"`
	UnitPrice int64  `json:"unit_price"`
}

// TierSet is an ordered collection of tiers belonging to one tenant and period.
type TierSet []Tier

// ParseTierSet decodes and validates a stored tier configuration.
func ParseTierSet(raw []byte) (TierSet, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var set TierSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("pricing: decode tiers: %w: %v", shared.ErrValidation, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate enforces the tier-set invariants: non-negative bounds, positive
// prices, end >= start, ranges sorted by start and mutually disjoint, and at
// most one unbounded tier which must carry the highest start.
func (ts TierSet) Validate() error {
	for i, t := range ts {
		if t.Start < 0 {
			return fmt.Errorf("pricing: tier %d: negative start: %w", i, shared.ErrValidation)
		}
		if t.UnitPrice <= 0 {
			return fmt.Errorf("pricing: tier %d: unit price must be positive: %w", i, shared.ErrValidation)
		}
		if t.End != nil && *t.End < t.Start {
			return fmt.Errorf("pricing: tier %d: end before start: %w", i, shared.ErrValidation)
		}
	}

	ordered := ts.sorted()
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.End == nil {
			return fmt.Errorf("pricing: tier after unbounded tier: %w", shared.ErrValidation)
		}
		if *prev.End >= cur.Start {
			return fmt.Errorf("pricing: tiers overlap at %d: %w", cur.Start, shared.ErrValidation)
		}
	}
	return nil
}

// Resolve returns the unit price for the given running counter value.
// The counter is the cumulative unit count taken before adding the current
// order's quantity. An empty set or an unmatched counter resolves to 0,
// meaning "unpriced"; callers decide whether to reject upstream.
func (ts TierSet) Resolve(counter int64) int64 {
	if len(ts) == 0 {
		return 0
	}
	ordered := ts.sorted()
	for _, t := range ordered {
		if counter < t.Start {
			continue
		}
		if t.End == nil || counter <= *t.End {
			return t.UnitPrice
		}
	}
	if last := ordered[len(ordered)-1]; last.End == nil {
		return last.UnitPrice
	}
	return 0
}

func (ts TierSet) sorted() TierSet {
	ordered := make(TierSet, len(ts))
	copy(ordered, ts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	return ordered
}
