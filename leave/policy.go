/*
policy.go - Tiered entitlement calculation

PURPOSE:
  Computes how many days of a leave category a person has earned for
  their tenure. The tier schedule is a step function over years of
  service, and entitlement is CUMULATIVE: a person with 7 years under
  tiers [(0yr, 10d), (5yr, 15d)] earned 10 days/year for their first 5
  years and 15 days/year for the next 2, so 5*10 + 2*15 = 80 days -
  not 7 * 15.

KEY CONCEPTS:
  - TieredEntitlement: The pure bracket accumulation
  - Resolver: Loads tiers from the catalog and handles fixed and
    event-based categories

PRECISION:
  Rates are decimal.Decimal so fractional day rates (1.25 days/month
  expressed as 15/year, or 12.5 days/year) accumulate exactly. The
  final result is floored to whole days.
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIERED ACCUMULATION
// =============================================================================

// TieredEntitlement accumulates per-bracket accrual over completed years of
// service. Tiers must be ordered by MinYears ascending. Returns 0 when there
// are no tiers or no completed years.
func TieredEntitlement(tiers []PolicyTier, yearsOfService int) int {
	if len(tiers) == 0 || yearsOfService <= 0 {
		return 0
	}

	total := decimal.Zero
	for i, tier := range tiers {
		if yearsOfService <= tier.MinYears {
			break
		}
		upper := yearsOfService
		if i+1 < len(tiers) && tiers[i+1].MinYears < upper {
			upper = tiers[i+1].MinYears
		}
		span := upper - tier.MinYears
		if span <= 0 {
			continue
		}
		total = total.Add(tier.DaysPerYear.Mul(decimal.NewFromInt(int64(span))))
	}

	// Floor to whole days. Accumulated totals are never negative.
	return int(total.IntPart())
}

// ApplicableTier returns the tier covering the given tenure: the last tier
// whose threshold has been reached. Nil when no tier applies.
func ApplicableTier(tiers []PolicyTier, yearsOfService int) *PolicyTier {
	var match *PolicyTier
	for i := range tiers {
		if tiers[i].MinYears <= yearsOfService {
			match = &tiers[i]
		}
	}
	return match
}

// =============================================================================
// RESOLVER - Catalog-backed entitlement lookup
// =============================================================================

// Resolver answers "how many days is this person entitled to?" for any
// category, loading the tier schedule from the catalog.
type Resolver struct {
	Catalog CatalogStore
}

func NewResolver(catalog CatalogStore) *Resolver {
	return &Resolver{Catalog: catalog}
}

// Entitlement computes the tiered entitlement for a category and tenure,
// using the tiers in effect on asOf.
func (r *Resolver) Entitlement(ctx context.Context, id CategoryID, yearsOfService int, asOf Date) (int, error) {
	tiers, err := r.Catalog.Tiers(ctx, id, asOf)
	if err != nil {
		return 0, err
	}
	return TieredEntitlement(tiers, yearsOfService), nil
}

// EntitlementFor dispatches on the category's calculation method. Fixed and
// event-based categories pay their flat MaxDays; tiered categories go
// through the step function.
func (r *Resolver) EntitlementFor(ctx context.Context, cat *LeaveCategory, yearsOfService int, asOf Date) (int, error) {
	if cat.EventBased || cat.Method == CalcFixed {
		return cat.MaxDays, nil
	}
	return r.Entitlement(ctx, cat.ID, yearsOfService, asOf)
}

// ResolveTier returns the tier applicable to the person's tenure, or
// ErrNoApplicablePolicy when the schedule does not cover it.
func (r *Resolver) ResolveTier(ctx context.Context, id CategoryID, yearsOfService int, asOf Date) (*PolicyTier, error) {
	tiers, err := r.Catalog.Tiers(ctx, id, asOf)
	if err != nil {
		return nil, err
	}
	tier := ApplicableTier(tiers, yearsOfService)
	if tier == nil {
		return nil, ErrNoApplicablePolicy
	}
	return tier, nil
}
