package leave_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// HELPERS
// =============================================================================

func tier(catID leave.CategoryID, minYears int, rate string) leave.PolicyTier {
	return leave.PolicyTier{
		CategoryID:  catID,
		MinYears:    minYears,
		DaysPerYear: decimal.RequireFromString(rate),
	}
}

// standardTiers is the three-bracket schedule used across these tests:
// 10 days/year below 5 years, 15 up to 10, 20 beyond.
func standardTiers() []leave.PolicyTier {
	return []leave.PolicyTier{
		tier("cat-annual", 0, "10"),
		tier("cat-annual", 5, "15"),
		tier("cat-annual", 10, "20"),
	}
}

// =============================================================================
// TIERED ENTITLEMENT - Bracket accumulation
// =============================================================================

func TestTieredEntitlement_AccumulatesAcrossBrackets(t *testing.T) {
	// GIVEN the standard three-tier schedule
	// WHEN tenure spans the first two brackets
	// THEN each year is paid at the rate of the bracket it falls in

	// 5 years at 10 + 2 years at 15
	got := leave.TieredEntitlement(standardTiers(), 7)
	assert.Equal(t, 80, got, "7 years should accumulate 5*10 + 2*15")

	// 5 at 10 + 5 at 15 + 2 at 20
	got = leave.TieredEntitlement(standardTiers(), 12)
	assert.Equal(t, 165, got, "12 years should accumulate 5*10 + 5*15 + 2*20")
}

func TestTieredEntitlement_WithinFirstBracket(t *testing.T) {
	got := leave.TieredEntitlement(standardTiers(), 3)
	assert.Equal(t, 30, got)

	// Exactly at a bracket boundary: the boundary year is already paid at
	// the next rate only for years BEYOND the threshold.
	got = leave.TieredEntitlement(standardTiers(), 5)
	assert.Equal(t, 50, got, "5 completed years are all within the first bracket")
}

func TestTieredEntitlement_ZeroAndNegativeTenure(t *testing.T) {
	assert.Equal(t, 0, leave.TieredEntitlement(standardTiers(), 0))
	assert.Equal(t, 0, leave.TieredEntitlement(standardTiers(), -1))
}

func TestTieredEntitlement_NoTiers(t *testing.T) {
	assert.Equal(t, 0, leave.TieredEntitlement(nil, 7))
}

func TestTieredEntitlement_FractionalRatesFloorOnce(t *testing.T) {
	// GIVEN a fractional rate of 12.5 days/year
	// WHEN 3 years accumulate to 37.5
	// THEN the result floors only at the very end, not per year
	tiers := []leave.PolicyTier{tier("cat-annual", 0, "12.5")}
	assert.Equal(t, 37, leave.TieredEntitlement(tiers, 3))

	// 12.5 + 12.5 = 25 exactly; per-year flooring would have yielded 24.
	assert.Equal(t, 25, leave.TieredEntitlement(tiers, 2))
}

// =============================================================================
// APPLICABLE TIER
// =============================================================================

func TestApplicableTier_PicksHighestSatisfiedThreshold(t *testing.T) {
	tiers := standardTiers()

	got := leave.ApplicableTier(tiers, 7)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.MinYears)

	got = leave.ApplicableTier(tiers, 25)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.MinYears)
}

func TestApplicableTier_BelowFirstThreshold(t *testing.T) {
	// GIVEN a schedule that only starts at 2 years of service
	tiers := []leave.PolicyTier{tier("cat-annual", 2, "10")}

	// THEN a newer hire has no applicable tier at all
	assert.Nil(t, leave.ApplicableTier(tiers, 1))
	assert.NotNil(t, leave.ApplicableTier(tiers, 2))
}

// =============================================================================
// RESOLVER - Catalog-backed entitlement
// =============================================================================

func newTestResolver(t *testing.T) (*leave.Resolver, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return leave.NewResolver(mem), mem
}

func TestResolver_TieredCategory(t *testing.T) {
	resolver, mem := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-annual", Code: "ANNUAL", Method: leave.CalcTenureTiered, Active: true,
	}))
	for _, pt := range standardTiers() {
		require.NoError(t, mem.SaveTier(ctx, pt))
	}

	got, err := resolver.Entitlement(ctx, "cat-annual", 7, leave.NewDate(2026, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, 80, got)
}

func TestResolver_FixedAndEventBasedUseMaxDays(t *testing.T) {
	resolver, _ := newTestResolver(t)
	ctx := context.Background()
	asOf := leave.NewDate(2026, 6, 1)

	fixed := leave.LeaveCategory{ID: "cat-sick", Method: leave.CalcFixed, MaxDays: 2, Active: true}
	got, err := resolver.EntitlementFor(ctx, &fixed, 20, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "fixed categories ignore tenure")

	event := leave.LeaveCategory{ID: "cat-marriage", EventBased: true, MaxDays: 5, Active: true}
	got, err = resolver.EntitlementFor(ctx, &event, 0, asOf)
	require.NoError(t, err)
	assert.Equal(t, 5, got, "event-based categories grant their fixed allowance")
}

func TestResolver_NoApplicableTier(t *testing.T) {
	resolver, mem := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-annual", Code: "ANNUAL", Method: leave.CalcTenureTiered, Active: true,
	}))
	require.NoError(t, mem.SaveTier(ctx, tier("cat-annual", 1, "10")))

	_, err := resolver.ResolveTier(ctx, "cat-annual", 0, leave.NewDate(2026, 6, 1))
	assert.ErrorIs(t, err, leave.ErrNoApplicablePolicy)
}

func TestResolver_EffectiveWindowFiltersTiers(t *testing.T) {
	// GIVEN a tier that expired at the end of 2024 and its replacement
	resolver, mem := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-annual", Code: "ANNUAL", Method: leave.CalcTenureTiered, Active: true,
	}))

	old := tier("cat-annual", 0, "8")
	old.EffectiveTo = leave.NewDate(2024, 12, 31)
	require.NoError(t, mem.SaveTier(ctx, old))

	current := tier("cat-annual", 0, "10")
	current.EffectiveFrom = leave.NewDate(2025, 1, 1)
	require.NoError(t, mem.SaveTier(ctx, current))

	// WHEN resolving before and after the cutover
	before, err := resolver.Entitlement(ctx, "cat-annual", 3, leave.NewDate(2024, 6, 1))
	require.NoError(t, err)
	after, err := resolver.Entitlement(ctx, "cat-annual", 3, leave.NewDate(2026, 6, 1))
	require.NoError(t, err)

	// THEN each date sees only its own schedule
	assert.Equal(t, 24, before)
	assert.Equal(t, 30, after)
}
