package leave_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// FIXTURE
// =============================================================================

// newRenewalFixture seeds two people and a yearly tiered category, a monthly
// fixed category and an anniversary tiered category.
//
//	emp-old  hired 2014-04-20: 11+ years of service
//	emp-new  hired 2024-04-20: 2 years of service
func newRenewalFixture(t *testing.T) (*leave.RenewalEngine, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	mem.AddPersonnel(leave.Personnel{ID: "emp-old", Name: "Olive", HireDate: leave.NewDate(2014, 4, 20), Active: true})
	mem.AddPersonnel(leave.Personnel{ID: "emp-new", Name: "Nina", HireDate: leave.NewDate(2024, 4, 20), Active: true})

	require.NoError(t, mem.SaveRenewalRule(ctx, leave.RenewalRule{
		ID: "rule-newyear", Type: leave.RenewalYearly, TriggerMonth: 1, TriggerDay: 1,
	}))
	require.NoError(t, mem.SaveRenewalRule(ctx, leave.RenewalRule{
		ID: "rule-monthly", Type: leave.RenewalMonthly, TriggerDay: 1,
	}))
	require.NoError(t, mem.SaveRenewalRule(ctx, leave.RenewalRule{
		ID: "rule-anniversary", Type: leave.RenewalAnniversary,
	}))

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-annual", Code: "ANNUAL", Method: leave.CalcTenureTiered,
		RenewalRuleID: "rule-newyear", Active: true,
	}))
	for _, pt := range standardTiers() {
		require.NoError(t, mem.SaveTier(ctx, pt))
	}

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-sick", Code: "SICK", Method: leave.CalcFixed, MaxDays: 2,
		RenewalRuleID: "rule-monthly", Active: true,
	}))

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-sabbatical", Code: "SABBATICAL", Method: leave.CalcTenureTiered,
		RenewalRuleID: "rule-anniversary", Active: true,
	}))
	require.NoError(t, mem.SaveTier(ctx, tier("cat-sabbatical", 0, "1")))

	engine := &leave.RenewalEngine{
		Catalog:   mem,
		Ledger:    leave.NewLedger(mem),
		Balances:  mem,
		Directory: mem,
		Resolver:  leave.NewResolver(mem),
		Logger:    zerolog.Nop(),
	}
	return engine, mem
}

func reportFor(t *testing.T, reports []leave.SweepReport, sweep string) leave.SweepReport {
	t.Helper()
	for _, r := range reports {
		if r.Sweep == sweep {
			return r
		}
	}
	t.Fatalf("no report for sweep %q", sweep)
	return leave.SweepReport{}
}

// =============================================================================
// YEARLY SWEEP
// =============================================================================

func TestYearlySweep_ResetsFromCurrentTenure(t *testing.T) {
	// GIVEN ledger rows carrying last year's totals and some usage
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	oldKey := leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-annual", Year: 2026}
	newKey := leave.LedgerKey{PersonnelID: "emp-new", CategoryID: "cat-annual", Year: 2026}
	require.NoError(t, mem.SetEntry(ctx, oldKey, 150, 12))
	require.NoError(t, mem.SetEntry(ctx, newKey, 10, 3))

	// WHEN the yearly sweep runs on its trigger date
	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 1, 1))

	yearly := reportFor(t, reports, "yearly")
	assert.Equal(t, 2, yearly.Processed)
	assert.Equal(t, 0, yearly.Failed)
	require.NoError(t, yearly.Err)

	// THEN totals are recomputed from each person's tenure and usage zeroed.
	// Olive has 11 years on 2026-01-01: 5*10 + 5*15 + 1*20 = 145.
	entry, err := mem.Entry(ctx, oldKey)
	require.NoError(t, err)
	assert.Equal(t, 145, entry.TotalDays)
	assert.Equal(t, 0, entry.UsedDays)

	// Nina has 1 completed year: 1*10.
	entry, err = mem.Entry(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, 10, entry.TotalDays)
	assert.Equal(t, 0, entry.UsedDays)
}

func TestYearlySweep_OffDateIsNoop(t *testing.T) {
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	key := leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-annual", Year: 2026}
	require.NoError(t, mem.SetEntry(ctx, key, 150, 12))

	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 3, 15))
	assert.Equal(t, 0, reportFor(t, reports, "yearly").Processed)

	entry, err := mem.Entry(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 150, entry.TotalDays)
	assert.Equal(t, 12, entry.UsedDays)
}

func TestYearlySweep_FailingRecordDoesNotAbortSweep(t *testing.T) {
	// GIVEN one ledger row whose person is missing from the directory
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	ghost := leave.LedgerKey{PersonnelID: "emp-ghost", CategoryID: "cat-annual", Year: 2026}
	ok := leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-annual", Year: 2026}
	require.NoError(t, mem.SetEntry(ctx, ghost, 10, 0))
	require.NoError(t, mem.SetEntry(ctx, ok, 150, 12))

	// WHEN the sweep runs
	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 1, 1))

	// THEN the bad record is counted as failed and the good one still reset
	yearly := reportFor(t, reports, "yearly")
	assert.Equal(t, 1, yearly.Processed)
	assert.Equal(t, 1, yearly.Failed)

	entry, err := mem.Entry(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.UsedDays)
}

// =============================================================================
// MONTHLY SWEEP
// =============================================================================

func TestMonthlySweep_ResetsToFixedAllowance(t *testing.T) {
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	key := leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-sick", Year: 2026}
	require.NoError(t, mem.SetEntry(ctx, key, 2, 2))

	// Fires on the 1st of every month.
	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 7, 1))
	assert.Equal(t, 1, reportFor(t, reports, "monthly").Processed)

	entry, err := mem.Entry(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.TotalDays)
	assert.Equal(t, 0, entry.UsedDays)
}

func TestMonthlyRule_TriggerDayClampsToShortMonths(t *testing.T) {
	rule := leave.RenewalRule{ID: "rule-eom", Type: leave.RenewalMonthly, TriggerDay: 31}

	cases := []struct {
		name  string
		date  leave.Date
		fires bool
	}{
		{"january 31st", leave.NewDate(2026, 1, 31), true},
		{"february last day", leave.NewDate(2026, 2, 28), true},
		{"leap february last day", leave.NewDate(2024, 2, 29), true},
		{"leap february 28th", leave.NewDate(2024, 2, 28), false},
		{"april 30th", leave.NewDate(2026, 4, 30), true},
		{"april 29th", leave.NewDate(2026, 4, 29), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.fires, rule.FiresOn(tc.date))
		})
	}
}

func TestMonthlySweep_OffDayIsNoop(t *testing.T) {
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	key := leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-sick", Year: 2026}
	require.NoError(t, mem.SetEntry(ctx, key, 2, 1))

	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 7, 2))
	assert.Equal(t, 0, reportFor(t, reports, "monthly").Processed)

	entry, err := mem.Entry(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.UsedDays)
}

// =============================================================================
// ANNIVERSARY SWEEP
// =============================================================================

func TestAnniversarySweep_FiresOnHireMonthDay(t *testing.T) {
	// GIVEN both people hired on April 20th
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	// WHEN the sweep runs on that month/day
	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 4, 20))

	// THEN each gets an anniversary reset, rows created as needed
	anniversary := reportFor(t, reports, "service_anniversary")
	assert.Equal(t, 2, anniversary.Processed)
	assert.Equal(t, 0, anniversary.Failed)

	// Olive completes 12 years on this anniversary, at 1 day/year.
	entry, err := mem.Entry(ctx, leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-sabbatical", Year: 2026})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 12, entry.TotalDays)

	entry, err = mem.Entry(ctx, leave.LedgerKey{PersonnelID: "emp-new", CategoryID: "cat-sabbatical", Year: 2026})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.TotalDays)
}

func TestAnniversarySweep_SkipsNonAnniversaryPeople(t *testing.T) {
	engine, mem := newRenewalFixture(t)
	mem.AddPersonnel(leave.Personnel{ID: "emp-may", Name: "Mae", HireDate: leave.NewDate(2020, 5, 3), Active: true})
	ctx := context.Background()

	reports := engine.RunSweeps(ctx, leave.NewDate(2026, 4, 20))
	assert.Equal(t, 2, reportFor(t, reports, "service_anniversary").Processed)

	entry, err := mem.Entry(ctx, leave.LedgerKey{PersonnelID: "emp-may", CategoryID: "cat-sabbatical", Year: 2026})
	require.NoError(t, err)
	assert.Nil(t, entry, "people whose anniversary is another day are untouched")
}

// =============================================================================
// FULL RECALCULATION
// =============================================================================

func TestRecalculateAll_PreservesUsage(t *testing.T) {
	// GIVEN a stale total with usage already booked against it
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	key := leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-annual", Year: 2026}
	require.NoError(t, mem.SetEntry(ctx, key, 60, 9))

	// WHEN everything is recomputed mid-year
	updated, err := engine.RecalculateAll(ctx, leave.NewDate(2026, 6, 1))
	require.NoError(t, err)

	// Two people times three periodic categories.
	assert.Equal(t, 6, updated)

	// THEN the total is corrected but usage survives.
	// Olive has 12 completed years on 2026-06-01: 5*10 + 5*15 + 2*20 = 165.
	entry, err := mem.Entry(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 165, entry.TotalDays)
	assert.Equal(t, 9, entry.UsedDays)
}

func TestRecalculateAll_SkipsEventBasedCategories(t *testing.T) {
	engine, mem := newRenewalFixture(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveCategory(ctx, leave.LeaveCategory{
		ID: "cat-marriage", Code: "MARRIAGE", EventBased: true, MaxDays: 5, Active: true,
	}))

	_, err := engine.RecalculateAll(ctx, leave.NewDate(2026, 6, 1))
	require.NoError(t, err)

	entry, err := mem.Entry(ctx, leave.LedgerKey{PersonnelID: "emp-old", CategoryID: "cat-marriage", Year: 2026})
	require.NoError(t, err)
	assert.Nil(t, entry, "event-based quotas are only seeded on first use")
}
