package factory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// PARSING - Full document
// =============================================================================

const fullCatalogJSON = `{
	"renewal_rules": [
		{"id": "new-year", "type": "yearly", "trigger_month": 1, "trigger_day": 1},
		{"id": "monthly-first", "type": "monthly", "trigger_day": 1},
		{"id": "hire-anniversary", "type": "service_anniversary"}
	],
	"categories": [
		{
			"id": "cat-annual",
			"code": "annual",
			"name": "Annual Leave",
			"method": "tenure_tiered",
			"renewal_rule_id": "new-year",
			"tiers": [
				{"min_years": 0, "days_per_year": 10},
				{"min_years": 5, "days_per_year": 12.5}
			],
			"conditions": [
				{
					"id": "annual-fulltime",
					"attribute": "personnel.employment_type",
					"operator": "EQ",
					"value": "FULL_TIME",
					"message": "annual leave requires full-time employment"
				}
			]
		},
		{
			"id": "cat-marriage",
			"code": "MARRIAGE",
			"name": "Marriage Leave",
			"event_based": true,
			"max_days": 5,
			"requires_approval": false
		}
	],
	"holidays": [
		{"id": "new-years-day", "name": "New Year's Day", "date": "2026-01-01", "recurring": true}
	]
}`

func TestParseCatalog_FullDocument(t *testing.T) {
	cat, err := factory.ParseCatalog([]byte(fullCatalogJSON))
	require.NoError(t, err)

	require.Len(t, cat.Rules, 3)
	assert.Equal(t, leave.RenewalYearly, cat.Rules[0].Type)
	assert.Equal(t, leave.RenewalMonthly, cat.Rules[1].Type)
	assert.Equal(t, leave.RenewalAnniversary, cat.Rules[2].Type)

	require.Len(t, cat.Categories, 2)
	annual := cat.Categories[0]
	assert.Equal(t, "ANNUAL", annual.Code, "codes are normalized to upper case")
	assert.Equal(t, leave.CalcTenureTiered, annual.Method)
	assert.True(t, annual.RequiresApproval, "requires_approval defaults to true")
	assert.True(t, annual.Active, "active defaults to true")

	marriage := cat.Categories[1]
	assert.True(t, marriage.EventBased)
	assert.Equal(t, leave.CalcFixed, marriage.Method, "method defaults to fixed")
	assert.False(t, marriage.RequiresApproval)

	require.Len(t, cat.Tiers, 2)
	assert.True(t, cat.Tiers[1].DaysPerYear.Equal(decimal.RequireFromString("12.5")))

	require.Len(t, cat.Conditions, 1)
	cond := cat.Conditions[0]
	assert.Equal(t, "personnel", cond.SourceTable)
	assert.Equal(t, "employment_type", cond.SourceColumn)
	assert.Equal(t, leave.OpEQ, cond.Operator)
	assert.Equal(t, leave.DataString, cond.DataType, "data_type defaults to string")
	assert.True(t, cond.Active)

	require.Len(t, cat.Holidays, 1)
	assert.True(t, cat.Holidays[0].Recurring)
}

// =============================================================================
// VALIDATION - Documents that must be refused
// =============================================================================

func TestParseCatalog_Rejections(t *testing.T) {
	cases := []struct {
		name string
		json string
		want string
	}{
		{
			"malformed json",
			`{"categories": [`,
			"failed to parse",
		},
		{
			"missing category id",
			`{"categories": [{"code": "X", "name": "X"}]}`,
			"requires id and code",
		},
		{
			"duplicate category code",
			`{"categories": [
				{"id": "a", "code": "ANNUAL", "name": "A"},
				{"id": "b", "code": "annual", "name": "B"}
			]}`,
			"duplicate category code",
		},
		{
			"unknown calculation method",
			`{"categories": [{"id": "a", "code": "A", "name": "A", "method": "accrued_hourly"}]}`,
			"unknown calculation method",
		},
		{
			"unknown renewal rule reference",
			`{"categories": [{"id": "a", "code": "A", "name": "A", "renewal_rule_id": "ghost"}]}`,
			"unknown renewal rule",
		},
		{
			"event-based without allowance",
			`{"categories": [{"id": "a", "code": "A", "name": "A", "event_based": true}]}`,
			"requires max_days",
		},
		{
			"duplicate rule id",
			`{"renewal_rules": [
				{"id": "r", "type": "monthly", "trigger_day": 1},
				{"id": "r", "type": "monthly", "trigger_day": 2}
			], "categories": []}`,
			"duplicate renewal rule",
		},
		{
			"yearly rule without month",
			`{"renewal_rules": [{"id": "r", "type": "yearly", "trigger_day": 1}], "categories": []}`,
			"trigger_month",
		},
		{
			"monthly rule beyond day 28",
			`{"renewal_rules": [{"id": "r", "type": "monthly", "trigger_day": 31}], "categories": []}`,
			"trigger_day 1-28",
		},
		{
			"unknown rule type",
			`{"renewal_rules": [{"id": "r", "type": "fortnightly"}], "categories": []}`,
			"unknown type",
		},
		{
			"negative tier threshold",
			`{"categories": [{"id": "a", "code": "A", "name": "A", "method": "tenure_tiered",
				"tiers": [{"min_years": -1, "days_per_year": 10}]}]}`,
			"min_years",
		},
		{
			"zero accrual rate",
			`{"categories": [{"id": "a", "code": "A", "name": "A", "method": "tenure_tiered",
				"tiers": [{"min_years": 0, "days_per_year": 0}]}]}`,
			"days_per_year",
		},
		{
			"attribute without table prefix",
			`{"categories": [{"id": "a", "code": "A", "name": "A",
				"conditions": [{"id": "c", "attribute": "employment_type", "operator": "EQ", "value": "X"}]}]}`,
			"table.column",
		},
		{
			"unknown operator",
			`{"categories": [{"id": "a", "code": "A", "name": "A",
				"conditions": [{"id": "c", "attribute": "personnel.employment_type", "operator": "LIKE", "value": "X"}]}]}`,
			"unknown operator",
		},
		{
			"unknown data type",
			`{"categories": [{"id": "a", "code": "A", "name": "A",
				"conditions": [{"id": "c", "attribute": "personnel.employment_type", "operator": "EQ", "value": "X", "data_type": "uuid"}]}]}`,
			"unknown data type",
		},
		{
			"invalid holiday date",
			`{"categories": [], "holidays": [{"id": "h", "name": "H", "date": "01/01/2026"}]}`,
			"invalid date",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ParseCatalog([]byte(tc.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

// =============================================================================
// LOADING
// =============================================================================

func TestCatalog_LoadIntoStore(t *testing.T) {
	// GIVEN the parsed full document and an empty store
	cat, err := factory.ParseCatalog([]byte(fullCatalogJSON))
	require.NoError(t, err)

	mem := store.NewMemory()
	ctx := context.Background()

	// WHEN loaded
	require.NoError(t, cat.Load(ctx, mem))
	require.NoError(t, cat.LoadHolidays(ctx, mem))

	// THEN everything is queryable through the catalog interfaces
	loaded, err := mem.Category(ctx, "cat-annual")
	require.NoError(t, err)
	assert.Equal(t, "ANNUAL", loaded.Code)

	tiers, err := mem.Tiers(ctx, "cat-annual", leave.NewDate(2026, 6, 1))
	require.NoError(t, err)
	assert.Len(t, tiers, 2)

	conds, err := mem.Conditions(ctx, "cat-annual")
	require.NoError(t, err)
	assert.Len(t, conds, 1)

	bindings, err := mem.CategoriesWithRenewal(ctx, leave.RenewalYearly)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "new-year", bindings[0].Rule.ID)

	assert.True(t, mem.IsHoliday(leave.NewDate(2030, 1, 1)), "recurring holiday matches any year")
}
