/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog definitions into leave.LeaveCategory,
  leave.RenewalRule, leave.PolicyTier and leave.EligibilityCondition
  objects. This enables leave policy configuration without code changes -
  HR can define categories in JSON, and the factory creates the proper
  Go structs and loads them into the catalog store.

WHY JSON?
  - Non-developers can modify leave policies
  - Easy integration with admin UI
  - Version control for policy definitions
  - Database storage of catalog configs

JSON SCHEMA:
  {
    "renewal_rules": [
      {"id": "new-year", "type": "yearly", "trigger_month": 1, "trigger_day": 1}
    ],
    "categories": [
      {
        "id": "cat-annual",
        "code": "ANNUAL",
        "name": "Annual Leave",
        "method": "tenure_tiered",
        "renewal_rule_id": "new-year",
        "requires_approval": true,
        "tiers": [
          {"min_years": 0, "days_per_year": 10},
          {"min_years": 5, "days_per_year": 15},
          {"min_years": 10, "days_per_year": 20}
        ],
        "conditions": [
          {
            "id": "annual-fulltime",
            "attribute": "personnel.employment_type",
            "data_type": "string",
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
        "method": "fixed",
        "event_based": true,
        "max_days": 5
      }
    ],
    "holidays": [
      {"id": "new-years-day", "name": "New Year's Day", "date": "2025-01-01", "recurring": true}
    ]
  }

KEY FEATURES:
  - Validates category codes, methods, operators and attribute references
  - Sets sensible defaults (active, requires_approval)
  - Splits "table.column" attribute references for the condition registry
  - Load() writes the whole catalog into a CatalogStore in one pass

USAGE:
  catalog, err := factory.ParseCatalog(jsonBytes)
  if err != nil { ... }
  if err := catalog.Load(ctx, store); err != nil { ... }

SEE ALSO:
  - leave/types.go: Category, tier and condition definitions
  - leave/store.go: CatalogStore interface
  - api/scenarios.go: Go-based demo catalogs
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a full leave catalog.
type CatalogJSON struct {
	RenewalRules []RenewalRuleJSON `json:"renewal_rules,omitempty"`
	Categories   []CategoryJSON    `json:"categories"`
	Holidays     []HolidayJSON     `json:"holidays,omitempty"`
}

// RenewalRuleJSON represents a renewal trigger.
type RenewalRuleJSON struct {
	ID           string `json:"id"`
	Type         string `json:"type"` // yearly, service_anniversary, monthly
	TriggerMonth int    `json:"trigger_month,omitempty"`
	TriggerDay   int    `json:"trigger_day,omitempty"`
}

// CategoryJSON represents one leave category.
type CategoryJSON struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Method           string          `json:"method"` // fixed, tenure_tiered
	RenewalRuleID    string          `json:"renewal_rule_id,omitempty"`
	EventBased       bool            `json:"event_based,omitempty"`
	MaxDays          int             `json:"max_days,omitempty"`
	RequiresApproval *bool           `json:"requires_approval,omitempty"` // default true
	Active           *bool           `json:"active,omitempty"`            // default true
	Tiers            []TierJSON      `json:"tiers,omitempty"`
	Conditions       []ConditionJSON `json:"conditions,omitempty"`
}

// TierJSON represents one bracket of the tenure accrual step function.
type TierJSON struct {
	MinYears      int     `json:"min_years"`
	DaysPerYear   float64 `json:"days_per_year"`
	EffectiveFrom string  `json:"effective_from,omitempty"`
	EffectiveTo   string  `json:"effective_to,omitempty"`
	CarryForward  bool    `json:"carry_forward,omitempty"`
	MaxCarryover  float64 `json:"max_carryover,omitempty"`
}

// ConditionJSON represents a declarative eligibility rule. Attribute uses
// "table.column" form and must name a registered attribute.
type ConditionJSON struct {
	ID        string `json:"id"`
	Attribute string `json:"attribute"`
	DataType  string `json:"data_type,omitempty"` // string, number, boolean, date
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	Message   string `json:"message,omitempty"`
	Active    *bool  `json:"active,omitempty"` // default true
}

// HolidayJSON represents a public holiday.
type HolidayJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Recurring bool   `json:"recurring,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the parsed, validated form of a CatalogJSON document.
type Catalog struct {
	Rules      []leave.RenewalRule
	Categories []leave.LeaveCategory
	Tiers      []leave.PolicyTier
	Conditions []leave.EligibilityCondition
	Holidays   []leave.Holiday
}

// ParseCatalog parses and validates a JSON catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return FromJSON(cj)
}

// FromJSON converts a CatalogJSON document into leave types.
func FromJSON(cj CatalogJSON) (*Catalog, error) {
	cat := &Catalog{}

	ruleIDs := make(map[string]bool)
	for _, rj := range cj.RenewalRules {
		rule, err := parseRenewalRule(rj)
		if err != nil {
			return nil, err
		}
		if ruleIDs[rule.ID] {
			return nil, fmt.Errorf("duplicate renewal rule id %q", rule.ID)
		}
		ruleIDs[rule.ID] = true
		cat.Rules = append(cat.Rules, rule)
	}

	codes := make(map[string]bool)
	for _, catj := range cj.Categories {
		if catj.ID == "" || catj.Code == "" {
			return nil, fmt.Errorf("category requires id and code")
		}
		code := strings.ToUpper(catj.Code)
		if codes[code] {
			return nil, fmt.Errorf("duplicate category code %q", code)
		}
		codes[code] = true

		method, err := parseMethod(catj.Method)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", catj.Code, err)
		}
		if catj.RenewalRuleID != "" && !ruleIDs[catj.RenewalRuleID] {
			return nil, fmt.Errorf("category %q references unknown renewal rule %q", catj.Code, catj.RenewalRuleID)
		}
		if catj.EventBased && catj.MaxDays <= 0 {
			return nil, fmt.Errorf("event-based category %q requires max_days", catj.Code)
		}

		category := leave.LeaveCategory{
			ID:               leave.CategoryID(catj.ID),
			Code:             code,
			Name:             catj.Name,
			Method:           method,
			RenewalRuleID:    catj.RenewalRuleID,
			EventBased:       catj.EventBased,
			MaxDays:          catj.MaxDays,
			RequiresApproval: boolOr(catj.RequiresApproval, true),
			Active:           boolOr(catj.Active, true),
		}
		cat.Categories = append(cat.Categories, category)

		for _, tj := range catj.Tiers {
			tier, err := parseTier(category.ID, tj)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", catj.Code, err)
			}
			cat.Tiers = append(cat.Tiers, tier)
		}

		for i, condj := range catj.Conditions {
			cond, err := parseCondition(category.ID, condj)
			if err != nil {
				return nil, fmt.Errorf("category %q condition %d: %w", catj.Code, i, err)
			}
			cat.Conditions = append(cat.Conditions, cond)
		}
	}

	for _, hj := range cj.Holidays {
		date, err := leave.ParseDate(hj.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: invalid date: %w", hj.ID, err)
		}
		cat.Holidays = append(cat.Holidays, leave.Holiday{
			ID:        hj.ID,
			Name:      hj.Name,
			Date:      date,
			Recurring: hj.Recurring,
		})
	}

	return cat, nil
}

// CatalogWriter is the subset of stores Load writes to.
type CatalogWriter interface {
	SaveRenewalRule(ctx context.Context, rule leave.RenewalRule) error
	SaveCategory(ctx context.Context, cat leave.LeaveCategory) error
	SaveTier(ctx context.Context, tier leave.PolicyTier) error
	SaveCondition(ctx context.Context, cond leave.EligibilityCondition) error
}

// HolidayWriter persists public holidays.
type HolidayWriter interface {
	SaveHoliday(ctx context.Context, h leave.Holiday) error
}

// Load writes the catalog into the store. Rules land before the categories
// that reference them.
func (c *Catalog) Load(ctx context.Context, store CatalogWriter) error {
	for _, rule := range c.Rules {
		if err := store.SaveRenewalRule(ctx, rule); err != nil {
			return err
		}
	}
	for _, cat := range c.Categories {
		if err := store.SaveCategory(ctx, cat); err != nil {
			return err
		}
	}
	for _, tier := range c.Tiers {
		if err := store.SaveTier(ctx, tier); err != nil {
			return err
		}
	}
	for _, cond := range c.Conditions {
		if err := store.SaveCondition(ctx, cond); err != nil {
			return err
		}
	}
	return nil
}

// LoadHolidays writes the catalog's holidays into the store.
func (c *Catalog) LoadHolidays(ctx context.Context, store HolidayWriter) error {
	for _, h := range c.Holidays {
		if err := store.SaveHoliday(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRenewalRule(rj RenewalRuleJSON) (leave.RenewalRule, error) {
	if rj.ID == "" {
		return leave.RenewalRule{}, fmt.Errorf("renewal rule requires id")
	}
	rule := leave.RenewalRule{ID: rj.ID, TriggerDay: rj.TriggerDay}

	switch rj.Type {
	case "yearly":
		rule.Type = leave.RenewalYearly
		if rj.TriggerMonth < 1 || rj.TriggerMonth > 12 {
			return leave.RenewalRule{}, fmt.Errorf("renewal rule %q: yearly rule requires trigger_month 1-12", rj.ID)
		}
		rule.TriggerMonth = time.Month(rj.TriggerMonth)
		if rule.TriggerDay < 1 || rule.TriggerDay > 31 {
			return leave.RenewalRule{}, fmt.Errorf("renewal rule %q: yearly rule requires trigger_day 1-31", rj.ID)
		}
	case "service_anniversary":
		rule.Type = leave.RenewalAnniversary
	case "monthly":
		rule.Type = leave.RenewalMonthly
		if rule.TriggerDay < 1 || rule.TriggerDay > 28 {
			return leave.RenewalRule{}, fmt.Errorf("renewal rule %q: monthly rule requires trigger_day 1-28", rj.ID)
		}
	default:
		return leave.RenewalRule{}, fmt.Errorf("renewal rule %q: unknown type %q", rj.ID, rj.Type)
	}
	return rule, nil
}

func parseMethod(s string) (leave.CalculationMethod, error) {
	switch s {
	case "fixed", "":
		return leave.CalcFixed, nil
	case "tenure_tiered":
		return leave.CalcTenureTiered, nil
	default:
		return "", fmt.Errorf("unknown calculation method %q", s)
	}
}

func parseTier(id leave.CategoryID, tj TierJSON) (leave.PolicyTier, error) {
	if tj.MinYears < 0 {
		return leave.PolicyTier{}, fmt.Errorf("tier min_years must not be negative")
	}
	if tj.DaysPerYear <= 0 {
		return leave.PolicyTier{}, fmt.Errorf("tier days_per_year must be positive")
	}

	tier := leave.PolicyTier{
		CategoryID:   id,
		MinYears:     tj.MinYears,
		DaysPerYear:  decimal.NewFromFloat(tj.DaysPerYear),
		CarryForward: tj.CarryForward,
		MaxCarryover: decimal.NewFromFloat(tj.MaxCarryover),
	}
	if tj.EffectiveFrom != "" {
		d, err := leave.ParseDate(tj.EffectiveFrom)
		if err != nil {
			return leave.PolicyTier{}, fmt.Errorf("invalid effective_from: %w", err)
		}
		tier.EffectiveFrom = d
	}
	if tj.EffectiveTo != "" {
		d, err := leave.ParseDate(tj.EffectiveTo)
		if err != nil {
			return leave.PolicyTier{}, fmt.Errorf("invalid effective_to: %w", err)
		}
		tier.EffectiveTo = d
	}
	return tier, nil
}

func parseCondition(id leave.CategoryID, condj ConditionJSON) (leave.EligibilityCondition, error) {
	if condj.ID == "" {
		return leave.EligibilityCondition{}, fmt.Errorf("condition requires id")
	}
	table, column, ok := strings.Cut(condj.Attribute, ".")
	if !ok || table == "" || column == "" {
		return leave.EligibilityCondition{}, fmt.Errorf("attribute must use table.column form, got %q", condj.Attribute)
	}

	op, err := parseOperator(condj.Operator)
	if err != nil {
		return leave.EligibilityCondition{}, err
	}
	dt, err := parseDataType(condj.DataType)
	if err != nil {
		return leave.EligibilityCondition{}, err
	}

	return leave.EligibilityCondition{
		ID:            condj.ID,
		CategoryID:    id,
		SourceTable:   table,
		SourceColumn:  column,
		DataType:      dt,
		Operator:      op,
		RequiredValue: condj.Value,
		ErrorMessage:  condj.Message,
		Active:        boolOr(condj.Active, true),
	}, nil
}

func parseOperator(s string) (leave.Operator, error) {
	switch strings.ToUpper(s) {
	case "EQ":
		return leave.OpEQ, nil
	case "NE":
		return leave.OpNE, nil
	case "GT":
		return leave.OpGT, nil
	case "GE":
		return leave.OpGE, nil
	case "LT":
		return leave.OpLT, nil
	case "LE":
		return leave.OpLE, nil
	case "IN":
		return leave.OpIn, nil
	case "NOT_IN":
		return leave.OpNotIn, nil
	default:
		return "", fmt.Errorf("unknown operator %q", s)
	}
}

func parseDataType(s string) (leave.DataType, error) {
	switch strings.ToLower(s) {
	case "string", "":
		return leave.DataString, nil
	case "number":
		return leave.DataNumber, nil
	case "boolean":
		return leave.DataBoolean, nil
	case "date":
		return leave.DataDate, nil
	default:
		return "", fmt.Errorf("unknown data type %q", s)
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
