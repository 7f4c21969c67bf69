/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates personnel, a leave
	catalog (categories, tiers, conditions, renewal rules) and seeds the
	balance ledger.

AVAILABLE SCENARIOS:

	standard-company:  Tiered annual leave, monthly sick allowance,
	                   event-based marriage leave, mixed tenure
	eligibility-rules: Conditions gating categories by employment type
	                   and marital status
	renewal-demo:      People whose anniversaries and trigger dates land
	                   on today, for demonstrating sweeps

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Load the catalog via factory JSON
 3. Create personnel with attributes
 4. Recalculate entitlements to seed ledger rows

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "standard-company"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler dependencies
  - factory/catalog.go: Catalog JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-company",
		Name:        "Standard Company",
		Description: "Tiered annual leave, monthly sick allowance, event-based marriage leave",
	},
	{
		ID:          "eligibility-rules",
		Name:        "Eligibility Rules",
		Description: "Categories gated by employment type and marital status conditions",
	},
	{
		ID:          "renewal-demo",
		Name:        "Renewal Demo",
		Description: "Anniversaries and trigger dates landing on today, for sweep demos",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "standard-company":
		err = loadStandardCompanyScenario(ctx, h)
	case "eligibility-rules":
		err = loadEligibilityRulesScenario(ctx, h)
	case "renewal-demo":
		err = loadRenewalDemoScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadCatalogJSON(ctx context.Context, h *Handler, jsonStr string) error {
	catalog, err := factory.ParseCatalog([]byte(jsonStr))
	if err != nil {
		return err
	}
	if err := catalog.Load(ctx, h.Store); err != nil {
		return err
	}
	return catalog.LoadHolidays(ctx, h.Store)
}

func addPerson(ctx context.Context, h *Handler, id, name, hireDate, employmentType, gender, maritalStatus string) error {
	hire, err := leave.ParseDate(hireDate)
	if err != nil {
		return err
	}
	return h.Store.SavePersonnel(ctx, leave.Personnel{
		ID:       leave.PersonnelID(id),
		Name:     name,
		HireDate: hire,
		Active:   true,
	}, employmentType, gender, maritalStatus)
}

// loadStandardCompanyScenario: the typical setup. Annual leave accrues by
// tenure bracket, sick days reset monthly, marriage leave is event-based.
func loadStandardCompanyScenario(ctx context.Context, h *Handler) error {
	catalog := `{
		"renewal_rules": [
			{"id": "new-year", "type": "yearly", "trigger_month": 1, "trigger_day": 1},
			{"id": "month-start", "type": "monthly", "trigger_day": 1}
		],
		"categories": [
			{
				"id": "cat-annual", "code": "ANNUAL", "name": "Annual Leave",
				"method": "tenure_tiered", "renewal_rule_id": "new-year",
				"tiers": [
					{"min_years": 0, "days_per_year": 10},
					{"min_years": 5, "days_per_year": 15},
					{"min_years": 10, "days_per_year": 20}
				]
			},
			{
				"id": "cat-sick", "code": "SICK", "name": "Sick Leave",
				"method": "fixed", "renewal_rule_id": "month-start",
				"max_days": 2, "requires_approval": false
			},
			{
				"id": "cat-marriage", "code": "MARRIAGE", "name": "Marriage Leave",
				"method": "fixed", "event_based": true, "max_days": 5
			}
		],
		"holidays": [
			{"id": "new-years-day", "name": "New Year's Day", "date": "2025-01-01", "recurring": true},
			{"id": "christmas", "name": "Christmas Day", "date": "2025-12-25", "recurring": true}
		]
	}`
	if err := loadCatalogJSON(ctx, h, catalog); err != nil {
		return err
	}

	people := []struct{ id, name, hire string }{
		{"emp-alice", "Alice Nguyen", "2023-03-15"},
		{"emp-bob", "Bob Martinez", "2018-06-01"},
		{"emp-carol", "Carol Okafor", "2012-09-20"},
	}
	for _, p := range people {
		if err := addPerson(ctx, h, p.id, p.name, p.hire, "FULL_TIME", "", "SINGLE"); err != nil {
			return err
		}
	}

	_, err := h.Renewal.RecalculateAll(ctx, leave.DateOf(time.Now()))
	return err
}

// loadEligibilityRulesScenario: conditions in action. ANNUAL requires
// full-time employment, MARRIAGE requires being married.
func loadEligibilityRulesScenario(ctx context.Context, h *Handler) error {
	catalog := `{
		"renewal_rules": [
			{"id": "new-year", "type": "yearly", "trigger_month": 1, "trigger_day": 1}
		],
		"categories": [
			{
				"id": "cat-annual", "code": "ANNUAL", "name": "Annual Leave",
				"method": "tenure_tiered", "renewal_rule_id": "new-year",
				"tiers": [{"min_years": 0, "days_per_year": 12}],
				"conditions": [
					{
						"id": "annual-fulltime",
						"attribute": "personnel.employment_type",
						"operator": "EQ", "value": "FULL_TIME",
						"message": "annual leave requires full-time employment"
					}
				]
			},
			{
				"id": "cat-marriage", "code": "MARRIAGE", "name": "Marriage Leave",
				"method": "fixed", "event_based": true, "max_days": 5,
				"conditions": [
					{
						"id": "marriage-married",
						"attribute": "personnel.marital_status",
						"operator": "EQ", "value": "MARRIED",
						"message": "marriage leave requires married status"
					}
				]
			}
		]
	}`
	if err := loadCatalogJSON(ctx, h, catalog); err != nil {
		return err
	}

	// Dana qualifies for both; Evan is part-time and single, so neither.
	if err := addPerson(ctx, h, "emp-dana", "Dana Petrov", "2020-01-10", "FULL_TIME", "", "MARRIED"); err != nil {
		return err
	}
	if err := addPerson(ctx, h, "emp-evan", "Evan Lee", "2024-05-01", "PART_TIME", "", "SINGLE"); err != nil {
		return err
	}

	_, err := h.Renewal.RecalculateAll(ctx, leave.DateOf(time.Now()))
	return err
}

// loadRenewalDemoScenario: one person hired on today's month/day (previous
// years), so the anniversary sweep fires immediately via RunNow or the
// admin endpoint.
func loadRenewalDemoScenario(ctx context.Context, h *Handler) error {
	today := leave.DateOf(time.Now())

	catalog := fmt.Sprintf(`{
		"renewal_rules": [
			{"id": "anniversary", "type": "service_anniversary"},
			{"id": "month-start", "type": "monthly", "trigger_day": %d}
		],
		"categories": [
			{
				"id": "cat-annual", "code": "ANNUAL", "name": "Annual Leave",
				"method": "tenure_tiered", "renewal_rule_id": "anniversary",
				"tiers": [
					{"min_years": 0, "days_per_year": 10},
					{"min_years": 5, "days_per_year": 15}
				]
			},
			{
				"id": "cat-sick", "code": "SICK", "name": "Sick Leave",
				"method": "fixed", "renewal_rule_id": "month-start",
				"max_days": 2, "requires_approval": false
			}
		]
	}`, minInt(today.Day(), 28))
	if err := loadCatalogJSON(ctx, h, catalog); err != nil {
		return err
	}

	// Hired exactly N years ago: anniversary falls on today.
	anniversaryHire := today.AddYears(-6)
	if err := addPerson(ctx, h, "emp-frank", "Frank Ibrahim", anniversaryHire.String(), "FULL_TIME", "", ""); err != nil {
		return err
	}
	if err := addPerson(ctx, h, "emp-grace", "Grace Tanaka", "2021-02-11", "FULL_TIME", "", ""); err != nil {
		return err
	}

	_, err := h.Renewal.RecalculateAll(ctx, today)
	return err
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
