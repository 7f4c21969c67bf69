/*
handlers.go - HTTP API handlers for the leave entitlement engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Personnel:
    GET    /api/personnel                        List directory records
    POST   /api/personnel                        Create directory record
    GET    /api/personnel/{id}                   Get directory record
    GET    /api/personnel/{id}/balance           Per-category balances
    GET    /api/personnel/{id}/requests          Request history
    GET    /api/personnel/{id}/eligibility/{category}  Dry-run eligibility

  Requests:
    POST   /api/requests                         Submit leave request
    GET    /api/requests/pending                 List pending requests
    GET    /api/requests/{id}                    Get request
    POST   /api/requests/{id}/approve            Approve (optionally forced)
    POST   /api/requests/{id}/reject             Reject

  Catalog:
    GET    /api/categories                       List leave categories
    POST   /api/categories                       Load catalog from JSON

  Holidays:
    GET    /api/holidays                         List holidays
    POST   /api/holidays                         Create holiday
    DELETE /api/holidays/{id}                    Delete holiday

  Admin:
    POST   /api/admin/renewal-sweep              Run renewal sweeps for a date
    POST   /api/admin/recalculate                Recompute all entitlements

  Scenarios:
    GET    /api/scenarios                        List demo scenarios
    POST   /api/scenarios/load                   Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies: the SQLite store, the request
  lifecycle service, the renewal engine and the policy resolver. All of
  them are wired once in NewHandler.

ERROR HANDLING:
  Domain errors are mapped in dto.go (writeDomainError):
  - 400: validation errors, eligibility failures
  - 404: unknown personnel/category/request
  - 409: overlap, insufficient balance, double decision
  - 500: internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Requests *leave.RequestService
	Renewal  *leave.RenewalEngine
	Resolver *leave.Resolver
	Logger   zerolog.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires the domain services on top of the given store.
func NewHandler(store *sqlite.Store, logger zerolog.Logger) *Handler {
	resolver := leave.NewResolver(store)
	ledger := leave.NewLedger(store)
	evaluator := leave.NewEvaluator(store, AttributeRegistry(store))

	requests := &leave.RequestService{
		Requests:   store,
		Catalog:    store,
		Directory:  store,
		Ledger:     ledger,
		Resolver:   resolver,
		Conditions: evaluator,
		Calendar:   store,
		Notifier:   leave.NopNotifier{},
		Logger:     logger,
	}

	renewal := &leave.RenewalEngine{
		Catalog:   store,
		Ledger:    ledger,
		Balances:  store,
		Directory: store,
		Resolver:  resolver,
		Logger:    logger,
	}

	return &Handler{
		Store:    store,
		Requests: requests,
		Renewal:  renewal,
		Resolver: resolver,
		Logger:   logger,
	}
}

// AttributeRegistry builds the closed attribute registry backed by the
// store's whitelisted personnel columns. Conditions can only reference
// attributes registered here.
func AttributeRegistry(store *sqlite.Store) *leave.AttributeRegistry {
	reg := leave.NewAttributeRegistry()
	for _, column := range []string{"employment_type", "gender", "marital_status", "hire_date", "active"} {
		col := column
		reg.Register("personnel", col, func(ctx context.Context, id leave.PersonnelID) (string, error) {
			return store.PersonnelAttribute(ctx, id, col)
		})
	}
	return reg
}

// =============================================================================
// PERSONNEL HANDLERS
// =============================================================================

// ListPersonnel returns all active directory records.
func (h *Handler) ListPersonnel(w http.ResponseWriter, r *http.Request) {
	people, err := h.Store.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list personnel", err)
		return
	}

	dtos := make([]PersonnelDTO, len(people))
	for i, p := range people {
		dtos[i] = toPersonnelDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPersonnel returns a single directory record.
func (h *Handler) GetPersonnel(w http.ResponseWriter, r *http.Request) {
	id := leave.PersonnelID(chi.URLParam(r, "id"))

	p, err := h.Store.Personnel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonnelDTO(*p))
}

// CreatePersonnel creates a directory record with its condition attributes.
func (h *Handler) CreatePersonnel(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonnelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	hireDate, err := leave.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p := leave.Personnel{
		ID:       leave.PersonnelID(req.ID),
		Name:     req.Name,
		HireDate: hireDate,
		Active:   active,
	}

	if err := h.Store.SavePersonnel(r.Context(), p, req.EmploymentType, req.Gender, req.MaritalStatus); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create personnel", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonnelDTO(p))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns all ledger rows for a person. Year defaults to the
// current year; pass ?year= to inspect others.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := leave.PersonnelID(chi.URLParam(r, "id"))

	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := leave.ParseDate(y + "-01-01")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed.Year()
	}

	if _, err := h.Store.Personnel(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := h.Store.EntriesForPersonnel(r.Context(), id, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toBalanceDTO(e)
	}
	writeJSON(w, http.StatusOK, BalanceSummaryDTO{
		PersonnelID: string(id),
		Year:        year,
		Balances:    dtos,
	})
}

// CheckEligibility is a dry-run: does this person currently qualify for
// this category, and what would the entitlement be?
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	pid := leave.PersonnelID(chi.URLParam(r, "id"))
	cid := leave.CategoryID(chi.URLParam(r, "category"))

	result, err := h.Requests.CheckEligibility(r.Context(), pid, cid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EligibilityDTO{
		PersonnelID: string(pid),
		CategoryID:  string(cid),
		Eligible:    result.Eligible,
		Message:     result.Message,
		Entitlement: result.Entitlement,
	})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a pending leave request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := leave.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := leave.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Requests.Create(r.Context(), leave.CreateInput{
		PersonnelID: leave.PersonnelID(req.PersonnelID),
		CategoryID:  leave.CategoryID(req.CategoryID),
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// GetRequest returns a single leave request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	req, err := h.Store.Request(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ListRequests returns the request history for a person.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	id := leave.PersonnelID(chi.URLParam(r, "id"))

	reqs, err := h.Store.RequestsByPersonnel(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// ListPendingRequests returns all requests awaiting a decision.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.PendingRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// ApproveRequest approves a pending request, debiting the ledger. With
// force_approve=true the debit may overdraw the entry.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var req DecisionRequestDTO
	if err := decodeOptionalBody(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	approved, err := h.Requests.Approve(r.Context(), id, req.DeciderID, req.ForceApprove)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*approved))
}

// RejectRequest rejects a pending request. The ledger is untouched.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var req DecisionRequestDTO
	if err := decodeOptionalBody(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rejected, err := h.Requests.Reject(r.Context(), id, req.DeciderID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*rejected))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListCategories returns all leave categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories", err)
		return
	}

	dtos := make([]CategoryDTO, len(cats))
	for i, cat := range cats {
		dtos[i] = toCategoryDTO(cat)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadCatalog parses a JSON catalog document and writes it into the store.
// Existing records with matching IDs are updated.
func (h *Handler) LoadCatalog(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	catalog, err := factory.ParseCatalog(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid catalog", err)
		return
	}

	if err := catalog.Load(r.Context(), h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load catalog", err)
		return
	}
	if err := catalog.LoadHolidays(r.Context(), h.Store); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load holidays", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"categories": len(catalog.Categories),
		"tiers":      len(catalog.Tiers),
		"conditions": len(catalog.Conditions),
		"holidays":   len(catalog.Holidays),
	})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays for a year (default: current).
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := leave.ParseDate(y + "-01-01")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = parsed.Year()
	}

	holidays := h.Store.Holidays(year)
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{
			ID:        hol.ID,
			Name:      hol.Name,
			Date:      hol.Date.String(),
			Recurring: hol.Recurring,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a public holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	date, err := leave.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday := leave.Holiday{
		ID:        req.ID,
		Name:      req.Name,
		Date:      date,
		Recurring: req.Recurring,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DeleteHoliday removes a public holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRenewalSweep runs the yearly, anniversary and monthly sweeps as of
// a given date (default: today). Intended for admin and backfill use; the
// background scheduler runs the same sweeps daily.
func (h *Handler) TriggerRenewalSweep(w http.ResponseWriter, r *http.Request) {
	today, ok := h.sweepDate(w, r)
	if !ok {
		return
	}

	reports := h.Renewal.RunSweeps(r.Context(), today)
	dtos := make([]SweepResultDTO, len(reports))
	for i, rep := range reports {
		dtos[i] = SweepResultDTO{
			Sweep:     rep.Sweep,
			Processed: rep.Processed,
			Failed:    rep.Failed,
		}
		if rep.Err != nil {
			dtos[i].Error = rep.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": today.String(), "sweeps": dtos})
}

// TriggerRecalculate recomputes total_days for every active person and
// category, preserving used_days.
func (h *Handler) TriggerRecalculate(w http.ResponseWriter, r *http.Request) {
	today, ok := h.sweepDate(w, r)
	if !ok {
		return
	}

	count, err := h.Renewal.RecalculateAll(r.Context(), today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": today.String(), "updated": count})
}

func (h *Handler) sweepDate(w http.ResponseWriter, r *http.Request) (leave.Date, bool) {
	var req SweepRequestDTO
	if err := decodeOptionalBody(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return leave.Date{}, false
	}

	if req.Date == "" {
		return leave.DateOf(time.Now()), true
	}
	d, err := leave.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return leave.Date{}, false
	}
	return d, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeOptionalBody decodes JSON when a body is present; an empty body
// leaves the target zeroed.
func decodeOptionalBody(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}
