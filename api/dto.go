/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ERROR MAPPING:
  writeDomainError translates domain errors to HTTP status codes:
  - 400: validation and eligibility failures
  - 404: unknown personnel/category/request
  - 409: overlapping requests, insufficient balance (with details)
  - 500: everything else

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: CatalogJSON type
*/
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PersonnelDTO represents a directory record in API responses.
type PersonnelDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	HireDate        string  `json:"hire_date"`
	TerminationDate *string `json:"termination_date,omitempty"`
	Active          bool    `json:"active"`
}

// CreatePersonnelRequest is the request to create a directory record.
// Attribute fields feed the eligibility condition evaluator.
type CreatePersonnelRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HireDate       string `json:"hire_date"`
	Active         *bool  `json:"active,omitempty"` // default true
	EmploymentType string `json:"employment_type,omitempty"`
	Gender         string `json:"gender,omitempty"`
	MaritalStatus  string `json:"marital_status,omitempty"`
}

// SubmitRequestDTO is the request to submit a leave request.
type SubmitRequestDTO struct {
	PersonnelID string `json:"personnel_id"`
	CategoryID  string `json:"category_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason,omitempty"`
}

// DecisionRequestDTO is the request body for approve/reject.
type DecisionRequestDTO struct {
	DeciderID    string `json:"decider_id"`
	ForceApprove bool   `json:"force_approve,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID              string  `json:"id"`
	PersonnelID     string  `json:"personnel_id"`
	CategoryID      string  `json:"category_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Status          string  `json:"status"`
	WorkDays        int     `json:"work_days"`
	TotalDays       int     `json:"total_days"`
	Reason          string  `json:"reason,omitempty"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	DecidedAt       *string `json:"decided_at,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// BalanceDTO represents one ledger row in API responses.
type BalanceDTO struct {
	CategoryID string `json:"category_id"`
	Year       int    `json:"year"`
	TotalDays  int    `json:"total_days"`
	UsedDays   int    `json:"used_days"`
	Available  int    `json:"available"`
}

// BalanceSummaryDTO is the full balance response for one person.
type BalanceSummaryDTO struct {
	PersonnelID string       `json:"personnel_id"`
	Year        int          `json:"year"`
	Balances    []BalanceDTO `json:"balances"`
}

// EligibilityDTO is the response of an eligibility check.
type EligibilityDTO struct {
	PersonnelID string `json:"personnel_id"`
	CategoryID  string `json:"category_id"`
	Eligible    bool   `json:"eligible"`
	Message     string `json:"message,omitempty"`
	Entitlement int    `json:"entitlement"`
}

// CategoryDTO represents a leave category in API responses.
type CategoryDTO struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	Name             string `json:"name"`
	Method           string `json:"method"`
	RenewalRuleID    string `json:"renewal_rule_id,omitempty"`
	EventBased       bool   `json:"event_based"`
	MaxDays          int    `json:"max_days"`
	RequiresApproval bool   `json:"requires_approval"`
	Active           bool   `json:"active"`
}

// HolidayDTO represents a public holiday.
type HolidayDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Recurring bool   `json:"recurring"`
}

// SweepRequestDTO is the request to trigger a renewal sweep or
// recalculation. Date defaults to today when omitted.
type SweepRequestDTO struct {
	Date string `json:"date,omitempty"`
}

// SweepResultDTO reports one sweep's outcome.
type SweepResultDTO struct {
	Sweep     string `json:"sweep"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPersonnelDTO(p leave.Personnel) PersonnelDTO {
	dto := PersonnelDTO{
		ID:       string(p.ID),
		Name:     p.Name,
		HireDate: p.HireDate.String(),
		Active:   p.Active,
	}
	if p.TerminationDate != nil {
		s := p.TerminationDate.String()
		dto.TerminationDate = &s
	}
	return dto
}

func toRequestDTO(req leave.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:              string(req.ID),
		PersonnelID:     string(req.PersonnelID),
		CategoryID:      string(req.CategoryID),
		StartDate:       req.StartDate.String(),
		EndDate:         req.EndDate.String(),
		Status:          string(req.Status),
		WorkDays:        req.WorkDays,
		TotalDays:       req.TotalDays,
		Reason:          req.Reason,
		ApprovedBy:      req.ApprovedBy,
		RejectionReason: req.RejectionReason,
		CreatedAt:       req.CreatedAt.Format(time.RFC3339),
	}
	if req.DecidedAt != nil {
		s := req.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

func toRequestDTOs(reqs []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toRequestDTO(req)
	}
	return dtos
}

func toBalanceDTO(e leave.LedgerEntry) BalanceDTO {
	return BalanceDTO{
		CategoryID: string(e.Key.CategoryID),
		Year:       e.Key.Year,
		TotalDays:  e.TotalDays,
		UsedDays:   e.UsedDays,
		Available:  e.Available(),
	}
}

func toCategoryDTO(cat leave.LeaveCategory) CategoryDTO {
	return CategoryDTO{
		ID:               string(cat.ID),
		Code:             cat.Code,
		Name:             cat.Name,
		Method:           string(cat.Method),
		RenewalRuleID:    cat.RenewalRuleID,
		EventBased:       cat.EventBased,
		MaxDays:          cat.MaxDays,
		RequiresApproval: cat.RequiresApproval,
		Active:           cat.Active,
	}
}

// writeDomainError maps domain errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var ibe *leave.InsufficientBalanceError
	if errors.As(err, &ibe) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: "Insufficient balance",
			Code:  "insufficient_balance",
			Details: map[string]int{
				"available": ibe.Available,
				"requested": ibe.Requested,
			},
		})
		return
	}
	if errors.Is(err, leave.ErrOverlappingRequest) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "overlapping_request",
		})
		return
	}
	if errors.Is(err, leave.ErrInvalidStateTransition) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "invalid_state_transition",
		})
		return
	}
	if leave.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if leave.IsClientError(err) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}
