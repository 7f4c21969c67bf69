/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP layer, scheduler) branch on sentinels with errors.Is()
  and unpack structured errors with errors.As().

ERROR CATEGORIES:
  1. Eligibility errors - person or category not allowed to request
  2. Balance errors - quota missing or exhausted
  3. Lifecycle errors - invalid state transitions, overlapping requests
  4. Sweep errors - renewal scheduler failures, isolated per sweep

RECOVERABILITY:
  ErrInsufficientBalance is the one SOFT failure: approval can be retried
  with the forced override. Everything else aborts the operation without
  touching any state.
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPersonnelInactive is returned when the requester is terminated or
	// otherwise flagged inactive in the directory.
	ErrPersonnelInactive = errors.New("personnel inactive")

	// ErrCategoryInactive is returned when the leave category is disabled.
	ErrCategoryInactive = errors.New("leave category inactive")

	// ErrInvalidDateRange is returned when a request's end date precedes its
	// start date.
	ErrInvalidDateRange = errors.New("end date before start date")

	// ErrNoApplicablePolicy is returned when no policy tier covers the
	// requester's tenure for a tiered category.
	ErrNoApplicablePolicy = errors.New("no applicable policy tier")

	// ErrConditionNotMet is returned when a declarative eligibility condition
	// fails. Wrapped by ConditionError, which carries the configured message.
	ErrConditionNotMet = errors.New("eligibility condition not met")

	// ErrOverlappingRequest is returned when the person already has a pending
	// or approved request intersecting the requested range.
	ErrOverlappingRequest = errors.New("overlapping leave request")

	// ErrNoBalanceRecord is returned when an operation requires an existing
	// ledger entry and none exists.
	ErrNoBalanceRecord = errors.New("no balance record")

	// ErrInsufficientBalance is returned when an unforced approval would
	// debit more than the remaining quota. Recoverable via forced approval.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidStateTransition is returned when Approve or Reject is called
	// on a request that already reached a terminal state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNoAttributeRecord is returned by attribute resolvers when the person
	// has no row in the referenced source. A missing record is a hard
	// eligibility failure, never a silent pass.
	ErrNoAttributeRecord = errors.New("no record found for person")

	// ErrUnknownAttribute is returned when a condition references a source
	// table/column outside the closed resolver registry.
	ErrUnknownAttribute = errors.New("unknown attribute source")

	// Not-found errors for referenced records.
	ErrPersonnelNotFound = errors.New("personnel not found")
	ErrCategoryNotFound  = errors.New("leave category not found")
	ErrRequestNotFound   = errors.New("leave request not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConditionError reports the first failing eligibility condition with its
// configured, user-facing message.
type ConditionError struct {
	ConditionID string
	Message     string
}

func (e *ConditionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrConditionNotMet.Error()
}

func (e *ConditionError) Unwrap() error { return ErrConditionNotMet }

// InsufficientBalanceError carries the numbers the caller needs to decide
// whether to re-invoke approval with the forced override.
type InsufficientBalanceError struct {
	Key       LedgerKey
	Available int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// SweepError wraps a renewal sweep failure with the sweep's name. Sweeps are
// isolated: one failing never blocks the others.
type SweepError struct {
	Sweep string
	Err   error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("renewal sweep %q failed: %v", e.Sweep, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request itself
// rather than an engine or storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrPersonnelInactive) ||
		errors.Is(err, ErrCategoryInactive) ||
		errors.Is(err, ErrNoApplicablePolicy) ||
		errors.Is(err, ErrConditionNotMet) ||
		errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsNotFound returns true if the error indicates a missing referenced record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonnelNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrNoBalanceRecord)
}

// IsRecoverable returns true if the operation can succeed on retry with the
// forced override.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}
