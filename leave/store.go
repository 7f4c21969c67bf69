/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the interfaces between the engine and its surroundings: the
  relational store (catalog, ledger, requests) and the external
  collaborators it consumes (directory, notifications). Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  CatalogStore: Categories, renewal rules, tiers, conditions
  BalanceStore: Ledger entry persistence (raw, unserialized)
  RequestStore: Request persistence, overlap query, atomic approval
  Directory:    Externally-owned personnel data (read-only)
  Notifier:     Fire-and-forget state transition notifications

CONCURRENCY:
  BalanceStore methods are raw row operations. Serialization of
  read-check-write sequences happens one level up, in Ledger, which
  holds a per-key mutex around them. RequestStore.FinalizeApproval is
  the one composite write: it must apply the ledger debit and the
  request status flip in a single storage transaction.
*/
package leave

import "context"

// =============================================================================
// CATALOG STORE - Category configuration
// =============================================================================

// RenewalBinding pairs a category with its renewal rule.
type RenewalBinding struct {
	Category LeaveCategory
	Rule     RenewalRule
}

// CatalogStore persists category configuration. Reads return
// ErrCategoryNotFound for missing categories.
type CatalogStore interface {
	Category(ctx context.Context, id CategoryID) (*LeaveCategory, error)
	ListCategories(ctx context.Context) ([]LeaveCategory, error)

	// Tiers returns the tiers of a category in effect on asOf, ordered by
	// MinYears ascending.
	Tiers(ctx context.Context, id CategoryID, asOf Date) ([]PolicyTier, error)

	// Conditions returns the active eligibility conditions of a category in
	// their configured order.
	Conditions(ctx context.Context, id CategoryID) ([]EligibilityCondition, error)

	// CategoriesWithRenewal returns active, non-event-based categories whose
	// renewal rule has the given type.
	CategoriesWithRenewal(ctx context.Context, rt RenewalType) ([]RenewalBinding, error)

	SaveCategory(ctx context.Context, cat LeaveCategory) error
	SaveRenewalRule(ctx context.Context, rule RenewalRule) error
	SaveTier(ctx context.Context, tier PolicyTier) error
	SaveCondition(ctx context.Context, cond EligibilityCondition) error
}

// =============================================================================
// BALANCE STORE - Raw ledger entry persistence
// =============================================================================

// BalanceStore persists ledger entries. Callers must not use it directly for
// read-check-write sequences; Ledger wraps it with per-key exclusivity.
type BalanceStore interface {
	// Entry returns the ledger entry, or nil when absent.
	Entry(ctx context.Context, key LedgerKey) (*LedgerEntry, error)

	// EnsureEntry creates the entry with used_days=0 if absent and returns
	// the stored entry. An existing entry is returned untouched.
	EnsureEntry(ctx context.Context, key LedgerKey, totalDays int) (*LedgerEntry, error)

	// AddUsed increments used_days. The entry must exist.
	AddUsed(ctx context.Context, key LedgerKey, days int) error

	// SetEntry overwrites total_days and used_days, creating the row when
	// absent.
	SetEntry(ctx context.Context, key LedgerKey, totalDays, usedDays int) error

	// EntriesForCategory returns all entries for a category and year.
	EntriesForCategory(ctx context.Context, id CategoryID, year int) ([]LedgerEntry, error)

	// EntriesForPersonnel returns all entries for a person and year.
	EntriesForPersonnel(ctx context.Context, id PersonnelID, year int) ([]LedgerEntry, error)
}

// =============================================================================
// REQUEST STORE - Request persistence and the atomic approval write
// =============================================================================

// RequestStore persists leave requests. Reads return ErrRequestNotFound for
// missing requests.
type RequestStore interface {
	SaveRequest(ctx context.Context, req *LeaveRequest) error
	Request(ctx context.Context, id RequestID) (*LeaveRequest, error)
	RequestsByPersonnel(ctx context.Context, id PersonnelID) ([]LeaveRequest, error)
	PendingRequests(ctx context.Context) ([]LeaveRequest, error)

	// HasOverlapping reports whether the person has a pending or approved
	// request whose range intersects [start, end] inclusively.
	HasOverlapping(ctx context.Context, id PersonnelID, start, end Date) (bool, error)

	// FinalizeApproval applies an approval in one atomic unit: ensure the
	// ledger entry exists (seeding total_days=defaultTotal when absent),
	// increment its used_days by debit, and persist the approved request.
	// On error nothing is applied and the request stays pending.
	FinalizeApproval(ctx context.Context, req *LeaveRequest, key LedgerKey, defaultTotal, debit int) error
}

// =============================================================================
// DIRECTORY - Externally-owned personnel data
// =============================================================================

// Directory is the engine's read-only view of the personnel system.
type Directory interface {
	Personnel(ctx context.Context, id PersonnelID) (*Personnel, error)
	IsActive(ctx context.Context, id PersonnelID) (bool, error)

	// TenureOf returns completed years and months of service as of a date.
	TenureOf(ctx context.Context, id PersonnelID, asOf Date) (Tenure, error)

	// HireAnniversary returns the month and day of the person's hire date.
	HireAnniversary(ctx context.Context, id PersonnelID) (month int, day int, err error)

	ListActive(ctx context.Context) ([]Personnel, error)
}

// =============================================================================
// NOTIFIER - Fire-and-forget state transition notifications
// =============================================================================

// Notifier is informed whenever a request transitions state. Delivery is
// best-effort: the engine never depends on it succeeding.
type Notifier interface {
	RequestTransitioned(req LeaveRequest)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) RequestTransitioned(LeaveRequest) {}
