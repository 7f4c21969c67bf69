/*
Package leave implements the leave entitlement and eligibility engine.

PURPOSE:
  This package contains the domain types and algorithms that decide how
  many days off a person has earned, whether a specific leave request is
  allowed, and how the per-person quota is consumed and replenished over
  time.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveCategory: A kind of leave (annual, sick, marriage, ...) with its
    calculation method and renewal rule
  - PolicyTier: One step of a tenure-based accrual schedule
  - EligibilityCondition: A declarative rule a person must satisfy before
    requesting leave of a category
  - LedgerEntry: The per-person/category/year record of total vs used days
  - LeaveRequest: A single request with its Pending/Approved/Rejected state

DESIGN PRINCIPLES:
  1. Precision: Tier rates use decimal.Decimal so fractional day rates
     (e.g. 12.5 days/year) accumulate without floating-point drift
  2. Type Safety: Strong typing for IDs prevents mixing personnel and
     category identifiers
  3. Lazy ledger rows: LedgerEntry rows are created on first use, reset
     in place by renewal, and never deleted

SEE ALSO:
  - policy.go: Tiered entitlement calculation
  - conditions.go: Declarative eligibility evaluation
  - ledger.go: Balance ledger with per-key exclusivity
  - request.go: Request lifecycle state machine
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PersonnelID string
type CategoryID string
type RequestID string

// =============================================================================
// LEAVE CATEGORY - A kind of leave and how it is calculated and renewed
// =============================================================================

// CalculationMethod determines how the yearly entitlement is derived.
type CalculationMethod string

const (
	// CalcFixed: entitlement is the category's MaxDays, independent of tenure.
	CalcFixed CalculationMethod = "fixed"

	// CalcTenureTiered: entitlement accumulates per year of service, with the
	// per-year rate changing as tenure crosses tier thresholds.
	CalcTenureTiered CalculationMethod = "tenure_tiered"
)

// LeaveCategory defines one kind of leave.
type LeaveCategory struct {
	ID     CategoryID
	Code   string
	Name   string
	Method CalculationMethod

	// RenewalRuleID links to the rule that periodically resets ledger rows.
	// Empty for event-based categories, which never renew.
	RenewalRuleID string

	// EventBased categories are triggered by a life event (marriage,
	// bereavement, ...) rather than accrued: no tiers, no renewal, and the
	// ledger row is seeded with MaxDays on first use.
	EventBased bool

	// MaxDays is the fixed allowance for CalcFixed and event-based
	// categories, and the reset target of MONTHLY renewal.
	MaxDays int

	RequiresApproval bool
	Active           bool
}

// =============================================================================
// RENEWAL RULE - When ledger rows are reset
// =============================================================================

type RenewalType string

const (
	// RenewalYearly fires on a fixed (month, day) every year.
	RenewalYearly RenewalType = "yearly"

	// RenewalAnniversary fires on each person's hire-date anniversary.
	RenewalAnniversary RenewalType = "service_anniversary"

	// RenewalMonthly fires on a fixed day-of-month every month.
	RenewalMonthly RenewalType = "monthly"
)

// RenewalRule describes one renewal trigger. A category references at most
// one rule.
type RenewalRule struct {
	ID   string
	Type RenewalType

	// TriggerMonth is only meaningful for RenewalYearly.
	TriggerMonth time.Month

	// TriggerDay is the day-of-month for RenewalYearly and RenewalMonthly.
	TriggerDay int
}

// FiresOn reports whether the rule's fixed trigger matches the given date.
// Anniversary rules have per-person triggers and always return false here.
func (r RenewalRule) FiresOn(d Date) bool {
	switch r.Type {
	case RenewalYearly:
		return r.TriggerMonth == d.Month() && r.TriggerDay == d.Day()
	case RenewalMonthly:
		// Trigger days past a short month's end clamp to its last day, so a
		// day-31 rule still fires in February.
		day := r.TriggerDay
		if last := lastDayOfMonth(d.Year(), d.Month()); day > last {
			day = last
		}
		return day == d.Day()
	default:
		return false
	}
}

// =============================================================================
// POLICY TIER - One step of the tenure accrual schedule
// =============================================================================

// PolicyTier is one bracket of a category's accrual step function. Tiers are
// ordered by MinYears ascending; tier i pays DaysPerYear for every year of
// service in [MinYears, next tier's MinYears), and the last tier pays its
// rate for every year at or beyond its threshold.
type PolicyTier struct {
	CategoryID  CategoryID
	MinYears    int
	DaysPerYear decimal.Decimal

	// Effective window. A zero Date means unbounded on that side.
	EffectiveFrom Date
	EffectiveTo   Date

	CarryForward bool
	MaxCarryover decimal.Decimal
}

// InEffect reports whether the tier applies on the given date.
func (t PolicyTier) InEffect(asOf Date) bool {
	if !t.EffectiveFrom.IsZero() && asOf.Before(t.EffectiveFrom) {
		return false
	}
	if !t.EffectiveTo.IsZero() && asOf.After(t.EffectiveTo) {
		return false
	}
	return true
}

// =============================================================================
// ELIGIBILITY CONDITION - Declarative rule attached to a category
// =============================================================================

type Operator string

const (
	OpEQ    Operator = "EQ"
	OpNE    Operator = "NE"
	OpGT    Operator = "GT"
	OpGE    Operator = "GE"
	OpLT    Operator = "LT"
	OpLE    Operator = "LE"
	OpIn    Operator = "IN"
	OpNotIn Operator = "NOT_IN"
)

type DataType string

const (
	DataString  DataType = "string"
	DataNumber  DataType = "number"
	DataBoolean DataType = "boolean"
	DataDate    DataType = "date"
)

// EligibilityCondition is a data-driven rule: fetch the referenced attribute
// for the requester, coerce both sides per DataType, apply Operator.
// SourceTable/SourceColumn identify an attribute in the closed resolver
// registry (see conditions.go); they are never interpolated into queries.
type EligibilityCondition struct {
	ID            string
	CategoryID    CategoryID
	SourceTable   string
	SourceColumn  string
	DataType      DataType
	Operator      Operator
	RequiredValue string
	ErrorMessage  string
	Active        bool
}

// =============================================================================
// BALANCE LEDGER ENTRY - Per-person/category/year quota record
// =============================================================================

// LedgerKey uniquely identifies a ledger entry.
type LedgerKey struct {
	PersonnelID PersonnelID
	CategoryID  CategoryID
	Year        int
}

// LedgerEntry is the single source of truth for how much leave a person has
// and how much they have used in a year. UsedDays may only exceed TotalDays
// through a forced approval.
type LedgerEntry struct {
	Key       LedgerKey
	TotalDays int
	UsedDays  int
	UpdatedAt time.Time
}

// Available returns the remaining quota. Can be negative after a forced
// approval.
func (e LedgerEntry) Available() int { return e.TotalDays - e.UsedDays }

// =============================================================================
// LEAVE REQUEST - State machine entity
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether the status admits no further transition.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// LeaveRequest is a single request for a contiguous date range. It is created
// Pending and mutated exactly once, by Approve or Reject.
type LeaveRequest struct {
	ID          RequestID
	PersonnelID PersonnelID
	CategoryID  CategoryID
	StartDate   Date
	EndDate     Date
	Status      RequestStatus

	// WorkDays is the number of non-weekend, non-holiday days in range.
	// Estimated at creation, recomputed authoritatively at approval.
	WorkDays int

	// TotalDays is the inclusive calendar day count of the range.
	TotalDays int

	Reason          string
	ApprovedBy      *string
	DecidedAt       *time.Time
	RejectionReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PERSONNEL - Read-only view of the externally-owned directory record
// =============================================================================

// Personnel is the slice of the directory record the engine reads: tenure
// and active status. The engine never writes personnel.
type Personnel struct {
	ID              PersonnelID
	Name            string
	HireDate        Date
	TerminationDate *Date
	Active          bool
}

// Tenure is years and months of continuous, non-terminated employment.
type Tenure struct {
	Years  int
	Months int
}

// TenureBetween computes completed tenure from hire date to asOf.
// On the hire anniversary itself the year counts as completed.
func TenureBetween(hire, asOf Date) Tenure {
	if asOf.Before(hire) {
		return Tenure{}
	}
	years := asOf.Year() - hire.Year()
	months := int(asOf.Month()) - int(hire.Month())
	if asOf.Day() < hire.Day() {
		months--
	}
	if months < 0 {
		years--
		months += 12
	}
	return Tenure{Years: years, Months: months}
}
