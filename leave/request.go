/*
request.go - Leave request lifecycle

PURPOSE:
  Orchestrates the request state machine: Pending -> {Approved,
  Rejected}, both terminal. Creation runs eligibility, policy and
  overlap checks before anything is written; approval recomputes
  workdays and performs the balance debit; rejection flips status and
  nothing else.

REQUEST FLOW:
  Create:   date order -> active checks -> conditions -> overlap
            (serialized per person) -> tier / event seed -> Pending
  Approve:  terminal guard -> recompute workdays -> read-check-debit
            (serialized per ledger key) -> Approved
  Reject:   terminal guard -> Rejected (ledger untouched)

SOFT FAILURE:
  An unforced approval that exceeds the remaining quota returns
  InsufficientBalanceError with {available, requested} and mutates
  nothing; the caller may re-invoke with forceApprove=true, which is
  the only path allowed to overdraw a ledger entry.

CONCURRENCY:
  Two concurrent creates for the same person must not both pass the
  overlap check, so overlap-check-then-insert holds a per-person lock.
  The approval debit holds the ledger key lock for its whole
  read-check-write-flip sequence.
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// SERVICE
// =============================================================================

// RequestService orchestrates the request lifecycle against the resolver,
// evaluator, ledger and stores.
type RequestService struct {
	Requests   RequestStore
	Catalog    CatalogStore
	Directory  Directory
	Ledger     *Ledger
	Resolver   *Resolver
	Conditions *Evaluator
	Calendar   HolidayCalendar
	Notifier   Notifier
	Logger     zerolog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	personnelMu sync.Mutex
	personnel   map[PersonnelID]*sync.Mutex
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RequestService) notify(req LeaveRequest) {
	if s.Notifier != nil {
		s.Notifier.RequestTransitioned(req)
	}
}

// lockPersonnel serializes overlap-check-then-insert per person.
func (s *RequestService) lockPersonnel(id PersonnelID) func() {
	s.personnelMu.Lock()
	if s.personnel == nil {
		s.personnel = make(map[PersonnelID]*sync.Mutex)
	}
	m, ok := s.personnel[id]
	if !ok {
		m = &sync.Mutex{}
		s.personnel[id] = m
	}
	s.personnelMu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the request submission.
type CreateInput struct {
	PersonnelID PersonnelID
	CategoryID  CategoryID
	StartDate   Date
	EndDate     Date
	Reason      string
}

// Create validates and persists a Pending request. No write happens before
// every check has passed.
func (s *RequestService) Create(ctx context.Context, in CreateInput) (*LeaveRequest, error) {
	if in.EndDate.Before(in.StartDate) {
		return nil, ErrInvalidDateRange
	}

	active, err := s.Directory.IsActive(ctx, in.PersonnelID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrPersonnelInactive
	}

	cat, err := s.Catalog.Category(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if !cat.Active {
		return nil, ErrCategoryInactive
	}

	if err := s.Conditions.Evaluate(ctx, in.CategoryID, in.PersonnelID); err != nil {
		return nil, err
	}

	now := s.now()
	today := DateOf(now)

	switch {
	case cat.EventBased:
		// Event-based categories have no tier schedule; seed the quota row
		// with the category's fixed allowance on first use.
		key := LedgerKey{PersonnelID: in.PersonnelID, CategoryID: in.CategoryID, Year: now.Year()}
		if _, err := s.Ledger.Ensure(ctx, key, cat.MaxDays); err != nil {
			return nil, err
		}
	case cat.Method == CalcTenureTiered:
		// Only tiered categories require schedule coverage; fixed allowances
		// apply to everyone.
		tenure, err := s.Directory.TenureOf(ctx, in.PersonnelID, today)
		if err != nil {
			return nil, err
		}
		if _, err := s.Resolver.ResolveTier(ctx, in.CategoryID, tenure.Years, today); err != nil {
			return nil, err
		}
	}

	req := &LeaveRequest{
		ID:          RequestID(uuid.NewString()),
		PersonnelID: in.PersonnelID,
		CategoryID:  in.CategoryID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      StatusPending,
		WorkDays:    WorkDaysBetween(in.StartDate, in.EndDate, s.Calendar),
		TotalDays:   DaysInclusive(in.StartDate, in.EndDate),
		Reason:      in.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Overlap check and insert are one serialized unit per person: without
	// the lock two concurrent creates could both observe "no overlap".
	unlock := s.lockPersonnel(in.PersonnelID)
	defer unlock()

	overlapping, err := s.Requests.HasOverlapping(ctx, in.PersonnelID, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if overlapping {
		return nil, ErrOverlappingRequest
	}

	if err := s.Requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to persist request: %w", err)
	}

	s.Logger.Info().
		Str("request_id", string(req.ID)).
		Str("personnel_id", string(req.PersonnelID)).
		Str("category_id", string(req.CategoryID)).
		Int("total_days", req.TotalDays).
		Msg("leave request created")

	s.notify(*req)
	return req, nil
}

// =============================================================================
// APPROVE
// =============================================================================

// Approve transitions a Pending request to Approved, debiting the ledger by
// the recomputed workday count. With forceApprove the debit is applied even
// past the remaining quota; otherwise a shortage is a soft failure that
// leaves everything untouched.
func (s *RequestService) Approve(ctx context.Context, id RequestID, approverID string, forceApprove bool) (*LeaveRequest, error) {
	req, err := s.Requests.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, req.Status)
	}

	// Workdays are recomputed at approval time: the holiday calendar may
	// have changed since the request was created.
	workDays := WorkDaysBetween(req.StartDate, req.EndDate, s.Calendar)

	now := s.now()
	key := LedgerKey{PersonnelID: req.PersonnelID, CategoryID: req.CategoryID, Year: now.Year()}

	unlock := s.Ledger.LockKey(key)
	defer unlock()

	entry, err := s.Ledger.Entry(ctx, key)
	if err != nil {
		return nil, err
	}

	// An absent entry counts as a zero balance: the year's quota exists only
	// once a renewal sweep (or a forced approval) has written it.
	available := 0
	if entry != nil {
		available = entry.Available()
	}

	if !forceApprove && available < workDays {
		return nil, &InsufficientBalanceError{Key: key, Available: available, Requested: workDays}
	}

	// A forced approval against a missing entry creates it inside the
	// approval write, seeded with the policy-derived entitlement.
	defaultTotal := 0
	if entry == nil {
		defaultTotal, err = s.defaultEntitlement(ctx, req.PersonnelID, req.CategoryID, DateOf(now))
		if err != nil {
			return nil, err
		}
	}

	req.Status = StatusApproved
	req.WorkDays = workDays
	req.TotalDays = DaysInclusive(req.StartDate, req.EndDate)
	req.ApprovedBy = &approverID
	req.DecidedAt = &now
	req.UpdatedAt = now

	if err := s.Requests.FinalizeApproval(ctx, req, key, defaultTotal, workDays); err != nil {
		return nil, fmt.Errorf("failed to finalize approval: %w", err)
	}

	s.Logger.Info().
		Str("request_id", string(req.ID)).
		Str("approver", approverID).
		Int("work_days", workDays).
		Bool("forced", forceApprove).
		Msg("leave request approved")

	s.notify(*req)
	return req, nil
}

func (s *RequestService) defaultEntitlement(ctx context.Context, pid PersonnelID, cid CategoryID, asOf Date) (int, error) {
	cat, err := s.Catalog.Category(ctx, cid)
	if err != nil {
		return 0, err
	}
	if cat.EventBased || cat.Method == CalcFixed {
		return cat.MaxDays, nil
	}
	tenure, err := s.Directory.TenureOf(ctx, pid, asOf)
	if err != nil {
		return 0, err
	}
	return s.Resolver.Entitlement(ctx, cid, tenure.Years, asOf)
}

// =============================================================================
// REJECT
// =============================================================================

// Reject transitions a Pending request to Rejected. The ledger is never
// touched: only approval consumes quota.
func (s *RequestService) Reject(ctx context.Context, id RequestID, rejecterID, reason string) (*LeaveRequest, error) {
	req, err := s.Requests.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, req.Status)
	}

	now := s.now()
	req.Status = StatusRejected
	req.RejectionReason = &reason
	req.ApprovedBy = &rejecterID
	req.DecidedAt = &now
	req.UpdatedAt = now

	if err := s.Requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to persist rejection: %w", err)
	}

	s.Logger.Info().
		Str("request_id", string(req.ID)).
		Str("rejecter", rejecterID).
		Msg("leave request rejected")

	s.notify(*req)
	return req, nil
}

// =============================================================================
// ELIGIBILITY VIEW - For the check-before-request surface
// =============================================================================

// EligibilityResult is the caller-facing answer of CheckEligibility.
type EligibilityResult struct {
	Eligible    bool
	Message     string
	Entitlement int
}

// CheckEligibility runs the condition evaluation and entitlement lookup
// without creating anything. Condition failures are reported in the result,
// not as errors.
func (s *RequestService) CheckEligibility(ctx context.Context, pid PersonnelID, cid CategoryID) (*EligibilityResult, error) {
	cat, err := s.Catalog.Category(ctx, cid)
	if err != nil {
		return nil, err
	}
	if !cat.Active {
		return &EligibilityResult{Eligible: false, Message: ErrCategoryInactive.Error()}, nil
	}

	if err := s.Conditions.Evaluate(ctx, cid, pid); err != nil {
		var cerr *ConditionError
		if errors.As(err, &cerr) {
			return &EligibilityResult{Eligible: false, Message: cerr.Error()}, nil
		}
		return nil, err
	}

	entitlement, err := s.defaultEntitlement(ctx, pid, cid, DateOf(s.now()))
	if err != nil {
		return nil, err
	}
	return &EligibilityResult{Eligible: true, Entitlement: entitlement}, nil
}
