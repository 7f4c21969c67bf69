// Package store provides an in-memory implementation of the leave engine's
// storage interfaces, for tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - Implements CatalogStore, BalanceStore, RequestStore,
// Directory and HolidayCalendar behind one mutex
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	categories map[leave.CategoryID]leave.LeaveCategory
	rules      map[string]leave.RenewalRule
	tiers      map[leave.CategoryID][]leave.PolicyTier
	conditions map[leave.CategoryID][]leave.EligibilityCondition
	entries    map[leave.LedgerKey]leave.LedgerEntry
	requests   map[leave.RequestID]leave.LeaveRequest
	personnel  map[leave.PersonnelID]leave.Personnel
	holidays   []leave.Holiday
}

func NewMemory() *Memory {
	return &Memory{
		categories: make(map[leave.CategoryID]leave.LeaveCategory),
		rules:      make(map[string]leave.RenewalRule),
		tiers:      make(map[leave.CategoryID][]leave.PolicyTier),
		conditions: make(map[leave.CategoryID][]leave.EligibilityCondition),
		entries:    make(map[leave.LedgerKey]leave.LedgerEntry),
		requests:   make(map[leave.RequestID]leave.LeaveRequest),
		personnel:  make(map[leave.PersonnelID]leave.Personnel),
	}
}

// Interface checks
var (
	_ leave.CatalogStore    = (*Memory)(nil)
	_ leave.BalanceStore    = (*Memory)(nil)
	_ leave.RequestStore    = (*Memory)(nil)
	_ leave.Directory       = (*Memory)(nil)
	_ leave.HolidayCalendar = (*Memory)(nil)
)

// =============================================================================
// CATALOG STORE
// =============================================================================

func (m *Memory) Category(_ context.Context, id leave.CategoryID) (*leave.LeaveCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cat, ok := m.categories[id]
	if !ok {
		return nil, leave.ErrCategoryNotFound
	}
	return &cat, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]leave.LeaveCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cats := make([]leave.LeaveCategory, 0, len(m.categories))
	for _, c := range m.categories {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Code < cats[j].Code })
	return cats, nil
}

func (m *Memory) Tiers(_ context.Context, id leave.CategoryID, asOf leave.Date) ([]leave.PolicyTier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.PolicyTier
	for _, t := range m.tiers[id] {
		if t.InEffect(asOf) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MinYears < result[j].MinYears })
	return result, nil
}

func (m *Memory) Conditions(_ context.Context, id leave.CategoryID) ([]leave.EligibilityCondition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.EligibilityCondition
	for _, c := range m.conditions[id] {
		if c.Active {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *Memory) CategoriesWithRenewal(_ context.Context, rt leave.RenewalType) ([]leave.RenewalBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bindings []leave.RenewalBinding
	for _, cat := range m.categories {
		if !cat.Active || cat.EventBased || cat.RenewalRuleID == "" {
			continue
		}
		rule, ok := m.rules[cat.RenewalRuleID]
		if !ok || rule.Type != rt {
			continue
		}
		bindings = append(bindings, leave.RenewalBinding{Category: cat, Rule: rule})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Category.Code < bindings[j].Category.Code })
	return bindings, nil
}

func (m *Memory) SaveCategory(_ context.Context, cat leave.LeaveCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[cat.ID] = cat
	return nil
}

func (m *Memory) SaveRenewalRule(_ context.Context, rule leave.RenewalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) SaveTier(_ context.Context, tier leave.PolicyTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[tier.CategoryID] = append(m.tiers[tier.CategoryID], tier)
	return nil
}

func (m *Memory) SaveCondition(_ context.Context, cond leave.EligibilityCondition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conditions[cond.CategoryID] = append(m.conditions[cond.CategoryID], cond)
	return nil
}

// =============================================================================
// BALANCE STORE
// =============================================================================

func (m *Memory) Entry(_ context.Context, key leave.LedgerKey) (*leave.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *Memory) EnsureEntry(_ context.Context, key leave.LedgerKey, totalDays int) (*leave.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[key]; ok {
		return &entry, nil
	}
	entry := leave.LedgerEntry{Key: key, TotalDays: totalDays, UsedDays: 0, UpdatedAt: time.Now()}
	m.entries[key] = entry
	return &entry, nil
}

func (m *Memory) AddUsed(_ context.Context, key leave.LedgerKey, days int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return leave.ErrNoBalanceRecord
	}
	entry.UsedDays += days
	entry.UpdatedAt = time.Now()
	m.entries[key] = entry
	return nil
}

func (m *Memory) SetEntry(_ context.Context, key leave.LedgerKey, totalDays, usedDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = leave.LedgerEntry{Key: key, TotalDays: totalDays, UsedDays: usedDays, UpdatedAt: time.Now()}
	return nil
}

func (m *Memory) EntriesForCategory(_ context.Context, id leave.CategoryID, year int) ([]leave.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.LedgerEntry
	for key, e := range m.entries {
		if key.CategoryID == id && key.Year == year {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key.PersonnelID < result[j].Key.PersonnelID })
	return result, nil
}

func (m *Memory) EntriesForPersonnel(_ context.Context, id leave.PersonnelID, year int) ([]leave.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.LedgerEntry
	for key, e := range m.entries {
		if key.PersonnelID == id && key.Year == year {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key.CategoryID < result[j].Key.CategoryID })
	return result, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, req *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *Memory) Request(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	return &req, nil
}

func (m *Memory) RequestsByPersonnel(_ context.Context, id leave.PersonnelID) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.LeaveRequest
	for _, r := range m.requests {
		if r.PersonnelID == id {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) PendingRequests(_ context.Context) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.LeaveRequest
	for _, r := range m.requests {
		if r.Status == leave.StatusPending {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) HasOverlapping(_ context.Context, id leave.PersonnelID, start, end leave.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.requests {
		if r.PersonnelID != id {
			continue
		}
		if r.Status != leave.StatusPending && r.Status != leave.StatusApproved {
			continue
		}
		// Inclusive intersection on either boundary or containment.
		if !r.StartDate.After(end) && !r.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) FinalizeApproval(_ context.Context, req *leave.LeaveRequest, key leave.LedgerKey, defaultTotal, debit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		entry = leave.LedgerEntry{Key: key, TotalDays: defaultTotal}
	}
	entry.UsedDays += debit
	entry.UpdatedAt = time.Now()
	m.entries[key] = entry
	m.requests[req.ID] = *req
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// AddPersonnel seeds a directory record. Test/dev helper; the engine itself
// never writes personnel.
func (m *Memory) AddPersonnel(p leave.Personnel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personnel[p.ID] = p
}

func (m *Memory) Personnel(_ context.Context, id leave.PersonnelID) (*leave.Personnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.personnel[id]
	if !ok {
		return nil, leave.ErrPersonnelNotFound
	}
	return &p, nil
}

func (m *Memory) IsActive(ctx context.Context, id leave.PersonnelID) (bool, error) {
	p, err := m.Personnel(ctx, id)
	if err != nil {
		return false, err
	}
	return p.Active, nil
}

func (m *Memory) TenureOf(ctx context.Context, id leave.PersonnelID, asOf leave.Date) (leave.Tenure, error) {
	p, err := m.Personnel(ctx, id)
	if err != nil {
		return leave.Tenure{}, err
	}
	return leave.TenureBetween(p.HireDate, asOf), nil
}

func (m *Memory) HireAnniversary(ctx context.Context, id leave.PersonnelID) (int, int, error) {
	p, err := m.Personnel(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return int(p.HireDate.Month()), p.HireDate.Day(), nil
}

func (m *Memory) ListActive(_ context.Context) ([]leave.Personnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.Personnel
	for _, p := range m.personnel {
		if p.Active {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

func (m *Memory) AddHoliday(h leave.Holiday) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
}

func (m *Memory) SaveHoliday(_ context.Context, h leave.Holiday) error {
	m.AddHoliday(h)
	return nil
}

func (m *Memory) IsHoliday(date leave.Date) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, h := range m.holidays {
		if h.Recurring {
			if h.Date.SameMonthDay(date) {
				return true
			}
		} else if h.Date.Equal(date) {
			return true
		}
	}
	return false
}

func (m *Memory) Holidays(year int) []leave.Holiday {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.Holiday
	for _, h := range m.holidays {
		if h.Recurring || h.Date.Year() == year {
			result = append(result, h)
		}
	}
	return result
}
