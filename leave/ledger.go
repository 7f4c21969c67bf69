/*
ledger.go - Balance ledger with per-key exclusivity

PURPOSE:
  The ledger is the shared mutable state of the engine: one entry per
  (personnel, category, year) holding total vs used days. Approval
  debits it, renewal resets it, and both race against each other, so
  every read-check-write sequence on the same key must be serialized.

HAZARDS PREVENTED HERE:
  - Double debit: two concurrent approvals both reading "5 available"
    and both debiting 5
  - Lost usage: a renewal reset overwriting a debit that committed
    between the reset's read and write

MECHANISM:
  Ledger keeps one mutex per LedgerKey. Debit, Reset, SetTotal and
  Ensure all acquire it; callers that need to compose a check with an
  external write (approval) take the same lock via LockKey.

FORCED OVERRIDE:
  Debit with force=true skips the sufficiency check and may push
  used_days above total_days. That is the only path allowed to do so.
*/
package leave

import (
	"context"
	"sync"
)

// =============================================================================
// KEYED MUTEX - One lock per ledger key
// =============================================================================

type keyedMutex struct {
	mu    sync.Mutex
	locks map[LedgerKey]*sync.Mutex
}

// lock acquires the mutex for key and returns its unlock func. Key mutexes
// are created on demand and kept for the life of the process; the key space
// (people x categories x years) is small.
func (k *keyedMutex) lock(key LedgerKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[LedgerKey]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// LEDGER - Serialized quota operations
// =============================================================================

// Ledger wraps a BalanceStore with per-key mutual exclusion. All quota
// mutations in the engine go through it.
type Ledger struct {
	store BalanceStore
	keys  keyedMutex
}

func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

// LockKey acquires the exclusivity lock for a key, for callers that compose
// a balance check with another write (approval). Returns the unlock func.
func (l *Ledger) LockKey(key LedgerKey) func() {
	return l.keys.lock(key)
}

// Entry returns the ledger entry, or nil when absent.
func (l *Ledger) Entry(ctx context.Context, key LedgerKey) (*LedgerEntry, error) {
	return l.store.Entry(ctx, key)
}

// Ensure creates the entry with used_days=0 if absent. Idempotent: an
// existing entry is returned untouched regardless of totalDays.
func (l *Ledger) Ensure(ctx context.Context, key LedgerKey, totalDays int) (*LedgerEntry, error) {
	unlock := l.keys.lock(key)
	defer unlock()
	return l.store.EnsureEntry(ctx, key, totalDays)
}

// Debit increments used_days by days as one serialized read-check-write.
// When the entry is absent it is first created with total_days=defaultTotal.
// Unless force is set, a debit that would push used_days above total_days
// fails with InsufficientBalanceError and mutates nothing.
func (l *Ledger) Debit(ctx context.Context, key LedgerKey, days, defaultTotal int, force bool) (*LedgerEntry, error) {
	unlock := l.keys.lock(key)
	defer unlock()

	entry, err := l.store.EnsureEntry(ctx, key, defaultTotal)
	if err != nil {
		return nil, err
	}

	if !force && entry.Available() < days {
		return nil, &InsufficientBalanceError{Key: key, Available: entry.Available(), Requested: days}
	}

	if err := l.store.AddUsed(ctx, key, days); err != nil {
		return nil, err
	}
	return l.store.Entry(ctx, key)
}

// Reset overwrites total_days and zeroes used_days, creating the row when
// absent. Renewal sweeps are its only caller.
func (l *Ledger) Reset(ctx context.Context, key LedgerKey, newTotal int) error {
	unlock := l.keys.lock(key)
	defer unlock()
	return l.store.SetEntry(ctx, key, newTotal, 0)
}

// SetTotal overwrites total_days while preserving used_days. Used by the
// corrective full recalculation.
func (l *Ledger) SetTotal(ctx context.Context, key LedgerKey, newTotal int) error {
	unlock := l.keys.lock(key)
	defer unlock()

	entry, err := l.store.Entry(ctx, key)
	if err != nil {
		return err
	}
	used := 0
	if entry != nil {
		used = entry.UsedDays
	}
	return l.store.SetEntry(ctx, key, newTotal, used)
}
