package leave_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

func newTestLedger(t *testing.T) *leave.Ledger {
	t.Helper()
	return leave.NewLedger(store.NewMemory())
}

var testKey = leave.LedgerKey{PersonnelID: "emp-1", CategoryID: "cat-annual", Year: 2026}

// =============================================================================
// ENSURE - Idempotent row creation
// =============================================================================

func TestLedger_EnsureIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	entry, err := ledger.Ensure(ctx, testKey, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, entry.TotalDays)
	assert.Equal(t, 0, entry.UsedDays)

	// A second Ensure with a different total must not touch the row.
	entry, err = ledger.Ensure(ctx, testKey, 99)
	require.NoError(t, err)
	assert.Equal(t, 15, entry.TotalDays, "existing entry must be returned untouched")
}

func TestLedger_EntryAbsentIsNil(t *testing.T) {
	ledger := newTestLedger(t)

	entry, err := ledger.Entry(context.Background(), testKey)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

// =============================================================================
// DEBIT - Serialized read-check-write
// =============================================================================

func TestLedger_DebitWithinQuota(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	entry, err := ledger.Debit(ctx, testKey, 5, 15, false)
	require.NoError(t, err)
	assert.Equal(t, 15, entry.TotalDays, "absent entry is seeded with the default total")
	assert.Equal(t, 5, entry.UsedDays)
	assert.Equal(t, 10, entry.Available())
}

func TestLedger_DebitRejectsOverdraw(t *testing.T) {
	// GIVEN an entry with 3 days remaining
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Debit(ctx, testKey, 12, 15, false)
	require.NoError(t, err)

	// WHEN an unforced debit exceeds the remainder
	_, err = ledger.Debit(ctx, testKey, 5, 15, false)

	// THEN the failure carries the usable numbers and nothing changed
	require.Error(t, err)
	var ibe *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ibe)
	assert.Equal(t, 3, ibe.Available)
	assert.Equal(t, 5, ibe.Requested)

	entry, err := ledger.Entry(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 12, entry.UsedDays, "a rejected debit must not mutate the entry")
}

func TestLedger_ForcedDebitMayOverdraw(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Debit(ctx, testKey, 12, 15, false)
	require.NoError(t, err)

	entry, err := ledger.Debit(ctx, testKey, 5, 15, true)
	require.NoError(t, err)
	assert.Equal(t, 17, entry.UsedDays)
	assert.Equal(t, -2, entry.Available(), "forced debits may push the balance negative")
}

func TestLedger_ConcurrentDebitsNeverDoubleSpend(t *testing.T) {
	// GIVEN a quota of 10 days and 20 goroutines each taking 1
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Ensure(ctx, testKey, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	successes := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Debit(ctx, testKey, 1, 10, false); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	// THEN exactly the quota was granted, never more
	assert.Equal(t, 10, len(successes), "exactly 10 of 20 debits should succeed")

	entry, err := ledger.Entry(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 10, entry.UsedDays)
	assert.Equal(t, 0, entry.Available())
}

// =============================================================================
// RESET / SET TOTAL - Renewal and recalculation writes
// =============================================================================

func TestLedger_ResetZeroesUsage(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Debit(ctx, testKey, 8, 15, false)
	require.NoError(t, err)

	require.NoError(t, ledger.Reset(ctx, testKey, 16))

	entry, err := ledger.Entry(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 16, entry.TotalDays)
	assert.Equal(t, 0, entry.UsedDays)
}

func TestLedger_ResetCreatesAbsentRow(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Reset(ctx, testKey, 20))

	entry, err := ledger.Entry(ctx, testKey)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 20, entry.TotalDays)
}

func TestLedger_SetTotalPreservesUsage(t *testing.T) {
	// Corrective recalculation must never erase what was already taken.
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Debit(ctx, testKey, 8, 15, false)
	require.NoError(t, err)

	require.NoError(t, ledger.SetTotal(ctx, testKey, 20))

	entry, err := ledger.Entry(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 20, entry.TotalDays)
	assert.Equal(t, 8, entry.UsedDays)
}
