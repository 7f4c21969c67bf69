/*
renewal.go - Periodic quota renewal

PURPOSE:
  Rewrites ledger entries whose category's renewal rule fires on a given
  date. Three independent, order-independent sweeps:

  YEARLY       categories whose rule's (month, day) is today: recompute
               total from the person's CURRENT tenure, zero usage
  ANNIVERSARY  people whose hire month/day is today: recompute for the
               now-incremented tenure on their anniversary categories
  MONTHLY      categories whose rule's day-of-month is today: reset to
               the category's fixed allowance, zero usage

  Event-based categories never participate.

FAILURE ISOLATION:
  A failing record is logged and skipped, never aborting the rest of its
  sweep; a failing sweep never blocks the other two. Nothing is retried
  within the same run - the next scheduled tick is the retry.

TESTABILITY:
  The sweep date is a parameter, not a wall-clock read. The ticking loop
  lives in the api layer and injects the date.
*/
package leave

import (
	"context"

	"github.com/rs/zerolog"
)

// =============================================================================
// SWEEP REPORTING
// =============================================================================

// SweepReport summarizes one sweep of a renewal run.
type SweepReport struct {
	Sweep     string
	Processed int
	Failed    int
	Err       error // sweep-level failure (listing), nil when the sweep ran
}

// =============================================================================
// RENEWAL ENGINE
// =============================================================================

// RenewalEngine recomputes and resets ledger entries on their renewal dates.
type RenewalEngine struct {
	Catalog   CatalogStore
	Ledger    *Ledger
	Balances  BalanceStore
	Directory Directory
	Resolver  *Resolver
	Logger    zerolog.Logger
}

// RunSweeps executes the three sweeps for the given date and returns one
// report per sweep. Sweeps are isolated from each other.
func (e *RenewalEngine) RunSweeps(ctx context.Context, today Date) []SweepReport {
	reports := []SweepReport{
		e.yearlySweep(ctx, today),
		e.anniversarySweep(ctx, today),
		e.monthlySweep(ctx, today),
	}
	for _, r := range reports {
		evt := e.Logger.Info()
		if r.Err != nil || r.Failed > 0 {
			evt = e.Logger.Warn().Err(r.Err)
		}
		evt.Str("sweep", r.Sweep).
			Str("date", today.String()).
			Int("processed", r.Processed).
			Int("failed", r.Failed).
			Msg("renewal sweep finished")
	}
	return reports
}

// yearlySweep resets entries of YEARLY categories triggering today, with
// totals recomputed from each person's current tenure.
func (e *RenewalEngine) yearlySweep(ctx context.Context, today Date) SweepReport {
	report := SweepReport{Sweep: "yearly"}

	bindings, err := e.Catalog.CategoriesWithRenewal(ctx, RenewalYearly)
	if err != nil {
		report.Err = &SweepError{Sweep: report.Sweep, Err: err}
		return report
	}

	for _, b := range bindings {
		if !b.Rule.FiresOn(today) {
			continue
		}

		entries, err := e.Balances.EntriesForCategory(ctx, b.Category.ID, today.Year())
		if err != nil {
			report.Err = &SweepError{Sweep: report.Sweep, Err: err}
			continue
		}

		for _, entry := range entries {
			if err := e.resetFromTenure(ctx, &b.Category, entry.Key, today); err != nil {
				report.Failed++
				e.Logger.Error().Err(err).
					Str("sweep", report.Sweep).
					Str("personnel_id", string(entry.Key.PersonnelID)).
					Str("category_id", string(entry.Key.CategoryID)).
					Msg("renewal reset failed")
				continue
			}
			report.Processed++
		}
	}
	return report
}

// anniversarySweep resets anniversary categories for every person whose hire
// month/day is today. The ledger row is created when absent.
func (e *RenewalEngine) anniversarySweep(ctx context.Context, today Date) SweepReport {
	report := SweepReport{Sweep: "service_anniversary"}

	bindings, err := e.Catalog.CategoriesWithRenewal(ctx, RenewalAnniversary)
	if err != nil {
		report.Err = &SweepError{Sweep: report.Sweep, Err: err}
		return report
	}
	if len(bindings) == 0 {
		return report
	}

	people, err := e.Directory.ListActive(ctx)
	if err != nil {
		report.Err = &SweepError{Sweep: report.Sweep, Err: err}
		return report
	}

	for _, p := range people {
		if !p.HireDate.SameMonthDay(today) {
			continue
		}
		for _, b := range bindings {
			key := LedgerKey{PersonnelID: p.ID, CategoryID: b.Category.ID, Year: today.Year()}
			if err := e.resetFromTenure(ctx, &b.Category, key, today); err != nil {
				report.Failed++
				e.Logger.Error().Err(err).
					Str("sweep", report.Sweep).
					Str("personnel_id", string(p.ID)).
					Str("category_id", string(b.Category.ID)).
					Msg("renewal reset failed")
				continue
			}
			report.Processed++
		}
	}
	return report
}

// monthlySweep resets MONTHLY categories triggering today to their fixed
// allowance. No tenure computation involved.
func (e *RenewalEngine) monthlySweep(ctx context.Context, today Date) SweepReport {
	report := SweepReport{Sweep: "monthly"}

	bindings, err := e.Catalog.CategoriesWithRenewal(ctx, RenewalMonthly)
	if err != nil {
		report.Err = &SweepError{Sweep: report.Sweep, Err: err}
		return report
	}

	for _, b := range bindings {
		if !b.Rule.FiresOn(today) {
			continue
		}

		entries, err := e.Balances.EntriesForCategory(ctx, b.Category.ID, today.Year())
		if err != nil {
			report.Err = &SweepError{Sweep: report.Sweep, Err: err}
			continue
		}

		for _, entry := range entries {
			if err := e.Ledger.Reset(ctx, entry.Key, b.Category.MaxDays); err != nil {
				report.Failed++
				e.Logger.Error().Err(err).
					Str("sweep", report.Sweep).
					Str("personnel_id", string(entry.Key.PersonnelID)).
					Str("category_id", string(entry.Key.CategoryID)).
					Msg("renewal reset failed")
				continue
			}
			report.Processed++
		}
	}
	return report
}

func (e *RenewalEngine) resetFromTenure(ctx context.Context, cat *LeaveCategory, key LedgerKey, today Date) error {
	tenure, err := e.Directory.TenureOf(ctx, key.PersonnelID, today)
	if err != nil {
		return err
	}
	total, err := e.Resolver.EntitlementFor(ctx, cat, tenure.Years, today)
	if err != nil {
		return err
	}
	return e.Ledger.Reset(ctx, key, total)
}

// =============================================================================
// FULL RECALCULATION - Corrective maintenance
// =============================================================================

// RecalculateAll recomputes total_days from current tenure for every active
// person and every active periodic category, preserving used_days. Returns
// the number of entries rewritten.
func (e *RenewalEngine) RecalculateAll(ctx context.Context, today Date) (int, error) {
	cats, err := e.Catalog.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	people, err := e.Directory.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, p := range people {
		tenure, err := e.Directory.TenureOf(ctx, p.ID, today)
		if err != nil {
			e.Logger.Error().Err(err).Str("personnel_id", string(p.ID)).Msg("recalculation skipped person")
			continue
		}
		for i := range cats {
			cat := &cats[i]
			if !cat.Active || cat.EventBased {
				continue
			}
			total, err := e.Resolver.EntitlementFor(ctx, cat, tenure.Years, today)
			if err != nil {
				e.Logger.Error().Err(err).
					Str("personnel_id", string(p.ID)).
					Str("category_id", string(cat.ID)).
					Msg("recalculation skipped entry")
				continue
			}
			key := LedgerKey{PersonnelID: p.ID, CategoryID: cat.ID, Year: today.Year()}
			if err := e.Ledger.SetTotal(ctx, key, total); err != nil {
				e.Logger.Error().Err(err).
					Str("personnel_id", string(p.ID)).
					Str("category_id", string(cat.ID)).
					Msg("recalculation write failed")
				continue
			}
			updated++
		}
	}
	return updated, nil
}
