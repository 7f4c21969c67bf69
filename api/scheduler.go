/*
scheduler.go - Automated renewal scheduler

PURPOSE:
  Periodically runs the renewal sweeps (yearly, anniversary, monthly)
  so ledger rows reset on their trigger dates without manual action.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps are idempotent per date, but the scheduler still only runs
    them once per calendar day (lastRun guard)
  - A tick that fires while a run is in progress is skipped, ticks
    never overlap
  - The clock is injectable for tests

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRenewalScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRenewalSweep endpoint (manual sweeps)
  - leave/renewal.go: RenewalEngine
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/leave-engine/leave"
)

// RenewalScheduler drives the renewal engine on a timer.
type RenewalScheduler struct {
	Engine        *leave.RenewalEngine
	CheckInterval time.Duration
	Enabled       bool
	Logger        zerolog.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	lastRun leave.Date
}

// NewRenewalScheduler creates a new scheduler.
func NewRenewalScheduler(engine *leave.RenewalEngine, logger zerolog.Logger) *RenewalScheduler {
	return &RenewalScheduler{
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

func (rs *RenewalScheduler) now() time.Time {
	if rs.Now != nil {
		return rs.Now()
	}
	return time.Now()
}

// Start begins the scheduler.
func (rs *RenewalScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info().Msg("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(rs.ticker)

	rs.Logger.Info().Dur("interval", rs.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler. The wait happens outside the lock: an in-flight
// tick needs the lock to finish.
func (rs *RenewalScheduler) Stop() {
	rs.mu.Lock()
	ticker := rs.ticker
	rs.ticker = nil
	rs.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.Logger.Info().Msg("scheduler stopped")
}

func (rs *RenewalScheduler) run(ticker *time.Ticker) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.tick()

	for {
		select {
		case <-ticker.C:
			rs.tick()
		case <-rs.stop:
			return
		}
	}
}

// tick runs the sweeps for today at most once per calendar day. A tick
// arriving while a run is still in progress is dropped.
func (rs *RenewalScheduler) tick() {
	today := leave.DateOf(rs.now())

	rs.mu.Lock()
	if rs.running || rs.lastRun.Equal(today) {
		rs.mu.Unlock()
		return
	}
	rs.running = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.running = false
		rs.lastRun = today
		rs.mu.Unlock()
	}()

	reports := rs.Engine.RunSweeps(context.Background(), today)
	for _, rep := range reports {
		ev := rs.Logger.Info()
		if rep.Err != nil || rep.Failed > 0 {
			ev = rs.Logger.Error().Err(rep.Err)
		}
		ev.Str("sweep", rep.Sweep).
			Str("date", today.String()).
			Int("processed", rep.Processed).
			Int("failed", rep.Failed).
			Msg("renewal sweep completed")
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RenewalScheduler) RunNow() {
	rs.tick()
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *RenewalScheduler) NextRunTime() time.Time {
	return rs.now().Add(rs.CheckInterval)
}
