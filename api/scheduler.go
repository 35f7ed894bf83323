/*
scheduler.go - Periodic overdue-bill check

PURPOSE:
  Periodically folds the recurring schedules and reports the active ones
  whose due date has passed without a posting. Nothing is appended: the
  check only logs and updates the tally_recurring_overdue_schedules gauge.

DESIGN:
  - Background goroutine driven by a ticker
  - Runs once immediately on Start
  - Stop blocks until the goroutine has exited

USAGE:
  scheduler := NewDueScheduler(svc, logger, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/recurring.go: RecurringTransactions query
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/tally/engine"
	"github.com/warp/tally/recurring"
)

// DueScheduler reports overdue recurring schedules.
type DueScheduler struct {
	Service       *engine.Service
	Logger        zerolog.Logger
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewDueScheduler(svc *engine.Service, logger zerolog.Logger, interval time.Duration) *DueScheduler {
	return &DueScheduler{
		Service:       svc,
		Logger:        logger.With().Str("component", "due_scheduler").Logger(),
		CheckInterval: interval,
	}
}

// Start begins the periodic check. A non-positive interval disables it.
func (ds *DueScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.CheckInterval <= 0 {
		ds.Logger.Info().Msg("disabled, not starting")
		return
	}
	if ds.ticker != nil {
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.stop = make(chan struct{})
	ds.wg.Add(1)
	go ds.run(ds.ticker.C, ds.stop)

	ds.Logger.Info().Dur("interval", ds.CheckInterval).Msg("started")
}

// Stop halts the scheduler and waits for an in-flight check.
func (ds *DueScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker == nil {
		return
	}
	ds.ticker.Stop()
	close(ds.stop)
	ds.wg.Wait()
	ds.ticker = nil
	ds.Logger.Info().Msg("stopped")
}

func (ds *DueScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer ds.wg.Done()

	ds.Check(context.Background())
	for {
		select {
		case <-tick:
			ds.Check(context.Background())
		case <-stop:
			return
		}
	}
}

// Check runs one pass and returns the overdue schedules.
func (ds *DueScheduler) Check(ctx context.Context) []recurring.Schedule {
	schedules, err := ds.Service.RecurringTransactions(ctx, engine.RecurringQuery{Limit: engine.MaxLimit})
	if err != nil {
		ds.Logger.Error().Err(err).Msg("overdue check failed")
		return nil
	}

	now := ds.Service.Clock().Now()
	var overdue []recurring.Schedule
	for _, s := range schedules {
		// Sorted soonest-due first, so the first future one ends the scan.
		if !s.NextDueAt.Before(now) {
			break
		}
		overdue = append(overdue, s)
		ds.Logger.Warn().
			Str("recurring_id", string(s.ID)).
			Str("name", s.Name).
			Time("due_at", s.NextDueAt).
			Msg("recurring payment overdue")
	}
	overdueSchedules.Set(float64(len(overdue)))
	return overdue
}
