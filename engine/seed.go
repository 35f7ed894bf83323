/*
seed.go - Demo scenarios

PURPOSE:
  Populates the log with realistic data for demos and manual testing.
  Every seeded command uses a fixed idempotency key derived from the
  scenario, so loading a scenario twice appends nothing the second time.

AVAILABLE SCENARIOS:
  budget:  Two accounts with transactions, three recurring bills
  habits:  A daily habit, a weekday habit and a custom-day task with two
           weeks of logs ending yesterday

SEE ALSO:
  - api/scenarios.go: HTTP endpoints that load scenarios
*/
package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/warp/tally/account"
	"github.com/warp/tally/generic"
	"github.com/warp/tally/habit"
	"github.com/warp/tally/recurring"
)

// Scenario describes a loadable demo data set.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var Scenarios = []Scenario{
	{ID: "budget", Name: "Budget", Description: "Accounts with balances and monthly bills"},
	{ID: "habits", Name: "Habits", Description: "Three habits with two weeks of history"},
}

// Seed loads a scenario. An empty id loads all of them.
func Seed(ctx context.Context, svc *Service, id string) error {
	switch id {
	case "":
		for _, sc := range Scenarios {
			if err := Seed(ctx, svc, sc.ID); err != nil {
				return err
			}
		}
		return nil
	case "budget":
		return seedBudget(ctx, svc)
	case "habits":
		return seedHabits(ctx, svc)
	}
	return generic.NewValidationError("scenario", "unknown scenario %q", id)
}

// seeder runs commands under deterministic idempotency keys and stops at
// the first error.
type seeder struct {
	scenario string
	n        int
	err      error
}

func (sd *seeder) key() string {
	sd.n++
	return fmt.Sprintf("seed:%s:%d", sd.scenario, sd.n)
}

func (sd *seeder) run(cmd func(key string) (CommandResult, error)) {
	if sd.err != nil {
		return
	}
	if _, err := cmd(sd.key()); err != nil {
		sd.err = fmt.Errorf("seed %s step %d: %w", sd.scenario, sd.n, err)
	}
}

func seedBudget(ctx context.Context, svc *Service) error {
	sd := &seeder{scenario: "budget"}
	now := svc.now()

	sd.run(func(k string) (CommandResult, error) {
		return svc.OpenAccount(ctx, k, account.OpenInput{AccountID: "acct-checking", Name: "Checking", Kind: "checking", OpeningBalance: decimal.NewFromInt(2400)})
	})
	sd.run(func(k string) (CommandResult, error) {
		return svc.OpenAccount(ctx, k, account.OpenInput{AccountID: "acct-savings", Name: "Savings", Kind: "savings", OpeningBalance: decimal.NewFromInt(8000)})
	})
	for _, amt := range []string{"-54.20", "-120.00", "1850.00", "-23.75"} {
		sd.run(func(k string) (CommandResult, error) {
			return svc.RecordTransaction(ctx, k, "acct-checking", account.RecordInput{Amount: decimal.RequireFromString(amt)})
		})
	}

	bills := []recurring.ScheduleInput{
		{RecurringID: "rec-rent", Name: "Rent", Amount: decimal.NewFromInt(1400), Cadence: "monthly", NextDueAt: now.AddDate(0, 0, 5), AccountID: "acct-checking"},
		{RecurringID: "rec-gym", Name: "Gym", Amount: decimal.RequireFromString("39.99"), Cadence: "monthly", NextDueAt: now.AddDate(0, 0, 12), AccountID: "acct-checking"},
		{RecurringID: "rec-insurance", Name: "Car insurance", Amount: decimal.NewFromInt(310), Cadence: "quarterly", NextDueAt: now.AddDate(0, 1, 0), AccountID: "acct-checking"},
	}
	for _, b := range bills {
		sd.run(func(k string) (CommandResult, error) { return svc.ScheduleRecurring(ctx, k, b) })
	}
	return sd.err
}

func seedHabits(ctx context.Context, svc *Service) error {
	sd := &seeder{scenario: "habits"}
	today := svc.today()
	start := today.AddDays(-14).String()

	habits := []habit.CreateInput{
		{HabitID: "habit-read", Name: "Read 20 minutes", Cadence: "daily", StartDayKey: start},
		{HabitID: "habit-run", Name: "Run", Cadence: "weekdays", StartDayKey: start},
		{HabitID: "habit-plants", Name: "Water plants", Kind: "task", Cadence: "custom", CustomDays: []int{1, 4}, StartDayKey: start},
	}
	for _, in := range habits {
		sd.run(func(k string) (CommandResult, error) { return svc.CreateHabit(ctx, k, in) })
	}

	// Mostly completed, with a miss and a skip to make streaks visible.
	misses := []int{3, 9}
	for back := 14; back >= 1; back-- {
		day := today.AddDays(-back)
		for _, in := range habits {
			status := string(habit.Completed)
			switch {
			case slices.Contains(misses, back):
				status = string(habit.Missed)
			case back == 6 && in.HabitID == "habit-run":
				status = string(habit.Skipped)
			}
			h := generic.EntityID(in.HabitID)
			// Only log days the habit expects, like a real client would.
			rule, _ := habit.ParseRule(in.Cadence, in.CustomDays)
			if !rule.Matches(day) {
				continue
			}
			sd.run(func(k string) (CommandResult, error) {
				return svc.LogHabit(ctx, k, h, day.String(), status, "")
			})
		}
	}
	return sd.err
}
