package engine

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/warp/tally/generic"
	"github.com/warp/tally/habit"
)

// =============================================================================
// HABIT COMMANDS
// =============================================================================

func (s *Service) loadHabit(ctx context.Context, id generic.EntityID) (*habit.Habit, error) {
	events, err := s.scan(ctx, generic.ForEntity(id, habit.Types...))
	if err != nil {
		return nil, err
	}
	state, ok := s.habits.Project(events)[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// CreateHabit creates a habit or task. A client-supplied id that already
// exists is rejected.
func (s *Service) CreateHabit(ctx context.Context, key string, in habit.CreateInput) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		if id := generic.EntityID(strings.TrimSpace(in.HabitID)); id != "" {
			existing, err := s.loadHabit(ctx, id)
			if err != nil {
				return generic.Event{}, err
			}
			if existing != nil {
				return generic.Event{}, generic.NewValidationError("habitId", "%s already exists", id)
			}
		}
		return habit.NewCreatedEvent(in, s.now())
	})
}

// UpdateHabit applies a partial update. A cadence change takes effect from
// in.EffectiveDayKey, or today when empty; earlier days keep their rule.
func (s *Service) UpdateHabit(ctx context.Context, key string, id generic.EntityID, in habit.UpdateInput) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadHabit(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return habit.NewUpdatedEvent(current, id, in, s.now())
	})
}

// PauseHabit excludes [from, until) from scheduling. Empty from means
// today; empty until means until resumed.
func (s *Service) PauseHabit(ctx context.Context, key string, id generic.EntityID, from, until string) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadHabit(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return habit.NewPausedEvent(current, id, from, until, s.today(), s.now())
	})
}

func (s *Service) ResumeHabit(ctx context.Context, key string, id generic.EntityID) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadHabit(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return habit.NewResumedEvent(current, id, s.today(), s.now())
	})
}

func (s *Service) ArchiveHabit(ctx context.Context, key string, id generic.EntityID) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadHabit(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return habit.NewArchivedEvent(current, id, s.today(), s.now())
	})
}

// LogHabit records the status of one day. Logging the same day again
// overwrites the earlier entry.
func (s *Service) LogHabit(ctx context.Context, key string, id generic.EntityID, dayKey, status, note string) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadHabit(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return habit.NewLoggedEvent(current, id, dayKey, status, note, s.today(), s.now())
	})
}

// =============================================================================
// HABIT QUERIES
// =============================================================================

// HabitView is a habit as listed for one day.
type HabitView struct {
	habit.Habit
	Cadence   habit.Rule     `json:"cadence"`
	Scheduled bool           `json:"scheduled"`
	Status    habit.Status   `json:"status,omitempty"`
	DayKey    generic.DayKey `json:"dayKey"`
}

// HabitsQuery lists habits as seen on DayKey (empty = today).
type HabitsQuery struct {
	DayKey          string
	IncludeArchived bool
}

func (s *Service) Habits(ctx context.Context, q HabitsQuery) ([]HabitView, error) {
	day, err := ParseDay("dayKey", q.DayKey, s.today())
	if err != nil {
		return nil, err
	}
	states, err := s.projectHabits(ctx)
	if err != nil {
		return nil, err
	}

	habits := habit.Select(states, q.IncludeArchived)
	out := make([]HabitView, 0, len(habits))
	for _, h := range habits {
		v := HabitView{Habit: h, Cadence: h.RuleAt(day), Scheduled: h.IsScheduled(day), DayKey: day}
		if st, ok := h.StatusOn(day); ok {
			v.Status = st
		} else if v.Scheduled && day == s.today() {
			v.Status = habit.Pending
		}
		out = append(out, v)
	}
	return out, nil
}

// ConsistencyQuery asks for one habit's report. Empty AsOfDayKey means
// today; WindowDays is clamped by ClampWindow.
type ConsistencyQuery struct {
	HabitID    string
	AsOfDayKey string
	WindowDays int
}

// HabitConsistency scores one habit. An unknown habit yields a zeroed
// report rather than an error.
func (s *Service) HabitConsistency(ctx context.Context, q ConsistencyQuery) (habit.Report, error) {
	id := generic.EntityID(strings.TrimSpace(q.HabitID))
	if id == "" {
		return habit.Report{}, generic.NewValidationError("habitId", "is required")
	}
	asOf, window, err := s.reportParams(q.AsOfDayKey, q.WindowDays)
	if err != nil {
		return habit.Report{}, err
	}

	events, err := s.scan(ctx, generic.ForEntity(id, habit.Types...))
	if err != nil {
		return habit.Report{}, err
	}
	h := s.habits.Project(events)[id]
	report := habit.Compute(h, asOf, window)
	report.HabitID = id
	return report, nil
}

// OverviewQuery scores every live habit over the same window.
type OverviewQuery struct {
	AsOfDayKey string
	WindowDays int
}

// HabitsOverview returns one report per non-archived habit, in the order
// of Habits.
func (s *Service) HabitsOverview(ctx context.Context, q OverviewQuery) ([]habit.Report, error) {
	asOf, window, err := s.reportParams(q.AsOfDayKey, q.WindowDays)
	if err != nil {
		return nil, err
	}
	states, err := s.projectHabits(ctx)
	if err != nil {
		return nil, err
	}

	habits := habit.Select(states, false)
	reports := make([]habit.Report, len(habits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, h := range habits {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = habit.Compute(h, asOf, window)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Service) reportParams(asOfDayKey string, windowDays int) (generic.DayKey, int, error) {
	asOf, err := ParseDay("asOfDayKey", asOfDayKey, s.today())
	if err != nil {
		return generic.DayKey{}, 0, err
	}
	window, err := ClampWindow(windowDays)
	if err != nil {
		return generic.DayKey{}, 0, err
	}
	return asOf, window, nil
}

func (s *Service) projectHabits(ctx context.Context) (map[generic.EntityID]habit.Habit, error) {
	events, err := s.scan(ctx, generic.ForTypes(habit.Types...))
	if err != nil {
		return nil, err
	}
	return s.habits.Project(events), nil
}
