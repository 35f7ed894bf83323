package engine

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/warp/tally/generic"
	"github.com/warp/tally/recurring"
)

// =============================================================================
// RECURRING COMMANDS
// =============================================================================

func (s *Service) loadSchedule(ctx context.Context, id generic.EntityID) (*recurring.Schedule, error) {
	events, err := s.scan(ctx, generic.ForEntity(id, recurring.Types...))
	if err != nil {
		return nil, err
	}
	state, ok := s.recurring.Project(events)[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// ScheduleRecurring creates a schedule. A client-supplied id that already
// exists is rejected.
func (s *Service) ScheduleRecurring(ctx context.Context, key string, in recurring.ScheduleInput) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		if id := generic.EntityID(strings.TrimSpace(in.RecurringID)); id != "" {
			existing, err := s.loadSchedule(ctx, id)
			if err != nil {
				return generic.Event{}, err
			}
			if existing != nil {
				return generic.Event{}, generic.NewValidationError("recurringId", "%s already exists", id)
			}
		}
		return recurring.NewScheduledEvent(in, s.now())
	})
}

// UpdateRecurring applies a partial update.
func (s *Service) UpdateRecurring(ctx context.Context, key string, id generic.EntityID, in recurring.UpdateInput) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadSchedule(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return recurring.NewUpdatedEvent(current, id, in, s.now())
	})
}

// MarkRecurringPosted records a payment and advances the due date.
func (s *Service) MarkRecurringPosted(ctx context.Context, key string, id generic.EntityID) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadSchedule(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return recurring.NewPostedEvent(current, id, s.now())
	})
}

// CancelRecurring terminates a schedule.
func (s *Service) CancelRecurring(ctx context.Context, key string, id generic.EntityID, reason string) (CommandResult, error) {
	return s.apply(ctx, key, func(ctx context.Context) (generic.Event, error) {
		current, err := s.loadSchedule(ctx, id)
		if err != nil {
			return generic.Event{}, err
		}
		return recurring.NewCanceledEvent(current, id, reason, s.now())
	})
}

// =============================================================================
// RECURRING QUERIES
// =============================================================================

// RecurringQuery selects schedules. Limit is clamped by ClampLimit.
type RecurringQuery struct {
	Limit           int
	IncludeCanceled bool
}

// RecurringTransactions returns schedules ordered soonest-due first.
func (s *Service) RecurringTransactions(ctx context.Context, q RecurringQuery) ([]recurring.Schedule, error) {
	events, err := s.scan(ctx, generic.ForTypes(recurring.Types...))
	if err != nil {
		return nil, err
	}
	return recurring.Select(s.recurring.Project(events), recurring.Query{
		IncludeCanceled: q.IncludeCanceled,
		Limit:           ClampLimit(q.Limit),
	}), nil
}

// Upcoming horizon bounds, in days.
const (
	DefaultUpcomingDays = 30
	MaxUpcomingDays     = 366
)

// UpcomingRecurring lists due occurrences of active schedules from now
// through the next days. Unposted occurrences of overdue schedules come
// first, starting at their current due date; each side is capped at
// recurring.MaxOccurrences per schedule, so a long-overdue schedule still
// reaches the horizon.
func (s *Service) UpcomingRecurring(ctx context.Context, days int) ([]recurring.Occurrence, error) {
	switch {
	case days < 0:
		return nil, generic.NewValidationError("days", "must not be negative")
	case days == 0:
		days = DefaultUpcomingDays
	case days > MaxUpcomingDays:
		days = MaxUpcomingDays
	}
	events, err := s.scan(ctx, generic.ForTypes(recurring.Types...))
	if err != nil {
		return nil, err
	}

	now := s.now()
	until := now.AddDate(0, 0, days)
	out := []recurring.Occurrence{}
	for _, sched := range recurring.Select(s.recurring.Project(events), recurring.Query{}) {
		if sched.NextDueAt.Before(now) {
			for _, o := range recurring.Occurrences(sched, sched.NextDueAt, now) {
				if o.DueAt.Before(now) {
					out = append(out, o)
				}
			}
		}
		out = append(out, recurring.Occurrences(sched, now, until)...)
	}
	slices.SortFunc(out, func(a, b recurring.Occurrence) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		return cmp.Compare(a.RecurringID, b.RecurringID)
	})
	return out, nil
}
