package habit

import (
	"strings"
	"time"

	"github.com/warp/tally/generic"
)

// CreateInput defines a new habit. Cadence is "daily", "weekdays" or
// "custom" (with CustomDays, 0=Sunday).
type CreateInput struct {
	HabitID     string
	Name        string
	Kind        string
	Cadence     string
	CustomDays  []int
	StartDayKey string
	EndDayKey   string
}

func (in CreateInput) rule() (Rule, error) {
	r, err := ParseRule(in.Cadence, in.CustomDays)
	if err != nil {
		return Rule{}, generic.NewValidationError("cadence", "%v", err)
	}
	return r, nil
}

func NewCreatedEvent(in CreateInput, at time.Time) (generic.Event, error) {
	if strings.TrimSpace(in.Name) == "" {
		return generic.Event{}, generic.NewValidationError("name", "must not be empty")
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	switch kind {
	case "":
		kind = "habit"
	case "habit", "task":
	default:
		return generic.Event{}, generic.NewValidationError("kind", "must be habit or task")
	}
	rule, err := in.rule()
	if err != nil {
		return generic.Event{}, err
	}
	start, err := optionalDay("startDayKey", in.StartDayKey)
	if err != nil {
		return generic.Event{}, err
	}
	end, err := optionalDay("endDayKey", in.EndDayKey)
	if err != nil {
		return generic.Event{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return generic.Event{}, generic.NewValidationError("endDayKey", "must not precede startDayKey")
	}

	id := generic.EntityID(strings.TrimSpace(in.HabitID))
	if id == "" {
		id = generic.NewEntityID()
	}
	return generic.NewEvent(TypeCreated, id, map[string]any{
		"habitId":     string(id),
		"name":        strings.TrimSpace(in.Name),
		"kind":        kind,
		"cadence":     rule,
		"startDayKey": start,
		"endDayKey":   end,
	}, at)
}

// UpdateInput changes only the non-nil fields. A cadence change applies
// from EffectiveDayKey (default: today).
type UpdateInput struct {
	Name            *string
	Cadence         *string
	CustomDays      []int
	StartDayKey     *string
	EndDayKey       *string
	EffectiveDayKey string
}

func NewUpdatedEvent(current *Habit, id generic.EntityID, in UpdateInput, at time.Time) (generic.Event, error) {
	if err := requireLive(current, id); err != nil {
		return generic.Event{}, err
	}
	payload := map[string]any{"habitId": string(id)}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return generic.Event{}, generic.NewValidationError("name", "must not be empty")
		}
		payload["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Cadence != nil {
		r, err := ParseRule(*in.Cadence, in.CustomDays)
		if err != nil {
			return generic.Event{}, generic.NewValidationError("cadence", "%v", err)
		}
		payload["cadence"] = r
	}
	start, end := current.Start, current.End
	if in.StartDayKey != nil {
		k, err := optionalDay("startDayKey", *in.StartDayKey)
		if err != nil {
			return generic.Event{}, err
		}
		start = k
		payload["startDayKey"] = k
	}
	if in.EndDayKey != nil {
		k, err := optionalDay("endDayKey", *in.EndDayKey)
		if err != nil {
			return generic.Event{}, err
		}
		end = k
		payload["endDayKey"] = k
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return generic.Event{}, generic.NewValidationError("endDayKey", "must not precede startDayKey")
	}
	if in.EffectiveDayKey != "" {
		k, err := optionalDay("effectiveDayKey", in.EffectiveDayKey)
		if err != nil {
			return generic.Event{}, err
		}
		payload["effectiveDayKey"] = k
	}
	if len(payload) == 1 {
		return generic.Event{}, generic.NewValidationError("update", "no fields to change")
	}
	return generic.NewEvent(TypeUpdated, id, payload, at)
}

// NewPausedEvent pauses from `from` (default today) until `until`
// (exclusive, empty = until resumed).
func NewPausedEvent(current *Habit, id generic.EntityID, from, until string, today generic.DayKey, at time.Time) (generic.Event, error) {
	if err := requireLive(current, id); err != nil {
		return generic.Event{}, err
	}
	fromDay, err := optionalDay("fromDayKey", from)
	if err != nil {
		return generic.Event{}, err
	}
	if fromDay.IsZero() {
		fromDay = today
	}
	untilDay, err := optionalDay("untilDayKey", until)
	if err != nil {
		return generic.Event{}, err
	}
	if !untilDay.IsZero() && !untilDay.After(fromDay) {
		return generic.Event{}, generic.NewValidationError("untilDayKey", "must be after fromDayKey")
	}
	return generic.NewEvent(TypePaused, id, map[string]any{
		"habitId":     string(id),
		"fromDayKey":  fromDay,
		"untilDayKey": untilDay,
	}, at)
}

func NewResumedEvent(current *Habit, id generic.EntityID, today generic.DayKey, at time.Time) (generic.Event, error) {
	if err := requireLive(current, id); err != nil {
		return generic.Event{}, err
	}
	if !current.PausedOn(today) {
		return generic.Event{}, generic.NewValidationError("habitId", "habit is not paused")
	}
	return generic.NewEvent(TypeResumed, id, map[string]any{"habitId": string(id), "dayKey": today}, at)
}

// NewLoggedEvent records the status of one day. Future days are rejected.
func NewLoggedEvent(current *Habit, id generic.EntityID, day, status, note string, today generic.DayKey, at time.Time) (generic.Event, error) {
	if err := requireLive(current, id); err != nil {
		return generic.Event{}, err
	}
	dayKey, err := generic.ParseDayKey(day)
	if err != nil {
		return generic.Event{}, generic.NewValidationError("dayKey", "%v", err)
	}
	if dayKey.After(today) {
		return generic.Event{}, generic.NewValidationError("dayKey", "cannot log a future day")
	}
	st, ok := ParseStatus(status)
	if !ok {
		return generic.Event{}, generic.NewValidationError("status", "unsupported status %q", status)
	}
	return generic.NewEvent(TypeLogged, id, map[string]any{
		"habitId": string(id),
		"dayKey":  dayKey,
		"status":  st,
		"note":    note,
	}, at)
}

func NewArchivedEvent(current *Habit, id generic.EntityID, today generic.DayKey, at time.Time) (generic.Event, error) {
	if err := requireLive(current, id); err != nil {
		return generic.Event{}, err
	}
	return generic.NewEvent(TypeArchived, id, map[string]any{"habitId": string(id), "dayKey": today}, at)
}

func requireLive(current *Habit, id generic.EntityID) error {
	if current == nil {
		return &generic.NotFoundError{Kind: Kind, ID: id}
	}
	if current.Archived() {
		return &generic.TerminalError{Kind: Kind, ID: id, At: current.UpdatedAt}
	}
	return nil
}

func optionalDay(field, s string) (generic.DayKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return generic.DayKey{}, nil
	}
	k, err := generic.ParseDayKey(s)
	if err != nil {
		return generic.DayKey{}, generic.NewValidationError(field, "%v", err)
	}
	return k, nil
}
