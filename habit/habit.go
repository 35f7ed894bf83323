package habit

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/tally/generic"
)

// Version is a cadence rule and the first day it applies to.
// The genesis version has a zero From and covers all earlier days.
type Version struct {
	From generic.DayKey `json:"from,omitempty"`
	Rule Rule           `json:"cadence"`
}

// Entry is the authoritative status of one logged day.
type Entry struct {
	Status   Status    `json:"status"`
	Note     string    `json:"note,omitempty"`
	LoggedAt time.Time `json:"loggedAt"`
}

// Habit is the derived state of one habit or task.
type Habit struct {
	ID         generic.EntityID         `json:"habitId"`
	Name       string                   `json:"name"`
	Kind       string                   `json:"kind"`
	Start      generic.DayKey           `json:"startDayKey,omitempty"`
	End        generic.DayKey           `json:"endDayKey,omitempty"`
	CreatedOn  generic.DayKey           `json:"createdDayKey"`
	FirstLog   generic.DayKey           `json:"firstLoggedDayKey,omitempty"`
	Versions   []Version                `json:"cadenceHistory"`
	Pauses     []Pause                  `json:"pauses,omitempty"`
	ArchivedOn generic.DayKey           `json:"archivedDayKey,omitempty"`
	Days       map[generic.DayKey]Entry `json:"days,omitempty"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}

// Archived reports whether the habit reached its terminal event.
func (h Habit) Archived() bool { return !h.ArchivedOn.IsZero() }

// Rule returns the current (latest) cadence rule.
func (h Habit) Rule() Rule {
	if len(h.Versions) == 0 {
		return DefaultRule
	}
	return h.Versions[len(h.Versions)-1].Rule
}

// RuleAt returns the rule in effect on day.
func (h Habit) RuleAt(day generic.DayKey) Rule {
	if len(h.Versions) == 0 {
		return DefaultRule
	}
	rule := h.Versions[0].Rule
	for _, v := range h.Versions[1:] {
		if v.From.After(day) {
			break
		}
		rule = v.Rule
	}
	return rule
}

// FirstDay is the earliest day the habit can be scheduled. Without an
// explicit start it reaches back to the earliest backfilled log.
func (h Habit) FirstDay() generic.DayKey {
	if !h.Start.IsZero() {
		return h.Start
	}
	return generic.MinDay(h.CreatedOn, h.FirstLog)
}

// Lifecycle returns the bounds used by Evaluate.
func (h Habit) Lifecycle() Lifecycle {
	return Lifecycle{Start: h.FirstDay(), End: h.End, Pauses: h.Pauses, ArchivedOn: h.ArchivedOn}
}

// IsScheduled reports whether day was a scheduled day of the habit.
func (h Habit) IsScheduled(day generic.DayKey) bool {
	if h.ID == "" {
		return false
	}
	return Evaluate(h.RuleAt(day), day, h.Lifecycle())
}

// PausedOn reports whether a pause covers day.
func (h Habit) PausedOn(day generic.DayKey) bool {
	for _, p := range h.Pauses {
		if p.Covers(day) {
			return true
		}
	}
	return false
}

// StatusOn returns the logged status of day.
func (h Habit) StatusOn(day generic.DayKey) (Status, bool) {
	e, ok := h.Days[day]
	return e.Status, ok
}

// =============================================================================
// PROJECTOR
// =============================================================================

// Projector folds habit events. Location resolves default day keys from
// OccurredAt (the user's local calendar).
type Projector struct {
	Location *time.Location
	Logger   zerolog.Logger
}

func (p Projector) Project(events []generic.Event) map[generic.EntityID]Habit {
	return generic.Fold(events, make(map[generic.EntityID]Habit), func(states map[generic.EntityID]Habit, evt generic.Event) map[generic.EntityID]Habit {
		payload, err := Decode(evt)
		if err != nil {
			p.Logger.Warn().Err(err).Str("event_id", string(evt.ID)).Msg("skipping undecodable habit event")
			return states
		}
		p.apply(states, evt, payload)
		return states
	})
}

func (p Projector) apply(states map[generic.EntityID]Habit, evt generic.Event, payload Payload) {
	id := payload.habitID()
	current, exists := states[id]
	occurredOn := generic.DayKeyOf(evt.OccurredAt, p.Location)

	if pl, ok := payload.(Created); ok {
		next := Habit{
			ID:        id,
			Name:      pl.Name,
			Kind:      pl.Kind,
			Start:     pl.Start,
			End:       pl.End,
			CreatedOn: occurredOn,
			Versions:  []Version{{Rule: pl.Rule}},
			Days:      make(map[generic.DayKey]Entry),
			UpdatedAt: evt.OccurredAt,
		}
		// A repeated genesis redefines the habit but keeps its history.
		if exists {
			next.CreatedOn = generic.MinDay(current.CreatedOn, occurredOn)
			next.Pauses = current.Pauses
			next.ArchivedOn = current.ArchivedOn
			next.Days = current.Days
			next.FirstLog = current.FirstLog
		}
		states[id] = next
		return
	}

	if !exists || current.Archived() {
		return
	}

	switch pl := payload.(type) {
	case Updated:
		if pl.Name != nil {
			current.Name = *pl.Name
		}
		if pl.Start != nil {
			current.Start = *pl.Start
		}
		if pl.End != nil {
			current.End = *pl.End
		}
		if pl.Rule != nil {
			effective := pl.Effective
			if effective.IsZero() {
				effective = occurredOn
			}
			current.Versions = withVersion(current.Versions, Version{From: effective, Rule: *pl.Rule})
		}

	case Paused:
		from := pl.From
		if from.IsZero() {
			from = occurredOn
		}
		if !pl.Until.IsZero() && !pl.Until.After(from) {
			return
		}
		current.Pauses = append(slices.Clone(current.Pauses), Pause{From: from, Until: pl.Until})

	case Resumed:
		day := pl.Day
		if day.IsZero() {
			day = occurredOn
		}
		current.Pauses = resumeOn(current.Pauses, day)

	case Logged:
		// Days is owned by this fold; later entries for a day overwrite
		// earlier ones because the fold is chronological.
		current.Days[pl.Day] = Entry{Status: pl.Status, Note: pl.Note, LoggedAt: evt.OccurredAt}
		current.FirstLog = generic.MinDay(current.FirstLog, pl.Day)

	case Archived:
		day := pl.Day
		if day.IsZero() {
			day = occurredOn
		}
		current.ArchivedOn = day
	}

	current.UpdatedAt = evt.OccurredAt
	states[id] = current
}

// withVersion inserts v in From order, replacing a version with the same
// From. The genesis version is never replaced by a dated one.
func withVersion(versions []Version, v Version) []Version {
	out := make([]Version, 0, len(versions)+1)
	inserted := false
	for i, existing := range versions {
		if i > 0 && existing.From == v.From {
			out = append(out, v)
			inserted = true
			continue
		}
		if !inserted && i > 0 && existing.From.After(v.From) {
			out = append(out, v)
			inserted = true
		}
		out = append(out, existing)
	}
	if !inserted {
		out = append(out, v)
	}
	return out
}

// resumeOn closes every pause running on day and drops pauses that had not
// started yet.
func resumeOn(pauses []Pause, day generic.DayKey) []Pause {
	out := make([]Pause, 0, len(pauses))
	for _, p := range pauses {
		if !p.Until.IsZero() && !p.Until.After(day) {
			out = append(out, p)
			continue
		}
		if !p.From.Before(day) {
			continue
		}
		p.Until = day
		out = append(out, p)
	}
	return out
}

// =============================================================================
// SELECTION
// =============================================================================

// Select returns habits ordered by name then id.
func Select(states map[generic.EntityID]Habit, includeArchived bool) []Habit {
	out := make([]Habit, 0, len(states))
	for _, h := range states {
		if includeArchived || !h.Archived() {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b Habit) int {
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
