/*
Package habit projects habits and tasks from the event log and scores how
consistently they are kept.

EVENTS:
  habitCreated    genesis, mints habitId, sets the first cadence rule
  habitUpdated    partial update; a cadence change starts a new rule
                  version effective from effectiveDayKey
  habitPaused     [fromDayKey, untilDayKey) excluded from scheduling
  habitResumed    ends any pause running on dayKey
  habitLogged     terminal status for one (habit, day); last write wins
  habitArchived   terminal; nothing is scheduled from dayKey on

CADENCE HISTORY:
  "Was this day scheduled" is answered with the rule in effect on that
  day, not the current rule. Editing a cadence never rewrites history.

SEE ALSO:
  - cadence.go: Rule and Evaluate
  - consistency.go: Ratios, streaks and trend
*/
package habit

import (
	"fmt"
	"strings"

	"github.com/warp/tally/generic"
)

const (
	TypeCreated  generic.EventType = "habitCreated"
	TypeUpdated  generic.EventType = "habitUpdated"
	TypePaused   generic.EventType = "habitPaused"
	TypeResumed  generic.EventType = "habitResumed"
	TypeLogged   generic.EventType = "habitLogged"
	TypeArchived generic.EventType = "habitArchived"
)

var Types = []generic.EventType{TypeCreated, TypeUpdated, TypePaused, TypeResumed, TypeLogged, TypeArchived}

const Kind = "habit"

// Status is the terminal outcome of a scheduled day.
type Status string

const (
	Completed Status = "completed"
	Skipped   Status = "skipped"
	Snoozed   Status = "snoozed"
	Missed    Status = "missed"
	Relapsed  Status = "relapsed"

	// Pending is never logged; it marks today while it is still open.
	Pending Status = "pending"
)

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case Completed, Skipped, Snoozed, Missed, Relapsed:
		return st, true
	}
	return "", false
}

// Score is the heatmap credit of a status.
func (s Status) Score() float64 {
	switch s {
	case Completed:
		return 1
	case Snoozed:
		return 0.5
	default:
		return 0
	}
}

// =============================================================================
// PAYLOADS
// =============================================================================

type Payload interface{ habitID() generic.EntityID }

type Created struct {
	ID    generic.EntityID
	Name  string
	Kind  string
	Rule  Rule
	Start generic.DayKey
	End   generic.DayKey
}

type Updated struct {
	ID        generic.EntityID
	Name      *string
	Rule      *Rule
	Start     *generic.DayKey
	End       *generic.DayKey
	Effective generic.DayKey // zero = day of OccurredAt
}

type Paused struct {
	ID    generic.EntityID
	From  generic.DayKey // zero = day of OccurredAt
	Until generic.DayKey
}

type Resumed struct {
	ID  generic.EntityID
	Day generic.DayKey
}

type Logged struct {
	ID     generic.EntityID
	Day    generic.DayKey
	Status Status
	Note   string
}

type Archived struct {
	ID  generic.EntityID
	Day generic.DayKey
}

func (p Created) habitID() generic.EntityID  { return p.ID }
func (p Updated) habitID() generic.EntityID  { return p.ID }
func (p Paused) habitID() generic.EntityID   { return p.ID }
func (p Resumed) habitID() generic.EntityID  { return p.ID }
func (p Logged) habitID() generic.EntityID   { return p.ID }
func (p Archived) habitID() generic.EntityID { return p.ID }

// Decode reads a habit event. A missing cadence on genesis falls back to
// DefaultRule; a log entry without a valid day or status is an error.
func Decode(evt generic.Event) (Payload, error) {
	f, err := generic.PayloadFields(evt)
	if err != nil {
		return nil, err
	}
	id := f.ID("habitId")
	if id == "" {
		id = evt.EntityID
	}
	if id == "" {
		return nil, decodeErr(evt, "missing habitId")
	}

	switch evt.Type {
	case TypeCreated:
		p := Created{ID: id, Name: f.StringOr("name", ""), Kind: f.StringOr("kind", "habit"), Rule: DefaultRule}
		if r, ok := decodeRule(f, "cadence"); ok {
			p.Rule = r
		}
		p.Start, _ = f.DayKey("startDayKey")
		p.End, _ = f.DayKey("endDayKey")
		return p, nil

	case TypeUpdated:
		p := Updated{ID: id}
		if s, ok := f.String("name"); ok {
			p.Name = &s
		}
		if r, ok := decodeRule(f, "cadence"); ok {
			p.Rule = &r
		}
		if f.Has("startDayKey") {
			k, _ := f.DayKey("startDayKey")
			p.Start = &k
		}
		if f.Has("endDayKey") {
			k, _ := f.DayKey("endDayKey")
			p.End = &k
		}
		p.Effective, _ = f.DayKey("effectiveDayKey")
		return p, nil

	case TypePaused:
		p := Paused{ID: id}
		p.From, _ = f.DayKey("fromDayKey")
		p.Until, _ = f.DayKey("untilDayKey")
		return p, nil

	case TypeResumed:
		p := Resumed{ID: id}
		p.Day, _ = f.DayKey("dayKey")
		return p, nil

	case TypeLogged:
		day, ok := f.DayKey("dayKey")
		if !ok {
			return nil, decodeErr(evt, "missing or malformed dayKey")
		}
		st, ok := ParseStatus(f.StringOr("status", ""))
		if !ok {
			return nil, decodeErr(evt, "unknown status")
		}
		return Logged{ID: id, Day: day, Status: st, Note: f.StringOr("note", "")}, nil

	case TypeArchived:
		p := Archived{ID: id}
		p.Day, _ = f.DayKey("dayKey")
		return p, nil
	}
	return nil, decodeErr(evt, "not a habit event")
}

func decodeErr(evt generic.Event, msg string) error {
	return &generic.DecodeError{EventID: evt.ID, Type: evt.Type, Err: fmt.Errorf("%s", msg)}
}
