package habit

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/warp/tally/generic"
)

// =============================================================================
// CADENCE RULE
// =============================================================================

type RuleKind string

const (
	EveryDay RuleKind = "daily"
	Weekdays RuleKind = "weekdays"
	Custom   RuleKind = "custom"
)

// Rule says which weekdays a habit is expected on.
// Days is only meaningful for Custom and is kept sorted and unique.
type Rule struct {
	Kind RuleKind
	Days []time.Weekday
}

// DefaultRule is used when a stored event has no usable cadence.
var DefaultRule = Rule{Kind: EveryDay}

// NewCustomRule builds a custom rule from weekday numbers (0=Sunday).
func NewCustomRule(days []int) (Rule, error) {
	if len(days) == 0 {
		return Rule{}, fmt.Errorf("custom cadence needs at least one day")
	}
	wds := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return Rule{}, fmt.Errorf("day %d out of range 0-6", d)
		}
		wds = append(wds, time.Weekday(d))
	}
	slices.Sort(wds)
	return Rule{Kind: Custom, Days: slices.Compact(wds)}, nil
}

// ParseRule builds a rule from its kind name and, for custom, day numbers.
func ParseRule(kind string, days []int) (Rule, error) {
	switch RuleKind(strings.ToLower(strings.TrimSpace(kind))) {
	case EveryDay:
		return Rule{Kind: EveryDay}, nil
	case Weekdays:
		return Rule{Kind: Weekdays}, nil
	case Custom, "":
		if kind == "" && len(days) == 0 {
			return Rule{}, fmt.Errorf("cadence is required")
		}
		return NewCustomRule(days)
	}
	return Rule{}, fmt.Errorf("unsupported cadence %q", kind)
}

// Matches reports whether the weekday of day fits the rule, ignoring
// lifecycle bounds.
func (r Rule) Matches(day generic.DayKey) bool {
	switch r.Kind {
	case EveryDay:
		return true
	case Weekdays:
		return !day.IsWeekend()
	case Custom:
		return slices.Contains(r.Days, day.Weekday())
	}
	return false
}

// MarshalJSON writes "daily", "weekdays" or {"customDays":[...]}.
func (r Rule) MarshalJSON() ([]byte, error) {
	if r.Kind == Custom {
		days := make([]int, len(r.Days))
		for i, d := range r.Days {
			days[i] = int(d)
		}
		return json.Marshal(struct {
			CustomDays []int `json:"customDays"`
		}{days})
	}
	return json.Marshal(string(r.Kind))
}

// decodeRule reads any cadence shape clients have written:
// "daily", "weekdays", {"customDays":[..]} or {"kind":"custom","days":[..]}.
func decodeRule(f generic.Fields, name string) (Rule, bool) {
	if s, ok := f.String(name); ok {
		r, err := ParseRule(s, nil)
		return r, err == nil
	}
	obj, ok := f.Object(name)
	if !ok {
		return Rule{}, false
	}
	if days, ok := obj.Ints("customDays"); ok {
		r, err := NewCustomRule(days)
		return r, err == nil
	}
	days, _ := obj.Ints("days")
	r, err := ParseRule(obj.StringOr("kind", ""), days)
	return r, err == nil
}

// =============================================================================
// LIFECYCLE + EVALUATOR
// =============================================================================

// Pause is a half-open interval [From, Until). A zero Until is open-ended.
type Pause struct {
	From  generic.DayKey `json:"from"`
	Until generic.DayKey `json:"until,omitempty"`
}

// Covers reports whether day falls inside the pause.
func (p Pause) Covers(day generic.DayKey) bool {
	if day.Before(p.From) {
		return false
	}
	return p.Until.IsZero() || day.Before(p.Until)
}

// Lifecycle bounds when a rule applies at all.
type Lifecycle struct {
	Start      generic.DayKey // zero = unbounded
	End        generic.DayKey // inclusive, zero = unbounded
	Pauses     []Pause
	ArchivedOn generic.DayKey // zero = not archived
}

// Evaluate reports whether day is scheduled under rule and life.
// Paused days and days on or after archival are never scheduled.
func Evaluate(rule Rule, day generic.DayKey, life Lifecycle) bool {
	if !life.Start.IsZero() && day.Before(life.Start) {
		return false
	}
	if !life.End.IsZero() && day.After(life.End) {
		return false
	}
	if !life.ArchivedOn.IsZero() && !day.Before(life.ArchivedOn) {
		return false
	}
	for _, p := range life.Pauses {
		if p.Covers(day) {
			return false
		}
	}
	return rule.Matches(day)
}
