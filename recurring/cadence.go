package recurring

import (
	"strings"
	"time"
)

// Cadence is how often a schedule falls due.
type Cadence string

const (
	Daily     Cadence = "daily"
	Weekly    Cadence = "weekly"
	Biweekly  Cadence = "biweekly"
	Monthly   Cadence = "monthly"
	Quarterly Cadence = "quarterly"
	Yearly    Cadence = "yearly"
)

// DefaultCadence is used when a stored event has no usable cadence.
const DefaultCadence = Monthly

// ParseCadence accepts the canonical names case-insensitively.
func ParseCadence(s string) (Cadence, bool) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return c, true
	}
	return "", false
}

// Next returns the due date one period after t.
// Month-based cadences clamp to the end of shorter months, so a schedule
// due on Jan 31 is next due Feb 28 (29 in leap years), not Mar 3.
func (c Cadence) Next(t time.Time) time.Time {
	switch c {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	case Quarterly:
		return addMonthsClamped(t, 3)
	case Yearly:
		return addMonthsClamped(t, 12)
	default:
		return addMonthsClamped(t, 1)
	}
}

func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
