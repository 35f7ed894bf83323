package generic

import (
	"fmt"
	"time"
)

// DayKeyFormat is the canonical YYYY-MM-DD layout of a day key.
const DayKeyFormat = "2006-01-02"

// =============================================================================
// DAY KEY - Local calendar date, the unit of scheduling and logging
// =============================================================================

// DayKey is a calendar date with no time-of-day and no zone.
// It is always derived from the user's local calendar, never from a raw
// epoch, so a day means the same thing for every computation in a session.
// The zero value is "no day".
type DayKey struct {
	y int
	m time.Month
	d int
}

// NewDayKey returns a normalized day key (2025-02-30 becomes 2025-03-02).
func NewDayKey(year int, month time.Month, day int) DayKey {
	k := DayKey{year, month, day}
	k.y, k.m, k.d = k.time().Date()
	return k
}

// ParseDayKey parses a strict YYYY-MM-DD string.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(DayKeyFormat, s)
	if err != nil {
		return DayKey{}, fmt.Errorf("day key %q: expected YYYY-MM-DD", s)
	}
	return NewDayKey(t.Date()), nil
}

// MustDayKey parses s and panics on failure. Intended for tests and seeds.
func MustDayKey(s string) DayKey {
	k, err := ParseDayKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

// DayKeyOf returns the calendar day of t in loc.
func DayKeyOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	return NewDayKey(t.In(loc).Date())
}

// time is the canonical representation of the day (midnight UTC).
// UTC has no DST so day arithmetic on it is exact.
func (k DayKey) time() time.Time { return time.Date(k.y, k.m, k.d, 0, 0, 0, 0, time.UTC) }

// Comparison
func (k DayKey) Before(o DayKey) bool { return k.time().Before(o.time()) }
func (k DayKey) After(o DayKey) bool  { return k.time().After(o.time()) }
func (k DayKey) Equal(o DayKey) bool  { return k == o }
func (k DayKey) IsZero() bool         { return k == DayKey{} }

// Compare returns -1, 0 or +1.
func (k DayKey) Compare(o DayKey) int {
	switch {
	case k.Before(o):
		return -1
	case k.After(o):
		return 1
	default:
		return 0
	}
}

// Arithmetic
func (k DayKey) AddDays(n int) DayKey { return NewDayKey(k.y, k.m, k.d+n) }

// Properties
func (k DayKey) Year() int             { return k.y }
func (k DayKey) Month() time.Month     { return k.m }
func (k DayKey) Day() int              { return k.d }
func (k DayKey) Weekday() time.Weekday { return k.time().Weekday() }
func (k DayKey) IsWeekend() bool       { wd := k.Weekday(); return wd == time.Saturday || wd == time.Sunday }

// StartIn returns local midnight of the day in loc.
func (k DayKey) StartIn(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(k.y, k.m, k.d, 0, 0, 0, 0, loc)
}

func (k DayKey) String() string {
	if k.IsZero() {
		return ""
	}
	return k.time().Format(DayKeyFormat)
}

// MarshalText encodes the key as YYYY-MM-DD (empty for the zero key).
func (k DayKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DayKey) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = DayKey{}
		return nil
	}
	parsed, err := ParseDayKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DaysBetween returns the number of days from `from` to `to` (negative if
// `to` is earlier).
func DaysBetween(from, to DayKey) int {
	return int(to.time().Sub(from.time()).Hours() / 24)
}

// MinDay returns the earlier non-zero key.
func MinDay(a, b DayKey) DayKey {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}

// MaxDay returns the later key.
func MaxDay(a, b DayKey) DayKey {
	if a.After(b) {
		return a
	}
	return b
}
