package generic

import "time"

// Clock supplies the current instant and the user's local zone.
// It is only consulted for windowing and stamping OccurredAt; read models
// never store it.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock.
type SystemClock struct {
	Loc *time.Location
}

func (c SystemClock) Now() time.Time { return time.Now().In(c.Location()) }

func (c SystemClock) Location() *time.Location {
	if c.Loc == nil {
		return time.Local
	}
	return c.Loc
}

// FixedClock always returns At. Used by tests and deterministic replays.
type FixedClock struct {
	At  time.Time
	Loc *time.Location
}

func (c FixedClock) Now() time.Time { return c.At.In(c.Location()) }

func (c FixedClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// Today returns the current local day of the clock.
func Today(c Clock) DayKey { return DayKeyOf(c.Now(), c.Location()) }
