package generic

// =============================================================================
// DAY RANGE - Inclusive window of calendar days
// =============================================================================

// DayRange is an inclusive [Start, End] window of days.
//
// Examples:
//   - Trailing 7-day window ending today: Window(today, 7)
//   - A habit's active range: [startDayKey, endDayKey]
type DayRange struct {
	Start DayKey
	End   DayKey
}

// Window returns the n-day range ending at (and including) asOf.
func Window(asOf DayKey, n int) DayRange {
	if n < 1 {
		n = 1
	}
	return DayRange{Start: asOf.AddDays(-(n - 1)), End: asOf}
}

// Contains reports whether day lies within [Start, End].
func (r DayRange) Contains(day DayKey) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// Len returns the number of days in the range (0 if End precedes Start).
func (r DayRange) Len() int {
	n := DaysBetween(r.Start, r.End) + 1
	if n < 0 {
		return 0
	}
	return n
}

// Days returns every day in the range in increasing order.
func (r DayRange) Days() []DayKey {
	days := make([]DayKey, 0, r.Len())
	for current := r.Start; !current.After(r.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (r DayRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
