package engine

import (
	"strings"

	"github.com/warp/tally/generic"
)

// Supported consistency windows, in days.
var WindowSizes = []int{7, 30, 90}

const (
	DefaultWindow = 30
	DefaultLimit  = 50
	MaxLimit      = 500
)

// ParseDay parses a YYYY-MM-DD parameter. Empty means today.
func ParseDay(field, s string, today generic.DayKey) (generic.DayKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return today, nil
	}
	k, err := generic.ParseDayKey(s)
	if err != nil {
		return generic.DayKey{}, generic.NewValidationError(field, "%v", err)
	}
	return k, nil
}

// ClampWindow rounds n up to the next supported window size, capping at
// the largest. Non-positive sizes are rejected.
func ClampWindow(n int) (int, error) {
	if n <= 0 {
		return 0, generic.NewValidationError("windowDays", "must be positive, got %d", n)
	}
	for _, size := range WindowSizes {
		if n <= size {
			return size, nil
		}
	}
	return WindowSizes[len(WindowSizes)-1], nil
}

// ClampLimit returns DefaultLimit for n <= 0 and caps at MaxLimit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}
