package habit

import (
	"math"

	"github.com/warp/tally/generic"
)

// NotScheduled is the trend score of a day excluded from scoring.
const NotScheduled = -1.0

// MaxHistoryDays bounds the best-streak scan.
const MaxHistoryDays = 3660

// TrendPoint is one day of the heatmap.
type TrendPoint struct {
	Day       generic.DayKey `json:"dayKey"`
	Scheduled bool           `json:"scheduled"`
	Status    Status         `json:"status,omitempty"`
	Score     float64        `json:"score"`
}

// Report is the consistency read model of one habit.
type Report struct {
	HabitID        generic.EntityID `json:"habitId"`
	AsOf           generic.DayKey   `json:"asOfDayKey"`
	WindowDays     int              `json:"windowDays"`
	ConsistencyPct int              `json:"consistencyPct"`
	ScheduledDays  int              `json:"scheduledDays"`
	CompletedDays  int              `json:"completedDays"`
	CurrentStreak  int              `json:"currentStreak"`
	BestStreak     int              `json:"bestStreak"`
	Trend          []TrendPoint     `json:"trend"`
}

// dayOutcome classifies one day for ratio and streak accounting.
type dayOutcome int

const (
	unscheduled dayOutcome = iota
	open                   // asOf with nothing logged yet
	done
	notDone
)

func outcome(h Habit, day, asOf generic.DayKey) (dayOutcome, Status) {
	if !h.IsScheduled(day) {
		return unscheduled, ""
	}
	st, logged := h.StatusOn(day)
	switch {
	case !logged && day == asOf:
		return open, Pending
	case !logged:
		return notDone, Missed
	case st == Completed:
		return done, st
	default:
		return notDone, st
	}
}

// Compute scores h over the windowDays ending at asOf.
//
// Scheduled days without a log entry count as missed, except asOf itself,
// which stays open until the day ends. Unscheduled days (outside the
// active range, paused, archived, or not matching the rule in effect that
// day) are excluded from the ratio and never break a streak.
func Compute(h Habit, asOf generic.DayKey, windowDays int) Report {
	window := generic.Window(asOf, windowDays)
	r := Report{
		HabitID:    h.ID,
		AsOf:       asOf,
		WindowDays: window.Len(),
		Trend:      make([]TrendPoint, 0, window.Len()),
	}

	for _, day := range window.Days() {
		kind, st := outcome(h, day, asOf)
		point := TrendPoint{Day: day, Status: st, Score: NotScheduled}
		switch kind {
		case unscheduled:
		case open:
			point.Scheduled = true
		case done, notDone:
			point.Scheduled = true
			point.Score = st.Score()
			r.ScheduledDays++
			if kind == done {
				r.CompletedDays++
			}
		}
		r.Trend = append(r.Trend, point)
	}

	r.ConsistencyPct = Percent(r.CompletedDays, r.ScheduledDays)
	r.CurrentStreak = CurrentStreak(h, asOf)
	r.BestStreak = BestStreak(h, asOf)
	return r
}

// Percent returns round(100*completed/max(scheduled,1)).
func Percent(completed, scheduled int) int {
	return int(math.Round(100 * float64(completed) / float64(max(scheduled, 1))))
}

// historyStart is the first day streak scans look at.
func historyStart(h Habit, asOf generic.DayKey) generic.DayKey {
	return generic.MaxDay(h.FirstDay(), asOf.AddDays(-(MaxHistoryDays - 1)))
}

// CurrentStreak counts completed scheduled days walking back from asOf.
// Unscheduled days are skipped over; the first scheduled day that was not
// completed ends the walk.
func CurrentStreak(h Habit, asOf generic.DayKey) int {
	if h.ID == "" {
		return 0
	}
	first := historyStart(h, asOf)
	streak := 0
	for day := asOf; !day.Before(first); day = day.AddDays(-1) {
		kind, _ := outcome(h, day, asOf)
		switch kind {
		case done:
			streak++
		case notDone:
			return streak
		}
	}
	return streak
}

// BestStreak is the longest run of completed scheduled days over the
// habit's whole history up to asOf, not just the reporting window.
func BestStreak(h Habit, asOf generic.DayKey) int {
	if h.ID == "" {
		return 0
	}
	best, run := 0, 0
	for day := historyStart(h, asOf); !day.After(asOf); day = day.AddDays(1) {
		kind, _ := outcome(h, day, asOf)
		switch kind {
		case done:
			run++
			best = max(best, run)
		case notDone:
			run = 0
		}
	}
	return best
}
