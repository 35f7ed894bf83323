package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tally/generic"
	"github.com/warp/tally/habit"
)

func createDaily(t *testing.T, svc *Service, id, startDay string) {
	t.Helper()
	_, err := svc.CreateHabit(context.Background(), "create-"+id, habit.CreateInput{
		HabitID:     id,
		Name:        "Habit " + id,
		Cadence:     "daily",
		StartDayKey: startDay,
	})
	require.NoError(t, err)
}

func logDays(t *testing.T, svc *Service, id string, days map[string]habit.Status) {
	t.Helper()
	for day, st := range days {
		_, err := svc.LogHabit(context.Background(), fmt.Sprintf("log-%s-%s", id, day), generic.EntityID(id), day, string(st), "")
		require.NoError(t, err)
	}
}

func TestHabitConsistency_Streaks(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	// GIVEN: completed, completed, missed, completed ending today (03-12)
	createDaily(t, svc, "h1", "2025-03-09")
	logDays(t, svc, "h1", map[string]habit.Status{
		"2025-03-09": habit.Completed,
		"2025-03-10": habit.Completed,
		"2025-03-11": habit.Missed,
		"2025-03-12": habit.Completed,
	})

	// WHEN
	r, err := svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", WindowDays: 7})
	require.NoError(t, err)

	// THEN
	assert.Equal(t, generic.MustDayKey("2025-03-12"), r.AsOf)
	assert.Equal(t, 7, r.WindowDays)
	assert.Equal(t, 1, r.CurrentStreak)
	assert.Equal(t, 2, r.BestStreak)
	assert.Equal(t, 75, r.ConsistencyPct)
}

func TestHabitConsistency_BackfilledLogsCount(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	// GIVEN: A daily habit created today (03-12) without a start day
	createDaily(t, svc, "h1", "")

	// WHEN: The three previous days are backfilled
	logDays(t, svc, "h1", map[string]habit.Status{
		"2025-03-09": habit.Completed,
		"2025-03-10": habit.Completed,
		"2025-03-11": habit.Missed,
		"2025-03-12": habit.Completed,
	})
	r, err := svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", WindowDays: 7})
	require.NoError(t, err)

	// THEN: Scoring reaches back to the earliest log, not the creation day
	assert.Equal(t, 4, r.ScheduledDays)
	assert.Equal(t, 3, r.CompletedDays)
	assert.Equal(t, 1, r.CurrentStreak)
	assert.Equal(t, 2, r.BestStreak)
	assert.Equal(t, 75, r.ConsistencyPct)
	assert.False(t, r.Trend[2].Scheduled, "03-08 precedes every log")
}

func TestHabitConsistency_CadenceChangeIsNotRetroactive(t *testing.T) {
	svc, _, clock := newService(t)
	ctx := context.Background()

	// Daily since Mon 03-03; every day through Tue 03-11 completed.
	createDaily(t, svc, "h1", "2025-03-03")
	logs := map[string]habit.Status{}
	for d := generic.MustDayKey("2025-03-03"); !d.After(generic.MustDayKey("2025-03-11")); d = d.AddDays(1) {
		logs[d.String()] = habit.Completed
	}
	logDays(t, svc, "h1", logs)

	// From today on, weekdays only.
	weekdays := "weekdays"
	_, err := svc.UpdateHabit(ctx, "k-update", "h1", habit.UpdateInput{Cadence: &weekdays})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	r, err := svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", AsOfDayKey: "2025-03-11", WindowDays: 7})
	require.NoError(t, err)

	// The weekend of 03-08/09 was scheduled under the old rule.
	assert.Equal(t, 7, r.ScheduledDays)
	assert.Equal(t, 9, r.CurrentStreak)
}

func TestHabitConsistency_Parameters(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	createDaily(t, svc, "h1", "")

	r, err := svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", WindowDays: 10})
	require.NoError(t, err)
	assert.Equal(t, 30, r.WindowDays, "rounded up to a supported window")
	assert.Len(t, r.Trend, 30)

	r, err = svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", WindowDays: 365})
	require.NoError(t, err)
	assert.Equal(t, 90, r.WindowDays)

	_, err = svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", WindowDays: 0})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", AsOfDayKey: "2025-3-1", WindowDays: 7})
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "asOfDayKey", ve.Field)

	_, err = svc.HabitConsistency(ctx, ConsistencyQuery{WindowDays: 7})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestHabitConsistency_UnknownHabit(t *testing.T) {
	svc, _, _ := newService(t)

	r, err := svc.HabitConsistency(context.Background(), ConsistencyQuery{HabitID: "ghost", WindowDays: 7})

	require.NoError(t, err)
	assert.Equal(t, generic.EntityID("ghost"), r.HabitID)
	assert.Zero(t, r.ScheduledDays)
	assert.Zero(t, r.BestStreak)
	assert.Len(t, r.Trend, 7)
}

func TestHabits_ListingForADay(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	createDaily(t, svc, "a", "")
	_, err := svc.CreateHabit(ctx, "create-b", habit.CreateInput{HabitID: "b", Name: "Habit b", Cadence: "custom", CustomDays: []int{1}})
	require.NoError(t, err)
	createDaily(t, svc, "c", "")
	logDays(t, svc, "c", map[string]habit.Status{"2025-03-12": habit.Skipped})

	views, err := svc.Habits(ctx, HabitsQuery{})
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.True(t, views[0].Scheduled)
	assert.Equal(t, habit.Pending, views[0].Status)
	assert.False(t, views[1].Scheduled, "Mondays only, today is Wednesday")
	assert.Empty(t, views[1].Status)
	assert.Equal(t, habit.Skipped, views[2].Status)

	past, err := svc.Habits(ctx, HabitsQuery{DayKey: "2025-03-11"})
	require.NoError(t, err)
	assert.False(t, past[0].Scheduled, "before creation")
	assert.Empty(t, past[0].Status)

	_, err = svc.Habits(ctx, HabitsQuery{DayKey: "yesterday"})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestHabits_Lifecycle(t *testing.T) {
	svc, mem, clock := newService(t)
	ctx := context.Background()
	createDaily(t, svc, "h1", "2025-03-01")

	_, err := svc.ResumeHabit(ctx, "k1", "h1")
	assert.ErrorIs(t, err, generic.ErrValidation, "not paused")

	_, err = svc.PauseHabit(ctx, "k2", "h1", "", "")
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)
	_, err = svc.ResumeHabit(ctx, "k3", "h1")
	require.NoError(t, err)

	r, err := svc.HabitConsistency(ctx, ConsistencyQuery{HabitID: "h1", AsOfDayKey: "2025-03-13", WindowDays: 7})
	require.NoError(t, err)
	assert.False(t, r.Trend[5].Scheduled, "03-12 paused")
	assert.False(t, r.Trend[6].Scheduled, "03-13 paused")

	_, err = svc.ArchiveHabit(ctx, "k4", "h1")
	require.NoError(t, err)
	_, err = svc.LogHabit(ctx, "k5", "h1", "2025-03-14", "completed", "")
	assert.ErrorIs(t, err, generic.ErrEntityTerminal)

	views, err := svc.Habits(ctx, HabitsQuery{})
	require.NoError(t, err)
	assert.Empty(t, views)
	views, err = svc.Habits(ctx, HabitsQuery{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, views, 1)

	assert.Equal(t, 4, mem.Len())
}

func TestHabitsOverview(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		createDaily(t, svc, id, "2025-03-10")
	}
	logDays(t, svc, "b", map[string]habit.Status{"2025-03-10": habit.Completed, "2025-03-11": habit.Completed})
	_, err := svc.ArchiveHabit(ctx, "archive-c", "c")
	require.NoError(t, err)

	reports, err := svc.HabitsOverview(ctx, OverviewQuery{WindowDays: 7})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, generic.EntityID("a"), reports[0].HabitID)
	assert.Equal(t, generic.EntityID("b"), reports[1].HabitID)
	assert.Equal(t, 100, reports[1].ConsistencyPct)
	assert.Equal(t, 2, reports[1].CurrentStreak)
	assert.Zero(t, reports[0].ConsistencyPct)

	_, err = svc.HabitsOverview(ctx, OverviewQuery{WindowDays: -7})
	assert.ErrorIs(t, err, generic.ErrValidation)
}
