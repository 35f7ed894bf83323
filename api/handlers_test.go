/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Recurring schedule commands and listing over HTTP
- Idempotency-Key handling (header and body)
- Error status mapping (400, 404, 409)
- Habit commands and consistency reports
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tally/engine"
	"github.com/warp/tally/generic"
	"github.com/warp/tally/habit"
	"github.com/warp/tally/store/sqlite"
)

// Wednesday 2025-03-12, 10:00 UTC.
var now = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func setupTestRouter(t *testing.T) (*chi.Mux, *Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := engine.New(store, generic.FixedClock{At: now}, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())
	return NewRouter(h, []string{"http://localhost:5173"}), h
}

// call sends body (marshaled unless it is already a string) with an
// optional Idempotency-Key header.
func call(t *testing.T, router http.Handler, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	switch b := body.(type) {
	case nil:
	case string:
		payload = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		payload = string(raw)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ms(t time.Time) int64 { return t.UnixMilli() }

// =============================================================================
// RECURRING
// =============================================================================

func TestRecurring_ScheduleUpdateList(t *testing.T) {
	router, _ := setupTestRouter(t)
	t0 := now.AddDate(0, 0, 20)
	t1 := now.AddDate(0, 0, 24)

	// GIVEN: r1 scheduled for 1000 monthly
	rec := call(t, router, "POST", "/api/recurring", map[string]any{
		"recurringId": "r1", "name": "Rent", "amount": 1000, "cadence": "monthly", "nextDueAt": ms(t0),
	}, "k1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[engine.CommandResult](t, rec)
	assert.Equal(t, generic.EntityID("r1"), res.EntityID)
	assert.False(t, res.Deduplicated)

	// WHEN: Only nextDueAt is patched
	rec = call(t, router, "PATCH", "/api/recurring/r1", map[string]any{"nextDueAt": ms(t1)}, "k2")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: The listing shows one schedule with the new due date
	rec = call(t, router, "GET", "/api/recurring?limit=10", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScheduleDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, ms(t1), list[0].NextDueAt)
	assert.Equal(t, "1000", list[0].Amount.String())
	assert.False(t, list[0].Canceled)
}

func TestRecurring_IdempotencyKey(t *testing.T) {
	router, _ := setupTestRouter(t)
	body := map[string]any{"name": "Gym", "amount": "39.99", "cadence": "monthly", "nextDueAt": ms(now), "idempotencyKey": "body-key"}
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("recurring.schedule", outcomeDeduplicated))

	first := call(t, router, "POST", "/api/recurring", body, "")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := call(t, router, "POST", "/api/recurring", body, "")
	require.Equal(t, http.StatusOK, second.Code)

	a := decode[engine.CommandResult](t, first)
	b := decode[engine.CommandResult](t, second)
	assert.Equal(t, a.EntityID, b.EntityID)
	assert.True(t, b.Deduplicated)
	assert.Equal(t, before+1, testutil.ToFloat64(commandsTotal.WithLabelValues("recurring.schedule", outcomeDeduplicated)))

	// The header wins over the body, so this is a new command.
	third := call(t, router, "POST", "/api/recurring", body, "header-key")
	assert.Equal(t, http.StatusCreated, third.Code)

	rec := call(t, router, "GET", "/api/events", nil, "")
	assert.Len(t, decode[[]generic.Event](t, rec), 2)
}

func TestRecurring_ErrorMapping(t *testing.T) {
	router, _ := setupTestRouter(t)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/recurring", map[string]any{
		"recurringId": "r1", "name": "Rent", "amount": 1000, "cadence": "monthly", "nextDueAt": ms(now),
	}, "k1").Code)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/recurring/r1/cancel", map[string]any{"reason": "moved"}, "k2").Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		key    string
		status int
		field  string
	}{
		{"missing key", "POST", "/api/recurring/r1/post", nil, "", http.StatusBadRequest, "idempotencyKey"},
		{"bad cadence", "POST", "/api/recurring", map[string]any{"name": "x", "amount": 1, "cadence": "hourly", "nextDueAt": ms(now)}, "k3", http.StatusBadRequest, "cadence"},
		{"malformed body", "POST", "/api/recurring", `{"name":`, "k4", http.StatusBadRequest, ""},
		{"unknown schedule", "POST", "/api/recurring/ghost/post", nil, "k5", http.StatusNotFound, ""},
		{"canceled schedule", "PATCH", "/api/recurring/r1", map[string]any{"amount": 5}, "k6", http.StatusConflict, ""},
		{"bad limit", "GET", "/api/recurring?limit=ten", nil, "", http.StatusBadRequest, ""},
		{"negative horizon", "GET", "/api/recurring/upcoming?days=-1", nil, "", http.StatusBadRequest, "days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, router, tt.method, tt.path, tt.body, tt.key)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}

	rec := call(t, router, "GET", "/api/recurring?includeCanceled=true", nil, "")
	list := decode[[]ScheduleDTO](t, rec)
	require.Len(t, list, 1)
	assert.True(t, list[0].Canceled)
	assert.NotNil(t, list[0].CanceledAt)
}

func TestRecurring_Upcoming(t *testing.T) {
	router, _ := setupTestRouter(t)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/recurring", map[string]any{
		"recurringId": "gym", "name": "Gym", "amount": 40, "cadence": "weekly", "nextDueAt": ms(now.AddDate(0, 0, 1)),
	}, "k1").Code)

	rec := call(t, router, "GET", "/api/recurring/upcoming?days=14", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]OccurrenceDTO](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, generic.MustDayKey("2025-03-13"), got[0].DueDayKey)
	assert.Equal(t, generic.MustDayKey("2025-03-20"), got[1].DueDayKey)
}

func TestRecurring_PostAdvances(t *testing.T) {
	router, _ := setupTestRouter(t)
	due := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/recurring", map[string]any{
		"recurringId": "r1", "name": "Rent", "amount": 1000, "cadence": "monthly", "nextDueAt": ms(due),
	}, "k1").Code)

	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/recurring/r1/post", map[string]any{"idempotencyKey": "k2"}, "").Code)

	list := decode[[]ScheduleDTO](t, call(t, router, "GET", "/api/recurring", nil, ""))
	require.Len(t, list, 1)
	assert.Equal(t, ms(time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)), list[0].NextDueAt)
	require.NotNil(t, list[0].LastPostedAt)
	assert.Equal(t, ms(now), *list[0].LastPostedAt)
}

// =============================================================================
// HABITS
// =============================================================================

func TestHabits_LogAndScore(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := call(t, router, "POST", "/api/habits", map[string]any{
		"habitId": "read", "name": "Read", "cadence": "daily", "startDayKey": "2025-03-09",
	}, "create")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for i, st := range []habit.Status{habit.Completed, habit.Completed, habit.Missed, habit.Completed} {
		day := generic.MustDayKey("2025-03-09").AddDays(i).String()
		rec := call(t, router, "POST", "/api/habits/read/logs", map[string]any{"dayKey": day, "status": st}, "log-"+day)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = call(t, router, "GET", "/api/habits/read/consistency?windowDays=7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[habit.Report](t, rec)
	assert.Equal(t, 1, report.CurrentStreak)
	assert.Equal(t, 2, report.BestStreak)
	assert.Equal(t, 75, report.ConsistencyPct)
	assert.Len(t, report.Trend, 7)

	rec = call(t, router, "GET", "/api/habits/read/consistency", nil, "")
	assert.Equal(t, engine.DefaultWindow, decode[habit.Report](t, rec).WindowDays)

	rec = call(t, router, "GET", "/api/habits/overview?windowDays=7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]habit.Report](t, rec), 1)
}

func TestHabits_ListForToday(t *testing.T) {
	router, _ := setupTestRouter(t)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/habits", map[string]any{
		"habitId": "plants", "name": "Water plants", "kind": "task", "cadence": "custom", "customDays": []int{3},
	}, "create").Code)

	rec := call(t, router, "GET", "/api/habits", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []struct {
		HabitID   string          `json:"habitId"`
		Kind      string          `json:"kind"`
		Scheduled bool            `json:"scheduled"`
		Status    string          `json:"status"`
		Cadence   json.RawMessage `json:"cadence"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "task", views[0].Kind)
	assert.True(t, views[0].Scheduled)
	assert.Equal(t, "pending", views[0].Status)
	assert.JSONEq(t, `{"customDays":[3]}`, string(views[0].Cadence))
}

func TestHabits_Errors(t *testing.T) {
	router, _ := setupTestRouter(t)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/habits", map[string]any{"habitId": "h1", "name": "Run", "cadence": "weekdays"}, "c1").Code)
	require.Equal(t, http.StatusCreated, call(t, router, "POST", "/api/habits/h1/archive", nil, "a1").Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"future day", "POST", "/api/habits/h1/logs", map[string]any{"dayKey": "2025-03-13", "status": "completed"}, http.StatusBadRequest},
		{"archived", "POST", "/api/habits/h1/pause", nil, http.StatusConflict},
		{"unknown habit", "POST", "/api/habits/nope/resume", nil, http.StatusNotFound},
		{"duplicate id", "POST", "/api/habits", map[string]any{"habitId": "h1", "name": "Run", "cadence": "daily"}, http.StatusBadRequest},
		{"bad window", "GET", "/api/habits/h1/consistency?windowDays=0", nil, http.StatusBadRequest},
		{"bad asOf", "GET", "/api/habits/overview?asOfDayKey=03-12-2025", nil, http.StatusBadRequest},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, router, tt.method, tt.path, tt.body, "err-"+string(rune('a'+i)))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestRouter_HealthAndMetrics(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := call(t, router, "GET", "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	call(t, router, "GET", "/api/accounts", nil, "")
	rec = call(t, router, "GET", "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tally_http_request_duration_seconds")
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest("OPTIONS", "/api/habits", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", IdempotencyHeader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
