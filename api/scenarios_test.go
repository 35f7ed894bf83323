package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tally/account"
	"github.com/warp/tally/engine"
	"github.com/warp/tally/generic"
)

func TestScenarios_List(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := call(t, router, "GET", "/api/scenarios", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]engine.Scenario](t, rec)
	require.Len(t, got, len(engine.Scenarios))
	assert.Equal(t, "budget", got[0].ID)
}

func TestScenarios_LoadTwiceIsNoOp(t *testing.T) {
	router, _ := setupTestRouter(t)

	// GIVEN: The budget scenario loaded once
	rec := call(t, router, "POST", "/api/scenarios/load", map[string]any{"scenarioId": "budget"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[[]generic.Event](t, call(t, router, "GET", "/api/events?limit=500", nil, ""))

	// WHEN: Loaded again
	rec = call(t, router, "POST", "/api/scenarios/load", map[string]any{"scenarioId": "budget"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Nothing new was appended
	second := decode[[]generic.Event](t, call(t, router, "GET", "/api/events?limit=500", nil, ""))
	assert.Equal(t, len(first), len(second))

	accounts := decode[[]account.Account](t, call(t, router, "GET", "/api/accounts", nil, ""))
	require.Len(t, accounts, 2)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "4052.05", accounts[0].Balance.StringFixed(2))

	bills := decode[[]ScheduleDTO](t, call(t, router, "GET", "/api/recurring", nil, ""))
	assert.Len(t, bills, 3)
}

func TestScenarios_LoadAllAndUnknown(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := call(t, router, "POST", "/api/scenarios/load", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]json.RawMessage](t, call(t, router, "GET", "/api/habits", nil, "")), 3)

	rec = call(t, router, "POST", "/api/scenarios/load", map[string]any{"scenarioId": "payroll"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "scenario", decode[ErrorResponse](t, rec).Field)
}
