package api

import (
	"net/http"

	"github.com/warp/tally/engine"
)

// ListScenarios returns the loadable demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.Scenarios)
}

// LoadScenario seeds one scenario (all of them when scenarioId is empty).
// Loading twice is a no-op because seeded commands use fixed keys.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := engine.Seed(r.Context(), h.Service, req.ScenarioID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.Logger.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenarioId": req.ScenarioID})
}
