/*
handlers.go - HTTP API handlers

PURPOSE:
  Exposes the engine via REST. Handlers parse the request, call one
  engine command or query, and serialize the result. No domain logic
  lives here.

ENDPOINTS:
  Recurring:
    GET    /api/recurring                  List schedules (?limit, ?includeCanceled)
    POST   /api/recurring                  Schedule
    GET    /api/recurring/upcoming         Due occurrences (?days)
    PATCH  /api/recurring/{id}             Partial update
    POST   /api/recurring/{id}/post        Mark current occurrence paid
    POST   /api/recurring/{id}/cancel      Cancel

  Accounts:
    GET    /api/accounts                   List with balances (?includeClosed)
    POST   /api/accounts                   Open
    PATCH  /api/accounts/{id}              Rename
    POST   /api/accounts/{id}/transactions Record a signed amount
    POST   /api/accounts/{id}/close        Close

  Habits:
    GET    /api/habits                     List for a day (?dayKey, ?includeArchived)
    POST   /api/habits                     Create
    GET    /api/habits/overview            Reports for every habit (?asOfDayKey, ?windowDays)
    PATCH  /api/habits/{id}                Partial update
    POST   /api/habits/{id}/pause          Pause
    POST   /api/habits/{id}/resume         Resume
    POST   /api/habits/{id}/archive        Archive
    POST   /api/habits/{id}/logs           Log a day
    GET    /api/habits/{id}/consistency    Report (?asOfDayKey, ?windowDays)

  Audit:
    GET    /api/events                     Raw log (?entityId, ?limit)

COMMAND RESPONSES:
  201 {entityId, deduplicated:false} when events were appended
  200 {entityId, deduplicated:true}  when the idempotency key was seen

ERROR HANDLING:
  - 400: Validation errors, malformed body or parameters
  - 404: Command addressed an entity that does not exist
  - 409: Command addressed a canceled, closed or archived entity
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/tally/account"
	"github.com/warp/tally/engine"
	"github.com/warp/tally/generic"
	"github.com/warp/tally/habit"
	"github.com/warp/tally/recurring"
)

// IdempotencyHeader carries the command's idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	Service *engine.Service
	Logger  zerolog.Logger
}

func NewHandler(svc *engine.Service, logger zerolog.Logger) *Handler {
	return &Handler{Service: svc, Logger: logger.With().Str("component", "api").Logger()}
}

type commandFunc func(ctx context.Context, key string) (engine.CommandResult, error)

// command runs one engine command and writes its result.
func (h *Handler) command(w http.ResponseWriter, r *http.Request, name, bodyKey string, run commandFunc) {
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = bodyKey
	}
	res, err := run(r.Context(), key)
	if err != nil {
		outcome := outcomeFailed
		if generic.IsClientError(err) || generic.IsNotFound(err) {
			outcome = outcomeRejected
		}
		commandsTotal.WithLabelValues(name, outcome).Inc()
		h.writeEngineError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Deduplicated {
		status = http.StatusOK
		commandsTotal.WithLabelValues(name, outcomeDeduplicated).Inc()
	} else {
		commandsTotal.WithLabelValues(name, outcomeCreated).Inc()
	}
	writeJSON(w, status, res)
}

func entityParam(r *http.Request) generic.EntityID {
	return generic.EntityID(chi.URLParam(r, "id"))
}

// =============================================================================
// RECURRING
// =============================================================================

func (h *Handler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	includeCanceled, err := boolParam(r, "includeCanceled")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid includeCanceled", err)
		return
	}
	schedules, err := h.Service.RecurringTransactions(r.Context(), engine.RecurringQuery{Limit: limit, IncludeCanceled: includeCanceled})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = toScheduleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UpcomingRecurring(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid days", err)
		return
	}
	occurrences, err := h.Service.UpcomingRecurring(r.Context(), days)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	loc := h.Service.Clock().Location()
	dtos := make([]OccurrenceDTO, len(occurrences))
	for i, o := range occurrences {
		dtos[i] = OccurrenceDTO{
			RecurringID: string(o.RecurringID),
			Name:        o.Name,
			Amount:      o.Amount,
			DueAt:       o.DueAt.UnixMilli(),
			DueDayKey:   generic.DayKeyOf(o.DueAt, loc),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ScheduleRecurring(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRecurringRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := recurring.ScheduleInput{
		RecurringID: req.RecurringID,
		Name:        req.Name,
		Amount:      req.Amount,
		Cadence:     req.Cadence,
		CategoryID:  req.CategoryID,
		EnvelopeID:  req.EnvelopeID,
		AccountID:   req.AccountID,
	}
	if req.NextDueAt > 0 {
		in.NextDueAt = time.UnixMilli(req.NextDueAt).UTC()
	}
	h.command(w, r, "recurring.schedule", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.ScheduleRecurring(ctx, key, in)
	})
}

func (h *Handler) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req UpdateRecurringRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := recurring.UpdateInput{
		Name:       req.Name,
		Amount:     req.Amount,
		Cadence:    req.Cadence,
		CategoryID: req.CategoryID,
		EnvelopeID: req.EnvelopeID,
		AccountID:  req.AccountID,
	}
	if req.NextDueAt != nil {
		due := time.Time{}
		if *req.NextDueAt > 0 {
			due = time.UnixMilli(*req.NextDueAt).UTC()
		}
		in.NextDueAt = &due
	}
	id := entityParam(r)
	h.command(w, r, "recurring.update", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.UpdateRecurring(ctx, key, id, in)
	})
}

func (h *Handler) PostRecurring(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "recurring.post", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.MarkRecurringPosted(ctx, key, id)
	})
}

func (h *Handler) CancelRecurring(w http.ResponseWriter, r *http.Request) {
	var req CancelRecurringRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "recurring.cancel", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.CancelRecurring(ctx, key, id, req.Reason)
	})
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	includeClosed, err := boolParam(r, "includeClosed")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid includeClosed", err)
		return
	}
	accounts, err := h.Service.Accounts(r.Context(), includeClosed)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := account.OpenInput{AccountID: req.AccountID, Name: req.Name, Kind: req.Kind, OpeningBalance: req.OpeningBalance}
	h.command(w, r, "account.open", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.OpenAccount(ctx, key, in)
	})
}

func (h *Handler) RenameAccount(w http.ResponseWriter, r *http.Request) {
	var req RenameAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "account.rename", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.RenameAccount(ctx, key, id, req.Name)
	})
}

func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	in := account.RecordInput{Amount: req.Amount, Memo: req.Memo}
	h.command(w, r, "account.record", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.RecordTransaction(ctx, key, id, in)
	})
}

func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "account.close", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.CloseAccount(ctx, key, id)
	})
}

// =============================================================================
// HABITS
// =============================================================================

func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	includeArchived, err := boolParam(r, "includeArchived")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid includeArchived", err)
		return
	}
	habits, err := h.Service.Habits(r.Context(), engine.HabitsQuery{
		DayKey:          r.URL.Query().Get("dayKey"),
		IncludeArchived: includeArchived,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *Handler) HabitsOverview(w http.ResponseWriter, r *http.Request) {
	window, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid windowDays", err)
		return
	}
	reports, err := h.Service.HabitsOverview(r.Context(), engine.OverviewQuery{
		AsOfDayKey: r.URL.Query().Get("asOfDayKey"),
		WindowDays: window,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handler) HabitConsistency(w http.ResponseWriter, r *http.Request) {
	window, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid windowDays", err)
		return
	}
	report, err := h.Service.HabitConsistency(r.Context(), engine.ConsistencyQuery{
		HabitID:    chi.URLParam(r, "id"),
		AsOfDayKey: r.URL.Query().Get("asOfDayKey"),
		WindowDays: window,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req CreateHabitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := habit.CreateInput{
		HabitID:     req.HabitID,
		Name:        req.Name,
		Kind:        req.Kind,
		Cadence:     req.Cadence,
		CustomDays:  req.CustomDays,
		StartDayKey: req.StartDayKey,
		EndDayKey:   req.EndDayKey,
	}
	h.command(w, r, "habit.create", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.CreateHabit(ctx, key, in)
	})
}

func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	var req UpdateHabitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := habit.UpdateInput{
		Name:            req.Name,
		Cadence:         req.Cadence,
		CustomDays:      req.CustomDays,
		StartDayKey:     req.StartDayKey,
		EndDayKey:       req.EndDayKey,
		EffectiveDayKey: req.EffectiveDayKey,
	}
	id := entityParam(r)
	h.command(w, r, "habit.update", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.UpdateHabit(ctx, key, id, in)
	})
}

func (h *Handler) PauseHabit(w http.ResponseWriter, r *http.Request) {
	var req PauseHabitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "habit.pause", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.PauseHabit(ctx, key, id, req.FromDayKey, req.UntilDayKey)
	})
}

func (h *Handler) ResumeHabit(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "habit.resume", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.ResumeHabit(ctx, key, id)
	})
}

func (h *Handler) ArchiveHabit(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "habit.archive", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.ArchiveHabit(ctx, key, id)
	})
}

func (h *Handler) LogHabit(w http.ResponseWriter, r *http.Request) {
	var req LogHabitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := entityParam(r)
	h.command(w, r, "habit.log", req.IdempotencyKey, func(ctx context.Context, key string) (engine.CommandResult, error) {
		return h.Service.LogHabit(ctx, key, id, req.DayKey, req.Status, req.Note)
	})
}

// =============================================================================
// AUDIT
// =============================================================================

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	events, err := h.Service.Events(r.Context(), engine.EventsQuery{
		EntityID: r.URL.Query().Get("entityId"),
		Limit:    limit,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *generic.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Field: ve.Field, Details: ve.Message})
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, generic.ErrEntityTerminal):
		writeError(w, http.StatusConflict, "Entity is no longer active", err)
	default:
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// decodeBody reads a JSON body into dst. An empty body is allowed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// windowParam reads windowDays, defaulting to engine.DefaultWindow when absent.
func windowParam(r *http.Request) (int, error) {
	if !r.URL.Query().Has("windowDays") {
		return engine.DefaultWindow, nil
	}
	return intParam(r, "windowDays")
}
