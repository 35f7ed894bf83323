/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP contract. Domain read models that already carry
  json tags (accounts, habits, reports, events) are returned as is; the
  types here cover request bodies and the few responses whose wire shape
  differs from the domain type (epoch-millisecond timestamps).

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

IDEMPOTENCY:
  Every command body may carry idempotencyKey. The Idempotency-Key header
  takes precedence when both are present.

VALIDATION:
  Done by the engine, not here. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tally/generic"
	"github.com/warp/tally/recurring"
)

// =============================================================================
// COMMANDS
// =============================================================================

// CommandRequest is the body of commands with no other input.
type CommandRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
}

type ScheduleRecurringRequest struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	RecurringID    string          `json:"recurringId"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Cadence        string          `json:"cadence"`
	NextDueAt      int64           `json:"nextDueAt"` // epoch ms
	CategoryID     string          `json:"categoryId"`
	EnvelopeID     string          `json:"envelopeId"`
	AccountID      string          `json:"accountId"`
}

type UpdateRecurringRequest struct {
	IdempotencyKey string           `json:"idempotencyKey"`
	Name           *string          `json:"name"`
	Amount         *decimal.Decimal `json:"amount"`
	Cadence        *string          `json:"cadence"`
	NextDueAt      *int64           `json:"nextDueAt"`
	CategoryID     *string          `json:"categoryId"`
	EnvelopeID     *string          `json:"envelopeId"`
	AccountID      *string          `json:"accountId"`
}

type CancelRecurringRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Reason         string `json:"reason"`
}

type OpenAccountRequest struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	AccountID      string          `json:"accountId"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

type RecordTransactionRequest struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	Amount         decimal.Decimal `json:"amount"`
	Memo           string          `json:"memo"`
}

type RenameAccountRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Name           string `json:"name"`
}

type CreateHabitRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	HabitID        string `json:"habitId"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Cadence        string `json:"cadence"`
	CustomDays     []int  `json:"customDays"`
	StartDayKey    string `json:"startDayKey"`
	EndDayKey      string `json:"endDayKey"`
}

type UpdateHabitRequest struct {
	IdempotencyKey  string  `json:"idempotencyKey"`
	Name            *string `json:"name"`
	Cadence         *string `json:"cadence"`
	CustomDays      []int   `json:"customDays"`
	StartDayKey     *string `json:"startDayKey"`
	EndDayKey       *string `json:"endDayKey"`
	EffectiveDayKey string  `json:"effectiveDayKey"`
}

type PauseHabitRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	FromDayKey     string `json:"fromDayKey"`
	UntilDayKey    string `json:"untilDayKey"`
}

type LogHabitRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	DayKey         string `json:"dayKey"`
	Status         string `json:"status"`
	Note           string `json:"note"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ScheduleDTO is a recurring schedule with epoch-millisecond timestamps.
type ScheduleDTO struct {
	RecurringID  string          `json:"recurringId"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Cadence      string          `json:"cadence"`
	NextDueAt    int64           `json:"nextDueAt"`
	CategoryID   string          `json:"categoryId,omitempty"`
	EnvelopeID   string          `json:"envelopeId,omitempty"`
	AccountID    string          `json:"accountId,omitempty"`
	CreatedAt    int64           `json:"createdAt"`
	UpdatedAt    int64           `json:"updatedAt"`
	LastPostedAt *int64          `json:"lastPostedAt,omitempty"`
	CanceledAt   *int64          `json:"canceledAt,omitempty"`
	Canceled     bool            `json:"canceled"`
}

func toScheduleDTO(s recurring.Schedule) ScheduleDTO {
	return ScheduleDTO{
		RecurringID:  string(s.ID),
		Name:         s.Name,
		Amount:       s.Amount,
		Cadence:      string(s.Cadence),
		NextDueAt:    s.NextDueAt.UnixMilli(),
		CategoryID:   s.CategoryID,
		EnvelopeID:   s.EnvelopeID,
		AccountID:    s.AccountID,
		CreatedAt:    s.CreatedAt.UnixMilli(),
		UpdatedAt:    s.UpdatedAt.UnixMilli(),
		LastPostedAt: millisPtr(s.LastPostedAt),
		CanceledAt:   millisPtr(s.CanceledAt),
		Canceled:     !s.Active(),
	}
}

// OccurrenceDTO is one upcoming due date.
type OccurrenceDTO struct {
	RecurringID string          `json:"recurringId"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	DueAt       int64           `json:"dueAt"`
	DueDayKey   generic.DayKey  `json:"dueDayKey"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
