package recurring

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tally/generic"
)

// =============================================================================
// COMMAND INPUTS - Validated before any event is built
// =============================================================================

// ScheduleInput creates a schedule. RecurringID is minted when empty.
type ScheduleInput struct {
	RecurringID string
	Name        string
	Amount      decimal.Decimal
	Cadence     string
	NextDueAt   time.Time
	CategoryID  string
	EnvelopeID  string
	AccountID   string
}

func (in ScheduleInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return generic.NewValidationError("name", "must not be empty")
	}
	if !in.Amount.IsPositive() {
		return generic.NewValidationError("amount", "must be positive")
	}
	if _, ok := ParseCadence(in.Cadence); !ok {
		return generic.NewValidationError("cadence", "unsupported cadence %q", in.Cadence)
	}
	if in.NextDueAt.IsZero() {
		return generic.NewValidationError("nextDueAt", "is required")
	}
	return nil
}

// NewScheduledEvent builds the genesis event. The caller checks that the id
// is not already taken.
func NewScheduledEvent(in ScheduleInput, at time.Time) (generic.Event, error) {
	if err := in.Validate(); err != nil {
		return generic.Event{}, err
	}
	id := generic.EntityID(strings.TrimSpace(in.RecurringID))
	if id == "" {
		id = generic.NewEntityID()
	}
	cadence, _ := ParseCadence(in.Cadence)
	return generic.NewEvent(TypeScheduled, id, scheduledJSON{
		RecurringID: string(id),
		Name:        strings.TrimSpace(in.Name),
		Amount:      in.Amount,
		Cadence:     cadence,
		NextDueAt:   in.NextDueAt.UnixMilli(),
		CategoryID:  in.CategoryID,
		EnvelopeID:  in.EnvelopeID,
		AccountID:   in.AccountID,
	}, at)
}

// UpdateInput changes only the non-nil fields.
type UpdateInput struct {
	Name       *string
	Amount     *decimal.Decimal
	Cadence    *string
	NextDueAt  *time.Time
	CategoryID *string
	EnvelopeID *string
	AccountID  *string
}

func (in UpdateInput) empty() bool {
	return in.Name == nil && in.Amount == nil && in.Cadence == nil && in.NextDueAt == nil &&
		in.CategoryID == nil && in.EnvelopeID == nil && in.AccountID == nil
}

func (in UpdateInput) Validate() error {
	if in.empty() {
		return generic.NewValidationError("update", "no fields to change")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return generic.NewValidationError("name", "must not be empty")
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return generic.NewValidationError("amount", "must be positive")
	}
	if in.Cadence != nil {
		if _, ok := ParseCadence(*in.Cadence); !ok {
			return generic.NewValidationError("cadence", "unsupported cadence %q", *in.Cadence)
		}
	}
	if in.NextDueAt != nil && in.NextDueAt.IsZero() {
		return generic.NewValidationError("nextDueAt", "must be a valid time")
	}
	return nil
}

// NewUpdatedEvent builds a partial update for an existing, active schedule.
func NewUpdatedEvent(current *Schedule, id generic.EntityID, in UpdateInput, at time.Time) (generic.Event, error) {
	if err := requireActive(current, id); err != nil {
		return generic.Event{}, err
	}
	if err := in.Validate(); err != nil {
		return generic.Event{}, err
	}
	w := updatedJSON{
		RecurringID: string(id),
		Amount:      in.Amount,
		CategoryID:  in.CategoryID,
		EnvelopeID:  in.EnvelopeID,
		AccountID:   in.AccountID,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		w.Name = &name
	}
	if in.Cadence != nil {
		c, _ := ParseCadence(*in.Cadence)
		w.Cadence = &c
	}
	if in.NextDueAt != nil {
		ms := in.NextDueAt.UnixMilli()
		w.NextDueAt = &ms
	}
	return generic.NewEvent(TypeUpdated, id, w, at)
}

// NewPostedEvent records that the current occurrence was paid and advances
// the due date by one cadence period.
func NewPostedEvent(current *Schedule, id generic.EntityID, at time.Time) (generic.Event, error) {
	if err := requireActive(current, id); err != nil {
		return generic.Event{}, err
	}
	return generic.NewEvent(TypePosted, id, postedJSON{
		RecurringID: string(id),
		PostedAt:    at.UnixMilli(),
		NextDueAt:   current.Cadence.Next(current.NextDueAt).UnixMilli(),
	}, at)
}

// NewCanceledEvent terminates a schedule.
func NewCanceledEvent(current *Schedule, id generic.EntityID, reason string, at time.Time) (generic.Event, error) {
	if err := requireActive(current, id); err != nil {
		return generic.Event{}, err
	}
	return generic.NewEvent(TypeCanceled, id, canceledJSON{RecurringID: string(id), Reason: reason}, at)
}

func requireActive(current *Schedule, id generic.EntityID) error {
	if current == nil {
		return &generic.NotFoundError{Kind: Kind, ID: id}
	}
	if !current.Active() {
		return &generic.TerminalError{Kind: Kind, ID: id, At: *current.CanceledAt}
	}
	return nil
}
