package recurring

import (
	"cmp"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/tally/generic"
)

// Schedule is the derived state of one recurring schedule.
type Schedule struct {
	ID           generic.EntityID `json:"recurringId"`
	Name         string           `json:"name"`
	Amount       decimal.Decimal  `json:"amount"`
	Cadence      Cadence          `json:"cadence"`
	NextDueAt    time.Time        `json:"nextDueAt"`
	CategoryID   string           `json:"categoryId,omitempty"`
	EnvelopeID   string           `json:"envelopeId,omitempty"`
	AccountID    string           `json:"accountId,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	LastPostedAt *time.Time       `json:"lastPostedAt,omitempty"`
	CanceledAt   *time.Time       `json:"canceledAt,omitempty"`
}

// Active reports whether the schedule has not been canceled.
func (s Schedule) Active() bool { return s.CanceledAt == nil }

// =============================================================================
// PROJECTOR
// =============================================================================

// Projector folds recurring events into schedules.
type Projector struct {
	Logger zerolog.Logger
}

// Project folds events (any order) into the state of every schedule.
// Events that are not recurring events or cannot be decoded are skipped.
func (p Projector) Project(events []generic.Event) map[generic.EntityID]Schedule {
	return generic.Fold(events, make(map[generic.EntityID]Schedule), func(states map[generic.EntityID]Schedule, evt generic.Event) map[generic.EntityID]Schedule {
		payload, err := Decode(evt)
		if err != nil {
			p.Logger.Warn().Err(err).Str("event_id", string(evt.ID)).Msg("skipping undecodable recurring event")
			return states
		}
		apply(states, evt, payload)
		return states
	})
}

func apply(states map[generic.EntityID]Schedule, evt generic.Event, payload Payload) {
	id := payload.recurringID()
	current, exists := states[id]

	switch pl := payload.(type) {
	case Scheduled:
		next := Schedule{
			ID:         pl.ID,
			Name:       pl.Name,
			Amount:     pl.Amount,
			Cadence:    pl.Cadence,
			NextDueAt:  pl.NextDueAt,
			CategoryID: pl.CategoryID,
			EnvelopeID: pl.EnvelopeID,
			AccountID:  pl.AccountID,
			CreatedAt:  evt.OccurredAt,
			UpdatedAt:  evt.OccurredAt,
		}
		// A repeated genesis replaces the fields but never lifts a cancel.
		if exists {
			next.CanceledAt = current.CanceledAt
			next.LastPostedAt = current.LastPostedAt
		}
		states[id] = next

	case Updated:
		if !exists || !current.Active() {
			return
		}
		if pl.Name != nil {
			current.Name = *pl.Name
		}
		if pl.Amount != nil {
			current.Amount = *pl.Amount
		}
		if pl.Cadence != nil {
			current.Cadence = *pl.Cadence
		}
		if pl.NextDueAt != nil {
			current.NextDueAt = *pl.NextDueAt
		}
		if pl.CategoryID != nil {
			current.CategoryID = *pl.CategoryID
		}
		if pl.EnvelopeID != nil {
			current.EnvelopeID = *pl.EnvelopeID
		}
		if pl.AccountID != nil {
			current.AccountID = *pl.AccountID
		}
		current.UpdatedAt = evt.OccurredAt
		states[id] = current

	case Posted:
		if !exists || !current.Active() {
			return
		}
		posted := pl.PostedAt
		current.LastPostedAt = &posted
		if !pl.NextDueAt.IsZero() {
			current.NextDueAt = pl.NextDueAt
		} else {
			current.NextDueAt = current.Cadence.Next(current.NextDueAt)
		}
		current.UpdatedAt = evt.OccurredAt
		states[id] = current

	case Canceled:
		if !exists || !current.Active() {
			return
		}
		at := evt.OccurredAt
		current.CanceledAt = &at
		states[id] = current
	}
}

// =============================================================================
// SELECTION
// =============================================================================

// Query selects schedules from a projection.
type Query struct {
	IncludeCanceled bool
	Limit           int // 0 = no limit
}

// Select filters, orders soonest-due first (ties by id) and truncates.
func Select(states map[generic.EntityID]Schedule, q Query) []Schedule {
	out := make([]Schedule, 0, len(states))
	for _, s := range states {
		if !q.IncludeCanceled && !s.Active() {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Schedule) int {
		if c := a.NextDueAt.Compare(b.NextDueAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Occurrence is one future due date of a schedule.
type Occurrence struct {
	RecurringID generic.EntityID `json:"recurringId"`
	Name        string           `json:"name"`
	Amount      decimal.Decimal  `json:"amount"`
	DueAt       time.Time        `json:"dueAt"`
}

// MaxOccurrences bounds the due dates one call returns for a schedule.
const MaxOccurrences = 400

// Occurrences expands s into due dates within [from, to], starting at
// NextDueAt. Dates before from are skipped without counting against
// MaxOccurrences. Canceled schedules have none.
func Occurrences(s Schedule, from, to time.Time) []Occurrence {
	if !s.Active() || s.NextDueAt.IsZero() {
		return nil
	}
	due := s.NextDueAt
	for due.Before(from) {
		due = s.Cadence.Next(due)
	}
	var out []Occurrence
	for len(out) < MaxOccurrences && !due.After(to) {
		out = append(out, Occurrence{RecurringID: s.ID, Name: s.Name, Amount: s.Amount, DueAt: due})
		due = s.Cadence.Next(due)
	}
	return out
}
