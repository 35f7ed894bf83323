/*
Package recurring projects recurring payment schedules from the event log.

PURPOSE:
  A recurring schedule (rent, a subscription, a salary) is never stored.
  Its current amount, cadence and next due date are the fold of:

    recurringScheduled             genesis, mints recurringId
    recurringTransactionUpdated    partial update (only fields present)
    recurringTransactionPosted     an occurrence was paid; nextDueAt advances
    recurringTransactionCanceled   terminal; the entry stays, marked

  The shorter tags recurringUpdated / recurringCanceled written by older
  clients decode to the same payloads.

SEE ALSO:
  - decode.go: Lenient payload decoding
  - projector.go: Fold and selection
  - cadence.go: Calendar arithmetic for due dates
*/
package recurring

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/tally/generic"
)

const (
	TypeScheduled generic.EventType = "recurringScheduled"
	TypeUpdated   generic.EventType = "recurringTransactionUpdated"
	TypePosted    generic.EventType = "recurringTransactionPosted"
	TypeCanceled  generic.EventType = "recurringTransactionCanceled"

	// Legacy tags.
	TypeUpdatedLegacy  generic.EventType = "recurringUpdated"
	TypeCanceledLegacy generic.EventType = "recurringCanceled"
)

// Types lists every tag of the family, for scans.
var Types = []generic.EventType{
	TypeScheduled, TypeUpdated, TypePosted, TypeCanceled,
	TypeUpdatedLegacy, TypeCanceledLegacy,
}

// Kind names the family in errors.
const Kind = "recurring"

// Payload is the decoded body of a recurring event. The set of
// implementations is closed: Scheduled, Updated, Posted, Canceled.
type Payload interface {
	recurringID() generic.EntityID
}

type Scheduled struct {
	ID         generic.EntityID
	Name       string
	Amount     decimal.Decimal
	Cadence    Cadence
	NextDueAt  time.Time
	CategoryID string
	EnvelopeID string
	AccountID  string
}

// Updated carries only the fields the writer set.
type Updated struct {
	ID         generic.EntityID
	Name       *string
	Amount     *decimal.Decimal
	Cadence    *Cadence
	NextDueAt  *time.Time
	CategoryID *string
	EnvelopeID *string
	AccountID  *string
}

type Posted struct {
	ID        generic.EntityID
	PostedAt  time.Time
	NextDueAt time.Time
}

type Canceled struct {
	ID     generic.EntityID
	Reason string
}

func (p Scheduled) recurringID() generic.EntityID { return p.ID }
func (p Updated) recurringID() generic.EntityID   { return p.ID }
func (p Posted) recurringID() generic.EntityID    { return p.ID }
func (p Canceled) recurringID() generic.EntityID  { return p.ID }

// =============================================================================
// WIRE SHAPES - What commands write
// =============================================================================

type scheduledJSON struct {
	RecurringID string          `json:"recurringId"`
	Name        string          `json:"name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Cadence     Cadence         `json:"cadence"`
	NextDueAt   int64           `json:"nextDueAt"`
	CategoryID  string          `json:"categoryId,omitempty"`
	EnvelopeID  string          `json:"envelopeId,omitempty"`
	AccountID   string          `json:"accountId,omitempty"`
}

type updatedJSON struct {
	RecurringID string           `json:"recurringId"`
	Name        *string          `json:"name,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Cadence     *Cadence         `json:"cadence,omitempty"`
	NextDueAt   *int64           `json:"nextDueAt,omitempty"`
	CategoryID  *string          `json:"categoryId,omitempty"`
	EnvelopeID  *string          `json:"envelopeId,omitempty"`
	AccountID   *string          `json:"accountId,omitempty"`
}

type postedJSON struct {
	RecurringID string `json:"recurringId"`
	PostedAt    int64  `json:"postedAt"`
	NextDueAt   int64  `json:"nextDueAt"`
}

type canceledJSON struct {
	RecurringID string `json:"recurringId"`
	Reason      string `json:"reason,omitempty"`
}
