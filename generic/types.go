/*
Package generic provides the core event-sourcing engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for deriving
  current state from an append-only event log. Whether the entity is a
  recurring payment, an account, or a habit, the same engine handles
  event storage, idempotent command application, and chronological folding.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: An immutable log record (type tag + JSON payload)
  - EventType: Discriminated tag; entity families define their own constants
  - EntityID: Stable identifier minted by an entity's genesis event

DESIGN PRINCIPLES:
  1. Immutability: Events are never modified, only superseded by new events
  2. Derivation: No "current state" is stored; everything is a fold
  3. Type Safety: Strong typing for IDs and tags prevents mixing families
  4. Retry Safety: Commands carry an idempotency key recorded on the log

USAGE:
  evt, err := generic.NewEvent(recurring.TypeScheduled, "r1", payload, clock.Now())
  err = store.AppendBatch(ctx, []generic.Event{evt})

SEE ALSO:
  - store.go: Log store interface
  - guard.go: Idempotent command application
  - projection.go: Chronological fold
  - daykey.go: Calendar-day keys used for scheduling
*/
package generic

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type EventID string

// NewEntityID mints a fresh identifier for a genesis event.
func NewEntityID() EntityID { return EntityID(uuid.NewString()) }

// NewEventID mints a fresh event identifier. Stores call this on append
// when the event has none.
func NewEventID() EventID { return EventID(uuid.NewString()) }

// EventType identifies the kind of an event.
// The generic package has NO knowledge of concrete types; entity
// families (recurring, account, habit) declare their own constants.
type EventType string

// =============================================================================
// EVENT - Immutable log record
// =============================================================================

// Event is one immutable entry of the log.
//
// ID and Seq are assigned by the store on append. EntityID is copied from
// the payload when the event is built so stores can index filtered scans.
type Event struct {
	ID             EventID
	Seq            uint64
	Type           EventType
	EntityID       EntityID
	Payload        json.RawMessage
	OccurredAt     time.Time
	IdempotencyKey string
}

// NewEvent builds an event with the payload encoded as JSON.
// OccurredAt is truncated to millisecond precision, the resolution of the
// wire format.
func NewEvent(typ EventType, entityID EntityID, payload any, occurredAt time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{
		Type:       typ,
		EntityID:   entityID,
		Payload:    raw,
		OccurredAt: occurredAt.Truncate(time.Millisecond),
	}, nil
}

// eventJSON is the wire/storage shape of an event.
type eventJSON struct {
	ID             EventID         `json:"id"`
	Seq            uint64          `json:"seq,omitempty"`
	Type           EventType       `json:"type"`
	EntityID       EntityID        `json:"entityId,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	OccurredAt     int64           `json:"occurredAt"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return json.Marshal(eventJSON{
		ID:             e.ID,
		Seq:            e.Seq,
		Type:           e.Type,
		EntityID:       e.EntityID,
		Payload:        payload,
		OccurredAt:     e.OccurredAt.UnixMilli(),
		IdempotencyKey: e.IdempotencyKey,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		ID:             w.ID,
		Seq:            w.Seq,
		Type:           w.Type,
		EntityID:       w.EntityID,
		Payload:        w.Payload,
		OccurredAt:     time.UnixMilli(w.OccurredAt).UTC(),
		IdempotencyKey: w.IdempotencyKey,
	}
	return nil
}
