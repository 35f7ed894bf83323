/*
store.go - Persistence interface for the event log

PURPOSE:
  Defines the boundary between the engine and durable storage. The log
  store handles persistence while maintaining append-only semantics.
  Implementations: SQLite (store/sqlite) and in-memory (generic/store).

APPEND-ONLY CONTRACT:
  - Append(): Single event write
  - AppendBatch(): Atomic multi-event write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  An idempotency key is unique across the whole log. A second write with
  the same key is rejected with ErrDuplicateIdempotencyKey at append time.
  This unique constraint is what makes the Guard's check-then-append safe
  under concurrent retries.

ORDERING:
  Scan returns events ordered by (OccurredAt, Seq). Seq is the insertion
  sequence assigned by the store and breaks ties between events that share
  a millisecond.

SEE ALSO:
  - guard.go: Idempotent command application on top of LogStore
  - store/sqlite/sqlite.go: Production implementation
*/
package generic

import (
	"context"
	"slices"
	"time"
)

// LogStore persists events. APPEND-ONLY. No Update, No Delete. Ever.
type LogStore interface {
	// Append persists one event, assigning ID (if empty) and Seq.
	Append(ctx context.Context, evt Event) error

	// AppendBatch persists events atomically: all or none.
	AppendBatch(ctx context.Context, events []Event) error

	// Scan returns matching events ordered by (OccurredAt, Seq).
	Scan(ctx context.Context, filter Filter) ([]Event, error)

	// FindByIdempotencyKey returns the event recorded with key, if any.
	FindByIdempotencyKey(ctx context.Context, key string) (Event, bool, error)
}

// Filter narrows a scan. Zero fields are unbounded.
type Filter struct {
	EntityIDs []EntityID
	Types     []EventType
	Since     time.Time // inclusive
	Until     time.Time // inclusive
	Limit     int
}

// Matches reports whether evt passes the filter (Limit is not considered).
func (f Filter) Matches(evt Event) bool {
	if len(f.EntityIDs) > 0 && !slices.Contains(f.EntityIDs, evt.EntityID) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, evt.Type) {
		return false
	}
	if !f.Since.IsZero() && evt.OccurredAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && evt.OccurredAt.After(f.Until) {
		return false
	}
	return true
}

// ForEntity returns a filter over one entity's events of the given types.
func ForEntity(id EntityID, types ...EventType) Filter {
	return Filter{EntityIDs: []EntityID{id}, Types: types}
}

// ForTypes returns a filter over all events of the given types.
func ForTypes(types ...EventType) Filter {
	return Filter{Types: types}
}
