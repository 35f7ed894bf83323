/*
service.go - Command and query surface of the engine

PURPOSE:
  Service is the only thing callers talk to. Commands validate input,
  fold the addressed entity from the log and append new events through
  the idempotency Guard. Queries fold the log on every call and return a
  fresh read model. Nothing is cached between calls.

COMMAND FLOW:
  1. Guard looks up the idempotency key (repeat -> deduplicated result)
  2. Load: Scan(ForEntity(id, family types)) and Project
  3. Build the event (family command builders validate and check state)
  4. Guard appends the batch atomically

QUERY FLOW:
  1. Validate parameters (day keys, window size, page limit)
  2. Scan the family's event types
  3. Project and select

SEE ALSO:
  - generic/guard.go: Idempotent append
  - params.go: Parameter validation and clamping
  - recurring.go, accounts.go, habits.go: Per-family commands and queries
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/tally/account"
	"github.com/warp/tally/generic"
	"github.com/warp/tally/habit"
	"github.com/warp/tally/recurring"
)

// CommandResult is what every command returns: the affected entity and
// whether the command was answered from the log instead of applied.
type CommandResult struct {
	EntityID     generic.EntityID `json:"entityId"`
	Deduplicated bool             `json:"deduplicated"`
}

// Service composes the log store, the clock and the family projectors.
type Service struct {
	store  generic.LogStore
	clock  generic.Clock
	logger zerolog.Logger
	guard  *generic.Guard

	recurring recurring.Projector
	accounts  account.Projector
	habits    habit.Projector
}

// New returns a Service. A nil clock means the system clock.
func New(store generic.LogStore, clock generic.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	logger = logger.With().Str("component", "engine").Logger()
	return &Service{
		store:     store,
		clock:     clock,
		logger:    logger,
		guard:     generic.NewGuard(store, logger),
		recurring: recurring.Projector{Logger: logger},
		accounts:  account.Projector{Logger: logger},
		habits:    habit.Projector{Location: clock.Location(), Logger: logger},
	}
}

// Clock returns the clock the service windows with.
func (s *Service) Clock() generic.Clock { return s.clock }

func (s *Service) now() time.Time { return s.clock.Now() }

func (s *Service) today() generic.DayKey { return generic.Today(s.clock) }

// apply runs build under the guard. build returns the single event a
// command produces.
func (s *Service) apply(ctx context.Context, key string, build func(ctx context.Context) (generic.Event, error)) (CommandResult, error) {
	res, err := s.guard.Apply(ctx, key, func(ctx context.Context) ([]generic.Event, error) {
		evt, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return []generic.Event{evt}, nil
	})
	if err != nil {
		return CommandResult{}, err
	}
	return CommandResult{EntityID: res.EntityID, Deduplicated: res.Deduplicated()}, nil
}

// scan reads events and wraps store failures.
func (s *Service) scan(ctx context.Context, filter generic.Filter) ([]generic.Event, error) {
	events, err := s.store.Scan(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

// =============================================================================
// AUDIT
// =============================================================================

// EventsQuery lists the raw log, optionally for one entity.
type EventsQuery struct {
	EntityID string
	Limit    int
}

// Events returns stored events in log order (oldest first).
func (s *Service) Events(ctx context.Context, q EventsQuery) ([]generic.Event, error) {
	filter := generic.Filter{Limit: ClampLimit(q.Limit)}
	if q.EntityID != "" {
		filter.EntityIDs = []generic.EntityID{generic.EntityID(q.EntityID)}
	}
	events, err := s.scan(ctx, filter)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []generic.Event{}
	}
	return events, nil
}
