/*
guard.go - Idempotent command application

PURPOSE:
  The Guard is the single write path. It makes client retries (a
  double-tapped "Add", a timeout followed by a resend) safe: a command
  whose idempotency key already produced an event is answered from the
  log instead of being applied again.

FLOW:
  1. Look up the key. Found -> return the recorded entity, Created=false.
  2. Run the command. It validates input and returns the full event batch.
     Any error here means nothing was appended.
  3. Stamp the key on the first event and AppendBatch atomically.
  4. If the store reports a duplicate key, a concurrent retry won the race
     between steps 1 and 3. Re-read and answer as deduplicated.

CRITICAL INVARIANTS:
  - Validation happens before any append
  - A command's events are appended all-or-nothing
  - Only the store's unique key decides who wins a race

SEE ALSO:
  - store.go: LogStore contract (unique idempotency key)
  - engine/: Commands built on top of the Guard
*/
package generic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Command validates its input and returns the events to append.
// It must not write to the store itself.
type Command func(ctx context.Context) ([]Event, error)

// Result is the outcome of a guarded command.
type Result struct {
	EntityID EntityID
	Created  bool
}

// Deduplicated reports whether the command was answered from the log.
func (r Result) Deduplicated() bool { return !r.Created }

// Guard applies commands at most once per idempotency key.
type Guard struct {
	Store  LogStore
	Logger zerolog.Logger

	// MaxRetries bounds retries on ErrConcurrentModification.
	MaxRetries uint64
}

func NewGuard(store LogStore, logger zerolog.Logger) *Guard {
	return &Guard{Store: store, Logger: logger, MaxRetries: 5}
}

// Apply runs cmd unless key was already used.
func (g *Guard) Apply(ctx context.Context, key string, cmd Command) (Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, NewValidationError("idempotencyKey", "is required")
	}

	if prior, found, err := g.Store.FindByIdempotencyKey(ctx, key); err != nil {
		return Result{}, fmt.Errorf("lookup idempotency key: %w", err)
	} else if found {
		g.Logger.Debug().Str("idempotency_key", key).Str("entity_id", string(prior.EntityID)).Msg("command deduplicated")
		return Result{EntityID: prior.EntityID}, nil
	}

	events, err := cmd(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(events) == 0 {
		return Result{}, ErrEmptyCommand
	}

	batch := make([]Event, len(events))
	copy(batch, events)
	batch[0].IdempotencyKey = key
	for i := 1; i < len(batch); i++ {
		batch[i].IdempotencyKey = ""
	}

	err = g.appendWithRetry(ctx, batch)
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		prior, found, lookupErr := g.Store.FindByIdempotencyKey(ctx, key)
		if lookupErr != nil {
			return Result{}, fmt.Errorf("lookup idempotency key: %w", lookupErr)
		}
		if found {
			g.Logger.Info().Str("idempotency_key", key).Msg("concurrent retry lost append race")
			return Result{EntityID: prior.EntityID}, nil
		}
		return Result{}, err
	}
	if err != nil {
		return Result{}, err
	}

	g.Logger.Debug().
		Str("idempotency_key", key).
		Str("entity_id", string(batch[0].EntityID)).
		Str("type", string(batch[0].Type)).
		Int("events", len(batch)).
		Msg("command applied")
	return Result{EntityID: batch[0].EntityID, Created: true}, nil
}

func (g *Guard) appendWithRetry(ctx context.Context, batch []Event) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	op := func() error {
		err := g.Store.AppendBatch(ctx, batch)
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, g.MaxRetries), ctx))
}
