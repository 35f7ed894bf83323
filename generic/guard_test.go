package generic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tally/generic"
	"github.com/warp/tally/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var t0 = time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)

func testEvent(t *testing.T, typ generic.EventType, id generic.EntityID, at time.Time) generic.Event {
	t.Helper()
	evt, err := generic.NewEvent(typ, id, map[string]any{"id": string(id)}, at)
	require.NoError(t, err)
	return evt
}

func emit(evts ...generic.Event) generic.Command {
	return func(context.Context) ([]generic.Event, error) { return evts, nil }
}

// racingStore hides the first idempotency lookup, as if a concurrent
// request appended between the Guard's check and its append.
type racingStore struct {
	*store.Memory
	hidden bool
}

func (s *racingStore) FindByIdempotencyKey(ctx context.Context, key string) (generic.Event, bool, error) {
	if !s.hidden {
		s.hidden = true
		return generic.Event{}, false, nil
	}
	return s.Memory.FindByIdempotencyKey(ctx, key)
}

// busyStore fails the first n appends with a retryable error.
type busyStore struct {
	*store.Memory
	mu       sync.Mutex
	failures int
	attempts int
}

func (s *busyStore) AppendBatch(ctx context.Context, events []generic.Event) error {
	s.mu.Lock()
	s.attempts++
	fail := s.attempts <= s.failures
	s.mu.Unlock()
	if fail {
		return generic.ErrConcurrentModification
	}
	return s.Memory.AppendBatch(ctx, events)
}

// =============================================================================
// GUARD TESTS
// =============================================================================

func TestGuard_FirstApply_AppendsAndStampsKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	guard := generic.NewGuard(mem, zerolog.Nop())

	res, err := guard.Apply(ctx, "k-1", emit(testEvent(t, "thingCreated", "e1", t0)))
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.False(t, res.Deduplicated())
	assert.Equal(t, generic.EntityID("e1"), res.EntityID)

	stored, found, err := mem.FindByIdempotencyKey(ctx, "k-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, generic.EventType("thingCreated"), stored.Type)
	assert.NotEmpty(t, stored.ID)
}

func TestGuard_RepeatedKey_IsDeduplicated(t *testing.T) {
	// GIVEN: A command already applied under key "k-1"
	// WHEN: The client retries with the same key
	// THEN: Nothing is appended and the original entity id is returned
	ctx := context.Background()
	mem := store.NewMemory()
	guard := generic.NewGuard(mem, zerolog.Nop())

	first, err := guard.Apply(ctx, "k-1", emit(testEvent(t, "thingCreated", "e1", t0)))
	require.NoError(t, err)

	ran := false
	second, err := guard.Apply(ctx, "k-1", func(context.Context) ([]generic.Event, error) {
		ran = true
		return []generic.Event{testEvent(t, "thingCreated", "e2", t0)}, nil
	})
	require.NoError(t, err)

	assert.False(t, ran, "command must not run for a seen key")
	assert.True(t, second.Deduplicated())
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.Equal(t, 1, mem.Len())
}

func TestGuard_EmptyKey_IsValidationError(t *testing.T) {
	guard := generic.NewGuard(store.NewMemory(), zerolog.Nop())

	_, err := guard.Apply(context.Background(), "  ", emit(testEvent(t, "thingCreated", "e1", t0)))

	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "idempotencyKey", ve.Field)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestGuard_CommandError_AppendsNothing(t *testing.T) {
	mem := store.NewMemory()
	guard := generic.NewGuard(mem, zerolog.Nop())

	_, err := guard.Apply(context.Background(), "k-1", func(context.Context) ([]generic.Event, error) {
		return nil, generic.NewValidationError("name", "must not be empty")
	})

	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, 0, mem.Len())

	// The key was not consumed by the failed attempt.
	res, err := guard.Apply(context.Background(), "k-1", emit(testEvent(t, "thingCreated", "e1", t0)))
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestGuard_EmptyBatch(t *testing.T) {
	guard := generic.NewGuard(store.NewMemory(), zerolog.Nop())
	_, err := guard.Apply(context.Background(), "k-1", emit())
	assert.ErrorIs(t, err, generic.ErrEmptyCommand)
}

func TestGuard_OnlyFirstEventCarriesKey(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	guard := generic.NewGuard(mem, zerolog.Nop())

	a := testEvent(t, "thingCreated", "e1", t0)
	b := testEvent(t, "thingUpdated", "e1", t0)
	b.IdempotencyKey = "stray"

	_, err := guard.Apply(ctx, "k-1", emit(a, b))
	require.NoError(t, err)

	events, err := mem.Scan(ctx, generic.ForEntity("e1"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "k-1", events[0].IdempotencyKey)
	assert.Empty(t, events[1].IdempotencyKey)
}

func TestGuard_LostRace_ReturnsWinner(t *testing.T) {
	// GIVEN: The winner's event is already stored, but the first lookup misses it
	ctx := context.Background()
	mem := store.NewMemory()
	winner := testEvent(t, "thingCreated", "winner", t0)
	winner.IdempotencyKey = "k-1"
	require.NoError(t, mem.Append(ctx, winner))

	guard := generic.NewGuard(&racingStore{Memory: mem}, zerolog.Nop())

	// WHEN: The loser appends under the same key
	res, err := guard.Apply(ctx, "k-1", emit(testEvent(t, "thingCreated", "loser", t0)))

	// THEN: The unique key rejects it and the winner is reported
	require.NoError(t, err)
	assert.True(t, res.Deduplicated())
	assert.Equal(t, generic.EntityID("winner"), res.EntityID)
	assert.Equal(t, 1, mem.Len())
}

func TestGuard_RetriesTransientConflicts(t *testing.T) {
	busy := &busyStore{Memory: store.NewMemory(), failures: 2}
	guard := generic.NewGuard(busy, zerolog.Nop())

	res, err := guard.Apply(context.Background(), "k-1", emit(testEvent(t, "thingCreated", "e1", t0)))

	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 3, busy.attempts)
	assert.Equal(t, 1, busy.Len())
}

func TestGuard_GivesUpAfterMaxRetries(t *testing.T) {
	busy := &busyStore{Memory: store.NewMemory(), failures: 100}
	guard := generic.NewGuard(busy, zerolog.Nop())
	guard.MaxRetries = 2

	_, err := guard.Apply(context.Background(), "k-1", emit(testEvent(t, "thingCreated", "e1", t0)))

	assert.True(t, generic.IsRetryable(err))
	assert.Equal(t, 3, busy.attempts)
}

func TestGuard_ConcurrentRetries_AppendOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	guard := generic.NewGuard(mem, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([]generic.Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			evt, err := generic.NewEvent("thingCreated", generic.NewEntityID(), map[string]any{}, t0)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = guard.Apply(ctx, "same-key", emit(evt))
		}()
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
		assert.Equal(t, results[0].EntityID, results[i].EntityID)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, mem.Len())
}

func TestErrorHelpers(t *testing.T) {
	nf := &generic.NotFoundError{Kind: "habit", ID: "h1"}
	term := &generic.TerminalError{Kind: "recurring", ID: "r1", At: t0}
	wrapped := errors.Join(errors.New("context"), nf)

	assert.True(t, generic.IsNotFound(wrapped))
	assert.False(t, generic.IsClientError(nf))
	assert.True(t, generic.IsClientError(term))
	assert.True(t, generic.IsClientError(generic.NewValidationError("x", "bad")))
	assert.False(t, generic.IsRetryable(term))
	assert.Contains(t, nf.Error(), `"h1"`)
}
