// Package store provides LogStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/tally/generic"
)

// =============================================================================
// MEMORY STORE - In-memory log (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	events      []generic.Event // ordered by (OccurredAt, Seq)
	idempotency map[string]generic.Event
	seq         uint64
}

func NewMemory() *Memory {
	return &Memory{idempotency: make(map[string]generic.Event)}
}

// Append adds a single event. Append-only.
func (m *Memory) Append(ctx context.Context, evt generic.Event) error {
	return m.AppendBatch(ctx, []generic.Event{evt})
}

// AppendBatch adds multiple events atomically.
func (m *Memory) AppendBatch(_ context.Context, events []generic.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	seen := make(map[string]bool, len(events))
	for _, evt := range events {
		if evt.IdempotencyKey == "" {
			continue
		}
		if _, exists := m.idempotency[evt.IdempotencyKey]; exists || seen[evt.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[evt.IdempotencyKey] = true
	}

	// Append all (atomic write)
	for _, evt := range events {
		m.appendLocked(evt)
	}
	return nil
}

func (m *Memory) appendLocked(evt generic.Event) {
	m.seq++
	evt.Seq = m.seq
	if evt.ID == "" {
		evt.ID = generic.NewEventID()
	}

	// Binary search for insertion point; a new event has the highest Seq so
	// it goes after every event with OccurredAt <= its own.
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].OccurredAt.After(evt.OccurredAt)
	})
	m.events = append(m.events, generic.Event{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = evt

	if evt.IdempotencyKey != "" {
		m.idempotency[evt.IdempotencyKey] = evt
	}
}

// Scan returns matching events in (OccurredAt, Seq) order.
func (m *Memory) Scan(_ context.Context, filter generic.Filter) ([]generic.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Event
	for _, evt := range m.events {
		if !filter.Matches(evt) {
			continue
		}
		result = append(result, evt)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) FindByIdempotencyKey(_ context.Context, key string) (generic.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evt, ok := m.idempotency[key]
	return evt, ok, nil
}

// Len returns the number of stored events.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}
