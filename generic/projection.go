/*
projection.go - Chronological fold over the event log

PURPOSE:
  Every read model is a left fold of events in logical order. This file
  owns the ordering rule so entity families only write reducers.

ORDERING:
  Events are folded by OccurredAt ascending. Physical log order is not
  assumed to match logical order across entities; Seq breaks ties so the
  fold is deterministic for events sharing a millisecond.

STATE:
  Reducers fold into state owned by the current call. Nothing is shared
  between requests, so concurrent reads need no locks.

SEE ALSO:
  - recurring/, account/, habit/: Family reducers
*/
package generic

import (
	"cmp"
	"slices"
)

// Chronological returns a copy of events ordered by (OccurredAt, Seq).
func Chronological(events []Event) []Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, compareEvents)
	return sorted
}

func compareEvents(a, b Event) int {
	if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// Fold applies step to every event in chronological order.
func Fold[S any](events []Event, initial S, step func(S, Event) S) S {
	state := initial
	for _, evt := range Chronological(events) {
		state = step(state, evt)
	}
	return state
}
