package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tally/generic"
)

func TestChronological_OrdersByOccurredAtThenSeq(t *testing.T) {
	a := testEvent(t, "x", "e", t0.Add(time.Hour))
	a.Seq = 1
	b := testEvent(t, "x", "e", t0)
	b.Seq = 3
	c := testEvent(t, "x", "e", t0)
	c.Seq = 2
	in := []generic.Event{a, b, c}

	out := generic.Chronological(in)

	assert.Equal(t, []uint64{2, 3, 1}, []uint64{out[0].Seq, out[1].Seq, out[2].Seq})
	assert.Equal(t, uint64(1), in[0].Seq, "input must not be reordered")
}

func TestFold_CountsInOrder(t *testing.T) {
	events := []generic.Event{
		testEvent(t, "b", "e", t0.Add(2*time.Minute)),
		testEvent(t, "a", "e", t0),
		testEvent(t, "c", "e", t0.Add(5*time.Minute)),
	}

	got := generic.Fold(events, "", func(acc string, evt generic.Event) string {
		return acc + string(evt.Type)
	})

	assert.Equal(t, "abc", got)
}

func TestEvent_WireShape(t *testing.T) {
	evt, err := generic.NewEvent("recurringScheduled", "r1", map[string]any{"recurringId": "r1"}, t0.Add(123456*time.Nanosecond))
	require.NoError(t, err)
	evt.ID = "evt-1"
	evt.IdempotencyKey = "k"

	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "evt-1",
		"type": "recurringScheduled",
		"entityId": "r1",
		"payload": {"recurringId": "r1"},
		"occurredAt": 1736931600000,
		"idempotencyKey": "k"
	}`, string(raw))

	var back generic.Event
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.OccurredAt.Equal(t0))
	assert.Equal(t, evt.Type, back.Type)
}

func TestPayloadFields_Lenient(t *testing.T) {
	evt := generic.Event{ID: "e", Type: "x", Payload: json.RawMessage(`{
		"name": "Rent",
		"amount": "12.50",
		"count": 3,
		"bad": "abc",
		"nullish": null,
		"due": 1736931600000,
		"day": "2025-01-15",
		"days": [1, "x", 3],
		"nested": {"kind": "custom"}
	}`)}

	f, err := generic.PayloadFields(evt)
	require.NoError(t, err)

	assert.Equal(t, "Rent", f.StringOr("name", ""))
	assert.Equal(t, "fallback", f.StringOr("count", "fallback"), "numbers are not strings")

	amt, ok := f.Decimal("amount")
	assert.True(t, ok)
	assert.True(t, amt.Equal(decimal.RequireFromString("12.5")))

	bad, ok := f.Decimal("bad")
	assert.True(t, ok, "present but malformed")
	assert.True(t, bad.IsZero())

	_, ok = f.Decimal("nullish")
	assert.False(t, ok)

	due, ok := f.Millis("due")
	assert.True(t, ok)
	assert.True(t, due.Equal(t0))

	day, ok := f.DayKey("day")
	assert.True(t, ok)
	assert.Equal(t, "2025-01-15", day.String())

	ints, ok := f.Ints("days")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 3}, ints)

	nested, ok := f.Object("nested")
	require.True(t, ok)
	assert.Equal(t, "custom", nested.StringOr("kind", ""))
}

func TestPayloadFields_NotAnObject(t *testing.T) {
	_, err := generic.PayloadFields(generic.Event{ID: "e", Type: "x", Payload: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, generic.ErrMalformedEvent)

	f, err := generic.PayloadFields(generic.Event{ID: "e", Type: "x"})
	require.NoError(t, err)
	assert.Empty(t, f)
}
