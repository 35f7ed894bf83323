package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tally/generic"
)

func TestClampWindow(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{1, 7},
		{7, 7},
		{8, 30},
		{30, 30},
		{31, 90},
		{90, 90},
		{400, 90},
	}
	for _, tt := range tests {
		got, err := ClampWindow(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ClampWindow(%d)", tt.in)
	}

	for _, bad := range []int{0, -7} {
		_, err := ClampWindow(bad)
		assert.ErrorIs(t, err, generic.ErrValidation)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxLimit, ClampLimit(MaxLimit+1))
}

func TestParseDay(t *testing.T) {
	today := generic.MustDayKey("2025-03-12")

	got, err := ParseDay("dayKey", "  ", today)
	require.NoError(t, err)
	assert.Equal(t, today, got)

	got, err = ParseDay("dayKey", "2024-02-29", today)
	require.NoError(t, err)
	assert.Equal(t, generic.MustDayKey("2024-02-29"), got)

	_, err = ParseDay("dayKey", "2025-02-29", today)
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dayKey", ve.Field)
}
