package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"00:00:00,0,0",
		"10:05:00,0,0",
		"14:21:11,0,0",
		"23:59:59,6,12",
		"09:43:00,2,0",
	}

	for _, in := range inputs {
		tv, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, in, tv.String())

		back, err := Parse(tv.String())
		require.NoError(t, err)
		assert.Equal(t, tv, back)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing fields", "10:00:00"},
		{"bad clock", "25:00:00,0,0"},
		{"bad minutes", "10:61:00,0,0"},
		{"day out of range", "10:00:00,7,0"},
		{"negative week", "10:00:00,0,-1"},
		{"non-numeric", "aa:bb:cc,0,0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.input)
			require.Error(t, err)
			var fe *FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestAdvanceHalfDay(t *testing.T) {
	t.Parallel()

	start := New(10*3600, 3, 0)

	once := start.AdvanceHalfDay()
	assert.Equal(t, 22*3600, once.SecondOfDay())
	assert.Equal(t, 3, once.DayOfWeek())

	twice := once.AdvanceHalfDay()
	assert.Equal(t, start.SecondOfDay(), twice.SecondOfDay())
	assert.Equal(t, 4, twice.DayOfWeek())
	assert.Equal(t, 0, twice.Week())

	full := start
	for range 14 {
		full = full.AdvanceHalfDay()
	}
	assert.Equal(t, start.SecondOfDay(), full.SecondOfDay())
	assert.Equal(t, start.DayOfWeek(), full.DayOfWeek())
	assert.Equal(t, start.Week()+1, full.Week())
}

func TestAdvanceDayWrapsWeek(t *testing.T) {
	t.Parallel()

	tv := New(8*3600, 6, 2).AdvanceDay()
	assert.Equal(t, 0, tv.DayOfWeek())
	assert.Equal(t, 3, tv.Week())
	assert.Equal(t, 8*3600, tv.SecondOfDay())
}

func TestSplitAcrossDayBoundary(t *testing.T) {
	t.Parallel()

	start := New(10*3600, 0, 0)
	punch := New(9*3600, 1, 0)

	assert.Equal(t, 23*time.Hour, Split(start, punch))
	assert.Equal(t, Difference(punch, start), Split(start, punch))
}

func TestCompareOrdering(t *testing.T) {
	t.Parallel()

	a := New(SecondsPerDay-1, 6, 0)
	b := New(0, 0, 1)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, b.AtOrAfter(a))
	assert.True(t, a.AtOrAfter(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
}
