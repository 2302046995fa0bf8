package timing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(t *testing.T, s string) int {
	t.Helper()
	v, err := ParseClock(s)
	require.NoError(t, err)
	return v
}

// Card readout spanning two and a half days: every raw reading repeats on the
// 12-hour clock, yet the reconstructed timeline must stay non-decreasing with
// day and week counters advancing exactly once per detected wrap.
func TestReconcileCardReadout(t *testing.T) {
	t.Parallel()

	readings := []string{
		"10:05:00", // check
		"10:10:00", // start
		"10:20:00",
		"02:21:11",
		"03:27:25",
		"10:20:33",
		"04:14:44",
		"08:14:07",
		"08:20:24",
		"01:33:24",
		"03:33:02",
		"00:00:00",
		"09:17:10",
		"09:43:00", // finish
	}
	want := []string{
		"10:05:00,0,0",
		"10:10:00,0,0",
		"10:20:00,0,0",
		"14:21:11,0,0",
		"15:27:25,0,0",
		"22:20:33,0,0",
		"04:14:44,1,0",
		"08:14:07,1,0",
		"08:20:24,1,0",
		"13:33:24,1,0",
		"15:33:02,1,0",
		"00:00:00,2,0",
		"09:17:10,2,0",
		"09:43:00,2,0",
	}

	raw := make([]int, len(readings))
	for i, s := range readings {
		raw[i] = clock(t, s) % SecondsPerHalfDay
	}

	got := Reconcile(clock(t, "10:00:00"), raw)
	require.Len(t, got, len(want))
	for i, tv := range got {
		assert.Equal(t, want[i], tv.String(), "reading %s", readings[i])
	}
}

func TestReconcileFirstReadingBeforeBaseWraps(t *testing.T) {
	t.Parallel()

	// 09:00 read against a 10:00 base is the next half-day, not the past.
	got := Reconcile(clock(t, "10:00:00"), []int{9 * 3600})
	require.Len(t, got, 1)
	assert.Equal(t, "21:00:00,0,0", got[0].String())
}

func TestReconcileEqualReadingsDoNotAdvance(t *testing.T) {
	t.Parallel()

	got := Reconcile(clock(t, "10:00:00"), []int{10*3600 + 30, 10*3600 + 30})
	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1])
	assert.Equal(t, 0, got[1].DayOfWeek())
}

func TestReconcileMonotonicProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for range 100 {
		base := rng.Intn(SecondsPerDay)
		readings := make([]int, 50)
		for i := range readings {
			readings[i] = rng.Intn(SecondsPerHalfDay)
		}

		out := Reconcile(base, readings)
		for i := 1; i < len(out); i++ {
			require.True(t, out[i].AtOrAfter(out[i-1]),
				"base %d: %s before %s", base, out[i], out[i-1])
		}
		for i, tv := range out {
			require.Equal(t, readings[i], tv.HalfDaySecond())
		}
	}
}
