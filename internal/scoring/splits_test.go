package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ardf-results/internal/domain"
	"ardf-results/internal/timing"
)

func TestSplits(t *testing.T) {
	t.Parallel()

	start := timing.New(10*3600, 0, 0)
	punches := []domain.Punch{
		{Code: 31, Time: timing.New(10*3600+300, 0, 0), Valid: true},
		{Code: 99, Time: timing.New(10*3600+400, 0, 0), Valid: false},
		{Code: 32, Time: timing.New(10*3600+900, 0, 0), Valid: true},
		{Code: 33, Time: timing.New(9*3600, 1, 0), Valid: true}, // next day
	}

	var got []LegSplit
	for s := range Splits(start, punches) {
		got = append(got, s)
	}

	require.Len(t, got, 3, "invalid punches carry no split")
	assert.Equal(t, LegSplit{Code: 31, Cumulative: 5 * time.Minute, Leg: 5 * time.Minute}, got[0])
	assert.Equal(t, LegSplit{Code: 32, Cumulative: 15 * time.Minute, Leg: 10 * time.Minute}, got[1])
	assert.Equal(t, 23*time.Hour, got[2].Cumulative)
	assert.Equal(t, 23*time.Hour-15*time.Minute, got[2].Leg)
}

func TestSplitsRestartable(t *testing.T) {
	t.Parallel()

	start := timing.New(0, 0, 0)
	punches := []domain.Punch{
		{Code: 31, Time: timing.New(60, 0, 0), Valid: true},
		{Code: 32, Time: timing.New(120, 0, 0), Valid: true},
	}

	seq := Splits(start, punches)

	first := make([]LegSplit, 0, 2)
	for s := range seq {
		first = append(first, s)
	}
	second := make([]LegSplit, 0, 2)
	for s := range seq {
		second = append(second, s)
	}

	assert.Equal(t, first, second)
}

func TestSplitsEarlyBreak(t *testing.T) {
	t.Parallel()

	start := timing.New(0, 0, 0)
	punches := []domain.Punch{
		{Code: 31, Time: timing.New(60, 0, 0), Valid: true},
		{Code: 32, Time: timing.New(120, 0, 0), Valid: true},
	}

	count := 0
	for range Splits(start, punches) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestSplitsEmpty(t *testing.T) {
	t.Parallel()

	for range Splits(timing.New(0, 0, 0), nil) {
		t.Fatal("no splits expected")
	}
}
