package scoring

import (
	"iter"
	"time"

	"ardf-results/internal/domain"
	"ardf-results/internal/timing"
)

// LegSplit is the elapsed time at one valid control: cumulative since the
// start punch and the leg since the previous valid control.
type LegSplit struct {
	Code       int
	Cumulative time.Duration
	Leg        time.Duration
}

// Splits yields leg times for the valid control punches of a run. The first
// leg is measured from the start punch. The sequence can be ranged over any
// number of times and never mutates its inputs.
func Splits(start timing.TimeValue, punches []domain.Punch) iter.Seq[LegSplit] {
	return func(yield func(LegSplit) bool) {
		prev := start
		for _, p := range punches {
			if !p.Valid {
				continue
			}
			s := LegSplit{
				Code:       p.Code,
				Cumulative: timing.Split(start, p.Time),
				Leg:        timing.Split(prev, p.Time),
			}
			if !yield(s) {
				return
			}
			prev = p.Time
		}
	}
}
