package scoring

import (
	"time"

	"ardf-results/internal/domain"
	"ardf-results/internal/timing"
)

// Evaluation is the outcome of matching a reconciled punch sequence against
// a course definition.
type Evaluation struct {
	Status   domain.ResultStatus
	Punches  []domain.Punch // all control punches, valid visits flagged
	Visited  int            // required controls actually visited
	Required int
	RunTime  time.Duration
}

// Evaluate classifies one run. Start and finish are nil when the card holds
// no such reading. Control punches must already be reconciled and in
// chronological order.
func Evaluate(course *domain.Course, start, finish *timing.TimeValue, punches []timing.ReconciledPunch) Evaluation {
	required := course.RequiredControls()

	var matched []domain.Punch
	var visited int
	switch course.RaceType {
	case domain.RaceFreeOrder:
		matched, visited = matchFreeOrder(course, required, punches)
	default:
		matched, visited = matchStrictOrder(course, required, punches)
	}

	ev := Evaluation{
		Punches:  matched,
		Visited:  visited,
		Required: len(required),
	}
	if start != nil && finish != nil {
		ev.RunTime = timing.Split(*start, *finish)
	}

	switch {
	case start == nil:
		ev.Status = domain.StatusDidNotStart
	case finish == nil:
		ev.Status = domain.StatusDidNotFinish
	case course.TimeLimit > 0 && ev.RunTime > course.TimeLimit:
		ev.Status = domain.StatusOverTimeLimit
	case visited < len(required):
		if course.MinControls > 0 && visited < course.MinControls {
			ev.Status = domain.StatusNoRanking
		} else {
			ev.Status = domain.StatusMispunched
		}
	default:
		ev.Status = domain.StatusOK
	}

	return ev
}

// matchStrictOrder scans punches chronologically against an expectation
// cursor over the required control list. A non-matching punch is extraneous:
// it neither advances the cursor nor spoils the run.
func matchStrictOrder(course *domain.Course, required []int, punches []timing.ReconciledPunch) ([]domain.Punch, int) {
	out := make([]domain.Punch, 0, len(punches))
	next := 0
	for _, p := range punches {
		valid := next < len(required) && course.LogicalCode(p.Code) == required[next]
		if valid {
			next++
		}
		out = append(out, domain.Punch{
			Code:     p.Code,
			Sequence: p.Sequence,
			Time:     p.Time,
			Valid:    valid,
		})
	}
	return out, next
}

// matchFreeOrder accepts any punch whose logical code is required and not yet
// counted; order is irrelevant and repeats are duplicates.
func matchFreeOrder(course *domain.Course, required []int, punches []timing.ReconciledPunch) ([]domain.Punch, int) {
	wanted := make(map[int]bool, len(required))
	for _, code := range required {
		wanted[code] = true
	}

	out := make([]domain.Punch, 0, len(punches))
	visited := 0
	for _, p := range punches {
		logical := course.LogicalCode(p.Code)
		valid := wanted[logical]
		if valid {
			delete(wanted, logical)
			visited++
		}
		out = append(out, domain.Punch{
			Code:     p.Code,
			Sequence: p.Sequence,
			Time:     p.Time,
			Valid:    valid,
		})
	}
	return out, visited
}
