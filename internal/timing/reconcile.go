package timing

// RawPunch is a single control punch as read off a card: the control code and
// the ambiguous 12-hour clock reading the card recorded for it.
type RawPunch struct {
	Code     int
	Reading  int // second on the half-day clock, [0, 43200)
	Sequence int
}

// ReconciledPunch is a RawPunch promoted to an unambiguous TimeValue.
type ReconciledPunch struct {
	RawPunch
	Time TimeValue
}

// Reconciler rebuilds an absolute timeline from ambiguous half-day clock
// readings fed in device order. Each reading is placed in the earliest
// half-day that keeps the sequence non-decreasing, starting from the race's
// zero time base.
type Reconciler struct {
	current TimeValue
}

// NewReconciler anchors the timeline at the given zero time base, a second of
// day on day 0 of week 0.
func NewReconciler(zeroBase int) *Reconciler {
	return &Reconciler{current: New(zeroBase, 0, 0)}
}

// Next disambiguates one reading and advances the running clock. A reading
// equal to the current clock is accepted without advancing a half-day.
func (r *Reconciler) Next(reading int) TimeValue {
	halfDayStart := r.current.SecondOfDay() / SecondsPerHalfDay * SecondsPerHalfDay
	cand := New(halfDayStart+reading%SecondsPerHalfDay, r.current.DayOfWeek(), r.current.Week())
	for cand.Before(r.current) {
		cand = cand.AdvanceHalfDay()
	}
	r.current = cand
	return cand
}

// Punch disambiguates one control punch reading.
func (r *Reconciler) Punch(code, sequence, reading int) ReconciledPunch {
	return ReconciledPunch{
		RawPunch: RawPunch{Code: code, Reading: reading, Sequence: sequence},
		Time:     r.Next(reading),
	}
}

// Reconcile disambiguates a whole sequence of readings from a zero time base.
// The output is non-decreasing under TimeValue ordering for any input.
func Reconcile(zeroBase int, readings []int) []TimeValue {
	r := NewReconciler(zeroBase)
	out := make([]TimeValue, len(readings))
	for i, reading := range readings {
		out[i] = r.Next(reading)
	}
	return out
}
