package timing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SecondsPerHalfDay = 12 * 60 * 60
	SecondsPerDay     = 2 * SecondsPerHalfDay
	DaysPerWeek       = 7
)

// FormatError reports a malformed clock string or raw card reading.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Input, e.Reason)
}

// TimeValue is a wall-clock instant disambiguated from a 12-hour card clock.
// It tracks the second of the day, the day of the week and a week counter so
// that punches spanning midnight or multiple days stay totally ordered.
type TimeValue struct {
	second int // second of day, [0, 86400)
	day    int // day of week, 0..6
	week   int
}

func New(secondOfDay, dayOfWeek, week int) TimeValue {
	return TimeValue{second: secondOfDay, day: dayOfWeek, week: week}
}

func (t TimeValue) SecondOfDay() int { return t.second }
func (t TimeValue) DayOfWeek() int   { return t.day }
func (t TimeValue) Week() int        { return t.week }

// HalfDaySecond is the ambiguous value a 12-hour card clock would report.
func (t TimeValue) HalfDaySecond() int { return t.second % SecondsPerHalfDay }

// AdvanceHalfDay moves the value 12 hours forward. Every second advance
// crosses midnight, wrapping the day of week and bumping the week counter
// when the day wraps from 6 to 0.
func (t TimeValue) AdvanceHalfDay() TimeValue {
	t.second += SecondsPerHalfDay
	if t.second >= SecondsPerDay {
		t.second -= SecondsPerDay
		t.day++
		if t.day >= DaysPerWeek {
			t.day = 0
			t.week++
		}
	}
	return t
}

// AdvanceDay moves the value one full day forward.
func (t TimeValue) AdvanceDay() TimeValue {
	return t.AdvanceHalfDay().AdvanceHalfDay()
}

// ElapsedSeconds counts seconds since 00:00:00 of day 0, week 0.
func (t TimeValue) ElapsedSeconds() int {
	return (t.week*DaysPerWeek+t.day)*SecondsPerDay + t.second
}

func (t TimeValue) Compare(o TimeValue) int {
	switch a, b := t.ElapsedSeconds(), o.ElapsedSeconds(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t TimeValue) Before(o TimeValue) bool    { return t.Compare(o) < 0 }
func (t TimeValue) After(o TimeValue) bool     { return t.Compare(o) > 0 }
func (t TimeValue) AtOrAfter(o TimeValue) bool { return t.Compare(o) >= 0 }

// Difference returns t minus earlier on the disambiguated linear timeline.
func Difference(t, earlier TimeValue) time.Duration {
	return time.Duration(t.ElapsedSeconds()-earlier.ElapsedSeconds()) * time.Second
}

// Split is the elapsed duration from earlier to later, spanning day and week
// boundaries. Split(a, b) == Difference(b, a).
func Split(earlier, later TimeValue) time.Duration {
	return Difference(later, earlier)
}

// String renders the canonical "HH:MM:SS,dayOfWeek,week" form.
func (t TimeValue) String() string {
	return fmt.Sprintf("%02d:%02d:%02d,%d,%d",
		t.second/3600, t.second/60%60, t.second%60, t.day, t.week)
}

// Parse reads the canonical "HH:MM:SS,dayOfWeek,week" form produced by String.
func Parse(s string) (TimeValue, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return TimeValue{}, &FormatError{Input: s, Reason: "want HH:MM:SS,day,week"}
	}

	second, err := ParseClock(parts[0])
	if err != nil {
		return TimeValue{}, err
	}

	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 0 || day >= DaysPerWeek {
		return TimeValue{}, &FormatError{Input: s, Reason: "day of week out of range"}
	}

	week, err := strconv.Atoi(parts[2])
	if err != nil || week < 0 {
		return TimeValue{}, &FormatError{Input: s, Reason: "negative week"}
	}

	return TimeValue{second: second, day: day, week: week}, nil
}

// ParseClock converts a "HH:MM:SS" wall-clock string to a second of day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, &FormatError{Input: s, Reason: "want HH:MM:SS"}
	}

	var hms [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, &FormatError{Input: s, Reason: "non-numeric component"}
		}
		hms[i] = v
	}

	if hms[0] >= 24 || hms[1] >= 60 || hms[2] >= 60 {
		return 0, &FormatError{Input: s, Reason: "component out of range"}
	}

	return hms[0]*3600 + hms[1]*60 + hms[2], nil
}
