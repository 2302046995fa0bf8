package domain

import (
	"time"

	"ardf-results/internal/timing"
)

type Race struct {
	ID        string
	Name      string
	Date      time.Time
	ZeroTime  string // "HH:MM:SS" wall-clock base for punch disambiguation
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ControlKind string

const (
	KindStart   ControlKind = "START"
	KindControl ControlKind = "CONTROL"
	KindFinish  ControlKind = "FINISH"
	KindBeacon  ControlKind = "BEACON"
)

type RaceType string

const (
	RaceClassic   RaceType = "classic"    // controls must be taken in course order
	RaceFreeOrder RaceType = "free_order" // foxoring/score: any order counts
)

type ControlPoint struct {
	Code  int
	Order int
	Kind  ControlKind
}

// Alias maps a physical control code to the logical checkpoint it stands in
// for, when several transmitters represent one checkpoint.
type Alias struct {
	PhysicalCode int
	LogicalCode  int
}

type Course struct {
	ID          string
	RaceID      string
	Name        string
	RaceType    RaceType
	TimeLimit   time.Duration // 0 means no limit
	MinControls int           // 0 disables the no-ranking threshold
	Controls    []ControlPoint
	Aliases     []Alias
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LogicalCode resolves a physical control code through the course alias set.
func (c *Course) LogicalCode(code int) int {
	for _, a := range c.Aliases {
		if a.PhysicalCode == code {
			return a.LogicalCode
		}
	}
	return code
}

// RequiredControls lists the logical codes a competitor must visit, in course
// order. Start and finish definitions are timing markers, not visits.
func (c *Course) RequiredControls() []int {
	var codes []int
	for _, cp := range c.Controls {
		if cp.Kind == KindControl || cp.Kind == KindBeacon {
			codes = append(codes, c.LogicalCode(cp.Code))
		}
	}
	return codes
}

type Competitor struct {
	ID          string
	RaceID      string
	CourseID    string
	FirstName   string
	LastName    string
	Club        string
	CardNumber  int
	StartNumber int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Punch is one reconciled control punch stored with a result. Valid marks
// punches counted as required control visits by course evaluation.
type Punch struct {
	Code     int
	Sequence int
	Time     timing.TimeValue
	Valid    bool
}

type Result struct {
	ID              string
	CompetitorID    string
	RaceID          string
	Status          ResultStatus
	AutomaticStatus bool // false once an official overrides the computed status
	CheckTime       *timing.TimeValue
	StartTime       *timing.TimeValue
	FinishTime      *timing.TimeValue
	RunTime         time.Duration
	Place           int
	Punches         []Punch
	Modified        bool
	Sent            bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ControlReading is one raw (code, 12-hour clock) pair off a card.
type ControlReading struct {
	Code    int    `json:"code"`
	Reading string `json:"reading"` // "HH:MM:SS" on the card's half-day clock
}

// CardReadout is what the card reader hands over after a download: ambiguous
// clock readings in device order plus the card identity. The JSON shape is
// what readout clients post.
type CardReadout struct {
	CardType   string           `json:"card_type"`
	CardNumber int              `json:"card_number"`
	Check      string           `json:"check"` // empty when the punch is absent
	Start      string           `json:"start"`
	Finish     string           `json:"finish"`
	Controls   []ControlReading `json:"controls"`
}

type ResultServiceConfig struct {
	ID          string
	RaceID      string
	ServiceType ServiceType
	URL         string
	APIKey      string
	Status      ServiceStatus
	SentCount   int
	ErrorText   string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
