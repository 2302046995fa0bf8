package server

import (
	"time"

	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/scoring"
	"ardf-results/internal/service"
)

type raceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Date     string `json:"date"`
	ZeroTime string `json:"zero_time"`
}

func raceFromRequest(req *createRaceRequest) (*domain.Race, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, &service.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	return &domain.Race{
		Name:     req.Name,
		Date:     date,
		ZeroTime: req.ZeroTime,
	}, nil
}

func raceView(race *domain.Race) raceResponse {
	return raceResponse{
		ID:       race.ID,
		Name:     race.Name,
		Date:     race.Date.Format("2006-01-02"),
		ZeroTime: race.ZeroTime,
	}
}

type createCourseRequest struct {
	Name        string           `json:"name"`
	RaceType    string           `json:"race_type"`
	TimeLimitS  int              `json:"time_limit_s"`
	MinControls int              `json:"min_controls"`
	Controls    []controlRequest `json:"controls"`
	Aliases     []aliasRequest   `json:"aliases"`
}

type controlRequest struct {
	Code  int    `json:"code"`
	Order int    `json:"order"`
	Kind  string `json:"kind"`
}

type aliasRequest struct {
	PhysicalCode int `json:"physical_code"`
	LogicalCode  int `json:"logical_code"`
}

func courseFromRequest(raceID string, req *createCourseRequest) *domain.Course {
	course := &domain.Course{
		RaceID:      raceID,
		Name:        req.Name,
		RaceType:    domain.RaceType(req.RaceType),
		TimeLimit:   time.Duration(req.TimeLimitS) * time.Second,
		MinControls: req.MinControls,
	}
	for _, c := range req.Controls {
		course.Controls = append(course.Controls, domain.ControlPoint{
			Code:  c.Code,
			Order: c.Order,
			Kind:  domain.ControlKind(c.Kind),
		})
	}
	for _, a := range req.Aliases {
		course.Aliases = append(course.Aliases, domain.Alias{
			PhysicalCode: a.PhysicalCode,
			LogicalCode:  a.LogicalCode,
		})
	}
	return course
}

type competitorResponse struct {
	ID          string `json:"id"`
	RaceID      string `json:"race_id"`
	CourseID    string `json:"course_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Club        string `json:"club,omitempty"`
	CardNumber  int    `json:"card_number"`
	StartNumber int    `json:"start_number"`
}

func competitorView(c *domain.Competitor) competitorResponse {
	return competitorResponse{
		ID:          c.ID,
		RaceID:      c.RaceID,
		CourseID:    c.CourseID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Club:        c.Club,
		CardNumber:  c.CardNumber,
		StartNumber: c.StartNumber,
	}
}

type punchResponse struct {
	Code  int    `json:"code"`
	Time  string `json:"time"`
	Valid bool   `json:"valid"`
}

type splitResponse struct {
	Code        int `json:"code"`
	CumulativeS int `json:"cumulative_s"`
	LegS        int `json:"leg_s"`
}

type resultResponse struct {
	CompetitorID string          `json:"competitor_id"`
	Status       string          `json:"status"`
	Automatic    bool            `json:"automatic_status"`
	CheckTime    string          `json:"check_time,omitempty"`
	StartTime    string          `json:"start_time,omitempty"`
	FinishTime   string          `json:"finish_time,omitempty"`
	RunTimeS     int             `json:"run_time_s"`
	Punches      []punchResponse `json:"punches"`
	Splits       []splitResponse `json:"splits,omitempty"`
}

func resultView(res *domain.Result) resultResponse {
	view := resultResponse{
		CompetitorID: res.CompetitorID,
		Status:       string(res.Status),
		Automatic:    res.AutomaticStatus,
		RunTimeS:     int(res.RunTime.Seconds()),
	}
	if res.CheckTime != nil {
		view.CheckTime = res.CheckTime.String()
	}
	if res.StartTime != nil {
		view.StartTime = res.StartTime.String()
	}
	if res.FinishTime != nil {
		view.FinishTime = res.FinishTime.String()
	}
	for _, p := range res.Punches {
		view.Punches = append(view.Punches, punchResponse{
			Code:  p.Code,
			Time:  p.Time.String(),
			Valid: p.Valid,
		})
	}
	if res.StartTime != nil {
		for s := range scoring.Splits(*res.StartTime, res.Punches) {
			view.Splits = append(view.Splits, splitResponse{
				Code:        s.Code,
				CumulativeS: int(s.Cumulative.Seconds()),
				LegS:        int(s.Leg.Seconds()),
			})
		}
	}
	return view
}

type rankedResponse struct {
	Place      int                `json:"place,omitempty"`
	Competitor competitorResponse `json:"competitor"`
	Result     resultResponse     `json:"result"`
}

func rankedView(rc *repository.ResultWithCompetitor) rankedResponse {
	return rankedResponse{
		Place:      rc.Result.Place,
		Competitor: competitorView(&rc.Competitor),
		Result:     resultView(&rc.Result),
	}
}

type serviceResponse struct {
	ID          string `json:"id"`
	RaceID      string `json:"race_id"`
	ServiceType string `json:"service_type"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	SentCount   int    `json:"sent_count"`
	ErrorText   string `json:"error_text,omitempty"`
	Enabled     bool   `json:"enabled"`
}

func serviceView(svc *domain.ResultServiceConfig) serviceResponse {
	return serviceResponse{
		ID:          svc.ID,
		RaceID:      svc.RaceID,
		ServiceType: string(svc.ServiceType),
		URL:         svc.URL,
		Status:      string(svc.Status),
		SentCount:   svc.SentCount,
		ErrorText:   svc.ErrorText,
		Enabled:     svc.Enabled,
	}
}
