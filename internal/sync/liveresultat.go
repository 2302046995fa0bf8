package sync

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"ardf-results/internal/domain"
	"ardf-results/internal/repository"

	"github.com/rs/zerolog"
)

// liveresultatExporter publishes XML with whole-payload-per-call semantics:
// init uploads the start list once, every export re-uploads the complete
// result list. Individual results are never marked sent; the sent counter
// reflects the size of the last successful upload.
type liveresultatExporter struct {
	transport   Transport
	results     ResultStore
	competitors CompetitorStore
	logger      zerolog.Logger
}

type xmlStartList struct {
	XMLName xml.Name      `xml:"StartList"`
	RaceID  string        `xml:"raceId,attr"`
	Entries []xmlStartRow `xml:"Competitor"`
}

type xmlStartRow struct {
	StartNumber int    `xml:"bib,attr"`
	CardNumber  int    `xml:"card,attr"`
	FirstName   string `xml:"GivenName"`
	LastName    string `xml:"FamilyName"`
	Club        string `xml:"Club,omitempty"`
}

type xmlResultList struct {
	XMLName xml.Name       `xml:"ResultList"`
	RaceID  string         `xml:"raceId,attr"`
	Entries []xmlResultRow `xml:"Result"`
}

type xmlResultRow struct {
	StartNumber int           `xml:"bib,attr"`
	FirstName   string        `xml:"GivenName"`
	LastName    string        `xml:"FamilyName"`
	Status      string        `xml:"Status"`
	StartTime   string        `xml:"StartTime,omitempty"`
	FinishTime  string        `xml:"FinishTime,omitempty"`
	RunTimeS    int           `xml:"Time"`
	Punches     []xmlSplitRow `xml:"Split"`
}

type xmlSplitRow struct {
	Code  int    `xml:"code,attr"`
	Time  string `xml:"time,attr"`
	Valid bool   `xml:"valid,attr"`
}

// Init publishes the start list.
func (e *liveresultatExporter) Init(ctx context.Context, svc *domain.ResultServiceConfig) error {
	competitors, err := e.competitors.ListByRace(ctx, svc.RaceID)
	if err != nil {
		return fmt.Errorf("failed to load start list: %w", err)
	}

	list := xmlStartList{RaceID: svc.RaceID, Entries: make([]xmlStartRow, len(competitors))}
	for i, c := range competitors {
		list.Entries[i] = xmlStartRow{
			StartNumber: c.StartNumber,
			CardNumber:  c.CardNumber,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			Club:        c.Club,
		}
	}

	if err := e.upload(ctx, svc, list); err != nil {
		return err
	}
	e.logger.Info().
		Str("service_id", svc.ID).
		Int("competitors", len(competitors)).
		Msg("start list published")
	return nil
}

func (e *liveresultatExporter) Export(ctx context.Context, svc *domain.ResultServiceConfig) (*Report, error) {
	all, err := e.results.ListByRace(ctx, svc.RaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	if len(all) == 0 {
		return &Report{NoOp: true, SentCount: svc.SentCount}, nil
	}

	if err := e.upload(ctx, svc, buildResultList(svc.RaceID, all)); err != nil {
		return nil, err
	}
	return &Report{SentCount: len(all)}, nil
}

func buildResultList(raceID string, all []repository.ResultWithCompetitor) xmlResultList {
	list := xmlResultList{RaceID: raceID, Entries: make([]xmlResultRow, len(all))}
	for i, rc := range all {
		row := xmlResultRow{
			StartNumber: rc.Competitor.StartNumber,
			FirstName:   rc.Competitor.FirstName,
			LastName:    rc.Competitor.LastName,
			Status:      string(rc.Result.Status),
			RunTimeS:    int(rc.Result.RunTime.Seconds()),
		}
		if rc.Result.StartTime != nil {
			row.StartTime = rc.Result.StartTime.String()
		}
		if rc.Result.FinishTime != nil {
			row.FinishTime = rc.Result.FinishTime.String()
		}
		for _, p := range rc.Result.Punches {
			row.Punches = append(row.Punches, xmlSplitRow{
				Code:  p.Code,
				Time:  p.Time.String(),
				Valid: p.Valid,
			})
		}
		list.Entries[i] = row
	}
	return list
}

func (e *liveresultatExporter) upload(ctx context.Context, svc *domain.ResultServiceConfig, payload any) error {
	body, err := xml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := e.transport.Post(ctx, svc.URL, svc.APIKey, "application/xml", body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &serverError{Code: resp.StatusCode, Message: strings.TrimSpace(string(resp.Body))}
	}
	return nil
}
