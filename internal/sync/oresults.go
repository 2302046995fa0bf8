package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/scoring"

	"github.com/rs/zerolog"
)

// oresultsExporter posts unsent results as one JSON batch. The service
// answers 2xx with a per-record rejection list; accepted records are marked
// sent and rejections are reported through the service error text.
type oresultsExporter struct {
	transport Transport
	results   ResultStore
	logger    zerolog.Logger
}

type oresultsEntry struct {
	Index       int             `json:"index"`
	StartNumber int             `json:"start_number"`
	CardNumber  int             `json:"card_number"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Club        string          `json:"club,omitempty"`
	Status      string          `json:"status"`
	StartTime   string          `json:"start_time,omitempty"`
	FinishTime  string          `json:"finish_time,omitempty"`
	RunTimeS    int             `json:"run_time_s"`
	Splits      []oresultsSplit `json:"splits,omitempty"`
}

type oresultsSplit struct {
	Code        int `json:"code"`
	CumulativeS int `json:"cumulative_s"`
	LegS        int `json:"leg_s"`
}

type oresultsBatch struct {
	Results []oresultsEntry `json:"results"`
}

type oresultsResponse struct {
	Accepted int                 `json:"accepted"`
	Rejected []oresultsRejection `json:"rejected"`
}

type oresultsRejection struct {
	Index      *int   `json:"index"`
	CardNumber int    `json:"card_number"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Reason     string `json:"reason"`
}

// Init is a documented no-op: the service requires no setup beyond the key.
func (e *oresultsExporter) Init(_ context.Context, _ *domain.ResultServiceConfig) error {
	return nil
}

func (e *oresultsExporter) Export(ctx context.Context, svc *domain.ResultServiceConfig) (*Report, error) {
	pending, err := e.results.ListUnsent(ctx, svc.RaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unsent results: %w", err)
	}
	if len(pending) == 0 {
		return &Report{NoOp: true, SentCount: svc.SentCount}, nil
	}

	body, err := json.Marshal(buildBatch(pending))
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	resp, err := e.transport.Post(ctx, svc.URL, svc.APIKey, "application/json", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &serverError{Code: resp.StatusCode, Message: strings.TrimSpace(string(resp.Body))}
	}

	var parsed oresultsResponse
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to decode service response: %w", err)
		}
	}

	acceptedIDs, rejected := e.partition(pending, parsed.Rejected)
	if err := e.results.MarkSent(ctx, acceptedIDs); err != nil {
		return nil, fmt.Errorf("failed to mark results sent: %w", err)
	}

	return &Report{
		SentCount: svc.SentCount + len(acceptedIDs),
		Rejected:  rejected,
	}, nil
}

func buildBatch(pending []repository.ResultWithCompetitor) oresultsBatch {
	batch := oresultsBatch{Results: make([]oresultsEntry, len(pending))}
	for i, rc := range pending {
		entry := oresultsEntry{
			Index:       i,
			StartNumber: rc.Competitor.StartNumber,
			CardNumber:  rc.Competitor.CardNumber,
			FirstName:   rc.Competitor.FirstName,
			LastName:    rc.Competitor.LastName,
			Club:        rc.Competitor.Club,
			Status:      string(rc.Result.Status),
			RunTimeS:    int(rc.Result.RunTime.Seconds()),
		}
		if rc.Result.StartTime != nil {
			entry.StartTime = rc.Result.StartTime.String()
			for s := range scoring.Splits(*rc.Result.StartTime, rc.Result.Punches) {
				entry.Splits = append(entry.Splits, oresultsSplit{
					Code:        s.Code,
					CumulativeS: int(s.Cumulative.Seconds()),
					LegS:        int(s.Leg.Seconds()),
				})
			}
		}
		if rc.Result.FinishTime != nil {
			entry.FinishTime = rc.Result.FinishTime.String()
		}
		batch.Results[i] = entry
	}
	return batch
}

// partition splits the sent batch into accepted result IDs and rejected
// records. Each rejection is matched first by batch index, then by card
// number, then by first+last name; first match wins and a record matches at
// most one rejection.
func (e *oresultsExporter) partition(batch []repository.ResultWithCompetitor, rejections []oresultsRejection) ([]string, []RejectedResult) {
	matched := make([]bool, len(batch))
	var rejected []RejectedResult

	for _, rej := range rejections {
		idx := matchRejection(batch, matched, rej)
		if idx < 0 {
			e.logger.Warn().
				Str("first_name", rej.FirstName).
				Str("last_name", rej.LastName).
				Int("card", rej.CardNumber).
				Msg("service rejected a record not in the batch")
			continue
		}
		matched[idx] = true
		rejected = append(rejected, RejectedResult{
			CompetitorID: batch[idx].Competitor.ID,
			Name:         batch[idx].Competitor.FirstName + " " + batch[idx].Competitor.LastName,
			Reason:       rej.Reason,
		})
	}

	accepted := make([]string, 0, len(batch))
	for i, rc := range batch {
		if !matched[i] {
			accepted = append(accepted, rc.Result.ID)
		}
	}
	return accepted, rejected
}

func matchRejection(batch []repository.ResultWithCompetitor, matched []bool, rej oresultsRejection) int {
	if rej.Index != nil && *rej.Index >= 0 && *rej.Index < len(batch) && !matched[*rej.Index] {
		return *rej.Index
	}
	if rej.CardNumber != 0 {
		for i, rc := range batch {
			if !matched[i] && rc.Competitor.CardNumber == rej.CardNumber {
				return i
			}
		}
	}
	if rej.FirstName != "" || rej.LastName != "" {
		for i, rc := range batch {
			if !matched[i] && rc.Competitor.FirstName == rej.FirstName && rc.Competitor.LastName == rej.LastName {
				return i
			}
		}
	}
	return -1
}
