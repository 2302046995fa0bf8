package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ardf-results/internal/constants"
	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/scoring"
	"ardf-results/internal/sync"
	"ardf-results/internal/timing"

	"github.com/rs/zerolog"
)

type ResultService struct {
	results     *repository.ResultRepository
	competitors *repository.CompetitorRepository
	courses     *repository.CourseRepository
	engine      *sync.Engine
	logger      zerolog.Logger
}

func NewResultService(results *repository.ResultRepository, competitors *repository.CompetitorRepository, courses *repository.CourseRepository, engine *sync.Engine, logger zerolog.Logger) *ResultService {
	return &ResultService{
		results:     results,
		competitors: competitors,
		courses:     courses,
		engine:      engine,
		logger:      logger,
	}
}

// Rankings returns the race results ordered for display: OK runs first by
// run time, everyone else after by status, ties broken by name. Places are
// assigned to OK runs only.
func (s *ResultService) Rankings(ctx context.Context, raceID string) ([]repository.ResultWithCompetitor, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	all, err := s.results.ListByRace(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		ri, rj := all[i].Result, all[j].Result
		if ri.Status.Rank() != rj.Status.Rank() {
			return ri.Status.Rank() < rj.Status.Rank()
		}
		if ri.Status == domain.StatusOK && ri.RunTime != rj.RunTime {
			return ri.RunTime < rj.RunTime
		}
		return all[i].Competitor.LastName < all[j].Competitor.LastName
	})

	place := 0
	for i := range all {
		if all[i].Result.Status == domain.StatusOK {
			place++
			all[i].Result.Place = place
		} else {
			all[i].Result.Place = 0
		}
	}
	return all, nil
}

// SetStatus records an official's decision over the computed status. The
// override sticks until cleared, re-readouts included, and the result goes
// back on the wire.
func (s *ResultService) SetStatus(ctx context.Context, competitorID string, status domain.ResultStatus) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	result, err := s.results.GetByCompetitor(ctx, competitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}

	result.Status = status
	result.AutomaticStatus = false
	result.Modified = true
	result.Sent = false
	if err := s.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save override: %w", err)
	}

	s.logger.Info().
		Str("competitor_id", competitorID).
		Str("status", string(status)).
		Msg("manual status set")
	return result, nil
}

// ClearStatus drops a manual override and re-evaluates the stored punches
// against the competitor's course.
func (s *ResultService) ClearStatus(ctx context.Context, competitorID string) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	result, err := s.results.GetByCompetitor(ctx, competitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	if result.AutomaticStatus {
		return result, nil
	}

	competitor, err := s.competitors.Get(ctx, competitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitor: %w", err)
	}
	course, err := s.courses.Get(ctx, competitor.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	punches := make([]timing.ReconciledPunch, len(result.Punches))
	for i, p := range result.Punches {
		punches[i] = timing.ReconciledPunch{
			RawPunch: timing.RawPunch{
				Code:     p.Code,
				Sequence: p.Sequence,
				Reading:  p.Time.HalfDaySecond(),
			},
			Time: p.Time,
		}
	}
	eval := scoring.Evaluate(course, result.StartTime, result.FinishTime, punches)

	result.Status = eval.Status
	result.AutomaticStatus = true
	result.RunTime = eval.RunTime
	result.Punches = eval.Punches
	result.Modified = true
	result.Sent = false
	if err := s.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Info().
		Str("competitor_id", competitorID).
		Str("status", string(result.Status)).
		Msg("manual status cleared")
	return result, nil
}

// Resend queues every result of the race for retransmission on all services.
func (s *ResultService) Resend(ctx context.Context, raceID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.engine.ResendAll(ctx, raceID)
}

// GetByCompetitor fetches one competitor's stored result.
func (s *ResultService) GetByCompetitor(ctx context.Context, competitorID string) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	result, err := s.results.GetByCompetitor(ctx, competitorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	return result, nil
}
