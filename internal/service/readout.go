package service

import (
	"context"
	"errors"
	"fmt"

	"ardf-results/internal/constants"
	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/scoring"
	"ardf-results/internal/timing"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownCard is returned when a readout carries a card number no
// competitor of the race is registered with.
var ErrUnknownCard = errors.New("card not assigned to any competitor")

type ReadoutService struct {
	races       *repository.RaceRepository
	courses     *repository.CourseRepository
	competitors *repository.CompetitorRepository
	results     *repository.ResultRepository
	logger      zerolog.Logger
}

func NewReadoutService(races *repository.RaceRepository, courses *repository.CourseRepository, competitors *repository.CompetitorRepository, results *repository.ResultRepository, logger zerolog.Logger) *ReadoutService {
	return &ReadoutService{
		races:       races,
		courses:     courses,
		competitors: competitors,
		results:     results,
		logger:      logger,
	}
}

// ProcessReadout turns one card download into a stored, evaluated result.
// Readings are reconciled in device order (check, start, controls, finish),
// matched against the competitor's course and saved. A repeated readout of
// the same card replaces the previous result; a status set by an official
// survives the replacement.
func (s *ReadoutService) ProcessReadout(ctx context.Context, raceID string, readout *domain.CardReadout) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	s.logger.Info().
		Str("race_id", raceID).
		Int("card", readout.CardNumber).
		Int("controls", len(readout.Controls)).
		Msg("processing card readout")

	competitor, err := s.competitors.GetByCard(ctx, raceID, readout.CardNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: card %d", ErrUnknownCard, readout.CardNumber)
		}
		return nil, fmt.Errorf("failed to look up card %d: %w", readout.CardNumber, err)
	}

	var race *domain.Race
	var course *domain.Course
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		race, err = s.races.Get(gctx, raceID)
		return err
	})
	g.Go(func() error {
		var err error
		course, err = s.courses.Get(gctx, competitor.CourseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load race data: %w", err)
	}

	result, err := buildResult(race, course, competitor, readout)
	if err != nil {
		return nil, err
	}

	// an official's decision outlives a re-readout
	if prev, err := s.results.GetByCompetitor(ctx, competitor.ID); err == nil {
		result.ID = prev.ID
		result.CreatedAt = prev.CreatedAt
		if !prev.AutomaticStatus {
			result.Status = prev.Status
			result.AutomaticStatus = false
			s.logger.Info().
				Str("competitor_id", competitor.ID).
				Str("status", string(prev.Status)).
				Msg("keeping manual status across re-readout")
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load previous result: %w", err)
	}

	if err := s.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Info().
		Str("competitor_id", competitor.ID).
		Str("status", string(result.Status)).
		Dur("run_time", result.RunTime).
		Msg("readout processed")
	return result, nil
}

// buildResult reconciles the card's half-day clock readings onto the race
// timeline and evaluates them against the course.
func buildResult(race *domain.Race, course *domain.Course, competitor *domain.Competitor, readout *domain.CardReadout) (*domain.Result, error) {
	zeroBase, err := timing.ParseClock(race.ZeroTime)
	if err != nil {
		return nil, fmt.Errorf("race %s has invalid zero time: %w", race.ID, err)
	}
	rec := timing.NewReconciler(zeroBase)

	readClock := func(label, value string) (*timing.TimeValue, error) {
		if value == "" {
			return nil, nil
		}
		reading, err := timing.ParseClock(value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s reading %q: %w", label, value, err)
		}
		t := rec.Next(reading)
		return &t, nil
	}

	check, err := readClock("check", readout.Check)
	if err != nil {
		return nil, err
	}
	start, err := readClock("start", readout.Start)
	if err != nil {
		return nil, err
	}

	punches := make([]timing.ReconciledPunch, 0, len(readout.Controls))
	for i, cr := range readout.Controls {
		reading, err := timing.ParseClock(cr.Reading)
		if err != nil {
			return nil, fmt.Errorf("invalid reading %q at control %d: %w", cr.Reading, cr.Code, err)
		}
		punches = append(punches, rec.Punch(cr.Code, i, reading))
	}

	finish, err := readClock("finish", readout.Finish)
	if err != nil {
		return nil, err
	}

	eval := scoring.Evaluate(course, start, finish, punches)
	return &domain.Result{
		CompetitorID:    competitor.ID,
		RaceID:          race.ID,
		Status:          eval.Status,
		AutomaticStatus: true,
		CheckTime:       check,
		StartTime:       start,
		FinishTime:      finish,
		RunTime:         eval.RunTime,
		Punches:         eval.Punches,
		Modified:        true,
		Sent:            false,
	}, nil
}
