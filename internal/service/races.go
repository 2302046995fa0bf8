package service

import (
	"context"
	"fmt"

	"ardf-results/internal/constants"
	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/timing"

	"github.com/rs/zerolog"
)

type RaceService struct {
	races   *repository.RaceRepository
	courses *repository.CourseRepository
	logger  zerolog.Logger
}

func NewRaceService(races *repository.RaceRepository, courses *repository.CourseRepository, logger zerolog.Logger) *RaceService {
	return &RaceService{races: races, courses: courses, logger: logger}
}

// CreateRace stores a race after checking the zero time parses as a
// wall-clock value; everything downstream depends on it.
func (s *RaceService) CreateRace(ctx context.Context, race *domain.Race) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := timing.ParseClock(race.ZeroTime); err != nil {
		return &ValidationError{Field: "zero_time", Reason: err.Error()}
	}
	if err := s.races.Create(ctx, race); err != nil {
		return fmt.Errorf("failed to create race: %w", err)
	}
	s.logger.Info().Str("race_id", race.ID).Str("name", race.Name).Msg("race created")
	return nil
}

func (s *RaceService) GetRace(ctx context.Context, id string) (*domain.Race, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.races.Get(ctx, id)
}

func (s *RaceService) ListRaces(ctx context.Context) ([]domain.Race, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.races.List(ctx)
}

// CreateCourse stores a course with its controls and aliases.
func (s *RaceService) CreateCourse(ctx context.Context, course *domain.Course) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := domain.ParseRaceType(string(course.RaceType)); err != nil {
		return &ValidationError{Field: "race_type", Reason: err.Error()}
	}
	for _, cp := range course.Controls {
		if _, err := domain.ParseControlKind(string(cp.Kind)); err != nil {
			return &ValidationError{Field: "controls", Reason: err.Error()}
		}
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	s.logger.Info().Str("course_id", course.ID).Str("race_id", course.RaceID).Msg("course created")
	return nil
}

func (s *RaceService) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.courses.Get(ctx, id)
}
