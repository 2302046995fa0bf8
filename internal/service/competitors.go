package service

import (
	"context"
	"errors"
	"fmt"

	"ardf-results/internal/constants"
	"ardf-results/internal/domain"
	"ardf-results/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ValidationError carries a user-facing reason a registration was refused.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// CompetitorInput is one registration request.
type CompetitorInput struct {
	RaceID      string `json:"race_id" validate:"required"`
	CourseID    string `json:"course_id" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Club        string `json:"club"`
	CardNumber  int    `json:"card_number" validate:"required,gt=0"`
	StartNumber int    `json:"start_number" validate:"required,gt=0"`
}

type CompetitorService struct {
	competitors *repository.CompetitorRepository
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewCompetitorService(competitors *repository.CompetitorRepository, logger zerolog.Logger) *CompetitorService {
	return &CompetitorService{
		competitors: competitors,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// Register validates and stores one competitor. Card numbers and start
// numbers are unique within a race; a same-named entry is refused as a
// likely double registration.
func (s *CompetitorService) Register(ctx context.Context, input *CompetitorInput) (*domain.Competitor, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.validate.Struct(input); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) || len(errs) == 0 {
			return nil, err
		}
		fe := errs[0]
		return nil, &ValidationError{Field: fe.Field(), Reason: validationReason(fe)}
	}

	competitor := &domain.Competitor{
		RaceID:      input.RaceID,
		CourseID:    input.CourseID,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Club:        input.Club,
		CardNumber:  input.CardNumber,
		StartNumber: input.StartNumber,
	}

	dup, reason, err := s.competitors.HasDuplicate(ctx, competitor)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if dup {
		return nil, &ValidationError{Field: "competitor", Reason: reason}
	}

	if err := s.competitors.Create(ctx, competitor); err != nil {
		return nil, fmt.Errorf("failed to register competitor: %w", err)
	}

	s.logger.Info().
		Str("competitor_id", competitor.ID).
		Str("race_id", competitor.RaceID).
		Int("card", competitor.CardNumber).
		Msg("competitor registered")
	return competitor, nil
}

// List returns the competitors of a race in start number order.
func (s *CompetitorService) List(ctx context.Context, raceID string) ([]domain.Competitor, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	return s.competitors.ListByRace(ctx, raceID)
}

func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
