package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ardf-results/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type CompetitorRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCompetitorRepository(db *sql.DB, logger zerolog.Logger) *CompetitorRepository {
	return &CompetitorRepository{db: db, logger: logger}
}

const competitorColumns = `id, race_id, course_id, first_name, last_name, club,
	card_number, start_number, created_at, updated_at`

func (r *CompetitorRepository) Create(ctx context.Context, c *domain.Competitor) error {
	if c.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate competitor id: %w", err)
		}
		c.ID = id
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO competitors (`+competitorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RaceID, c.CourseID, c.FirstName, c.LastName, c.Club,
		c.CardNumber, c.StartNumber, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert competitor: %w", err)
	}

	r.logger.Debug().
		Str("competitor_id", c.ID).
		Str("name", c.FirstName+" "+c.LastName).
		Int("card", c.CardNumber).
		Msg("competitor created")
	return nil
}

func (r *CompetitorRepository) Get(ctx context.Context, id string) (*domain.Competitor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+competitorColumns+` FROM competitors WHERE id = ?`, id)
	return scanCompetitor(row)
}

// GetByCard resolves a competitor from a card number within one race. This is
// how a readout finds its owner.
func (r *CompetitorRepository) GetByCard(ctx context.Context, raceID string, cardNumber int) (*domain.Competitor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+competitorColumns+` FROM competitors WHERE race_id = ? AND card_number = ?`,
		raceID, cardNumber)
	return scanCompetitor(row)
}

func (r *CompetitorRepository) ListByRace(ctx context.Context, raceID string) ([]domain.Competitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+competitorColumns+` FROM competitors WHERE race_id = ? ORDER BY start_number`,
		raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var competitors []domain.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, err
		}
		competitors = append(competitors, *c)
	}
	return competitors, rows.Err()
}

// HasDuplicate reports whether another competitor in the race already uses
// the given name, card number or start number.
func (r *CompetitorRepository) HasDuplicate(ctx context.Context, c *domain.Competitor) (bool, string, error) {
	checks := []struct {
		reason string
		query  string
		args   []any
	}{
		{
			reason: "duplicate name",
			query:  `SELECT COUNT(*) FROM competitors WHERE race_id = ? AND first_name = ? AND last_name = ? AND id != ?`,
			args:   []any{c.RaceID, c.FirstName, c.LastName, c.ID},
		},
		{
			reason: "duplicate card number",
			query:  `SELECT COUNT(*) FROM competitors WHERE race_id = ? AND card_number = ? AND id != ?`,
			args:   []any{c.RaceID, c.CardNumber, c.ID},
		},
		{
			reason: "duplicate start number",
			query:  `SELECT COUNT(*) FROM competitors WHERE race_id = ? AND start_number = ? AND id != ?`,
			args:   []any{c.RaceID, c.StartNumber, c.ID},
		},
	}

	for _, check := range checks {
		var count int
		if err := r.db.QueryRowContext(ctx, check.query, check.args...).Scan(&count); err != nil {
			return false, "", err
		}
		if count > 0 {
			return true, check.reason, nil
		}
	}
	return false, "", nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompetitor(row rowScanner) (*domain.Competitor, error) {
	var c domain.Competitor
	err := row.Scan(&c.ID, &c.RaceID, &c.CourseID, &c.FirstName, &c.LastName,
		&c.Club, &c.CardNumber, &c.StartNumber, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &c, nil
}
