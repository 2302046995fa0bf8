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

type RaceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRaceRepository(db *sql.DB, logger zerolog.Logger) *RaceRepository {
	return &RaceRepository{db: db, logger: logger}
}

func (r *RaceRepository) Create(ctx context.Context, race *domain.Race) error {
	if race.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate race id: %w", err)
		}
		race.ID = id
	}
	now := time.Now()
	race.CreatedAt = now
	race.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO races (id, name, date, zero_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		race.ID, race.Name, race.Date, race.ZeroTime, race.CreatedAt, race.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert race: %w", err)
	}

	r.logger.Info().Str("race_id", race.ID).Str("name", race.Name).Msg("race created")
	return nil
}

func (r *RaceRepository) Get(ctx context.Context, id string) (*domain.Race, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, date, zero_time, created_at, updated_at
		FROM races WHERE id = ?`, id)

	var race domain.Race
	err := row.Scan(&race.ID, &race.Name, &race.Date, &race.ZeroTime,
		&race.CreatedAt, &race.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &race, nil
}

func (r *RaceRepository) List(ctx context.Context) ([]domain.Race, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, date, zero_time, created_at, updated_at
		FROM races ORDER BY date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var races []domain.Race
	for rows.Next() {
		var race domain.Race
		if err := rows.Scan(&race.ID, &race.Name, &race.Date, &race.ZeroTime,
			&race.CreatedAt, &race.UpdatedAt); err != nil {
			return nil, err
		}
		races = append(races, race)
	}
	return races, rows.Err()
}
