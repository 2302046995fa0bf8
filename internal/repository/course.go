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

type CourseRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCourseRepository(db *sql.DB, logger zerolog.Logger) *CourseRepository {
	return &CourseRepository{db: db, logger: logger}
}

// Create saves the course together with its control points and alias set in
// one transaction.
func (r *CourseRepository) Create(ctx context.Context, course *domain.Course) error {
	if course.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate course id: %w", err)
		}
		course.ID = id
	}
	now := time.Now()
	course.CreatedAt = now
	course.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO courses (id, race_id, name, race_type, time_limit_s, min_controls, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		course.ID, course.RaceID, course.Name, string(course.RaceType),
		int(course.TimeLimit.Seconds()), course.MinControls,
		course.CreatedAt, course.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert course: %w", err)
	}

	for _, cp := range course.Controls {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO control_points (course_id, position, code, kind)
			VALUES (?, ?, ?, ?)`,
			course.ID, cp.Order, cp.Code, string(cp.Kind))
		if err != nil {
			return fmt.Errorf("failed to insert control point %d: %w", cp.Code, err)
		}
	}

	for _, a := range course.Aliases {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO aliases (course_id, physical_code, logical_code)
			VALUES (?, ?, ?)`,
			course.ID, a.PhysicalCode, a.LogicalCode)
		if err != nil {
			return fmt.Errorf("failed to insert alias %d: %w", a.PhysicalCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit course: %w", err)
	}

	r.logger.Info().
		Str("course_id", course.ID).
		Str("race_id", course.RaceID).
		Int("controls", len(course.Controls)).
		Msg("course created")
	return nil
}

func (r *CourseRepository) Get(ctx context.Context, id string) (*domain.Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, race_id, name, race_type, time_limit_s, min_controls, created_at, updated_at
		FROM courses WHERE id = ?`, id)

	var course domain.Course
	var raceType string
	var limitSec int
	err := row.Scan(&course.ID, &course.RaceID, &course.Name, &raceType,
		&limitSec, &course.MinControls, &course.CreatedAt, &course.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}

	course.RaceType, err = domain.ParseRaceType(raceType)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", id, err)
	}
	course.TimeLimit = time.Duration(limitSec) * time.Second

	if course.Controls, err = r.controls(ctx, id); err != nil {
		return nil, err
	}
	if course.Aliases, err = r.aliases(ctx, id); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) controls(ctx context.Context, courseID string) ([]domain.ControlPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, code, kind FROM control_points
		WHERE course_id = ? ORDER BY position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var controls []domain.ControlPoint
	for rows.Next() {
		var cp domain.ControlPoint
		var kind string
		if err := rows.Scan(&cp.Order, &cp.Code, &kind); err != nil {
			return nil, err
		}
		if cp.Kind, err = domain.ParseControlKind(kind); err != nil {
			return nil, fmt.Errorf("course %s: %w", courseID, err)
		}
		controls = append(controls, cp)
	}
	return controls, rows.Err()
}

func (r *CourseRepository) aliases(ctx context.Context, courseID string) ([]domain.Alias, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT physical_code, logical_code FROM aliases
		WHERE course_id = ? ORDER BY physical_code`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []domain.Alias
	for rows.Next() {
		var a domain.Alias
		if err := rows.Scan(&a.PhysicalCode, &a.LogicalCode); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}
