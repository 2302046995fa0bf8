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

type ResultRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewResultRepository(db *sql.DB, logger zerolog.Logger) *ResultRepository {
	return &ResultRepository{db: db, logger: logger}
}

// ResultWithCompetitor pairs a result with its owner for ranking and export.
type ResultWithCompetitor struct {
	Result     domain.Result
	Competitor domain.Competitor
}

// Save upserts the result and replaces its punch list in one transaction, so
// a re-readout can never leave a result paired with stale punches.
func (r *ResultRepository) Save(ctx context.Context, result *domain.Result) error {
	if result.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate result id: %w", err)
		}
		result.ID = id
		result.CreatedAt = time.Now()
	}
	result.UpdatedAt = time.Now()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = result.UpdatedAt
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (id, competitor_id, race_id, status, automatic_status,
			check_time, start_time, finish_time, run_time_s, modified, sent,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (competitor_id) DO UPDATE SET
			status = excluded.status,
			automatic_status = excluded.automatic_status,
			check_time = excluded.check_time,
			start_time = excluded.start_time,
			finish_time = excluded.finish_time,
			run_time_s = excluded.run_time_s,
			modified = excluded.modified,
			sent = excluded.sent,
			updated_at = excluded.updated_at`,
		result.ID, result.CompetitorID, result.RaceID, string(result.Status),
		result.AutomaticStatus, timeValueArg(result.CheckTime),
		timeValueArg(result.StartTime), timeValueArg(result.FinishTime),
		int(result.RunTime.Seconds()), result.Modified, result.Sent,
		result.CreatedAt, result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert result: %w", err)
	}

	// the upsert keeps the original row id on conflict
	var storedID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM results WHERE competitor_id = ?`, result.CompetitorID).Scan(&storedID)
	if err != nil {
		return fmt.Errorf("failed to read back result id: %w", err)
	}
	result.ID = storedID

	if _, err = tx.ExecContext(ctx, `DELETE FROM punches WHERE result_id = ?`, result.ID); err != nil {
		return fmt.Errorf("failed to clear punches: %w", err)
	}
	for _, p := range result.Punches {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO punches (result_id, sequence, code, punch_time, valid)
			VALUES (?, ?, ?, ?, ?)`,
			result.ID, p.Sequence, p.Code, p.Time.String(), p.Valid)
		if err != nil {
			return fmt.Errorf("failed to insert punch %d: %w", p.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}

	r.logger.Debug().
		Str("result_id", result.ID).
		Str("competitor_id", result.CompetitorID).
		Str("status", string(result.Status)).
		Int("punches", len(result.Punches)).
		Msg("result saved")
	return nil
}

func (r *ResultRepository) GetByCompetitor(ctx context.Context, competitorID string) (*domain.Result, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, competitor_id, race_id, status, automatic_status,
			check_time, start_time, finish_time, run_time_s, modified, sent,
			created_at, updated_at
		FROM results WHERE competitor_id = ?`, competitorID)

	result, err := scanResult(row)
	if err != nil {
		return nil, err
	}
	if result.Punches, err = r.punches(ctx, result.ID); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByRace returns all results for a race joined with their competitors,
// punches included.
func (r *ResultRepository) ListByRace(ctx context.Context, raceID string) ([]ResultWithCompetitor, error) {
	return r.list(ctx, `WHERE res.race_id = ?`, raceID)
}

// ListUnsent returns results not yet delivered, in competitor start order.
func (r *ResultRepository) ListUnsent(ctx context.Context, raceID string) ([]ResultWithCompetitor, error) {
	return r.list(ctx, `WHERE res.race_id = ? AND res.sent = FALSE`, raceID)
}

func (r *ResultRepository) list(ctx context.Context, where string, args ...any) ([]ResultWithCompetitor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT res.id, res.competitor_id, res.race_id, res.status, res.automatic_status,
			res.check_time, res.start_time, res.finish_time, res.run_time_s,
			res.modified, res.sent, res.created_at, res.updated_at,
			c.id, c.race_id, c.course_id, c.first_name, c.last_name, c.club,
			c.card_number, c.start_number, c.created_at, c.updated_at
		FROM results res
		JOIN competitors c ON c.id = res.competitor_id
		`+where+` ORDER BY c.start_number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultWithCompetitor
	for rows.Next() {
		var res domain.Result
		var c domain.Competitor
		var status string
		var check, start, finish sql.NullString
		var runSec int
		err := rows.Scan(&res.ID, &res.CompetitorID, &res.RaceID, &status,
			&res.AutomaticStatus, &check, &start, &finish, &runSec,
			&res.Modified, &res.Sent, &res.CreatedAt, &res.UpdatedAt,
			&c.ID, &c.RaceID, &c.CourseID, &c.FirstName, &c.LastName, &c.Club,
			&c.CardNumber, &c.StartNumber, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if err := fillResult(&res, status, check, start, finish, runSec); err != nil {
			return nil, err
		}
		out = append(out, ResultWithCompetitor{Result: res, Competitor: c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Result.Punches, err = r.punches(ctx, out[i].Result.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ResultRepository) punches(ctx context.Context, resultID string) ([]domain.Punch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, code, punch_time, valid FROM punches
		WHERE result_id = ? ORDER BY sequence`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var punches []domain.Punch
	for rows.Next() {
		var p domain.Punch
		var ts string
		if err := rows.Scan(&p.Sequence, &p.Code, &ts, &p.Valid); err != nil {
			return nil, err
		}
		tv, err := scanTimeValue(sql.NullString{String: ts, Valid: true})
		if err != nil {
			return nil, fmt.Errorf("result %s punch %d: %w", resultID, p.Sequence, err)
		}
		p.Time = *tv
		punches = append(punches, p)
	}
	return punches, rows.Err()
}

// MarkSent flags the given results as delivered.
func (r *ResultRepository) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE results SET sent = TRUE, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("failed to mark result %s sent: %w", id, err)
		}
	}
	return tx.Commit()
}

// ResetSent flags every result of the race as unsent, forcing the next export
// to retransmit everything.
func (r *ResultRepository) ResetSent(ctx context.Context, raceID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE results SET sent = FALSE, updated_at = ? WHERE race_id = ?`,
		time.Now(), raceID)
	if err != nil {
		return fmt.Errorf("failed to reset sent flags: %w", err)
	}
	r.logger.Info().Str("race_id", raceID).Msg("results reset to unsent")
	return nil
}

func scanResult(row rowScanner) (*domain.Result, error) {
	var res domain.Result
	var status string
	var check, start, finish sql.NullString
	var runSec int
	err := row.Scan(&res.ID, &res.CompetitorID, &res.RaceID, &status,
		&res.AutomaticStatus, &check, &start, &finish, &runSec,
		&res.Modified, &res.Sent, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if err := fillResult(&res, status, check, start, finish, runSec); err != nil {
		return nil, err
	}
	return &res, nil
}

func fillResult(res *domain.Result, status string, check, start, finish sql.NullString, runSec int) error {
	var err error
	if res.Status, err = domain.ParseResultStatus(status); err != nil {
		return fmt.Errorf("result %s: %w", res.ID, err)
	}
	if res.CheckTime, err = scanTimeValue(check); err != nil {
		return fmt.Errorf("result %s check time: %w", res.ID, err)
	}
	if res.StartTime, err = scanTimeValue(start); err != nil {
		return fmt.Errorf("result %s start time: %w", res.ID, err)
	}
	if res.FinishTime, err = scanTimeValue(finish); err != nil {
		return fmt.Errorf("result %s finish time: %w", res.ID, err)
	}
	res.RunTime = time.Duration(runSec) * time.Second
	return nil
}
