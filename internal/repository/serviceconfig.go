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

type ServiceConfigRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewServiceConfigRepository(db *sql.DB, logger zerolog.Logger) *ServiceConfigRepository {
	return &ServiceConfigRepository{db: db, logger: logger}
}

const serviceColumns = `id, race_id, service_type, url, api_key, status,
	sent_count, error_text, enabled, created_at, updated_at`

func (r *ServiceConfigRepository) Create(ctx context.Context, svc *domain.ResultServiceConfig) error {
	if svc.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate service id: %w", err)
		}
		svc.ID = id
	}
	if svc.Status == "" {
		svc.Status = domain.ServiceInit
	}
	now := time.Now()
	svc.CreatedAt = now
	svc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO result_services (`+serviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.RaceID, string(svc.ServiceType), svc.URL, svc.APIKey,
		string(svc.Status), svc.SentCount, svc.ErrorText, svc.Enabled,
		svc.CreatedAt, svc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert result service: %w", err)
	}

	r.logger.Info().
		Str("service_id", svc.ID).
		Str("type", string(svc.ServiceType)).
		Str("url", svc.URL).
		Msg("result service configured")
	return nil
}

func (r *ServiceConfigRepository) Get(ctx context.Context, id string) (*domain.ResultServiceConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM result_services WHERE id = ?`, id)
	return scanService(row)
}

func (r *ServiceConfigRepository) ListByRace(ctx context.Context, raceID string) ([]domain.ResultServiceConfig, error) {
	return r.list(ctx, `WHERE race_id = ?`, raceID)
}

// ListEnabled returns every enabled service across races, for the scheduler.
func (r *ServiceConfigRepository) ListEnabled(ctx context.Context) ([]domain.ResultServiceConfig, error) {
	return r.list(ctx, `WHERE enabled = TRUE`)
}

func (r *ServiceConfigRepository) list(ctx context.Context, where string, args ...any) ([]domain.ResultServiceConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM result_services `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []domain.ResultServiceConfig
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *svc)
	}
	return services, rows.Err()
}

// UpdateStatus records the sync outcome for display: the new status, the
// error detail (empty on success) and the running sent counter.
func (r *ServiceConfigRepository) UpdateStatus(ctx context.Context, id string, status domain.ServiceStatus, errorText string, sentCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE result_services SET status = ?, error_text = ?, sent_count = ?, updated_at = ?
		WHERE id = ?`,
		string(status), errorText, sentCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update service status: %w", err)
	}
	return nil
}

func (r *ServiceConfigRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE result_services SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to toggle service: %w", err)
	}
	return nil
}

// ResetSentCounts zeroes the sent counters of a race's services, part of the
// full resend action.
func (r *ServiceConfigRepository) ResetSentCounts(ctx context.Context, raceID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE result_services SET sent_count = 0, updated_at = ? WHERE race_id = ?`,
		time.Now(), raceID)
	if err != nil {
		return fmt.Errorf("failed to reset sent counts: %w", err)
	}
	return nil
}

func scanService(row rowScanner) (*domain.ResultServiceConfig, error) {
	var svc domain.ResultServiceConfig
	var serviceType, status string
	err := row.Scan(&svc.ID, &svc.RaceID, &serviceType, &svc.URL, &svc.APIKey,
		&status, &svc.SentCount, &svc.ErrorText, &svc.Enabled,
		&svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if svc.ServiceType, err = domain.ParseServiceType(serviceType); err != nil {
		return nil, fmt.Errorf("service %s: %w", svc.ID, err)
	}
	if svc.Status, err = domain.ParseServiceStatus(status); err != nil {
		return nil, fmt.Errorf("service %s: %w", svc.ID, err)
	}
	return &svc, nil
}
