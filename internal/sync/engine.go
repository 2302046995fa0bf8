package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"ardf-results/internal/api"
	"ardf-results/internal/domain"
	"ardf-results/internal/repository"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownServiceType is returned by the exporter factory for a service
// type no variant is registered for.
var ErrUnknownServiceType = errors.New("unknown service type")

// Transport sends one payload and reports the raw status code and body.
type Transport interface {
	Post(ctx context.Context, url, apiKey, contentType string, body []byte) (*api.Response, error)
}

// ResultStore is the slice of the result repository the engine needs.
type ResultStore interface {
	ListByRace(ctx context.Context, raceID string) ([]repository.ResultWithCompetitor, error)
	ListUnsent(ctx context.Context, raceID string) ([]repository.ResultWithCompetitor, error)
	MarkSent(ctx context.Context, ids []string) error
	ResetSent(ctx context.Context, raceID string) error
}

// ServiceStore persists result service state between sync runs.
type ServiceStore interface {
	Get(ctx context.Context, id string) (*domain.ResultServiceConfig, error)
	ListEnabled(ctx context.Context) ([]domain.ResultServiceConfig, error)
	UpdateStatus(ctx context.Context, id string, status domain.ServiceStatus, errorText string, sentCount int) error
	ResetSentCounts(ctx context.Context, raceID string) error
}

// CompetitorStore supplies start lists for exporters that publish them.
type CompetitorStore interface {
	ListByRace(ctx context.Context, raceID string) ([]domain.Competitor, error)
}

// RejectedResult is one record a service refused, kept for the error report.
type RejectedResult struct {
	CompetitorID string
	Name         string
	Reason       string
}

// Report summarizes one export run.
type Report struct {
	NoOp      bool // nothing unsent, no transport call was made
	SentCount int  // value the service's sent counter should show now
	Rejected  []RejectedResult
}

// Exporter is one result publisher variant. Implementations perform the
// transport calls; the engine owns all status bookkeeping.
type Exporter interface {
	// Init performs optional one-time setup such as a start list upload.
	Init(ctx context.Context, svc *domain.ResultServiceConfig) error
	// Export delivers pending results and marks delivered ones sent.
	Export(ctx context.Context, svc *domain.ResultServiceConfig) (*Report, error)
}

// serverError is a transport-level success carrying a non-2xx HTTP status.
type serverError struct {
	Code    int
	Message string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Engine drives result delivery to configured services. Concurrent export
// calls for the same service are coalesced; the engine is the only writer of
// service status and result sent flags.
type Engine struct {
	transport   Transport
	results     ResultStore
	services    ServiceStore
	competitors CompetitorStore
	logger      zerolog.Logger
	group       singleflight.Group
}

func NewEngine(transport Transport, results ResultStore, services ServiceStore, competitors CompetitorStore, logger zerolog.Logger) *Engine {
	return &Engine{
		transport:   transport,
		results:     results,
		services:    services,
		competitors: competitors,
		logger:      logger,
	}
}

// exporterFor selects the publisher variant for a service type. Callers
// never branch on the type themselves.
func (e *Engine) exporterFor(t domain.ServiceType) (Exporter, error) {
	switch t {
	case domain.ServiceOResults:
		return &oresultsExporter{transport: e.transport, results: e.results, logger: e.logger}, nil
	case domain.ServiceLiveresultat:
		return &liveresultatExporter{transport: e.transport, results: e.results, competitors: e.competitors, logger: e.logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownServiceType, t)
	}
}

// ExportResults runs one delivery cycle for the service. A service that has
// never been initialized is initialized first; init failures are logged and
// left for the next scheduled run. Delivery failures are captured as service
// state, never returned as errors to the scheduler.
func (e *Engine) ExportResults(ctx context.Context, serviceID string) error {
	_, err, _ := e.group.Do(serviceID, func() (any, error) {
		return nil, e.exportOnce(ctx, serviceID)
	})
	return err
}

func (e *Engine) exportOnce(ctx context.Context, serviceID string) error {
	svc, err := e.services.Get(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("failed to load service %s: %w", serviceID, err)
	}

	exporter, err := e.exporterFor(svc.ServiceType)
	if err != nil {
		return err
	}

	logger := e.logger.With().
		Str("service_id", svc.ID).
		Str("service_type", string(svc.ServiceType)).
		Logger()

	if svc.Status == domain.ServiceInit {
		if err := exporter.Init(ctx, svc); err != nil {
			// non-fatal: the status stays INIT and the next run retries
			logger.Warn().Err(err).Msg("service init failed")
			return nil
		}
		svc.Status = domain.ServiceRunning
		if err := e.services.UpdateStatus(ctx, svc.ID, svc.Status, "", svc.SentCount); err != nil {
			return fmt.Errorf("failed to persist init: %w", err)
		}
		logger.Info().Msg("service initialized")
	}

	report, err := exporter.Export(ctx, svc)
	if err != nil {
		status, detail := classifyFailure(err)
		logger.Warn().Err(err).Str("status", string(status)).Msg("export failed")
		if err := e.services.UpdateStatus(ctx, svc.ID, status, detail, svc.SentCount); err != nil {
			return fmt.Errorf("failed to record export failure: %w", err)
		}
		return nil
	}

	if report.NoOp {
		logger.Debug().Msg("nothing to export")
		return nil
	}

	errorText := rejectionSummary(report.Rejected)
	if err := e.services.UpdateStatus(ctx, svc.ID, domain.ServiceRunning, errorText, report.SentCount); err != nil {
		return fmt.Errorf("failed to record export success: %w", err)
	}

	logger.Info().
		Int("sent_count", report.SentCount).
		Int("rejected", len(report.Rejected)).
		Msg("results exported")
	return nil
}

// ResendAll resets a race's results to unsent and zeroes service counters,
// the sole recovery path after a sustained error state.
func (e *Engine) ResendAll(ctx context.Context, raceID string) error {
	if err := e.results.ResetSent(ctx, raceID); err != nil {
		return err
	}
	if err := e.services.ResetSentCounts(ctx, raceID); err != nil {
		return err
	}
	e.logger.Info().Str("race_id", raceID).Msg("full resend scheduled")
	return nil
}

// classifyFailure maps an export error to service state. Authorization
// failures and connectivity loss get their own states; everything else,
// timeouts included, is a generic ERROR.
func classifyFailure(err error) (domain.ServiceStatus, string) {
	var se *serverError
	if errors.As(err, &se) {
		if se.Code == fasthttp.StatusUnauthorized {
			return domain.ServiceUnauthorized, se.Message
		}
		return domain.ServiceError, se.Message
	}
	if isConnectivityError(err) {
		return domain.ServiceNoNetwork, err.Error()
	}
	return domain.ServiceError, err.Error()
}

// isConnectivityError recognizes failures to reach the service at all, as
// opposed to a reachable service answering slowly or badly.
func isConnectivityError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, fasthttp.ErrDialTimeout) ||
		errors.Is(err, fasthttp.ErrConnectionClosed) ||
		errors.Is(err, fasthttp.ErrNoFreeConns)
}

func rejectionSummary(rejected []RejectedResult) string {
	if len(rejected) == 0 {
		return ""
	}
	parts := make([]string, len(rejected))
	for i, r := range rejected {
		parts[i] = fmt.Sprintf("%s: %s", r.Name, r.Reason)
	}
	return fmt.Sprintf("%d rejected: %s", len(rejected), strings.Join(parts, "; "))
}
