package sync

import (
	"context"
	"errors"
	"fmt"
	"net"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valyala/fasthttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ardf-results/internal/api"
	"ardf-results/internal/domain"
	"ardf-results/internal/repository"
	"ardf-results/internal/timing"
)

type transportCall struct {
	url         string
	apiKey      string
	contentType string
	body        []byte
}

type fakeTransport struct {
	mu      gosync.Mutex
	calls   []transportCall
	resp    *api.Response
	err     error
	started chan struct{} // signaled once a call is in flight, when set
	release chan struct{} // blocks the call until closed, when set
}

func (t *fakeTransport) Post(_ context.Context, url, apiKey, contentType string, body []byte) (*api.Response, error) {
	t.mu.Lock()
	t.calls = append(t.calls, transportCall{url: url, apiKey: apiKey, contentType: contentType, body: body})
	started := t.started
	release := t.release
	t.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if t.err != nil {
		return nil, t.err
	}
	return t.resp, nil
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type fakeResults struct {
	mu     gosync.Mutex
	unsent []repository.ResultWithCompetitor
	all    []repository.ResultWithCompetitor
	sent   []string
	reset  []string
}

func (f *fakeResults) ListByRace(_ context.Context, _ string) ([]repository.ResultWithCompetitor, error) {
	return f.all, nil
}

func (f *fakeResults) ListUnsent(_ context.Context, _ string) ([]repository.ResultWithCompetitor, error) {
	return f.unsent, nil
}

func (f *fakeResults) MarkSent(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ids...)
	return nil
}

func (f *fakeResults) ResetSent(_ context.Context, raceID string) error {
	f.reset = append(f.reset, raceID)
	return nil
}

type statusUpdate struct {
	status    domain.ServiceStatus
	errorText string
	sentCount int
}

type fakeServices struct {
	mu      gosync.Mutex
	svc     domain.ResultServiceConfig
	updates []statusUpdate
	resets  []string
}

func (f *fakeServices) Get(_ context.Context, _ string) (*domain.ResultServiceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc := f.svc
	return &svc, nil
}

func (f *fakeServices) ListEnabled(_ context.Context) ([]domain.ResultServiceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []domain.ResultServiceConfig{f.svc}, nil
}

func (f *fakeServices) UpdateStatus(_ context.Context, _ string, status domain.ServiceStatus, errorText string, sentCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.svc.Status = status
	f.svc.ErrorText = errorText
	f.svc.SentCount = sentCount
	f.updates = append(f.updates, statusUpdate{status: status, errorText: errorText, sentCount: sentCount})
	return nil
}

func (f *fakeServices) ResetSentCounts(_ context.Context, raceID string) error {
	f.resets = append(f.resets, raceID)
	return nil
}

func (f *fakeServices) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeCompetitors struct {
	list []domain.Competitor
}

func (f *fakeCompetitors) ListByRace(_ context.Context, _ string) ([]domain.Competitor, error) {
	return f.list, nil
}

func pendingResult(id string, startNumber, card int, first, last string) repository.ResultWithCompetitor {
	start := timing.New(10*3600, 0, 0)
	finish := timing.New(11*3600, 0, 0)
	return repository.ResultWithCompetitor{
		Result: domain.Result{
			ID:         "res-" + id,
			RaceID:     "race-1",
			Status:     domain.StatusOK,
			StartTime:  &start,
			FinishTime: &finish,
			RunTime:    time.Hour,
		},
		Competitor: domain.Competitor{
			ID:          "comp-" + id,
			RaceID:      "race-1",
			StartNumber: startNumber,
			CardNumber:  card,
			FirstName:   first,
			LastName:    last,
		},
	}
}

func runningService(t domain.ServiceType) domain.ResultServiceConfig {
	return domain.ResultServiceConfig{
		ID:          "svc-1",
		RaceID:      "race-1",
		ServiceType: t,
		URL:         "https://results.example/upload",
		APIKey:      "key",
		Status:      domain.ServiceRunning,
		Enabled:     true,
	}
}

func newTestEngine(transport Transport, results ResultStore, services ServiceStore, competitors CompetitorStore) *Engine {
	return NewEngine(transport, results, services, competitors, zerolog.Nop())
}

func TestExportNothingUnsentIsNoOp(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: &api.Response{StatusCode: 200}}
	results := &fakeResults{}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Zero(t, transport.callCount(), "no transport call expected")
	assert.Empty(t, services.updates, "no status change expected")
	assert.Empty(t, results.sent)
}

func TestExportUnauthorized(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: &api.Response{StatusCode: 401, Body: []byte("invalid api key")}}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Equal(t, domain.ServiceUnauthorized, services.svc.Status)
	assert.Equal(t, "invalid api key", services.svc.ErrorText)
	assert.Empty(t, results.sent, "no result may be marked sent on 401")
}

func TestExportServerError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: &api.Response{StatusCode: 500, Body: []byte("boom")}}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Equal(t, domain.ServiceError, services.svc.Status)
	assert.Contains(t, services.svc.ErrorText, "boom")
	assert.Empty(t, results.sent)
}

func TestExportConnectivityFailure(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Equal(t, domain.ServiceNoNetwork, services.svc.Status)
	assert.Empty(t, results.sent)
}

func TestExportTimeoutIsGenericError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{err: fasthttp.ErrTimeout}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Equal(t, domain.ServiceError, services.svc.Status)
	assert.NotEmpty(t, services.svc.ErrorText)
	assert.Empty(t, results.sent)
}

func TestExportRejectionPartition(t *testing.T) {
	t.Parallel()

	idx := 1
	body := fmt.Sprintf(`{
		"accepted": 1,
		"rejected": [
			{"index": %d, "reason": "unknown category"},
			{"card_number": 3003, "first_name": "Eva", "last_name": "Mala", "reason": "duplicate"}
		]
	}`, idx)
	transport := &fakeTransport{resp: &api.Response{StatusCode: 200, Body: []byte(body)}}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
		pendingResult("2", 2, 2002, "Petr", "Svoboda"),
		pendingResult("3", 3, 3003, "Eva", "Mala"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Equal(t, []string{"res-1"}, results.sent, "only the unrejected result is marked sent")
	assert.Equal(t, domain.ServiceRunning, services.svc.Status)
	assert.Equal(t, 1, services.svc.SentCount)
	assert.Contains(t, services.svc.ErrorText, "Petr Svoboda: unknown category")
	assert.Contains(t, services.svc.ErrorText, "Eva Mala: duplicate")
}

func TestExportInitializesServiceFirst(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: &api.Response{StatusCode: 200}}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	svc := runningService(domain.ServiceOResults)
	svc.Status = domain.ServiceInit
	services := &fakeServices{svc: svc}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	require.NotEmpty(t, services.updates)
	assert.Equal(t, domain.ServiceRunning, services.updates[0].status, "init transitions to RUNNING")
	assert.Equal(t, []string{"res-1"}, results.sent)
}

func TestInitFailureLeavesStatusUnchanged(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{err: errors.New("connection refused")}
	svc := runningService(domain.ServiceLiveresultat)
	svc.Status = domain.ServiceInit
	services := &fakeServices{svc: svc}
	competitors := &fakeCompetitors{list: []domain.Competitor{{ID: "c1", FirstName: "Jana", LastName: "Nova"}}}
	engine := newTestEngine(transport, &fakeResults{}, services, competitors)

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	assert.Equal(t, domain.ServiceInit, services.svc.Status, "failed init is retried next run")
	assert.Empty(t, services.updates)
}

func TestLiveresultatWholePayload(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: &api.Response{StatusCode: 200}}
	results := &fakeResults{all: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
		pendingResult("2", 2, 2002, "Petr", "Svoboda"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceLiveresultat)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ExportResults(context.Background(), "svc-1"))

	require.Equal(t, 1, transport.callCount())
	assert.Equal(t, "application/xml", transport.calls[0].contentType)
	assert.Contains(t, string(transport.calls[0].body), "Svoboda")
	assert.Equal(t, 2, services.svc.SentCount, "counter reflects last upload size")
	assert.Empty(t, results.sent, "whole-payload services never mark results sent")
}

func TestConcurrentExportsCoalesced(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{
		resp:    &api.Response{StatusCode: 200},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = engine.ExportResults(context.Background(), "svc-1")
	}()

	<-transport.started // first call is in flight

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = engine.ExportResults(context.Background(), "svc-1")
	}()

	// give the second call a chance to join the in-flight group
	time.Sleep(50 * time.Millisecond)
	close(transport.release)
	wg.Wait()

	assert.Equal(t, 1, transport.callCount(), "concurrent exports for one service share a single run")
}

func TestUnknownServiceTypeRejected(t *testing.T) {
	t.Parallel()

	svc := runningService("mystery")
	services := &fakeServices{svc: svc}
	engine := newTestEngine(&fakeTransport{}, &fakeResults{}, services, &fakeCompetitors{})

	err := engine.ExportResults(context.Background(), "svc-1")
	require.ErrorIs(t, err, ErrUnknownServiceType)
}

func TestResendAll(t *testing.T) {
	t.Parallel()

	results := &fakeResults{}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(&fakeTransport{}, results, services, &fakeCompetitors{})

	require.NoError(t, engine.ResendAll(context.Background(), "race-1"))
	assert.Equal(t, []string{"race-1"}, results.reset)
	assert.Equal(t, []string{"race-1"}, services.resets)
}

func TestSchedulerTriggersExport(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{resp: &api.Response{StatusCode: 200}}
	results := &fakeResults{unsent: []repository.ResultWithCompetitor{
		pendingResult("1", 1, 1001, "Jana", "Nova"),
	}}
	services := &fakeServices{svc: runningService(domain.ServiceOResults)}
	engine := newTestEngine(transport, results, services, &fakeCompetitors{})

	clock := clockwork.NewFakeClock()
	scheduler := NewScheduler(engine, services, clock, 30*time.Second, zerolog.Nop())
	scheduler.Start()
	defer scheduler.Stop()

	clock.BlockUntil(1) // ticker registered
	clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		return transport.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ServiceRunning, services.svc.Status)
}
