package sync

import (
	"context"
	"time"

	"ardf-results/internal/constants"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Scheduler triggers an export run for every enabled service at a fixed
// interval. It is the host-side trigger; the engine owns the delivery
// contract itself.
type Scheduler struct {
	engine   *Engine
	services ServiceStore
	clock    clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(engine *Engine, services ServiceStore, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		services: services,
		clock:    clock,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sync scheduler started")
	for {
		select {
		case <-s.stop:
			s.logger.Info().Msg("sync scheduler stopped")
			return
		case <-ticker.Chan():
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ExportTimeout)
	defer cancel()

	services, err := s.services.ListEnabled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list enabled services")
		return
	}

	for _, svc := range services {
		if err := s.engine.ExportResults(ctx, svc.ID); err != nil {
			s.logger.Error().Err(err).Str("service_id", svc.ID).Msg("export run failed")
		}
	}
}
