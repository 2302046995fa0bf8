package fx

import (
	"ardf-results/internal/api"
	"ardf-results/internal/config"
	"ardf-results/internal/database"
	"ardf-results/internal/logger"
	"ardf-results/internal/repository"
	"ardf-results/internal/server"
	"ardf-results/internal/service"
	"ardf-results/internal/sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideEngine(
	client *api.Client,
	results *repository.ResultRepository,
	services *repository.ServiceConfigRepository,
	competitors *repository.CompetitorRepository,
	logger zerolog.Logger,
) *sync.Engine {
	return sync.NewEngine(client, results, services, competitors, logger)
}

func ProvideScheduler(
	engine *sync.Engine,
	services *repository.ServiceConfigRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *sync.Scheduler {
	return sync.NewScheduler(engine, services, clockwork.NewRealClock(), cfg.SyncInterval, logger)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewRaceRepository),
	fx.Provide(repository.NewCourseRepository),
	fx.Provide(repository.NewCompetitorRepository),
	fx.Provide(repository.NewResultRepository),
	fx.Provide(repository.NewServiceConfigRepository),
	// transport
	fx.Provide(api.NewClient),
	// sync
	fx.Provide(ProvideEngine),
	fx.Provide(ProvideScheduler),
	// svc
	fx.Provide(service.NewRaceService),
	fx.Provide(service.NewCompetitorService),
	fx.Provide(service.NewReadoutService),
	fx.Provide(service.NewResultService),
	// server
	fx.Provide(server.NewResultsServer),
)
