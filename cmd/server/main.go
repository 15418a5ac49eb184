package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/tallyhq/tally/internal/api"
	v1 "github.com/tallyhq/tally/internal/api/v1"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	"github.com/tallyhq/tally/internal/dynamodb"
	"github.com/tallyhq/tally/internal/geo"
	"github.com/tallyhq/tally/internal/kafka"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/publisher"
	"github.com/tallyhq/tally/internal/repository"
	"github.com/tallyhq/tally/internal/service"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/validator"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Optional backends
			dynamodb.NewClient,
			kafka.NewProducer,

			// Geo resolution
			geo.NewResolver,

			// Event log
			publisher.NewEventLogPublisher,

			// Repositories and the metric store
			repository.NewAppRepository,
			repository.NewAppUserRepository,
			repository.NewMetricStore,

			// Services
			provideServiceParams,
			service.NewIngestService,
			service.NewAnalyticsService,

			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

func provideServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	metricStore store.Store,
	appRepo app.Repository,
	userRepo appuser.Repository,
	resolver geo.Resolver,
	eventLog publisher.EventLogPublisher,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:   log,
		Config:   cfg,
		Store:    metricStore,
		AppRepo:  appRepo,
		UserRepo: userRepo,
		Geo:      resolver,
		EventLog: eventLog,
	}
}

func provideHandlers(
	cfg *config.Configuration,
	log *logger.Logger,
	ingestService service.IngestService,
	analyticsService service.AnalyticsService,
) api.Handlers {
	return api.Handlers{
		Ingest:    v1.NewIngestHandler(ingestService, cfg, log),
		Analytics: v1.NewAnalyticsHandler(analyticsService, log),
		Health:    v1.NewHealthHandler(log),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	ingestService service.IngestService,
	resolver geo.Resolver,
	producer *kafka.Producer,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infof("Starting API server on %s", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			ingestService.Wait()
			if err := resolver.Close(); err != nil {
				log.Errorw("failed to close geo resolver", "error", err)
			}
			if producer != nil {
				if err := producer.Close(); err != nil {
					log.Errorw("failed to close kafka producer", "error", err)
				}
			}
			return nil
		},
	})
}
