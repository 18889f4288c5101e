package container

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
	"github.com/betanery/easy-doc-signer-sub000/internal/database"
	"github.com/betanery/easy-doc-signer-sub000/internal/handlers"
	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/middleware"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
	"github.com/betanery/easy-doc-signer-sub000/internal/server"
	"github.com/betanery/easy-doc-signer-sub000/internal/services"
)

// Module provides dependency injection configuration
var Module = fx.Options(
	// Configuration
	fx.Provide(config.LoadConfig),

	// Logging
	fx.Provide(logger.NewLogger),

	// Database
	fx.Provide(database.NewConnection),
	fx.Provide(database.NewMigrator),
	fx.Provide(database.NewRedisClient),

	// Repositories
	fx.Provide(repositories.NewTenantRepository),
	fx.Provide(repositories.NewProfileRepository),
	fx.Provide(repositories.NewDocumentCacheRepository),
	fx.Provide(repositories.NewDocumentUsageRepository),
	fx.Provide(repositories.NewSyncIntentRepository),
	fx.Provide(repositories.NewFolderRepository),
	fx.Provide(repositories.NewOrganizationRepository),

	// Metrics
	fx.Provide(func() *services.Metrics {
		return services.NewMetrics(prometheus.DefaultRegisterer)
	}),
	fx.Provide(func() prometheus.Gatherer {
		return prometheus.DefaultGatherer
	}),

	// Models (for validation and serialization)
	fx.Provide(models.NewValidationService),

	// Services
	fx.Provide(services.NewErrorHandler),
	fx.Provide(services.NewAuthenticationService),
	fx.Provide(services.NewUsageService),
	fx.Provide(services.NewSigningProviderClient),
	fx.Provide(services.NewReconciliationProcessor),
	fx.Provide(reconciliationQueue),
	fx.Provide(idempotencyStore),
	fx.Provide(services.NewDocumentSynchronizer),
	fx.Provide(services.NewTenantService),
	fx.Provide(services.NewFolderService),
	fx.Provide(services.NewOrganizationService),

	// Middleware
	fx.Provide(middleware.NewAuthenticationMiddleware),
	fx.Provide(middleware.NewCORSMiddleware),

	// Handlers
	fx.Provide(handlers.NewDocumentActionHandler),
	fx.Provide(handlers.NewManagementAPIHandler),
	fx.Provide(healthChecks),
	fx.Provide(handlers.NewHealthHandler),

	// Server
	fx.Provide(server.NewServer),

	// Invoke migrations on startup
	fx.Invoke(func(migrator *database.Migrator) error {
		return migrator.Up()
	}),
)

// reconciliationQueue hands the synchronizer a queue only when background
// reconciliation is switched on
func reconciliationQueue(cfg *config.Config, processor *services.ReconciliationProcessor) services.ReconciliationQueue {
	if !cfg.Reconciliation.Enabled {
		return nil
	}
	return processor
}

func idempotencyStore(cfg *config.Config, client *redis.Client) services.IdempotencyStore {
	if !cfg.Idempotency.Enabled {
		return nil
	}
	return services.NewIdempotencyStore(client)
}

func healthChecks(conn *database.Connection, client *redis.Client) map[string]handlers.HealthCheckFunc {
	pingRedis := func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}

	return map[string]handlers.HealthCheckFunc{
		"database": conn.Ping,
		"redis":    pingRedis,
	}
}

// RegisterLifecycle starts the HTTP server and the reconciliation workers
// with the application and stops them on shutdown
func RegisterLifecycle(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *logger.Logger,
	srv *server.Server,
	processor *services.ReconciliationProcessor,
	conn *database.Connection,
	client *redis.Client,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.WithField("port", cfg.Server.Port).Info("Starting easy-doc-signer")

			if cfg.Reconciliation.Enabled {
				processor.Start()
			}

			// Start server in background
			go func() {
				if err := srv.Start(context.Background()); err != nil {
					log.WithError(err).Error("Server error")
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down easy-doc-signer")

			err := srv.Stop(ctx)
			if cfg.Reconciliation.Enabled {
				processor.Stop()
			}

			if closeErr := client.Close(); closeErr != nil {
				log.WithError(closeErr).Warn("Failed to close redis client")
			}
			if closeErr := conn.Close(); closeErr != nil {
				log.WithError(closeErr).Warn("Failed to close database connection")
			}

			return err
		},
	})
}

// shutdownGrace bounds how long OnStop may take
const shutdownGrace = 45 * time.Second

// Options returns the full application graph
func Options() fx.Option {
	return fx.Options(
		Module,
		fx.StopTimeout(shutdownGrace),
		fx.Invoke(RegisterLifecycle),
	)
}
