package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/firesense/fire-alert-service/internal/alert"
	"github.com/firesense/fire-alert-service/internal/api"
	"github.com/firesense/fire-alert-service/internal/auth"
	"github.com/firesense/fire-alert-service/internal/config"
	"github.com/firesense/fire-alert-service/internal/db"
	"github.com/firesense/fire-alert-service/internal/mq"
	"github.com/firesense/fire-alert-service/internal/repository"
	"github.com/firesense/fire-alert-service/internal/thingspeak"
)

// startServer runs the HTTP server under the fx lifecycle
func startServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger *zap.Logger,
	handler *api.Handler,
) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting http server", zap.Int("port", cfg.ServicePort))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the change-feed publisher
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.ChangeExchange, logger)
}

// ProvideSensorClient creates the ThingSpeak client
func ProvideSensorClient(cfg *config.Config, logger *zap.Logger) *thingspeak.Client {
	return thingspeak.NewClient(cfg.ThingSpeak, logger)
}

// ProvideAuthenticator creates the session-token authenticator
func ProvideAuthenticator(repo *repository.Repository) *auth.Authenticator {
	return auth.NewAuthenticator(repo)
}

// ProvideEvaluator creates the alert evaluator
func ProvideEvaluator(
	repo *repository.Repository,
	client *thingspeak.Client,
	publisher *mq.Publisher,
	authn *auth.Authenticator,
	cfg *config.Config,
	logger *zap.Logger,
) *alert.Evaluator {
	return alert.NewEvaluator(repo, client, publisher, authn, cfg.Alerting, logger)
}

// ProvideAPIHandler creates the HTTP handler set
func ProvideAPIHandler(
	evaluator *alert.Evaluator,
	client *thingspeak.Client,
	repo *repository.Repository,
	publisher *mq.Publisher,
	authn *auth.Authenticator,
	logger *zap.Logger,
) *api.Handler {
	return api.NewHandler(evaluator, client, repo, publisher, authn, logger)
}
