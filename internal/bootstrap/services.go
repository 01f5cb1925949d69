package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-auth-api/config"
	"github.com/target/mmk-auth-api/internal/adapters/passhash"
	redisadapter "github.com/target/mmk-auth-api/internal/adapters/redis"
	"github.com/target/mmk-auth-api/internal/core"
	"github.com/target/mmk-auth-api/internal/data"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
	"github.com/target/mmk-auth-api/internal/ports"
	"github.com/target/mmk-auth-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Tokens        *service.TokenService
	Authenticator *service.Authenticator
	Provisioner   *service.Provisioner
	Auth          *service.AuthService
	Users         *service.UserService
	Hasher        ports.PasswordHasher
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// sink returns the metrics sink as an interface, nil when metrics are disabled.
//
//nolint:ireturn // callers depend on the sink port.
func (o ObservabilityContainer) sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient

	// Users overrides the Postgres-backed repository built from DB.
	Users core.UserRepository
	// States overrides the Redis-backed login state store built from RedisClient.
	States ports.LoginStateStore
	// Provider overrides the provider selected by the configured auth mode.
	Provider ports.AuthProvider

	Logger *slog.Logger
}

// buildObservability configures metrics adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.Prefix,
			Logger:     obsLogger,
			GlobalTags: statsd.ParseTags(cfg.Metrics.Tags),
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

func resolveUserRepo(deps *ServiceDeps) (core.UserRepository, error) {
	if deps.Users != nil {
		return deps.Users, nil
	}
	if deps.DB == nil {
		return nil, errors.New("database connection is required")
	}
	return data.NewUserRepo(deps.DB), nil
}

//nolint:ireturn // the store is selected at runtime.
func resolveStateStore(deps *ServiceDeps) ports.LoginStateStore {
	if deps.States != nil {
		return deps.States
	}
	if deps.RedisClient == nil {
		return nil
	}
	if prefix := deps.Config.Redis.KeyPrefix; prefix != "" {
		return redisadapter.NewLoginStateStoreWithPrefix(deps.RedisClient, prefix)
	}
	return redisadapter.NewLoginStateStore(deps.RedisClient)
}

//nolint:ireturn // the provider is selected at runtime.
func resolveProvider(ctx context.Context, deps *ServiceDeps, logger *slog.Logger) (ports.AuthProvider, error) {
	if deps.Provider != nil {
		return deps.Provider, nil
	}
	return BuildAuthProvider(ctx, AuthConfig{Auth: deps.Config.Auth, Logger: logger})
}

// NewServices creates all application services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps missing AppConfig")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users, err := resolveUserRepo(deps)
	if err != nil {
		return ServiceContainer{}, err
	}

	tokens, err := service.NewTokenService(service.TokenServiceOptions{
		Secret:    []byte(cfg.Token.Secret),
		TTL:       cfg.Token.TTL,
		Issuer:    cfg.Token.Issuer,
		ClockSkew: cfg.Token.ClockSkew,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create token service: %w", err)
	}

	provider, err := resolveProvider(ctx, deps, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	states := resolveStateStore(deps)
	if provider != nil && states == nil {
		return ServiceContainer{}, errors.New("federated login requires Redis for login state")
	}

	obs := buildObservability(logger, cfg.Observability)
	sink := obs.sink()
	hasher := passhash.NewBcryptHasher(cfg.Auth.BcryptCost)

	provisioner := service.NewProvisioner(service.ProvisionerOptions{
		Users:          users,
		Hasher:         hasher,
		AllowedDomains: cfg.Auth.OAuth.AllowedDomains,
		Logger:         logger,
		Metrics:        sink,
	})

	return ServiceContainer{
		Tokens: tokens,
		Authenticator: service.NewAuthenticator(service.AuthenticatorOptions{
			Tokens:  tokens,
			Users:   users,
			Logger:  logger,
			Metrics: sink,
		}),
		Provisioner: provisioner,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Users:       users,
			Hasher:      hasher,
			Tokens:      tokens,
			Provider:    provider,
			States:      states,
			Provisioner: provisioner,
			StateTTL:    cfg.Auth.OAuth.StateTTL,
			Logger:      logger,
			Metrics:     sink,
		}),
		Users:         service.NewUserService(service.UserServiceOptions{Repo: users, Logger: logger}),
		Hasher:        hasher,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger

	// Signals overrides the OS signal channel; used by tests.
	Signals <-chan os.Signal
}

// RunServicesWithShutdown starts the HTTP server and manages its lifecycle.
// This function blocks until a shutdown signal is received or the server fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		ErrCh:    errCh,
	})

	quit := cfg.Signals
	if quit == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		quit = ch
	}

	return waitForShutdown(shutdownConfig{
		quit:       quit,
		errCh:      errCh,
		httpServer: server,
		timeout:    cfg.Config.HTTP.ShutdownTimeout,
		metrics:    cfg.Services.Observability.MetricsSink,
		logger:     logger,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	quit       <-chan os.Signal
	errCh      <-chan error
	httpServer *http.Server
	timeout    time.Duration
	metrics    *statsd.Client
	logger     *slog.Logger
}

// waitForShutdown waits for shutdown signal or server error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case <-cfg.quit:
		cfg.logger.Info("shutting down services...")
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server and flushes the metrics client.
func gracefulStop(cfg shutdownConfig) error {
	defer func() {
		if err := cfg.metrics.Close(); err != nil {
			cfg.logger.Warn("close metrics client", "error", err)
		}
	}()

	return ShutdownHTTPServer(ShutdownConfig{
		Context: context.Background(),
		Server:  cfg.httpServer,
		Timeout: cfg.timeout,
		Logger:  cfg.logger,
	})
}
