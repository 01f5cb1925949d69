package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-auth-api/config"
	"github.com/target/mmk-auth-api/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetLogLevel(cfg.Observability.LogLevel)
	if err = bootstrap.PrepareConfig(&cfg, logger); err != nil {
		return err
	}
	logStartupInfo(ctx, logger, &cfg)

	infra, err := connect(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer infra.close(ctx, logger)

	if err = migrateOnStart(ctx, &cfg, infra.db, logger); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          infra.db,
		RedisClient: infra.redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting mmk-auth service",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"federated", cfg.Auth.FederatedEnabled(),
		"token_ttl", cfg.Token.TTL,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"dev", cfg.IsDev)
}

// infrastructure holds the user store pool and, with federated login, the login state client.
type infrastructure struct {
	db    *sql.DB
	redis redis.UniversalClient
}

// connect dials Postgres, then Redis when federated login needs handshake state.
func connect(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*infrastructure, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}
	db, err := bootstrap.ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	infra := &infrastructure{db: db}
	if !cfg.Auth.FederatedEnabled() {
		return infra, nil
	}

	if infra.redis, err = bootstrap.ConnectRedis(ctx, dbCfg); err != nil {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close database: %w", cerr))
		}
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return infra, nil
}

func (i *infrastructure) close(ctx context.Context, logger *slog.Logger) {
	closers := map[string]io.Closer{"database": i.db}
	if i.redis != nil {
		closers["redis"] = i.redis
	}
	for name, c := range closers {
		if err := c.Close(); err != nil {
			logger.ErrorContext(ctx, "close "+name+" failed", "error", err)
		}
	}
}

func migrateOnStart(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *slog.Logger) error {
	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		return nil
	}
	return bootstrap.RunMigrations(ctx, db, logger)
}
