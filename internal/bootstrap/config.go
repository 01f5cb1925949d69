package bootstrap

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/mmk-auth-api/config"
)

var logLevel = new(slog.LevelVar) //nolint:gochecknoglobals // shared by the default logger so level changes apply after init

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel adjusts the level of loggers created by InitLogger.
func SetLogLevel(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	logLevel.Set(l)
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// PrepareConfig fills dev-mode defaults and validates cfg.
func PrepareConfig(cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := ensureDevSecret(cfg, logger); err != nil {
		return err
	}
	return cfg.Validate()
}

// ensureDevSecret generates an ephemeral signing secret in dev mode when none is configured.
// Tokens signed with it do not survive a restart.
func ensureDevSecret(cfg *config.AppConfig, logger *slog.Logger) error {
	if !cfg.IsDev || cfg.Token.Secret != "" {
		return nil
	}
	buf := make([]byte, config.MinTokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate dev token secret: %w", err)
	}
	cfg.Token.Secret = hex.EncodeToString(buf)
	if logger != nil {
		logger.Warn("TOKEN_SECRET not set; using an ephemeral secret for development")
	}
	return nil
}
