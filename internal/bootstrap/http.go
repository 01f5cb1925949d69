package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-auth-api/config"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	httpx "github.com/target/mmk-auth-api/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger

	// ErrCh receives the listener error if the server stops unexpectedly.
	ErrCh chan<- error
}

// BuildHandler wires the router with the configured public paths and services.
func BuildHandler(appCfg *config.AppConfig, svcs ServiceContainer, logger *slog.Logger) http.Handler {
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}
	public := httpx.DefaultPublicPaths()
	if len(appCfg.Auth.PublicPrefixes) > 0 {
		public = domainauth.PublicPaths(appCfg.Auth.PublicPrefixes)
	}

	routerServices := httpx.RouterServices{
		Policy:             httpx.DefaultPolicy(public),
		CookieDomain:       appCfg.HTTP.CookieDomain,
		SuccessRedirectURL: appCfg.Auth.OAuth.SuccessRedirectURL,
		Logger:             logger,
		Metrics:            svcs.Observability.sink(),
	}
	// Assign only non-nil services so the router sees nil interfaces.
	if svcs.Auth != nil {
		routerServices.Auth = svcs.Auth
	}
	if svcs.Users != nil {
		routerServices.Users = svcs.Users
	}
	if svcs.Authenticator != nil {
		routerServices.Authenticator = svcs.Authenticator
	}

	return httpx.NewRouter(routerServices)
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	server := newServer(appCfg.HTTP, BuildHandler(appCfg, cfg.Services, logger))

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if cfg.ErrCh != nil {
				cfg.ErrCh <- fmt.Errorf("http server: %w", err)
			}
		}
	}()

	return server
}

func newServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	readHeader := cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 5 * time.Second
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
