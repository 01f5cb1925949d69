package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/mmk-auth-api/config"
	"github.com/target/mmk-auth-api/internal/adapters/devauth"
	"github.com/target/mmk-auth-api/internal/adapters/oidc"
	"github.com/target/mmk-auth-api/internal/ports"
)

// AuthConfig contains configuration for the federated login provider.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuthProvider creates the federated login provider for the configured auth mode.
// It returns nil without error when federated login is disabled.
//
//nolint:ireturn // the provider is selected at runtime.
func BuildAuthProvider(ctx context.Context, cfg AuthConfig) (ports.AuthProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeDev:
		prov, err := devauth.NewProvider(devauth.Config{
			Email:      cfg.Auth.DevAuth.Email,
			GivenName:  cfg.Auth.DevAuth.GivenName,
			FamilyName: cfg.Auth.DevAuth.FamilyName,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev auth provider: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.WarnContext(ctx, "dev auth provider enabled; do not use in production",
				"email", cfg.Auth.DevAuth.Email)
		}
		return prov, nil

	case config.AuthModeOIDC:
		oauth := cfg.Auth.OAuth
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scope:        oauth.Scope,
			DiscoveryURL: oauth.DiscoveryURL,
			Prompt:       oauth.Prompt,
			ClaimPaths: oidc.ClaimPaths{
				Subject:       oauth.ClaimSubject,
				Email:         oauth.ClaimEmail,
				EmailVerified: oauth.ClaimEmailVerified,
				GivenName:     oauth.ClaimGivenName,
				FamilyName:    oauth.ClaimFamilyName,
				Name:          oauth.ClaimName,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc provider: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.InfoContext(ctx, "oidc provider enabled", "discovery_url", oauth.DiscoveryURL)
		}
		return prov, nil

	default:
		return nil, nil
	}
}
