package config

import (
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func parse(t *testing.T, vars map[string]string) AppConfig {
	t.Helper()
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: vars}))
	cfg.Sanitize()
	return cfg
}

func TestAppConfig_Defaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	cfg := parse(t, map[string]string{})

	assert.False(t, cfg.IsDev)
	assert.Equal(t, AuthModeNone, cfg.Auth.Mode)
	assert.Equal(t, []string{"/api/v1/auth/", "/healthz", "/actuator/health"}, cfg.Auth.PublicPrefixes)
	assert.Equal(t, 24*time.Hour, cfg.Token.TTL)
	assert.Equal(t, "mmk-auth", cfg.Token.Issuer)
	assert.Zero(t, cfg.Token.ClockSkew)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OAuth.StateTTL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.False(t, cfg.Observability.Metrics.IsEnabled())

	// No secret configured.
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SECRET is required")
}

func TestAppConfig_Env(t *testing.T) {
	cfg := parse(t, map[string]string{
		"TOKEN_SECRET":          validSecret,
		"TOKEN_TTL":             "15m",
		"TOKEN_CLOCK_SKEW":      "30s",
		"AUTH_MODE":             "OIDC",
		"AUTH_PUBLIC_PREFIXES":  " /public/ , ,/healthz",
		"OAUTH_CLIENT_ID":       "client",
		"OAUTH_CLIENT_SECRET":   "secret",
		"OAUTH_ALLOWED_DOMAINS": "@Example.com, corp.example.org",
		"DB_HOST":               "db.internal",
		"REDIS_URI":             "redis:6379",
	})

	assert.Equal(t, AuthModeOIDC, cfg.Auth.Mode)
	assert.True(t, cfg.Auth.FederatedEnabled())
	assert.Equal(t, []string{"/public/", "/healthz"}, cfg.Auth.PublicPrefixes)
	assert.Equal(t, []string{"example.com", "corp.example.org"}, cfg.Auth.OAuth.AllowedDomains)
	assert.Equal(t, 15*time.Minute, cfg.Token.TTL)
	assert.Equal(t, 30*time.Second, cfg.Token.ClockSkew)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "redis:6379", cfg.Redis.URI)
	require.NoError(t, cfg.Validate())
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    AuthMode
		wantErr bool
	}{
		{in: "oidc", want: AuthModeOIDC},
		{in: "oauth", want: AuthModeOIDC},
		{in: " Dev ", want: AuthModeDev},
		{in: "none", want: AuthModeNone},
		{in: "saml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m AuthMode
			err := m.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestTokenConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TokenConfig
		wantErr string
	}{
		{name: "valid", cfg: TokenConfig{Secret: validSecret, TTL: time.Hour}},
		{name: "missing", cfg: TokenConfig{TTL: time.Hour}, wantErr: "required"},
		{name: "short", cfg: TokenConfig{Secret: "short", TTL: time.Hour}, wantErr: "at least 32 bytes"},
		{name: "zero ttl", cfg: TokenConfig{Secret: validSecret}, wantErr: "TOKEN_TTL"},
		{name: "negative skew", cfg: TokenConfig{Secret: validSecret, TTL: time.Hour, ClockSkew: -time.Second}, wantErr: "CLOCK_SKEW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		isDev   bool
		wantErr string
	}{
		{name: "none", cfg: AuthConfig{Mode: AuthModeNone}},
		{name: "oidc without client", cfg: AuthConfig{Mode: AuthModeOIDC}, wantErr: "OAUTH_CLIENT_ID"},
		{
			name: "oidc bad redirect",
			cfg: AuthConfig{Mode: AuthModeOIDC, OAuth: OAuthConfig{
				ClientID: "a", ClientSecret: "b", RedirectURL: "not a url",
			}},
			wantErr: "OAUTH_REDIRECT_URL",
		},
		{name: "dev outside dev mode", cfg: AuthConfig{Mode: AuthModeDev, DevAuth: DevAuthConfig{Email: "d@x.io"}}, wantErr: "DEV=true"},
		{name: "dev in dev mode", cfg: AuthConfig{Mode: AuthModeDev, DevAuth: DevAuthConfig{Email: "d@x.io"}}, isDev: true},
		{
			name:    "relative success redirect",
			cfg:     AuthConfig{Mode: AuthModeNone, OAuth: OAuthConfig{SuccessRedirectURL: "/done"}},
			wantErr: "absolute URL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.isDev)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthConfig_SanitizeBcryptCost(t *testing.T) {
	c := AuthConfig{BcryptCost: 1}
	c.Sanitize()
	assert.Equal(t, minBcryptCost, c.BcryptCost)

	c = AuthConfig{BcryptCost: 99}
	c.Sanitize()
	assert.Equal(t, maxBcryptCost, c.BcryptCost)
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := parse(t, map[string]string{})
	assert.True(t, cfg.IsDev)
}

func TestObservabilityConfig_Sanitize(t *testing.T) {
	c := ObservabilityConfig{
		Metrics:  ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "  "},
		LogLevel: "LOUD",
	}
	c.Sanitize()
	assert.False(t, c.Metrics.IsEnabled())
	assert.Equal(t, defaultMetricsPrefix, c.Metrics.Prefix)
	assert.Equal(t, "info", c.LogLevel)
}

func TestAppConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := AppConfig{Auth: AuthConfig{Mode: AuthModeOIDC}}
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "TOKEN_SECRET") && strings.Contains(msg, "OAUTH_CLIENT_ID") && strings.Contains(msg, "HTTP_ADDR"), msg)
}
