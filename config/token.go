package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinTokenSecretBytes is the shortest accepted HMAC signing secret.
const MinTokenSecretBytes = 32

// TokenConfig contains bearer token signing configuration.
type TokenConfig struct {
	// Secret is the HMAC-SHA256 signing key. Required outside dev mode.
	Secret string `env:"SECRET"`

	// TTL is the validity window of issued tokens. There is no revocation, so keep it short.
	TTL time.Duration `env:"TTL" envDefault:"24h"`

	// Issuer is written to and required in the iss claim.
	Issuer string `env:"ISSUER" envDefault:"mmk-auth"`

	// ClockSkew is the leeway allowed on exp and iat checks.
	ClockSkew time.Duration `env:"CLOCK_SKEW" envDefault:"0s"`
}

// Sanitize trims string settings.
func (c *TokenConfig) Sanitize() {
	c.Secret = strings.TrimSpace(c.Secret)
	c.Issuer = strings.TrimSpace(c.Issuer)
}

// Validate enforces the signing secret length and positive durations.
func (c *TokenConfig) Validate() error {
	if c.Secret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if len(c.Secret) < MinTokenSecretBytes {
		return fmt.Errorf("TOKEN_SECRET must be at least %d bytes", MinTokenSecretBytes)
	}
	if c.TTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.ClockSkew < 0 {
		return errors.New("TOKEN_CLOCK_SKEW must not be negative")
	}
	return nil
}
