package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode selects the federated login provider.
type AuthMode string

const (
	// AuthModeOIDC uses an OpenID Connect identity provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev uses a config-driven provider that signs in a fixed identity (development only).
	AuthModeDev AuthMode = "dev"
	// AuthModeNone disables federated login; only local accounts can sign in.
	AuthModeNone AuthMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "dev", "none":
		*a = AuthMode(v)
		return nil
	case "oauth", "oauth2":
		*a = AuthModeOIDC
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev, none)", v)
	}
}

// OAuthConfig contains OAuth/OIDC client configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/api/v1/auth/oauth2/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL" envDefault:"https://accounts.google.com/.well-known/openid-configuration"`
	Prompt       string `env:"PROMPT"`

	// AllowedDomains restricts federated sign-in to these email domains (registrable domain
	// or exact host). Empty allows any verified email.
	AllowedDomains []string `env:"ALLOWED_DOMAINS" envSeparator:","`

	// SuccessRedirectURL, when set, receives the browser after a federated login with the
	// token in the URL fragment. Empty returns the token as JSON.
	SuccessRedirectURL string `env:"SUCCESS_REDIRECT_URL"`

	// StateTTL bounds how long a federated handshake may take.
	StateTTL time.Duration `env:"STATE_TTL" envDefault:"10m"`

	// Claim paths are JMESPath expressions over the merged ID token and UserInfo claims.
	ClaimSubject       string `env:"CLAIM_SUBJECT"`
	ClaimEmail         string `env:"CLAIM_EMAIL"`
	ClaimEmailVerified string `env:"CLAIM_EMAIL_VERIFIED"`
	ClaimGivenName     string `env:"CLAIM_GIVEN_NAME"`
	ClaimFamilyName    string `env:"CLAIM_FAMILY_NAME"`
	ClaimName          string `env:"CLAIM_NAME"`
}

// DevAuthConfig controls the identity signed in by the dev provider.
// Used when AUTH_MODE=dev for development and testing.
type DevAuthConfig struct {
	Email      string `env:"EMAIL"       envDefault:"dev@example.com"`
	GivenName  string `env:"GIVEN_NAME"  envDefault:"Dev"`
	FamilyName string `env:"FAMILY_NAME" envDefault:"User"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which federated login provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"none"`

	// PublicPrefixes are path prefixes reachable without a token.
	PublicPrefixes []string `env:"AUTH_PUBLIC_PREFIXES" envDefault:"/api/v1/auth/,/healthz,/actuator/health" envSeparator:","`

	// BcryptCost is the work factor for local password hashes.
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"10"`

	// OAuth configuration (used when Mode=oidc).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

const (
	minBcryptCost = 4
	maxBcryptCost = 31
)

// Sanitize trims list entries and clamps numeric settings.
func (c *AuthConfig) Sanitize() {
	c.PublicPrefixes = trimList(c.PublicPrefixes)
	c.OAuth.AllowedDomains = trimList(c.OAuth.AllowedDomains)
	for i, d := range c.OAuth.AllowedDomains {
		c.OAuth.AllowedDomains[i] = strings.ToLower(strings.TrimPrefix(d, "@"))
	}
	c.OAuth.SuccessRedirectURL = strings.TrimSpace(c.OAuth.SuccessRedirectURL)
	if c.OAuth.StateTTL <= 0 {
		c.OAuth.StateTTL = 10 * time.Minute
	}
	if c.BcryptCost < minBcryptCost {
		c.BcryptCost = minBcryptCost
	}
	if c.BcryptCost > maxBcryptCost {
		c.BcryptCost = maxBcryptCost
	}
	if c.Mode == "" {
		c.Mode = AuthModeNone
	}
}

// Validate checks that the selected mode has what it needs.
func (c *AuthConfig) Validate(isDev bool) error {
	switch c.Mode {
	case AuthModeOIDC:
		if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
			return errors.New("OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET are required when AUTH_MODE=oidc")
		}
		if _, err := url.ParseRequestURI(c.OAuth.RedirectURL); err != nil {
			return fmt.Errorf("OAUTH_REDIRECT_URL is invalid: %w", err)
		}
	case AuthModeDev:
		if !isDev {
			return errors.New("AUTH_MODE=dev requires DEV=true")
		}
		if c.DevAuth.Email == "" {
			return errors.New("DEV_AUTH_EMAIL is required when AUTH_MODE=dev")
		}
	case AuthModeNone:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Mode)
	}
	if c.OAuth.SuccessRedirectURL != "" {
		u, err := url.Parse(c.OAuth.SuccessRedirectURL)
		if err != nil || !u.IsAbs() {
			return errors.New("OAUTH_SUCCESS_REDIRECT_URL must be an absolute URL")
		}
	}
	return nil
}

// FederatedEnabled reports whether any federated provider is configured.
func (c *AuthConfig) FederatedEnabled() bool {
	return c.Mode == AuthModeOIDC || c.Mode == AuthModeDev
}

func trimList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
