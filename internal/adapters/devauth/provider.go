package devauth

// Package devauth provides a config-driven AuthProvider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/ports"
)

var _ ports.AuthProvider = (*Provider)(nil)

// DefaultCallbackPath is the federated callback route the dev provider redirects to.
const DefaultCallbackPath = "/api/v1/auth/oauth2/callback"

// Config controls the dev auth provider behavior. Email is required.
type Config struct {
	Email        string
	GivenName    string
	FamilyName   string
	CallbackPath string // defaults to DefaultCallbackPath
}

// Provider implements ports.AuthProvider without a real identity provider.
// Begin redirects straight back to our own callback with locally generated state;
// Exchange ignores the code and returns the configured claims as a verified email.
type Provider struct {
	claims       domainauth.FederatedClaims
	callbackPath string
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	cb := cfg.CallbackPath
	if cb == "" {
		cb = DefaultCallbackPath
	}
	verified := true
	return &Provider{
		claims: domainauth.FederatedClaims{
			Subject:       "dev:" + cfg.Email,
			Email:         cfg.Email,
			EmailVerified: &verified,
			GivenName:     cfg.GivenName,
			FamilyName:    cfg.FamilyName,
			Name:          joinName(cfg.GivenName, cfg.FamilyName),
		},
		callbackPath: cb,
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	q := url.Values{"code": {"dev"}, "state": {state}}
	return p.callbackPath + "?" + q.Encode(), state, nonce, nil
}

// Exchange returns the configured claims. State checks happen in the service.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.FederatedClaims, error) {
	if in.Code == "" {
		return domainauth.FederatedClaims{}, errors.New("authorization code is required")
	}
	c := p.claims
	v := *p.claims.EmailVerified
	c.EmailVerified = &v
	return c, nil
}

func joinName(given, family string) string {
	switch {
	case given == "":
		return family
	case family == "":
		return given
	default:
		return given + " " + family
	}
}

func randomString(n int) (string, error) {
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
