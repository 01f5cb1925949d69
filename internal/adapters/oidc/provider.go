package oidc

// Package oidc provides the OpenID Connect federated login adapter.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.AuthProvider = (*Provider)(nil)

// GoogleDiscoveryURL is the discovery document of Google's OIDC provider.
const GoogleDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

// ClaimPaths are JMESPath expressions locating each field in the merged ID token and
// UserInfo claims. Empty fields fall back to the standard OIDC claim names.
type ClaimPaths struct {
	Subject       string
	Email         string
	EmailVerified string
	GivenName     string
	FamilyName    string
	Name          string
}

// DefaultClaimPaths returns the standard OIDC claim names.
func DefaultClaimPaths() ClaimPaths {
	return ClaimPaths{
		Subject:       "sub",
		Email:         "email",
		EmailVerified: "email_verified",
		GivenName:     "given_name",
		FamilyName:    "family_name",
		Name:          "name",
	}
}

func (c ClaimPaths) withDefaults() ClaimPaths {
	d := DefaultClaimPaths()
	if c.Subject == "" {
		c.Subject = d.Subject
	}
	if c.Email == "" {
		c.Email = d.Email
	}
	if c.EmailVerified == "" {
		c.EmailVerified = d.EmailVerified
	}
	if c.GivenName == "" {
		c.GivenName = d.GivenName
	}
	if c.FamilyName == "" {
		c.FamilyName = d.FamilyName
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	return c
}

func (c ClaimPaths) all() []string {
	return []string{c.Subject, c.Email, c.EmailVerified, c.GivenName, c.FamilyName, c.Name}
}

// Provider implements ports.AuthProvider using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	paths      ClaimPaths
	prompt     string

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string // space separated; defaults to "openid email profile"
	DiscoveryURL string // defaults to GoogleDiscoveryURL
	Prompt       string // optional "prompt" auth parameter, e.g. "select_account"
	ClaimPaths   ClaimPaths
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the subset of the OIDC discovery document we serve in tests
// and read at startup.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider performs discovery and returns a ready Provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	discoveryURL := config.DiscoveryURL
	if discoveryURL == "" {
		discoveryURL = GoogleDiscoveryURL
	}
	scope := config.Scope
	if strings.TrimSpace(scope) == "" {
		scope = "openid email profile"
	}
	paths := config.ClaimPaths.withDefaults()
	for _, expr := range paths.all() {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid claim path %q: %w", expr, err)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// Single discovery fetch; the remote key set reuses httpClient.
	dctx := gooidc.ClientContext(ctx, httpClient)
	issuer := strings.TrimSuffix(discoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(dctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	p := &Provider{
		httpClient:   httpClient,
		paths:        paths,
		prompt:       config.Prompt,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(scope),
			Endpoint:     op.Endpoint(),
		},
	}
	return p, nil
}

// Begin returns the provider authorization URL with fresh state and nonce.
// The configured RedirectURL is always used as redirect_uri; in.RedirectURL is the
// post-login destination and is only required to be non-empty.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}
	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	opts := []oauth2.AuthCodeOption{gooidc.Nonce(nonce)}
	if p.prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", p.prompt))
	}
	return p.config.AuthCodeURL(state, opts...), state, nonce, nil
}

// Exchange redeems the code, verifies the ID token and nonce, and maps claims.
// UserInfo is consulted only when the ID token lacks an email.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedClaims, error) {
	if in.Code == "" {
		return domainauth.FederatedClaims{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.FederatedClaims{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.FederatedClaims{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.FederatedClaims{}, fmt.Errorf("exchange code for token: %w", err)
	}

	raw, err := p.verifiedClaims(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.FederatedClaims{}, err
	}

	claims := p.mapClaims(raw)
	if claims.Email == "" && token.AccessToken != "" {
		ui, uiErr := p.userInfoClaims(ctx, token)
		if uiErr != nil {
			return domainauth.FederatedClaims{}, fmt.Errorf("get user info: %w", uiErr)
		}
		for k, v := range ui {
			if _, exists := raw[k]; !exists {
				raw[k] = v
			}
		}
		claims = p.mapClaims(raw)
	}
	return claims, nil
}

func (p *Provider) verifiedClaims(ctx context.Context, tok *oauth2.Token, expectedNonce string) (map[string]any, error) {
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if idTok.Nonce != expectedNonce {
		return nil, errors.New("invalid nonce")
	}
	claims := map[string]any{}
	if err := idTok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}
	return claims, nil
}

func (p *Provider) userInfoClaims(ctx context.Context, tok *oauth2.Token) (map[string]any, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	claims := map[string]any{}
	if err := ui.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return claims, nil
}

func (p *Provider) mapClaims(raw map[string]any) domainauth.FederatedClaims {
	return domainauth.FederatedClaims{
		Subject:       searchString(p.paths.Subject, raw),
		Email:         searchString(p.paths.Email, raw),
		EmailVerified: searchBool(p.paths.EmailVerified, raw),
		GivenName:     searchString(p.paths.GivenName, raw),
		FamilyName:    searchString(p.paths.FamilyName, raw),
		Name:          searchString(p.paths.Name, raw),
	}
}

func searchString(expr string, data map[string]any) string {
	v, err := jmespath.Search(expr, data)
	if err != nil || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// searchBool returns nil when the claim is absent or not boolean-like.
// Some providers send email_verified as the string "true".
func searchBool(expr string, data map[string]any) *bool {
	v, err := jmespath.Search(expr, data)
	if err != nil || v == nil {
		return nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		parsed, perr := strconv.ParseBool(strings.TrimSpace(t))
		if perr != nil {
			return nil
		}
		b = parsed
	default:
		return nil
	}
	return &b
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
