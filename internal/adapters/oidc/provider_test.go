package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-auth-api/internal/ports"
)

const testClientID = "test-client"

// fakeIdP serves discovery, JWKS, token and userinfo endpoints for a single signing key.
type fakeIdP struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	mu       sync.Mutex
	idClaims jwt.MapClaims // claims of the next issued ID token
	userInfo map[string]any
}

func (f *fakeIdP) setClaims(id jwt.MapClaims, userInfo map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idClaims = id
	f.userInfo = userInfo
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIdP{t: t, key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer:                f.server.URL,
			AuthorizationEndpoint: f.server.URL + "/auth",
			TokenEndpoint:         f.server.URL + "/token",
			UserinfoEndpoint:      f.server.URL + "/userinfo",
			JwksURI:               f.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		f.mu.Lock()
		claims := f.idClaims
		f.mu.Unlock()
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		signed, err := tok.SignedString(f.key)
		require.NoError(f.t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     signed,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		ui := f.userInfo
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ui)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIdP) baseClaims(nonce string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   f.server.URL,
		"aud":   testClientID,
		"sub":   "google-sub-1",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": nonce,
	}
}

func newTestProvider(t *testing.T, idp *fakeIdP, paths ClaimPaths) *Provider {
	t.Helper()
	p, err := NewProvider(context.Background(), ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/api/v1/auth/oauth2/callback",
		DiscoveryURL: idp.server.URL + "/.well-known/openid-configuration",
		ClaimPaths:   paths,
		HTTPClient:   idp.server.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Success(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, ClaimPaths{})

	assert.Equal(t, idp.server.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Equal(t, idp.server.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, []string{"openid", "email", "profile"}, p.config.Scopes)
	assert.Equal(t, DefaultClaimPaths(), p.paths)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{ClientSecret: "secret", RedirectURL: "http://localhost/callback"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/callback"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret"},
			errMsg: "redirect URL is required",
		},
		{
			name: "bad claim path",
			config: ProviderConfig{
				ClientID:     "client",
				ClientSecret: "secret",
				RedirectURL:  "http://localhost/callback",
				ClaimPaths:   ClaimPaths{Email: "profile.[email"},
			},
			errMsg: "invalid claim path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, ClaimPaths{})

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "/dashboard"})
	require.NoError(t, err)
	assert.Len(t, state, 32)
	assert.Len(t, nonce, 32)
	assert.NotEqual(t, state, nonce)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "http://localhost:8080/api/v1/auth/oauth2/callback", q.Get("redirect_uri"))

	_, _, _, err = p.Begin(context.Background(), ports.BeginInput{})
	assert.ErrorContains(t, err, "redirect URL is required")
}

func TestProvider_Exchange_IDTokenClaims(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, ClaimPaths{})

	id := idp.baseClaims("nonce-1")
	id["email"] = " New.User@Example.com"
	id["email_verified"] = true
	id["given_name"] = "New"
	id["family_name"] = "User"
	id["name"] = "New User"
	idp.setClaims(id, nil)

	claims, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, "google-sub-1", claims.Subject)
	assert.Equal(t, "New.User@Example.com", claims.Email)
	require.NotNil(t, claims.EmailVerified)
	assert.True(t, *claims.EmailVerified)
	assert.Equal(t, "New", claims.GivenName)
	assert.Equal(t, "User", claims.FamilyName)
	assert.Equal(t, "New User", claims.Name)
}

func TestProvider_Exchange_UserInfoFallback(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, ClaimPaths{})

	idp.setClaims(idp.baseClaims("nonce-2"), map[string]any{
		"sub":            "google-sub-1",
		"email":          "fallback@example.com",
		"email_verified": "true",
	})

	claims, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "nonce-2"})
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", claims.Email)
	require.NotNil(t, claims.EmailVerified)
	assert.True(t, *claims.EmailVerified)
}

func TestProvider_Exchange_CustomClaimPaths(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, ClaimPaths{Email: "profile.mail", GivenName: "profile.first"})

	id := idp.baseClaims("nonce-3")
	id["profile"] = map[string]any{"mail": "nested@example.com", "first": "Nested"}
	idp.setClaims(id, nil)

	claims, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "nonce-3"})
	require.NoError(t, err)
	assert.Equal(t, "nested@example.com", claims.Email)
	assert.Equal(t, "Nested", claims.GivenName)
	assert.Nil(t, claims.EmailVerified)
}

func TestProvider_Exchange_Rejections(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, ClaimPaths{})
	ctx := context.Background()

	t.Run("nonce mismatch", func(t *testing.T) {
		idp.setClaims(idp.baseClaims("other-nonce"), nil)
		_, err := p.Exchange(ctx, ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "nonce-4"})
		assert.ErrorContains(t, err, "invalid nonce")
	})

	t.Run("wrong audience", func(t *testing.T) {
		id := idp.baseClaims("nonce-5")
		id["aud"] = "someone-else"
		idp.setClaims(id, nil)
		_, err := p.Exchange(ctx, ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "nonce-5"})
		assert.ErrorContains(t, err, "verify id_token")
	})

	t.Run("expired id token", func(t *testing.T) {
		id := idp.baseClaims("nonce-6")
		id["exp"] = time.Now().Add(-time.Hour).Unix()
		idp.setClaims(id, nil)
		_, err := p.Exchange(ctx, ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "nonce-6"})
		assert.ErrorContains(t, err, "verify id_token")
	})

	t.Run("bad code", func(t *testing.T) {
		_, err := p.Exchange(ctx, ports.ExchangeInput{Code: "bad-code", State: "s", Nonce: "n"})
		assert.ErrorContains(t, err, "exchange code for token")
	})

	t.Run("missing inputs", func(t *testing.T) {
		_, err := p.Exchange(ctx, ports.ExchangeInput{State: "s", Nonce: "n"})
		assert.ErrorContains(t, err, "authorization code is required")
		_, err = p.Exchange(ctx, ports.ExchangeInput{Code: "c", Nonce: "n"})
		assert.ErrorContains(t, err, "state is required")
		_, err = p.Exchange(ctx, ports.ExchangeInput{Code: "c", State: "s"})
		assert.ErrorContains(t, err, "nonce is required")
	})
}

func TestGenerateRandomString(t *testing.T) {
	a, err := generateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, a, 16)

	b, err := generateRandomString(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	empty, err := generateRandomString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
