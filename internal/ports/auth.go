package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
)

// ErrLoginStateNotFound is returned when a login state is unknown, expired or already consumed.
var ErrLoginStateNotFound = errors.New("login state not found")

// ErrPasswordMismatch is returned by PasswordHasher.Compare when the password does not match.
var ErrPasswordMismatch = errors.New("password mismatch")

// BeginInput carries inputs for initiating a federated login.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes a federated login against an identity provider.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying the returned tokens, and yields the provider claims.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.FederatedClaims, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// LoginStateStore keeps federated login state between Begin and the callback.
type LoginStateStore interface {
	Save(ctx context.Context, st domainauth.LoginState, ttl time.Duration) error
	// Consume atomically returns and removes the state. It returns ErrLoginStateNotFound
	// when the state is absent.
	Consume(ctx context.Context, state string) (domainauth.LoginState, error)
}

// PasswordHasher hashes and verifies local passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns ErrPasswordMismatch when password does not match hash.
	Compare(hash, password string) error
	// RandomUnusable returns a valid hash of a random secret that is never disclosed.
	RandomUnusable() (string, error)
}
