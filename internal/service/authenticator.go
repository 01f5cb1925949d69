package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/target/mmk-auth-api/internal/core"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/observability/metrics"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
)

// Anonymous reasons reported to logs and metrics.
const (
	ReasonMissingToken    = "missing_token"
	ReasonMalformedToken  = "malformed_token"
	ReasonUnknownUser     = "unknown_user"
	ReasonInvalidToken    = "invalid_token"
	ReasonSubjectMismatch = "subject_mismatch"
	ReasonStoreError      = "store_error"
)

const bearerPrefix = "bearer "

// AuthenticatorOptions groups dependencies for Authenticator.
type AuthenticatorOptions struct {
	Tokens  *TokenService
	Users   core.UserRepository
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Authenticator turns an Authorization header into an identity-or-none result.
// It never returns an error: every failure is reported as an anonymous Authentication.
type Authenticator struct {
	tokens  *TokenService
	users   core.UserRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(opts AuthenticatorOptions) *Authenticator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		tokens:  opts.Tokens,
		users:   opts.Users,
		logger:  logger.With("component", "authenticator"),
		metrics: opts.Metrics,
	}
}

// BearerToken returns the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(bearerPrefix):])
	return tok, tok != ""
}

// Authenticate resolves the identity behind header.
//
// The username is read from the unverified token only to load the stored user; the
// identity is established after the signature and expiry check succeeds and the
// token subject matches that user. Role and authorities always come from the store.
func (a *Authenticator) Authenticate(ctx context.Context, header string) domainauth.Authentication {
	tok, ok := BearerToken(header)
	if !ok {
		return domainauth.Anonymous(ReasonMissingToken)
	}

	username, err := a.tokens.ExtractUsername(tok)
	if err != nil {
		return a.reject(ctx, ReasonMalformedToken, err)
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return a.reject(ctx, ReasonUnknownUser, nil)
		}
		return a.reject(ctx, ReasonStoreError, err)
	}

	claims, err := a.tokens.Validate(tok)
	if err != nil {
		return a.reject(ctx, ReasonInvalidToken, err)
	}
	if claims.Subject != user.Username {
		return a.reject(ctx, ReasonSubjectMismatch, nil)
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	metrics.EmitAuth(a.metrics, metrics.AuthMetric{
		Event:  metrics.EventAuthenticate,
		Result: metrics.ResultSuccess,
	})
	return domainauth.Authenticated(domainauth.NewIdentity(*user, exp))
}

func (a *Authenticator) reject(ctx context.Context, reason string, err error) domainauth.Authentication {
	attrs := []any{"reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	a.logger.Log(ctx, level, "request authentication failed", attrs...)

	result := metrics.ResultFailure
	if reason == ReasonStoreError {
		result = metrics.ResultError
	}
	metrics.EmitAuth(a.metrics, metrics.AuthMetric{
		Event:  metrics.EventAuthenticate,
		Result: result,
		Reason: reason,
		Err:    err,
	})
	return domainauth.Anonymous(reason)
}
