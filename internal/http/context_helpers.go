package httpx

import (
	"context"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
)

// authnKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type authnKey struct{}

// WithAuthentication returns a child context carrying a.
func WithAuthentication(ctx context.Context, a domainauth.Authentication) context.Context {
	return context.WithValue(ctx, authnKey{}, a)
}

// AuthenticationFrom returns the request's authentication result and whether the
// intercept has run for this request.
func AuthenticationFrom(ctx context.Context) (domainauth.Authentication, bool) {
	a, ok := ctx.Value(authnKey{}).(domainauth.Authentication)
	return a, ok
}

// IdentityFrom returns the authenticated identity carried by ctx, if any.
func IdentityFrom(ctx context.Context) (domainauth.Identity, bool) {
	a, ok := AuthenticationFrom(ctx)
	if !ok {
		return domainauth.Identity{}, false
	}
	return a.Identity()
}
