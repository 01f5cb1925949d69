// Package core holds the repository contracts the service layer depends on.
package core

import (
	"context"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not concrete implementations.

// UserRepository defines the credential store.
//
// Create must enforce username and email uniqueness itself and report a duplicate as a
// conflict error naming the offending field; callers never pre-check. Lookups return a
// not-found error when no row matches.
type UserRepository interface {
	Create(ctx context.Context, req *domainauth.CreateUserRequest) (*domainauth.User, error)
	GetByID(ctx context.Context, id string) (*domainauth.User, error)
	GetByUsername(ctx context.Context, username string) (*domainauth.User, error)
	GetByEmail(ctx context.Context, email string) (*domainauth.User, error)
	List(ctx context.Context, limit, offset int) ([]*domainauth.User, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}
