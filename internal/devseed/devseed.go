// Package devseed creates well-known development accounts.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-auth-api/internal/core"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/ports"
)

// Account is a development user seeded with a known password.
type Account struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domainauth.Role
}

// DefaultAccounts returns the admin and user accounts used for local development.
func DefaultAccounts() []Account {
	return []Account{
		{
			Username:  "admin",
			Email:     "admin@devdeploy.com",
			Password:  "admin123",
			FirstName: "Admin",
			LastName:  "User",
			Role:      domainauth.RoleAdmin,
		},
		{
			Username:  "user",
			Email:     "user@devdeploy.com",
			Password:  "user123",
			FirstName: "Regular",
			LastName:  "User",
			Role:      domainauth.RoleUser,
		},
	}
}

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Users  core.UserRepository
	Hasher ports.PasswordHasher
}

// Run seeds the default accounts, leaving existing usernames untouched.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	return Seed(ctx, svcs, DefaultAccounts(), logger)
}

// Seed creates each account that does not exist yet.
func Seed(ctx context.Context, svcs Services, accounts []Account, logger *slog.Logger) error {
	if svcs.Users == nil || svcs.Hasher == nil {
		return errors.New("devseed: user repository and hasher are required")
	}
	failures := 0
	for _, acct := range accounts {
		created, err := ensureAccount(ctx, svcs, acct)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed user", "username", acct.Username, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "user already exists"
			if created {
				msg = "created user"
			}
			logger.InfoContext(ctx, msg, "username", acct.Username, "role", acct.Role)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func ensureAccount(ctx context.Context, svcs Services, acct Account) (bool, error) {
	_, err := svcs.Users.GetByUsername(ctx, acct.Username)
	switch {
	case err == nil:
		return false, nil
	case !apperrors.IsNotFound(err):
		return false, err
	}

	hash, err := svcs.Hasher.Hash(acct.Password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	_, err = svcs.Users.Create(ctx, &domainauth.CreateUserRequest{
		Username:     acct.Username,
		Email:        domainauth.NormalizeEmail(acct.Email),
		PasswordHash: hash,
		FirstName:    acct.FirstName,
		LastName:     acct.LastName,
		Role:         acct.Role,
		AuthSource:   domainauth.AuthSourceLocal,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
