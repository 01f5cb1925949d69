package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/mmk-auth-api/internal/core"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
)

// UserServiceOptions groups dependencies for UserService.
type UserServiceOptions struct {
	Repo   core.UserRepository
	Logger *slog.Logger
}

// UserService exposes user profile and administration operations.
type UserService struct {
	repo   core.UserRepository
	logger *slog.Logger
}

// NewUserService constructs a new UserService.
func NewUserService(opts UserServiceOptions) *UserService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{repo: opts.Repo, logger: logger.With("component", "user_service")}
}

// Profile loads the stored user behind an authenticated identity.
func (s *UserService) Profile(ctx context.Context, id domainauth.Identity) (*domainauth.User, error) {
	if id.UserID == "" {
		return nil, apperrors.Unauthenticated("authentication required")
	}
	u, err := s.repo.GetByID(ctx, id.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername loads a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domainauth.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.ValidationField("username", "username is required")
	}
	return s.repo.GetByUsername(ctx, username)
}

// UserPage is a page of users and the total count.
type UserPage struct {
	Users  []*domainauth.User
	Total  int
	Limit  int
	Offset int
}

// List returns users newest first.
func (s *UserService) List(ctx context.Context, limit, offset int) (*UserPage, error) {
	if offset < 0 {
		offset = 0
	}
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return &UserPage{Users: users, Total: total, Limit: limit, Offset: offset}, nil
}

// Count returns the number of stored users.
func (s *UserService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Delete removes a user by ID and returns NotFound when nothing was deleted.
// actor is the identity performing the deletion; an admin cannot delete itself.
func (s *UserService) Delete(ctx context.Context, actor domainauth.Identity, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.ValidationField("id", "id is required")
	}
	if actor.UserID != "" && actor.UserID == id {
		return apperrors.Conflict("cannot delete the current user")
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("user not found")
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor", actor.Username)
	return nil
}
