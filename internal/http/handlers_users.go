package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/service"
)

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 200
)

// UserServiceInterface defines the user service operations used by the HTTP layer.
type UserServiceInterface interface {
	Profile(ctx context.Context, id domainauth.Identity) (*domainauth.User, error)
	List(ctx context.Context, limit, offset int) (*service.UserPage, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, actor domainauth.Identity, id string) error
}

// UserHandlers serves identity-scoped and administrative user endpoints.
type UserHandlers struct {
	Svc    UserServiceInterface
	Logger *slog.Logger
}

func (h *UserHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// MeResponse describes the caller as established for this request.
type MeResponse struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Role        domainauth.Role `json:"role"`
	Authorities []string        `json:"authorities"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// identity returns the request identity or writes a 401.
func (h *UserHandlers) identity(w http.ResponseWriter, r *http.Request) (domainauth.Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeServiceError(w, r, h.logger(), apperrors.Unauthenticated("authentication required"))
		return domainauth.Identity{}, false
	}
	return id, true
}

// Me returns the authenticated identity.
// GET /api/v1/me.
func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	authorities := id.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	WriteJSON(w, http.StatusOK, MeResponse{
		ID:          id.UserID,
		Username:    id.Username,
		Email:       id.Email,
		FirstName:   id.FirstName,
		LastName:    id.LastName,
		Role:        id.Role,
		Authorities: authorities,
		ExpiresAt:   id.ExpiresAt.UTC(),
	})
}

// Profile returns the caller's stored record.
// GET /api/v1/user/profile.
func (h *UserHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	u, err := h.Svc.Profile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

// UserDashboard returns the member landing payload.
// GET /api/v1/user/dashboard.
func (h *UserHandlers) UserDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "Welcome, " + id.Username,
		"username": id.Username,
		"role":     id.Role,
	})
}

// AdminDashboard returns the administrator landing payload.
// GET /api/v1/admin/dashboard.
func (h *UserHandlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	n, err := h.Svc.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "Welcome, administrator " + id.Username,
		"username":   id.Username,
		"user_count": n,
	})
}

type userListResponse struct {
	Users  []*domainauth.User `json:"users"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ListUsers returns users newest first.
// GET /api/v1/admin/users?limit=<n>&offset=<n>.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultUserPageSize, maxUserPageSize)
	page, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	users := page.Users
	if users == nil {
		users = []*domainauth.User{}
	}
	WriteJSON(w, http.StatusOK, userListResponse{Users: users, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

// DeleteUser removes a user by id.
// DELETE /api/v1/admin/users/{id}.
func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
