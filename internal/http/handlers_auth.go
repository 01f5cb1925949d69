package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/service"
)

// AuthServiceInterface defines the auth service operations used by the HTTP layer.
type AuthServiceInterface interface {
	Register(ctx context.Context, req domainauth.RegisterRequest) (*service.AuthResult, error)
	RegisterPrivileged(ctx context.Context, req domainauth.RegisterRequest) (*service.AuthResult, error)
	Login(ctx context.Context, req domainauth.LoginRequest) (*service.AuthResult, error)
	FederatedEnabled() bool
	BeginFederatedLogin(ctx context.Context, redirect string) (*service.BeginLoginResult, error)
	CompleteFederatedLogin(ctx context.Context, in service.CompleteLoginInput) (*service.AuthResult, error)
}

// AuthHandlers provides HTTP handlers for registration and login.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieDomain string
	// SuccessRedirectURL, when set, receives the browser after a federated login with the
	// token in the URL fragment instead of a JSON body.
	SuccessRedirectURL string
	Logger             *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// AuthResponse is returned by every endpoint that issues a token.
type AuthResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      domainauth.Role `json:"role"`
}

func newAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     res.Token.Token,
		TokenType: "Bearer",
		ExpiresAt: res.Token.ExpiresAt.UTC(),
		Username:  res.User.Username,
		Email:     res.User.Email,
		FirstName: res.User.FirstName,
		LastName:  res.User.LastName,
		Role:      res.User.Role,
	}
}

// Register handles self-service registration.
// POST /api/v1/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domainauth.RegisterRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, newAuthResponse(res))
}

// Authenticate handles username/password login.
// POST /api/v1/auth/authenticate.
func (h *AuthHandlers) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req domainauth.LoginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, newAuthResponse(res))
}

// RegisterPrivileged creates an account with a caller-chosen role.
// POST /api/v1/admin/register (ADMIN only).
func (h *AuthHandlers) RegisterPrivileged(w http.ResponseWriter, r *http.Request) {
	var req domainauth.RegisterRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.RegisterPrivileged(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, newAuthResponse(res))
}

// Providers reports which login methods are available.
// GET /api/v1/auth/providers.
func (h *AuthHandlers) Providers(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{
		"password":  true,
		"federated": h.Svc.FederatedEnabled(),
	})
}
