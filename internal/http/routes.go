package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
)

// DefaultPublicPaths are reachable without a token; the intercept never inspects them.
func DefaultPublicPaths() domainauth.PublicPaths {
	return domainauth.PublicPaths{"/api/v1/auth/", "/healthz", "/actuator/health"}
}

// DefaultPolicy is the route table guarding every non-public endpoint.
// Unlisted non-public routes require any authenticated identity.
func DefaultPolicy(public domainauth.PublicPaths) *domainauth.Policy {
	return domainauth.NewPolicy(public,
		domainauth.Rule{Method: http.MethodGet, Pattern: "/api/v1/me", Predicate: domainauth.AnyAuthenticated},
		domainauth.Rule{Pattern: "/api/v1/user/...", Predicate: domainauth.UserOrAdmin},
		domainauth.Rule{Pattern: "/api/v1/admin/...", Predicate: domainauth.AdminOnly},
	)
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth          AuthServiceInterface
	Users         UserServiceInterface
	Authenticator RequestAuthenticator
	// Policy defaults to DefaultPolicy(DefaultPublicPaths()) when nil.
	Policy             *domainauth.Policy
	CookieDomain       string
	SuccessRedirectURL string
	Logger             *slog.Logger
	Metrics            statsd.Sink
}

// NewRouter creates and configures a new HTTP router.
//
// Every request passes Recover, Logging, the authentication intercept and the policy
// evaluator, in that order, before reaching a handler.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := services.Policy
	if policy == nil {
		policy = DefaultPolicy(DefaultPublicPaths())
	}

	mux := http.NewServeMux()
	authHandlers := &AuthHandlers{
		Svc:                services.Auth,
		CookieDomain:       services.CookieDomain,
		SuccessRedirectURL: services.SuccessRedirectURL,
		Logger:             logger,
	}
	userHandlers := &UserHandlers{Svc: services.Users, Logger: logger}

	registerAuthRoutes(mux, authHandlers)
	registerUserRoutes(mux, userHandlers)
	registerAdminRoutes(mux, authHandlers, userHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /actuator/health", http.HandlerFunc(actuatorHealthHandler))

	return Chain(mux,
		Recover(logger),
		Logging(logger),
		Authenticate(services.Authenticator, policy.Public()),
		Authorize(AuthorizeOptions{Policy: policy, Logger: logger, Metrics: services.Metrics}),
	)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/authenticate", h.Authenticate)
	mux.HandleFunc("GET /api/v1/auth/providers", h.Providers)
	mux.HandleFunc("GET /api/v1/auth/oauth2/login", h.FederatedLogin)
	mux.HandleFunc("GET /api/v1/auth/oauth2/callback", h.FederatedCallback)
	mux.HandleFunc("GET /api/v1/auth/health", authHealthHandler)
}

func registerUserRoutes(mux *http.ServeMux, h *UserHandlers) {
	mux.HandleFunc("GET /api/v1/me", h.Me)
	mux.HandleFunc("GET /api/v1/user/profile", h.Profile)
	mux.HandleFunc("GET /api/v1/user/dashboard", h.UserDashboard)
}

func registerAdminRoutes(mux *http.ServeMux, auth *AuthHandlers, users *UserHandlers) {
	mux.HandleFunc("POST /api/v1/admin/register", auth.RegisterPrivileged)
	mux.HandleFunc("GET /api/v1/admin/users", users.ListUsers)
	mux.HandleFunc("DELETE /api/v1/admin/users/{id}", users.DeleteUser)
	mux.HandleFunc("GET /api/v1/admin/dashboard", users.AdminDashboard)
}
