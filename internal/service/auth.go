package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/mmk-auth-api/internal/core"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/observability/metrics"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
	"github.com/target/mmk-auth-api/internal/ports"
)

// DefaultLoginStateTTL bounds how long a federated login handshake may take.
const DefaultLoginStateTTL = 10 * time.Minute

// invalidCredentialsMessage is the single message returned for every failed login.
const invalidCredentialsMessage = "invalid username or password"

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users       core.UserRepository
	Hasher      ports.PasswordHasher
	Tokens      *TokenService
	Provider    ports.AuthProvider // optional; federated login is unavailable without it
	States      ports.LoginStateStore
	Provisioner *Provisioner
	StateTTL    time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// AuthService orchestrates registration, password login and federated login.
type AuthService struct {
	users       core.UserRepository
	hasher      ports.PasswordHasher
	tokens      *TokenService
	provider    ports.AuthProvider
	states      ports.LoginStateStore
	provisioner *Provisioner
	stateTTL    time.Duration
	now         func() time.Time
	logger      *slog.Logger
	metrics     statsd.Sink

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &AuthService{
		users:       opts.Users,
		hasher:      opts.Hasher,
		tokens:      opts.Tokens,
		provider:    opts.Provider,
		states:      opts.States,
		provisioner: opts.Provisioner,
		stateTTL:    opts.StateTTL,
		now:         opts.Now,
		logger:      logger.With("component", "auth_service"),
		metrics:     opts.Metrics,
	}
	if s.stateTTL <= 0 {
		s.stateTTL = DefaultLoginStateTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AuthResult is a signed token together with the user it was issued for.
type AuthResult struct {
	Token    IssuedToken
	User     *domainauth.User
	Redirect string // post-login destination, federated flow only
}

// Register creates a local account. The role is always USER regardless of the request.
func (s *AuthService) Register(ctx context.Context, req domainauth.RegisterRequest) (*AuthResult, error) {
	req.Role = ""
	return s.register(ctx, req, domainauth.RoleUser)
}

// RegisterPrivileged creates a local account with the requested role, defaulting to USER.
// Callers must already hold ADMIN.
func (s *AuthService) RegisterPrivileged(ctx context.Context, req domainauth.RegisterRequest) (*AuthResult, error) {
	req.Normalize()
	role := domainauth.RoleUser
	if req.Role != "" {
		parsed, ok := domainauth.ParseRole(req.Role)
		if !ok {
			return nil, apperrors.ValidationFields("invalid registration", domainauth.RoleFieldError())
		}
		role = parsed
	}
	return s.register(ctx, req, role)
}

func (s *AuthService) register(ctx context.Context, req domainauth.RegisterRequest, role domainauth.Role) (*AuthResult, error) {
	req.Normalize()
	if fields := req.Validate(); len(fields) > 0 {
		s.emit(metrics.EventRegister, metrics.ResultFailure, "validation", nil)
		return nil, apperrors.ValidationFields("invalid registration", fields)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// Uniqueness is decided by the store; a duplicate surfaces as a conflict.
	user, err := s.users.Create(ctx, &domainauth.CreateUserRequest{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		AuthSource:   domainauth.AuthSourceLocal,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			s.emit(metrics.EventRegister, metrics.ResultFailure, "conflict", nil)
			return nil, err
		}
		s.emit(metrics.EventRegister, metrics.ResultError, "", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.emit(metrics.EventRegister, metrics.ResultSuccess, "", nil)
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return &AuthResult{Token: issued, User: user}, nil
}

// Login verifies a username and password and issues a token.
// Every credential failure yields the same unauthenticated error.
func (s *AuthService) Login(ctx context.Context, req domainauth.LoginRequest) (*AuthResult, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return nil, apperrors.ValidationFields("invalid login request", fields)
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.emit(metrics.EventLogin, metrics.ResultError, "", err)
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		// Spend the same bcrypt work as a real comparison.
		_ = s.hasher.Compare(s.dummy(), req.Password)
		return nil, s.loginFailed(ctx, "unknown_user")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, ports.ErrPasswordMismatch) {
			s.emit(metrics.EventLogin, metrics.ResultError, "", err)
			return nil, fmt.Errorf("compare password: %w", err)
		}
		return nil, s.loginFailed(ctx, "bad_password")
	}
	if user.AuthSource == domainauth.AuthSourceFederated {
		return nil, s.loginFailed(ctx, "federated_account")
	}

	issued, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.emit(metrics.EventLogin, metrics.ResultSuccess, "", nil)
	return &AuthResult{Token: issued, User: user}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, reason string) error {
	s.logger.WarnContext(ctx, "login failed", "reason", reason)
	s.emit(metrics.EventLogin, metrics.ResultFailure, reason, nil)
	return apperrors.Unauthenticated(invalidCredentialsMessage)
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.RandomUnusable()
		if err != nil {
			s.logger.Error("generate dummy password hash", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Provisioner returns the federated identity provisioner, or nil when federation is disabled.
func (s *AuthService) Provisioner() *Provisioner { return s.provisioner }

// FederatedEnabled reports whether an identity provider is configured.
func (s *AuthService) FederatedEnabled() bool {
	return s.provider != nil && s.states != nil && s.provisioner != nil
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
}

// BeginFederatedLogin starts a federated login and records its state for the callback.
// redirect is the local path the user returns to after login.
func (s *AuthService) BeginFederatedLogin(ctx context.Context, redirect string) (*BeginLoginResult, error) {
	if !s.FederatedEnabled() {
		return nil, apperrors.NotFound("federated login is not configured")
	}
	if redirect == "" {
		redirect = "/"
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirect})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	ls := domainauth.LoginState{
		State:     state,
		Nonce:     nonce,
		Redirect:  redirect,
		CreatedAt: s.now().UTC(),
	}
	if err := s.states.Save(ctx, ls, s.stateTTL); err != nil {
		return nil, fmt.Errorf("save login state: %w", err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state}, nil
}

// CompleteLoginInput groups parameters for completing a federated login.
type CompleteLoginInput struct {
	Code  string
	State string
	// BoundState is the state echoed from the browser-bound cookie; it must be present and equal State.
	BoundState string
}

// CompleteFederatedLogin redeems the provider callback, provisions the local user and issues a token.
func (s *AuthService) CompleteFederatedLogin(ctx context.Context, in CompleteLoginInput) (*AuthResult, error) {
	if !s.FederatedEnabled() {
		return nil, apperrors.NotFound("federated login is not configured")
	}
	if in.Code == "" || in.State == "" {
		return nil, apperrors.Validation("authorization code and state are required")
	}
	if in.BoundState == "" || subtle.ConstantTimeCompare([]byte(in.BoundState), []byte(in.State)) != 1 {
		return nil, s.federatedFailed(ctx, "state_mismatch", nil)
	}

	ls, err := s.states.Consume(ctx, in.State)
	if err != nil {
		if errors.Is(err, ports.ErrLoginStateNotFound) {
			return nil, s.federatedFailed(ctx, "unknown_state", nil)
		}
		return nil, fmt.Errorf("consume login state: %w", err)
	}

	claims, err := s.provider.Exchange(ctx, ports.ExchangeInput{Code: in.Code, State: ls.State, Nonce: ls.Nonce})
	if err != nil {
		return nil, s.federatedFailed(ctx, "exchange_failed", err)
	}

	res, err := s.provisioner.Provision(ctx, claims)
	if err != nil {
		if apperrors.IsUnauthenticated(err) || apperrors.IsValidation(err) {
			return nil, s.federatedFailed(ctx, "claims_rejected", err)
		}
		return nil, fmt.Errorf("provision user: %w", err)
	}

	issued, err := s.tokens.Issue(res.User)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.emit(metrics.EventFederated, metrics.ResultSuccess, "", nil)
	return &AuthResult{Token: issued, User: res.User, Redirect: ls.Redirect}, nil
}

func (s *AuthService) federatedFailed(ctx context.Context, reason string, err error) error {
	attrs := []any{"reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.WarnContext(ctx, "federated login failed", attrs...)
	s.emit(metrics.EventFederated, metrics.ResultFailure, reason, nil)
	failure := apperrors.Unauthenticated("federated login failed")
	failure.Cause = err
	return failure
}

func (s *AuthService) emit(event, result, reason string, err error) {
	metrics.EmitAuth(s.metrics, metrics.AuthMetric{Event: event, Result: result, Reason: reason, Err: err})
}
