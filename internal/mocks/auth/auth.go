package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/target/mmk-auth-api/internal/core"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider    = (*MockAuthProvider)(nil)
	_ ports.LoginStateStore = (*MemoryLoginStateStore)(nil)
	_ core.UserRepository   = (*MemoryUserRepository)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedClaims, error)

	// Deterministic values for predictable testing
	AuthURL      string
	StatePrefix  string
	NoncePrefix  string
	DefaultClaim domainauth.FederatedClaims

	mu        sync.Mutex
	callCount int
	exchanges []ports.ExchangeInput
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	verified := true
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultClaim: domainauth.FederatedClaims{
			Subject:       "mock-subject-1",
			Email:         "mock.user@example.com",
			EmailVerified: &verified,
			GivenName:     "Mock",
			FamilyName:    "User",
			Name:          "Mock User",
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, n)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, n)
	return authURL + "?state=" + state, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.FederatedClaims, error) {
	m.mu.Lock()
	m.exchanges = append(m.exchanges, in)
	m.mu.Unlock()

	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if in.Code == "" {
		return domainauth.FederatedClaims{}, errors.New("authorization code is required")
	}
	return m.DefaultClaim, nil
}

// Exchanges returns the inputs Exchange was called with.
func (m *MockAuthProvider) Exchanges() []ports.ExchangeInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.ExchangeInput(nil), m.exchanges...)
}

type storedState struct {
	state     domainauth.LoginState
	expiresAt time.Time
}

// MemoryLoginStateStore is an in-memory single-use login state store for unit tests.
type MemoryLoginStateStore struct {
	mu     sync.Mutex
	states map[string]storedState
	now    func() time.Time
}

// NewMemoryLoginStateStore creates a new in-memory login state store.
func NewMemoryLoginStateStore() *MemoryLoginStateStore {
	return &MemoryLoginStateStore{states: make(map[string]storedState), now: time.Now}
}

// SetNow overrides the clock used for expiry.
func (m *MemoryLoginStateStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryLoginStateStore) Save(_ context.Context, ls domainauth.LoginState, ttl time.Duration) error {
	if ls.State == "" {
		return errors.New("state cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[ls.State] = storedState{state: ls, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryLoginStateStore) Consume(_ context.Context, state string) (domainauth.LoginState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[state]
	if !ok {
		return domainauth.LoginState{}, ports.ErrLoginStateNotFound
	}
	delete(m.states, state)
	if !m.now().Before(st.expiresAt) {
		return domainauth.LoginState{}, ports.ErrLoginStateNotFound
	}
	return st.state, nil
}

// Len returns the number of stored states.
func (m *MemoryLoginStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// MemoryUserRepository is an in-memory credential store that enforces username and email
// uniqueness under a mutex, mirroring the database constraints.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*domainauth.User // by ID
	now   func() time.Time

	// CreateHook, when set, runs before a record is inserted and may fail the call.
	CreateHook func(req *domainauth.CreateUserRequest) error
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domainauth.User), now: time.Now}
}

func (r *MemoryUserRepository) Create(_ context.Context, req *domainauth.CreateUserRequest) (*domainauth.User, error) {
	if req == nil {
		return nil, errors.New("create user request is required")
	}
	if !req.Role.Valid() {
		return nil, apperrors.ValidationField("role", "role must be one of USER, ADMIN")
	}
	if r.CreateHook != nil {
		if err := r.CreateHook(req); err != nil {
			return nil, err
		}
	}
	email := domainauth.NormalizeEmail(req.Email)
	source := req.AuthSource
	if source == "" {
		source = domainauth.AuthSourceLocal
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == req.Username {
			return nil, apperrors.ConflictField("username", "Username is already taken.")
		}
		if u.Email == email {
			return nil, apperrors.ConflictField("email", "Email is already registered.")
		}
	}
	now := r.now().UTC()
	u := &domainauth.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        email,
		PasswordHash: req.PasswordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		AuthSource:   source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, apperrors.NotFound("user not found")
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*domainauth.User, error) {
	return r.find(func(u *domainauth.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domainauth.User, error) {
	email = domainauth.NormalizeEmail(email)
	return r.find(func(u *domainauth.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) List(_ context.Context, limit, offset int) ([]*domainauth.User, error) {
	r.mu.Lock()
	all := make([]*domainauth.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, cloneUser(u))
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []*domainauth.User{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *MemoryUserRepository) find(match func(*domainauth.User) bool) (*domainauth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func cloneUser(u *domainauth.User) *domainauth.User {
	cp := *u
	return &cp
}
