package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/mmk-auth-api/internal/adapters/passhash"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	mocks "github.com/target/mmk-auth-api/internal/mocks/auth"
	"github.com/target/mmk-auth-api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// harness wires real services over in-memory adapters behind the production router.
type harness struct {
	t        *testing.T
	repo     *mocks.MemoryUserRepository
	hasher   *passhash.BcryptHasher
	tokens   *service.TokenService
	provider *mocks.MockAuthProvider
	states   *mocks.MemoryLoginStateStore
	handler  http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, mutate ...func(*RouterServices)) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		repo:     mocks.NewMemoryUserRepository(),
		hasher:   passhash.NewBcryptHasher(bcrypt.MinCost),
		provider: mocks.NewMockAuthProvider(),
		states:   mocks.NewMemoryLoginStateStore(),
	}
	tokens, err := service.NewTokenService(service.TokenServiceOptions{Secret: testSecret, Issuer: "mmk-auth"})
	require.NoError(t, err)
	h.tokens = tokens

	logger := discardLogger()
	provisioner := service.NewProvisioner(service.ProvisionerOptions{Users: h.repo, Hasher: h.hasher, Logger: logger})
	authSvc := service.NewAuthService(service.AuthServiceOptions{
		Users:       h.repo,
		Hasher:      h.hasher,
		Tokens:      tokens,
		Provider:    h.provider,
		States:      h.states,
		Provisioner: provisioner,
		Logger:      logger,
	})
	services := RouterServices{
		Auth:          authSvc,
		Users:         service.NewUserService(service.UserServiceOptions{Repo: h.repo, Logger: logger}),
		Authenticator: service.NewAuthenticator(service.AuthenticatorOptions{Tokens: tokens, Users: h.repo, Logger: logger}),
		Logger:        logger,
	}
	for _, m := range mutate {
		m(&services)
	}
	h.handler = NewRouter(services)
	return h
}

// seed stores a local account directly in the repository.
func (h *harness) seed(username, password string, role domainauth.Role) *domainauth.User {
	h.t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(h.t, err)
	u, err := h.repo.Create(context.Background(), &domainauth.CreateUserRequest{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		LastName:     "Tester",
		Role:         role,
	})
	require.NoError(h.t, err)
	return u
}

func (h *harness) tokenFor(u *domainauth.User) string {
	h.t.Helper()
	issued, err := h.tokens.Issue(u)
	require.NoError(h.t, err)
	return issued.Token
}

type reqOpts struct {
	body   any
	token  string
	header http.Header
	cookie *http.Cookie
}

func (h *harness) do(method, path string, opts reqOpts) *httptest.ResponseRecorder {
	h.t.Helper()
	var body io.Reader
	if opts.body != nil {
		switch b := opts.body.(type) {
		case string:
			body = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(h.t, err)
			body = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, body)
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range opts.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	if opts.cookie != nil {
		req.AddCookie(opts.cookie)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
