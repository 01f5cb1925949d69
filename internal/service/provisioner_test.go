package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-auth-api/internal/adapters/passhash"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/mocks"
	authmocks "github.com/target/mmk-auth-api/internal/mocks/auth"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func fastHasher() *passhash.BcryptHasher {
	return passhash.NewBcryptHasher(bcrypt.MinCost)
}

func boolPtr(b bool) *bool { return &b }

func federated(email string) domainauth.FederatedClaims {
	return domainauth.FederatedClaims{
		Subject:       "sub-" + email,
		Email:         email,
		EmailVerified: boolPtr(true),
		GivenName:     "Fed",
		FamilyName:    "Erated",
	}
}

func TestProvisioner_CreatesUserOnFirstLogin(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	hasher := fastHasher()
	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: hasher})

	res, err := p.Provision(context.Background(), federated("  New.User@Example.com "))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "new.user@example.com", res.User.Username)
	assert.Equal(t, "new.user@example.com", res.User.Email)
	assert.Equal(t, domainauth.RoleUser, res.User.Role)
	assert.Equal(t, domainauth.AuthSourceFederated, res.User.AuthSource)
	assert.Equal(t, "Fed", res.User.FirstName)
	assert.Equal(t, "Erated", res.User.LastName)
	assert.Equal(t, []string{"ROLE_USER"}, res.Authorities)

	// The stored hash is well-formed but matches no guessable password.
	require.NotEmpty(t, res.User.PasswordHash)
	assert.Error(t, hasher.Compare(res.User.PasswordHash, ""))
	assert.Error(t, hasher.Compare(res.User.PasswordHash, "new.user@example.com"))
}

func TestProvisioner_ExistingUserIsNotOverwritten(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	existing, err := repo.Create(context.Background(), &domainauth.CreateUserRequest{
		Username:     "boss",
		Email:        "boss@example.com",
		PasswordHash: "local-hash",
		FirstName:    "Original",
		LastName:     "Name",
		Role:         domainauth.RoleAdmin,
	})
	require.NoError(t, err)

	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: fastHasher()})
	claims := federated("BOSS@example.com")
	claims.GivenName = "Changed"

	for range 2 {
		res, err := p.Provision(context.Background(), claims)
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, existing.ID, res.User.ID)
		assert.Equal(t, "Original", res.User.FirstName)
		assert.Equal(t, "local-hash", res.User.PasswordHash)
		assert.Equal(t, domainauth.RoleAdmin, res.User.Role)
		assert.Equal(t, []string{"ROLE_ADMIN"}, res.Authorities)
	}

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProvisioner_RepeatedLoginYieldsOneRecord(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: fastHasher()})

	first, err := p.Provision(context.Background(), federated("twice@example.com"))
	require.NoError(t, err)
	second, err := p.Provision(context.Background(), federated("twice@example.com"))
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.True(t, first.Created)
	assert.False(t, second.Created)
}

func TestProvisioner_ConcurrentFirstLogins(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: fastHasher()})

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Provision(context.Background(), federated("race@example.com"))
			errs[i] = err
			if err == nil {
				ids[i] = res.User.ID
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProvisioner_ConflictFromAnotherProcess(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	repo := mocks.NewMockUserRepository(ctrl)
	winner := &domainauth.User{ID: "winner", Username: "race@example.com", Email: "race@example.com", Role: domainauth.RoleUser}

	gomock.InOrder(
		repo.EXPECT().GetByEmail(gomock.Any(), "race@example.com").Return(nil, apperrors.NotFound("user not found")),
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, apperrors.ConflictField("email", "Email is already registered.")),
		repo.EXPECT().GetByEmail(gomock.Any(), "race@example.com").Return(winner, nil),
	)

	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: fastHasher()})
	res, err := p.Provision(context.Background(), federated("race@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "winner", res.User.ID)
	assert.False(t, res.Created)
}

func TestProvisioner_UsernameTakenByLocalAccount(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	_, err := repo.Create(context.Background(), &domainauth.CreateUserRequest{
		Username:     "taken@example.com",
		Email:        "someone-else@example.com",
		PasswordHash: "h",
		Role:         domainauth.RoleUser,
	})
	require.NoError(t, err)

	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: fastHasher()})
	_, err = p.Provision(context.Background(), federated("taken@example.com"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "username", apperrors.GetField(err))
}

func TestProvisioner_CreateFailsWithStoreError(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	repo.CreateHook = func(*domainauth.CreateUserRequest) error { return errors.New("disk full") }
	p := NewProvisioner(ProvisionerOptions{Users: repo, Hasher: fastHasher()})

	_, err := p.Provision(context.Background(), federated("x@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestProvisioner_RejectsBadClaims(t *testing.T) {
	repo := authmocks.NewMemoryUserRepository()
	p := NewProvisioner(ProvisionerOptions{
		Users:          repo,
		Hasher:         fastHasher(),
		AllowedDomains: []string{"Example.com", " "},
	})

	t.Run("missing email", func(t *testing.T) {
		_, err := p.Provision(context.Background(), domainauth.FederatedClaims{Subject: "s"})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unverified email", func(t *testing.T) {
		c := federated("a@example.com")
		c.EmailVerified = boolPtr(false)
		_, err := p.Provision(context.Background(), c)
		assert.True(t, apperrors.IsUnauthenticated(err))
	})

	t.Run("domain not allowed", func(t *testing.T) {
		_, err := p.Provision(context.Background(), federated("a@evil.com"))
		assert.True(t, apperrors.IsUnauthenticated(err))
	})

	t.Run("lookalike suffix not allowed", func(t *testing.T) {
		_, err := p.Provision(context.Background(), federated("a@notexample.com"))
		assert.True(t, apperrors.IsUnauthenticated(err))
	})

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProvisioner_AllowedDomains(t *testing.T) {
	p := NewProvisioner(ProvisionerOptions{
		Users:          authmocks.NewMemoryUserRepository(),
		Hasher:         fastHasher(),
		AllowedDomains: []string{"example.com"},
	})

	t.Run("subdomain of registrable domain", func(t *testing.T) {
		_, err := p.Provision(context.Background(), federated("a@corp.example.com"))
		require.NoError(t, err)
	})

	t.Run("unknown verification is accepted", func(t *testing.T) {
		c := federated("b@example.com")
		c.EmailVerified = nil
		_, err := p.Provision(context.Background(), c)
		require.NoError(t, err)
	})
}

func TestFederatedNames(t *testing.T) {
	first, last := federatedNames(domainauth.FederatedClaims{Name: "Ada King Lovelace"})
	assert.Equal(t, "Ada", first)
	assert.Equal(t, "King Lovelace", last)

	first, last = federatedNames(domainauth.FederatedClaims{GivenName: "Grace", Name: "ignored"})
	assert.Equal(t, "Grace", first)
	assert.Empty(t, last)
}
