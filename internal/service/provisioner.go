package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/mmk-auth-api/internal/core"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/observability/metrics"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
	"github.com/target/mmk-auth-api/internal/ports"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

// ProvisionerOptions groups dependencies for Provisioner.
type ProvisionerOptions struct {
	Users  core.UserRepository
	Hasher ports.PasswordHasher
	// AllowedDomains restricts federated sign-in to these registrable email domains.
	// Empty allows every domain.
	AllowedDomains []string
	Logger         *slog.Logger
	Metrics        statsd.Sink
}

// Provisioner maps verified federated claims onto a local user, creating one on first login.
type Provisioner struct {
	users   core.UserRepository
	hasher  ports.PasswordHasher
	domains map[string]struct{}
	logger  *slog.Logger
	metrics statsd.Sink
	group   singleflight.Group
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(opts ProvisionerOptions) *Provisioner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provisioner{
		users:   opts.Users,
		hasher:  opts.Hasher,
		logger:  logger.With("component", "provisioner"),
		metrics: opts.Metrics,
	}
	for _, d := range opts.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			if p.domains == nil {
				p.domains = make(map[string]struct{})
			}
			p.domains[d] = struct{}{}
		}
	}
	return p
}

// ProvisionResult is the local user behind a federated login.
type ProvisionResult struct {
	User        *domainauth.User
	Authorities []string
	Created     bool
}

// Provision returns the user matching claims by email, creating it when absent.
//
// An existing user is returned unchanged. A new user gets username=email, role USER and
// a random unusable password hash. Authorities are derived from the stored role only.
func (p *Provisioner) Provision(ctx context.Context, claims domainauth.FederatedClaims) (*ProvisionResult, error) {
	email := domainauth.NormalizeEmail(claims.Email)
	if email == "" {
		return nil, apperrors.ValidationField("email", "email claim is required")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		p.emit(metrics.ResultFailure, "email_unverified", nil)
		return nil, apperrors.Unauthenticated("email address is not verified")
	}
	if !p.domainAllowed(email) {
		p.emit(metrics.ResultFailure, "domain_not_allowed", nil)
		return nil, apperrors.Unauthenticated("email domain is not allowed")
	}
	claims.Email = email

	v, err, _ := p.group.Do(email, func() (any, error) {
		return p.findOrCreate(context.WithoutCancel(ctx), claims)
	})
	if err != nil {
		p.emit(metrics.ResultError, "", err)
		return nil, err
	}
	res := v.(*ProvisionResult)
	p.emit(metrics.ResultSuccess, "", nil)
	return &ProvisionResult{
		User:        res.User,
		Authorities: res.User.Role.Authorities(),
		Created:     res.Created,
	}, nil
}

func (p *Provisioner) findOrCreate(ctx context.Context, claims domainauth.FederatedClaims) (*ProvisionResult, error) {
	existing, err := p.users.GetByEmail(ctx, claims.Email)
	if err == nil {
		return &ProvisionResult{User: existing}, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := p.hasher.RandomUnusable()
	if err != nil {
		return nil, fmt.Errorf("generate unusable password: %w", err)
	}
	first, last := federatedNames(claims)
	created, err := p.users.Create(ctx, &domainauth.CreateUserRequest{
		Username:     claims.Email,
		Email:        claims.Email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Role:         domainauth.RoleUser,
		AuthSource:   domainauth.AuthSourceFederated,
	})
	if err == nil {
		p.logger.InfoContext(ctx, "provisioned federated user", "user_id", created.ID)
		return &ProvisionResult{User: created, Created: true}, nil
	}
	if !apperrors.IsConflict(err) {
		return nil, fmt.Errorf("create federated user: %w", err)
	}

	// Another process won the race; its record is authoritative.
	winner, lookupErr := p.users.GetByEmail(ctx, claims.Email)
	if lookupErr != nil {
		// The username (=email) may belong to a different local account.
		return nil, err
	}
	return &ProvisionResult{User: winner}, nil
}

func (p *Provisioner) domainAllowed(email string) bool {
	if len(p.domains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return false
	}
	host := email[at+1:]
	if _, ok := p.domains[host]; ok {
		return true
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	_, ok := p.domains[registrable]
	return ok
}

func (p *Provisioner) emit(result, reason string, err error) {
	metrics.EmitAuth(p.metrics, metrics.AuthMetric{
		Event:  metrics.EventProvision,
		Result: result,
		Reason: reason,
		Err:    err,
	})
}

func federatedNames(c domainauth.FederatedClaims) (string, string) {
	first := strings.TrimSpace(c.GivenName)
	last := strings.TrimSpace(c.FamilyName)
	if first == "" && last == "" {
		if name := strings.TrimSpace(c.Name); name != "" {
			first, last, _ = strings.Cut(name, " ")
			last = strings.TrimSpace(last)
		}
	}
	return first, last
}
