// Package auth contains domain-level types for users, identities and authorization.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"strings"
	"time"
)

// Role represents an application's authorization role.
// The set is closed: only the constants below are valid.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a case-insensitive string onto a known Role.
// The second return value is false for anything outside the closed set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Authorities derives the authority set granted by a stored role.
// Unknown roles grant nothing.
func (r Role) Authorities() []string {
	if !r.Valid() {
		return nil
	}
	return []string{"ROLE_" + string(r)}
}

// AuthSource records how a user record came into existence.
type AuthSource string

const (
	AuthSourceLocal     AuthSource = "local"
	AuthSourceFederated AuthSource = "federated"
)

// User is the persisted identity record.
type User struct {
	ID           string     `json:"id"         db:"id"`
	Username     string     `json:"username"   db:"username"`
	Email        string     `json:"email"      db:"email"`
	PasswordHash string     `json:"-"          db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name"  db:"last_name"`
	Role         Role       `json:"role"       db:"role"`
	AuthSource   AuthSource `json:"auth_source" db:"auth_source"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Identity is the authenticated principal for a single request.
// Role and Authorities always come from the stored user, never from token or provider claims.
type Identity struct {
	UserID      string
	Username    string
	Email       string
	FirstName   string
	LastName    string
	Role        Role
	Authorities []string
	ExpiresAt   time.Time // token expiry
}

// NewIdentity builds an Identity from a freshly loaded user.
func NewIdentity(u User, expiresAt time.Time) Identity {
	return Identity{
		UserID:      u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Authorities: u.Role.Authorities(),
		ExpiresAt:   expiresAt,
	}
}

// Authentication is the explicit identity-or-none outcome of authenticating a request.
// Reason explains an anonymous outcome for logs and metrics; it is never sent to clients.
type Authentication struct {
	identity      Identity
	authenticated bool
	Reason        string
}

// Authenticated returns an Authentication carrying id.
func Authenticated(id Identity) Authentication {
	return Authentication{identity: id, authenticated: true}
}

// Anonymous returns an Authentication with no identity.
func Anonymous(reason string) Authentication {
	return Authentication{Reason: reason}
}

// Identity returns the identity and whether one was established.
func (a Authentication) Identity() (Identity, bool) {
	return a.identity, a.authenticated
}

// IsAuthenticated reports whether an identity was established.
func (a Authentication) IsAuthenticated() bool { return a.authenticated }

// FederatedClaims is the transient claim set returned by an identity provider after a
// verified handshake. It is consumed once and never persisted as-is.
type FederatedClaims struct {
	Subject       string
	Email         string
	EmailVerified *bool // nil when the provider did not say
	GivenName     string
	FamilyName    string
	Name          string
}

// LoginState is the CSRF state of an in-flight federated login handshake.
// It is stored server-side for a short TTL and consumed exactly once.
type LoginState struct {
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	Redirect  string    `json:"redirect,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
