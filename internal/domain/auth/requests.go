package auth

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxUsernameLen   = 100
	maxNameLen       = 100
	minPasswordLen   = 6
	maxPasswordBytes = 72 // bcrypt input limit
	maxEmailLen      = 254
	fieldUsername    = "username"
	fieldEmail       = "email"
	fieldPassword    = "password"
	fieldFirstName   = "first_name"
	fieldLastName    = "last_name"
	fieldRole        = "role"
	fieldCredentials = "credentials"
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUserRequest is the fully-resolved record handed to the store.
// PasswordHash and Role are computed before the store is called so a record is never
// written in a partial state.
type CreateUserRequest struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	AuthSource   AuthSource
}

// RegisterRequest is the client-supplied payload for local registration.
// Role is only honored on the privileged path.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

// Normalize trims identifiers and lower-cases the email in place.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Role = strings.TrimSpace(r.Role)
}

// Validate returns per-field problems, or nil when the request is acceptable.
// Role is not checked here; see ParseRole.
func (r *RegisterRequest) Validate() map[string]string {
	errs := map[string]string{}
	switch {
	case r.Username == "":
		errs[fieldUsername] = "username is required"
	case utf8.RuneCountInString(r.Username) > maxUsernameLen:
		errs[fieldUsername] = "username cannot exceed 100 characters"
	case strings.IndexFunc(r.Username, unicode.IsSpace) >= 0:
		errs[fieldUsername] = "username cannot contain whitespace"
	}
	switch {
	case r.Email == "":
		errs[fieldEmail] = "email is required"
	case len(r.Email) > maxEmailLen || !validEmail(r.Email):
		errs[fieldEmail] = "email must be a valid address"
	}
	switch {
	case r.Password == "":
		errs[fieldPassword] = "password is required"
	case utf8.RuneCountInString(r.Password) < minPasswordLen:
		errs[fieldPassword] = "password must be at least 6 characters"
	case len(r.Password) > maxPasswordBytes:
		errs[fieldPassword] = "password cannot exceed 72 bytes"
	}
	if utf8.RuneCountInString(r.FirstName) > maxNameLen {
		errs[fieldFirstName] = "first_name cannot exceed 100 characters"
	}
	if utf8.RuneCountInString(r.LastName) > maxNameLen {
		errs[fieldLastName] = "last_name cannot exceed 100 characters"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// RoleFieldError is the field detail reported for an unknown role.
func RoleFieldError() map[string]string {
	return map[string]string{fieldRole: "role must be one of USER, ADMIN"}
}

// LoginRequest is the client-supplied payload for local login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (r *LoginRequest) Validate() map[string]string {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return map[string]string{fieldCredentials: "username and password are required"}
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// Reject display-name forms like "Bob <bob@x>".
	return addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}
