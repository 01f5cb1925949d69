package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
)

const (
	// MinSecretBytes is the minimum signing key length for HS256.
	MinSecretBytes = 32
	// DefaultTokenTTL is the validity window of an issued token.
	DefaultTokenTTL = 24 * time.Hour
)

// ErrInvalidToken is wrapped by every token validation failure.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims are the claims carried by an issued token.
type TokenClaims struct {
	Role   string `json:"role,omitempty"`
	UserID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// IssuedToken is a freshly signed token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenServiceOptions groups configuration for TokenService.
type TokenServiceOptions struct {
	Secret    []byte
	TTL       time.Duration    // defaults to DefaultTokenTTL
	Issuer    string           // optional; enforced on validation when set
	ClockSkew time.Duration    // tolerated clock difference on expiry; zero by default
	Now       func() time.Time // defaults to time.Now
}

// TokenService issues and validates HS256 bearer tokens.
// It is stateless and safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	skew   time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService constructs a TokenService. The secret must be at least MinSecretBytes long.
func NewTokenService(opts TokenServiceOptions) (*TokenService, error) {
	if len(opts.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretBytes)
	}
	if opts.TTL < 0 {
		return nil, errors.New("token TTL must not be negative")
	}
	if opts.ClockSkew < 0 {
		return nil, errors.New("token clock skew must not be negative")
	}

	s := &TokenService{
		secret: append([]byte(nil), opts.Secret...),
		ttl:    opts.TTL,
		issuer: strings.TrimSpace(opts.Issuer),
		skew:   opts.ClockSkew,
		now:    opts.Now,
	}
	if s.ttl == 0 {
		s.ttl = DefaultTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.skew),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)
	return s, nil
}

// TTL returns the validity window applied to issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for user. It is a pure function of the user, the key and the clock.
func (s *TokenService) Issue(user *domainauth.User) (IssuedToken, error) {
	if user == nil || user.Username == "" {
		return IssuedToken{}, errors.New("username is required")
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := TokenClaims{
		Role:   string(user.Role),
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	// NumericDate truncates to seconds; report what the token actually carries.
	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate verifies the signature, algorithm, expiry and issuer of token and returns its claims.
// Every failure wraps ErrInvalidToken.
func (s *TokenService) Validate(token string) (*TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &TokenClaims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// ExtractUsername returns the subject of token without verifying it.
// The result is only a lookup key and must never be used to authorize anything.
func (s *TokenService) ExtractUsername(token string) (string, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseUnverified decodes token claims without checking the signature or expiry.
func ParseUnverified(token string) (*TokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
