// Package passhash implements ports.PasswordHasher with bcrypt.
package passhash

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/target/mmk-auth-api/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

var _ ports.PasswordHasher = (*BcryptHasher)(nil)

// unusableSecretBytes is the entropy of the throwaway secret behind federated-only accounts.
const unusableSecretBytes = 32

// BcryptHasher hashes passwords with bcrypt at Cost (bcrypt.DefaultCost when zero).
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher with the given cost, clamped to bcrypt's valid range.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) cost() int {
	if h == nil || h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare reports ports.ErrPasswordMismatch when password does not match hash.
// A malformed hash is reported as a mismatch as well.
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) ||
		errors.Is(err, bcrypt.ErrHashTooShort) ||
		errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ports.ErrPasswordMismatch
	}
	var vErr bcrypt.HashVersionTooNewError
	var pErr bcrypt.InvalidHashPrefixError
	if errors.As(err, &vErr) || errors.As(err, &pErr) {
		return ports.ErrPasswordMismatch
	}
	return fmt.Errorf("compare password: %w", err)
}

// RandomUnusable hashes 32 random bytes that are discarded immediately, yielding a
// well-formed hash no password can match in practice.
func (h *BcryptHasher) RandomUnusable() (string, error) {
	raw := make([]byte, unusableSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate random secret: %w", err)
	}
	// bcrypt reads at most 72 bytes; base64 of 32 bytes is 43.
	return h.Hash(base64.RawStdEncoding.EncodeToString(raw))
}
