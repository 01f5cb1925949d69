package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"golang.org/x/oauth2"
)

type sampleError struct{}

func (*sampleError) Error() string { return "sample" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "app error", err: apperrors.Unauthenticated("nope"), want: "unauthenticated"},
		{name: "wrapped app error", err: fmt.Errorf("login: %w", apperrors.ConflictField("email", "taken")), want: "conflict"},
		{name: "deadline", err: fmt.Errorf("lookup: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "expired token", err: fmt.Errorf("validate: %w", jwt.ErrTokenExpired), want: "token_expired"},
		{name: "bad signature", err: jwt.ErrTokenSignatureInvalid, want: "token_signature"},
		{name: "malformed token", err: jwt.ErrTokenMalformed, want: "token_malformed"},
		{name: "oauth exchange", err: fmt.Errorf("exchange: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}), want: "provider_exchange"},
		{name: "postgres", err: &pgconn.PgError{Code: "23505"}, want: "db_23"},
		{name: "pointer type", err: fmt.Errorf("outer: %w", &sampleError{}), want: "errors_sampleerror"},
		{name: "plain", err: errors.New("boom"), want: "errors_errorstring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
