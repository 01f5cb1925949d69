// Package errors turns arbitrary errors into low-cardinality class names for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"golang.org/x/oauth2"
)

// Classify returns a normalized error class suitable for tagging metrics and logs.
// Known auth failure shapes get stable names; anything else falls back to the innermost
// concrete type, converted to snake_case-ish.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if class := knownClass(err); class != "" {
		return class
	}
	return typeName(innermost(err))
}

func knownClass(err error) string {
	var (
		appErr   *apperrors.AppError
		pgErr    *pgconn.PgError
		retrieve *oauth2.RetrieveError
		netErr   net.Error
	)
	switch {
	case goerrors.As(err, &appErr) && appErr.Code != "":
		return string(appErr.Code)
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, jwt.ErrTokenExpired):
		return "token_expired"
	case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token_signature"
	case goerrors.Is(err, jwt.ErrTokenMalformed):
		return "token_malformed"
	case goerrors.As(err, &retrieve):
		return "provider_exchange"
	case goerrors.As(err, &pgErr):
		// SQLSTATE class, e.g. "23" for integrity violations.
		if len(pgErr.Code) >= 2 {
			return "db_" + pgErr.Code[:2]
		}
		return "db"
	case goerrors.As(err, &netErr):
		return "network"
	}
	return ""
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	if name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_"); name != "" {
		return name
	}
	return "unknown"
}
