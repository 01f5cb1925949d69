package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column list from a unique violation detail:
// "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// conflictMessages are client-facing messages for known unique columns.
var conflictMessages = map[string]string{
	"username": "Username is already taken.",
	"email":    "Email is already registered.",
}

// MapDBError maps database errors to AppError instances:
// - pgx.ErrNoRows → NotFound
// - unique violations → Conflict naming the column
// - check and NOT NULL violations → Validation
// - context timeouts/cancellations → Timeout/Canceled
//
// Any other error is returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.CheckViolation:
		return mapFieldViolation(pgErr, "This field has an invalid value.", "Invalid data. Please check your input.")
	case pgerrcode.NotNullViolation:
		return mapFieldViolation(pgErr, "This field is required.", "Required field is missing. Please check your input.")
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := uniqueField(pgErr)
	msg, ok := conflictMessages[field]
	if !ok {
		msg = "This value already exists. Please choose a different one."
	}
	return &AppError{
		Code:    ErrCodeConflict,
		Message: msg,
		Field:   field,
		Cause:   pgErr,
	}
}

// uniqueField resolves the violated column from, in order: ColumnName, the Detail
// message, then the constraint name.
func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

func mapFieldViolation(pgErr *pgconn.PgError, fieldMsg, genericMsg string) error {
	field := pgErr.ColumnName
	if field == "" {
		field = inferFieldFromConstraint(pgErr.ConstraintName)
	}
	if field == "" {
		return &AppError{Code: ErrCodeValidation, Message: genericMsg, Cause: pgErr}
	}
	return &AppError{Code: ErrCodeValidation, Message: fieldMsg, Field: field, Cause: pgErr}
}

// inferFieldFromConstraint infers a column from Postgres' default constraint naming
// "<table>_<column>_<suffix>", e.g. "users_email_key" → "email" and
// "users_role_check" → "role". Multi-column or expression constraints yield "".
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}
	switch parts[2] {
	case "key", "unique", "idx", "check":
	default:
		return ""
	}
	if isFunctionName(parts[1]) {
		return ""
	}
	return parts[1]
}

// isFunctionName reports whether s is a SQL function commonly used in expression indexes.
func isFunctionName(s string) bool {
	switch strings.ToLower(s) {
	case "lower", "upper", "trim", "ltrim", "rtrim", "md5":
		return true
	default:
		return false
	}
}
