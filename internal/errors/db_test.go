package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "wrapped canceled", err: fmt.Errorf("query: %w", context.Canceled), wantCode: ErrCodeCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if GetCode(err) != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name        string
		pgErr       *pgconn.PgError
		wantField   string
		wantMessage string
	}{
		{
			name: "column name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_username_key",
				ColumnName:     "username",
			},
			wantField:   "username",
			wantMessage: "Username is already taken.",
		},
		{
			name: "detail message",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_email_key",
				Detail:         `Key (email)=(a@example.com) already exists.`,
			},
			wantField:   "email",
			wantMessage: "Email is already registered.",
		},
		{
			name: "constraint name only",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_email_key",
			},
			wantField:   "email",
			wantMessage: "Email is already registered.",
		},
		{
			name: "expression index",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "users_lower_idx",
			},
			wantField:   "",
			wantMessage: "This value already exists. Please choose a different one.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Fatalf("MapDBError() should be Conflict, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
			var appErr *AppError
			if errors.As(err, &appErr) && appErr.Message != tt.wantMessage {
				t.Errorf("MapDBError() message = %q, want %q", appErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapDBError_FieldViolations(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name:      "not null with column",
			pgErr:     &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "email"},
			wantField: "email",
		},
		{
			name:      "not null without column",
			pgErr:     &pgconn.PgError{Code: pgerrcode.NotNullViolation},
			wantField: "",
		},
		{
			name:      "role check constraint",
			pgErr:     &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "users_role_check"},
			wantField: "role",
		},
		{
			name:      "check without metadata",
			pgErr:     &pgconn.PgError{Code: pgerrcode.CheckViolation},
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsValidation(err) {
				t.Errorf("MapDBError() should be Validation, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
		})
	}
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: "99999", Message: "unknown error"})
	if GetCode(err) != ErrCodeInternal {
		t.Errorf("MapDBError() should be Internal for unknown pg error, got %v", GetCode(err))
	}
}

func TestMapDBError_StandardError(t *testing.T) {
	stdErr := errors.New("standard error")
	if err := MapDBError(stdErr); !errors.Is(err, stdErr) {
		t.Errorf("MapDBError() should return original error for non-db errors, got %v", err)
	}
}

func TestInferFieldFromConstraint(t *testing.T) {
	tests := []struct {
		constraintName string
		want           string
	}{
		{"users_username_key", "username"},
		{"users_email_unique", "email"},
		{"users_role_check", "role"},
		{"users_pkey", ""},
		{"users_lower_key", ""},
		{"users_first_name_key", ""},
		{"users_email_fkey", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.constraintName, func(t *testing.T) {
			if got := inferFieldFromConstraint(tt.constraintName); got != tt.want {
				t.Errorf("inferFieldFromConstraint(%q) = %q, want %q", tt.constraintName, got, tt.want)
			}
		})
	}
}
