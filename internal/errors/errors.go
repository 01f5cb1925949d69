// Package errors defines the service's error taxonomy. Transport layers map an
// ErrorCode to a status; the Message is what callers are allowed to see.
package errors

import (
	"errors"
	"fmt"
	"maps"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	ErrCodeValidation      ErrorCode = "validation"
	ErrCodeConflict        ErrorCode = "conflict"
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	ErrCodeForbidden       ErrorCode = "forbidden"
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeInternal        ErrorCode = "internal"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeCanceled        ErrorCode = "canceled"
)

// AppError is a classified error. Field names the single offending input for
// conflicts; Fields carries per-field validation messages.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
	Fields  map[string]string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New returns an AppError with the given code and client-safe message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap classifies err, keeping it as the cause. It returns nil for a nil err.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func NotFound(message string) *AppError { return New(ErrCodeNotFound, message) }

func NotFoundf(format string, args ...any) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError { return New(ErrCodeConflict, message) }

// ConflictField reports a uniqueness violation on field.
func ConflictField(field, message string) *AppError {
	e := New(ErrCodeConflict, message)
	e.Field = field
	return e
}

func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

func ValidationField(field, message string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Field = field
	return e
}

// ValidationFields copies fields so later mutation by the caller is not observed.
func ValidationFields(message string, fields map[string]string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Fields = maps.Clone(fields)
	return e
}

// Unauthenticated messages reach clients verbatim and must not reveal which check failed.
func Unauthenticated(message string) *AppError { return New(ErrCodeUnauthenticated, message) }

func Forbidden(message string) *AppError { return New(ErrCodeForbidden, message) }

func Internal(message string) *AppError { return New(ErrCodeInternal, message) }

func asApp(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := asApp(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool        { return Is(err, ErrCodeNotFound) }
func IsConflict(err error) bool        { return Is(err, ErrCodeConflict) }
func IsValidation(err error) bool      { return Is(err, ErrCodeValidation) }
func IsUnauthenticated(err error) bool { return Is(err, ErrCodeUnauthenticated) }
func IsForbidden(err error) bool       { return Is(err, ErrCodeForbidden) }

// GetCode returns the code of the first AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if appErr, ok := asApp(err); ok {
		return appErr.Code
	}
	return ""
}

func GetField(err error) string {
	if appErr, ok := asApp(err); ok {
		return appErr.Field
	}
	return ""
}

func GetFields(err error) map[string]string {
	if appErr, ok := asApp(err); ok {
		return appErr.Fields
	}
	return nil
}
