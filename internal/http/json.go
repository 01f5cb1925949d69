package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/mmk-auth-api/internal/errors"
)

// maxJSONBody caps request bodies accepted by DecodeJSON.
const maxJSONBody = 1 << 20

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "body_too_large", Err: errors.New("request body too large")})
			return false
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: errors.New("request body must be valid JSON")})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Field   string
	Fields  map[string]string
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Field   string            `json:"field,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	msg := http.StatusText(p.Code)
	if p.Err != nil {
		msg = p.Err.Error()
	}
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: msg, Field: p.Field, Fields: p.Fields})
}

// writeServiceError maps a service error onto the HTTP error taxonomy.
// Only AppError messages reach the client; anything else is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("internal server error")})
		return
	}

	p := ErrorParams{ErrCode: string(appErr.Code), Err: errors.New(appErr.Message)}
	switch appErr.Code {
	case apperrors.ErrCodeValidation:
		p.Code = http.StatusBadRequest
		p.Field = appErr.Field
		p.Fields = appErr.Fields
	case apperrors.ErrCodeConflict:
		p.Code = http.StatusConflict
		p.Field = appErr.Field
	case apperrors.ErrCodeUnauthenticated:
		p.Code = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Bearer realm="mmk-auth"`)
	case apperrors.ErrCodeForbidden:
		p.Code = http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		p.Code = http.StatusNotFound
	case apperrors.ErrCodeTimeout:
		p.Code = http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		p.Code = http.StatusServiceUnavailable
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		p = ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errors.New("internal server error")}
	}
	if p.Code == http.StatusUnauthorized || p.Code == http.StatusForbidden {
		logger.WarnContext(r.Context(), "request rejected",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", p.Code))
	}
	WriteError(w, p)
}
