package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	"github.com/target/mmk-auth-api/internal/observability/metrics"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler { //nolint:errorlint // sentinel passed to panic as-is
						panic(err)
					}
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "internal",
						Err:     errors.New("internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestAuthenticator resolves the identity behind an Authorization header value.
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, header string) domainauth.Authentication
}

// Authenticate returns the authentication intercept.
//
// Public paths pass through without the header being read. Any other request gets
// exactly one Authentication stored in its context; a result already present is reused.
// The intercept never rejects: a failed authentication continues as anonymous.
func Authenticate(authn RequestAuthenticator, public domainauth.PublicPaths) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.Matches(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if _, done := AuthenticationFrom(r.Context()); done {
				next.ServeHTTP(w, r)
				return
			}
			a := authn.Authenticate(r.Context(), r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(WithAuthentication(r.Context(), a)))
		})
	}
}

// AuthorizeOptions groups dependencies for Authorize.
type AuthorizeOptions struct {
	Policy  *domainauth.Policy
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Authorize evaluates the policy before any handler logic runs and writes 401 when no
// identity is present or 403 when the identity's role is insufficient.
func Authorize(opts AuthorizeOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, _ := AuthenticationFrom(r.Context())
			decision := opts.Policy.Evaluate(a, r.Method, r.URL.Path)
			if decision == domainauth.DecisionAllow {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "request denied",
				slog.String("decision", decision.String()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path))
			metrics.EmitAuth(opts.Metrics, metrics.AuthMetric{
				Event:  metrics.EventAuthorization,
				Result: metrics.ResultFailure,
				Reason: decision.String(),
			})

			if decision == domainauth.DecisionForbidden {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "forbidden",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="mmk-auth"`)
			WriteError(w, ErrorParams{
				Code:    http.StatusUnauthorized,
				ErrCode: "unauthenticated",
				Err:     errors.New("authentication required"),
			})
		})
	}
}

// Chain applies middleware so that the first argument is the outermost wrapper.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
