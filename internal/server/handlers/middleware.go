package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/session/service"
)

// validateTimeout bounds session-store I/O during authentication. A slow
// store surfaces as 503, never as a hung request.
const validateTimeout = 10 * time.Second

// RequireSession authenticates the request with the full token-then-store
// validation and attaches the resulting identity to the request context.
func RequireSession(validator *service.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, errNotAuthenticated)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), validateTimeout)
			defer cancel()
			res, err := validator.Validate(ctx, token, ClientIP(r))
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.View)))
		})
	}
}

// AuditRequests records one activity event per authenticated request. The
// write is fire and forget; it must never delay the response.
func AuditRequests(logger audit.ActivityLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			view, ok := IdentityFrom(r.Context())
			if !ok {
				return
			}
			audit.EmitAsync(logger, userIDOf(view.UserID), "api_access",
				r.Method+" "+r.URL.Path, ClientIP(r), nil)
		})
	}
}

// RequestLogger writes one structured log line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Str("remote", ClientIP(r)).
				Msg("request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ClientIP returns the originating client address, honoring X-Forwarded-For
// when the service runs behind a proxy.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
