package httputil

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	UsernameKey      contextKey = "username"
	RolesKey         contextKey = "roles"
	RemoteIPKey      contextKey = "remote_ip"
	UserAgentKey     contextKey = "user_agent"
)

// CorrelationIDHeader is echoed on every response.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID middleware tags each request with a correlation identifier.
// A client-supplied id is propagated; otherwise one is generated.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), CorrelationIDKey, correlationID)
		w.Header().Set(CorrelationIDHeader, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientInfo captures the caller's address and user agent for the audit
// trail. Remote address resolution order: X-Forwarded-For (first hop),
// X-Real-IP, direct peer.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), RemoteIPKey, RemoteIP(r))
		ctx = context.WithValue(ctx, UserAgentKey, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RemoteIP resolves the client address from forwarding headers.
func RemoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

// Deadline applies the per-request deadline. Repository calls inherit the
// context, so expiry surfaces as a 504 from the handler.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info().
				Str("correlation_id", GetCorrelationID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("actor", GetUsername(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUsername retrieves the authenticated username from context
func GetUsername(ctx context.Context) string {
	if u, ok := ctx.Value(UsernameKey).(string); ok {
		return u
	}
	return ""
}

// GetRoles retrieves the authenticated role set from context
func GetRoles(ctx context.Context) []string {
	if r, ok := ctx.Value(RolesKey).([]string); ok {
		return r
	}
	return nil
}

// HasRole reports whether the context carries the given role
func HasRole(ctx context.Context, role string) bool {
	for _, r := range GetRoles(ctx) {
		if r == role {
			return true
		}
	}
	return false
}

// GetRemoteIP retrieves the resolved client address from context
func GetRemoteIP(ctx context.Context) string {
	if ip, ok := ctx.Value(RemoteIPKey).(string); ok {
		return ip
	}
	return ""
}

// GetUserAgent retrieves the client user agent from context
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(UserAgentKey).(string); ok {
		return ua
	}
	return ""
}

// WithUserContext adds the authenticated identity to the context
func WithUserContext(ctx context.Context, username string, roles []string) context.Context {
	ctx = context.WithValue(ctx, UsernameKey, username)
	ctx = context.WithValue(ctx, RolesKey, roles)
	return ctx
}
