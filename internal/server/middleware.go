package server

import (
	"net/http"
	"strings"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/auth/jwt"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/httputil"
)

// Authenticate verifies the bearer token and loads username and roles
// into the request context. Missing, forged or expired tokens end the
// request with 401.
func Authenticate(manager *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.Error(w, apperr.Unauthenticated("missing authorization header"))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httputil.Error(w, apperr.Unauthenticated("malformed authorization header"))
				return
			}

			claims, err := manager.Verify(token)
			if err != nil {
				httputil.Error(w, err)
				return
			}

			ctx := httputil.WithUserContext(r.Context(), claims.Username, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole is the deny-by-default authorization predicate: the bearer
// must hold at least one of the listed roles. Denials are audited
// inline as ACCESS_DENIED.
func RequireRole(recorder *audit.Recorder, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, role := range roles {
				if httputil.HasRole(r.Context(), role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			recorder.RecordSync(r.Context(), audit.ActionAccessDenied, "route", r.URL.Path, map[string]string{
				"method": r.Method,
			})
			httputil.Error(w, apperr.Forbidden("insufficient role"))
		})
	}
}
