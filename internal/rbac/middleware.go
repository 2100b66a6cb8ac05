package rbac

import (
	"encoding/json"
	"net/http"
)

// Middleware rejects requests whose role lacks every listed permission.
func (c *Checker) Middleware(perms ...Perm) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Any(role, perms...) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "forbidden", "detail": map[string]any{"required": perms}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var defaultChecker = NewChecker(nil)

// Require enforces a single permission from DefaultRules.
func Require(perm Perm) func(http.Handler) http.Handler { return defaultChecker.Middleware(perm) }

// RequireAny passes when the role holds at least one of perms.
func RequireAny(perms ...Perm) func(http.Handler) http.Handler {
	return defaultChecker.Middleware(perms...)
}
