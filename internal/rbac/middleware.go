package rbac

import (
	"net/http"
	"strings"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
)

// Middleware wires authorization gates for HTTP handlers. It expects the
// principal to have been resolved and stored in context by the auth
// middleware; the permission decision itself is delegated to the Guard so
// no entry point re-expresses the rule.
type Middleware struct {
	Guard Guard
}

// RequireAny ensures the current principal holds at least one of the
// required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p := PrincipalFromContext(r.Context())
			if p == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			for _, perm := range normalized {
				if m.Guard.Authorize(p, perm) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Fail(w, http.StatusForbidden, "Forbidden.")
		})
	}
}

// RequireAll ensures the current principal holds every required permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			for _, perm := range normalized {
				if err := m.Guard.Authorize(p, perm); err != nil {
					httpx.Fail(w, http.StatusForbidden, "Forbidden.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
