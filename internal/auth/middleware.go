package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

type tokenContextKey struct{}

// TokenFromContext returns the bearer token the request authenticated with.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// PrincipalResolver turns a user id into a fully resolved principal. The
// resolution runs on every request so role and permission edits take
// effect immediately.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID int64) (*rbac.Principal, error)
}

// Middleware authenticates requests via opaque bearer tokens and attaches
// the resolved principal to the request context.
type Middleware struct {
	Service  *Service
	Resolver PrincipalResolver
	Logger   *slog.Logger
}

// Authenticate rejects requests without a valid bearer token and stores
// the principal and token in context for downstream gates and handlers.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Fail(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		userID, err := m.Service.ResolveToken(r.Context(), token)
		if err != nil {
			if !errorsIsNotFound(err) && m.Logger != nil {
				m.Logger.Error("resolve token", slog.Any("error", err))
			}
			httpx.Fail(w, http.StatusUnauthorized, "Unauthenticated.")
			return
		}
		principal, err := m.Resolver.Resolve(r.Context(), userID)
		if err != nil {
			// A token for a deleted user is as good as no token.
			if errorsIsNotFound(err) {
				httpx.Fail(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve principal", slog.Any("error", err))
			}
			httpx.Fail(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		ctx = context.WithValue(ctx, tokenContextKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound) || errors.Is(err, httpx.ErrNotFound)
}
