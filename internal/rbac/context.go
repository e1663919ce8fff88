package rbac

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context. The
// principal is always passed explicitly through context, never read from
// package-level state.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil if absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
