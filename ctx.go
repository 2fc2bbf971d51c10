package identity

import (
	"context"
)

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentityContext attaches the authenticated identity to the given
// context. The resolver attaches at most one identity per request.
func WithIdentityContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// IdentityFromContext finds the authenticated identity in the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok
}

// IsAuthenticated reports whether the context carries a resolved identity.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := IdentityFromContext(ctx)
	return ok
}

// HasGrantedRole reports whether the context identity carries the named role.
func HasGrantedRole(ctx context.Context, role string) bool {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return false
	}
	for _, r := range id.Roles() {
		if r == role {
			return true
		}
	}
	return false
}
