package httpx

import (
	"context"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// identityKey is an unexported context key type to avoid collisions across packages.
type identityKey struct{}

// SetIdentityInContext returns a child context that carries the given identity.
// If id is nil, the original ctx is returned unchanged.
func SetIdentityInContext(ctx context.Context, id *domainauth.Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// GetIdentityFromContext returns the caller's identity and whether one is present.
func GetIdentityFromContext(ctx context.Context) (*domainauth.Identity, bool) {
	if id, ok := ctx.Value(identityKey{}).(*domainauth.Identity); ok && id != nil {
		return id, true
	}
	return nil, false
}

// IsAnonymous reports whether the current request context carries no identity.
func IsAnonymous(ctx context.Context) bool {
	_, ok := GetIdentityFromContext(ctx)
	return !ok
}
