package auth

import "strings"

// RouteClass tags a request path for access-control purposes.
type RouteClass string

const (
	RoutePublic     RouteClass = "public"
	RouteProtected  RouteClass = "protected"
	RouteAuthOnly   RouteClass = "auth_only"
	RouteAdminGated RouteClass = "admin_gated"
)

// Static prefix lists. Never modified after init.
var (
	ProtectedPrefixes = []string{"/dashboard", "/admin"}
	AuthPrefixes      = []string{"/login", "/signup"}
)

// AdminPrefix marks the admin-gated subset of ProtectedPrefixes.
const AdminPrefix = "/admin"

// Classify maps a request path to its RouteClass using case-sensitive prefix matching.
func Classify(path string) RouteClass {
	if strings.HasPrefix(path, AdminPrefix) {
		return RouteAdminGated
	}
	if hasAnyPrefix(path, ProtectedPrefixes) {
		return RouteProtected
	}
	if hasAnyPrefix(path, AuthPrefixes) {
		return RouteAuthOnly
	}
	return RoutePublic
}

// RequiresIdentity reports whether requests of this class must carry an identity.
func (c RouteClass) RequiresIdentity() bool {
	return c == RouteProtected || c == RouteAdminGated
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
