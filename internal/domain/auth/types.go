package auth

// Package auth contains domain-level types for identities, roles and the
// route access policy. It is pure and free of framework/adapter concerns.

import "time"

// Role represents a coarse authorization tier derived from identity metadata.
// It is never persisted; ResolveRole is the only way to obtain one.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// adminClaim is the literal role claim value that grants RoleAdmin.
const adminClaim = "admin"

// Identity is the verified, request-scoped view of a signed-in caller.
// Adapters map provider-specific user payloads and token claims into this shape.
type Identity struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSignInAt  *time.Time `json:"last_sign_in_at,omitempty"`
	RoleClaim     *string    `json:"role_claim,omitempty"`
	AuthProvider  string     `json:"auth_provider"`
}

// IsNewUser reports whether this is the identity's first successful sign-in:
// the email is confirmed but no previous sign-in has been recorded.
func (i Identity) IsNewUser() bool {
	return i.EmailVerified && i.LastSignInAt == nil
}

// Session is the provider-issued token pair for an authenticated user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// ResolveRole derives the caller's role. A nil identity is always RoleUser.
func ResolveRole(id *Identity) Role {
	if id == nil || id.RoleClaim == nil {
		return RoleUser
	}
	if *id.RoleClaim == adminClaim {
		return RoleAdmin
	}
	return RoleUser
}

// HasAccess reports whether the identity satisfies the required role.
// A nil identity passes nothing. Admins pass every check; anyone else only
// passes RoleUser checks.
func HasAccess(id *Identity, required Role) bool {
	if id == nil {
		return false
	}
	role := ResolveRole(id)
	if role == RoleAdmin {
		return true
	}
	return required == RoleUser
}

// HomePath is the landing page for a role after sign-in.
func HomePath(role Role) string {
	if role == RoleAdmin {
		return "/admin/dashboard"
	}
	return DefaultDestination
}
