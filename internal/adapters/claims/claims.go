package claims

// Package claims maps identity provider user payloads and token claims into
// domain identities.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// DefaultRolePath is where the hosted provider keeps custom role metadata.
const DefaultRolePath = "user_metadata.role"

// RoleExtractor evaluates a JMESPath expression to find the role claim.
type RoleExtractor struct {
	path string
}

// NewRoleExtractor validates path and returns an extractor for it.
func NewRoleExtractor(path string) (*RoleExtractor, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultRolePath
	}
	if _, err := jmespath.Compile(path); err != nil {
		return nil, fmt.Errorf("compile role claim path %q: %w", path, err)
	}
	return &RoleExtractor{path: path}, nil
}

// Extract returns the role claim at the configured path, or nil when it is
// missing or not a string.
func (r *RoleExtractor) Extract(data map[string]any) *string {
	if r == nil || data == nil {
		return nil
	}
	v, err := jmespath.Search(r.path, data)
	if err != nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// FromUser maps a decoded provider user object (as returned by the user and
// token endpoints) into an Identity.
func FromUser(user map[string]any, roles *RoleExtractor) (domainauth.Identity, error) {
	id := stringAt(user, "id")
	if id == "" {
		return domainauth.Identity{}, errors.New("user payload has no id")
	}
	out := domainauth.Identity{
		ID:           id,
		Email:        stringAt(user, "email"),
		AuthProvider: providerOf(user),
		RoleClaim:    roles.Extract(user),
		LastSignInAt: timeAt(user, "last_sign_in_at"),
	}
	if created := timeAt(user, "created_at"); created != nil {
		out.CreatedAt = *created
	}
	confirmed := timeAt(user, "email_confirmed_at")
	if confirmed == nil {
		confirmed = timeAt(user, "confirmed_at")
	}
	out.EmailVerified = confirmed != nil
	return out, nil
}

// FromTokenClaims maps verified access token claims into an Identity.
// Tokens do not carry sign-in timestamps, so CreatedAt stays zero and
// LastSignInAt stays nil.
func FromTokenClaims(c map[string]any, roles *RoleExtractor) (domainauth.Identity, error) {
	sub := stringAt(c, "sub")
	if sub == "" {
		return domainauth.Identity{}, errors.New("token has no subject")
	}
	out := domainauth.Identity{
		ID:           sub,
		Email:        stringAt(c, "email"),
		AuthProvider: providerOf(c),
		RoleClaim:    roles.Extract(c),
	}
	if meta, ok := c["user_metadata"].(map[string]any); ok {
		if v, ok := meta["email_verified"].(bool); ok {
			out.EmailVerified = v
		}
	}
	return out, nil
}

func providerOf(m map[string]any) string {
	if meta, ok := m["app_metadata"].(map[string]any); ok {
		if p := stringAt(meta, "provider"); p != "" {
			return p
		}
	}
	return "email"
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func timeAt(m map[string]any, key string) *time.Time {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
