package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity provider backing the application.
type AuthMode string

const (
	// AuthModeSupabase uses a hosted GoTrue-compatible identity provider.
	AuthModeSupabase AuthMode = "supabase"
	// AuthModeMock uses the in-process dev provider (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "supabase", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: supabase, mock)", v)
	}
}

// VerifyMode selects how access tokens are verified on each request.
type VerifyMode string

const (
	// VerifyModeRemote asks the provider's user endpoint.
	VerifyModeRemote VerifyMode = "remote"
	// VerifyModeJWKS checks signatures against the provider's published key set.
	VerifyModeJWKS VerifyMode = "jwks"
	// VerifyModeSecret checks HS256 signatures with the project JWT secret.
	VerifyModeSecret VerifyMode = "secret"
)

// UnmarshalText implements encoding.TextUnmarshaler for VerifyMode.
func (m *VerifyMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "remote", "jwks", "secret":
		*m = VerifyMode(v)
		return nil
	default:
		return fmt.Errorf("invalid VerifyMode: %q (valid options: remote, jwks, secret)", v)
	}
}

// SupabaseConfig holds the hosted provider endpoint and public key.
type SupabaseConfig struct {
	URL     string `env:"URL"`
	AnonKey string `env:"ANON_KEY"`
	// JWTSecret is only needed for VerifyModeSecret.
	JWTSecret string `env:"JWT_SECRET"`
}

// DevAuthConfig controls the mock identity used when AUTH_MODE=mock.
type DevAuthConfig struct {
	UserID   string `env:"USER_ID"  envDefault:"9a1d6f0e-5c1b-4a7e-8f34-2b6c0d9e7a10"`
	Email    string `env:"EMAIL"    envDefault:"dev@example.com"`
	Password string `env:"PASSWORD" envDefault:"dev-password"`
	Role     string `env:"ROLE"     envDefault:"admin"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode       AuthMode   `env:"AUTH_MODE"        envDefault:"supabase"`
	VerifyMode VerifyMode `env:"AUTH_VERIFY_MODE" envDefault:"remote"`

	Supabase SupabaseConfig `envPrefix:"SUPABASE_"`
	DevAuth  DevAuthConfig  `envPrefix:"DEV_AUTH_"`

	// RoleClaimPath is a JMESPath expression evaluated against the provider's
	// user payload (or token claims) to find the role claim.
	RoleClaimPath string `env:"AUTH_ROLE_CLAIM_PATH" envDefault:"user_metadata.role"`

	// RequestTimeout bounds every identity provider call.
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"5s"`

	// CookiePrefix names the session cookies: <prefix>-access-token and so on.
	CookiePrefix string `env:"AUTH_COOKIE_PREFIX" envDefault:"sb"`

	// EnforceAdminRole gates /admin on the admin role at the edge filter.
	EnforceAdminRole bool `env:"AUTH_ENFORCE_ADMIN_ROLE" envDefault:"true"`

	// OAuthProviders lists the providers accepted by /auth/oauth/{provider}.
	OAuthProviders []string `env:"AUTH_OAUTH_PROVIDERS" envDefault:"google,github" envSeparator:","`
}

// Sanitize trims values and restores defaults for empty settings.
func (a *AuthConfig) Sanitize() {
	a.Supabase.URL = strings.TrimRight(strings.TrimSpace(a.Supabase.URL), "/")
	a.Supabase.AnonKey = strings.TrimSpace(a.Supabase.AnonKey)
	a.RoleClaimPath = strings.TrimSpace(a.RoleClaimPath)
	if a.RoleClaimPath == "" {
		a.RoleClaimPath = "user_metadata.role"
	}
	if a.RequestTimeout <= 0 {
		a.RequestTimeout = 5 * time.Second
	}
	if a.CookiePrefix = strings.TrimSpace(a.CookiePrefix); a.CookiePrefix == "" {
		a.CookiePrefix = "sb"
	}
	providers := a.OAuthProviders[:0]
	for _, p := range a.OAuthProviders {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			providers = append(providers, p)
		}
	}
	a.OAuthProviders = providers
}

// Validate checks that the selected mode has what it needs.
func (a *AuthConfig) Validate() error {
	if a.Mode == AuthModeMock {
		return nil
	}
	var errs []error
	if _, err := parseAbsoluteURL(a.Supabase.URL); err != nil {
		errs = append(errs, fmt.Errorf("SUPABASE_URL: %w", err))
	}
	if a.Supabase.AnonKey == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}
	if a.VerifyMode == VerifyModeSecret && a.Supabase.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required when AUTH_VERIFY_MODE=secret"))
	}
	return errors.Join(errs...)
}

// OAuthProviderAllowed reports whether provider may be used for OAuth sign-in.
func (a *AuthConfig) OAuthProviderAllowed(provider string) bool {
	for _, p := range a.OAuthProviders {
		if p == provider {
			return true
		}
	}
	return false
}
