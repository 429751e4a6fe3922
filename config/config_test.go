package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, AuthModeSupabase, cfg.Auth.Mode)
	assert.Equal(t, VerifyModeRemote, cfg.Auth.VerifyMode)
	assert.Equal(t, "https://proj.supabase.co", cfg.Auth.Supabase.URL)
	assert.Equal(t, "user_metadata.role", cfg.Auth.RoleClaimPath)
	assert.Equal(t, 5*time.Second, cfg.Auth.RequestTimeout)
	assert.Equal(t, "sb", cfg.Auth.CookiePrefix)
	assert.True(t, cfg.Auth.EnforceAdminRole)
	assert.Equal(t, []string{"google", "github"}, cfg.Auth.OAuthProviders)
	assert.Equal(t, "/api/health", cfg.HTTP.HealthPath)
	assert.Equal(t, "/metrics", cfg.Observability.MetricsPath)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CodeTTL)
}

func TestParse_InvalidModes(t *testing.T) {
	t.Setenv("AUTH_MODE", "ldap")
	var cfg AppConfig
	err := env.Parse(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid AuthMode")
}

func TestVerifyMode_UnmarshalText(t *testing.T) {
	var m VerifyMode
	require.NoError(t, m.UnmarshalText([]byte(" JWKS ")))
	assert.Equal(t, VerifyModeJWKS, m)
	assert.Error(t, m.UnmarshalText([]byte("none")))
}

func TestValidate_SupabaseRequirements(t *testing.T) {
	cfg := AppConfig{SiteURL: "http://localhost:8080"}
	cfg.Auth.Mode = AuthModeSupabase
	cfg.Auth.VerifyMode = VerifyModeSecret
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "SUPABASE_URL")
	assert.Contains(t, msg, "SUPABASE_ANON_KEY")
	assert.Contains(t, msg, "SUPABASE_JWT_SECRET")

	cfg.Auth.Mode = AuthModeMock
	assert.NoError(t, cfg.Validate())
}

func TestValidate_SiteURL(t *testing.T) {
	cfg := AppConfig{SiteURL: "not-a-url"}
	cfg.Auth.Mode = AuthModeMock
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "SITE_URL"))
}

func TestHTTPConfig_CookieDomain(t *testing.T) {
	cases := []struct {
		domain  string
		wantErr bool
	}{
		{"", false},
		{"localhost", false},
		{".example.com", false},
		{"app.example.com", false},
		{"com", true},
		{"co.uk", true},
		{"github.io", true},
	}
	for _, tc := range cases {
		h := HTTPConfig{CookieDomain: tc.domain}
		h.Sanitize()
		err := h.Validate()
		if tc.wantErr {
			assert.Error(t, err, tc.domain)
		} else {
			assert.NoError(t, err, tc.domain)
		}
	}
}

func TestAuthConfig_Sanitize(t *testing.T) {
	a := AuthConfig{OAuthProviders: []string{" Google ", "", "github"}, CookiePrefix: "  "}
	a.Sanitize()
	assert.Equal(t, []string{"google", "github"}, a.OAuthProviders)
	assert.Equal(t, "sb", a.CookiePrefix)
	assert.True(t, a.OAuthProviderAllowed("google"))
	assert.False(t, a.OAuthProviderAllowed("twitter"))
}

func TestObservability_SlogLevel(t *testing.T) {
	c := ObservabilityConfig{LogLevel: " DEBUG ", MetricsPath: "metrics"}
	c.Sanitize()
	assert.Equal(t, slog.LevelDebug, c.SlogLevel())
	assert.Equal(t, "/metrics", c.MetricsPath)
	c.LogLevel = "bogus"
	assert.Equal(t, slog.LevelInfo, c.SlogLevel())
}
