package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/sitegate/config"
	"github.com/target/sitegate/internal/adapters/devauth"
	"github.com/target/sitegate/internal/adapters/gotrue"
	"github.com/target/sitegate/internal/adapters/jwtverify"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func supabaseAuth(mode config.VerifyMode) config.AuthConfig {
	return config.AuthConfig{
		Mode:       config.AuthModeSupabase,
		VerifyMode: mode,
		Supabase: config.SupabaseConfig{
			URL:       "https://proj.supabase.co",
			AnonKey:   "anon",
			JWTSecret: "s3cret",
		},
		RoleClaimPath: "user_metadata.role",
	}
}

func TestBuildIdentity_VerifyModes(t *testing.T) {
	cases := []struct {
		mode  config.VerifyMode
		check func(t *testing.T, id Identity)
	}{
		{config.VerifyModeRemote, func(t *testing.T, id Identity) {
			assert.IsType(t, &gotrue.Client{}, id.Verifier)
		}},
		{config.VerifyModeJWKS, func(t *testing.T, id Identity) {
			assert.IsType(t, &jwtverify.JWKSVerifier{}, id.Verifier)
		}},
		{config.VerifyModeSecret, func(t *testing.T, id Identity) {
			assert.IsType(t, &jwtverify.SecretVerifier{}, id.Verifier)
		}},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			id, err := BuildIdentity(t.Context(), supabaseAuth(tc.mode), quietLogger())
			require.NoError(t, err)
			assert.IsType(t, &gotrue.Client{}, id.Provider)
			assert.NotNil(t, id.ExpiresAt)
			tc.check(t, id)
		})
	}
}

func TestBuildIdentity_MockMode(t *testing.T) {
	id, err := BuildIdentity(t.Context(), config.AuthConfig{
		Mode:    config.AuthModeMock,
		DevAuth: config.DevAuthConfig{Email: "dev@example.com", Password: "pw", Role: "admin"},
	}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &devauth.Provider{}, id.Provider)
	assert.Same(t, id.Provider, id.Verifier)
	assert.Nil(t, id.ExpiresAt)
}

func TestBuildIdentity_Errors(t *testing.T) {
	_, err := BuildIdentity(t.Context(), config.AuthConfig{Mode: config.AuthModeMock}, quietLogger())
	assert.Error(t, err)

	_, err = BuildIdentity(t.Context(), config.AuthConfig{Mode: config.AuthModeSupabase}, quietLogger())
	assert.Error(t, err)

	bad := supabaseAuth(config.VerifyModeRemote)
	bad.RoleClaimPath = "user_metadata.["
	_, err = BuildIdentity(t.Context(), bad, quietLogger())
	assert.Error(t, err)
}
