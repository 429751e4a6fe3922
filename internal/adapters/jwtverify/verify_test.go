package jwtverify

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/sitegate/internal/adapters/claims"
	obserrors "github.com/target/sitegate/internal/observability/errors"
)

const issuer = "https://proj.supabase.co/auth/v1"

func testClaims(exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":           issuer,
		"sub":           "u-1",
		"aud":           "authenticated",
		"email":         "ada@example.com",
		"exp":           exp.Unix(),
		"app_metadata":  map[string]any{"provider": "email"},
		"user_metadata": map[string]any{"role": "admin", "email_verified": true},
	}
}

func roles(t *testing.T) *claims.RoleExtractor {
	t.Helper()
	r, err := claims.NewRoleExtractor(claims.DefaultRolePath)
	require.NoError(t, err)
	return r
}

func signHS(t *testing.T, secret string, c jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSecretVerifier(t *testing.T) {
	v, err := NewSecretVerifier("s3cret", issuer, roles(t))
	require.NoError(t, err)

	tok := signHS(t, "s3cret", testClaims(time.Now().Add(time.Hour)))
	id, err := v.Verify(t.Context(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.True(t, id.EmailVerified)
	require.NotNil(t, id.RoleClaim)
	assert.Equal(t, "admin", *id.RoleClaim)
}

func TestSecretVerifier_Rejects(t *testing.T) {
	v, err := NewSecretVerifier("s3cret", issuer, roles(t))
	require.NoError(t, err)

	cases := map[string]string{
		"wrong secret": signHS(t, "other", testClaims(time.Now().Add(time.Hour))),
		"expired":      signHS(t, "s3cret", testClaims(time.Now().Add(-time.Minute))),
		"garbage":      "not-a-jwt",
	}
	wrongIss := testClaims(time.Now().Add(time.Hour))
	wrongIss["iss"] = "https://evil.example"
	cases["wrong issuer"] = signHS(t, "s3cret", wrongIss)

	noExp := testClaims(time.Now())
	delete(noExp, "exp")
	cases["no exp"] = signHS(t, "s3cret", noExp)

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(t.Context(), tok)
			require.Error(t, err)
			assert.True(t, errors.Is(err, obserrors.ErrInvalidToken))
		})
	}

	_, err = NewSecretVerifier("", issuer, nil)
	assert.Error(t, err)
}

func TestJWKSVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}

	v, err := NewJWKSVerifier(issuer, keys, roles(t))
	require.NoError(t, err)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims(time.Now().Add(time.Hour))).SignedString(key)
	require.NoError(t, err)

	id, err := v.Verify(t.Context(), raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, "email", id.AuthProvider)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims(time.Now().Add(time.Hour))).SignedString(other)
	require.NoError(t, err)
	_, err = v.Verify(t.Context(), forged)
	assert.True(t, errors.Is(err, obserrors.ErrInvalidToken))

	_, err = NewJWKSVerifier("", keys, nil)
	assert.Error(t, err)
	_, err = NewJWKSVerifier(issuer, nil, nil)
	assert.Error(t, err)
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	got, ok := ExpiresAt(signHS(t, "any", testClaims(exp)))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = ExpiresAt("garbage")
	assert.False(t, ok)

	noExp := testClaims(exp)
	delete(noExp, "exp")
	_, ok = ExpiresAt(signHS(t, "any", noExp))
	assert.False(t, ok)
}
