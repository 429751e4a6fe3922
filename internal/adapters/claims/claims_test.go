package claims

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userJSON = `{
  "id": "0b7c3a4e-1111-4f2a-9c33-0d1e2f3a4b5c",
  "email": "ada@example.com",
  "email_confirmed_at": "2025-03-01T10:00:00.123456Z",
  "last_sign_in_at": "2025-03-02T08:30:00Z",
  "created_at": "2025-03-01T09:59:00Z",
  "app_metadata": {"provider": "google", "providers": ["google"]},
  "user_metadata": {"role": "admin", "full_name": "Ada"}
}`

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestNewRoleExtractor(t *testing.T) {
	r, err := NewRoleExtractor("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRolePath, r.path)

	_, err = NewRoleExtractor("user_metadata.[")
	assert.Error(t, err)
}

func TestRoleExtractor_Extract(t *testing.T) {
	r, err := NewRoleExtractor("app_metadata.claims.role")
	require.NoError(t, err)

	role := r.Extract(map[string]any{"app_metadata": map[string]any{"claims": map[string]any{"role": "admin"}}})
	require.NotNil(t, role)
	assert.Equal(t, "admin", *role)

	assert.Nil(t, r.Extract(map[string]any{"app_metadata": map[string]any{"claims": map[string]any{"role": 7.0}}}))
	assert.Nil(t, r.Extract(map[string]any{}))

	var nilExtractor *RoleExtractor
	assert.Nil(t, nilExtractor.Extract(map[string]any{"x": "y"}))
}

func TestFromUser(t *testing.T) {
	roles, err := NewRoleExtractor(DefaultRolePath)
	require.NoError(t, err)

	id, err := FromUser(decode(t, userJSON), roles)
	require.NoError(t, err)
	assert.Equal(t, "0b7c3a4e-1111-4f2a-9c33-0d1e2f3a4b5c", id.ID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "google", id.AuthProvider)
	require.NotNil(t, id.RoleClaim)
	assert.Equal(t, "admin", *id.RoleClaim)
	require.NotNil(t, id.LastSignInAt)
	assert.Equal(t, 2025, id.CreatedAt.Year())
	assert.False(t, id.IsNewUser())
}

func TestFromUser_NewUser(t *testing.T) {
	id, err := FromUser(decode(t, `{"id":"u1","email":"n@example.com","confirmed_at":"2025-01-01T00:00:00Z"}`), nil)
	require.NoError(t, err)
	assert.True(t, id.EmailVerified)
	assert.Nil(t, id.LastSignInAt)
	assert.Nil(t, id.RoleClaim)
	assert.Equal(t, "email", id.AuthProvider)
	assert.True(t, id.IsNewUser())

	_, err = FromUser(map[string]any{"email": "x"}, nil)
	assert.Error(t, err)
}

func TestFromTokenClaims(t *testing.T) {
	roles, err := NewRoleExtractor(DefaultRolePath)
	require.NoError(t, err)

	id, err := FromTokenClaims(decode(t, `{
	  "sub": "u2", "email": "b@example.com", "role": "authenticated",
	  "app_metadata": {"provider": "github"},
	  "user_metadata": {"email_verified": true, "role": "user"}
	}`), roles)
	require.NoError(t, err)
	assert.Equal(t, "u2", id.ID)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "github", id.AuthProvider)
	require.NotNil(t, id.RoleClaim)
	assert.Equal(t, "user", *id.RoleClaim)
	assert.True(t, id.CreatedAt.IsZero())

	_, err = FromTokenClaims(map[string]any{}, roles)
	assert.Error(t, err)
}
