package gotrue

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/sitegate/internal/adapters/claims"
	"github.com/target/sitegate/internal/ports"
)

const testUser = `{"id":"u-1","email":"ada@example.com","email_confirmed_at":"2025-01-01T00:00:00Z",` +
	`"created_at":"2025-01-01T00:00:00Z","user_metadata":{"role":"admin"},"app_metadata":{"provider":"email"}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	roles, err := claims.NewRoleExtractor(claims.DefaultRolePath)
	require.NoError(t, err)
	c, err := NewClient(Options{BaseURL: srv.URL + "/", APIKey: "anon", Roles: roles, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "example.com", APIKey: "k"})
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "https://example.com"})
	assert.Error(t, err)
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, testUser)
	})

	id, err := c.GetUser(t.Context(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	require.NotNil(t, id.RoleClaim)
	assert.Equal(t, "admin", *id.RoleClaim)
	assert.True(t, id.EmailVerified)

	_, err = c.GetUser(t.Context(), "")
	assert.Error(t, err)
}

func TestGetUser_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`)
	})

	_, err := c.Verify(t.Context(), "expired")
	var pe *ports.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.Equal(t, "bad_jwt", pe.Code)
	assert.Equal(t, "invalid JWT", pe.Message)
}

func TestExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123", body["auth_code"])
		assert.Equal(t, "verifier", body["code_verifier"])
		_, _ = io.WriteString(w, `{"access_token":"at","token_type":"bearer","expires_in":3600,`+
			`"expires_at":1900000000,"refresh_token":"rt","user":`+testUser+`}`)
	})

	sess, err := c.ExchangeCode(t.Context(), ports.ExchangeRequest{Code: "abc123", CodeVerifier: "verifier"})
	require.NoError(t, err)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Equal(t, "rt", sess.RefreshToken)
	assert.Equal(t, "Bearer", sess.TokenType)
	assert.Equal(t, int64(1900000000), sess.ExpiresAt.Unix())
	assert.Equal(t, "u-1", sess.User.ID)
}

func TestExchangeCode_Reused(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid flow state, flow state has already been used"}`)
	})

	_, err := c.ExchangeCode(t.Context(), ports.ExchangeRequest{Code: "abc123"})
	require.Error(t, err)
	assert.Equal(t, "Invalid flow state, flow state has already been used", ports.ProviderMessage(err))
}

func TestSignInWithPassword_ExpiresInFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"at","expires_in":60,"refresh_token":"rt","user":`+testUser+`}`)
	})

	sess, err := c.SignInWithPassword(t.Context(), ports.Credentials{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), sess.ExpiresAt, 5*time.Second)
}

func TestRefresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"new","refresh_token":"rt2","expires_at":1900000000,"user":`+testUser+`}`)
	})

	sess, err := c.Refresh(t.Context(), "rt")
	require.NoError(t, err)
	assert.Equal(t, "new", sess.AccessToken)
	assert.Equal(t, "rt2", sess.RefreshToken)

	_, err = c.Refresh(t.Context(), "")
	assert.Error(t, err)
}

func TestSignUp(t *testing.T) {
	t.Run("confirmation required", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/signup", r.URL.Path)
			assert.Equal(t, "https://site.example/auth/callback", r.URL.Query().Get("redirect_to"))
			_, _ = io.WriteString(w, `{"id":"u-2","email":"new@example.com","confirmation_sent_at":"2025-01-01T00:00:00Z"}`)
		})
		res, err := c.SignUp(t.Context(), ports.SignUpRequest{
			Credentials:     ports.Credentials{Email: "new@example.com", Password: "pw"},
			EmailRedirectTo: "https://site.example/auth/callback",
		})
		require.NoError(t, err)
		assert.Nil(t, res.Session)
		assert.Equal(t, "u-2", res.User.ID)
	})

	t.Run("auto confirmed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_at":1900000000,"user":`+testUser+`}`)
		})
		res, err := c.SignUp(t.Context(), ports.SignUpRequest{Credentials: ports.Credentials{Email: "a@example.com", Password: "pw"}})
		require.NoError(t, err)
		require.NotNil(t, res.Session)
		assert.Equal(t, "at", res.Session.AccessToken)
		assert.Equal(t, "u-1", res.User.ID)
	})

	t.Run("rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"code":422,"msg":"User already registered"}`)
		})
		_, err := c.SignUp(t.Context(), ports.SignUpRequest{Credentials: ports.Credentials{Email: "a@example.com", Password: "pw"}})
		assert.Equal(t, "User already registered", ports.ProviderMessage(err))
	})
}

func TestAuthorizeURL(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

	raw, err := c.AuthorizeURL(ports.OAuthRequest{
		Provider:      "google",
		RedirectTo:    "https://site.example/auth/callback?redirectTo=%2Fadmin",
		CodeChallenge: "challenge",
	})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "google", q.Get("provider"))
	assert.Equal(t, "https://site.example/auth/callback?redirectTo=%2Fadmin", q.Get("redirect_to"))
	assert.Equal(t, "challenge", q.Get("code_challenge"))
	assert.Equal(t, "s256", q.Get("code_challenge_method"))

	_, err = c.AuthorizeURL(ports.OAuthRequest{})
	assert.Error(t, err)
}

func TestSignOut(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.SignOut(t.Context(), "at"))
	require.NoError(t, c.SignOut(t.Context(), ""))
	assert.Equal(t, 1, calls)
}

func TestEndpoints(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "https://proj.supabase.co", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/auth/v1", c.Issuer())
	assert.Equal(t, "https://proj.supabase.co/auth/v1/.well-known/jwks.json", c.JWKSURL())
}

func TestParseError_NonJSON(t *testing.T) {
	pe := parseError(http.StatusBadGateway, []byte("<html>"))
	assert.Equal(t, "Bad Gateway", pe.Message)
	assert.Equal(t, http.StatusBadGateway, pe.Status)
}
