package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/domain/model"
	authmocks "github.com/target/sitegate/internal/mocks/auth"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

type fakeStats struct{ calls int }

func (f *fakeStats) Collect(context.Context) model.AdminStats {
	f.calls++
	return model.AdminStats{Users: 3}
}

type routerFixture struct {
	handler  http.Handler
	provider *authmocks.MockIdentityProvider
	verifier *authmocks.StaticVerifier
	stats    *fakeStats
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	provider := authmocks.NewMockIdentityProvider()
	verifier := &authmocks.StaticVerifier{Tokens: map[string]domainauth.Identity{
		"user-token":  {ID: "u-1", Email: "ada@example.com"},
		"admin-token": {ID: "a-1", Email: "root@example.com", RoleClaim: adminClaim()},
	}}
	stats := &fakeStats{}
	h := NewRouter(RouterServices{
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Provider: provider,
			Ledger:   authmocks.NewMemoryCodeLedger(),
			Config:   service.AuthServiceConfig{SiteURL: "http://example.com", OAuthProviders: []string{"google"}},
		}),
		Sessions:    service.NewSessionReader(service.SessionReaderOptions{Verifier: verifier, Refresher: provider}),
		Stats:       stats,
		Health:      &HealthHandler{Database: healthy},
		Policy:      domainauth.DefaultPolicy(),
		HealthPath:  "/api/health",
		MetricsPath: "/metrics",
	})
	return &routerFixture{handler: h, provider: provider, verifier: verifier, stats: stats}
}

func (f *routerFixture) get(target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SignedInUserReachesDashboard(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.get("/dashboard", "user-token")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in as ada@example.com (user)")
	assert.Equal(t, 1, f.verifier.Calls())
	assert.Zero(t, f.provider.TotalCalls())
}

func TestRouter_AnonymousAdminRedirectsToLogin(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.get("/admin", "")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login?redirectTo=%2Fadmin", rec.Header().Get("Location"))
	assert.Zero(t, f.verifier.Calls())
}

func TestRouter_ConsumedCodeRedirectsWithError(t *testing.T) {
	f := newRouterFixture(t)
	const msg = "Invalid flow state, flow state has already been used"
	f.provider.ExchangeCodeFunc = func(context.Context, ports.ExchangeRequest) (domainauth.Session, error) {
		return domainauth.Session{}, &ports.ProviderError{Status: http.StatusBadRequest, Code: "invalid_grant", Message: msg}
	}

	rec := f.get("/auth/callback?code=abc123", "")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, msg, loc.Query().Get("error"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestRouter_SignedInLoginIgnoresForeignRedirect(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.get("/login?redirectTo=https%3A%2F%2Fevil.example%2Fsteal", "user-token")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestRouter_CallbackSignsIn(t *testing.T) {
	f := newRouterFixture(t)
	last := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	f.provider.DefaultUser.LastSignInAt = &last
	rec := f.get("/auth/callback?code=fresh&redirectTo=%2Fdashboard%2Fposts", "")

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "http://example.com/dashboard/posts", rec.Header().Get("Location"))
	assert.Equal(t, "exchanged-access", responseCookies(rec)["sb-access-token"].Value)

	// the same code a second time never reaches the provider
	rec = f.get("/auth/callback?code=fresh", "")
	assert.Equal(t, 1, f.provider.Calls("ExchangeCode"))
	assert.Contains(t, rec.Header().Get("Location"), "/login?error=")
}

func TestRouter_AdminAPI(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.get("/api/admin/stats", "").Code)
	assert.Equal(t, http.StatusForbidden, f.get("/api/admin/stats", "user-token").Code)

	rec := f.get("/api/admin/stats", "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.stats.calls)
}

func TestRouter_ExcludedEndpointsSkipSession(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.get("/api/health", "user-token").Code)
	assert.Equal(t, http.StatusOK, f.get("/metrics", "user-token").Code)
	assert.Equal(t, http.StatusOK, f.get("/static/app.js", "user-token").Code)
	assert.Zero(t, f.verifier.Calls())
}

func TestRouter_AuthStatus(t *testing.T) {
	f := newRouterFixture(t)
	rec := f.get("/auth/status", "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)
}
