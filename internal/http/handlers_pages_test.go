package httpx

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

func TestPageHandler_ProxiesIdentity(t *testing.T) {
	var gotUser, gotRole, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get(HeaderUserID)
		gotRole = r.Header.Get(HeaderRole)
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("page"))
	}))
	t.Cleanup(upstream.Close)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	h := NewPageHandler(target, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/posts", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	req = req.WithContext(SetIdentityInContext(req.Context(), &domainauth.Identity{ID: "a-1", RoleClaim: adminClaim()}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page", rec.Body.String())
	assert.Equal(t, "/dashboard/posts", gotPath)
	assert.Equal(t, "a-1", gotUser)
	assert.Equal(t, "admin", gotRole)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	req.Header.Set(HeaderRole, "admin")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, gotUser)
	assert.Empty(t, gotRole)
}

func TestPageHandler_UpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	upstream.Close()

	rec := httptest.NewRecorder()
	NewPageHandler(target, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPageHandler_Placeholder(t *testing.T) {
	h := NewPageHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/about", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/about")
	assert.Contains(t, rec.Body.String(), `href="/login"`)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(SetIdentityInContext(req.Context(), &domainauth.Identity{ID: "u-1", Email: "ada@example.com"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "Signed in as ada@example.com (user)")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/about", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlaceholder_RenderErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	h := placeholderHandler{
		page:   template.Must(template.New("broken").Parse(`{{.Missing}}`)),
		logger: slog.New(slog.NewTextHandler(&logs, nil)),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/about", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, logs.String(), "render placeholder page failed")
	assert.Contains(t, logs.String(), "path=/about")
}
