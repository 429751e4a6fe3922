package httpx

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// Identity headers forwarded to the page renderer. Client-supplied values are
// always dropped.
const (
	HeaderUserID = "X-Sitegate-User-Id"
	HeaderRole   = "X-Sitegate-Role"
)

// NewPageHandler serves every route not claimed by the API. With an upstream
// it reverse proxies to the page renderer; otherwise it renders a placeholder.
func NewPageHandler(upstream *url.URL, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if upstream == nil {
		return placeholderHandler{page: placeholderPage, logger: logger}
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del(HeaderUserID)
			pr.Out.Header.Del(HeaderRole)
			if id, ok := GetIdentityFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(HeaderUserID, id.ID)
				pr.Out.Header.Set(HeaderRole, string(domainauth.ResolveRole(id)))
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "page upstream failed", "path", r.URL.Path, "error", err)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}
}

var placeholderPage = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Path}}</title></head>
<body><main><h1>{{.Path}}</h1>
{{if .Email}}<p>Signed in as {{.Email}} ({{.Role}})</p>
<form method="post" action="/auth/logout"><button type="submit">Sign out</button></form>
{{else}}<p><a href="/login">Sign in</a></p>{{end}}
</main></body></html>
`))

type placeholderHandler struct {
	page   *template.Template
	logger *slog.Logger
}

func (h placeholderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	data := struct {
		Path  string
		Email string
		Role  domainauth.Role
	}{Path: r.URL.Path}
	if id, ok := GetIdentityFromContext(r.Context()); ok {
		data.Email = id.Email
		data.Role = domainauth.ResolveRole(id)
	}
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.ErrorContext(r.Context(), "render placeholder page failed", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = buf.WriteTo(w)
}
