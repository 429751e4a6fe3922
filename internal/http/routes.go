package httpx

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// RouterServices groups everything NewRouter wires into the mux.
type RouterServices struct {
	Auth     AuthServiceInterface
	Sessions SessionReader
	Posts    PostServiceInterface
	Stats    StatsServiceInterface
	Activity ActivityServiceInterface
	// Health is optional; the health route is not registered without it.
	Health http.Handler
	// Pages serves every path the API does not claim. Defaults to the
	// placeholder page handler.
	Pages   http.Handler
	Cookies SessionCookies
	Policy  domainauth.Policy

	HealthPath  string
	MetricsPath string // empty disables /metrics
	Logger      *slog.Logger
}

// NewRouter builds the application handler: the edge filter in front of the
// instrumented mux.
func NewRouter(s RouterServices) http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	authed := RequireIdentity()

	auth := &AuthHandlers{Svc: s.Auth, Cookies: s.Cookies, Logger: logger.With("component", "auth_handlers")}
	mux.HandleFunc("GET /auth/callback", auth.Callback)
	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/signup", auth.SignUp)
	mux.HandleFunc("GET /auth/oauth/{provider}", auth.OAuth)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.HandleFunc("GET /auth/status", auth.Status)

	if s.Posts != nil {
		posts := &PostHandlers{Svc: s.Posts}
		mux.Handle("GET /api/posts", authed(http.HandlerFunc(posts.List)))
		mux.Handle("POST /api/posts", authed(http.HandlerFunc(posts.Create)))
		mux.Handle("GET /api/posts/{id}", authed(http.HandlerFunc(posts.Get)))
		mux.Handle("PUT /api/posts/{id}", authed(http.HandlerFunc(posts.Update)))
		mux.Handle("DELETE /api/posts/{id}", authed(http.HandlerFunc(posts.Delete)))
		mux.HandleFunc("GET /api/public/posts/{slug}", posts.Public)
	}

	dash := &DashboardHandlers{Stats: s.Stats, Activity: s.Activity}
	if s.Stats != nil {
		mux.Handle("GET /api/admin/stats", RequireRole(domainauth.RoleAdmin)(http.HandlerFunc(dash.AdminStats)))
	}
	if s.Activity != nil {
		mux.Handle("GET /api/activity", authed(http.HandlerFunc(dash.RecentActivity)))
	}

	var exclude []string
	if s.Health != nil && s.HealthPath != "" {
		mux.Handle("GET "+s.HealthPath, s.Health)
		exclude = append(exclude, s.HealthPath)
	}
	if s.MetricsPath != "" {
		mux.Handle("GET "+s.MetricsPath, promhttp.Handler())
		exclude = append(exclude, s.MetricsPath)
	}

	pages := s.Pages
	if pages == nil {
		pages = NewPageHandler(nil, logger)
	}
	mux.Handle("/", pages)

	edge := EdgeFilter(EdgeFilterOptions{
		Reader:       s.Sessions,
		Cookies:      s.Cookies,
		Policy:       s.Policy,
		ExcludePaths: exclude,
		Logger:       logger,
	})
	return edge(Metrics()(mux))
}
