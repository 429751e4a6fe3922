package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/target/sitegate/config"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	httpx "github.com/target/sitegate/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPHandler assembles the router and the outer middleware.
// Order: Recover -> Logging -> EdgeFilter -> Metrics -> mux.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	var upstream *url.URL
	if appCfg.UpstreamURL != "" {
		u, err := url.Parse(appCfg.UpstreamURL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream url: %w", err)
		}
		upstream = u
	}

	metricsPath := ""
	if appCfg.Observability.MetricsEnabled {
		metricsPath = appCfg.Observability.MetricsPath
	}

	svcs := cfg.Services
	router := httpx.NewRouter(httpx.RouterServices{
		Auth:        svcs.Auth,
		Sessions:    svcs.Sessions,
		Posts:       svcs.Posts,
		Stats:       svcs.Stats,
		Activity:    svcs.Activity,
		Health:      svcs.Health,
		Pages:       httpx.NewPageHandler(upstream, logger),
		Cookies:     httpx.SessionCookies{Prefix: appCfg.Auth.CookiePrefix, Domain: appCfg.HTTP.CookieDomain},
		Policy:      domainauth.Policy{EnforceAdminRole: appCfg.Auth.EnforceAdminRole},
		HealthPath:  appCfg.HTTP.HealthPath,
		MetricsPath: metricsPath,
		Logger:      logger,
	})

	h := httpx.Logging(logger)(router)
	h = httpx.Recover(logger)(h)
	return h, nil
}

// NewHTTPServer builds the server for handler with the configured timeouts.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// ServeHTTP runs server until ctx is canceled, then shuts it down within the
// configured shutdown timeout.
func ServeHTTP(ctx context.Context, server *http.Server, cfg config.HTTPConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
