package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/service"
)

// SessionReader derives the caller's identity from session cookies.
type SessionReader interface {
	Read(ctx context.Context, tok service.SessionTokens) service.ReadResult
}

// EdgeFilterOptions groups dependencies for EdgeFilter.
type EdgeFilterOptions struct {
	Reader  SessionReader // Required
	Cookies SessionCookies
	Policy  domainauth.Policy
	// ExcludePaths are exact paths that bypass the filter, such as the
	// health and metrics endpoints.
	ExcludePaths []string
	Logger       *slog.Logger
}

var (
	excludedPrefixes   = []string{"/static/", "/_next/static/", "/_next/image"}
	excludedExtensions = []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp"}
)

// EdgeFilter returns the route-protection middleware. It reads the session,
// classifies the path and either forwards the request with the identity in
// its context or answers with a 307 redirect.
func EdgeFilter(opts EdgeFilterOptions) func(http.Handler) http.Handler {
	if opts.Reader == nil {
		panic("SessionReader is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "edge_filter")
	exact := make(map[string]struct{}, len(opts.ExcludePaths)+1)
	exact["/favicon.ico"] = struct{}{}
	for _, p := range opts.ExcludePaths {
		if p != "" {
			exact[p] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExcluded(r.URL.Path, exact) {
				next.ServeHTTP(w, r)
				return
			}

			res := opts.Reader.Read(r.Context(), opts.Cookies.Read(r))
			if res.Rotated != nil {
				opts.Cookies.SetSession(w, r, *res.Rotated)
				r = r.Clone(r.Context())
				opts.Cookies.ApplyToRequest(r, *res.Rotated)
			}

			class := domainauth.Classify(r.URL.Path)
			decision := opts.Policy.Decide(domainauth.DecisionInput{
				Class:      class,
				Identity:   res.Identity,
				RequestURL: requestURL(r),
				RedirectTo: r.URL.Query().Get(domainauth.RedirectParam),
			})
			metrics.ObserveDecision(string(class), decision.Action.String(), decision.Reason)

			if decision.Action == domainauth.ActionRedirect {
				logger.DebugContext(r.Context(), "edge redirect",
					"path", r.URL.Path,
					"route_class", string(class),
					"reason", decision.Reason,
					"target", decision.Target,
				)
				http.Redirect(w, r, decision.Target, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetIdentityInContext(r.Context(), res.Identity)))
		})
	}
}

func isExcluded(path string, exact map[string]struct{}) bool {
	if _, ok := exact[path]; ok {
		return true
	}
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
