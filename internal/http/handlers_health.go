package httpx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/target/sitegate/internal/core"
)

const defaultHealthTimeout = 3 * time.Second

// HealthHandler reports database and Redis connectivity.
type HealthHandler struct {
	Database core.HealthChecker
	// Redis is nil when Redis is disabled.
	Redis   core.HealthChecker
	Timeout time.Duration
	Now     func() time.Time
}

// ServeHTTP handles GET and HEAD on the health path.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	services := map[string]string{}
	if err := h.check(ctx, "database", h.Database); err != nil {
		h.unhealthy(w, r, err, now())
		return
	}
	services["database"] = "connected"

	if h.Redis == nil {
		services["redis"] = "disabled"
	} else {
		if err := h.check(ctx, "redis", h.Redis); err != nil {
			h.unhealthy(w, r, err, now())
			return
		}
		services["redis"] = "connected"
	}

	h.write(w, r, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

func (h *HealthHandler) check(ctx context.Context, name string, c core.HealthChecker) error {
	if c == nil {
		return fmt.Errorf("%s: not configured", name)
	}
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (h *HealthHandler) unhealthy(w http.ResponseWriter, r *http.Request, err error, at time.Time) {
	h.write(w, r, http.StatusInternalServerError, map[string]any{
		"status":    "unhealthy",
		"error":     err.Error(),
		"timestamp": at.UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) write(w http.ResponseWriter, r *http.Request, code int, body any) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, body)
}
