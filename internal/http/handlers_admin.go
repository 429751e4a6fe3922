package httpx

import (
	"context"
	"net/http"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/domain/model"
)

// StatsServiceInterface collects the admin dashboard counters.
type StatsServiceInterface interface {
	Collect(ctx context.Context) model.AdminStats
}

// ActivityServiceInterface builds the caller's activity feed.
type ActivityServiceInterface interface {
	Recent(ctx context.Context, id domainauth.Identity) []model.ActivityItem
}

// DashboardHandlers serves the admin stats and activity endpoints.
type DashboardHandlers struct {
	Stats    StatsServiceInterface
	Activity ActivityServiceInterface
}

// AdminStats handles GET /api/admin/stats.
func (h *DashboardHandlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Stats.Collect(r.Context()))
}

// RecentActivity handles GET /api/activity.
func (h *DashboardHandlers) RecentActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := GetIdentityFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errAuthRequired})
		return
	}
	WriteJSON(w, http.StatusOK, h.Activity.Recent(r.Context(), *id))
}
