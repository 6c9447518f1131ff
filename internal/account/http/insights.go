package http

import (
	"net/http"
	"strconv"

	"github.com/shieldsphere/shieldsphere/internal/account/service"
	"github.com/shieldsphere/shieldsphere/pkg/httpx"
	"github.com/shieldsphere/shieldsphere/pkg/slogx"
)

// InsightsHandler serves the account activity views. Every endpoint derives
// the account from the session token.
type InsightsHandler struct {
	InsightsService *service.InsightsService
}

func sessionEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := r.Context().Value(httpx.CtxKeyEmail).(string)
	if !ok || email == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Authentication required")
		return "", false
	}
	return email, true
}

// HandleHistory handles GET /v1/account/history.
func (h *InsightsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, ok := sessionEmail(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.InsightsService.History(ctx, email, limit)
	if err != nil {
		slogx.FromContext(ctx).Error("history lookup failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load history")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":        email,
		"total_events": len(entries),
		"events":       entries,
	})
}

// HandleLocations handles GET /v1/account/locations.
func (h *InsightsHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, ok := sessionEmail(w, r)
	if !ok {
		return
	}

	locations, err := h.InsightsService.Locations(ctx, email)
	if err != nil {
		slogx.FromContext(ctx).Error("locations lookup failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load locations")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":           email,
		"total_locations": len(locations),
		"locations":       locations,
	})
}

// HandleDevices handles GET /v1/account/devices.
func (h *InsightsHandler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, ok := sessionEmail(w, r)
	if !ok {
		return
	}

	devices, err := h.InsightsService.Devices(ctx, email)
	if err != nil {
		slogx.FromContext(ctx).Error("devices lookup failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load devices")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":         email,
		"total_devices": len(devices),
		"devices":       devices,
	})
}

// HandleDashboard handles GET /v1/account/dashboard.
func (h *InsightsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, ok := sessionEmail(w, r)
	if !ok {
		return
	}

	dash, err := h.InsightsService.Dashboard(ctx, email)
	if err != nil {
		slogx.FromContext(ctx).Error("dashboard lookup failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load dashboard")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, dash)
}

// HandleRecommendations handles GET /v1/account/recommendations.
func (h *InsightsHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, ok := sessionEmail(w, r)
	if !ok {
		return
	}

	recs, err := h.InsightsService.Recommendations(ctx, email)
	if err != nil {
		slogx.FromContext(ctx).Error("recommendations lookup failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load recommendations")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":           email,
		"recommendations": recs,
	})
}
