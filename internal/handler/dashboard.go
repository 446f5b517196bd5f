package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/auth"
	"github.com/sakif/hackhub/internal/service"
)

// DashboardHandler serves the role-scoped dashboard of the session's user.
type DashboardHandler struct {
	aggregator *service.DashboardAggregator
	logger     *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(aggregator *service.DashboardAggregator, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{aggregator: aggregator, logger: logger}
}

// HandleDashboard returns the dashboard for the session's user, or the
// anonymous participant view when nobody is logged in.
//
// HTTP: GET /api/dashboard
//
// By default both collections are awaited. With ?wait=false the response is
// built from cached data only and missing collections load in the
// background; the client polls until isLoading is false.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	viewer := h.viewer(r)

	var state service.DashboardState
	if r.URL.Query().Get("wait") == "false" {
		state = h.aggregator.Snapshot(r.Context(), viewer)
	} else {
		state = h.aggregator.Load(r.Context(), viewer)
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleManagedStats returns analytics for one hackathon the caller
// organizes.
//
// HTTP: GET /api/dashboard/managed/{id}/stats
func (h *DashboardHandler) HandleManagedStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, r, apperror.ValidationFailed("id", "hackathon id is required"))
		return
	}

	stats, err := h.aggregator.ManagedStats(r.Context(), h.viewer(r), id)
	if err != nil {
		h.logger.Warn("managed stats request failed",
			slog.String("hackathon_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *DashboardHandler) viewer(r *http.Request) service.Viewer {
	m, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return service.ViewerOf(nil)
	}
	return service.ViewerOf(m.User())
}
