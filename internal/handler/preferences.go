package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/preferences"
)

// PreferenceHandler reads and writes UI preferences.
type PreferenceHandler struct {
	sidebar *preferences.Sidebar
	logger  *slog.Logger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(sidebar *preferences.Sidebar, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{sidebar: sidebar, logger: logger}
}

// SidebarResponse is the body of every sidebar endpoint.
type SidebarResponse struct {
	Collapsed bool `json:"collapsed"`
}

type sidebarRequest struct {
	Collapsed *bool `json:"collapsed"`
}

// HandleGetSidebar returns the sidebar state.
//
// HTTP: GET /api/preferences/sidebar
func (h *PreferenceHandler) HandleGetSidebar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SidebarResponse{Collapsed: h.sidebar.Collapsed()})
}

// HandleSetSidebar sets the sidebar state. A failed write is logged; the new
// state still applies for the life of the process.
//
// HTTP: PUT /api/preferences/sidebar
// REQUEST BODY: {"collapsed": true}
func (h *PreferenceHandler) HandleSetSidebar(w http.ResponseWriter, r *http.Request) {
	var req sidebarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Collapsed == nil {
		writeError(w, r, apperror.ValidationFailed("collapsed", "collapsed is required"))
		return
	}

	if err := h.sidebar.SetCollapsed(r.Context(), *req.Collapsed); err != nil {
		h.logger.Warn("persisting sidebar preference failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, SidebarResponse{Collapsed: h.sidebar.Collapsed()})
}

// HandleToggleSidebar flips the sidebar state.
//
// HTTP: POST /api/preferences/sidebar/toggle
func (h *PreferenceHandler) HandleToggleSidebar(w http.ResponseWriter, r *http.Request) {
	collapsed, err := h.sidebar.Toggle(r.Context())
	if err != nil {
		h.logger.Warn("persisting sidebar preference failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, SidebarResponse{Collapsed: collapsed})
}
