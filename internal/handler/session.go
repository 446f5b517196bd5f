package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/auth"
	"github.com/sakif/hackhub/internal/model"
	"github.com/sakif/hackhub/internal/service"
)

// SessionHandler exposes the caller's SessionManager. The manager itself is
// placed in the request context by auth.Sessions.
type SessionHandler struct {
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	return &SessionHandler{logger: logger}
}

// SessionResponse pairs an operation outcome with the session state after it.
type SessionResponse struct {
	model.Result
	Session model.AuthState `json:"session"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleGet returns the session state, resolving it first if it has never
// been resolved. ?refresh=true re-reads the identity provider.
//
// HTTP: GET /api/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	state := m.State()
	if state.Phase() == model.PhaseUnresolved || r.URL.Query().Get("refresh") == "true" {
		state = m.CheckSession(r.Context())
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleLogin starts an identity session.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "jane@x.io", "password": "..."}
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, r, apperror.ValidationFailed("email", "email and password are required"))
		return
	}

	res := m.Login(r.Context(), req.Email, req.Password)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, SessionResponse{Result: res, Session: m.State()})
}

// HandleLogout ends the identity session. It always succeeds.
//
// HTTP: POST /api/auth/logout
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	m.Logout(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{Result: model.Succeeded(), Session: m.State()})
}

// HandleSignup registers an account and logs into it.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"name": "...", "email": "...", "password": "...", "username": "..."}
func (h *SessionHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, r, apperror.ValidationFailed("email", "email and password are required"))
		return
	}

	res := m.Signup(r.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, SessionResponse{Result: res, Session: m.State()})
}

// HandleUpdateProfile applies a partial profile edit. Omitted fields are
// left unchanged.
//
// HTTP: PUT /api/profile
func (h *SessionHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var update model.ProfileUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, r, err)
		return
	}

	res := m.UpdateProfile(r.Context(), update)
	status := http.StatusOK
	switch {
	case res.Success:
	case res.Error == service.MsgNoUser:
		status = http.StatusUnauthorized
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, SessionResponse{Result: res, Session: m.State()})
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*service.SessionManager, bool) {
	m, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.logger.Error("session handler reached without session middleware", slog.String("path", r.URL.Path))
		writeError(w, r, apperror.NotAuthenticated("no session"))
		return nil, false
	}
	return m, true
}
