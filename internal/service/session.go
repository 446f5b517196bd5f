// Package service holds the session and dashboard logic that sits between
// the HTTP handlers and the external collaborators:
//
//	Handler (HTTP) → SessionManager      → identity.Provider (who is logged in)
//	                                      ↘ ProfileBackend    (application profile)
//	               → DashboardAggregator → HackathonBackend  (collections, via cache.SWR)
//
// Dependencies are consumer-side interfaces declared here, so tests pass
// hand-written fakes and the backend package never imports service.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/backend"
	"github.com/sakif/hackhub/internal/identity"
	"github.com/sakif/hackhub/internal/metrics"
	"github.com/sakif/hackhub/internal/model"
	"github.com/sakif/hackhub/internal/profile"
)

// User-facing failure messages.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgNoUser             = "No user logged in"
	MsgUpdateFailed       = "Failed to update profile"
)

// ProfileBackend is the part of the application backend the session needs.
// *backend.Client satisfies it.
type ProfileBackend interface {
	GetUser(ctx context.Context, id string) (*backend.UserRecord, error)
	UpdateUser(ctx context.Context, id string, update backend.UserUpdate) error
	SyncLogin(ctx context.Context, req backend.SyncRequest) error
	Register(ctx context.Context, req backend.RegisterRequest) error
}

var _ ProfileBackend = (*backend.Client)(nil)

// SessionManager owns the AuthState of one browser session.
//
// STATE MACHINE:
//
//	unresolved ──CheckSession──▶ authenticated | unauthenticated
//	any        ──Login────────▶ unresolved (user kept) ──▶ authenticated | unauthenticated
//	any        ──Logout───────▶ unauthenticated
//
// Every operation ends in a determinate phase. Operations are not serialized
// against each other: two overlapping logins race and the last state written
// wins.
type SessionManager struct {
	provider identity.Provider
	backend  ProfileBackend
	logger   *slog.Logger

	mu    sync.RWMutex
	state model.AuthState
}

// NewSessionManager returns a manager in the unresolved phase. Call
// CheckSession to resolve it.
func NewSessionManager(provider identity.Provider, profiles ProfileBackend, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		provider: provider,
		backend:  profiles,
		logger:   logger,
		state:    model.Unresolved(),
	}
}

// State returns a copy of the current state.
func (s *SessionManager) State() model.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User is the current profile, or nil.
func (s *SessionManager) User() *model.UserProfile {
	return s.State().User
}

// CheckSession asks the provider who is logged in and rebuilds the profile
// from scratch. It never fails: a missing session yields the unauthenticated
// phase and an unavailable backend profile yields the fallback profile.
func (s *SessionManager) CheckSession(ctx context.Context) model.AuthState {
	ident, err := s.provider.CurrentSession(ctx)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotAuthenticated) {
			s.logger.Warn("identity provider session check failed",
				slog.String("error", err.Error()),
			)
		}
		return s.setState(model.Unauthenticated())
	}

	return s.setState(model.Authenticated(s.resolveProfile(ctx, ident)))
}

// resolveProfile is the only place a UserProfile is produced.
func (s *SessionManager) resolveProfile(ctx context.Context, ident model.Identity) *model.UserProfile {
	rec, err := s.backend.GetUser(ctx, ident.ID)
	if err != nil {
		metrics.ProfileFallbacks.Inc()
		s.logger.Warn("profile fetch failed, falling back to identity data",
			slog.String("user_id", ident.ID),
			slog.String("error", err.Error()),
		)
		return profile.Fallback(ident)
	}
	return profile.FromRecord(rec, ident)
}

// Login opens a provider session, syncs the backend record and re-checks
// the session. Only the provider's verdict decides the outcome; a failed
// sync is logged and ignored.
func (s *SessionManager) Login(ctx context.Context, email, password string) model.Result {
	s.markLoading()

	if err := s.provider.CreateSession(ctx, email, password); err != nil {
		s.setState(model.Unauthenticated())
		metrics.ObserveResult("login", false)
		return model.Failed(loginMessage(err))
	}

	ident, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Error("session missing right after login",
			slog.String("error", err.Error()),
		)
		s.setState(model.Unauthenticated())
		metrics.ObserveResult("login", false)
		return model.Failed(MsgLoginFailed)
	}

	if err := s.backend.SyncLogin(ctx, profile.SyncRequestFor(ident)); err != nil {
		metrics.SyncFailures.Inc()
		s.logger.Error("backend login sync failed",
			slog.String("user_id", ident.ID),
			slog.String("error", err.Error()),
		)
	}

	s.CheckSession(ctx)
	metrics.ObserveResult("login", true)
	return model.Succeeded()
}

// Logout ends the provider session. Local state becomes unauthenticated even
// when the provider call fails.
func (s *SessionManager) Logout(ctx context.Context) {
	if err := s.provider.DeleteSession(ctx); err != nil {
		s.logger.Error("logout failed at identity provider",
			slog.String("error", err.Error()),
		)
	}
	s.setState(model.Unauthenticated())
	metrics.ObserveResult("logout", true)
}

// Signup registers the account and, on success, logs in with the same
// credentials. A rejected registration never attempts a login and leaves
// the state as it was before the call.
func (s *SessionManager) Signup(ctx context.Context, req model.SignupRequest) model.Result {
	prev := s.markLoading()

	err := s.backend.Register(ctx, backend.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		s.setState(settled(prev))
		metrics.ObserveResult("signup", false)

		msg := apperror.DetailOf(err)
		if msg == "" {
			msg = MsgRegistrationFailed
		}
		s.logger.Info("registration rejected",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		return model.Failed(msg)
	}

	metrics.ObserveResult("signup", true)
	return s.Login(ctx, req.Email, req.Password)
}

// UpdateProfile sends the edit to the backend and then re-reads the whole
// profile. The local profile is never patched in place.
func (s *SessionManager) UpdateProfile(ctx context.Context, update model.ProfileUpdate) model.Result {
	user := s.User()
	if user == nil {
		return model.Failed(MsgNoUser)
	}

	if err := s.backend.UpdateUser(ctx, user.ID, profile.ToUpdate(update)); err != nil {
		s.logger.Error("profile update failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		metrics.ObserveResult("update_profile", false)
		return model.Failed(MsgUpdateFailed)
	}

	s.CheckSession(ctx)
	metrics.ObserveResult("update_profile", true)
	return model.Succeeded()
}

func (s *SessionManager) setState(st model.AuthState) model.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return st
}

// markLoading flags the state as loading, keeping the current user, and
// returns the state it replaced.
func (s *SessionManager) markLoading() model.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state.IsLoading = true
	return prev
}

// settled is prev with loading cleared. A state that never resolved to a user
// settles as unauthenticated.
func settled(prev model.AuthState) model.AuthState {
	if !prev.IsAuthenticated || prev.User == nil {
		return model.Unauthenticated()
	}
	prev.IsLoading = false
	return prev
}

// loginMessage is the provider's explanation for a rejected login.
func loginMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(appErr, apperror.ErrInvalidCredentials) && appErr.Message != "" {
		return appErr.Message
	}
	return MsgLoginFailed
}
