package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/hackhub/internal/service"
)

// CookieName is the session cookie.
const CookieName = "hackhub_session"

// contextKey is unexported so no other package can read or shadow our
// context values.
type contextKey string

const sessionKey contextKey = "session"

// Registry is the session lookup the middleware needs.
// *service.SessionRegistry satisfies it.
type Registry interface {
	Get(key string) (*service.SessionManager, bool)
	Create() (string, *service.SessionManager, error)
}

var _ Registry = (*service.SessionRegistry)(nil)

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Secure bool
}

// Sessions attaches the caller's SessionManager to the request context,
// creating a session and setting its cookie when the request has none or
// carries an invalid or unknown one. Newly created sessions are resolved
// with CheckSession before the handler runs.
func Sessions(tokens *TokenService, registry Registry, opts CookieOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m, ok := lookup(r, tokens, registry); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, m)))
				return
			}

			key, m, err := registry.Create()
			if err != nil {
				logger.Error("creating session failed", slog.String("error", err.Error()))
				http.Error(w, `{"error":"session_unavailable","message":"could not start a session"}`, http.StatusServiceUnavailable)
				return
			}

			token, err := tokens.Generate(key)
			if err != nil {
				logger.Error("signing session token failed", slog.String("error", err.Error()))
				http.Error(w, `{"error":"session_unavailable","message":"could not start a session"}`, http.StatusServiceUnavailable)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(tokens.TTL().Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			m.CheckSession(r.Context())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, m)))
		})
	}
}

// SessionFromContext returns the SessionManager set by Sessions.
func SessionFromContext(ctx context.Context) (*service.SessionManager, bool) {
	m, ok := ctx.Value(sessionKey).(*service.SessionManager)
	return m, ok && m != nil
}

// WithSession stores m in ctx. Handlers' tests use it to skip the middleware.
func WithSession(ctx context.Context, m *service.SessionManager) context.Context {
	return context.WithValue(ctx, sessionKey, m)
}

func lookup(r *http.Request, tokens *TokenService, registry Registry) (*service.SessionManager, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	key, err := tokens.Validate(cookie.Value)
	if err != nil {
		return nil, false
	}
	return registry.Get(key)
}
