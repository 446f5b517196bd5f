package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/hackhub/internal/identity"
	"github.com/sakif/hackhub/internal/metrics"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 24 * time.Hour

// SessionRegistry maps opaque session keys to SessionManagers. Each session
// gets its own identity.Provider, so provider credentials are never shared
// between browsers.
type SessionRegistry struct {
	newProvider identity.Factory
	profiles    ProfileBackend
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

type registryEntry struct {
	manager  *SessionManager
	lastSeen time.Time
}

func NewSessionRegistry(newProvider identity.Factory, profiles ProfileBackend, ttl time.Duration, logger *slog.Logger) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRegistry{
		newProvider: newProvider,
		profiles:    profiles,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*registryEntry),
	}
}

// Create starts a new, unresolved session and returns its key.
func (r *SessionRegistry) Create() (string, *SessionManager, error) {
	provider, err := r.newProvider()
	if err != nil {
		return "", nil, fmt.Errorf("service: creating identity provider: %w", err)
	}

	key := xid.New().String()
	m := NewSessionManager(provider, r.profiles, r.logger.With(slog.String("session", key)))

	r.mu.Lock()
	r.sessions[key] = &registryEntry{manager: m, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return key, m, nil
}

// Get returns the session for key and marks it as used. Expired sessions
// are not returned even if Sweep has not run yet.
func (r *SessionRegistry) Get(key string) (*SessionManager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.lastSeen) > r.ttl {
		return nil, false
	}
	e.lastSeen = now
	return e.manager, true
}

// Remove forgets a session.
func (r *SessionRegistry) Remove(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
}

// Len is the number of sessions held, expired ones included.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many.
func (r *SessionRegistry) Sweep() int {
	r.mu.Lock()
	now := r.now()
	removed := 0
	for key, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.sessions, key)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	if removed > 0 {
		r.logger.Info("expired sessions swept", slog.Int("removed", removed), slog.Int("active", n))
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
