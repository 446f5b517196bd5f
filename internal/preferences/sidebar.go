// Package preferences holds process-wide UI preferences. Each preference is
// read from its store once, when it is created, and written through on every
// change.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/repository"
)

// SidebarKey is the store key of the sidebar preference.
const SidebarKey = "sidebarCollapsed"

// Sidebar is the collapsed/expanded state of the navigation sidebar.
// The zero state (and any unreadable stored value) is expanded.
type Sidebar struct {
	store  repository.PreferenceRepository
	logger *slog.Logger

	// writeMu serializes changes so the store always ends up holding the
	// last value set in memory.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	collapsed bool
}

// LoadSidebar reads the stored value once. A missing or malformed value is
// treated as expanded; a store failure is logged and treated the same way.
func LoadSidebar(ctx context.Context, store repository.PreferenceRepository, logger *slog.Logger) *Sidebar {
	s := &Sidebar{store: store, logger: logger}

	raw, err := store.Get(ctx, SidebarKey)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
	case err != nil:
		logger.Warn("reading sidebar preference failed",
			slog.String("error", err.Error()),
		)
	default:
		s.collapsed = parseBool(raw)
	}
	return s
}

// Collapsed reports the current state without touching the store.
func (s *Sidebar) Collapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collapsed
}

// SetCollapsed updates the state and writes it to the store. The in-memory
// value changes even if the write fails; the error is returned.
func (s *Sidebar) SetCollapsed(ctx context.Context, collapsed bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.collapsed = collapsed
	s.mu.Unlock()

	if err := s.store.Set(ctx, SidebarKey, strconv.FormatBool(collapsed)); err != nil {
		return fmt.Errorf("preferences: saving sidebar state: %w", err)
	}
	return nil
}

// Toggle flips the state and returns the new value.
func (s *Sidebar) Toggle(ctx context.Context) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.collapsed = !s.collapsed
	v := s.collapsed
	s.mu.Unlock()

	if err := s.store.Set(ctx, SidebarKey, strconv.FormatBool(v)); err != nil {
		return v, fmt.Errorf("preferences: saving sidebar state: %w", err)
	}
	return v, nil
}

// parseBool accepts the JSON literals the value is stored as.
func parseBool(raw string) bool {
	return raw == "true"
}
