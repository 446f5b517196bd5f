package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hackhub/internal/identity"
	"github.com/sakif/hackhub/internal/model"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*SessionRegistry, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	factory := func() (identity.Provider, error) { return newFakeProvider(), nil }
	r := NewSessionRegistry(factory, newFakeProfiles(), ttl, discardLogger())
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)

	key, m, err := r.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, model.PhaseUnresolved, m.State().Phase())

	got, ok := r.Get(key)
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)
	ctx := context.Background()

	_, a, err := r.Create()
	require.NoError(t, err)
	_, b, err := r.Create()
	require.NoError(t, err)

	require.True(t, a.Login(ctx, "jane@x.io", "secret").Success)

	assert.Equal(t, model.PhaseAuthenticated, a.State().Phase())
	assert.Equal(t, model.PhaseUnauthenticated, b.CheckSession(ctx).Phase())
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	r, now := newTestRegistry(t, time.Hour)

	idle, _, err := r.Create()
	require.NoError(t, err)
	*now = now.Add(45 * time.Minute)
	active, _, err := r.Create()
	require.NoError(t, err)

	*now = now.Add(30 * time.Minute)
	_, ok := r.Get(idle)
	assert.False(t, ok, "expired sessions are not served before a sweep")

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	_, ok = r.Get(active)
	assert.True(t, ok)
}

func TestRegistry_GetRefreshesIdleTimer(t *testing.T) {
	r, now := newTestRegistry(t, time.Hour)

	key, _, err := r.Create()
	require.NoError(t, err)

	for range 3 {
		*now = now.Add(50 * time.Minute)
		_, ok := r.Get(key)
		require.True(t, ok)
	}
	assert.Equal(t, 0, r.Sweep())
}

func TestRegistry_Remove(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)

	key, _, err := r.Create()
	require.NoError(t, err)
	r.Remove(key)

	_, ok := r.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_FactoryError(t *testing.T) {
	factory := func() (identity.Provider, error) { return nil, errors.New("no jar") }
	r := NewSessionRegistry(factory, newFakeProfiles(), time.Hour, discardLogger())

	_, _, err := r.Create()
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}
