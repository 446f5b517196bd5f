package appwrite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hackhub/internal/apperror"
)

// fakeAppwrite is a minimal account API: one user, cookie-based sessions.
type fakeAppwrite struct {
	deleteStatus int
}

func (f *fakeAppwrite) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/account/sessions/email", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proj", r.Header.Get("X-Appwrite-Project"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] != "jane@x.io" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials. Please check the email and password.","code":401}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "a_session_proj", Value: "s1", Path: "/"})
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"$id":"s1"}`))
	})

	mux.HandleFunc("GET /v1/account", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("a_session_proj"); err != nil || c.Value != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"User (role: guests) missing scope (account)","code":401}`))
			return
		}
		w.Write([]byte(`{"$id":"u1","email":"jane@x.io","name":"Jane Doe","$createdAt":"2024-01-01T00:00:00.000+00:00"}`))
	})

	mux.HandleFunc("DELETE /v1/account/sessions/current", func(w http.ResponseWriter, r *http.Request) {
		if f.deleteStatus != 0 {
			w.WriteHeader(f.deleteStatus)
			w.Write([]byte(`{"message":"server error"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "a_session_proj", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeAppwrite) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/v1/", "proj", 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestCurrentSession_NoSession(t *testing.T) {
	c := newTestClient(t, &fakeAppwrite{})

	_, err := c.CurrentSession(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotAuthenticated))
}

func TestLoginLifecycle(t *testing.T) {
	c := newTestClient(t, &fakeAppwrite{})
	ctx := context.Background()

	require.NoError(t, c.CreateSession(ctx, "jane@x.io", "secret"))

	ident, err := c.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", ident.ID)
	assert.Equal(t, "jane@x.io", ident.Email)
	assert.Equal(t, "Jane Doe", ident.Name)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ident.CreatedAt.UTC())

	require.NoError(t, c.DeleteSession(ctx))

	_, err = c.CurrentSession(ctx)
	assert.True(t, errors.Is(err, apperror.ErrNotAuthenticated))
}

func TestCreateSession_InvalidCredentials(t *testing.T) {
	c := newTestClient(t, &fakeAppwrite{})

	err := c.CreateSession(context.Background(), "jane@x.io", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrInvalidCredentials))
	assert.Equal(t, "Invalid credentials. Please check the email and password.", err.Error())
}

func TestDeleteSession_WithoutSessionIsNoop(t *testing.T) {
	c := newTestClient(t, &fakeAppwrite{deleteStatus: http.StatusUnauthorized})
	assert.NoError(t, c.DeleteSession(context.Background()))
}

func TestDeleteSession_ServerError(t *testing.T) {
	c := newTestClient(t, &fakeAppwrite{deleteStatus: http.StatusInternalServerError})

	err := c.DeleteSession(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
}

func TestClientsDoNotShareSessions(t *testing.T) {
	f := &fakeAppwrite{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	factory := Factory(srv.URL+"/v1", "proj", 5*time.Second)
	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)

	require.NoError(t, a.CreateSession(ctx, "jane@x.io", "secret"))

	_, err = a.CurrentSession(ctx)
	assert.NoError(t, err)
	_, err = b.CurrentSession(ctx)
	assert.True(t, errors.Is(err, apperror.ErrNotAuthenticated))
}
