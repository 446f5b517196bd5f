package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/auth"
	"github.com/sakif/hackhub/internal/backend"
	"github.com/sakif/hackhub/internal/cache"
	"github.com/sakif/hackhub/internal/model"
	"github.com/sakif/hackhub/internal/service"
)

// accountProvider is an identity provider with a fixed set of accounts.
type accountProvider struct {
	mu       sync.Mutex
	accounts map[string]account
	current  *model.Identity
}

type account struct {
	ident    model.Identity
	password string
}

func newAccountProvider() *accountProvider {
	return &accountProvider{accounts: map[string]account{
		"jane@x.io": {ident: model.Identity{ID: "u1", Email: "jane@x.io", Name: "Jane Doe"}, password: "secret"},
		"olga@x.io": {ident: model.Identity{ID: "o1", Email: "olga@x.io", Name: "Olga Org"}, password: "secret"},
	}}
}

func (p *accountProvider) add(id, email, name, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = account{ident: model.Identity{ID: id, Email: email, Name: name}, password: password}
}

func (p *accountProvider) CurrentSession(context.Context) (model.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return model.Identity{}, apperror.NotAuthenticated("no session")
	}
	return *p.current, nil
}

func (p *accountProvider) CreateSession(_ context.Context, email, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[email]
	if !ok || a.password != password {
		return apperror.InvalidCredentials("Invalid credentials. Please check the email and password.")
	}
	ident := a.ident
	p.current = &ident
	return nil
}

func (p *accountProvider) DeleteSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	return nil
}

const testHackathons = `{"documents":[
	{"$id":"h1","title":"Olga's Jam","organizer_id":"o1","total_prize_pool":5000},
	{"$id":"h2","title":"City Hack","organizer_id":"o2","location":{"type":"in-person","city":"Berlin"}},
	{"$id":"h3","title":"Joined Jam","organizer_id":"o2"}
]}`

// fakeAPI emulates the application backend over HTTP.
type fakeAPI struct {
	mu         sync.Mutex
	users      map[string]map[string]any
	updates    []map[string]any
	hackathons string
	failAll    bool
	provider   *accountProvider
}

func newFakeAPI(provider *accountProvider) *fakeAPI {
	return &fakeAPI{
		provider:   provider,
		hackathons: testHackathons,
		users: map[string]map[string]any{
			"u1": {"id": "u1", "username": "jane", "email": "jane@x.io", "name": "Jane Doe", "xp": 2450, "role": "participant"},
			"o1": {"id": "o1", "username": "olga", "email": "olga@x.io", "name": "Olga Org", "role": "organizer"},
		},
	}
}

func (f *fakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.users[chi.URLParam(r, "id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "User not found"})
			return
		}
		json.NewEncoder(w).Encode(u)
	})
	r.Put("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.updates = append(f.updates, body)
		if u, ok := f.users[chi.URLParam(r, "id")]; ok {
			for k, v := range body {
				u[k] = v
			}
		}
		w.Write([]byte(`{}`))
	})
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	r.Post("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req backend.RegisterRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "jane@x.io" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Email already registered"}`))
			return
		}
		f.provider.add("n1", req.Email, req.Name, req.Password)
		f.mu.Lock()
		f.users["n1"] = map[string]any{"id": "n1", "username": req.Username, "email": req.Email, "name": req.Name}
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})
	r.Get("/hackathons", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failAll {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(f.hackathons))
	})
	r.Get("/users/{id}/hackathons", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "u1" {
			w.Write([]byte(`{"hackathons":[{"$id":"h3","title":"Joined Jam","organizer_id":"o2"}]}`))
			return
		}
		w.Write([]byte(`{"hackathons":[]}`))
	})
	r.Get("/organizer/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_registrants":120,"teams_formed":30,"submissions_received":12,"looking_for_team":7}`))
	})
	return r
}

type harness struct {
	provider   *accountProvider
	api        *fakeAPI
	client     *backend.Client
	aggregator *service.DashboardAggregator
	logger     *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := newAccountProvider()
	api := newFakeAPI(provider)

	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)

	client := backend.New(srv.URL, srv.Client(), logger)
	swr := cache.New(cache.NewMemoryStore(), time.Minute, logger)
	t.Cleanup(swr.Wait)

	return &harness{
		provider:   provider,
		api:        api,
		client:     client,
		aggregator: service.NewDashboardAggregator(client, swr, "test", logger),
		logger:     logger,
	}
}

// newSession returns a resolved session, logged in as email when non-empty.
func (h *harness) newSession(t *testing.T, email string) *service.SessionManager {
	t.Helper()
	m := service.NewSessionManager(h.provider, h.client, h.logger)
	if email != "" {
		if res := m.Login(context.Background(), email, "secret"); !res.Success {
			t.Fatalf("login as %s failed: %s", email, res.Error)
		}
	} else {
		m.CheckSession(context.Background())
	}
	return m
}

func newRequest(method, target string, body any, m *service.SessionManager) *http.Request {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		buf, _ := json.Marshal(b)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	if m != nil {
		req = req.WithContext(auth.WithSession(req.Context(), m))
	}
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return v
}
