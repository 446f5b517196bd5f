package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/backend"
	"github.com/sakif/hackhub/internal/cache"
	"github.com/sakif/hackhub/internal/hackathon"
	"github.com/sakif/hackhub/internal/model"
)

// HackathonBackend is the part of the application backend the dashboard
// needs. *backend.Client satisfies it.
type HackathonBackend interface {
	ListHackathons(ctx context.Context) (json.RawMessage, error)
	ListUserHackathons(ctx context.Context, userID string) (json.RawMessage, error)
	OrganizerStats(ctx context.Context, hackathonID string) (*model.OrganizerStats, error)
}

var _ HackathonBackend = (*backend.Client)(nil)

// Viewer is who a dashboard is built for. A zero Viewer is anonymous.
type Viewer struct {
	ID   string
	Role model.Role
}

// ViewerOf derives the viewer from the session's profile (nil allowed).
func ViewerOf(u *model.UserProfile) Viewer {
	if u == nil {
		return Viewer{Role: model.RoleParticipant}
	}
	return Viewer{ID: u.ID, Role: u.Role}
}

// DashboardState is the aggregated dashboard. IsError is set when either
// collection failed to load; there is no per-collection error.
type DashboardState struct {
	View      model.DashboardView `json:"view"`
	IsLoading bool                `json:"isLoading"`
	IsError   bool                `json:"isError"`
}

// memoLimit bounds each memo table. When full the table is cleared.
const memoLimit = 512

// DashboardAggregator fetches the hackathon collections through the SWR
// cache and derives role-scoped projections. One aggregator serves every
// session; it holds no per-viewer state beyond its caches.
type DashboardAggregator struct {
	backend   HackathonBackend
	cache     *cache.SWR
	namespace string
	logger    *slog.Logger

	mine        memo
	recommended memo
	managed     memo
}

// NewDashboardAggregator builds an aggregator. namespace identifies the
// backing collection (e.g. "<database id>:<collection id>") and prefixes every
// cache key.
func NewDashboardAggregator(hackathons HackathonBackend, swr *cache.SWR, namespace string, logger *slog.Logger) *DashboardAggregator {
	return &DashboardAggregator{
		backend:   hackathons,
		cache:     swr,
		namespace: namespace,
		logger:    logger,
	}
}

func (a *DashboardAggregator) allKey() string {
	return a.namespace + ":hackathons:all"
}

func (a *DashboardAggregator) userKey(userID string) string {
	return a.namespace + ":hackathons:user:" + userID
}

func (a *DashboardAggregator) statsKey(hackathonID string) string {
	return a.namespace + ":organizer:stats:" + hackathonID
}

func (a *DashboardAggregator) fetchAll(ctx context.Context) ([]byte, error) {
	return a.backend.ListHackathons(ctx)
}

func (a *DashboardAggregator) fetchUser(userID string) cache.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return a.backend.ListUserHackathons(ctx, userID)
	}
}

// FetchAllHackathons returns the raw hackathon collection, possibly stale.
func (a *DashboardAggregator) FetchAllHackathons(ctx context.Context) (json.RawMessage, error) {
	raw, err := a.cache.Get(ctx, a.allKey(), a.fetchAll)
	if err != nil {
		return nil, fmt.Errorf("service: fetching hackathons: %w", err)
	}
	return raw, nil
}

// FetchUserHackathons returns the raw collection of hackathons userID takes
// part in. userID is required.
func (a *DashboardAggregator) FetchUserHackathons(ctx context.Context, userID string) (json.RawMessage, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user id is required")
	}
	raw, err := a.cache.Get(ctx, a.userKey(userID), a.fetchUser(userID))
	if err != nil {
		return nil, fmt.Errorf("service: fetching hackathons of user %s: %w", userID, err)
	}
	return raw, nil
}

// DeriveMine maps the viewer's own collection. Results are memoized on the
// raw bytes and must not be modified.
func (a *DashboardAggregator) DeriveMine(raw json.RawMessage) []model.HackathonSummary {
	return a.mine.get(raw, "", func() []model.HackathonSummary {
		return hackathon.DeriveMine(raw)
	})
}

// DeriveRecommended maps the full collection minus the viewer's own
// hackathons. Memoized like DeriveMine.
func (a *DashboardAggregator) DeriveRecommended(allRaw json.RawMessage, viewerID string) []model.HackathonSummary {
	return a.recommended.get(allRaw, viewerID, func() []model.HackathonSummary {
		return hackathon.DeriveRecommended(allRaw, viewerID)
	})
}

// DeriveManaged keeps the hackathons the viewer organizes. Memoized like
// DeriveMine.
func (a *DashboardAggregator) DeriveManaged(allRaw json.RawMessage, viewerID string) []model.HackathonSummary {
	return a.managed.get(allRaw, viewerID, func() []model.HackathonSummary {
		return hackathon.DeriveManaged(allRaw, viewerID)
	})
}

// Load fetches both collections concurrently and builds the view. The two
// fetches fail independently; either failure sets IsError and the other
// collection is still used. The user collection is only fetched for a known
// viewer.
func (a *DashboardAggregator) Load(ctx context.Context, viewer Viewer) DashboardState {
	var (
		all, mine       json.RawMessage
		allErr, mineErr error
		g               errgroup.Group
	)

	g.Go(func() error {
		all, allErr = a.FetchAllHackathons(ctx)
		return nil
	})
	if viewer.ID != "" {
		g.Go(func() error {
			mine, mineErr = a.FetchUserHackathons(ctx, viewer.ID)
			return nil
		})
	}
	g.Wait()

	for _, err := range []error{allErr, mineErr} {
		if err != nil {
			a.logger.Warn("dashboard collection failed to load",
				slog.String("viewer_id", viewer.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return DashboardState{
		View:    a.buildView(viewer, all, mine),
		IsError: allErr != nil || mineErr != nil,
	}
}

// Snapshot builds the view from whatever is cached right now and never
// blocks on the backend. Missing or stale collections are fetched in the
// background; IsLoading reports a collection with nothing to show that has
// not failed yet.
func (a *DashboardAggregator) Snapshot(ctx context.Context, viewer Viewer) DashboardState {
	allSt := a.cache.Refresh(ctx, a.allKey(), a.fetchAll)

	var mineSt cache.Status
	if viewer.ID != "" {
		mineSt = a.cache.Refresh(ctx, a.userKey(viewer.ID), a.fetchUser(viewer.ID))
	}

	loading := awaitingFirstValue(allSt) ||
		(viewer.ID != "" && awaitingFirstValue(mineSt))

	return DashboardState{
		View:      a.buildView(viewer, allSt.Value, mineSt.Value),
		IsLoading: loading,
		IsError:   allSt.Err != nil || mineSt.Err != nil,
	}
}

// awaitingFirstValue reports a collection with nothing to show whose fetch
// has not yet failed. After a failure the collection counts as resolved in
// error, even while a retry runs.
func awaitingFirstValue(st cache.Status) bool {
	return st.Pending && !st.Found && st.Err == nil
}

// ManagedStats returns analytics for a hackathon the viewer organizes.
func (a *DashboardAggregator) ManagedStats(ctx context.Context, viewer Viewer, hackathonID string) (*model.OrganizerStats, error) {
	if viewer.ID == "" || viewer.Role != model.RoleOrganizer {
		return nil, apperror.Forbidden("only organizers can view hackathon analytics")
	}

	all, err := a.FetchAllHackathons(ctx)
	if err != nil {
		return nil, err
	}
	managed := a.DeriveManaged(all, viewer.ID)
	if !slices.ContainsFunc(managed, func(h model.HackathonSummary) bool { return h.ID == hackathonID }) {
		return nil, apperror.NotFound("managed hackathon", hackathonID)
	}

	raw, err := a.cache.Get(ctx, a.statsKey(hackathonID), func(ctx context.Context) ([]byte, error) {
		stats, err := a.backend.OrganizerStats(ctx, hackathonID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return nil, fmt.Errorf("service: fetching stats of hackathon %s: %w", hackathonID, err)
	}

	var stats model.OrganizerStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("service: decoding cached stats of hackathon %s: %w", hackathonID, err)
	}
	return &stats, nil
}

// buildView assembles the role-appropriate view. Managed is only computed
// for organizers; recommended never repeats an entry already in mine.
func (a *DashboardAggregator) buildView(viewer Viewer, all, mine json.RawMessage) model.DashboardView {
	role := viewer.Role
	if role == "" {
		role = model.RoleParticipant
	}
	view := model.DashboardView{Role: role}

	if role == model.RoleOrganizer {
		view.Managed = a.DeriveManaged(all, viewer.ID)
		return view
	}

	view.Mine = a.DeriveMine(mine)
	view.Recommended = hackathon.ExcludeIDs(a.DeriveRecommended(all, viewer.ID), view.Mine)
	return view
}

// memo caches derived projections keyed by the BLAKE2b-256 digest of the raw
// collection and the viewer id.
type memo struct {
	mu       sync.Mutex
	entries  map[[blake2b.Size256]byte][]model.HackathonSummary
	computed int // number of times compute ran, for tests
}

func (m *memo) get(raw []byte, viewerID string, compute func() []model.HackathonSummary) []model.HackathonSummary {
	key := memoKey(raw, viewerID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.entries[key]; ok {
		return v
	}
	if m.entries == nil || len(m.entries) >= memoLimit {
		m.entries = make(map[[blake2b.Size256]byte][]model.HackathonSummary)
	}
	v := compute()
	m.computed++
	m.entries[key] = v
	return v
}

func memoKey(raw []byte, viewerID string) [blake2b.Size256]byte {
	buf := make([]byte, 0, len(raw)+len(viewerID)+1)
	buf = append(buf, viewerID...)
	buf = append(buf, 0)
	buf = append(buf, raw...)
	return blake2b.Sum256(buf)
}
