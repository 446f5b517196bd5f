package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hackhub/internal/apperror"
	"github.com/sakif/hackhub/internal/cache"
	"github.com/sakif/hackhub/internal/model"
)

// fakeHackathons serves fixed collections and counts calls.
type fakeHackathons struct {
	mu        sync.Mutex
	all       string
	byUser    map[string]string
	stats     map[string]*model.OrganizerStats
	allErr    error
	userErr   error
	allCalls  int
	userCalls int
	block     chan struct{} // when set, ListHackathons waits on it
}

var _ HackathonBackend = (*fakeHackathons)(nil)

func (f *fakeHackathons) ListHackathons(ctx context.Context) (json.RawMessage, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	if f.allErr != nil {
		return nil, f.allErr
	}
	return json.RawMessage(f.all), nil
}

func (f *fakeHackathons) ListUserHackathons(ctx context.Context, userID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	raw, ok := f.byUser[userID]
	if !ok {
		raw = "[]"
	}
	return json.RawMessage(raw), nil
}

func (f *fakeHackathons) OrganizerStats(ctx context.Context, hackathonID string) (*model.OrganizerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[hackathonID]
	if !ok {
		return nil, apperror.Upstream("GET /organizer/"+hackathonID+"/stats", 404, "Hackathon not found")
	}
	return s, nil
}

const testAll = `[
	{"$id":"h1","title":"Own Jam","organizer_id":"u1","total_prize_pool":1000},
	{"$id":"h2","title":"Other Jam","organizer_id":"u2","total_prize_pool":"75000"},
	{"$id":"h3","title":"Joined Jam","organizer_id":"u2"}
]`

func newTestAggregator(t *testing.T, f *fakeHackathons) *DashboardAggregator {
	t.Helper()
	swr := cache.New(cache.NewMemoryStore(), time.Minute, discardLogger())
	t.Cleanup(swr.Wait)
	return NewDashboardAggregator(f, swr, "db:hackathons", discardLogger())
}

func summaryIDs(list []model.HackathonSummary) []string {
	out := []string{}
	for _, h := range list {
		out = append(out, h.ID)
	}
	return out
}

func TestLoad_ParticipantView(t *testing.T) {
	f := &fakeHackathons{
		all:    testAll,
		byUser: map[string]string{"u1": `[{"$id":"h3","title":"Joined Jam","organizer_id":"u2"}]`},
	}
	a := newTestAggregator(t, f)

	st := a.Load(context.Background(), Viewer{ID: "u1", Role: model.RoleParticipant})

	assert.False(t, st.IsLoading)
	assert.False(t, st.IsError)
	assert.Equal(t, model.RoleParticipant, st.View.Role)
	assert.Equal(t, []string{"h3"}, summaryIDs(st.View.Mine))
	assert.Equal(t, []string{"h2"}, summaryIDs(st.View.Recommended), "own and joined hackathons are not recommended")
	assert.Nil(t, st.View.Managed)
	assert.Equal(t, 75000, st.View.Recommended[0].TotalPrizePool)
}

func TestLoad_RecommendedNeverContainsViewerOwn(t *testing.T) {
	f := &fakeHackathons{all: testAll}
	a := newTestAggregator(t, f)

	for _, id := range []string{"u1", "u2", "u3"} {
		st := a.Load(context.Background(), Viewer{ID: id, Role: model.RoleParticipant})
		for _, h := range st.View.Recommended {
			assert.NotEqual(t, id, h.OrganizerID)
		}
	}
}

func TestLoad_OrganizerView(t *testing.T) {
	f := &fakeHackathons{all: testAll}
	a := newTestAggregator(t, f)

	st := a.Load(context.Background(), Viewer{ID: "u2", Role: model.RoleOrganizer})

	assert.Equal(t, model.RoleOrganizer, st.View.Role)
	assert.Equal(t, []string{"h2", "h3"}, summaryIDs(st.View.Managed))
	assert.Nil(t, st.View.Mine)
	assert.Nil(t, st.View.Recommended)
}

func TestLoad_AnonymousSkipsUserFetch(t *testing.T) {
	f := &fakeHackathons{all: testAll}
	a := newTestAggregator(t, f)

	st := a.Load(context.Background(), ViewerOf(nil))

	assert.Equal(t, 0, f.userCalls)
	assert.Equal(t, []string{"h1", "h2", "h3"}, summaryIDs(st.View.Recommended))
	assert.False(t, st.IsError)
}

func TestLoad_IndependentFailures(t *testing.T) {
	tests := []struct {
		name        string
		allErr      error
		userErr     error
		wantRecs    []string
		wantMineLen int
	}{
		{"all fails", errors.New("boom"), nil, []string{}, 1},
		{"user fails", nil, errors.New("boom"), []string{"h2", "h3"}, 0},
		{"both fail", errors.New("boom"), errors.New("boom"), []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeHackathons{
				all:     testAll,
				byUser:  map[string]string{"u1": `[{"$id":"h9"}]`},
				allErr:  tt.allErr,
				userErr: tt.userErr,
			}
			a := newTestAggregator(t, f)

			st := a.Load(context.Background(), Viewer{ID: "u1", Role: model.RoleParticipant})

			assert.True(t, st.IsError)
			assert.False(t, st.IsLoading)
			assert.Equal(t, tt.wantRecs, summaryIDs(st.View.Recommended))
			assert.Len(t, st.View.Mine, tt.wantMineLen)
		})
	}
}

func TestLoad_UsesCacheWithinStalenessWindow(t *testing.T) {
	f := &fakeHackathons{all: testAll}
	a := newTestAggregator(t, f)
	v := Viewer{ID: "u1", Role: model.RoleParticipant}

	a.Load(context.Background(), v)
	a.Load(context.Background(), v)

	assert.Equal(t, 1, f.allCalls)
	assert.Equal(t, 1, f.userCalls)
}

func TestDerive_MemoizedOnContent(t *testing.T) {
	a := newTestAggregator(t, &fakeHackathons{})
	raw := json.RawMessage(testAll)

	first := a.DeriveRecommended(raw, "u1")
	second := a.DeriveRecommended(json.RawMessage(testAll), "u1")
	assert.Equal(t, 1, a.recommended.computed, "same bytes, same viewer: no recomputation")
	assert.Equal(t, first, second)

	a.DeriveRecommended(raw, "u2")
	assert.Equal(t, 2, a.recommended.computed, "viewer change recomputes")

	a.DeriveRecommended(json.RawMessage(`[{"$id":"h1"}]`), "u1")
	assert.Equal(t, 3, a.recommended.computed, "content change recomputes")

	a.DeriveMine(raw)
	a.DeriveMine(raw)
	assert.Equal(t, 1, a.mine.computed)
}

func TestFetchUserHackathons_RequiresUserID(t *testing.T) {
	f := &fakeHackathons{}
	a := newTestAggregator(t, f)

	_, err := a.FetchUserHackathons(context.Background(), "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, 0, f.userCalls)
}

func TestFetchAllHackathons_FailureIsUpstream(t *testing.T) {
	f := &fakeHackathons{allErr: apperror.Upstream("GET /hackathons", 503, "")}
	a := newTestAggregator(t, f)

	_, err := a.FetchAllHackathons(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
}

func TestSnapshot_LoadingUntilFirstValue(t *testing.T) {
	f := &fakeHackathons{all: testAll, block: make(chan struct{})}
	a := newTestAggregator(t, f)
	v := Viewer{ID: "u1", Role: model.RoleParticipant}

	st := a.Snapshot(context.Background(), v)
	assert.True(t, st.IsLoading)
	assert.Empty(t, st.View.Recommended)

	close(f.block)
	a.cache.Wait()

	st = a.Snapshot(context.Background(), v)
	assert.False(t, st.IsLoading)
	assert.Equal(t, []string{"h2", "h3"}, summaryIDs(st.View.Recommended))
}

func TestSnapshot_BackendDownResolvesToError(t *testing.T) {
	f := &fakeHackathons{
		all:    testAll,
		byUser: map[string]string{"u1": `[{"$id":"h3"}]`},
		allErr: errors.New("backend down"),
	}
	a := newTestAggregator(t, f)
	v := Viewer{ID: "u1", Role: model.RoleParticipant}
	ctx := context.Background()

	st := a.Snapshot(ctx, v)
	assert.True(t, st.IsLoading, "first poll has not seen a failure yet")
	a.cache.Wait()

	for i := range 3 {
		st = a.Snapshot(ctx, v)
		assert.False(t, st.IsLoading, "poll %d", i)
		assert.True(t, st.IsError, "poll %d", i)
		a.cache.Wait()
	}
	assert.Equal(t, []string{"h3"}, summaryIDs(st.View.Mine), "user collection is unaffected")

	f.mu.Lock()
	f.allErr = nil
	f.mu.Unlock()

	a.Snapshot(ctx, v)
	a.cache.Wait()
	st = a.Snapshot(ctx, v)
	assert.False(t, st.IsLoading)
	assert.False(t, st.IsError)
	assert.Equal(t, []string{"h2"}, summaryIDs(st.View.Recommended))
}

func TestSnapshot_AnonymousIgnoresUserCollection(t *testing.T) {
	f := &fakeHackathons{all: testAll}
	a := newTestAggregator(t, f)

	a.Load(context.Background(), Viewer{})
	st := a.Snapshot(context.Background(), Viewer{})

	assert.False(t, st.IsLoading)
	assert.Equal(t, 0, f.userCalls)
}

func TestManagedStats(t *testing.T) {
	stats := &model.OrganizerStats{TotalRegistrants: 120, TeamsFormed: 30, SubmissionsReceived: 25, LookingForTeam: 8}
	f := &fakeHackathons{all: testAll, stats: map[string]*model.OrganizerStats{"h2": stats}}
	a := newTestAggregator(t, f)
	ctx := context.Background()

	got, err := a.ManagedStats(ctx, Viewer{ID: "u2", Role: model.RoleOrganizer}, "h2")
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	_, err = a.ManagedStats(ctx, Viewer{ID: "u2", Role: model.RoleParticipant}, "h2")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = a.ManagedStats(ctx, Viewer{ID: "u1", Role: model.RoleOrganizer}, "h2")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "organizers only see their own hackathons")

	_, err = a.ManagedStats(ctx, Viewer{ID: "u2", Role: model.RoleOrganizer}, "h3")
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
}
