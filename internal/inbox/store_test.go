package inbox

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/fleetconsole/internal/api"
	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/tests/testutil"
)

const feedJSON = `{"data":[
	{"id":3,"type":"incident","title":"Panne moteur","message":"AB-123","is_read":false,"read_at":null,"created_at":"2024-03-03T09:00:00Z"},
	{"id":2,"type":"fuel_report","title":"Plein","message":"CD-456","is_read":false,"read_at":null,"created_at":"2024-03-02T09:00:00Z"},
	{"id":1,"type":"other","title":"Bienvenue","message":"","is_read":true,"read_at":"2024-03-01T10:00:00Z","created_at":"2024-03-01T09:00:00Z"}
]}`

var fixedNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *testutil.FakeBackend) {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteNotifications, http.StatusOK, feedJSON)
	fb.Set(testutil.RouteUnreadCount, http.StatusOK, `{"count":2}`)
	fb.Set(testutil.RouteMarkRead, http.StatusOK, `{}`)
	fb.Set(testutil.RouteMarkAllRead, http.StatusOK, `{}`)

	s := New(api.NewClient(fb.URL, testutil.TestToken, api.WithMaxRetries(0)), 20)
	s.now = func() time.Time { return fixedNow }
	return s, fb
}

func TestRefreshReplacesState(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	snap := s.Snapshot()
	require.Len(t, snap.Feed, 3)
	assert.Equal(t, 2, snap.UnreadCount)
	assert.True(t, snap.CountKnown)
	assert.Equal(t, fixedNow, snap.LastSyncedAt)
	assert.Len(t, snap.Unread(), 2)

	fb.Set(testutil.RouteNotifications, http.StatusOK, `[{"id":9,"type":"incident","is_read":false,"created_at":"2024-03-05T09:00:00Z"}]`)
	fb.Set(testutil.RouteUnreadCount, http.StatusOK, `{"count":11}`)

	require.NoError(t, s.Refresh(ctx))
	snap = s.Snapshot()
	require.Len(t, snap.Feed, 1)
	assert.Equal(t, model.ID("9"), snap.Feed[0].ID)
	assert.Equal(t, 11, snap.UnreadCount, "count comes from the server, not from the feed")

	reqs := fb.Requests()
	assert.Equal(t, "per_page=20", reqs[0].Query)
}

func TestRefreshOverridesLocalMutations(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.MarkRead(ctx, "3"))
	assert.Equal(t, 1, s.Snapshot().UnreadCount)

	// Server has not applied the change yet; the refresh wins.
	require.NoError(t, s.Refresh(ctx))
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.UnreadCount)
	assert.False(t, snap.Feed[0].IsRead)
	assert.Equal(t, 2, fb.Count(testutil.RouteNotifications))
}

func TestRefreshFailureKeepsState(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fb *testutil.FakeBackend)
	}{
		{name: "feed fails", mutate: func(fb *testutil.FakeBackend) {
			fb.Set(testutil.RouteNotifications, http.StatusInternalServerError, `{"message":"boom"}`)
		}},
		{name: "count fails", mutate: func(fb *testutil.FakeBackend) {
			fb.Set(testutil.RouteNotifications, http.StatusOK, `[]`)
			fb.Set(testutil.RouteUnreadCount, http.StatusBadGateway, ``)
		}},
		{name: "malformed feed", mutate: func(fb *testutil.FakeBackend) {
			fb.Set(testutil.RouteNotifications, http.StatusOK, `{"data":"nope"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fb := newTestStore(t)
			ctx := context.Background()
			require.NoError(t, s.Refresh(ctx))
			before := s.Snapshot()

			tt.mutate(fb)
			s.now = func() time.Time { return fixedNow.Add(time.Hour) }

			assert.Error(t, s.Refresh(ctx))
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestRefreshUnknownCount(t *testing.T) {
	s, fb := newTestStore(t)
	fb.Set(testutil.RouteUnreadCount, http.StatusOK, `{}`)

	require.NoError(t, s.Refresh(context.Background()))
	snap := s.Snapshot()
	assert.False(t, snap.CountKnown)
	assert.Equal(t, 0, snap.UnreadCount)
	assert.Len(t, snap.Feed, 3)
}

func TestRefreshTolerantCount(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantKnown bool
		wantCount int
	}{
		{name: "numeric string", body: `{"count":"2"}`, wantKnown: true, wantCount: 2},
		{name: "unreadable string", body: `{"count":"lots"}`, wantKnown: false},
		{name: "wrong type", body: `{"count":[1]}`, wantKnown: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fb := newTestStore(t)
			fb.Set(testutil.RouteUnreadCount, http.StatusOK, tt.body)

			require.NoError(t, s.Refresh(context.Background()))
			snap := s.Snapshot()
			assert.Len(t, snap.Feed, 3, "the feed loads whatever the count looks like")
			assert.Equal(t, tt.wantKnown, snap.CountKnown)
			assert.Equal(t, tt.wantCount, snap.UnreadCount)
		})
	}
}

func TestMarkRead(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.MarkRead(ctx, "2"))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	n := snap.Feed[1]
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, fixedNow, *n.ReadAt)
	assert.False(t, snap.Feed[0].IsRead, "only the target changes")

	reqs := fb.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, testutil.RouteMarkRead, last.Route)
	assert.Equal(t, "2", last.Param)
}

func TestMarkReadAlreadyReadIsNoop(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	before := s.Snapshot()

	require.NoError(t, s.MarkRead(ctx, "1"))

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 0, fb.Count(testutil.RouteMarkRead), "no request for an already-read item")
}

func TestMarkReadUnknownID(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	assert.ErrorIs(t, s.MarkRead(ctx, "404"), ErrNotFound)
	assert.Equal(t, 0, fb.Count(testutil.RouteMarkRead))
}

func TestMarkReadFailureKeepsState(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	before := s.Snapshot()

	fb.Set(testutil.RouteMarkRead, http.StatusInternalServerError, `{}`)

	assert.Error(t, s.MarkRead(ctx, "3"))
	assert.Equal(t, before, s.Snapshot())
}

func TestMarkReadFloorsCountAtZero(t *testing.T) {
	s, fb := newTestStore(t)
	fb.Set(testutil.RouteUnreadCount, http.StatusOK, `{"count":0}`)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.MarkRead(ctx, "3"))
	assert.Equal(t, 0, s.Snapshot().UnreadCount)
}

func TestMarkAllRead(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.MarkAllRead(ctx))

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.UnreadCount)
	assert.True(t, snap.CountKnown)
	for _, n := range snap.Feed {
		assert.True(t, n.IsRead, "notification %s", n.ID)
		require.NotNil(t, n.ReadAt)
	}
	assert.Equal(t, fixedNow, *snap.Feed[0].ReadAt)
	assert.Equal(t, fixedNow, *snap.Feed[1].ReadAt)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), snap.Feed[2].ReadAt.UTC(), "earlier read time is kept")
}

func TestMarkAllReadFailureKeepsState(t *testing.T) {
	s, fb := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))
	before := s.Snapshot()

	fb.Set(testutil.RouteMarkAllRead, http.StatusServiceUnavailable, `{}`)

	assert.Error(t, s.MarkAllRead(ctx))
	assert.Equal(t, before, s.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	snap.Feed[0].IsRead = true
	snap.Feed[0].Title = "changed"

	fresh := s.Snapshot()
	assert.False(t, fresh.Feed[0].IsRead)
	assert.Equal(t, "Panne moteur", fresh.Feed[0].Title)
}

// gatedBackend blocks mark-read until released so a refresh can land in
// between.
type gatedBackend struct {
	feed    []model.Notification
	count   int
	release chan struct{}
	entered chan struct{}
}

func (g *gatedBackend) Notifications(ctx context.Context, perPage int) ([]model.Notification, error) {
	return append([]model.Notification(nil), g.feed...), nil
}

func (g *gatedBackend) UnreadCount(ctx context.Context) (*int, error) {
	n := g.count
	return &n, nil
}

func (g *gatedBackend) MarkNotificationRead(ctx context.Context, id model.ID) error {
	close(g.entered)
	<-g.release
	return nil
}

func (g *gatedBackend) MarkAllNotificationsRead(ctx context.Context) error { return nil }

func TestMarkReadAfterConcurrentRefresh(t *testing.T) {
	readAt := fixedNow.Add(-time.Minute)
	g := &gatedBackend{
		feed:    []model.Notification{{ID: "1", Type: model.NotificationIncident}},
		count:   1,
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	s := New(g, 10)
	s.now = func() time.Time { return fixedNow }
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	done := make(chan error, 1)
	go func() { done <- s.MarkRead(ctx, "1") }()
	<-g.entered

	// Another operator already read it; the refresh lands first.
	g.feed = []model.Notification{{ID: "1", Type: model.NotificationIncident, IsRead: true, ReadAt: &readAt}}
	g.count = 0
	require.NoError(t, s.Refresh(ctx))

	close(g.release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.UnreadCount, "no double decrement")
	assert.Equal(t, readAt, *snap.Feed[0].ReadAt)
}

func TestClosedStoreDiscardsResponses(t *testing.T) {
	g := &gatedBackend{
		feed:    []model.Notification{{ID: "1"}},
		count:   1,
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	s := New(g, 10)
	ctx := context.Background()
	require.NoError(t, s.Refresh(ctx))

	done := make(chan error, 1)
	go func() { done <- s.MarkRead(ctx, "1") }()
	<-g.entered
	s.Close()
	close(g.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, 1, s.Snapshot().UnreadCount)
	assert.ErrorIs(t, s.Refresh(ctx), ErrClosed)
	assert.ErrorIs(t, s.MarkAllRead(ctx), ErrClosed)
}
