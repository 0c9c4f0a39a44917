package sync_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api/apitest"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/query"
	hbsync "github.com/nhle/habitboard/internal/sync"
)

type fakeProfile struct {
	calls int
	err   error
}

func (f *fakeProfile) Fetch(context.Context) (*model.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Profile{Username: "ann"}, nil
}

func setup(t *testing.T) (*hbsync.Poller, *cache.Store, *apitest.Server, *fakeProfile) {
	t.Helper()
	srv := apitest.New(t)
	srv.Seed(
		model.Task{ID: 1, Title: "Read", Date: "2026-02-01"},
		model.Task{ID: 2, Title: "Run", Date: "2026-02-02"},
	)
	store := cache.New(cache.Options{})
	q := query.New(store, srv.Client(nil))
	prof := &fakeProfile{}
	return hbsync.New(q, prof, time.Hour), store, srv, prof
}

func observe(t *testing.T, store *cache.Store, keys ...cache.Key) {
	t.Helper()
	for _, k := range keys {
		unsub := store.Subscribe(k, func(cache.Change) {})
		t.Cleanup(unsub)
	}
}

func TestRefreshNowFetchesStaleObservedKeys(t *testing.T) {
	p, store, srv, prof := setup(t)
	observe(t, store, cache.TasksKey(), cache.TasksByDateKey("2026-02-01"), cache.ProfileKey())

	msg, ok := p.RefreshNow(context.Background())
	require.True(t, ok)
	assert.NoError(t, msg.Error)
	assert.Len(t, msg.Refreshed, 3)
	assert.Equal(t, 1, srv.Hits(apitest.RouteTasks))
	assert.Equal(t, 1, srv.Hits(apitest.RouteByDate))
	assert.Equal(t, 1, prof.calls)

	tasks, ok := cache.Read[[]model.Task](store, cache.TasksKey())
	require.True(t, ok)
	assert.Len(t, tasks, 2)
	assert.Equal(t, hbsync.RefreshIdle, p.Status().State)
	assert.False(t, p.Status().LastRefresh.IsZero())
}

func TestRefreshNowSkipsFreshKeys(t *testing.T) {
	p, store, srv, _ := setup(t)
	observe(t, store, cache.TasksKey())

	_, ok := p.RefreshNow(context.Background())
	require.True(t, ok)

	_, ok = p.RefreshNow(context.Background())
	assert.False(t, ok, "nothing is stale")
	assert.Equal(t, 1, srv.Hits(apitest.RouteTasks))

	store.InvalidateKey(cache.TasksKey())
	msg, ok := p.RefreshNow(context.Background())
	require.True(t, ok)
	assert.Equal(t, []cache.Key{cache.TasksKey()}, msg.Refreshed)
	assert.Equal(t, 2, srv.Hits(apitest.RouteTasks))
}

func TestRefreshIgnoresUnknownKeys(t *testing.T) {
	p, store, srv, _ := setup(t)
	observe(t, store, cache.Key{"tasks", "by-date"}, cache.Key{"misc"})

	assert.Empty(t, p.Stale())
	_, ok := p.RefreshNow(context.Background())
	assert.False(t, ok)
	assert.Zero(t, srv.TotalHits())
}

func TestRefreshKeepsGoingAfterFailure(t *testing.T) {
	p, store, srv, _ := setup(t)
	observe(t, store, cache.TasksKey(), cache.StreaksKey("2026-02-01"))
	srv.Fail(apitest.RouteStreaks, http.StatusInternalServerError)

	msg, ok := p.RefreshNow(context.Background())
	require.True(t, ok)
	assert.Error(t, msg.Error)
	assert.Nil(t, msg.AuthError)
	assert.Equal(t, []cache.Key{cache.StreaksKey("2026-02-01")}, msg.Failed)
	assert.Equal(t, []cache.Key{cache.TasksKey()}, msg.Refreshed)
	assert.Equal(t, hbsync.RefreshError, p.Status().State)
}

func TestAuthErrorPausesUntilResume(t *testing.T) {
	p, store, srv, _ := setup(t)
	observe(t, store, cache.TasksKey(), cache.TasksByDateKey("2026-02-01"))
	srv.Fail(apitest.RouteTasks, http.StatusUnauthorized)

	msg, ok := p.RefreshNow(context.Background())
	require.True(t, ok)
	require.NotNil(t, msg.AuthError)
	assert.Equal(t, 0, srv.Hits(apitest.RouteByDate), "cycle stops at the auth error")
	assert.Equal(t, hbsync.RefreshPaused, p.Status().State)

	_, ok = p.RefreshNow(context.Background())
	assert.False(t, ok)

	srv.Recover(apitest.RouteTasks)
	p.Resume()
	msg, ok = p.RefreshNow(context.Background())
	require.True(t, ok)
	assert.NoError(t, msg.Error)
	assert.Len(t, msg.Refreshed, 2)
}

func TestProfileErrorIsReported(t *testing.T) {
	p, store, _, prof := setup(t)
	prof.err = errors.New("offline")
	observe(t, store, cache.ProfileKey())

	msg, ok := p.RefreshNow(context.Background())
	require.True(t, ok)
	assert.Equal(t, []cache.Key{cache.ProfileKey()}, msg.Failed)
}

func TestStartDeliversResults(t *testing.T) {
	p, store, _, _ := setup(t)
	observe(t, store, cache.TasksKey())

	cmd := p.Start()
	require.NotNil(t, cmd)
	t.Cleanup(p.Stop)
	assert.Nil(t, p.Start(), "second start is a no-op")

	msg, ok := cmd().(hbsync.RefreshResultMsg)
	require.True(t, ok)
	assert.Equal(t, []cache.Key{cache.TasksKey()}, msg.Refreshed)

	store.InvalidateKey(cache.TasksKey())
	p.Refresh()
	msg, ok = p.WaitForNextResult()().(hbsync.RefreshResultMsg)
	require.True(t, ok)
	assert.Equal(t, []cache.Key{cache.TasksKey()}, msg.Refreshed)
}
