package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api/apitest"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/query"
)

func newQueries(t *testing.T) (*query.Queries, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	srv.Seed(
		model.Task{ID: 1, Title: "Read", Date: "2026-02-01"},
		model.Task{ID: 2, Title: "Run", Date: "2026-02-01", Completed: true},
		model.Task{ID: 3, Title: "Swim", Date: "2026-03-01"},
	)
	store := cache.New(cache.Options{DefaultStaleTime: time.Minute})
	return query.New(store, srv.Client(nil)), srv
}

func TestQueries_CachesUntilStale(t *testing.T) {
	q, srv := newQueries(t)
	ctx := context.Background()

	tasks, err := q.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	_, err = q.Tasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(apitest.RouteTasks))

	q.Store().InvalidateKey(cache.TasksKey())
	_, err = q.Tasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits(apitest.RouteTasks))
}

func TestQueries_ByDateShapesAgree(t *testing.T) {
	for _, shape := range []string{apitest.ShapeArray, apitest.ShapeWrapped, apitest.ShapeDateKeys} {
		q, srv := newQueries(t)
		srv.SetByDateShape(shape)

		tasks, err := q.TasksByDate(context.Background(), "2026-02-01")
		require.NoError(t, err, shape)
		require.Len(t, tasks, 2, shape)
		assert.Equal(t, "Read", tasks[0].Title, shape)
	}
}

func TestQueries_Refetch(t *testing.T) {
	q, srv := newQueries(t)
	ctx := context.Background()

	keys := []cache.Key{
		cache.TasksKey(),
		cache.TasksByDateKey("2026-02-01"),
		cache.CalendarKey("2026-02"),
		cache.StreaksKey("2026-02-01"),
		cache.WeeklyStatsKey("2026-01-26", "2026-02-01"),
		cache.MonthlyStatsKey(2026, 2),
	}
	for _, key := range keys {
		assert.True(t, query.Handles(key), key.String())
		require.NoError(t, q.Refetch(ctx, key), key.String())
		_, ok := q.Store().Get(key)
		assert.True(t, ok, key.String())
	}

	cal, _ := cache.Read[map[string][]model.Task](q.Store(), cache.CalendarKey("2026-02"))
	assert.Len(t, cal["2026-02-01"], 2)

	monthly, _ := cache.Read[[]model.MonthlyStatsPoint](q.Store(), cache.MonthlyStatsKey(2026, 2))
	require.Len(t, monthly, 4)
	assert.Equal(t, 1.0, monthly[0].Count)

	assert.Equal(t, 1, srv.Hits(apitest.RouteMonthly))

	assert.False(t, query.Handles(cache.ProfileKey()))
	assert.Error(t, q.Refetch(ctx, cache.ProfileKey()))
}

func TestQueries_ByDateFailureYieldsEmpty(t *testing.T) {
	q, srv := newQueries(t)
	ctx := context.Background()

	list, err := q.TasksByDate(ctx, "2026-02-01")
	require.NoError(t, err)
	require.Len(t, list, 2)
	q.Store().InvalidateKey(cache.TasksByDateKey("2026-02-01"))

	srv.Fail(apitest.RouteByDate, 500)
	list, err = q.TasksByDate(ctx, "2026-02-01")
	require.NoError(t, err)
	assert.Empty(t, list)

	cached, ok := cache.Read[[]model.Task](q.Store(), cache.TasksByDateKey("2026-02-01"))
	require.True(t, ok)
	assert.Empty(t, cached)
}

func TestQueries_TasksFailureKeepsCachedValue(t *testing.T) {
	q, srv := newQueries(t)
	ctx := context.Background()

	_, err := q.Tasks(ctx)
	require.NoError(t, err)
	q.Store().InvalidateKey(cache.TasksKey())

	srv.Fail(apitest.RouteTasks, 500)
	_, err = q.Tasks(ctx)
	require.Error(t, err)

	list, ok := cache.Read[[]model.Task](q.Store(), cache.TasksKey())
	require.True(t, ok)
	assert.NotEmpty(t, list)
}
