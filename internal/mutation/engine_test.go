package mutation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/api/apitest"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
)

const day = "2026-02-01"

type fixture struct {
	engine *mutation.Engine
	store  *cache.Store
	server *apitest.Server
	client *api.Client

	mu     sync.Mutex
	events []mutation.Event
}

func (f *fixture) Events() []mutation.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mutation.Event(nil), f.events...)
}

func newFixture(t *testing.T, opts mutation.Options) *fixture {
	t.Helper()

	f := &fixture{
		store:  cache.New(cache.Options{DefaultStaleTime: time.Minute}),
		server: apitest.New(t),
	}
	f.client = f.server.Client(nil)
	opts.Observer = func(e mutation.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
	}
	f.engine = mutation.New(f.store, f.client, opts)
	return f
}

// seed puts the same tasks on the server and in every cached view.
func (f *fixture) seed() {
	tasks := f.server.Seed(
		model.Task{ID: 5, Title: "Read", Date: day, Frequency: model.FrequencyDaily},
		model.Task{ID: 6, Title: "Run", Date: day, Completed: true},
		model.Task{ID: 7, Title: "Call mom"},
	)
	cache.Set(f.store, cache.TasksKey(), tasks)
	cache.Set(f.store, cache.TasksByDateKey(day), tasks[:2])
	cache.Set(f.store, cache.CalendarKey("2026-02"), map[string][]model.Task{day: tasks[:2]})
}

func (f *fixture) views(t *testing.T) []byte {
	t.Helper()
	all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	byDate, _ := cache.Read[[]model.Task](f.store, cache.TasksByDateKey(day))
	cal, _ := cache.Read[map[string][]model.Task](f.store, cache.CalendarKey("2026-02"))
	data, err := json.Marshal([]any{all, byDate, cal})
	require.NoError(t, err)
	return data
}

func taskIn(t *testing.T, list []model.Task, id int64) model.Task {
	t.Helper()
	i := model.IndexOfTask(list, id)
	require.GreaterOrEqual(t, i, 0, "task %d missing", id)
	return list[i]
}

func TestMove_SameLaneIsNoop(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()

	var writes int
	f.store.Subscribe(cache.Key{}, func(cache.Change) { writes++ })

	res, err := f.engine.Move(context.Background(), 6, true)
	require.NoError(t, err)
	assert.Equal(t, mutation.Unchanged, res.Outcome)
	assert.Zero(t, writes)
	assert.Zero(t, f.server.TotalHits())
	assert.Empty(t, f.Events())
}

func TestMove_ChangesLane(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()

	res, err := f.engine.Move(context.Background(), 5, true)
	require.NoError(t, err)
	assert.Equal(t, mutation.Applied, res.Outcome)
	assert.True(t, res.Task.Completed)
	assert.Equal(t, 1, f.server.Hits(apitest.RouteToggle))

	all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	assert.True(t, taskIn(t, all, 5).Completed)
}

func TestToggle_FailureRollsBackExactly(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusUnauthorized} {
		f := newFixture(t, mutation.Options{})
		f.seed()
		before := f.views(t)

		var resets int
		f.client.OnUnauthorized(func(*api.AuthError) { resets++ })
		f.server.Fail(apitest.RouteToggle, status)

		_, err := f.engine.Toggle(context.Background(), 5)
		require.Error(t, err)
		assert.JSONEq(t, string(before), string(f.views(t)))

		all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
		assert.False(t, taskIn(t, all, 5).Completed)

		events := f.Events()
		require.Len(t, events, 2)
		assert.Equal(t, mutation.StateOptimistic, events[0].State)
		assert.Equal(t, mutation.StateRolledBack, events[1].State)
		assert.Equal(t, events[0].ID, events[1].ID)

		if status == http.StatusUnauthorized {
			assert.True(t, api.IsAuthError(err))
			assert.Equal(t, 1, resets)
		}
	}
}

func TestMove_FailureRollsBackExactly(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()
	before := f.views(t)
	f.server.Fail(apitest.RouteToggle, http.StatusInternalServerError)

	res, err := f.engine.Move(context.Background(), 6, false)
	require.Error(t, err)
	assert.Equal(t, mutation.Applied, res.Outcome)
	assert.JSONEq(t, string(before), string(f.views(t)))
	assert.False(t, f.store.IsStale(cache.TasksKey()))

	events := f.Events()
	require.Len(t, events, 2)
	assert.Equal(t, mutation.OpMove, events[1].Op)
	assert.Equal(t, mutation.StateRolledBack, events[1].State)
}

func TestToggle_RollbackRemovesSeededEntries(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.server.Seed(model.Task{ID: 9, Title: "Solo", Date: day})
	cache.Set(f.store, cache.TasksKey(), []model.Task{{ID: 9, Title: "Solo", Date: day}})
	f.server.Fail(apitest.RouteToggle, http.StatusBadGateway)

	_, err := f.engine.Toggle(context.Background(), 9)
	require.Error(t, err)

	_, ok := f.store.Get(cache.TasksByDateKey(day))
	assert.False(t, ok, "uncached views stay uncached")
	_, ok = f.store.Get(cache.CalendarKey("2026-02"))
	assert.False(t, ok)
}

func TestToggle_TimeoutRollsBack(t *testing.T) {
	f := newFixture(t, mutation.Options{Timeout: 50 * time.Millisecond})
	f.seed()
	before := f.views(t)
	f.server.Delay(apitest.RouteToggle, time.Second)

	_, err := f.engine.Toggle(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, api.IsNetworkError(err))
	assert.JSONEq(t, string(before), string(f.views(t)))
}

func TestToggle_ConsistentAcrossViews(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()

	res, err := f.engine.Toggle(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)

	all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	byDate, _ := cache.Read[[]model.Task](f.store, cache.TasksByDateKey(day))
	cal, _ := cache.Read[map[string][]model.Task](f.store, cache.CalendarKey("2026-02"))

	want := taskIn(t, all, 5)
	assert.True(t, want.Completed)
	assert.Equal(t, model.FrequencyDaily, want.Frequency)
	assert.Equal(t, want, taskIn(t, byDate, 5))
	assert.Equal(t, want, taskIn(t, cal[day], 5))

	// Toggle settles by marking the touched views stale.
	assert.True(t, f.store.IsStale(cache.TasksKey()))
	assert.True(t, f.store.IsStale(cache.TasksByDateKey(day)))
	assert.True(t, f.store.IsStale(cache.CalendarKey("2026-02")))
}

func TestToggle_ReachesViewsOfOtherDates(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()
	// A "today" list that holds task 7 even though it has no date.
	cache.Set(f.store, cache.TasksByDateKey("2026-02-05"), []model.Task{{ID: 7, Title: "Call mom"}})

	_, err := f.engine.Toggle(context.Background(), 7)
	require.NoError(t, err)

	list, _ := cache.Read[[]model.Task](f.store, cache.TasksByDateKey("2026-02-05"))
	assert.True(t, taskIn(t, list, 7).Completed)
}

func TestToggle_FoundOutsideGlobalList(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.server.Seed(model.Task{ID: 11, Title: "Stretch", Date: day})
	cache.Set(f.store, cache.CalendarKey("2026-02"), map[string][]model.Task{
		day: {{ID: 11, Title: "Stretch", Date: day}},
	})

	res, err := f.engine.Toggle(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, mutation.Applied, res.Outcome)

	cal, _ := cache.Read[map[string][]model.Task](f.store, cache.CalendarKey("2026-02"))
	assert.True(t, cal[day][0].Completed)
	_, ok := f.store.Get(cache.TasksKey())
	assert.False(t, ok)
}

func TestToggle_LateFetchDoesNotClobber(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()
	stale, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	f.store.InvalidateKey(cache.TasksKey())

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Fetch(context.Background(), f.store, cache.TasksKey(),
			func(context.Context) ([]model.Task, error) {
				<-release
				return stale, nil
			})
	}()
	require.Eventually(t, func() bool { return f.store.InFlight(cache.TasksKey()) },
		time.Second, time.Millisecond)

	_, err := f.engine.Toggle(context.Background(), 5)
	require.NoError(t, err)

	close(release)
	<-done

	all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	assert.True(t, taskIn(t, all, 5).Completed)
}

func TestToggle_DuplicateSuppressed(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()
	release := f.server.Block(apitest.RouteToggle)

	errc := make(chan error, 1)
	go func() {
		_, err := f.engine.Toggle(context.Background(), 5)
		errc <- err
	}()
	require.Eventually(t, func() bool { return f.server.Hits(apitest.RouteToggle) == 1 },
		time.Second, time.Millisecond)

	_, err := f.engine.Toggle(context.Background(), 5)
	assert.ErrorIs(t, err, mutation.ErrInFlight)
	_, err = f.engine.Delete(context.Background(), 5)
	assert.ErrorIs(t, err, mutation.ErrInFlight)

	// Other tasks are not blocked by it.
	_, err = f.engine.Move(context.Background(), 6, true)
	assert.NoError(t, err)

	release()
	require.NoError(t, <-errc)
	assert.Equal(t, 1, f.server.Hits(apitest.RouteToggle))
}

func TestToggle_NotFoundLocally(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()

	res, err := f.engine.Toggle(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, mutation.NotFound, res.Outcome)
	assert.Zero(t, f.server.TotalHits())
}

func TestDelete_UnknownTaskIsNoop(t *testing.T) {
	f := newFixture(t, mutation.Options{})

	res, err := f.engine.Delete(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, mutation.NotFound, res.Outcome)
	assert.Zero(t, f.server.TotalHits())
	assert.Empty(t, f.store.Keys(cache.Key{}))
}

func TestDelete_RemovesEverywhereAndStaysFinal(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()

	res, err := f.engine.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Read", res.Task.Title)

	all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	byDate, _ := cache.Read[[]model.Task](f.store, cache.TasksByDateKey(day))
	cal, _ := cache.Read[map[string][]model.Task](f.store, cache.CalendarKey("2026-02"))
	assert.Equal(t, -1, model.IndexOfTask(all, 5))
	assert.Equal(t, -1, model.IndexOfTask(byDate, 5))
	assert.Equal(t, -1, model.IndexOfTask(cal[day], 5))
	assert.Len(t, all, 2)

	assert.False(t, f.store.IsStale(cache.TasksKey()))
	assert.Len(t, f.server.Tasks(), 2)
}

func TestDelete_FailureReinserts(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()
	before := f.views(t)
	f.server.Fail(apitest.RouteDelete, http.StatusInternalServerError)

	_, err := f.engine.Delete(context.Background(), 6)
	require.Error(t, err)
	assert.JSONEq(t, string(before), string(f.views(t)))
}

func TestCreate_AppendsToAllViews(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()

	task, err := f.engine.Create(context.Background(), mutation.CreateInput{Title: "  Read  ", Date: day})
	require.NoError(t, err)
	assert.Equal(t, "Read", task.Title)
	assert.False(t, task.Completed)
	assert.NotZero(t, task.ID)

	all, _ := cache.Read[[]model.Task](f.store, cache.TasksKey())
	byDate, _ := cache.Read[[]model.Task](f.store, cache.TasksByDateKey(day))
	cal, _ := cache.Read[map[string][]model.Task](f.store, cache.CalendarKey("2026-02"))
	assert.Len(t, all, 4)
	assert.Len(t, byDate, 3)
	assert.Len(t, cal[day], 3)
	assert.Equal(t, task, taskIn(t, all, task.ID))
	assert.Equal(t, task, taskIn(t, byDate, task.ID))
	assert.Equal(t, task, taskIn(t, cal[day], task.ID))

	events := f.Events()
	require.Len(t, events, 2)
	assert.Equal(t, mutation.StatePending, events[0].State)
	assert.Equal(t, mutation.StateSucceeded, events[1].State)
	assert.Equal(t, task.ID, events[1].TaskID)
}

func TestCreate_SeedsUncachedViewsAsStale(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	cache.Set(f.store, cache.TasksKey(), []model.Task{})

	task, err := f.engine.Create(context.Background(), mutation.CreateInput{Title: "Walk", Date: "2026-03-04"})
	require.NoError(t, err)

	assert.False(t, f.store.IsStale(cache.TasksKey()))

	list, ok := cache.Read[[]model.Task](f.store, cache.TasksByDateKey("2026-03-04"))
	require.True(t, ok)
	assert.Equal(t, []model.Task{task}, list)
	assert.True(t, f.store.IsStale(cache.TasksByDateKey("2026-03-04")))
	assert.True(t, f.store.IsStale(cache.CalendarKey("2026-03")))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, mutation.Options{})

	_, err := f.engine.Create(context.Background(), mutation.CreateInput{Title: "   "})
	var ve *mutation.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "title", ve.Field)

	_, err = f.engine.Create(context.Background(), mutation.CreateInput{Title: "Gym", Frequency: "hourly"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "frequency", ve.Field)

	assert.Zero(t, f.server.TotalHits())
	assert.Empty(t, f.Events())
}

func TestCreate_DropsBadDate(t *testing.T) {
	f := newFixture(t, mutation.Options{})

	task, err := f.engine.Create(context.Background(), mutation.CreateInput{
		Title:     "Gym",
		Date:      "2026/02/01",
		Frequency: "Weekly",
	})
	require.NoError(t, err)
	assert.Empty(t, task.Date)
	assert.Equal(t, model.FrequencyWeekly, task.Frequency)
	assert.Empty(t, f.store.Keys(cache.ByDatePrefix))
	assert.Empty(t, f.store.Keys(cache.CalendarPrefix))
}

func TestCreate_FailureWritesNothing(t *testing.T) {
	f := newFixture(t, mutation.Options{})
	f.seed()
	before := f.views(t)
	f.server.Fail(apitest.RouteCreate, http.StatusServiceUnavailable)

	_, err := f.engine.Create(context.Background(), mutation.CreateInput{Title: "Nap", Date: day})
	require.Error(t, err)
	assert.JSONEq(t, string(before), string(f.views(t)))

	events := f.Events()
	require.Len(t, events, 2)
	assert.Equal(t, mutation.StateFailed, events[1].State)
}
