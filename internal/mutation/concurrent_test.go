package mutation_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
)

// scriptedTasks is a TaskAPI whose calls can be held and failed per task.
// Create is scripted under id 0.
type scriptedTasks struct {
	mu      sync.Mutex
	tasks   map[int64]model.Task
	nextID  int64
	gates   map[int64]chan struct{}
	waiting map[int64]bool
	fail    map[int64]error
}

func newScriptedTasks(tasks ...model.Task) *scriptedTasks {
	s := &scriptedTasks{
		tasks:   make(map[int64]model.Task),
		nextID:  100,
		gates:   make(map[int64]chan struct{}),
		waiting: make(map[int64]bool),
		fail:    make(map[int64]error),
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

// Hold makes calls for id wait until the returned func is called. If fail
// is set, the held call then returns it.
func (s *scriptedTasks) Hold(id int64, fail error) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gates[id] = gate
	s.fail[id] = fail
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *scriptedTasks) Waiting(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting[id]
}

func (s *scriptedTasks) wait(ctx context.Context, id int64) error {
	s.mu.Lock()
	gate := s.gates[id]
	s.waiting[id] = gate != nil
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting[id] = false
	return s.fail[id]
}

func (s *scriptedTasks) CreateTask(ctx context.Context, req api.CreateTaskRequest) (model.Task, error) {
	if err := s.wait(ctx, 0); err != nil {
		return model.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := model.Task{ID: s.nextID, Title: req.Title, Date: req.Date, Frequency: req.Frequency}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *scriptedTasks) ToggleTask(ctx context.Context, id int64) (model.Task, error) {
	if err := s.wait(ctx, id); err != nil {
		return model.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Completed = !t.Completed
	s.tasks[id] = t
	return t, nil
}

func (s *scriptedTasks) DeleteTask(ctx context.Context, id int64) error {
	if err := s.wait(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func scriptedFixture(t *testing.T) (*mutation.Engine, *cache.Store, *scriptedTasks) {
	t.Helper()
	tasks := []model.Task{
		{ID: 5, Title: "Read", Date: day, Frequency: model.FrequencyDaily},
		{ID: 6, Title: "Run", Date: day, Completed: true},
		{ID: 7, Title: "Call mom"},
	}
	store := cache.New(cache.Options{DefaultStaleTime: time.Minute})
	cache.Set(store, cache.TasksKey(), model.CloneTasks(tasks))
	cache.Set(store, cache.TasksByDateKey(day), model.CloneTasks(tasks[:2]))
	cache.Set(store, cache.CalendarKey("2026-02"), map[string][]model.Task{day: model.CloneTasks(tasks[:2])})

	remote := newScriptedTasks(tasks...)
	return mutation.New(store, remote, mutation.Options{}), store, remote
}

var errUnavailable = &api.StatusError{Status: http.StatusServiceUnavailable, Method: http.MethodPatch, Path: "/tasks"}

func TestToggle_FailureKeepsOtherTasksSettled(t *testing.T) {
	engine, store, remote := scriptedFixture(t)
	release := remote.Hold(5, errUnavailable)

	errc := make(chan error, 1)
	go func() {
		_, err := engine.Toggle(context.Background(), 5)
		errc <- err
	}()
	require.Eventually(t, func() bool { return remote.Waiting(5) }, time.Second, time.Millisecond)

	res, err := engine.Toggle(context.Background(), 6)
	require.NoError(t, err)
	assert.False(t, res.Task.Completed)

	release()
	require.ErrorIs(t, <-errc, errUnavailable)

	all, _ := cache.Read[[]model.Task](store, cache.TasksKey())
	byDate, _ := cache.Read[[]model.Task](store, cache.TasksByDateKey(day))
	cal, _ := cache.Read[map[string][]model.Task](store, cache.CalendarKey("2026-02"))

	for name, list := range map[string][]model.Task{"all": all, "by-date": byDate, "calendar": cal[day]} {
		assert.False(t, taskIn(t, list, 5).Completed, name)
		assert.False(t, taskIn(t, list, 6).Completed, "%s keeps the confirmed toggle", name)
		assert.Equal(t, int64(5), list[0].ID, "%s keeps the order", name)
	}
	assert.True(t, store.IsStale(cache.TasksKey()), "views settled by the other toggle stay stale")
	assert.True(t, store.IsStale(cache.TasksByDateKey(day)))
	assert.True(t, store.IsStale(cache.CalendarKey("2026-02")))
}

func TestMove_FailureAfterConcurrentToggle(t *testing.T) {
	engine, store, remote := scriptedFixture(t)
	release := remote.Hold(5, errUnavailable)

	errc := make(chan error, 1)
	go func() {
		_, err := engine.Move(context.Background(), 5, true)
		errc <- err
	}()
	require.Eventually(t, func() bool { return remote.Waiting(5) }, time.Second, time.Millisecond)

	_, err := engine.Toggle(context.Background(), 7)
	require.NoError(t, err)

	release()
	require.Error(t, <-errc)

	all, _ := cache.Read[[]model.Task](store, cache.TasksKey())
	assert.Equal(t, []int64{5, 6, 7}, ids(all))
	assert.False(t, taskIn(t, all, 5).Completed)
	assert.True(t, taskIn(t, all, 7).Completed)
}

func TestDelete_FailureReinsertsBesideConcurrentChanges(t *testing.T) {
	engine, store, remote := scriptedFixture(t)
	release := remote.Hold(5, errUnavailable)

	errc := make(chan error, 1)
	go func() {
		_, err := engine.Delete(context.Background(), 5)
		errc <- err
	}()
	require.Eventually(t, func() bool { return remote.Waiting(5) }, time.Second, time.Millisecond)

	_, err := engine.Delete(context.Background(), 6)
	require.NoError(t, err)

	release()
	require.Error(t, <-errc)

	all, _ := cache.Read[[]model.Task](store, cache.TasksKey())
	cal, _ := cache.Read[map[string][]model.Task](store, cache.CalendarKey("2026-02"))
	assert.Equal(t, []int64{5, 7}, ids(all))
	assert.Equal(t, []int64{5}, ids(cal[day]))
}

func TestCreate_FailureAfterConcurrentToggle(t *testing.T) {
	engine, store, remote := scriptedFixture(t)
	release := remote.Hold(0, errUnavailable)

	errc := make(chan error, 1)
	go func() {
		_, err := engine.Create(context.Background(), mutation.CreateInput{Title: "Nap", Date: day})
		errc <- err
	}()
	require.Eventually(t, func() bool { return remote.Waiting(0) }, time.Second, time.Millisecond)

	_, err := engine.Toggle(context.Background(), 5)
	require.NoError(t, err)

	release()
	require.Error(t, <-errc)

	byDate, _ := cache.Read[[]model.Task](store, cache.TasksByDateKey(day))
	assert.Equal(t, []int64{5, 6}, ids(byDate))
	assert.True(t, taskIn(t, byDate, 5).Completed)
}

func ids(list []model.Task) []int64 {
	out := make([]int64, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}
