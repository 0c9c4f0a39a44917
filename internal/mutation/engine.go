// Package mutation applies task changes optimistically across every cached
// view of a task, sends them to the server, and then either merges the
// server's answer or restores the views exactly as they were.
package mutation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
)

// DefaultTimeout bounds the request of a single mutation.
const DefaultTimeout = 10 * time.Second

// TaskAPI is the part of the API client the engine needs.
type TaskAPI interface {
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (model.Task, error)
	ToggleTask(ctx context.Context, id int64) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// Options configures an Engine.
type Options struct {
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Observer, when set, receives every state change. It is called on the
	// goroutine running the mutation.
	Observer func(Event)
}

// Engine runs task mutations against a cache store.
type Engine struct {
	store   *cache.Store
	api     TaskAPI
	timeout time.Duration
	observe func(Event)

	mu   sync.Mutex
	busy map[int64]bool
}

// New creates an Engine.
func New(store *cache.Store, client TaskAPI, opts Options) *Engine {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	observe := opts.Observer
	if observe == nil {
		observe = func(Event) {}
	}
	return &Engine{
		store:   store,
		api:     client,
		timeout: timeout,
		observe: observe,
		busy:    make(map[int64]bool),
	}
}

// CreateInput is the user's input for a new task.
type CreateInput struct {
	Title     string
	Date      string
	Frequency string
	Reminder  string
}

// Create sends a new task to the server and, once it has an id, appends it
// to the global list and to its date's list and month. Views that were not
// cached are seeded with just the new task and marked stale.
func (e *Engine) Create(ctx context.Context, in CreateInput) (model.Task, error) {
	req, err := validateCreate(in)
	if err != nil {
		return model.Task{}, err
	}

	id := uuid.New()
	e.observe(Event{ID: id, Op: OpCreate, State: StatePending})

	dctx, cancel := context.WithTimeout(ctx, e.timeout)
	created, err := e.api.CreateTask(dctx, req)
	cancel()
	if err != nil {
		log.Printf("create task %q failed: %v", req.Title, err)
		e.observe(Event{ID: id, Op: OpCreate, State: StateFailed, Err: err})
		return model.Task{}, err
	}

	// The server may echo fewer fields than it stored.
	created = merge(model.Task{
		Title:     req.Title,
		Date:      req.Date,
		Frequency: req.Frequency,
		Reminder:  req.Reminder,
	}, created)

	keys := []cache.Key{cache.TasksKey()}
	if created.HasDate() {
		keys = append(keys,
			cache.TasksByDateKey(created.Date),
			cache.CalendarKey(model.MonthOf(created.Date)),
		)
	}

	e.store.Batch(func(tx *cache.Tx) {
		for _, key := range keys {
			tx.CancelInFlight(key)
			_, existed := tx.Get(key)

			if isCalendar(key) {
				cache.Write(tx, key, func(m dateMap) dateMap {
					out := make(dateMap, len(m)+1)
					for d, list := range m {
						out[d] = list
					}
					out[created.Date] = upsert(m[created.Date], created)
					return out
				})
			} else {
				cache.Write(tx, key, func(list taskList) taskList {
					return upsert(list, created)
				})
			}

			if !existed {
				tx.InvalidateKey(key)
			}
		}
	})

	e.observe(Event{ID: id, Op: OpCreate, TaskID: created.ID, State: StateSucceeded, Task: created})
	return created, nil
}

func validateCreate(in CreateInput) (api.CreateTaskRequest, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return api.CreateTaskRequest{}, &ValidationError{Field: "title", Message: "must not be empty"}
	}

	freq, ok := model.NormalizeFrequency(in.Frequency)
	if !ok {
		return api.CreateTaskRequest{}, &ValidationError{
			Field:   "frequency",
			Message: fmt.Sprintf("%q is not %s or %s", in.Frequency, model.FrequencyDaily, model.FrequencyWeekly),
		}
	}

	date := strings.TrimSpace(in.Date)
	if !model.IsDate(date) {
		date = ""
	}

	return api.CreateTaskRequest{
		Title:     title,
		Date:      date,
		Frequency: freq,
		Reminder:  strings.TrimSpace(in.Reminder),
	}, nil
}

// Toggle flips the task's completed flag.
func (e *Engine) Toggle(ctx context.Context, taskID int64) (Result, error) {
	return e.run(ctx, OpToggle, taskID, func(t model.Task) (model.Task, bool, bool) {
		t.Completed = !t.Completed
		return t, true, true
	})
}

// Move sets the task's completed flag to completed. Moving a task into the
// lane it is already in does nothing.
func (e *Engine) Move(ctx context.Context, taskID int64, completed bool) (Result, error) {
	return e.run(ctx, OpMove, taskID, func(t model.Task) (model.Task, bool, bool) {
		if t.Completed == completed {
			return t, true, false
		}
		t.Completed = completed
		return t, true, true
	})
}

// Delete removes the task from every cached view.
func (e *Engine) Delete(ctx context.Context, taskID int64) (Result, error) {
	return e.run(ctx, OpDelete, taskID, func(t model.Task) (model.Task, bool, bool) {
		return t, false, true
	})
}

// change computes the optimistic task. keep is false to remove the task;
// changed is false when there is nothing to do.
type change func(model.Task) (next model.Task, keep bool, changed bool)

func (e *Engine) acquire(taskID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[taskID] {
		return false
	}
	e.busy[taskID] = true
	return true
}

func (e *Engine) release(taskID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, taskID)
}

// run is the protocol shared by toggle, move and delete:
//  1. cancel running fetches of every affected key,
//  2. snapshot and apply the guess in one batch,
//  3. send the request,
//  4. merge the answer, or restore the task's rows on any error.
func (e *Engine) run(ctx context.Context, op Op, taskID int64, fn change) (Result, error) {
	if !e.acquire(taskID) {
		return Result{}, ErrInFlight
	}
	defer e.release(taskID)

	var (
		current   model.Task
		outcome   = Applied
		keys      []cache.Key
		snapshots []cache.Snapshot
	)

	e.store.Batch(func(tx *cache.Tx) {
		t, ok := locate(tx, taskID)
		if !ok {
			outcome = NotFound
			return
		}
		current = t

		if _, _, changed := fn(t); !changed {
			outcome = Unchanged
			return
		}

		keys = affectedKeys(tx, t)
		for _, key := range keys {
			tx.CancelInFlight(key)
		}
		for _, key := range keys {
			snap := cache.Take(tx, key)
			if !snap.Present {
				continue
			}
			snapshots = append(snapshots, snap)
			if next, changed := mapTask(snap.Value, taskID, fn.apply); changed {
				tx.Put(key, next)
			}
		}
	})

	if outcome != Applied {
		return Result{Outcome: outcome, Task: current}, nil
	}

	id := uuid.New()
	e.observe(Event{ID: id, Op: op, TaskID: taskID, State: StateOptimistic})

	server, err := e.dispatch(ctx, op, taskID)
	if err != nil {
		e.rollback(taskID, snapshots)
		log.Printf("%s task %d failed, rolled back %d views: %v", op, taskID, len(snapshots), err)
		e.observe(Event{ID: id, Op: op, TaskID: taskID, State: StateRolledBack, Err: err})
		return Result{Outcome: Applied, Task: current}, err
	}

	if op == OpDelete {
		e.observe(Event{ID: id, Op: op, TaskID: taskID, State: StateSucceeded, Task: current})
		return Result{Outcome: Applied, Task: current}, nil
	}

	confirmed := e.reconcile(keys, current, server)
	e.observe(Event{ID: id, Op: op, TaskID: taskID, State: StateSucceeded, Task: confirmed})
	return Result{Outcome: Applied, Task: confirmed}, nil
}

// rollback returns the task's own rows to their snapshot state. Other
// rows, which concurrent mutations of other tasks may have settled since,
// are left alone, and so is each view's staleness.
func (e *Engine) rollback(taskID int64, snapshots []cache.Snapshot) {
	e.store.Batch(func(tx *cache.Tx) {
		for _, snap := range snapshots {
			cur, ok := tx.Get(snap.Key)
			if !ok {
				continue
			}
			next, ok := restoreTask(cur, snap.Value, taskID)
			if !ok {
				continue
			}
			stale := tx.IsStale(snap.Key)
			tx.Put(snap.Key, next)
			if stale {
				tx.InvalidateKey(snap.Key)
			}
		}
	})
}

func (fn change) apply(t model.Task) (model.Task, bool) {
	next, keep, _ := fn(t)
	return next, keep
}

// dispatch sends the request for op. Move has no endpoint of its own: the
// no-op guard has already ruled out the unchanged case, so a toggle gets
// the task to the target lane.
func (e *Engine) dispatch(ctx context.Context, op Op, taskID int64) (model.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch op {
	case OpDelete:
		return model.Task{}, e.api.DeleteTask(ctx, taskID)
	default:
		return e.api.ToggleTask(ctx, taskID)
	}
}

// reconcile writes the server's task into every affected view that holds
// the id, then marks those views stale so a later refresh can correct
// anything the guess could not reach.
func (e *Engine) reconcile(keys []cache.Key, current, server model.Task) model.Task {
	confirmed := merge(current, server)
	if server.ID == 0 {
		// Empty body: keep the optimistic state.
		confirmed = current
		confirmed.Completed = !current.Completed
	}

	e.store.Batch(func(tx *cache.Tx) {
		for _, key := range keys {
			v, ok := tx.Get(key)
			if !ok {
				continue
			}
			if server.ID != 0 {
				next, changed := mapTask(v, confirmed.ID, func(cached model.Task) (model.Task, bool) {
					return merge(cached, server), true
				})
				if changed {
					tx.Put(key, next)
				}
			}
			tx.InvalidateKey(key)
		}
		tx.Invalidate(cache.StreaksPrefix)
	})
	return confirmed
}
