package mutation

import (
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
)

// Cached task views come in two shapes: lists (global, by-date) and
// date maps (calendar). The helpers below never modify their input.

type taskList = []model.Task
type dateMap = map[string][]model.Task

func isCalendar(key cache.Key) bool {
	return key.HasPrefix(cache.CalendarPrefix)
}

// findIn returns the task with id from the value under key.
func findIn(a cache.Accessor, key cache.Key, id int64) (model.Task, bool) {
	if isCalendar(key) {
		m, ok := cache.Read[dateMap](a, key)
		if !ok {
			return model.Task{}, false
		}
		for _, list := range m {
			if i := model.IndexOfTask(list, id); i >= 0 {
				return list[i], true
			}
		}
		return model.Task{}, false
	}

	list, ok := cache.Read[taskList](a, key)
	if !ok {
		return model.Task{}, false
	}
	if i := model.IndexOfTask(list, id); i >= 0 {
		return list[i], true
	}
	return model.Task{}, false
}

// locate searches the global list, then the by-date lists, then the
// calendar maps.
func locate(a cache.Accessor, id int64) (model.Task, bool) {
	if t, ok := findIn(a, cache.TasksKey(), id); ok {
		return t, true
	}
	for _, prefix := range []cache.Key{cache.ByDatePrefix, cache.CalendarPrefix} {
		for _, key := range a.Keys(prefix) {
			if t, ok := findIn(a, key, id); ok {
				return t, true
			}
		}
	}
	return model.Task{}, false
}

// affectedKeys lists every task view the task may live in: the global
// list, its date's list and month, and any other cached list or month
// that holds the id.
func affectedKeys(a cache.Accessor, task model.Task) []cache.Key {
	keys := []cache.Key{cache.TasksKey()}
	seen := map[string]bool{cache.TasksKey().String(): true}
	add := func(k cache.Key) {
		if !seen[k.String()] {
			seen[k.String()] = true
			keys = append(keys, k)
		}
	}

	if task.HasDate() {
		add(cache.TasksByDateKey(task.Date))
		add(cache.CalendarKey(model.MonthOf(task.Date)))
	}
	for _, prefix := range []cache.Key{cache.ByDatePrefix, cache.CalendarPrefix} {
		for _, key := range a.Keys(prefix) {
			if _, ok := findIn(a, key, task.ID); ok {
				add(key)
			}
		}
	}
	return keys
}

// mapTask returns a copy of the value under key with fn applied to the
// task with id. fn returning false removes the task. changed is false when
// the id is not there.
func mapTask(v any, id int64, fn func(model.Task) (model.Task, bool)) (out any, changed bool) {
	switch val := v.(type) {
	case taskList:
		list, ok := mapList(val, id, fn)
		return list, ok
	case dateMap:
		m := make(dateMap, len(val))
		for date, list := range val {
			next, ok := mapList(list, id, fn)
			if ok {
				changed = true
			}
			m[date] = next
		}
		return m, changed
	default:
		return v, false
	}
}

func mapList(list taskList, id int64, fn func(model.Task) (model.Task, bool)) (taskList, bool) {
	i := model.IndexOfTask(list, id)
	if i < 0 {
		return list, false
	}
	next, keep := fn(list[i])
	out := make(taskList, 0, len(list))
	out = append(out, list[:i]...)
	if keep {
		out = append(out, next)
	}
	out = append(out, list[i+1:]...)
	return out, true
}

// upsert appends task to a list, or replaces the entry with the same id.
func upsert(list taskList, task model.Task) taskList {
	out := model.CloneTasks(list)
	if i := model.IndexOfTask(out, task.ID); i >= 0 {
		out[i] = task
		return out
	}
	return append(out, task)
}

// merge overlays the server's task on the cached one. Fields the server
// left out keep their cached values.
func merge(cached, server model.Task) model.Task {
	out := server
	if out.Title == "" {
		out.Title = cached.Title
	}
	if out.Date == "" {
		out.Date = cached.Date
	}
	if out.Frequency == "" {
		out.Frequency = cached.Frequency
	}
	if out.Reminder == "" {
		out.Reminder = cached.Reminder
	}
	if out.Streak == nil {
		out.Streak = cached.Streak
	}
	return out
}

// restoreTask puts the task with id back into cur the way it was in orig,
// leaving every other row of cur as it is now. ok is false when cur and
// orig are not the same kind of view.
func restoreTask(cur, orig any, id int64) (out any, ok bool) {
	switch was := orig.(type) {
	case taskList:
		now, isList := cur.(taskList)
		if !isList {
			return cur, false
		}
		return restoreRow(now, was, id), true
	case dateMap:
		now, isMap := cur.(dateMap)
		if !isMap {
			return cur, false
		}
		m := make(dateMap, len(now)+1)
		for date, list := range now {
			m[date] = restoreRow(list, was[date], id)
		}
		for date, list := range was {
			if _, seen := m[date]; !seen && model.IndexOfTask(list, id) >= 0 {
				m[date] = restoreRow(nil, list, id)
			}
		}
		return m, true
	default:
		return cur, false
	}
}

// restoreRow makes the row for id in cur match orig: replaced in place,
// reinserted after its old predecessor, or dropped when orig lacks it.
func restoreRow(cur, orig taskList, id int64) taskList {
	i := model.IndexOfTask(orig, id)
	j := model.IndexOfTask(cur, id)
	out := model.CloneTasks(cur)

	switch {
	case i < 0 && j < 0:
		return out
	case i < 0:
		return append(out[:j], out[j+1:]...)
	case j >= 0:
		out[j] = orig[i]
		return out
	}

	pos := min(i, len(out))
	if i > 0 {
		if k := model.IndexOfTask(out, orig[i-1].ID); k >= 0 {
			pos = k + 1
		}
	}
	out = append(out, model.Task{})
	copy(out[pos+1:], out[pos:])
	out[pos] = orig[i]
	return out
}
