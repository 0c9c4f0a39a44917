package cache

import (
	"context"
	"fmt"
	"reflect"
)

// Accessor is implemented by *Store and by *Tx inside Batch, so the typed
// helpers below work in both places.
type Accessor interface {
	Get(key Key) (any, bool)
	Put(key Key, v any)
	Remove(key Key)
	Keys(prefix Key) []Key
	update(key Key, fn func(cur any, ok bool) any)
}

var (
	_ Accessor = (*Store)(nil)
	_ Accessor = (*Tx)(nil)
)

// Empty returns the empty default for T: an empty non-nil slice or map
// for those kinds, the zero value otherwise.
func Empty[T any]() T {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	switch t.Kind() {
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0).Interface().(T)
	case reflect.Map:
		return reflect.MakeMap(t).Interface().(T)
	default:
		return zero
	}
}

// Read returns the value under key when it is present and of type T.
func Read[T any](a Accessor, key Key) (T, bool) {
	v, ok := a.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// ReadOrEmpty is Read with the empty default for absent entries.
func ReadOrEmpty[T any](a Accessor, key Key) T {
	if v, ok := Read[T](a, key); ok {
		return v
	}
	return Empty[T]()
}

// Write replaces the value under key with fn(current). An absent entry, or
// one holding another type, hands fn the empty default. fn must not modify
// its argument in place; it returns the new value.
func Write[T any](a Accessor, key Key, fn func(T) T) T {
	var out T
	a.update(key, func(cur any, ok bool) any {
		v, isT := cur.(T)
		if !ok || !isT {
			v = Empty[T]()
		}
		out = fn(v)
		return out
	})
	return out
}

// Set stores v under key.
func Set[T any](a Accessor, key Key, v T) {
	a.Put(key, v)
}

// Snapshot is the saved state of one key, including whether it existed.
type Snapshot struct {
	Key     Key
	Value   any
	Present bool
}

// Take records the current state of key.
func Take(a Accessor, key Key) Snapshot {
	v, ok := a.Get(key)
	return Snapshot{Key: key, Value: v, Present: ok}
}

// Restore puts key back to the recorded state. A key that did not exist
// when the snapshot was taken is removed.
func Restore(a Accessor, snap Snapshot) {
	if snap.Present {
		a.Put(snap.Key, snap.Value)
		return
	}
	a.Remove(snap.Key)
}

// Fetch returns the cached value for key when it is fresh. Otherwise it
// runs loader, joining a fetch already running for key instead of starting
// a second one, and writes the result unless the key was written, removed
// or cancelled after the fetch began. The loader's result is returned
// either way.
func Fetch[T any](ctx context.Context, s *Store, key Key, loader func(context.Context) (T, error)) (T, error) {
	k := key.String()

	s.mu.Lock()
	if s.fresh(key) {
		if v, ok := s.entries[k].value.(T); ok {
			s.mu.Unlock()
			return v, nil
		}
	}
	// Register before the call starts so a CancelInFlight issued while the
	// call is being scheduled still reaches it.
	f, running := s.flights[k]
	if !running {
		f = &flight{startVersion: s.versionOf(k)}
		s.flights[k] = f
	}
	s.mu.Unlock()

	ch := s.group.DoChan(k, func() (any, error) {
		s.mu.Lock()
		f := f
		if f.started || (s.flights[k] != f && !f.discard) {
			// The flight this caller found finished before the call began.
			f = &flight{startVersion: s.versionOf(k)}
			s.flights[k] = f
		}
		f.started = true
		s.mu.Unlock()

		// The call is shared by every joined caller, so it must not die with
		// the first caller's context. The API client applies its own timeout.
		v, err := loader(context.WithoutCancel(ctx))

		var changes []Change
		s.mu.Lock()
		if s.flights[k] == f {
			delete(s.flights, k)
		}
		switch {
		case err != nil:
		case f.discard:
			logDiscard(key, "cancelled")
		case s.versionOf(k) != f.startVersion:
			logDiscard(key, "superseded by a newer write")
		default:
			changes = append(changes, s.put(key, v))
		}
		s.mu.Unlock()
		s.notify(changes)

		return v, err
	})

	select {
	case <-ctx.Done():
		go func() {
			<-ch
			s.dropUnstarted(k, f)
		}()
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		s.dropUnstarted(k, f)
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("cache: %s holds %T, not %T", key, res.Val, zero)
		}
		return v, nil
	}
}
