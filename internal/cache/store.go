// Package cache holds the client's query cache: keyed entries with a
// value, a last-updated time and a staleness threshold, plus in-flight
// fetch bookkeeping so that a late response never overwrites a newer write.
//
// A Store is created once at start-up and passed to every component that
// needs it. All reads and writes are synchronous; only Fetch waits on a
// loader.
package cache

import (
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ChangeKind says what happened to an entry.
type ChangeKind int

const (
	// Written means the entry got a new value.
	Written ChangeKind = iota
	// Invalidated means the entry was marked stale.
	Invalidated
	// Removed means the entry no longer exists.
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Written:
		return "written"
	case Invalidated:
		return "invalidated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after every mutation of an entry.
type Change struct {
	Key  Key
	Kind ChangeKind
}

// Options configures a Store.
type Options struct {
	// DefaultStaleTime applies to keys that match no StaleTimes prefix.
	DefaultStaleTime time.Duration

	// StaleTimes maps a key prefix ("tasks/by-date") to its threshold.
	// The longest matching prefix wins.
	StaleTimes map[string]time.Duration

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// DefaultStaleTimes are the thresholds used when Options.StaleTimes is nil.
func DefaultStaleTimes() map[string]time.Duration {
	return map[string]time.Duration{
		"tasks":          30 * time.Second,
		"tasks/by-date":  10 * time.Second,
		"tasks/calendar": 30 * time.Second,
		"tasks/streaks":  60 * time.Second,
		"stats":          5 * time.Minute,
		"profile":        5 * time.Minute,
	}
}

type entry struct {
	value     any
	present   bool
	updatedAt time.Time
	stale     bool
	// version is the store sequence number of the last change. It is kept
	// after removal so a fetch started before the removal cannot apply.
	version uint64
}

// flight tracks the fetch currently running for a key.
type flight struct {
	startVersion uint64
	discard      bool
	started      bool
}

type subscription struct {
	prefix Key
	fn     func(Change)
}

// Store is the query cache.
type Store struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
	flights map[string]*flight
	seq     uint64
	subs    map[int]subscription
	nextSub int
	group   singleflight.Group
}

// New creates an empty Store.
func New(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StaleTimes == nil {
		opts.StaleTimes = DefaultStaleTimes()
	}
	return &Store{
		opts:    opts,
		entries: make(map[string]*entry),
		flights: make(map[string]*flight),
		subs:    make(map[int]subscription),
	}
}

// StaleTime returns the staleness threshold for key.
func (s *Store) StaleTime(key Key) time.Duration {
	best := -1
	d := s.opts.DefaultStaleTime
	for prefix, t := range s.opts.StaleTimes {
		p := parseKey(prefix)
		if key.HasPrefix(p) && len(p) > best {
			best = len(p)
			d = t
		}
	}
	return d
}

// Get returns the raw value stored under key.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

// Put stores v under key.
func (s *Store) Put(key Key, v any) {
	s.mu.Lock()
	c := s.put(key, v)
	s.mu.Unlock()
	s.notify([]Change{c})
}

// Remove deletes the entry for key.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	c, ok := s.remove(key)
	s.mu.Unlock()
	if ok {
		s.notify([]Change{c})
	}
}

// Keys returns every present key under prefix, sorted.
func (s *Store) Keys(prefix Key) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys(prefix)
}

func (s *Store) update(key Key, fn func(cur any, ok bool) any) {
	s.mu.Lock()
	cur, ok := s.get(key)
	c := s.put(key, fn(cur, ok))
	s.mu.Unlock()
	s.notify([]Change{c})
}

// Invalidate marks every entry under prefix stale so the next Fetch runs
// its loader. Values are kept.
func (s *Store) Invalidate(prefix Key) {
	s.mu.Lock()
	changes := s.invalidate(prefix)
	s.mu.Unlock()
	s.notify(changes)
}

// InvalidateKey marks exactly key stale, leaving keys below it alone.
func (s *Store) InvalidateKey(key Key) {
	s.mu.Lock()
	c, ok := s.invalidateKey(key)
	s.mu.Unlock()
	if ok {
		s.notify([]Change{c})
	}
}

// IsStale reports whether key is absent, invalidated or older than its
// threshold.
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.fresh(key)
}

// UpdatedAt returns when key was last written.
func (s *Store) UpdatedAt(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok || !e.present {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// InFlight reports whether a fetch for key is running.
func (s *Store) InFlight(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.flights[key.String()]
	return ok
}

// dropUnstarted removes a flight that was registered by Fetch but joined a
// call that was already finishing, so no loader ever ran for it.
func (s *Store) dropUnstarted(k string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flights[k] == f && !f.started {
		delete(s.flights, k)
	}
}

// CancelInFlight marks the running fetch for key, if any, so that its
// result is not written when it arrives. The request itself keeps running;
// the next Fetch for key starts a new one.
func (s *Store) CancelInFlight(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel(key.String())
}

func (s *Store) cancel(k string) {
	if f, ok := s.flights[k]; ok {
		f.discard = true
		delete(s.flights, k)
		s.group.Forget(k)
	}
}

// Batch runs fn with exclusive access to the store. Readers never observe
// a state in which only part of fn's writes are applied. Subscribers are
// notified after fn returns, in write order.
func (s *Store) Batch(fn func(tx *Tx)) {
	tx := &Tx{s: s}
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer func() { tx.done = true }()
		fn(tx)
	}()
	s.notify(tx.changes)
}

// Clear drops every entry and abandons all running fetches. Used on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	for k := range s.flights {
		s.cancel(k)
	}
	var changes []Change
	for k, e := range s.entries {
		if e.present {
			changes = append(changes, Change{Key: parseKey(k), Kind: Removed})
		}
	}
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Key.String() < changes[j].Key.String()
	})
	s.notify(changes)
}

// Subscribe registers fn for changes to any key under prefix. The returned
// func removes the subscription. fn runs outside the store lock and may
// read or write the store.
func (s *Store) Subscribe(prefix Key, fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{prefix: append(Key(nil), prefix...), fn: fn}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Observed returns the distinct keys that currently have subscribers, in
// sorted order.
func (s *Store) Observed() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []Key
	for _, sub := range s.subs {
		k := sub.prefix.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, sub.prefix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Locked helpers. Callers hold s.mu.

func (s *Store) get(key Key) (any, bool) {
	e, ok := s.entries[key.String()]
	if !ok || !e.present {
		return nil, false
	}
	return e.value, true
}

func (s *Store) put(key Key, v any) Change {
	s.seq++
	k := key.String()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	e.value = v
	e.present = true
	e.stale = false
	e.updatedAt = s.opts.Now()
	e.version = s.seq
	return Change{Key: key, Kind: Written}
}

func (s *Store) remove(key Key) (Change, bool) {
	e, ok := s.entries[key.String()]
	if !ok || !e.present {
		return Change{}, false
	}
	s.seq++
	e.value = nil
	e.present = false
	e.stale = false
	e.version = s.seq
	return Change{Key: key, Kind: Removed}, true
}

func (s *Store) invalidate(prefix Key) []Change {
	var changes []Change
	for _, key := range s.keys(prefix) {
		if c, ok := s.invalidateKey(key); ok {
			changes = append(changes, c)
		}
	}
	return changes
}

func (s *Store) invalidateKey(key Key) (Change, bool) {
	e, ok := s.entries[key.String()]
	if !ok || !e.present || e.stale {
		return Change{}, false
	}
	e.stale = true
	return Change{Key: key, Kind: Invalidated}, true
}

func (s *Store) keys(prefix Key) []Key {
	var out []Key
	for k, e := range s.entries {
		if !e.present {
			continue
		}
		key := parseKey(k)
		if key.HasPrefix(prefix) {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *Store) fresh(key Key) bool {
	e, ok := s.entries[key.String()]
	if !ok || !e.present || e.stale {
		return false
	}
	return s.opts.Now().Sub(e.updatedAt) < s.StaleTime(key)
}

func (s *Store) versionOf(k string) uint64 {
	if e, ok := s.entries[k]; ok {
		return e.version
	}
	return 0
}

// notify delivers changes to matching subscribers.
func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}

	s.mu.Lock()
	subs := make([]subscription, 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, sub := range subs {
			if c.Key.HasPrefix(sub.prefix) {
				sub.fn(c)
			}
		}
	}
}

func logDiscard(key Key, reason string) {
	log.Printf("cache: dropping fetch result for %s: %s", key, reason)
}
