package app

import (
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/habitboard/internal/cache"
)

// watcher subscribes to the cache keys of the visible view and coalesces
// their changes into a single pending signal.
type watcher struct {
	store  *cache.Store
	notify chan struct{}

	mu     gosync.Mutex
	unsubs map[string]func()
}

func newWatcher(store *cache.Store) *watcher {
	return &watcher{
		store:  store,
		notify: make(chan struct{}, 1),
		unsubs: make(map[string]func()),
	}
}

// watch replaces the watched set with keys.
func (w *watcher) watch(keys ...cache.Key) {
	w.mu.Lock()
	defer w.mu.Unlock()

	want := make(map[string]cache.Key, len(keys))
	for _, k := range keys {
		want[k.String()] = k
	}
	for k, unsub := range w.unsubs {
		if _, ok := want[k]; !ok {
			unsub()
			delete(w.unsubs, k)
		}
	}
	for k, key := range want {
		if _, ok := w.unsubs[k]; ok {
			continue
		}
		w.unsubs[k] = w.store.Subscribe(key, w.signal)
	}
}

func (w *watcher) signal(cache.Change) {
	select {
	case w.notify <- struct{}{}:
	default:
		// A signal is already pending.
	}
}

// wait returns a tea.Cmd that blocks until a watched key changes.
func (w *watcher) wait() tea.Cmd {
	return func() tea.Msg {
		<-w.notify
		return cacheChangedMsg{}
	}
}
