// Package sync keeps the views fresh in the background: on an interval and
// on demand it refetches every observed cache key that has gone stale.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/query"
)

// RefreshState is the state of the refresher.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	RefreshRunning
	RefreshError
	RefreshPaused
)

func (s RefreshState) String() string {
	switch s {
	case RefreshIdle:
		return "idle"
	case RefreshRunning:
		return "refreshing"
	case RefreshError:
		return "error"
	case RefreshPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// RefreshStatus describes the last refresh cycle.
type RefreshStatus struct {
	State       RefreshState
	LastRefresh time.Time
	Error       error
}

// RefreshResultMsg is a tea.Msg sent when a refresh cycle completes.
type RefreshResultMsg struct {
	Refreshed []cache.Key
	Failed    []cache.Key
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the server rejects the session.
type AuthErrorMsg struct {
	Message string
}

// ProfileFetcher loads the profile key.
type ProfileFetcher interface {
	Fetch(ctx context.Context) (*model.Profile, error)
}

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = 15 * time.Second

// fetchTimeout is the maximum time allowed for a single refresh cycle.
const fetchTimeout = 30 * time.Second

// Poller refetches stale observed keys.
type Poller struct {
	queries  *query.Queries
	profile  ProfileFetcher
	interval time.Duration

	resultCh  chan RefreshResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	status  RefreshStatus
	running bool
	paused  bool
}

// New creates a Poller. profile may be nil, in which case the profile key
// is never refreshed.
func New(q *query.Queries, profile ProfileFetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		queries:   q,
		profile:   profile,
		interval:  interval,
		resultCh:  make(chan RefreshResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start returns a tea.Cmd that starts the polling goroutine and waits for
// its first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate cycle.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A cycle is already queued.
	}
	return nil
}

// Resume restarts refreshing after an auth error paused it.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	if p.status.State == RefreshPaused {
		p.status = RefreshStatus{State: RefreshIdle, LastRefresh: p.status.LastRefresh}
	}
}

// Status returns the state of the last cycle.
func (p *Poller) Status() RefreshStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.cycle()
		case <-p.triggerCh:
			p.cycle()
		}
	}
}

func (p *Poller) cycle() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	msg, ok := p.RefreshNow(ctx)
	if ok {
		p.sendResult(msg)
	}
}

// Stale returns the observed keys that need a refetch, in sorted order.
func (p *Poller) Stale() []cache.Key {
	store := p.queries.Store()
	var out []cache.Key
	for _, key := range store.Observed() {
		if !p.refreshable(key) || !store.IsStale(key) {
			continue
		}
		out = append(out, key)
	}
	return out
}

func (p *Poller) refreshable(key cache.Key) bool {
	if key.Equal(cache.ProfileKey()) {
		return p.profile != nil
	}
	return query.Handles(key)
}

// RefreshNow runs one cycle synchronously. ok is false when there was
// nothing to do or the poller is paused.
func (p *Poller) RefreshNow(ctx context.Context) (RefreshResultMsg, bool) {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return RefreshResultMsg{}, false
	}
	p.mu.Unlock()

	keys := p.Stale()
	if len(keys) == 0 {
		return RefreshResultMsg{}, false
	}

	p.setStatus(RefreshRunning, nil)

	var msg RefreshResultMsg
	for _, key := range keys {
		err := p.fetch(ctx, key)
		if err == nil {
			msg.Refreshed = append(msg.Refreshed, key)
			continue
		}

		msg.Failed = append(msg.Failed, key)
		if msg.Error == nil {
			msg.Error = err
		}

		// Detect auth errors and stop the cycle.
		if api.IsAuthError(err) {
			msg.AuthError = &AuthErrorMsg{
				Message: fmt.Sprintf("%s: session expired. Sign in again.", key),
			}
			p.mu.Lock()
			p.paused = true
			p.status = RefreshStatus{State: RefreshPaused, LastRefresh: p.status.LastRefresh, Error: err}
			p.mu.Unlock()
			return msg, true
		}
	}

	if msg.Error != nil {
		p.setStatus(RefreshError, msg.Error)
	} else {
		p.setStatus(RefreshIdle, nil)
	}
	return msg, true
}

func (p *Poller) fetch(ctx context.Context, key cache.Key) error {
	if key.Equal(cache.ProfileKey()) {
		_, err := p.profile.Fetch(ctx)
		return err
	}
	return p.queries.Refetch(ctx, key)
}

func (p *Poller) setStatus(state RefreshState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == RefreshIdle {
		p.status.LastRefresh = time.Now()
	}
}

// sendResult sends a result without blocking.
func (p *Poller) sendResult(msg RefreshResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh
// result. Call it after handling a RefreshResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
