// Package profile serves the signed-in user's profile: the server copy
// through the cache, the local copy as a fallback, optimistic edits, and
// task counts computed on the client.
package profile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
)

// Remote is the profile part of the API client.
type Remote interface {
	Me(ctx context.Context) (api.ServerProfile, error)
	UpdateMe(ctx context.Context, req api.UpdateProfileRequest) (api.ServerProfile, error)
}

// Local is the durable profile copy.
type Local interface {
	GetProfile(ctx context.Context) (*model.Profile, error)
	SetProfile(ctx context.Context, p model.Profile) error
	UpdateProfile(ctx context.Context, patch model.ProfilePatch) error
}

// Service reads and edits the profile.
type Service struct {
	store   *cache.Store
	remote  Remote
	local   Local
	timeout time.Duration

	// Edits are applied one at a time so each snapshot is the state the
	// previous edit left.
	editMu sync.Mutex
}

// New creates a Service.
func New(store *cache.Store, remote Remote, local Local) *Service {
	return &Service{
		store:   store,
		remote:  remote,
		local:   local,
		timeout: 10 * time.Second,
	}
}

// Local returns the locally stored profile, or nil.
func (s *Service) Local(ctx context.Context) *model.Profile {
	p, err := s.local.GetProfile(ctx)
	if err != nil {
		log.Printf("reading local profile: %v", err)
		return nil
	}
	return p
}

// Current returns the cached server profile, falling back to the local
// copy. It never touches the network.
func (s *Service) Current(ctx context.Context) *model.Profile {
	if p, ok := cache.Read[model.Profile](s.store, cache.ProfileKey()); ok {
		return &p
	}
	return s.Local(ctx)
}

// withLocalStats attaches the locally kept stats to a server profile.
func (s *Service) withLocalStats(ctx context.Context, sp api.ServerProfile) model.Profile {
	stats := model.DefaultStats()
	if existing := s.Local(ctx); existing != nil && existing.Stats != nil {
		st := *existing.Stats
		stats = &st
	}
	return sp.ToProfile(stats)
}

// Fetch loads /users/me through the cache, merges the local stats and
// stores the result locally. On error the local copy, if any, is returned
// along with the error.
func (s *Service) Fetch(ctx context.Context) (*model.Profile, error) {
	p, err := cache.Fetch(ctx, s.store, cache.ProfileKey(), func(ctx context.Context) (model.Profile, error) {
		sp, err := s.remote.Me(ctx)
		if err != nil {
			return model.Profile{}, err
		}
		merged := s.withLocalStats(ctx, sp)
		if err := s.local.SetProfile(ctx, merged); err != nil {
			log.Printf("saving profile locally: %v", err)
		}
		return merged, nil
	})
	if err != nil {
		return s.Local(ctx), err
	}
	return &p, nil
}

// Update edits email and/or bio optimistically: the cached and local
// copies change first, the request follows, and both are restored if it
// fails. Only email and bio are sent; stats never leave the client.
func (s *Service) Update(ctx context.Context, req api.UpdateProfileRequest) (*model.Profile, error) {
	if req.Empty() {
		return s.Current(ctx), nil
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	key := cache.ProfileKey()
	patch := model.ProfilePatch{Email: req.Email, Bio: req.Bio}

	prevLocal, err := s.local.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading local profile: %w", err)
	}

	var snap cache.Snapshot
	s.store.Batch(func(tx *cache.Tx) {
		tx.CancelInFlight(key)
		snap = cache.Take(tx, key)
		if cur, ok := snap.Value.(model.Profile); ok && snap.Present {
			tx.Put(key, patch.Apply(cur))
		}
	})
	if err := s.local.UpdateProfile(ctx, patch); err != nil {
		log.Printf("updating local profile: %v", err)
	}

	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	sp, err := s.remote.UpdateMe(dctx, req)
	cancel()
	if err != nil {
		s.store.Batch(func(tx *cache.Tx) { cache.Restore(tx, snap) })
		if prevLocal != nil {
			if lerr := s.local.SetProfile(ctx, *prevLocal); lerr != nil {
				log.Printf("restoring local profile: %v", lerr)
			}
		}
		log.Printf("profile update failed, rolled back: %v", err)
		return prevLocal, err
	}

	merged := s.withLocalStats(ctx, sp)
	if err := s.local.SetProfile(ctx, merged); err != nil {
		log.Printf("saving profile locally: %v", err)
	}
	cache.Set(s.store, key, merged)
	return &merged, nil
}

// ComputeStats counts tasks by lane.
func ComputeStats(tasks []model.Task) model.ProfileStats {
	st := model.ProfileStats{TotalTasks: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			st.CompletedTasks++
		}
	}
	st.PendingTasks = st.TotalTasks - st.CompletedTasks
	return st
}

// RefreshStats recomputes the stats from the cached global task list and
// stores them on the local and cached profiles. It reports false when the
// task list is not cached.
func (s *Service) RefreshStats(ctx context.Context) (model.ProfileStats, bool) {
	tasks, ok := cache.Read[[]model.Task](s.store, cache.TasksKey())
	if !ok {
		return model.ProfileStats{}, false
	}

	st := ComputeStats(tasks)
	if err := s.local.UpdateProfile(ctx, model.ProfilePatch{Stats: &st}); err != nil {
		log.Printf("saving profile stats: %v", err)
	}

	s.store.Batch(func(tx *cache.Tx) {
		if p, ok := cache.Read[model.Profile](tx, cache.ProfileKey()); ok {
			stats := st
			p.Stats = &stats
			tx.Put(cache.ProfileKey(), p)
		}
	})
	return st, true
}
