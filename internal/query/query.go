// Package query binds cache keys to the API calls that load them, so views,
// the CLI and the background refresher all fetch a key the same way.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
)

// Source is the read side of the API client.
type Source interface {
	Tasks(ctx context.Context) ([]model.Task, error)
	TasksByDate(ctx context.Context, date string) ([]model.Task, error)
	Calendar(ctx context.Context, yearMonth string) (map[string][]model.Task, error)
	Streaks(ctx context.Context, date string) (map[int64]int, error)
	WeeklyStats(ctx context.Context, from, to string) ([]model.WeeklyStatsPoint, error)
	MonthlyStats(ctx context.Context, year, month int) ([]model.MonthlyStatsPoint, error)
	Me(ctx context.Context) (api.ServerProfile, error)
}

var _ Source = (*api.Client)(nil)

// Queries fetches through a cache store.
type Queries struct {
	store *cache.Store
	src   Source
}

// New creates a Queries.
func New(store *cache.Store, src Source) *Queries {
	return &Queries{store: store, src: src}
}

// Store returns the underlying cache.
func (q *Queries) Store() *cache.Store {
	return q.store
}

// Tasks returns the global task list.
func (q *Queries) Tasks(ctx context.Context) ([]model.Task, error) {
	return cache.Fetch(ctx, q.store, cache.TasksKey(), q.src.Tasks)
}

// TasksByDate returns the tasks for one day.
func (q *Queries) TasksByDate(ctx context.Context, date string) ([]model.Task, error) {
	return cache.Fetch(ctx, q.store, cache.TasksByDateKey(date), func(ctx context.Context) ([]model.Task, error) {
		return q.src.TasksByDate(ctx, date)
	})
}

// Calendar returns the date map for a month (YYYY-MM).
func (q *Queries) Calendar(ctx context.Context, yearMonth string) (map[string][]model.Task, error) {
	return cache.Fetch(ctx, q.store, cache.CalendarKey(yearMonth), func(ctx context.Context) (map[string][]model.Task, error) {
		return q.src.Calendar(ctx, yearMonth)
	})
}

// Streaks returns per-task streaks as of date.
func (q *Queries) Streaks(ctx context.Context, date string) (map[int64]int, error) {
	return cache.Fetch(ctx, q.store, cache.StreaksKey(date), func(ctx context.Context) (map[int64]int, error) {
		return q.src.Streaks(ctx, date)
	})
}

// WeeklyStats returns the completion chart for [from, to].
func (q *Queries) WeeklyStats(ctx context.Context, from, to string) ([]model.WeeklyStatsPoint, error) {
	return cache.Fetch(ctx, q.store, cache.WeeklyStatsKey(from, to), func(ctx context.Context) ([]model.WeeklyStatsPoint, error) {
		return q.src.WeeklyStats(ctx, from, to)
	})
}

// MonthlyStats returns the per-week chart for a month.
func (q *Queries) MonthlyStats(ctx context.Context, year, month int) ([]model.MonthlyStatsPoint, error) {
	return cache.Fetch(ctx, q.store, cache.MonthlyStatsKey(year, month), func(ctx context.Context) ([]model.MonthlyStatsPoint, error) {
		return q.src.MonthlyStats(ctx, year, month)
	})
}

// Refetch loads key through the matching query. Unknown keys are an error.
// The profile key is not handled here; it belongs to the profile service,
// which merges local stats into it.
func (q *Queries) Refetch(ctx context.Context, key cache.Key) error {
	var err error
	switch {
	case key.Equal(cache.TasksKey()):
		_, err = q.Tasks(ctx)
	case key.HasPrefix(cache.ByDatePrefix) && len(key) == 3:
		_, err = q.TasksByDate(ctx, key.Last())
	case key.HasPrefix(cache.CalendarPrefix) && len(key) == 3:
		_, err = q.Calendar(ctx, key.Last())
	case key.HasPrefix(cache.StreaksPrefix) && len(key) == 3:
		_, err = q.Streaks(ctx, key.Last())
	case key.HasPrefix(cache.Key{"stats", "weekly"}) && len(key) == 4:
		_, err = q.WeeklyStats(ctx, key[2], key[3])
	case key.HasPrefix(cache.Key{"stats", "monthly"}) && len(key) == 3:
		year, month, perr := parseYearMonth(key.Last())
		if perr != nil {
			return perr
		}
		_, err = q.MonthlyStats(ctx, year, month)
	default:
		return fmt.Errorf("no query for key %s", key)
	}
	return err
}

// Handles reports whether Refetch knows key.
func Handles(key cache.Key) bool {
	switch {
	case key.Equal(cache.TasksKey()):
		return true
	case key.HasPrefix(cache.Key{"stats", "weekly"}):
		return len(key) == 4
	case key.HasPrefix(cache.ByDatePrefix), key.HasPrefix(cache.CalendarPrefix),
		key.HasPrefix(cache.StreaksPrefix), key.HasPrefix(cache.Key{"stats", "monthly"}):
		return len(key) == 3
	default:
		return false
	}
}

func parseYearMonth(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad year-month %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad year in %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad month in %q: %w", s, err)
	}
	return year, month, nil
}
