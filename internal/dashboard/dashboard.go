// Package dashboard assembles today's habits with their streaks and the
// weekly and monthly completion charts.
package dashboard

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/query"
)

// StreakSource says where a habit's streak came from.
type StreakSource int

const (
	// StreakNone means no streak is shown.
	StreakNone StreakSource = iota
	// StreakTask is the streak the task itself carried.
	StreakTask
	// StreakServer is the count from the streaks endpoint.
	StreakServer
	// StreakPlaceholder is a made-up value derived from the task id.
	StreakPlaceholder
)

// Habit is a task on the dashboard.
type Habit struct {
	Task         model.Task
	Streak       int
	StreakSource StreakSource
}

// Frequency returns the display frequency, "daily" when unset.
func (h Habit) Frequency() string {
	if h.Task.Frequency == "" {
		return model.FrequencyDaily
	}
	return h.Task.Frequency
}

// StreakFor resolves a task's streak: the task's own value first, then the
// streaks map, then the fallback policy.
func StreakFor(t model.Task, streaks map[int64]int, fallback string) (int, StreakSource) {
	if t.Streak != nil {
		return *t.Streak, StreakTask
	}
	if n, ok := streaks[t.ID]; ok {
		return n, StreakServer
	}
	if fallback == model.StreakFallbackPlaceholder {
		return int(t.ID%5) + 1, StreakPlaceholder
	}
	return 0, StreakNone
}

// Habits pairs each task with its streak.
func Habits(tasks []model.Task, streaks map[int64]int, fallback string) []Habit {
	out := make([]Habit, 0, len(tasks))
	for _, t := range tasks {
		n, src := StreakFor(t, streaks, fallback)
		out = append(out, Habit{Task: t, Streak: n, StreakSource: src})
	}
	return out
}

// Summary is everything the dashboard shows.
type Summary struct {
	Date    string
	Habits  []Habit
	Done    int
	Weekly  []model.WeeklyStatsPoint
	Monthly []model.MonthlyStatsPoint
}

// Range is the period covered by a dashboard.
type Range struct {
	Today    string
	WeekFrom string
	Year     int
	Month    int
}

// RangeAt returns today, the first day of the trailing seven-day window and
// the current month, in now's location.
func RangeAt(now time.Time) Range {
	return Range{
		Today:    now.Format(model.DateLayout),
		WeekFrom: now.AddDate(0, 0, -6).Format(model.DateLayout),
		Year:     now.Year(),
		Month:    int(now.Month()),
	}
}

// Keys are the cache keys a dashboard for r reads.
func (r Range) Keys() []cache.Key {
	return []cache.Key{
		cache.TasksByDateKey(r.Today),
		cache.StreaksKey(r.Today),
		cache.WeeklyStatsKey(r.WeekFrom, r.Today),
		cache.MonthlyStatsKey(r.Year, r.Month),
	}
}

// Loader builds summaries through the query cache.
type Loader struct {
	q        *query.Queries
	fallback string
	now      func() time.Time
}

// NewLoader creates a Loader. fallback is the streak fallback policy.
func NewLoader(q *query.Queries, fallback string) *Loader {
	return &Loader{q: q, fallback: fallback, now: time.Now}
}

// Range returns the current period.
func (l *Loader) Range() Range {
	return RangeAt(l.now())
}

// Load fetches every part of the dashboard. Parts that fail fall back to
// what the cache holds. Today's task list only fails when ctx ends (the
// client turns request failures into an empty list); that error, or an
// auth error from the streaks, is returned alongside the summary.
func (l *Loader) Load(ctx context.Context) (Summary, error) {
	r := l.Range()
	store := l.q.Store()
	var firstErr error

	tasks, err := l.q.TasksByDate(ctx, r.Today)
	if err != nil {
		tasks = cache.ReadOrEmpty[[]model.Task](store, cache.TasksByDateKey(r.Today))
		firstErr = err
	}

	streaks, err := l.q.Streaks(ctx, r.Today)
	if err != nil {
		streaks = cache.ReadOrEmpty[map[int64]int](store, cache.StreaksKey(r.Today))
		logPartial("streaks", err)
		if firstErr == nil && api.IsAuthError(err) {
			firstErr = err
		}
	}

	weekly, err := l.q.WeeklyStats(ctx, r.WeekFrom, r.Today)
	if err != nil {
		weekly = cache.ReadOrEmpty[[]model.WeeklyStatsPoint](store, cache.WeeklyStatsKey(r.WeekFrom, r.Today))
		logPartial("weekly stats", err)
	}

	monthly, err := l.q.MonthlyStats(ctx, r.Year, r.Month)
	if err != nil {
		monthly = cache.ReadOrEmpty[[]model.MonthlyStatsPoint](store, cache.MonthlyStatsKey(r.Year, r.Month))
		logPartial("monthly stats", err)
	}

	s := Summary{
		Date:    r.Today,
		Habits:  Habits(tasks, streaks, l.fallback),
		Weekly:  weekly,
		Monthly: monthly,
	}
	for _, h := range s.Habits {
		if h.Task.Completed {
			s.Done++
		}
	}
	return s, firstErr
}

func logPartial(part string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("dashboard: %s unavailable: %v", part, err)
}
