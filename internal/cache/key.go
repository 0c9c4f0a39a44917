package cache

import (
	"fmt"
	"strings"
)

// Key names one logical cached view, e.g. ["tasks","by-date","2026-02-01"].
type Key []string

// String joins the segments with "/".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether the first segments of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both keys have the same segments.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// Last returns the final segment, or "".
func (k Key) Last() string {
	if len(k) == 0 {
		return ""
	}
	return k[len(k)-1]
}

func parseKey(s string) Key {
	if s == "" {
		return Key{}
	}
	return Key(strings.Split(s, "/"))
}

// Prefixes for the views the client caches.
var (
	TasksPrefix    = Key{"tasks"}
	ByDatePrefix   = Key{"tasks", "by-date"}
	CalendarPrefix = Key{"tasks", "calendar"}
	StreaksPrefix  = Key{"tasks", "streaks"}
	StatsPrefix    = Key{"stats"}
)

// TasksKey is the global task list.
func TasksKey() Key { return Key{"tasks"} }

// TasksByDateKey is the task list for one calendar day.
func TasksByDateKey(date string) Key { return Key{"tasks", "by-date", date} }

// CalendarKey is the date-to-tasks map for one month (YYYY-MM).
func CalendarKey(yearMonth string) Key { return Key{"tasks", "calendar", yearMonth} }

// StreaksKey is the task-id-to-streak map as of date.
func StreaksKey(date string) Key { return Key{"tasks", "streaks", date} }

// WeeklyStatsKey is the weekly completion chart for [from, to].
func WeeklyStatsKey(from, to string) Key { return Key{"stats", "weekly", from, to} }

// MonthlyStatsKey is the monthly completion chart.
func MonthlyStatsKey(year, month int) Key {
	return Key{"stats", "monthly", fmt.Sprintf("%04d-%02d", year, month)}
}

// ProfileKey is the signed-in user's profile.
func ProfileKey() Key { return Key{"profile"} }
