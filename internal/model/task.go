package model

import (
	"regexp"
	"strings"
)

// Frequency values accepted by the backend for recurring habits.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// DateLayout is the calendar-day format used on the wire (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// MonthLayout is the year-month format used by the calendar endpoint.
const MonthLayout = "2006-01"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsDate reports whether s looks like a YYYY-MM-DD calendar day.
func IsDate(s string) bool {
	return datePattern.MatchString(s)
}

// MonthOf returns the YYYY-MM prefix of a YYYY-MM-DD date, or "" if the
// date is malformed.
func MonthOf(date string) string {
	if !IsDate(date) {
		return ""
	}
	return date[:7]
}

// Task is a habit or one-off task as returned by the tracking service.
type Task struct {
	// ID is assigned by the server and never changes.
	ID int64 `json:"id"`

	// Title is the non-empty display name.
	Title string `json:"title"`

	// Completed places the task in the completed lane.
	Completed bool `json:"completed"`

	// Date is the calendar day (YYYY-MM-DD) the task belongs to, if any.
	Date string `json:"date,omitempty"`

	// Frequency is "daily", "weekly" or empty.
	Frequency string `json:"frequency,omitempty"`

	// Reminder is free text shown next to the habit.
	Reminder string `json:"reminder,omitempty"`

	// Streak is the number of consecutive completed days, when known.
	Streak *int `json:"streak,omitempty"`
}

// HasDate reports whether the task carries a well-formed date.
func (t Task) HasDate() bool {
	return IsDate(t.Date)
}

// Lane returns the board lane the task belongs to.
func (t Task) Lane() string {
	if t.Completed {
		return LaneCompleted
	}
	return LanePending
}

// Board lanes.
const (
	LanePending   = "pending"
	LaneCompleted = "completed"
)

// NormalizeFrequency lower-cases and trims a frequency value. The second
// return is false when the value is neither empty nor a known frequency.
func NormalizeFrequency(f string) (string, bool) {
	f = strings.ToLower(strings.TrimSpace(f))
	switch f {
	case "", FrequencyDaily, FrequencyWeekly:
		return f, true
	default:
		return f, false
	}
}

// CloneTasks returns a shallow copy of the slice that never aliases the
// original backing array. A nil input yields an empty, non-nil slice.
func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// IndexOfTask returns the position of the task with the given id, or -1.
func IndexOfTask(tasks []Task, id int64) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
