// Package calendar lays out a month of tasks as a Monday-first grid.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/query"
)

// Weeks and DaysPerWeek size the grid. Six rows fit every month.
const (
	Weeks       = 6
	DaysPerWeek = 7
)

// Weekdays are the column headers.
var Weekdays = [DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Day is one grid cell.
type Day struct {
	Date      string
	Number    int
	InMonth   bool
	Today     bool
	Selected  bool
	Total     int
	Completed int
}

// Grid is a laid-out month.
type Grid struct {
	YearMonth string
	Title     string
	Cells     [Weeks][DaysPerWeek]Day
}

// ParseMonth parses a YYYY-MM string to the first day of that month.
func ParseMonth(yearMonth string) (time.Time, error) {
	t, err := time.Parse(model.MonthLayout, yearMonth)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", yearMonth, err)
	}
	return t, nil
}

// Month builds the grid for yearMonth. Counts come from data, keyed by
// YYYY-MM-DD; days outside the month are shown without counts.
func Month(yearMonth string, data map[string][]model.Task, today, selected string) (Grid, error) {
	first, err := ParseMonth(yearMonth)
	if err != nil {
		return Grid{}, err
	}

	g := Grid{
		YearMonth: yearMonth,
		Title:     first.Format("January 2006"),
	}

	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDate(0, 0, -offset)

	for w := 0; w < Weeks; w++ {
		for d := 0; d < DaysPerWeek; d++ {
			day := start.AddDate(0, 0, w*DaysPerWeek+d)
			date := day.Format(model.DateLayout)
			cell := Day{
				Date:     date,
				Number:   day.Day(),
				InMonth:  day.Month() == first.Month(),
				Today:    date == today,
				Selected: date == selected,
			}
			if cell.InMonth {
				for _, t := range data[date] {
					cell.Total++
					if t.Completed {
						cell.Completed++
					}
				}
			}
			g.Cells[w][d] = cell
		}
	}
	return g, nil
}

// Find returns the position of date in the grid.
func (g Grid) Find(date string) (week, day int, ok bool) {
	for w := range g.Cells {
		for d := range g.Cells[w] {
			if g.Cells[w][d].Date == date {
				return w, d, true
			}
		}
	}
	return 0, 0, false
}

// Shift moves yearMonth by delta months.
func Shift(yearMonth string, delta int) (string, error) {
	first, err := ParseMonth(yearMonth)
	if err != nil {
		return "", err
	}
	return first.AddDate(0, delta, 0).Format(model.MonthLayout), nil
}

// AddDays moves a YYYY-MM-DD date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format(model.DateLayout), nil
}

// DayTasks returns the tasks of date. The month map is used when it has the
// day; otherwise the by-date query is asked.
func DayTasks(ctx context.Context, q *query.Queries, data map[string][]model.Task, date string) ([]model.Task, error) {
	if tasks, ok := data[date]; ok && len(tasks) > 0 {
		return model.CloneTasks(tasks), nil
	}
	return q.TasksByDate(ctx, date)
}
