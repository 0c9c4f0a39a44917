// Package monthview is the calendar view: a month grid and the tasks of
// the selected day.
package monthview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/calendar"
	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
)

// MonthChangedMsg is sent when the visible month changes.
type MonthChangedMsg struct {
	YearMonth string
}

// DaySelectedMsg is sent when the selected day changes.
type DaySelectedMsg struct {
	Date string
}

// Model is the calendar view component.
type Model struct {
	keys     *keys.KeyMap
	today    string
	selected string
	data     map[string][]model.Task
	dayTasks []model.Task
	loaded   bool
	err      error
	width    int
	height   int
}

// New creates a calendar model showing the month of today.
func New(k *keys.KeyMap, today string, width, height int) Model {
	return Model{
		keys:     k,
		today:    today,
		selected: today,
		width:    width,
		height:   height,
	}
}

// YearMonth returns the visible month.
func (m Model) YearMonth() string {
	return model.MonthOf(m.selected)
}

// Selected returns the selected day.
func (m Model) Selected() string {
	return m.selected
}

// SetMonth replaces the month data.
func (m *Model) SetMonth(data map[string][]model.Task) {
	m.data = data
	m.loaded = true
}

// SetDayTasks replaces the selected day's task list.
func (m *Model) SetDayTasks(tasks []model.Task, err error) {
	m.dayTasks = tasks
	m.err = err
}

// SetToday updates the current day, for sessions that cross midnight.
func (m *Model) SetToday(today string) {
	m.today = today
}

// Update handles messages for the calendar view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Left):
		return m.selectDay(m.shiftDays(-1))
	case key.Matches(keyMsg, m.keys.Right):
		return m.selectDay(m.shiftDays(1))
	case key.Matches(keyMsg, m.keys.Up):
		return m.selectDay(m.shiftDays(-7))
	case key.Matches(keyMsg, m.keys.Down):
		return m.selectDay(m.shiftDays(7))
	case key.Matches(keyMsg, m.keys.PrevMonth):
		return m.selectDay(m.shiftMonths(-1))
	case key.Matches(keyMsg, m.keys.NextMonth):
		return m.selectDay(m.shiftMonths(1))
	case key.Matches(keyMsg, m.keys.Today):
		return m.selectDay(m.today)
	}
	return m, nil
}

func (m Model) shiftDays(n int) string {
	d, err := calendar.AddDays(m.selected, n)
	if err != nil {
		return m.selected
	}
	return d
}

// shiftMonths keeps the day of month where possible, clamping to the last
// day of the target month.
func (m Model) shiftMonths(n int) string {
	ym, err := calendar.Shift(m.YearMonth(), n)
	if err != nil {
		return m.selected
	}
	first, _ := calendar.ParseMonth(ym)
	last := first.AddDate(0, 1, -1).Day()
	day, err := strconv.Atoi(m.selected[8:])
	if err != nil {
		day = 1
	}
	if day > last {
		day = last
	}
	return fmt.Sprintf("%s-%02d", ym, day)
}

// Select jumps to date. Anything but a YYYY-MM-DD date is ignored.
func (m *Model) Select(date string) tea.Cmd {
	if !model.IsDate(date) {
		return nil
	}
	next, cmd := m.selectDay(date)
	*m = next
	return cmd
}

func (m Model) selectDay(date string) (Model, tea.Cmd) {
	if date == m.selected {
		return m, nil
	}
	prevMonth := m.YearMonth()
	m.selected = date
	m.dayTasks = nil
	m.err = nil

	cmds := []tea.Cmd{func() tea.Msg { return DaySelectedMsg{Date: date} }}
	if ym := m.YearMonth(); ym != prevMonth {
		m.loaded = false
		cmds = append(cmds, func() tea.Msg { return MonthChangedMsg{YearMonth: ym} })
	}
	return m, tea.Batch(cmds...)
}

// View renders the month grid and the selected day.
func (m Model) View() string {
	g, err := calendar.Month(m.YearMonth(), m.data, m.today, m.selected)
	if err != nil {
		return theme.DimmedStyle.Render(err.Error())
	}

	var rows []string
	rows = append(rows, theme.TitleStyle.Render(g.Title))

	header := make([]string, len(calendar.Weekdays))
	for i, wd := range calendar.Weekdays {
		header[i] = theme.DayStyle(true, false, false).Foreground(theme.ColorGray).Render(wd)
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, week := range g.Cells {
		cells := make([]string, len(week))
		for i, d := range week {
			cells[i] = theme.DayStyle(d.InMonth, d.Today, d.Selected).Render(dayLabel(d))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	if !m.loaded {
		rows = append(rows, theme.HelpStyle.Render("loading month…"))
	}

	grid := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.JoinHorizontal(lipgloss.Top, grid, "   ", m.renderDay())
}

func dayLabel(d calendar.Day) string {
	mark := " "
	switch {
	case d.Total == 0:
	case d.Completed == d.Total:
		mark = "●"
	default:
		mark = "○"
	}
	return fmt.Sprintf("%2d%s", d.Number, mark)
}

func (m Model) renderDay() string {
	lines := []string{theme.TitleStyle.Render(m.selected)}
	switch {
	case m.err != nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err.Error()))
	case len(m.dayTasks) == 0:
		lines = append(lines, theme.DimmedStyle.Render("No tasks"))
	default:
		done := 0
		for _, t := range m.dayTasks {
			prefix := "○"
			line := t.Title
			if t.Completed {
				done++
				prefix = "✓"
				line = theme.DimmedStyle.Render(line)
			}
			lines = append(lines, prefix+" "+line)
		}
		lines = append(lines, "", theme.HelpStyle.Render(
			fmt.Sprintf("%d of %d done", done, len(m.dayTasks)),
		))
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the calendar dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
