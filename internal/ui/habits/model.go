// Package habits is the dashboard view: today's habits with streaks and the
// completion charts.
package habits

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/dashboard"
	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
	"github.com/nhle/habitboard/internal/ui"
)

// ToggleRequestMsg asks for a habit to be checked off or reopened.
type ToggleRequestMsg struct {
	TaskID int64
}

// Model is the dashboard view component.
type Model struct {
	keys    *keys.KeyMap
	summary dashboard.Summary
	loaded  bool
	cursor  int
	width   int
	height  int
}

// New creates a dashboard model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, width: width, height: height}
}

// SetSummary replaces the dashboard contents.
func (m *Model) SetSummary(s dashboard.Summary) {
	m.summary = s
	m.loaded = true
	if m.cursor >= len(s.Habits) {
		m.cursor = len(s.Habits) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Update handles messages for the dashboard view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.summary.Habits)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Toggle):
		if m.cursor < len(m.summary.Habits) {
			id := m.summary.Habits[m.cursor].Task.ID
			return m, func() tea.Msg { return ToggleRequestMsg{TaskID: id} }
		}
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if !m.loaded {
		return theme.DimmedStyle.Render("Loading habits…")
	}

	subtitle := m.summary.Date
	if t, err := time.Parse(model.DateLayout, m.summary.Date); err == nil {
		subtitle = t.Format("Monday, January 2, 2006")
	}

	sections := []string{
		theme.TitleStyle.Render("Dashboard") + "  " + theme.HelpStyle.Render(subtitle),
		m.renderHabits(),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderWeekly(), "    ", m.renderMonthly()),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHabits() string {
	habits := m.summary.Habits
	head := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("Today's habits  %d/%d", m.summary.Done, len(habits)),
	)
	if len(habits) == 0 {
		return head + "\n" + theme.DimmedStyle.Render(
			"No habits for today. Add tasks on the board to see them here.",
		)
	}

	lines := []string{head}
	for i, h := range habits {
		lines = append(lines, renderHabit(h, i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

func renderHabit(h dashboard.Habit, selected bool) string {
	prefix := "○"
	if h.Task.Completed {
		prefix = "✓"
	}

	meta := h.Frequency()
	if h.Task.Reminder != "" {
		meta += " · " + h.Task.Reminder
	}

	streak := ""
	if h.StreakSource != dashboard.StreakNone && h.Streak > 0 {
		unit := "days"
		if h.Streak == 1 {
			unit = "day"
		}
		streak = theme.StreakStyle(h.Streak).Render(fmt.Sprintf("  🔥 %d %s", h.Streak, unit))
	}

	line := fmt.Sprintf("%s %s %s%s", prefix, h.Task.Title, theme.DimmedStyle.Render(meta), streak)
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func (m Model) renderWeekly() string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render("Weekly consistency")}
	if len(m.summary.Weekly) == 0 {
		return strings.Join(append(lines, theme.DimmedStyle.Render("no data")), "\n")
	}
	for _, p := range m.summary.Weekly {
		bar := theme.CompletionStyle(p.Completion).Render(ui.Bar(p.Completion, 100, 20))
		lines = append(lines, fmt.Sprintf("%-4s %s %3.0f%%", p.Day, bar, p.Completion))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMonthly() string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render("Monthly completion")}
	if len(m.summary.Monthly) == 0 {
		return strings.Join(append(lines, theme.DimmedStyle.Render("no data")), "\n")
	}
	peak := 0.0
	for _, p := range m.summary.Monthly {
		if p.Count > peak {
			peak = p.Count
		}
	}
	for _, p := range m.summary.Monthly {
		bar := lipgloss.NewStyle().Foreground(theme.ColorViolet).Render(ui.Bar(p.Count, peak, 20))
		lines = append(lines, fmt.Sprintf("%-4s %s %3.0f", p.Week, bar, p.Count))
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
