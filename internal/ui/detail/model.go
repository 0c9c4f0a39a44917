// Package detail shows one task with its streak and the other tasks of
// its day.
package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
)

// BackMsg signals the parent to navigate back to the board.
type BackMsg struct{}

// ToggleRequestMsg asks for the shown task to be toggled.
type ToggleRequestMsg struct {
	TaskID int64
}

// DeleteRequestMsg asks for the shown task to be deleted.
type DeleteRequestMsg struct {
	TaskID int64
}

// Content is what the view renders.
type Content struct {
	Task model.Task
	// Streak is zero when unknown.
	Streak int
	// SameDay are the other tasks dated the same day.
	SameDay []model.Task
	Busy    bool
}

// Model is the task detail view component.
type Model struct {
	content  *Content
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// TaskID returns the id of the shown task, or 0.
func (m Model) TaskID() int64 {
	if m.content == nil {
		return 0
	}
	return m.content.Task.ID
}

// SetContent replaces what is shown. A nil c means the task is gone. The
// scroll position is kept when the same task is re-rendered.
func (m *Model) SetContent(c *Content) {
	same := c != nil && m.content != nil && c.Task.ID == m.content.Task.ID
	m.content = c
	m.viewport.SetContent(m.renderContent())
	if !same {
		m.viewport.GotoTop()
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Toggle):
			if id := m.TaskID(); id != 0 {
				return m, func() tea.Msg { return ToggleRequestMsg{TaskID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			if id := m.TaskID(); id != 0 {
				return m, func() tea.Msg { return DeleteRequestMsg{TaskID: id} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.content == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("This task is no longer on the board")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.content == nil {
		return ""
	}
	c := m.content
	t := c.Task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(t.Title))

	badges := []string{theme.LaneTitleStyle(t.Lane()).Render(strings.ToUpper(t.Lane()))}
	if t.Frequency != "" {
		badges = append(badges, lipgloss.NewStyle().Foreground(theme.ColorCyan).Render(t.Frequency))
	}
	if c.Streak > 0 {
		badges = append(badges, theme.StreakStyle(c.Streak).Render(fmt.Sprintf("🔥 %d days", c.Streak)))
	}
	if c.Busy {
		badges = append(badges, theme.DimmedStyle.Render("saving…"))
	}
	sections = append(sections, strings.Join(badges, "  "), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-9s", label+":")), valStyle.Render(value))
	}

	sections = append(sections, row("ID", fmt.Sprintf("#%d", t.ID)))
	if t.Date != "" {
		sections = append(sections, row("Date", t.Date))
	}
	if t.Reminder != "" {
		sections = append(sections, row("Reminder", t.Reminder))
	}

	if t.HasDate() {
		sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
		separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
		sections = append(sections, "", separator, "")

		headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
		sections = append(sections, headerStyle.Render("Same day"))

		if len(c.SameDay) == 0 {
			sections = append(sections, lipgloss.NewStyle().
				Foreground(theme.ColorGray).
				Italic(true).
				Render("Nothing else on "+t.Date))
		}
		for _, other := range c.SameDay {
			mark := "○"
			if other.Completed {
				mark = "●"
			}
			sections = append(sections, theme.ListItemStyle.Render(mark+" "+other.Title))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
