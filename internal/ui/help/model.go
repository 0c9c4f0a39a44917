// Package help is the keyboard shortcut overlay.
package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/theme"
)

// Section is a titled group of bindings.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Sections groups the key map by the view the keys act in.
func Sections(k *keys.KeyMap) []Section {
	return []Section{
		{Title: "board", Bindings: []key.Binding{k.Up, k.Down, k.SwitchLane, k.Left, k.Right, k.Toggle, k.Open, k.Delete, k.Add}},
		{Title: "calendar", Bindings: []key.Binding{k.Left, k.Right, k.Up, k.Down, k.PrevMonth, k.NextMonth, k.Today}},
		{Title: "dashboard", Bindings: []key.Binding{k.Up, k.Down, k.Toggle}},
		{Title: "profile", Bindings: []key.Binding{k.Edit}},
		{Title: "everywhere", Bindings: []key.Binding{
			k.ViewBoard, k.ViewCalendar, k.ViewDashboard, k.ViewProfile,
			k.Refresh, k.Command, k.Help, k.Back, k.Quit,
		}},
	}
}

// Model is the help overlay view.
type Model struct {
	keys    *keys.KeyMap
	help    help.Model
	context string
	width   int
	height  int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetContext names the view the overlay was opened from; its section is
// listed first and highlighted.
func (m *Model) SetContext(view string) {
	m.context = view
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := Sections(m.keys)
	for i, s := range sections {
		if s.Title == m.context && i > 0 {
			sections[0], sections[i] = sections[i], sections[0]
			break
		}
	}

	m.help.Width = m.width - 4
	parts := []string{titleStyle.Render("Keyboard Shortcuts")}
	for _, s := range sections {
		heading := theme.DimmedStyle.Render(s.Title)
		if s.Title == m.context {
			heading = theme.TitleStyle.Render(s.Title)
		}
		parts = append(parts, heading, m.help.FullHelpView([][]key.Binding{s.Bindings}), "")
	}
	parts = append(parts, theme.HelpStyle.Render(
		"Changes show up immediately and are undone if the server rejects them.",
	))

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
