// Package command is the ":" command palette.
package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/theme"
)

// CommandMsg is emitted when the user executes a command line.
type CommandMsg string

// Command describes one palette entry.
type Command struct {
	Name    string
	Args    string
	Summary string
}

// Commands are the entries the palette offers as suggestions.
var Commands = []Command{
	{Name: "board", Summary: "show the board"},
	{Name: "calendar", Args: "[YYYY-MM[-DD]]", Summary: "show a month"},
	{Name: "dashboard", Summary: "show today's habits"},
	{Name: "profile", Summary: "show your profile"},
	{Name: "new", Args: "[title]", Summary: "add a task"},
	{Name: "refresh", Summary: "reload the current view"},
	{Name: "logout", Summary: "sign out"},
	{Name: "quit", Summary: "exit"},
}

// Parse splits a command line into its lower-cased name and the rest.
func Parse(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	name, arg, _ = strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	names := make([]string, len(Commands))
	for i, c := range Commands {
		names[i] = c.Name
	}

	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(names)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		return m, func() tea.Msg { return CommandMsg(line) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	rows := []string{titleStyle.Render("Command Palette"), m.input.View(), ""}
	for _, c := range Commands {
		usage := c.Name
		if c.Args != "" {
			usage += " " + c.Args
		}
		rows = append(rows, theme.HelpStyle.Render(fmt.Sprintf("%-26s %s", usage, c.Summary)))
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
