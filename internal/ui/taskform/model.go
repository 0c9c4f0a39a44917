// Package taskform is the new-task form.
package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
	"github.com/nhle/habitboard/internal/theme"
)

// SubmitMsg is dispatched when the form is completed.
type SubmitMsg struct {
	Input mutation.CreateInput
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title     string
	date      string
	frequency string
	reminder  string
}

// Model is the Bubble Tea model for the task form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the form. date pre-fills the date field and may be empty.
func (m *Model) Start(date string) tea.Cmd {
	m.fb.title = ""
	m.fb.date = date
	m.fb.frequency = ""
	m.fb.reminder = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		in := m.input()
		m.form = nil
		return m, func() tea.Msg { return SubmitMsg{Input: in} }
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

func (m Model) input() mutation.CreateInput {
	return mutation.CreateInput{
		Title:     strings.TrimSpace(m.fb.title),
		Date:      strings.TrimSpace(m.fb.date),
		Frequency: m.fb.frequency,
		Reminder:  strings.TrimSpace(m.fb.reminder),
	}
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	content := theme.TitleStyle.Render("New Task") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What do you want to keep doing?").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewInput().
				Title("Date").
				Placeholder("YYYY-MM-DD (optional)").
				Value(&m.fb.date).
				Validate(ValidateOptionalDate),
			huh.NewSelect[string]().
				Title("Frequency").
				Options(
					huh.NewOption("None", ""),
					huh.NewOption("Daily", model.FrequencyDaily),
					huh.NewOption("Weekly", model.FrequencyWeekly),
				).
				Value(&m.fb.frequency),
			huh.NewInput().
				Title("Reminder").
				Placeholder("e.g. 7:00 AM (optional)").
				Value(&m.fb.reminder),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// ValidateOptionalDate accepts an empty string or a YYYY-MM-DD date.
func ValidateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(model.DateLayout, s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
