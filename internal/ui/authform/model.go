// Package authform is the sign-in and sign-up form.
package authform

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/auth"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
)

// Mode selects between signing in and creating an account.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// SubmitMsg is dispatched when the form is completed.
type SubmitMsg struct {
	Mode        Mode
	Credentials model.Credentials
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	mode     Mode
	username string
	password string
}

// Model is the Bubble Tea model for the auth form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	err    string
	width  int
	height int
}

// New creates a new auth form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{mode: ModeLogin},
		width:  width,
		height: height,
	}
}

// Start resets the form. message, if set, is shown above it (for example
// why the session ended).
func (m *Model) Start(message string) tea.Cmd {
	m.fb.password = ""
	m.err = message
	m.form = m.buildForm()
	return m.form.Init()
}

// Init initializes the form started by Start, if any.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Update handles messages for the auth form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		sub := SubmitMsg{
			Mode: m.fb.mode,
			Credentials: model.Credentials{
				Username: strings.TrimSpace(m.fb.username),
				Password: m.fb.password,
			},
		}
		m.form = nil
		return m, func() tea.Msg { return sub }
	case huh.StateAborted:
		// There is nothing behind the sign-in screen; start over.
		return m, m.Start("")
	}

	return m, cmd
}

// View renders the auth form.
func (m Model) View() string {
	if m.form == nil {
		return theme.DimmedStyle.Render("Signing in…")
	}

	parts := []string{theme.TitleStyle.Render("Welcome to habitboard")}
	if m.err != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err))
	}
	parts = append(parts, m.form.View())

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Mode]().
				Title("Account").
				Options(
					huh.NewOption("Sign in", ModeLogin),
					huh.NewOption("Create account", ModeRegister),
				).
				Value(&m.fb.mode),
			huh.NewInput().
				Title("Username").
				Value(&m.fb.username).
				Validate(validateUsername),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(m.validatePassword),
		),
	).WithWidth(w)
}

func validateUsername(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

func (m *Model) validatePassword(s string) error {
	return ValidatePassword(m.fb.mode, s)
}

// ValidatePassword applies the password rule of mode: any non-empty
// password signs in; new accounts need auth.MinPasswordLen characters.
func ValidatePassword(mode Mode, s string) error {
	if s == "" {
		return fmt.Errorf("password is required")
	}
	if mode == ModeRegister && utf8.RuneCountInString(s) < auth.MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLen)
	}
	return nil
}
