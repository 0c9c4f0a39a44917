// Package profileview shows the signed-in user's profile and edits its
// email and bio.
package profileview

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
)

// UpdateRequestMsg asks for the profile to be saved.
type UpdateRequestMsg struct {
	Request api.UpdateProfileRequest
}

// LogoutRequestMsg asks for the session to end.
type LogoutRequestMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email string
	bio   string
}

// Model is the profile view component.
type Model struct {
	keys    *keys.KeyMap
	profile *model.Profile
	form    *huh.Form
	fb      *formBindings
	err     error
	width   int
	height  int
}

// New creates a profile model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, fb: &formBindings{}, width: width, height: height}
}

// SetProfile replaces the shown profile. err is shown under it when set.
func (m *Model) SetProfile(p *model.Profile, err error) {
	m.profile = p
	m.err = err
}

// Editing reports whether the edit form is open.
func (m Model) Editing() bool {
	return m.form != nil
}

// Update handles messages for the profile view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form != nil {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.Matches(keyMsg, m.keys.Edit) && m.profile != nil {
		m.fb.email = m.profile.Email
		m.fb.bio = m.profile.Bio
		m.form = m.buildForm()
		return m, m.form.Init()
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		req := Changes(m.profile, m.fb.email, m.fb.bio)
		if req.Empty() {
			return m, nil
		}
		return m, func() tea.Msg { return UpdateRequestMsg{Request: req} }
	case huh.StateAborted:
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// Changes builds an update carrying only the fields that differ from p.
func Changes(p *model.Profile, email, bio string) api.UpdateProfileRequest {
	email = strings.TrimSpace(email)
	bio = strings.TrimSpace(bio)

	var req api.UpdateProfileRequest
	if p == nil || email != p.Email {
		req.Email = &email
	}
	if p == nil || bio != p.Bio {
		req.Bio = &bio
	}
	return req
}

// View renders the profile.
func (m Model) View() string {
	if m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			theme.TitleStyle.Render("Edit Profile") + "\n" + m.form.View(),
		)
	}
	if m.profile == nil {
		msg := "Loading profile…"
		if m.err != nil {
			msg = "Profile unavailable: " + m.err.Error()
		}
		return theme.DimmedStyle.Render(msg)
	}

	p := m.profile
	label := lipgloss.NewStyle().Width(14).Foreground(theme.ColorGray)
	row := func(name, value string) string {
		if value == "" {
			value = theme.DimmedStyle.Render("not set")
		}
		return label.Render(name) + value
	}

	since := p.CreatedAt
	if t := p.CreatedTime(); !t.IsZero() {
		since = fmt.Sprintf("%s (%s)", t.Format("January 2, 2006"), humanize.Time(t))
	}

	lines := []string{
		theme.TitleStyle.Render(p.Username),
		row("Email", p.Email),
		row("Bio", p.Bio),
		row("Member since", since),
		"",
		lipgloss.NewStyle().Bold(true).Render("Stats"),
	}

	st := model.ProfileStats{}
	if p.Stats != nil {
		st = *p.Stats
	}
	rate := "–"
	if st.TotalTasks > 0 {
		rate = fmt.Sprintf("%.0f%%", float64(st.CompletedTasks)*100/float64(st.TotalTasks))
	}
	lines = append(lines,
		row("Total", humanize.Comma(int64(st.TotalTasks))),
		row("Completed", humanize.Comma(int64(st.CompletedTasks))),
		row("Pending", humanize.Comma(int64(st.PendingTasks))),
		row("Completion", rate),
	)

	if m.err != nil {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err.Error()))
	}
	return theme.PanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) buildForm() *huh.Form {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&m.fb.email).
				Validate(ValidateEmail),
			huh.NewText().
				Title("Bio").
				Placeholder("A few words about you").
				Value(&m.fb.bio),
		),
	).WithWidth(w)
}

// ValidateEmail accepts an empty string or a single address.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// SetSize updates the profile view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
