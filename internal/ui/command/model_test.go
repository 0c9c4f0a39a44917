package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterEmitsTrimmedCommand(t *testing.T) {
	m := New(60, 10)
	for _, r := range "  refresh " {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg("refresh"), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "empty input does nothing")
}

func TestParse(t *testing.T) {
	tests := []struct {
		line, name, arg string
	}{
		{"board", "board", ""},
		{"  Calendar 2026-03 ", "calendar", "2026-03"},
		{"new Drink water  daily", "new", "Drink water  daily"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, arg := Parse(tt.line)
		assert.Equal(t, tt.name, name, tt.line)
		assert.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestViewListsUsage(t *testing.T) {
	view := New(80, 20).View()
	assert.Contains(t, view, "calendar [YYYY-MM[-DD]]")
	assert.Contains(t, view, "reload the current view")
}
