package monthview

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
)

func press(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestDayNavigationWithinMonth(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "2026-02-14", 80, 20)

	m, cmd := m.Update(press("l"))
	assert.Equal(t, "2026-02-15", m.Selected())
	assert.Equal(t, []tea.Msg{DaySelectedMsg{Date: "2026-02-15"}}, collect(cmd))

	m, _ = m.Update(press("j"))
	assert.Equal(t, "2026-02-22", m.Selected())
}

func TestCrossingMonthAnnouncesIt(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "2026-02-28", 80, 20)

	m, cmd := m.Update(press("l"))
	assert.Equal(t, "2026-03-01", m.Selected())
	msgs := collect(cmd)
	assert.Contains(t, msgs, MonthChangedMsg{YearMonth: "2026-03"})
	assert.Contains(t, msgs, DaySelectedMsg{Date: "2026-03-01"})
}

func TestMonthKeysClampDay(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "2026-01-31", 80, 20)

	m, _ = m.Update(press("]"))
	assert.Equal(t, "2026-02-28", m.Selected())

	m, _ = m.Update(press("["))
	assert.Equal(t, "2026-01-28", m.Selected())

	m, cmd := m.Update(press("t"))
	assert.Equal(t, "2026-01-31", m.Selected())
	assert.Equal(t, []tea.Msg{DaySelectedMsg{Date: "2026-01-31"}}, collect(cmd))
}

func TestViewShowsDayTasks(t *testing.T) {
	m := New(keys.DefaultKeyMap(), "2026-02-14", 80, 20)
	m.SetMonth(map[string][]model.Task{
		"2026-02-14": {{ID: 1, Title: "Read"}, {ID: 2, Title: "Run", Completed: true}},
	})
	m.SetDayTasks([]model.Task{{ID: 1, Title: "Read"}, {ID: 2, Title: "Run", Completed: true}}, nil)

	out := m.View()
	require.Contains(t, out, "February 2026")
	assert.Contains(t, out, "Read")
	assert.Contains(t, out, "1 of 2 done")
}
