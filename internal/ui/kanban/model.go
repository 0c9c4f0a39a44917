// Package kanban is the two-lane task board view.
package kanban

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/habitboard/internal/board"
	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
)

// ToggleRequestMsg asks for the task's completed flag to be flipped.
type ToggleRequestMsg struct {
	TaskID int64
}

// MoveRequestMsg asks for the task to be moved to the given lane.
type MoveRequestMsg struct {
	TaskID    int64
	Completed bool
}

// OpenRequestMsg asks for the task's detail view.
type OpenRequestMsg struct {
	TaskID int64
}

// DeleteRequestMsg asks for the task to be deleted.
type DeleteRequestMsg struct {
	TaskID int64
}

// AddRequestMsg asks for the new-task form.
type AddRequestMsg struct{}

// Model is the board view component.
type Model struct {
	keys     *keys.KeyMap
	tasks    []model.Task
	lanes    board.Lanes
	lane     string
	cursor   map[string]int
	selected int64
	busy     map[int64]bool
	loaded   bool
	updated  time.Time
	width    int
	height   int
}

// New creates a new board model.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   k,
		lanes:  board.Partition(nil),
		lane:   model.LanePending,
		cursor: map[string]int{model.LanePending: 0, model.LaneCompleted: 0},
		busy:   make(map[int64]bool),
		width:  width,
		height: height,
	}
}

// SetTasks replaces the board contents. The cursor follows the selected
// task if it is still on the board.
func (m *Model) SetTasks(tasks []model.Task, updated time.Time) {
	m.tasks = model.CloneTasks(tasks)
	m.lanes = board.Partition(m.tasks)
	m.loaded = true
	m.updated = updated

	if m.selected != 0 {
		if i := model.IndexOfTask(m.tasks, m.selected); i >= 0 {
			t := m.tasks[i]
			m.lane = t.Lane()
			m.cursor[m.lane] = model.IndexOfTask(m.lanes.Lane(m.lane), t.ID)
		}
	}
	for _, lane := range []string{model.LanePending, model.LaneCompleted} {
		n := len(m.lanes.Lane(lane))
		if m.cursor[lane] >= n {
			m.cursor[lane] = n - 1
		}
		if m.cursor[lane] < 0 {
			m.cursor[lane] = 0
		}
	}
	m.remember()
}

// SetBusy marks a task as having a request in flight.
func (m *Model) SetBusy(taskID int64, busy bool) {
	if busy {
		m.busy[taskID] = true
	} else {
		delete(m.busy, taskID)
	}
}

// Busy reports whether the task has a request in flight.
func (m Model) Busy(taskID int64) bool {
	return m.busy[taskID]
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	tasks := m.lanes.Lane(m.lane)
	i := m.cursor[m.lane]
	if i < 0 || i >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[i], true
}

// Lane returns the lane holding the cursor.
func (m Model) Lane() string {
	return m.lane
}

func (m *Model) remember() {
	if t, ok := m.Selected(); ok {
		m.selected = t.ID
	}
}

// Update handles messages for the board view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor[m.lane] > 0 {
			m.cursor[m.lane]--
		}
		m.remember()

	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor[m.lane] < len(m.lanes.Lane(m.lane))-1 {
			m.cursor[m.lane]++
		}
		m.remember()

	case key.Matches(keyMsg, m.keys.SwitchLane):
		m.lane = board.Neighbor(m.lane, laneStep(m.lane))
		m.remember()

	case key.Matches(keyMsg, m.keys.Left):
		return m, m.move(-1)

	case key.Matches(keyMsg, m.keys.Right):
		return m, m.move(1)

	case key.Matches(keyMsg, m.keys.Toggle):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return ToggleRequestMsg{TaskID: t.ID} }
		}

	case key.Matches(keyMsg, m.keys.Open):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return OpenRequestMsg{TaskID: t.ID} }
		}

	case key.Matches(keyMsg, m.keys.Delete):
		if t, ok := m.Selected(); ok {
			return m, func() tea.Msg { return DeleteRequestMsg{TaskID: t.ID} }
		}

	case key.Matches(keyMsg, m.keys.Add):
		return m, func() tea.Msg { return AddRequestMsg{} }
	}

	return m, nil
}

// move drops the selected card on the neighboring lane. With nothing
// selected it only shifts focus.
func (m *Model) move(dir int) tea.Cmd {
	target := board.Neighbor(m.lane, dir)
	t, ok := m.Selected()
	if !ok {
		m.lane = target
		m.remember()
		return nil
	}
	drop, ok := board.ResolveDrop(m.tasks, t.ID, target)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return MoveRequestMsg{TaskID: drop.TaskID, Completed: drop.Completed}
	}
}

func laneStep(lane string) int {
	if lane == model.LanePending {
		return 1
	}
	return -1
}

// View renders the board.
func (m Model) View() string {
	if !m.loaded {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Loading tasks…")
	}

	laneWidth := (m.width - 2) / 2
	if laneWidth < 20 {
		laneWidth = 20
	}

	columns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLane(model.LanePending, "Pending", laneWidth),
		m.renderLane(model.LaneCompleted, "Completed", laneWidth),
	)

	footer := ""
	if !m.updated.IsZero() {
		footer = theme.HelpStyle.Render("updated " + humanize.Time(m.updated))
	}
	return lipgloss.JoinVertical(lipgloss.Left, columns, footer)
}

func (m Model) renderLane(lane, title string, width int) string {
	tasks := m.lanes.Lane(lane)
	active := lane == m.lane

	inner := width - 4
	lines := []string{
		theme.LaneTitleStyle(lane).Render(fmt.Sprintf("%s (%d)", title, len(tasks))),
	}
	if len(tasks) == 0 {
		lines = append(lines, theme.DimmedStyle.Render("  nothing here"))
	}

	// Keep the cursor visible when the lane is taller than the view.
	rows := m.height - 5
	if rows < 1 {
		rows = 1
	}
	start := 0
	if c := m.cursor[lane]; c >= rows {
		start = c - rows + 1
	}
	for i := start; i < len(tasks) && i < start+rows; i++ {
		t := tasks[i]
		lines = append(lines, renderCard(t, active && i == m.cursor[lane], m.busy[t.ID], inner))
	}

	style := theme.LaneStyle
	if active {
		style = theme.ActiveLaneStyle
	}
	return style.Width(width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the board dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
