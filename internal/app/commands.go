package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/calendar"
	"github.com/nhle/habitboard/internal/dashboard"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
	"github.com/nhle/habitboard/internal/ui/authform"
)

// cacheChangedMsg is sent when a watched cache key changed.
type cacheChangedMsg struct{}

// sessionLostMsg is sent when the server rejected the session.
type sessionLostMsg struct{}

// fetchedMsg is sent when a query for key finished.
type fetchedMsg struct {
	key cache.Key
	err error
}

// dayTasksMsg carries the tasks of the calendar's selected day.
type dayTasksMsg struct {
	date  string
	tasks []model.Task
	err   error
}

// summaryMsg carries a freshly assembled dashboard.
type summaryMsg struct {
	summary dashboard.Summary
	err     error
}

// profileMsg carries the profile after a fetch or an edit.
type profileMsg struct {
	profile *model.Profile
	err     error
}

// mutationDoneMsg is sent when a task mutation settled.
type mutationDoneMsg struct {
	op     mutation.Op
	taskID int64
	title  string
	result mutation.Result
	err    error
}

// authDoneMsg is sent when a sign-in or sign-up attempt finished.
type authDoneMsg struct {
	mode authform.Mode
	err  error
}

// loggedOutMsg is sent after the session was cleared.
type loggedOutMsg struct {
	message string
	err     error
}

// fetch returns a command that loads key through the query layer.
func (m *Model) fetch(key cache.Key) tea.Cmd {
	q := m.deps.Queries
	return func() tea.Msg {
		return fetchedMsg{key: key, err: q.Refetch(context.Background(), key)}
	}
}

func (m *Model) loadDayTasks(date string) tea.Cmd {
	q := m.deps.Queries
	data := cache.ReadOrEmpty[map[string][]model.Task](q.Store(), cache.CalendarKey(model.MonthOf(date)))
	return func() tea.Msg {
		tasks, err := calendar.DayTasks(context.Background(), q, data, date)
		return dayTasksMsg{date: date, tasks: tasks, err: err}
	}
}

func (m *Model) loadSummary() tea.Cmd {
	l := m.deps.Dashboard
	return func() tea.Msg {
		s, err := l.Load(context.Background())
		return summaryMsg{summary: s, err: err}
	}
}

func (m *Model) loadProfile() tea.Cmd {
	svc := m.deps.Profile
	return func() tea.Msg {
		ctx := context.Background()
		svc.RefreshStats(ctx)
		p, err := svc.Fetch(ctx)
		return profileMsg{profile: p, err: err}
	}
}

func (m *Model) updateProfile(req api.UpdateProfileRequest) tea.Cmd {
	svc := m.deps.Profile
	return func() tea.Msg {
		p, err := svc.Update(context.Background(), req)
		return profileMsg{profile: p, err: err}
	}
}

func (m *Model) toggleTask(taskID int64) tea.Cmd {
	e := m.deps.Engine
	return func() tea.Msg {
		res, err := e.Toggle(context.Background(), taskID)
		return mutationDoneMsg{op: mutation.OpToggle, taskID: taskID, result: res, err: err}
	}
}

func (m *Model) moveTask(taskID int64, completed bool) tea.Cmd {
	e := m.deps.Engine
	return func() tea.Msg {
		res, err := e.Move(context.Background(), taskID, completed)
		return mutationDoneMsg{op: mutation.OpMove, taskID: taskID, result: res, err: err}
	}
}

func (m *Model) deleteTask(taskID int64) tea.Cmd {
	e := m.deps.Engine
	return func() tea.Msg {
		res, err := e.Delete(context.Background(), taskID)
		return mutationDoneMsg{op: mutation.OpDelete, taskID: taskID, result: res, err: err}
	}
}

func (m *Model) createTask(in mutation.CreateInput) tea.Cmd {
	e := m.deps.Engine
	return func() tea.Msg {
		t, err := e.Create(context.Background(), in)
		return mutationDoneMsg{
			op:     mutation.OpCreate,
			taskID: t.ID,
			title:  in.Title,
			result: mutation.Result{Outcome: mutation.Applied, Task: t},
			err:    err,
		}
	}
}

func (m *Model) authenticate(sub authform.SubmitMsg) tea.Cmd {
	svc := m.deps.Auth
	return func() tea.Msg {
		var err error
		if sub.Mode == authform.ModeRegister {
			err = svc.Register(context.Background(), sub.Credentials)
		} else {
			err = svc.Login(context.Background(), sub.Credentials)
		}
		return authDoneMsg{mode: sub.Mode, err: err}
	}
}

func (m *Model) logout(message string) tea.Cmd {
	svc := m.deps.Auth
	return func() tea.Msg {
		return loggedOutMsg{message: message, err: svc.Logout(context.Background())}
	}
}

// mutationStatus describes a settled mutation for the status bar.
func mutationStatus(msg mutationDoneMsg) (string, bool) {
	var netErr *api.NetworkError
	switch {
	case msg.err == nil && msg.result.Outcome == mutation.NotFound:
		// Already gone locally; the next refresh redraws the board.
		return "", false
	case msg.err == nil:
		switch msg.op {
		case mutation.OpCreate:
			return fmt.Sprintf("Added %q.", msg.title), false
		case mutation.OpDelete:
			return fmt.Sprintf("Deleted %q.", msg.result.Task.Title), false
		default:
			return "", false
		}
	case errors.Is(msg.err, mutation.ErrInFlight):
		return "Still saving the previous change to that task.", true
	case mutation.IsValidationError(msg.err):
		return msg.err.Error(), true
	case errors.As(msg.err, &netErr) && msg.op == mutation.OpCreate:
		return "Couldn't reach the server; task not added.", true
	case errors.As(msg.err, &netErr):
		return fmt.Sprintf("Couldn't reach the server; %s undone.", msg.op), true
	default:
		return fmt.Sprintf("Couldn't %s task: %v", msg.op, msg.err), true
	}
}
