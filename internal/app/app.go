// Package app is the root Bubble Tea model: view routing, the cache
// subscriptions of the visible view, and the session lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/auth"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/dashboard"
	"github.com/nhle/habitboard/internal/keys"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/mutation"
	"github.com/nhle/habitboard/internal/profile"
	"github.com/nhle/habitboard/internal/query"
	appsync "github.com/nhle/habitboard/internal/sync"
	"github.com/nhle/habitboard/internal/ui"
	"github.com/nhle/habitboard/internal/ui/authform"
	"github.com/nhle/habitboard/internal/ui/command"
	"github.com/nhle/habitboard/internal/ui/detail"
	"github.com/nhle/habitboard/internal/ui/habits"
	helpview "github.com/nhle/habitboard/internal/ui/help"
	"github.com/nhle/habitboard/internal/ui/kanban"
	"github.com/nhle/habitboard/internal/ui/monthview"
	"github.com/nhle/habitboard/internal/ui/profileview"
	"github.com/nhle/habitboard/internal/ui/taskform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewBoard ViewState = iota
	ViewCalendar
	ViewDashboard
	ViewProfile
	ViewLogin
	ViewHelp
	ViewCommand
	ViewTaskCreate
	ViewDetail
)

// tabNames label the switchable views, in ViewState order.
var tabNames = []string{"board", "calendar", "dashboard", "profile"}

// Settings persists small UI preferences between runs.
type Settings interface {
	Setting(ctx context.Context, key string) string
	SaveSetting(ctx context.Context, key, value string) error
}

// settingView remembers the last main view.
const settingView = "ui.view"

// Deps are the services the UI drives. All of them share one cache store.
type Deps struct {
	Client    *api.Client
	Store     *cache.Store
	Queries   *query.Queries
	Engine    *mutation.Engine
	Profile   *profile.Service
	Auth      *auth.Service
	Dashboard *dashboard.Loader
	Poller    *appsync.Poller
	Settings  Settings

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Model is the root Bubble Tea model.
type Model struct {
	deps         Deps
	keys         *keys.KeyMap
	layout       ui.Layout
	currentView  ViewState
	previousView ViewState
	lastTab      ViewState

	board       kanban.Model
	detailView  detail.Model
	detailID    int64
	month       monthview.Model
	habitsView  habits.Model
	profileView profileview.Model
	authForm    authform.Model
	taskForm    taskform.Model
	helpView    helpview.Model
	commandView command.Model

	watch       *watcher
	sessionLost chan struct{}
	ready       bool
	status      string
	statusErr   bool
}

// New creates the root model. The session-reset hook is installed on the
// API client here, so only one Model should exist per client.
func New(deps Deps) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	k := keys.DefaultKeyMap()
	today := deps.Now().Format(model.DateLayout)

	m := Model{
		deps:        deps,
		keys:        k,
		board:       kanban.New(k, 80, 24),
		detailView:  detail.New(k, 80, 24),
		month:       monthview.New(k, today, 80, 24),
		habitsView:  habits.New(k, 80, 24),
		profileView: profileview.New(k, 80, 24),
		authForm:    authform.New(80, 24),
		taskForm:    taskform.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		watch:       newWatcher(deps.Store),
		sessionLost: make(chan struct{}, 1),
	}

	lost := m.sessionLost
	deps.Client.OnUnauthorized(func(*api.AuthError) {
		select {
		case lost <- struct{}{}:
		default:
		}
	})

	if deps.Auth.SignedIn() {
		m.currentView = m.savedTab()
		m.lastTab = m.currentView
	} else {
		m.currentView = ViewLogin
		m.authForm.Start("")
	}
	return m
}

// Init starts the refresher and loads the first view.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.watch.wait(),
		m.waitSessionLost(),
		m.deps.Poller.Start(),
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.authForm.Init())
	} else {
		m.watchView(m.currentView)
		cmds = append(cmds, m.loadView(m.currentView))
	}
	return tea.Batch(cmds...)
}

func (m Model) waitSessionLost() tea.Cmd {
	ch := m.sessionLost
	return func() tea.Msg {
		<-ch
		return sessionLostMsg{}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.board.SetSize(w, h)
		m.detailView.SetSize(w, h)
		m.month.SetSize(w, h)
		m.habitsView.SetSize(w, h)
		m.profileView.SetSize(w, h)
		m.authForm.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case cacheChangedMsg:
		cmd := tea.Batch(m.watch.wait(), m.syncView())
		return m, cmd

	case fetchedMsg:
		if msg.err != nil && !api.IsAuthError(msg.err) {
			m.setError(fmt.Sprintf("Couldn't load %s: %v", msg.key, msg.err))
		}
		cmd := m.syncView()
		return m, cmd

	case dayTasksMsg:
		if msg.date == m.month.Selected() {
			m.month.SetDayTasks(msg.tasks, msg.err)
		}
		return m, nil

	case summaryMsg:
		m.habitsView.SetSummary(msg.summary)
		if msg.err != nil && !api.IsAuthError(msg.err) {
			m.setError(fmt.Sprintf("Showing saved habits: %v", msg.err))
		}
		return m, nil

	case profileMsg:
		m.profileView.SetProfile(m.withStats(msg.profile), msg.err)
		return m, nil

	case mutationDoneMsg:
		m.board.SetBusy(msg.taskID, false)
		if text, isErr := mutationStatus(msg); text != "" {
			if isErr {
				m.setError(text)
			} else {
				m.setStatus(text)
			}
		}
		cmd := m.syncView()
		return m, cmd

	case kanban.ToggleRequestMsg:
		m.board.SetBusy(msg.TaskID, true)
		return m, m.toggleTask(msg.TaskID)

	case kanban.MoveRequestMsg:
		m.board.SetBusy(msg.TaskID, true)
		return m, m.moveTask(msg.TaskID, msg.Completed)

	case kanban.DeleteRequestMsg:
		m.board.SetBusy(msg.TaskID, true)
		return m, m.deleteTask(msg.TaskID)

	case kanban.OpenRequestMsg:
		m.detailID = msg.TaskID
		m.currentView = ViewDetail
		m.syncDetail()
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewBoard
		return m, nil

	case detail.ToggleRequestMsg:
		m.board.SetBusy(msg.TaskID, true)
		m.syncDetail()
		return m, m.toggleTask(msg.TaskID)

	case detail.DeleteRequestMsg:
		m.board.SetBusy(msg.TaskID, true)
		m.currentView = ViewBoard
		return m, m.deleteTask(msg.TaskID)

	case kanban.AddRequestMsg:
		cmd := m.openTaskForm("")
		return m, cmd

	case habits.ToggleRequestMsg:
		return m, m.toggleTask(msg.TaskID)

	case monthview.MonthChangedMsg:
		m.watchView(ViewCalendar)
		cmd := m.syncView()
		return m, cmd

	case monthview.DaySelectedMsg:
		m.watchView(ViewCalendar)
		cmd := m.syncView()
		return m, cmd

	case taskform.SubmitMsg:
		m.currentView = m.lastTab
		cmd := tea.Batch(m.createTask(msg.Input), m.syncView())
		return m, cmd

	case taskform.CancelMsg:
		m.currentView = m.lastTab
		cmd := m.syncView()
		return m, cmd

	case profileview.UpdateRequestMsg:
		return m, m.updateProfile(msg.Request)

	case authform.SubmitMsg:
		return m, m.authenticate(msg)

	case authDoneMsg:
		if msg.err != nil {
			cmd := m.authForm.Start(authErrorText(msg.mode, msg.err))
			return m, cmd
		}
		m.deps.Poller.Resume()
		m.setStatus("Signed in.")
		cmd := m.switchTab(ViewBoard)
		return m, cmd

	case sessionLostMsg:
		wait := m.waitSessionLost()
		if m.currentView == ViewLogin {
			return m, wait
		}
		return m, tea.Batch(wait, m.logout("Your session expired. Sign in again."))

	case loggedOutMsg:
		m.watch.watch()
		m.currentView = ViewLogin
		m.status = ""
		message := msg.message
		if msg.err != nil {
			message = fmt.Sprintf("Signed out, but clearing local data failed: %v", msg.err)
		}
		cmd := m.authForm.Start(message)
		return m, cmd

	case appsync.RefreshResultMsg:
		next := m.deps.Poller.WaitForNextResult()
		if msg.AuthError != nil {
			if m.currentView == ViewLogin {
				return m, next
			}
			return m, tea.Batch(next, m.logout(msg.AuthError.Message))
		}
		if msg.Error != nil {
			m.setError(fmt.Sprintf("Refresh failed for %d view(s): %v", len(msg.Failed), msg.Error))
		}
		return m, next

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.deps.Poller.Stop()
			return m, tea.Quit
		}
		if m.capturesKeys() {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.deps.Poller.Stop()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			if v := m.lastTabOrCurrent(); int(v) < len(tabNames) {
				m.helpView.SetContext(tabNames[v])
			}
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			cmd := m.commandView.Focus()
			return m, cmd

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Refresh):
			cmd := m.refresh()
			return m, cmd

		case key.Matches(msg, m.keys.ViewBoard):
			cmd := m.switchTab(ViewBoard)
			return m, cmd
		case key.Matches(msg, m.keys.ViewCalendar):
			cmd := m.switchTab(ViewCalendar)
			return m, cmd
		case key.Matches(msg, m.keys.ViewDashboard):
			cmd := m.switchTab(ViewDashboard)
			return m, cmd
		case key.Matches(msg, m.keys.ViewProfile):
			cmd := m.switchTab(ViewProfile)
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// capturesKeys reports whether the active view takes every key, so the
// global bindings must stay out of the way.
func (m Model) capturesKeys() bool {
	switch m.currentView {
	case ViewLogin, ViewTaskCreate:
		return true
	case ViewCommand:
		return true
	case ViewProfile:
		return m.profileView.Editing()
	default:
		return false
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewBoard:
		m.board, cmd = m.board.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewCalendar:
		m.month, cmd = m.month.Update(msg)
	case ViewDashboard:
		m.habitsView, cmd = m.habitsView.Update(msg)
	case ViewProfile:
		m.profileView, cmd = m.profileView.Update(msg)
	case ViewLogin:
		m.authForm, cmd = m.authForm.Update(msg)
	case ViewTaskCreate:
		m.taskForm, cmd = m.taskForm.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			m.currentView = m.previousView
			return m, nil
		}
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// savedTab returns the main view open when the app last switched views.
func (m Model) savedTab() ViewState {
	if m.deps.Settings == nil {
		return ViewBoard
	}
	name := m.deps.Settings.Setting(context.Background(), settingView)
	for i, tab := range tabNames {
		if tab == name {
			return ViewState(i)
		}
	}
	return ViewBoard
}

// switchTab shows one of the four main views.
func (m *Model) switchTab(v ViewState) tea.Cmd {
	m.currentView = v
	m.lastTab = v
	if m.deps.Settings != nil {
		if err := m.deps.Settings.SaveSetting(context.Background(), settingView, tabNames[v]); err != nil {
			log.Printf("saving %s: %v", settingView, err)
		}
	}
	m.watchView(v)
	return tea.Batch(m.loadView(v), m.syncView())
}

func (m *Model) openTaskForm(date string) tea.Cmd {
	m.lastTab = m.lastTabOrCurrent()
	m.currentView = ViewTaskCreate
	return m.taskForm.Start(date)
}

// viewKeys are the cache keys view v renders.
func (m Model) viewKeys(v ViewState) []cache.Key {
	switch v {
	case ViewBoard:
		return []cache.Key{cache.TasksKey()}
	case ViewCalendar:
		return []cache.Key{
			cache.CalendarKey(m.month.YearMonth()),
			cache.TasksByDateKey(m.month.Selected()),
		}
	case ViewDashboard:
		return m.deps.Dashboard.Range().Keys()
	case ViewProfile:
		return []cache.Key{cache.ProfileKey(), cache.TasksKey()}
	default:
		return nil
	}
}

func (m Model) watchView(v ViewState) {
	m.watch.watch(m.viewKeys(v)...)
}

// loadView returns the commands that fetch everything view v shows.
func (m *Model) loadView(v ViewState) tea.Cmd {
	switch v {
	case ViewBoard:
		return m.fetch(cache.TasksKey())
	case ViewCalendar:
		m.month.SetToday(m.deps.Now().Format(model.DateLayout))
		return tea.Batch(m.fetch(cache.CalendarKey(m.month.YearMonth())), m.loadDayTasks(m.month.Selected()))
	case ViewDashboard:
		return m.loadSummary()
	case ViewProfile:
		return tea.Batch(m.fetch(cache.TasksKey()), m.loadProfile())
	default:
		return nil
	}
}

// syncView copies the cached state of the visible view into it and asks
// for anything that has gone stale.
func (m *Model) syncView() tea.Cmd {
	store := m.deps.Store
	needs := func(key cache.Key) bool {
		return store.IsStale(key) && !store.InFlight(key)
	}

	switch m.lastTabOrCurrent() {
	case ViewBoard:
		tasks, ok := cache.Read[[]model.Task](store, cache.TasksKey())
		if ok {
			updated, _ := store.UpdatedAt(cache.TasksKey())
			m.board.SetTasks(tasks, updated)
		}
		if m.currentView == ViewDetail {
			m.syncDetail()
		}
		if needs(cache.TasksKey()) {
			return m.fetch(cache.TasksKey())
		}

	case ViewCalendar:
		var cmds []tea.Cmd
		monthKey := cache.CalendarKey(m.month.YearMonth())
		data, ok := cache.Read[map[string][]model.Task](store, monthKey)
		if ok {
			m.month.SetMonth(data)
		}
		if needs(monthKey) {
			cmds = append(cmds, m.fetch(monthKey))
		}

		date := m.month.Selected()
		dayKey := cache.TasksByDateKey(date)
		if day := data[date]; len(day) > 0 {
			m.month.SetDayTasks(model.CloneTasks(day), nil)
		} else if cached, ok := cache.Read[[]model.Task](store, dayKey); ok && !store.IsStale(dayKey) {
			m.month.SetDayTasks(cached, nil)
		} else if !store.InFlight(dayKey) {
			cmds = append(cmds, m.loadDayTasks(date))
		}
		return tea.Batch(cmds...)

	case ViewDashboard:
		return m.loadSummary()

	case ViewProfile:
		if m.profileView.Editing() {
			return nil
		}
		if p := m.deps.Profile.Current(context.Background()); p != nil {
			m.profileView.SetProfile(m.withStats(p), nil)
		}
		if needs(cache.ProfileKey()) {
			return m.loadProfile()
		}
	}
	return nil
}

// syncDetail rereads the shown task from the global list, so optimistic
// changes and rollbacks show up in the detail view too.
func (m *Model) syncDetail() {
	store := m.deps.Store
	tasks := cache.ReadOrEmpty[[]model.Task](store, cache.TasksKey())
	i := model.IndexOfTask(tasks, m.detailID)
	if i < 0 {
		m.detailView.SetContent(nil)
		return
	}

	t := tasks[i]
	today := m.deps.Now().Format(model.DateLayout)
	streaks := cache.ReadOrEmpty[map[int64]int](store, cache.StreaksKey(today))
	streak, _ := dashboard.StreakFor(t, streaks, model.StreakFallbackUnavailable)

	var sameDay []model.Task
	if t.HasDate() {
		for _, other := range tasks {
			if other.ID != t.ID && other.Date == t.Date {
				sameDay = append(sameDay, other)
			}
		}
	}

	m.detailView.SetContent(&detail.Content{
		Task:    t,
		Streak:  streak,
		SameDay: sameDay,
		Busy:    m.board.Busy(t.ID),
	})
}

// lastTabOrCurrent is the main view behind any overlay.
func (m Model) lastTabOrCurrent() ViewState {
	switch m.currentView {
	case ViewBoard, ViewCalendar, ViewDashboard, ViewProfile:
		return m.currentView
	case ViewLogin:
		return ViewLogin
	default:
		return m.lastTab
	}
}

// withStats attaches counts computed from the cached task list, which are
// newer than anything stored with the profile.
func (m Model) withStats(p *model.Profile) *model.Profile {
	if p == nil {
		return nil
	}
	tasks, ok := cache.Read[[]model.Task](m.deps.Store, cache.TasksKey())
	if !ok {
		return p
	}
	out := *p
	st := profile.ComputeStats(tasks)
	out.Stats = &st
	return &out
}

// refresh marks the visible view stale and wakes the refresher.
func (m *Model) refresh() tea.Cmd {
	for _, k := range m.viewKeys(m.lastTabOrCurrent()) {
		m.deps.Store.InvalidateKey(k)
	}
	m.setStatus("Refreshing…")
	return m.deps.Poller.Refresh()
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
}

func (m *Model) setError(text string) {
	m.status = text
	m.statusErr = true
}

func authErrorText(mode authform.Mode, err error) string {
	var authErr *api.AuthError
	var statusErr *api.StatusError
	switch {
	case auth.IsValidationError(err):
		return err.Error()
	case errors.As(err, &authErr) && mode == authform.ModeLogin:
		return "Wrong username or password."
	case errors.As(err, &statusErr) && statusErr.Status == 409:
		return "That username is taken."
	case api.IsNetworkError(err):
		return "Couldn't reach the server. Check api.base_url and try again."
	default:
		return err.Error()
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.refreshStatus())
	tabs := ""
	if m.currentView != ViewLogin {
		tabs = m.layout.RenderTabs(tabNames, int(m.lastTabOrCurrent()))
	}
	content := m.renderContent()

	var statusBar string
	switch {
	case m.status != "" && m.statusErr:
		statusBar = m.layout.RenderErrorBar(m.status)
	case m.status != "":
		statusBar = m.layout.RenderStatusBar(m.status + " | " + m.keyHints())
	default:
		statusBar = m.layout.RenderStatusBar(m.keyHints())
	}

	return m.layout.RenderWithFrame(header, tabs, content, statusBar)
}

func (m Model) title() string {
	if m.currentView == ViewLogin {
		return "habitboard"
	}
	if p := m.deps.Profile.Current(context.Background()); p != nil && p.Username != "" {
		return "habitboard · " + p.Username
	}
	return "habitboard"
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewBoard:
		return m.board.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewCalendar:
		return m.month.View()
	case ViewDashboard:
		return m.habitsView.View()
	case ViewProfile:
		return m.profileView.View()
	case ViewLogin:
		return m.authForm.View()
	case ViewTaskCreate:
		return m.taskForm.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// refreshStatus returns a short string describing the refresher.
func (m Model) refreshStatus() string {
	st := m.deps.Poller.Status()
	switch st.State {
	case appsync.RefreshRunning:
		return "refreshing…"
	case appsync.RefreshError:
		return "⚠ refresh failed"
	case appsync.RefreshPaused:
		return "signed out"
	}
	if st.LastRefresh.IsZero() {
		return "idle"
	}
	return "refreshed " + humanize.Time(st.LastRefresh)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewLogin, ViewTaskCreate:
		return "enter submit | esc cancel"
	case ViewCalendar:
		return "h/l day | j/k week | [/] month | t today | ? help"
	case ViewDetail:
		return "space toggle | d delete | j/k scroll | esc back"
	case ViewDashboard:
		return "j/k select | space check off | r refresh | ? help"
	case ViewProfile:
		if m.profileView.Editing() {
			return "enter save | esc cancel"
		}
		return "e edit | r refresh | :logout | ? help"
	default:
		return "q quit | ? help | n new | space toggle | h/l move | d delete | tab lane"
	}
}

// executeCommand handles a command line from the command palette.
func (m *Model) executeCommand(line string) tea.Cmd {
	name, arg := command.Parse(line)
	switch name {
	case "board":
		return m.switchTab(ViewBoard)
	case "calendar", "cal":
		if arg == "" {
			return m.switchTab(ViewCalendar)
		}
		date := arg
		if len(arg) == len(model.MonthLayout) {
			date = arg + "-01"
		}
		if !model.IsDate(date) {
			m.setError(fmt.Sprintf("%q is not a month (YYYY-MM) or a day (YYYY-MM-DD)", arg))
			return nil
		}
		jump := m.month.Select(date)
		return tea.Batch(jump, m.switchTab(ViewCalendar))
	case "dashboard", "dash":
		return m.switchTab(ViewDashboard)
	case "profile":
		return m.switchTab(ViewProfile)
	case "new", "add":
		date := ""
		if m.lastTabOrCurrent() == ViewCalendar {
			date = m.month.Selected()
		}
		if arg != "" {
			return m.createTask(mutation.CreateInput{Title: arg, Date: date})
		}
		return m.openTaskForm(date)
	case "refresh", "sync":
		return m.refresh()
	case "logout":
		return m.logout("Signed out.")
	case "quit", "q":
		m.deps.Poller.Stop()
		return tea.Quit
	default:
		m.setError(fmt.Sprintf("Unknown command %q", name))
		return nil
	}
}
