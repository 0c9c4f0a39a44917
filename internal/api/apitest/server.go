// Package apitest provides an in-process fake of the habit tracking REST
// API for tests. It implements the task, stats, profile and auth routes
// over an in-memory task list, counts requests per route, and can be told
// to fail, delay or block individual routes.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/model"
)

// Route names accepted by Hits, Fail, Delay and Block.
const (
	RouteTasks    = "GET /tasks"
	RouteCreate   = "POST /tasks"
	RouteToggle   = "PUT /tasks/:id/toggle"
	RouteDelete   = "DELETE /tasks/:id"
	RouteByDate   = "GET /tasks/by-date"
	RouteCalendar = "GET /tasks/calendar"
	RouteStreaks  = "GET /tasks/streaks"
	RouteWeekly   = "GET /stats/weekly"
	RouteMonthly  = "GET /stats/monthly"
	RouteMe       = "GET /users/me"
	RouteUpdateMe = "PUT /users/me"
	RouteLogin    = "POST /auth/login"
	RouteRegister = "POST /auth/register"
)

// Response layouts for GET /tasks/by-date.
const (
	ShapeArray    = "array"
	ShapeWrapped  = "wrapped"
	ShapeDateKeys = "date-keyed"
)

type user struct {
	password string
	profile  api.ServerProfile
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	srv *httptest.Server

	mu          sync.Mutex
	tasks       []model.Task
	nextID      int64
	streaks     map[int64]int
	users       map[string]*user
	tokens      map[string]string // token -> username
	requireAuth bool
	byDateShape string

	hits  map[string]int
	fail  map[string]int
	delay map[string]time.Duration
	gates map[string]*gate
}

type gate struct {
	ch   chan struct{}
	once sync.Once
}

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

// New starts a fake backend that is shut down when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		nextID:      1,
		streaks:     make(map[int64]int),
		users:       make(map[string]*user),
		tokens:      make(map[string]string),
		byDateShape: ShapeArray,
		hits:        make(map[string]int),
		fail:        make(map[string]int),
		delay:       make(map[string]time.Duration),
		gates:       make(map[string]*gate),
	}

	r := gin.New()
	r.Use(s.track, s.auth)

	r.GET("/tasks", s.listTasks)
	r.POST("/tasks", s.createTask)
	r.PUT("/tasks/:id/toggle", s.toggleTask)
	r.DELETE("/tasks/:id", s.deleteTask)
	r.GET("/tasks/by-date", s.tasksByDate)
	r.GET("/tasks/calendar", s.calendar)
	r.GET("/tasks/streaks", s.taskStreaks)
	r.GET("/stats/weekly", s.weekly)
	r.GET("/stats/monthly", s.monthly)
	r.GET("/users/me", s.me)
	r.PUT("/users/me", s.updateMe)
	r.POST("/auth/login", s.login)
	r.POST("/auth/register", s.register)

	s.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		s.ReleaseAll()
		s.srv.Close()
	})
	return s
}

// URL is the API base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Client returns an API client pointed at the fake with the given token
// source (nil for none) and a short timeout.
func (s *Server) Client(tokens api.TokenSource) *api.Client {
	return api.NewClient(api.Config{BaseURL: s.URL(), Timeout: 2 * time.Second}, tokens)
}

// Seed replaces the task list. Tasks with a zero ID get the next free one.
func (s *Server) Seed(tasks ...model.Task) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = s.tasks[:0]
	for _, t := range tasks {
		if t.ID == 0 {
			t.ID = s.nextID
		}
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		s.tasks = append(s.tasks, t)
	}
	return model.CloneTasks(s.tasks)
}

// Tasks returns a copy of the server-side task list.
func (s *Server) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneTasks(s.tasks)
}

// SetStreaks sets the counts served by GET /tasks/streaks.
func (s *Server) SetStreaks(streaks map[int64]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks = streaks
}

// SetByDateShape selects the layout of GET /tasks/by-date responses.
func (s *Server) SetByDateShape(shape string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDateShape = shape
}

// RequireToken turns on bearer auth and registers tok for username.
func (s *Server) RequireToken(tok, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = true
	s.tokens[tok] = username
	if _, ok := s.users[username]; !ok {
		s.users[username] = &user{profile: api.ServerProfile{
			Username:  username,
			CreatedAt: "2025-01-01T00:00:00Z",
		}}
	}
}

// AddUser registers an account without issuing a token.
func (s *Server) AddUser(username, password string, profile api.ServerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.Username = username
	s.users[username] = &user{password: password, profile: profile}
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests across all routes.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// Fail makes every request to route answer status until Recover is called.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[route] = status
}

// Recover undoes Fail for route.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fail, route)
}

// Delay holds every request to route for d before it is handled.
func (s *Server) Delay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[route] = d
}

// Block holds requests to route until the returned release func is called.
func (s *Server) Block(route string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &gate{ch: make(chan struct{})}
	s.gates[route] = g
	return func() {
		s.mu.Lock()
		if s.gates[route] == g {
			delete(s.gates, route)
		}
		s.mu.Unlock()
		g.open()
	}
}

// ReleaseAll unblocks every blocked route.
func (s *Server) ReleaseAll() {
	s.mu.Lock()
	gates := s.gates
	s.gates = make(map[string]*gate)
	s.mu.Unlock()
	for _, g := range gates {
		g.open()
	}
}

func routeOf(c *gin.Context) string {
	return c.Request.Method + " " + c.FullPath()
}

func (s *Server) track(c *gin.Context) {
	route := routeOf(c)

	s.mu.Lock()
	s.hits[route]++
	status, failing := s.fail[route]
	d := s.delay[route]
	g := s.gates[route]
	s.mu.Unlock()

	if g != nil {
		select {
		case <-g.ch:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if d > 0 {
		select {
		case <-time.After(d):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(status, gin.H{"message": http.StatusText(status)})
		return
	}
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if strings.HasPrefix(c.FullPath(), "/auth/") {
		c.Next()
		return
	}

	s.mu.Lock()
	required := s.requireAuth
	s.mu.Unlock()
	if !required {
		c.Next()
		return
	}

	tok := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	username, ok := s.tokens[tok]
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}
	c.Set("username", username)
	c.Next()
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.Tasks())
}

func (s *Server) createTask(c *gin.Context) {
	var req api.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "title is required"})
		return
	}

	s.mu.Lock()
	task := model.Task{
		ID:        s.nextID,
		Title:     req.Title,
		Date:      req.Date,
		Frequency: req.Frequency,
		Reminder:  req.Reminder,
	}
	s.nextID++
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, task)
}

func (s *Server) taskIndex(c *gin.Context) (int, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid id"})
		return -1, false
	}
	i := model.IndexOfTask(s.tasks, id)
	if i < 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "task not found"})
		return -1, false
	}
	return i, true
}

func (s *Server) toggleTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.taskIndex(c)
	if !ok {
		return
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	c.JSON(http.StatusOK, s.tasks[i])
}

func (s *Server) deleteTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.taskIndex(c)
	if !ok {
		return
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	c.Status(http.StatusNoContent)
}

func (s *Server) onDate(date string) []model.Task {
	out := []model.Task{}
	for _, t := range s.Tasks() {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) tasksByDate(c *gin.Context) {
	date := c.Query("date")
	tasks := s.onDate(date)

	s.mu.Lock()
	shape := s.byDateShape
	s.mu.Unlock()

	switch shape {
	case ShapeWrapped:
		c.JSON(http.StatusOK, gin.H{"tasksByDate": gin.H{date: tasks}})
	case ShapeDateKeys:
		c.JSON(http.StatusOK, gin.H{date: tasks})
	default:
		c.JSON(http.StatusOK, tasks)
	}
}

func (s *Server) calendar(c *gin.Context) {
	month := c.DefaultQuery("yearMonth", time.Now().Format(model.MonthLayout))
	byDate := make(map[string][]model.Task)
	for _, t := range s.Tasks() {
		if model.MonthOf(t.Date) == month {
			byDate[t.Date] = append(byDate[t.Date], t)
		}
	}
	c.JSON(http.StatusOK, gin.H{"tasksByDate": byDate})
}

func (s *Server) taskStreaks(c *gin.Context) {
	s.mu.Lock()
	out := make(map[string]int, len(s.streaks))
	for id, n := range s.streaks {
		out[strconv.FormatInt(id, 10)] = n
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"streaks": out})
}

func (s *Server) weekly(c *gin.Context) {
	from, err1 := time.Parse(model.DateLayout, c.Query("from"))
	to, err2 := time.Parse(model.DateLayout, c.Query("to"))
	if err1 != nil || err2 != nil || to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid range"})
		return
	}

	points := []model.WeeklyStatsPoint{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(model.DateLayout)
		tasks := s.onDate(date)
		completion := 0.0
		if len(tasks) > 0 {
			done := 0
			for _, t := range tasks {
				if t.Completed {
					done++
				}
			}
			completion = float64(done*100) / float64(len(tasks))
		}
		points = append(points, model.WeeklyStatsPoint{
			Day:        d.Format("Mon"),
			Date:       date,
			Completion: completion,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": points})
}

func (s *Server) monthly(c *gin.Context) {
	year, err1 := strconv.Atoi(c.Query("year"))
	month, err2 := strconv.Atoi(c.Query("month"))
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid month"})
		return
	}

	prefix := fmt.Sprintf("%04d-%02d", year, month)
	counts := make([]float64, 4)
	for _, t := range s.Tasks() {
		if !t.Completed || model.MonthOf(t.Date) != prefix {
			continue
		}
		day, _ := strconv.Atoi(t.Date[8:])
		w := (day - 1) / 7
		if w > 3 {
			w = 3
		}
		counts[w]++
	}

	points := make([]model.MonthlyStatsPoint, 0, len(counts))
	for i, n := range counts {
		points = append(points, model.MonthlyStatsPoint{Week: fmt.Sprintf("W%d", i+1), Count: n})
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) currentUser(c *gin.Context) *user {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name := c.GetString("username"); name != "" {
		return s.users[name]
	}
	// Without auth, the first registered user (by name) is "me".
	names := make([]string, 0, len(s.users))
	for n := range s.users {
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return s.users[names[0]]
}

func (s *Server) me(c *gin.Context) {
	u := s.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no user"})
		return
	}
	s.mu.Lock()
	p := u.profile
	s.mu.Unlock()
	c.JSON(http.StatusOK, p)
}

func (s *Server) updateMe(c *gin.Context) {
	u := s.currentUser(c)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no user"})
		return
	}

	var req api.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	if req.Email != nil {
		u.profile.Email = *req.Email
	}
	if req.Bio != nil {
		u.profile.Bio = *req.Bio
	}
	p := u.profile
	s.mu.Unlock()

	c.JSON(http.StatusOK, p)
}

func (s *Server) login(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[creds.Username]
	if !ok || u.password != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
		return
	}
	tok := "token-" + creds.Username
	s.tokens[tok] = creds.Username
	c.JSON(http.StatusOK, api.AuthResponse{Token: tok})
}

func (s *Server) register(c *gin.Context) {
	var creds model.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[creds.Username]; exists {
		c.JSON(http.StatusConflict, gin.H{"message": "username taken"})
		return
	}
	s.users[creds.Username] = &user{
		password: creds.Password,
		profile: api.ServerProfile{
			Username:  creds.Username,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	tok := "token-" + creds.Username
	s.tokens[tok] = creds.Username
	c.JSON(http.StatusCreated, api.AuthResponse{Token: tok})
}
