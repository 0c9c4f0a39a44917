package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/nhle/habitboard/internal/model"
)

// Tasks fetches the global task list.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.get(ctx, "/tasks", &tasks); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}
	return model.CloneTasks(tasks), nil
}

// CreateTask creates a task. A date that is not YYYY-MM-DD is dropped
// before sending.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (model.Task, error) {
	if !model.IsDate(req.Date) {
		req.Date = ""
	}

	var task model.Task
	if err := c.post(ctx, "/tasks", req, &task); err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

// ToggleTask flips the completion state of a task on the server.
func (c *Client) ToggleTask(ctx context.Context, id int64) (model.Task, error) {
	var task model.Task
	if err := c.put(ctx, fmt.Sprintf("/tasks/%d/toggle", id), nil, &task); err != nil {
		return model.Task{}, fmt.Errorf("toggling task %d: %w", id, err)
	}
	return task, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	if err := c.delete(ctx, fmt.Sprintf("/tasks/%d", id)); err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return nil
}

// TasksByDate fetches the tasks for one calendar day. It never fails: a
// malformed date, an unrecognized response shape or a failed request all
// yield an empty list. Failures are logged, and a 401/403 still runs the
// session reset hook.
func (c *Client) TasksByDate(ctx context.Context, date string) ([]model.Task, error) {
	if !model.IsDate(date) {
		return []model.Task{}, nil
	}

	var raw json.RawMessage
	path := "/tasks/by-date?date=" + url.QueryEscape(date)
	if err := c.get(ctx, path, &raw); err != nil {
		log.Printf("fetching tasks for %s: %v", date, err)
		return []model.Task{}, nil
	}
	return decodeTasksByDate(raw, date), nil
}

// Calendar fetches the date-to-tasks map for a month (YYYY-MM). An empty
// yearMonth asks the server for the current month. Like TasksByDate it
// never fails; a failed request yields an empty map.
func (c *Client) Calendar(ctx context.Context, yearMonth string) (map[string][]model.Task, error) {
	path := "/tasks/calendar"
	if yearMonth != "" {
		path += "?yearMonth=" + url.QueryEscape(yearMonth)
	}

	var raw json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		log.Printf("fetching calendar %s: %v", yearMonth, err)
		return map[string][]model.Task{}, nil
	}
	return decodeCalendar(raw), nil
}

// Streaks fetches the per-task streak counts as of date.
func (c *Client) Streaks(ctx context.Context, date string) (map[int64]int, error) {
	if !model.IsDate(date) {
		return map[int64]int{}, nil
	}

	var raw json.RawMessage
	path := "/tasks/streaks?date=" + url.QueryEscape(date)
	if err := c.get(ctx, path, &raw); err != nil {
		return map[int64]int{}, fmt.Errorf("fetching streaks for %s: %w", date, err)
	}
	return decodeStreaks(raw), nil
}
