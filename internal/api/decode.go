package api

import (
	"bytes"
	"encoding/json"
	"log"
	"strconv"

	"github.com/nhle/habitboard/internal/model"
)

// shape identifies which of the documented response layouts a date-scoped
// task payload uses.
type shape int

const (
	shapeUnknown shape = iota
	// shapeArray is a bare Task array.
	shapeArray
	// shapeWrapped is {"tasksByDate": {"<date>": [...]}}.
	shapeWrapped
	// shapeDateKeyed is {"<date>": [...]}.
	shapeDateKeyed
)

func (s shape) String() string {
	switch s {
	case shapeArray:
		return "array"
	case shapeWrapped:
		return "tasksByDate"
	case shapeDateKeyed:
		return "date-keyed"
	default:
		return "unknown"
	}
}

// taskPayload is the decoded form of a date-scoped response. Exactly one of
// list or byDate is set, depending on kind.
type taskPayload struct {
	kind   shape
	list   []model.Task
	byDate map[string][]model.Task
}

// classifyTasks decodes raw into one of the documented shapes. date selects
// the key that must be present for the date-keyed layout; an empty date
// accepts any object whose values are task arrays.
func classifyTasks(raw []byte, date string) taskPayload {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return taskPayload{kind: shapeUnknown}
	}

	switch raw[0] {
	case '[':
		var list []model.Task
		if err := json.Unmarshal(raw, &list); err != nil {
			return taskPayload{kind: shapeUnknown}
		}
		return taskPayload{kind: shapeArray, list: list}
	case '{':
	default:
		return taskPayload{kind: shapeUnknown}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return taskPayload{kind: shapeUnknown}
	}

	if wrapped, ok := obj["tasksByDate"]; ok {
		if byDate, ok := decodeDateMap(wrapped); ok {
			return taskPayload{kind: shapeWrapped, byDate: byDate}
		}
	}

	if date != "" {
		v, ok := obj[date]
		if !ok {
			return taskPayload{kind: shapeUnknown}
		}
		var list []model.Task
		if err := json.Unmarshal(v, &list); err != nil || list == nil {
			return taskPayload{kind: shapeUnknown}
		}
		return taskPayload{kind: shapeDateKeyed, byDate: map[string][]model.Task{date: list}}
	}

	byDate, _ := decodeDateMap(raw)
	return taskPayload{kind: shapeDateKeyed, byDate: byDate}
}

// decodeDateMap decodes a {"<date>": [...]} object, skipping entries that
// are not task arrays. ok is false when raw is not an object at all.
func decodeDateMap(raw json.RawMessage) (map[string][]model.Task, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}

	out := make(map[string][]model.Task, len(obj))
	for k, v := range obj {
		var list []model.Task
		if err := json.Unmarshal(v, &list); err != nil || list == nil {
			continue
		}
		out[k] = list
	}
	return out, true
}

// decodeTasksByDate normalizes a /tasks/by-date response to the task list
// for date. Unknown shapes yield an empty, non-nil list.
func decodeTasksByDate(raw []byte, date string) []model.Task {
	p := classifyTasks(raw, date)
	switch p.kind {
	case shapeArray:
		return model.CloneTasks(p.list)
	case shapeWrapped, shapeDateKeyed:
		return model.CloneTasks(p.byDate[date])
	default:
		log.Printf("tasks by date %s: unrecognized response shape", date)
		return []model.Task{}
	}
}

// decodeCalendar normalizes a /tasks/calendar response to a date map.
// Unknown shapes yield an empty, non-nil map.
func decodeCalendar(raw []byte) map[string][]model.Task {
	p := classifyTasks(raw, "")
	switch p.kind {
	case shapeWrapped, shapeDateKeyed:
		if p.byDate != nil {
			return p.byDate
		}
	}
	log.Printf("calendar: unrecognized response shape %s", p.kind)
	return map[string][]model.Task{}
}

// decodeStreaks parses {"streaks": {"<taskId>": n}}. JSON object keys are
// strings; keys that are not integers and values that are not numbers are
// dropped.
func decodeStreaks(raw []byte) map[int64]int {
	var body struct {
		Streaks map[string]json.RawMessage `json:"streaks"`
	}
	out := make(map[int64]int)
	if err := json.Unmarshal(raw, &body); err != nil {
		return out
	}
	for k, v := range body.Streaks {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		var n float64
		if err := json.Unmarshal(v, &n); err != nil {
			continue
		}
		out[id] = int(n)
	}
	return out
}

// dataPoints returns the elements of {"data": [...]} or of a bare array.
func dataPoints(raw []byte) []map[string]json.RawMessage {
	raw = bytes.TrimSpace(raw)
	var items []json.RawMessage

	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		items = wrapped.Data
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]map[string]json.RawMessage, 0, len(items))
	for _, it := range items {
		var obj map[string]json.RawMessage
		if json.Unmarshal(it, &obj) == nil && obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

func stringField(obj map[string]json.RawMessage, name string) (string, bool) {
	v, ok := obj[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func numberField(obj map[string]json.RawMessage, name string) (float64, bool) {
	v, ok := obj[name]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	return n, true
}

// decodeWeekly keeps the points that have a string day and a numeric
// completion.
func decodeWeekly(raw []byte) []model.WeeklyStatsPoint {
	out := []model.WeeklyStatsPoint{}
	for _, obj := range dataPoints(raw) {
		day, ok := stringField(obj, "day")
		if !ok {
			continue
		}
		completion, ok := numberField(obj, "completion")
		if !ok {
			continue
		}
		date, _ := stringField(obj, "date")
		out = append(out, model.WeeklyStatsPoint{Day: day, Date: date, Completion: completion})
	}
	return out
}

// decodeMonthly keeps the points that have a string week and a numeric
// count.
func decodeMonthly(raw []byte) []model.MonthlyStatsPoint {
	out := []model.MonthlyStatsPoint{}
	for _, obj := range dataPoints(raw) {
		week, ok := stringField(obj, "week")
		if !ok {
			continue
		}
		count, ok := numberField(obj, "count")
		if !ok {
			continue
		}
		out = append(out, model.MonthlyStatsPoint{Week: week, Count: count})
	}
	return out
}
