// Package board splits tasks into the two board lanes and resolves where a
// moved card lands.
package board

import (
	"strconv"

	"github.com/nhle/habitboard/internal/model"
)

// Lanes holds the board columns in display order.
type Lanes struct {
	Pending   []model.Task
	Completed []model.Task
}

// Partition splits tasks by their completed flag, keeping their order.
func Partition(tasks []model.Task) Lanes {
	lanes := Lanes{
		Pending:   []model.Task{},
		Completed: []model.Task{},
	}
	for _, t := range tasks {
		if t.Completed {
			lanes.Completed = append(lanes.Completed, t)
		} else {
			lanes.Pending = append(lanes.Pending, t)
		}
	}
	return lanes
}

// Lane returns the tasks of the named lane, or nil for an unknown name.
func (l Lanes) Lane(name string) []model.Task {
	switch name {
	case model.LanePending:
		return l.Pending
	case model.LaneCompleted:
		return l.Completed
	default:
		return nil
	}
}

// Drop is the outcome of dropping a card.
type Drop struct {
	TaskID    int64
	Completed bool
}

// ResolveDrop works out the completed value for dropping task taskID onto
// target, which is either a lane name or the decimal id of another card (the
// card's lane is used). ok is false when the drop changes nothing: the
// target is empty or unknown, the dragged task is not on the board, or the
// task already sits in that lane.
func ResolveDrop(tasks []model.Task, taskID int64, target string) (Drop, bool) {
	i := model.IndexOfTask(tasks, taskID)
	if i < 0 || target == "" {
		return Drop{}, false
	}

	var completed bool
	switch target {
	case model.LanePending:
		completed = false
	case model.LaneCompleted:
		completed = true
	default:
		id, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return Drop{}, false
		}
		j := model.IndexOfTask(tasks, id)
		if j < 0 {
			return Drop{}, false
		}
		completed = tasks[j].Completed
	}

	if tasks[i].Completed == completed {
		return Drop{}, false
	}
	return Drop{TaskID: taskID, Completed: completed}, true
}

// Neighbor returns the lane reached by moving one step in dir (-1 left,
// +1 right) from lane. Moving past either edge stays put.
func Neighbor(lane string, dir int) string {
	switch {
	case dir < 0:
		return model.LanePending
	case dir > 0:
		return model.LaneCompleted
	default:
		return lane
	}
}
