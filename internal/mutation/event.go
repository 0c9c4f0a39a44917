package mutation

import (
	"github.com/google/uuid"

	"github.com/nhle/habitboard/internal/model"
)

// Op names a task mutation.
type Op string

const (
	OpCreate Op = "create"
	OpToggle Op = "toggle"
	OpDelete Op = "delete"
	OpMove   Op = "move"
)

// State is the lifecycle position of one mutation.
type State int

const (
	// StatePending means the request is out and nothing was applied
	// locally (create).
	StatePending State = iota
	// StateOptimistic means the guessed result is in the cache and the
	// request is out.
	StateOptimistic
	// StateSucceeded means the server confirmed and the cache holds its
	// answer.
	StateSucceeded
	// StateRolledBack means the request failed and every touched entry was
	// restored.
	StateRolledBack
	// StateFailed means a request without local changes failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateOptimistic:
		return "optimistic"
	case StateSucceeded:
		return "succeeded"
	case StateRolledBack:
		return "rolled back"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether the mutation has finished.
func (s State) Done() bool {
	return s == StateSucceeded || s == StateRolledBack || s == StateFailed
}

// Event is reported to the engine's observer on every state change.
type Event struct {
	// ID is shared by all events of one mutation.
	ID     uuid.UUID
	Op     Op
	TaskID int64
	State  State
	Err    error
	// Task is the server's task once the mutation succeeded.
	Task model.Task
}

// Outcome says what a toggle, move or delete call did.
type Outcome int

const (
	// Applied means the change was dispatched and confirmed.
	Applied Outcome = iota
	// NotFound means the task is in no cached view; nothing happened.
	NotFound
	// Unchanged means a move targeted the lane the task is already in.
	Unchanged
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NotFound:
		return "not found"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Result is returned by Toggle, Move and Delete.
type Result struct {
	Outcome Outcome
	// Task is the server's copy after a toggle or move, or the removed
	// task after a delete.
	Task model.Task
}
