package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/model"
)

func sample() []model.Task {
	return []model.Task{
		{ID: 1, Title: "Read"},
		{ID: 2, Title: "Run", Completed: true},
		{ID: 3, Title: "Write"},
		{ID: 4, Title: "Stretch", Completed: true},
	}
}

func TestPartitionKeepsOrder(t *testing.T) {
	lanes := Partition(sample())

	require.Len(t, lanes.Pending, 2)
	require.Len(t, lanes.Completed, 2)
	assert.Equal(t, int64(1), lanes.Pending[0].ID)
	assert.Equal(t, int64(3), lanes.Pending[1].ID)
	assert.Equal(t, int64(2), lanes.Completed[0].ID)
	assert.Equal(t, int64(4), lanes.Completed[1].ID)

	assert.Equal(t, lanes.Pending, lanes.Lane(model.LanePending))
	assert.Nil(t, lanes.Lane("archived"))
}

func TestPartitionEmpty(t *testing.T) {
	lanes := Partition(nil)
	assert.NotNil(t, lanes.Pending)
	assert.NotNil(t, lanes.Completed)
	assert.Empty(t, lanes.Pending)
}

func TestResolveDrop(t *testing.T) {
	tasks := sample()

	tests := []struct {
		name   string
		taskID int64
		target string
		want   Drop
		ok     bool
	}{
		{"onto completed lane", 1, "completed", Drop{TaskID: 1, Completed: true}, true},
		{"onto pending lane", 2, "pending", Drop{TaskID: 2, Completed: false}, true},
		{"onto completed card", 3, "4", Drop{TaskID: 3, Completed: true}, true},
		{"onto pending card", 4, "1", Drop{TaskID: 4, Completed: false}, true},
		{"same lane", 1, "pending", Drop{}, false},
		{"card in same lane", 1, "3", Drop{}, false},
		{"onto itself", 2, "2", Drop{}, false},
		{"no target", 1, "", Drop{}, false},
		{"unknown lane", 1, "archived", Drop{}, false},
		{"unknown card", 1, "99", Drop{}, false},
		{"task not on board", 42, "completed", Drop{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveDrop(tasks, tt.taskID, tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNeighbor(t *testing.T) {
	assert.Equal(t, model.LaneCompleted, Neighbor(model.LanePending, 1))
	assert.Equal(t, model.LaneCompleted, Neighbor(model.LaneCompleted, 1))
	assert.Equal(t, model.LanePending, Neighbor(model.LaneCompleted, -1))
	assert.Equal(t, model.LanePending, Neighbor(model.LanePending, 0))
}
