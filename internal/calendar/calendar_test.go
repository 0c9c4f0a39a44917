package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/habitboard/internal/api/apitest"
	"github.com/nhle/habitboard/internal/cache"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/query"
)

func TestMonthLayout(t *testing.T) {
	data := map[string][]model.Task{
		"2026-02-01": {{ID: 1, Title: "Read"}, {ID: 2, Title: "Run", Completed: true}},
		"2026-02-14": {{ID: 3, Title: "Call", Completed: true}},
		"2026-03-01": {{ID: 4, Title: "Next month"}},
	}

	g, err := Month("2026-02", data, "2026-02-14", "2026-02-01")
	require.NoError(t, err)
	assert.Equal(t, "February 2026", g.Title)

	// 1 Feb 2026 is a Sunday, so the first row starts on Monday 26 Jan.
	first := g.Cells[0][0]
	assert.Equal(t, "2026-01-26", first.Date)
	assert.False(t, first.InMonth)

	sunday := g.Cells[0][6]
	assert.Equal(t, "2026-02-01", sunday.Date)
	assert.True(t, sunday.InMonth)
	assert.True(t, sunday.Selected)
	assert.Equal(t, 2, sunday.Total)
	assert.Equal(t, 1, sunday.Completed)

	w, d, ok := g.Find("2026-02-14")
	require.True(t, ok)
	cell := g.Cells[w][d]
	assert.True(t, cell.Today)
	assert.Equal(t, 1, cell.Total)
	assert.Equal(t, 1, cell.Completed)
	assert.Equal(t, 5, d, "14 Feb 2026 is a Saturday")

	w, d, ok = g.Find("2026-03-01")
	require.True(t, ok)
	assert.False(t, g.Cells[w][d].InMonth)
	assert.Zero(t, g.Cells[w][d].Total, "days outside the month carry no counts")
}

func TestMonthStartingOnMonday(t *testing.T) {
	g, err := Month("2025-09", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", g.Cells[0][0].Date)
	assert.True(t, g.Cells[0][0].InMonth)
}

func TestMonthInvalid(t *testing.T) {
	_, err := Month("2026-13", nil, "", "")
	assert.Error(t, err)
}

func TestShift(t *testing.T) {
	tests := []struct {
		in    string
		delta int
		want  string
	}{
		{"2026-01", -1, "2025-12"},
		{"2026-12", 1, "2027-01"},
		{"2026-02", 0, "2026-02"},
	}
	for _, tt := range tests {
		got, err := Shift(tt.in, tt.delta)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Shift("bad", 1)
	assert.Error(t, err)
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2026-02-28", 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", got)
}

func TestDayTasksFallsBackToByDate(t *testing.T) {
	srv := apitest.New(t)
	srv.Seed(
		model.Task{Title: "Read", Date: "2026-02-01"},
		model.Task{Title: "Run", Date: "2026-02-02"},
	)
	q := query.New(cache.New(cache.Options{}), srv.Client(nil))
	ctx := context.Background()

	month := map[string][]model.Task{
		"2026-02-01": {{ID: 1, Title: "Read", Date: "2026-02-01"}},
	}

	tasks, err := DayTasks(ctx, q, month, "2026-02-01")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 0, srv.Hits(apitest.RouteByDate))

	tasks, err = DayTasks(ctx, q, month, "2026-02-02")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Run", tasks[0].Title)
	assert.Equal(t, 1, srv.Hits(apitest.RouteByDate))
}
