package kanban

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/theme"
)

// renderCard draws a single task line within a lane of the given width.
func renderCard(t model.Task, selected, busy bool, width int) string {
	prefix := "○"
	if t.Completed {
		prefix = "✓"
	}

	var meta []string
	if t.Date != "" {
		meta = append(meta, t.Date)
	}
	if t.Frequency != "" {
		meta = append(meta, t.Frequency)
	}
	metaStr := ""
	if len(meta) > 0 {
		metaStr = theme.DimmedStyle.Render(" " + strings.Join(meta, " · "))
	}

	busyStr := ""
	if busy {
		busyStr = lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Render(" …")
	}

	line := fmt.Sprintf("%s %s%s%s", prefix, t.Title, metaStr, busyStr)

	// Apply dimmed style for completed items
	if t.Completed && !selected {
		line = theme.DimmedStyle.Render(line)
	}

	style := theme.ListItemStyle
	if selected {
		style = theme.SelectedItemStyle
	}
	return style.MaxWidth(width).Render(line)
}
