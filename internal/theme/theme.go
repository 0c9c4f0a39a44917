package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorCyan   = lipgloss.AdaptiveColor{Dark: "#66D9E8", Light: "#0C8599"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorViolet = lipgloss.AdaptiveColor{Dark: "#B197FC", Light: "#6741D9"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorViolet).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ErrorBarStyle replaces StatusBarStyle while an error is shown.
var ErrorBarStyle = StatusBarStyle.
	Background(ColorRed)

// PanelStyle wraps a view's content area.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// LaneStyle frames one board column.
var LaneStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ActiveLaneStyle frames the column holding the cursor.
var ActiveLaneStyle = LaneStyle.
	BorderForeground(ColorViolet)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorViolet).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorViolet)

// DimmedStyle renders completed or unavailable content.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// TitleStyle is used for view titles.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	MarginBottom(1)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// TabStyle renders an inactive entry of the view switcher.
var TabStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Padding(0, 1)

// ActiveTabStyle renders the current view in the switcher.
var ActiveTabStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// LaneTitleStyle returns the header style of a board lane.
func LaneTitleStyle(lane string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch lane {
	case "pending":
		return base.Foreground(ColorYellow)
	case "completed":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// StreakStyle colors a streak count. A week or more is highlighted.
func StreakStyle(days int) lipgloss.Style {
	base := lipgloss.NewStyle()

	switch {
	case days >= 7:
		return base.Bold(true).Foreground(ColorOrange)
	case days > 0:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// CompletionStyle colors a completion percentage.
func CompletionStyle(percent float64) lipgloss.Style {
	base := lipgloss.NewStyle()

	switch {
	case percent >= 80:
		return base.Foreground(ColorGreen)
	case percent >= 50:
		return base.Foreground(ColorCyan)
	case percent > 0:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// DayStyle returns the style of a calendar cell.
func DayStyle(inMonth, today, selected bool) lipgloss.Style {
	base := lipgloss.NewStyle().Width(6).Align(lipgloss.Center)

	switch {
	case selected:
		return base.Bold(true).Foreground(ColorWhite).Background(ColorViolet)
	case today:
		return base.Bold(true).Foreground(ColorCyan)
	case !inMonth:
		return base.Foreground(ColorSubtle)
	default:
		return base.Foreground(ColorWhite)
	}
}
