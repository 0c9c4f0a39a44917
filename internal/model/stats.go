package model

// WeeklyStatsPoint is one day of the weekly consistency chart.
type WeeklyStatsPoint struct {
	Day        string  `json:"day"`
	Date       string  `json:"date,omitempty"`
	Completion float64 `json:"completion"`
}

// MonthlyStatsPoint is one week of the monthly completion chart.
type MonthlyStatsPoint struct {
	Week  string  `json:"week"`
	Count float64 `json:"count"`
}
