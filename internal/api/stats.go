package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/nhle/habitboard/internal/model"
)

// WeeklyStats fetches one completion point per day in [from, to]. Malformed
// dates yield an empty result without a request.
func (c *Client) WeeklyStats(ctx context.Context, from, to string) ([]model.WeeklyStatsPoint, error) {
	if !model.IsDate(from) || !model.IsDate(to) {
		return []model.WeeklyStatsPoint{}, nil
	}

	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)

	var raw json.RawMessage
	if err := c.get(ctx, "/stats/weekly?"+q.Encode(), &raw); err != nil {
		log.Printf("fetching weekly stats %s..%s: %v", from, to, err)
		return []model.WeeklyStatsPoint{}, fmt.Errorf("fetching weekly stats: %w", err)
	}
	return decodeWeekly(raw), nil
}

// MonthlyStats fetches per-week completion counts for a month (1-12).
func (c *Client) MonthlyStats(ctx context.Context, year, month int) ([]model.MonthlyStatsPoint, error) {
	if month < 1 || month > 12 {
		return []model.MonthlyStatsPoint{}, nil
	}

	var raw json.RawMessage
	path := fmt.Sprintf("/stats/monthly?year=%d&month=%d", year, month)
	if err := c.get(ctx, path, &raw); err != nil {
		log.Printf("fetching monthly stats %d-%02d: %v", year, month, err)
		return []model.MonthlyStatsPoint{}, fmt.Errorf("fetching monthly stats: %w", err)
	}
	return decodeMonthly(raw), nil
}
