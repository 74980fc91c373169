package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Leaderboard fetches one page of the all-time leaderboard for a category,
// ordered by pnl descending. Discovery pages through categories itself so
// it can stop early once entries drop below its pnl threshold.
func (c *Client) Leaderboard(ctx context.Context, category string, offset, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > smallPageLimit {
		limit = smallPageLimit
	}
	query := url.Values{}
	query.Set("timePeriod", "all")
	query.Set("orderBy", "PNL")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	if category != "" {
		query.Set("category", category)
	}

	body, err := c.doRequest(ctx, "/v1/leaderboard", query)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var page []LeaderboardEntry
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard: %w", err)
	}
	return page, nil
}
