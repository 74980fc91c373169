package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Activity fetches the raw trade activity for one wallet+market, newest
// first, walking pages until a short page. Pass nil timestamps for a full
// history fetch; pass the persisted watermark as start for an incremental
// one. The caller aggregates the result, so page boundaries never matter.
func (c *Client) Activity(ctx context.Context, walletAddress, conditionID string, start, end *int64) ([]Activity, error) {
	if walletAddress == "" || conditionID == "" {
		return nil, fmt.Errorf("wallet address and condition id are required")
	}
	var all []Activity
	offset := 0
	for {
		query := url.Values{}
		query.Set("user", walletAddress)
		query.Set("market", conditionID)
		query.Set("limit", strconv.Itoa(pageLimit))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("sortBy", "TIMESTAMP")
		query.Set("sortDirection", "DESC")
		if start != nil {
			query.Set("start", strconv.FormatInt(*start, 10))
		}
		if end != nil {
			query.Set("end", strconv.FormatInt(*end, 10))
		}

		body, err := c.doRequest(ctx, "/activity", query)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return all, nil
		}
		var page []Activity
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse activity: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageLimit {
			return all, nil
		}
		offset += pageLimit
	}
}

// LatestTimestamp returns the newest trade timestamp in the slice, or zero
// when empty. Persisted as the fetch watermark after a successful pass.
func LatestTimestamp(activities []Activity) int64 {
	var latest int64
	for _, a := range activities {
		if a.Timestamp > latest {
			latest = a.Timestamp
		}
	}
	return latest
}
