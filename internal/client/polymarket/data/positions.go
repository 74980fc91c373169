package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// OpenPositions fetches the full open-position snapshot for a wallet,
// walking pages until a short page. The endpoint only returns positions
// that are currently open; a position missing from the result has been
// closed (or the market ended) since the last pass.
func (c *Client) OpenPositions(ctx context.Context, walletAddress string) ([]Position, error) {
	if walletAddress == "" {
		return nil, fmt.Errorf("wallet address is required")
	}
	var all []Position
	offset := 0
	for {
		query := url.Values{}
		query.Set("user", walletAddress)
		query.Set("limit", strconv.Itoa(pageLimit))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("sortBy", "CURRENT")
		query.Set("sortDirection", "DESC")

		page, err := c.positionsPage(ctx, "/positions", query)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageLimit {
			return all, nil
		}
		offset += pageLimit
	}
}

// ClosedPositionsForMarket fetches the closed rows for one wallet+market.
// This is the follow-up call that resolves positions parked in
// CLOSED_NEED_DATA.
func (c *Client) ClosedPositionsForMarket(ctx context.Context, walletAddress, conditionID string) ([]Position, error) {
	if walletAddress == "" || conditionID == "" {
		return nil, fmt.Errorf("wallet address and condition id are required")
	}
	query := url.Values{}
	query.Set("user", walletAddress)
	query.Set("market", conditionID)
	query.Set("limit", strconv.Itoa(smallPageLimit))
	query.Set("sortBy", "TIMESTAMP")
	query.Set("sortDirection", "DESC")

	return c.positionsPage(ctx, "/closed-positions", query)
}

func (c *Client) positionsPage(ctx context.Context, path string, query url.Values) ([]Position, error) {
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var page []Position
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse positions: %w", err)
	}
	return page, nil
}
