package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultHost       = "https://data-api.polymarket.com"
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second

	// Upstream page sizes. Positions and activity take up to 500 rows per
	// page; the closed-positions and leaderboard endpoints cap at 50.
	pageLimit      = 500
	smallPageLimit = 50
)

type Client struct {
	host       string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

// NewClient builds a data-api client. The limiter is shared across every
// caller of this client, so all worker goroutines draw from one token
// bucket rather than rate-limiting per worker.
func NewClient(httpClient *http.Client, host string, limiter *rate.Limiter) *Client {
	if host == "" {
		host = defaultHost
	}
	host = strings.TrimRight(host, "/")
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(10), 10)
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
		limiter:    limiter,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// doRequest performs one GET with the shared rate limit and bounded retry.
// 404 means "no data for this wallet/market" upstream and returns an empty
// body; 429 and 5xx are retried with backoff, anything else fails fast.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, retryable, err := c.attempt(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) attempt(ctx context.Context, fullURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false, err
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, &APIError{Status: resp.StatusCode, Body: string(body)}
	default:
		return nil, false, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
}
