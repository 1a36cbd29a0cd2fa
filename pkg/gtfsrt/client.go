package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxFeedSize caps how much of a feed response body is read.
const MaxFeedSize = 16 << 20

var ErrUnexpectedStatus = errors.New("unexpected status code")

// Client fetches raw GTFS-RT protobuf payloads over HTTP.
type Client struct {
	apiKey       string
	apiKeyHeader string
	httpClient   *http.Client
}

func NewClient(apiKey, apiKeyHeader string) *Client {
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}
	return &Client{
		apiKey:       apiKey,
		apiKeyHeader: apiKeyHeader,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch downloads a single feed. The caller bounds the request through ctx.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/x-protobuf, application/octet-stream")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > MaxFeedSize {
		return nil, fmt.Errorf("feed exceeds %d bytes", MaxFeedSize)
	}
	return data, nil
}
