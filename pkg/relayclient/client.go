package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"transitpulse/internal/domain"
)

const DefaultTimeout = 10 * time.Second

var (
	ErrBadRequest       = errors.New("relay rejected request")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Client queries the relay's JSON endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Nearby returns vehicles within radius meters of the point, nearest first.
// A radius <= 0 lets the relay apply its default.
func (c *Client) Nearby(ctx context.Context, lat, lon, radius float64) ([]domain.VehicleDistance, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if radius > 0 {
		q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	}

	var resp domain.NearbyResponse
	if err := c.get(ctx, "/nearby", q, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.VehicleDistance, 0, len(resp.Vehicles))
	for _, item := range resp.Vehicles {
		if item.VehiclePosition == nil {
			continue
		}
		item.VehiclePosition.HasPosition = true
		out = append(out, domain.VehicleDistance{Vehicle: item.VehiclePosition, DistanceMeters: item.DistanceMeters})
	}
	return out, nil
}

// Predictions returns the trip updates of one route.
func (c *Client) Predictions(ctx context.Context, routeID string) ([]*domain.TripUpdate, error) {
	q := url.Values{}
	q.Set("route", routeID)

	var resp domain.PredictionsResponse
	if err := c.get(ctx, "/predictions", q, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

func (c *Client) Alerts(ctx context.Context, routeIDs []string) ([]*domain.ServiceAlert, error) {
	q := url.Values{}
	if len(routeIDs) > 0 {
		q.Set("routes", strings.Join(routeIDs, ","))
	}

	var resp domain.AlertsResponse
	if err := c.get(ctx, "/alerts", q, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

func (c *Client) Health(ctx context.Context) (*domain.HealthResponse, error) {
	var resp domain.HealthResponse
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		var body domain.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		return fmt.Errorf("%w: %s", ErrBadRequest, body.Error)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
