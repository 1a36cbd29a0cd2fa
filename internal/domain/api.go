package domain

import "time"

// Relay HTTP response bodies, shared by the handlers and the Go client.

type FeedStatus struct {
	Count     int       `json:"count"`
	LastFetch time.Time `json:"last_fetch"`
	Stale     bool      `json:"stale"`
}

type HealthResponse struct {
	Feeds      map[FeedKind]FeedStatus `json:"feeds"`
	ServerTime time.Time               `json:"server_time"`
}

type VehiclesResponse struct {
	Vehicles   []*VehiclePosition `json:"vehicles"`
	Count      int                `json:"count"`
	ServerTime time.Time          `json:"server_time"`
}

// NearbyItem flattens a vehicle and its distance into one JSON object.
type NearbyItem struct {
	*VehiclePosition
	DistanceMeters float64 `json:"distance_m"`
}

type NearbyResponse struct {
	Vehicles []NearbyItem `json:"vehicles"`
	Count    int          `json:"count"`
	Total    int          `json:"total"`
}

type AlertsResponse struct {
	Alerts []*ServiceAlert `json:"alerts"`
	Count  int             `json:"count"`
}

type PredictionsResponse struct {
	RouteID     string        `json:"route_id"`
	Predictions []*TripUpdate `json:"predictions"`
	Count       int           `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
