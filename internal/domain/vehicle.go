package domain

import "time"

// VehicleStatus mirrors the GTFS-RT VehicleStopStatus enum
type VehicleStatus string

const (
	StatusIncomingAt  VehicleStatus = "INCOMING_AT"
	StatusStoppedAt   VehicleStatus = "STOPPED_AT"
	StatusInTransitTo VehicleStatus = "IN_TRANSIT_TO"
)

// VehiclePosition represents a single decoded vehicle position entity
type VehiclePosition struct {
	ID                  string        `json:"id"`
	VehicleID           string        `json:"vehicle_id,omitempty"`
	Label               string        `json:"label,omitempty"`
	RouteID             string        `json:"route_id"`
	TripID              string        `json:"trip_id"`
	DirectionID         *int          `json:"direction_id,omitempty"`
	HasPosition         bool          `json:"-"`
	Lat                 float64       `json:"lat"`
	Lon                 float64       `json:"lon"`
	Bearing             float64       `json:"bearing"`
	Speed               float64       `json:"speed"`
	CurrentStopSequence *int          `json:"current_stop_sequence,omitempty"`
	StopID              string        `json:"stop_id,omitempty"`
	CurrentStatus       VehicleStatus `json:"current_status,omitempty"`
	Timestamp           time.Time     `json:"timestamp"`
	TileID              string        `json:"tile_id,omitempty"`
}

// Locatable reports whether the vehicle carries a usable coordinate.
func (v *VehiclePosition) Locatable() bool {
	return v.HasPosition && ValidCoordinate(v.Lat, v.Lon)
}

// VehicleDistance pairs a vehicle with its distance from a query point
type VehicleDistance struct {
	Vehicle        *VehiclePosition `json:"vehicle"`
	DistanceMeters float64          `json:"distance_m"`
}

// NearbyVehicle is the nearest vehicle of one route with a resolved ETA
type NearbyVehicle struct {
	Vehicle              *VehiclePosition `json:"vehicle"`
	RouteID              string           `json:"route_id"`
	DistanceMeters       float64          `json:"distance_m"`
	EstimatedArrivalMins int              `json:"estimated_arrival_mins"`
	IsRealtime           bool             `json:"is_realtime"`
	StopID               string           `json:"stop_id,omitempty"`
}

// DeltaType indicates whether a vehicle was updated or removed
type DeltaType string

const (
	DeltaUpdate DeltaType = "update"
	DeltaRemove DeltaType = "remove"
)

// VehicleDelta represents a change in vehicle state between two snapshots
type VehicleDelta struct {
	Type    DeltaType        `json:"type"`
	Vehicle *VehiclePosition `json:"vehicle,omitempty"`
	Key     string           `json:"key,omitempty"`
	TileID  string           `json:"tileId"`
}

// BoundingBox represents a geographic rectangle
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// Contains checks if a point is within the bounding box
func (bb *BoundingBox) Contains(lat, lon float64) bool {
	return lat >= bb.MinLat && lat <= bb.MaxLat &&
		lon >= bb.MinLon && lon <= bb.MaxLon
}
