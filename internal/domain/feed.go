package domain

import (
	"sort"
	"time"
)

// FeedKind names one of the three GTFS-RT feeds the relay polls
type FeedKind string

const (
	FeedVehiclePositions FeedKind = "vehicle_positions"
	FeedTripUpdates      FeedKind = "trip_updates"
	FeedServiceAlerts    FeedKind = "service_alerts"
)

// FeedKinds lists every feed in polling order.
var FeedKinds = []FeedKind{FeedVehiclePositions, FeedTripUpdates, FeedServiceAlerts}

// Snapshot is the complete decoded content of one feed as of a single
// successful poll. It is built once and never mutated afterwards.
type Snapshot[T any] struct {
	Entities      map[string]T
	FetchedAt     time.Time
	FeedTimestamp time.Time
	EntityCount   int
}

// NewSnapshot wraps entities into a snapshot stamped with fetchedAt.
func NewSnapshot[T any](entities map[string]T, fetchedAt, feedTimestamp time.Time) *Snapshot[T] {
	if entities == nil {
		entities = make(map[string]T)
	}
	return &Snapshot[T]{
		Entities:      entities,
		FetchedAt:     fetchedAt,
		FeedTimestamp: feedTimestamp,
		EntityCount:   len(entities),
	}
}

// Sorted returns the entities ordered by id, for stable API output.
func (s *Snapshot[T]) Sorted() []T {
	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]T, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.Entities[id])
	}
	return result
}

// StopTimeRelationship mirrors the StopTimeUpdate schedule relationship
type StopTimeRelationship string

const (
	StopTimeScheduled StopTimeRelationship = "SCHEDULED"
	StopTimeSkipped   StopTimeRelationship = "SKIPPED"
	StopTimeNoData    StopTimeRelationship = "NO_DATA"
)

// StopTimeEvent is a predicted arrival or departure
type StopTimeEvent struct {
	Time  time.Time `json:"time"`
	Delay int32     `json:"delay"`
}

// StopTimeUpdate is a prediction for one stop on one trip
type StopTimeUpdate struct {
	StopID       string               `json:"stop_id"`
	StopSequence *int                 `json:"stop_sequence,omitempty"`
	Arrival      *StopTimeEvent       `json:"arrival,omitempty"`
	Departure    *StopTimeEvent       `json:"departure,omitempty"`
	Relationship StopTimeRelationship `json:"schedule_relationship"`
}

// ArrivalTime returns the predicted arrival, if the update carries a usable one.
func (u *StopTimeUpdate) ArrivalTime() (time.Time, bool) {
	if u.Relationship == StopTimeSkipped || u.Relationship == StopTimeNoData {
		return time.Time{}, false
	}
	if u.Arrival == nil || u.Arrival.Time.IsZero() {
		return time.Time{}, false
	}
	return u.Arrival.Time, true
}

// TripUpdate carries the sparse stop-time predictions for one trip
type TripUpdate struct {
	ID              string           `json:"id"`
	TripID          string           `json:"trip_id"`
	RouteID         string           `json:"route_id"`
	DirectionID     *int             `json:"direction_id,omitempty"`
	VehicleID       string           `json:"vehicle_id,omitempty"`
	StopTimeUpdates []StopTimeUpdate `json:"stop_time_updates"`
	Timestamp       time.Time        `json:"timestamp"`
}

// TimeRange is an alert active period; zero bounds are open
type TimeRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// ServiceAlert is a decoded GTFS-RT alert
type ServiceAlert struct {
	ID            string      `json:"id"`
	Header        string      `json:"header"`
	Description   string      `json:"description"`
	URL           string      `json:"url,omitempty"`
	RouteIDs      []string    `json:"route_ids"`
	StopIDs       []string    `json:"stop_ids,omitempty"`
	ActivePeriods []TimeRange `json:"active_periods,omitempty"`
	Cause         string      `json:"cause"`
	Effect        string      `json:"effect"`
	SeverityLevel string      `json:"severity_level,omitempty"`
}

// SystemWide reports whether the alert names no specific route.
func (a *ServiceAlert) SystemWide() bool {
	return len(a.RouteIDs) == 0
}

// AffectsAny is the any-of test against a caller filter list. An alert
// with no affected routes always matches.
func (a *ServiceAlert) AffectsAny(routeIDs []string) bool {
	if a.SystemWide() || len(routeIDs) == 0 {
		return true
	}
	for _, want := range routeIDs {
		for _, have := range a.RouteIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// ActiveAt reports whether t falls in any active period. No periods means always active.
func (a *ServiceAlert) ActiveAt(t time.Time) bool {
	if len(a.ActivePeriods) == 0 {
		return true
	}
	for _, p := range a.ActivePeriods {
		if p.Contains(t) {
			return true
		}
	}
	return false
}
