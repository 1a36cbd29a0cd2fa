package eta

import (
	"math"
	"sort"
	"time"

	"transitpulse/internal/domain"
)

// HeuristicMetersPerMinute assumes roughly 5 m/s average urban transit speed.
const HeuristicMetersPerMinute = 300.0

// Heuristic estimates minutes to arrival from distance alone. Never below 1.
func Heuristic(distanceMeters float64) int {
	return max(1, int(math.Round(distanceMeters/HeuristicMetersPerMinute)))
}

// Correlate resolves an ETA for one vehicle against its route's trip updates.
//
// The vehicle's trip is looked up by trip id. With a current stop sequence, the
// next stop (smallest greater sequence) that has an arrival time wins. Otherwise,
// or when no such stop exists, the earliest future arrival in the trip is used.
// Without either the distance heuristic applies and IsRealtime is false.
func Correlate(v *domain.VehiclePosition, distanceMeters float64, updates []*domain.TripUpdate, now time.Time) domain.NearbyVehicle {
	out := domain.NearbyVehicle{
		Vehicle:        v,
		RouteID:        v.RouteID,
		DistanceMeters: distanceMeters,
	}

	if tu := tripFor(v.TripID, updates); tu != nil {
		stu, ok := nextBySequence(v, tu)
		if !ok {
			stu, ok = earliestFuture(tu, now)
		}
		if ok {
			arrival, _ := stu.ArrivalTime()
			out.EstimatedArrivalMins = minutesUntil(arrival, now)
			out.IsRealtime = true
			out.StopID = stu.StopID
			return out
		}
	}

	out.EstimatedArrivalMins = Heuristic(distanceMeters)
	return out
}

func tripFor(tripID string, updates []*domain.TripUpdate) *domain.TripUpdate {
	if tripID == "" {
		return nil
	}
	for _, tu := range updates {
		if tu.TripID == tripID {
			return tu
		}
	}
	return nil
}

func nextBySequence(v *domain.VehiclePosition, tu *domain.TripUpdate) (domain.StopTimeUpdate, bool) {
	if v.CurrentStopSequence == nil {
		return domain.StopTimeUpdate{}, false
	}
	current := *v.CurrentStopSequence

	var best domain.StopTimeUpdate
	found := false
	for _, stu := range tu.StopTimeUpdates {
		if stu.StopSequence == nil || *stu.StopSequence <= current {
			continue
		}
		if _, ok := stu.ArrivalTime(); !ok {
			continue
		}
		if !found || *stu.StopSequence < *best.StopSequence {
			best = stu
			found = true
		}
	}
	return best, found
}

func earliestFuture(tu *domain.TripUpdate, now time.Time) (domain.StopTimeUpdate, bool) {
	var best domain.StopTimeUpdate
	var bestAt time.Time
	found := false
	for _, stu := range tu.StopTimeUpdates {
		at, ok := stu.ArrivalTime()
		if !ok || !at.After(now) {
			continue
		}
		if !found || at.Before(bestAt) {
			best, bestAt = stu, at
			found = true
		}
	}
	return best, found
}

func minutesUntil(at, now time.Time) int {
	return max(0, int(math.Round(at.Sub(now).Minutes())))
}

// SortAndTruncate orders by ETA, then distance, and keeps at most n entries.
func SortAndTruncate(vehicles []domain.NearbyVehicle, n int) []domain.NearbyVehicle {
	sort.SliceStable(vehicles, func(i, j int) bool {
		if vehicles[i].EstimatedArrivalMins != vehicles[j].EstimatedArrivalMins {
			return vehicles[i].EstimatedArrivalMins < vehicles[j].EstimatedArrivalMins
		}
		return vehicles[i].DistanceMeters < vehicles[j].DistanceMeters
	})
	if n > 0 && len(vehicles) > n {
		vehicles = vehicles[:n]
	}
	return vehicles
}
