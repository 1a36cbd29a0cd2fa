package eta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"transitpulse/internal/domain"
)

func intPtr(i int) *int { return &i }

func stop(seq int, id string, arrival time.Time) domain.StopTimeUpdate {
	stu := domain.StopTimeUpdate{StopID: id, StopSequence: intPtr(seq), Relationship: domain.StopTimeScheduled}
	if !arrival.IsZero() {
		stu.Arrival = &domain.StopTimeEvent{Time: arrival}
	}
	return stu
}

var now = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func TestCorrelateNextStopBySequence(t *testing.T) {
	v := &domain.VehiclePosition{ID: "v1", RouteID: "504", TripID: "T", CurrentStopSequence: intPtr(3)}
	updates := []*domain.TripUpdate{
		{TripID: "other", StopTimeUpdates: []domain.StopTimeUpdate{stop(4, "x", now.Add(time.Minute))}},
		{TripID: "T", StopTimeUpdates: []domain.StopTimeUpdate{
			stop(2, "s2", now.Add(-time.Minute)),
			stop(3, "s3", now.Add(time.Minute)),
			stop(5, "s5", now.Add(7*time.Minute+20*time.Second)),
			stop(6, "s6", now.Add(9*time.Minute)),
		}},
	}

	got := Correlate(v, 1200, updates, now)
	assert.True(t, got.IsRealtime)
	assert.Equal(t, 7, got.EstimatedArrivalMins)
	assert.Equal(t, "s5", got.StopID)
	assert.Equal(t, "504", got.RouteID)
}

func TestCorrelateNoMatchingTripUsesHeuristic(t *testing.T) {
	v := &domain.VehiclePosition{ID: "v1", RouteID: "504", TripID: "T", CurrentStopSequence: intPtr(3)}
	updates := []*domain.TripUpdate{
		{TripID: "U", StopTimeUpdates: []domain.StopTimeUpdate{stop(5, "s5", now.Add(2*time.Minute))}},
	}

	got := Correlate(v, 1000, updates, now)
	assert.False(t, got.IsRealtime)
	assert.Equal(t, 3, got.EstimatedArrivalMins)
	assert.Empty(t, got.StopID)
}

func TestCorrelateEarliestFutureWithoutSequence(t *testing.T) {
	v := &domain.VehiclePosition{ID: "v1", RouteID: "504", TripID: "T"}
	updates := []*domain.TripUpdate{{TripID: "T", StopTimeUpdates: []domain.StopTimeUpdate{
		stop(8, "s8", now.Add(12*time.Minute)),
		stop(6, "s6", now.Add(-2*time.Minute)),
		stop(7, "s7", now.Add(4*time.Minute)),
	}}}

	got := Correlate(v, 500, updates, now)
	assert.True(t, got.IsRealtime)
	assert.Equal(t, 4, got.EstimatedArrivalMins)
	assert.Equal(t, "s7", got.StopID)
}

func TestCorrelateSequenceExhaustedFallsBackToFuture(t *testing.T) {
	// Vehicle reports a sequence past every update that carries one
	v := &domain.VehiclePosition{ID: "v1", RouteID: "504", TripID: "T", CurrentStopSequence: intPtr(10)}
	noSeq := domain.StopTimeUpdate{StopID: "sx", Arrival: &domain.StopTimeEvent{Time: now.Add(3 * time.Minute)}}
	updates := []*domain.TripUpdate{{TripID: "T", StopTimeUpdates: []domain.StopTimeUpdate{
		stop(9, "s9", now.Add(time.Minute)),
		noSeq,
	}}}

	got := Correlate(v, 500, updates, now)
	assert.True(t, got.IsRealtime)
	assert.Equal(t, "s9", got.StopID)
	assert.Equal(t, 1, got.EstimatedArrivalMins)
}

func TestCorrelateSkipsSkippedStopsAndClampsPast(t *testing.T) {
	v := &domain.VehiclePosition{ID: "v1", RouteID: "504", TripID: "T", CurrentStopSequence: intPtr(3)}
	skipped := stop(4, "s4", now.Add(time.Minute))
	skipped.Relationship = domain.StopTimeSkipped
	updates := []*domain.TripUpdate{{TripID: "T", StopTimeUpdates: []domain.StopTimeUpdate{
		skipped,
		stop(5, "s5", now.Add(-30*time.Second)),
	}}}

	got := Correlate(v, 500, updates, now)
	assert.True(t, got.IsRealtime)
	assert.Equal(t, "s5", got.StopID)
	assert.Equal(t, 0, got.EstimatedArrivalMins)
}

func TestCorrelateNoFutureArrivalUsesHeuristic(t *testing.T) {
	v := &domain.VehiclePosition{ID: "v1", RouteID: "504", TripID: "T"}
	updates := []*domain.TripUpdate{{TripID: "T", StopTimeUpdates: []domain.StopTimeUpdate{
		stop(2, "s2", now.Add(-time.Minute)),
		stop(3, "s3", time.Time{}),
	}}}

	got := Correlate(v, 100, updates, now)
	assert.False(t, got.IsRealtime)
	assert.Equal(t, 1, got.EstimatedArrivalMins)
}

func TestHeuristic(t *testing.T) {
	assert.Equal(t, 1, Heuristic(0))
	assert.Equal(t, 1, Heuristic(449))
	assert.Equal(t, 2, Heuristic(450))
	assert.Equal(t, 10, Heuristic(3000))
}

func TestSortAndTruncate(t *testing.T) {
	in := []domain.NearbyVehicle{
		{RouteID: "a", EstimatedArrivalMins: 9},
		{RouteID: "b", EstimatedArrivalMins: 2, DistanceMeters: 500},
		{RouteID: "c", EstimatedArrivalMins: 2, DistanceMeters: 100},
		{RouteID: "d", EstimatedArrivalMins: 5},
		{RouteID: "e", EstimatedArrivalMins: 1},
	}
	got := SortAndTruncate(in, 4)

	var routes []string
	for _, nv := range got {
		routes = append(routes, nv.RouteID)
	}
	assert.Equal(t, []string{"e", "c", "b", "d"}, routes)
}
