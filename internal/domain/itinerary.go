package domain

import "time"

// StepMode distinguishes walking legs from transit rides
type StepMode string

const (
	StepWalk    StepMode = "WALK"
	StepTransit StepMode = "TRANSIT"
)

// Step is one leg of an itinerary. Walk steps use Distance, Duration and the
// optional Start/End coordinates; transit steps use the stop, time and line fields.
type Step struct {
	Mode     StepMode      `json:"mode"`
	Distance float64       `json:"distance,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Start    *LatLon       `json:"start,omitempty"`
	End      *LatLon       `json:"end,omitempty"`

	DepartureStop string    `json:"departure_stop,omitempty"`
	ArrivalStop   string    `json:"arrival_stop,omitempty"`
	DepartureTime time.Time `json:"departure_time,omitempty"`
	ArrivalTime   time.Time `json:"arrival_time,omitempty"`
	LineName      string    `json:"line_name,omitempty"`
	NumStops      int       `json:"num_stops,omitempty"`
}

// IsTransit reports whether the step is a transit ride.
func (s *Step) IsTransit() bool {
	return s.Mode == StepTransit
}

// AvgStopDuration is the ride time divided evenly across its stops.
func (s *Step) AvgStopDuration() time.Duration {
	if s.NumStops <= 0 {
		return 0
	}
	return s.ArrivalTime.Sub(s.DepartureTime) / time.Duration(s.NumStops)
}

// Itinerary is an ordered, immutable trip plan
type Itinerary struct {
	ID          string    `json:"id"`
	Steps       []Step    `json:"steps"`
	Destination *LatLon   `json:"destination,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// FinalCoordinate is the explicit destination, or else the end of the last step that has one.
func (it *Itinerary) FinalCoordinate() (LatLon, bool) {
	if it.Destination != nil {
		return *it.Destination, true
	}
	for i := len(it.Steps) - 1; i >= 0; i-- {
		if it.Steps[i].End != nil {
			return *it.Steps[i].End, true
		}
	}
	return LatLon{}, false
}

// LastTransitIndex returns the index of the final transit step, or -1.
func (it *Itinerary) LastTransitIndex() int {
	for i := len(it.Steps) - 1; i >= 0; i-- {
		if it.Steps[i].IsTransit() {
			return i
		}
	}
	return -1
}
