package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"transitpulse/internal/domain"
	"transitpulse/internal/kvstore"
	"transitpulse/internal/notify"
)

// DestinationRadiusMeters is the distance at which the arrival alert fires.
const DestinationRadiusMeters = 400.0

// AccessibleDestinationRadiusMeters applies when the rider has accessibility
// mode on, so the alert leaves more time to get ready.
const AccessibleDestinationRadiusMeters = 600.0

const clockLayout = "15:04"

var ErrNoItinerary = errors.New("no itinerary available")

// State is the tracker's view of the trip after a Tick.
type State struct {
	CurrentStepIndex   int
	Step               domain.Step
	StopsRemaining     *int
	Offline            bool
	DestinationAlerted bool
}

// Tracker derives trip progress from wall-clock time against a fixed itinerary.
// The active step only moves forward; stops remaining only counts down while
// the step is unchanged. Transfer and destination alerts fire at most once.
type Tracker struct {
	itinerary domain.Itinerary
	offline   bool
	notifier  notify.Notifier
	logger    *slog.Logger

	mu                 sync.Mutex
	stepIndex          int
	remaining          int
	remainingStep      int
	transferAlerted    map[int]bool
	destinationRadius  float64
	destinationAlerted bool
	closed             bool
}

func NewTracker(it domain.Itinerary, offline bool, notifier notify.Notifier, logger *slog.Logger) *Tracker {
	return &Tracker{
		itinerary:         it,
		offline:           offline,
		notifier:          notifier,
		logger:            logger.With("component", "trip_tracker", "itinerary_id", it.ID),
		remainingStep:     -1,
		transferAlerted:   make(map[int]bool),
		destinationRadius: DestinationRadiusMeters,
	}
}

// Resume starts a tracker from a freshly fetched itinerary, caching it, or
// from the cached one in offline mode when live is nil.
func Resume(ctx context.Context, kv kvstore.Store, live *domain.Itinerary, notifier notify.Notifier, logger *slog.Logger) (*Tracker, error) {
	if live != nil {
		if err := kvstore.SetJSON(ctx, kv, kvstore.KeyLastItinerary, live); err != nil {
			logger.Warn("caching itinerary failed", "error", err)
		}
		return NewTracker(*live, false, notifier, logger), nil
	}

	var cached domain.Itinerary
	err := kvstore.GetJSON(ctx, kv, kvstore.KeyLastItinerary, &cached)
	if kvstore.IsAbsent(err) {
		return nil, ErrNoItinerary
	}
	if err != nil {
		return nil, fmt.Errorf("loading cached itinerary: %w", err)
	}
	if len(cached.Steps) == 0 {
		return nil, ErrNoItinerary
	}

	logger.Info("resuming from cached itinerary", "itinerary_id", cached.ID, "fetched_at", cached.FetchedAt)
	return NewTracker(cached, true, notifier, logger), nil
}

func (t *Tracker) Itinerary() domain.Itinerary {
	return t.itinerary
}

// Tick advances the state machine to now and refreshes the persistent notification.
func (t *Tracker) Tick(now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	steps := t.itinerary.Steps
	if len(steps) == 0 {
		return State{Offline: t.offline}
	}

	if idx := ActiveStepIndex(steps, now); idx > t.stepIndex {
		t.logger.Debug("step advanced", "from", t.stepIndex, "to", idx)
		t.stepIndex = idx
	}

	state := State{
		CurrentStepIndex:   t.stepIndex,
		Step:               steps[t.stepIndex],
		Offline:            t.offline,
		DestinationAlerted: t.destinationAlerted,
	}

	if step := steps[t.stepIndex]; step.IsTransit() {
		remaining := StopsRemaining(step, now)
		if t.remainingStep == t.stepIndex {
			remaining = min(remaining, t.remaining)
		}
		t.remaining, t.remainingStep = remaining, t.stepIndex
		state.StopsRemaining = &remaining
	}

	if t.closed {
		return state
	}
	t.fireTransferAlerts(now)
	t.pushPersistent(state)
	return state
}

// UpdateLocation checks the live position against the final coordinate and
// fires the arrival alert once. It reports whether the alert fired on this call.
func (t *Tracker) UpdateLocation(now time.Time, pos domain.LatLon) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destinationAlerted || t.closed {
		return false
	}
	dest, ok := t.itinerary.FinalCoordinate()
	if !ok {
		return false
	}

	d := pos.Distance(dest)
	if d >= t.destinationRadius {
		return false
	}

	t.destinationAlerted = true
	t.notifier.ScheduleImmediate("Almost there", fmt.Sprintf("Your destination is about %d m away", int(math.Round(d))))
	t.logger.Info("destination alert fired", "distance_m", d, "at", now)
	return true
}

// SetAccessible widens the destination alert radius when on.
func (t *Tracker) SetAccessible(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destinationRadius = DestinationRadiusMeters
	if on {
		t.destinationRadius = AccessibleDestinationRadiusMeters
	}
}

// Close dismisses the persistent notification and stops further updates.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.notifier.DismissPersistent()
}

func (t *Tracker) fireTransferAlerts(now time.Time) {
	last := t.itinerary.LastTransitIndex()
	for i, step := range t.itinerary.Steps {
		if !step.IsTransit() || i == last || step.NumStops <= 2 || t.transferAlerted[i] {
			continue
		}
		windowStart := step.ArrivalTime.Add(-2 * step.AvgStopDuration())
		if now.Before(windowStart) || !now.Before(step.ArrivalTime) {
			continue
		}

		t.transferAlerted[i] = true
		t.notifier.ScheduleImmediate("Transfer coming up", fmt.Sprintf("Get off at %s in 2 stops", step.ArrivalStop))
		t.logger.Info("transfer alert fired", "step", i, "stop", step.ArrivalStop)
	}
}

func (t *Tracker) pushPersistent(state State) {
	step := state.Step
	if !step.IsTransit() {
		// Walking: show the next ride, if any.
		for _, s := range t.itinerary.Steps[state.CurrentStepIndex:] {
			if s.IsTransit() {
				step = s
				break
			}
		}
	}

	label := step.LineName
	if label == "" {
		label = "Walk"
	}
	if t.offline {
		label += " (offline)"
	}

	arrival := ""
	if !step.ArrivalTime.IsZero() {
		arrival = step.ArrivalTime.Format(clockLayout)
	}
	t.notifier.UpdatePersistent(state.StopsRemaining, arrival, label)
}

// ActiveStepIndex returns the highest transit step index whose departure time
// has passed, scanning from the end. It is 0 before any departure.
func ActiveStepIndex(steps []domain.Step, now time.Time) int {
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.IsTransit() && !s.DepartureTime.IsZero() && !now.Before(s.DepartureTime) {
			return i
		}
	}
	return 0
}

// StopsRemaining interpolates linearly between departure and arrival.
// It equals NumStops at departure and 0 at or after arrival.
func StopsRemaining(step domain.Step, now time.Time) int {
	if step.NumStops <= 0 {
		return 0
	}

	var progress float64
	span := step.ArrivalTime.Sub(step.DepartureTime)
	switch {
	case !now.Before(step.ArrivalTime):
		progress = 1
	case span <= 0 || now.Before(step.DepartureTime):
		progress = 0
	default:
		progress = float64(now.Sub(step.DepartureTime)) / float64(span)
	}

	return max(0, step.NumStops-int(math.Floor(progress*float64(step.NumStops))))
}
