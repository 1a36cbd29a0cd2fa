package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"transitpulse/internal/domain"
	"transitpulse/internal/eta"
	"transitpulse/internal/progress"
)

const (
	DefaultNearbyInterval = 30 * time.Second
	DefaultTripInterval   = 15 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultRetryDelay     = 5 * time.Second
	DefaultRadius         = 800.0
)

// NearbySource lists vehicles around a point, nearest first.
type NearbySource interface {
	Nearby(ctx context.Context, lat, lon, radius float64) ([]domain.VehicleDistance, error)
}

type Options struct {
	NearbyInterval time.Duration
	TripInterval   time.Duration
	FetchTimeout   time.Duration
	// RetryDelay is how soon a failed nearby fetch is retried, ahead of the
	// regular interval.
	RetryDelay time.Duration
	Radius     float64
	// Line restricts the nearby list to vehicles matching this line name.
	Line string
}

func (o Options) withDefaults() Options {
	if o.NearbyInterval <= 0 {
		o.NearbyInterval = DefaultNearbyInterval
	}
	if o.TripInterval <= 0 {
		o.TripInterval = DefaultTripInterval
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Radius <= 0 {
		o.Radius = DefaultRadius
	}
	return o
}

// Session drives one rider's live view: the nearby list, the active trip and
// location updates. All of its work runs through a single Scheduler, so the
// nearby refresh, trip ticks and location handling never interleave.
type Session struct {
	source    NearbySource
	engine    *eta.Engine
	tracker   *progress.Tracker
	locations <-chan domain.LatLon
	opts      Options
	sched     *Scheduler
	logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
	// OnNearby and OnTrip are invoked from scheduler callbacks.
	OnNearby func([]domain.NearbyVehicle)
	OnTrip   func(progress.State)

	mu       sync.Mutex
	position *domain.LatLon
	nearby   []domain.NearbyVehicle
	trip     *progress.State

	// retry is only touched from scheduler callbacks.
	retry Handle

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a session. tracker may be nil when no trip is active.
func New(source NearbySource, engine *eta.Engine, tracker *progress.Tracker, locations <-chan domain.LatLon, opts Options, logger *slog.Logger) *Session {
	return &Session{
		source:    source,
		engine:    engine,
		tracker:   tracker,
		locations: locations,
		opts:      opts.withDefaults(),
		sched:     NewScheduler(),
		logger:    logger.With("component", "session"),
		Now:       time.Now,
	}
}

// Start runs the first trip tick, registers the periodic timers and begins
// consuming locations. Callers must not call Start more than once.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.consumeLocations(ctx)

	s.sched.Do(func() { s.tickTrip() })
	s.sched.Every(s.opts.NearbyInterval, func() { s.refreshNearby(ctx) })
	if s.tracker != nil {
		s.sched.Every(s.opts.TripInterval, s.tickTrip)
	}
}

// Close cancels in-flight fetches and every timer, waits for the location
// goroutine and dismisses the trip notification. It must not be called from
// OnNearby or OnTrip.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.sched.Close()
		if s.done != nil {
			<-s.done
		}
		if s.tracker != nil {
			s.tracker.Close()
		}
	})
}

// Nearby returns the most recent resolved nearby list.
func (s *Session) Nearby() []domain.NearbyVehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.NearbyVehicle, len(s.nearby))
	copy(out, s.nearby)
	return out
}

func (s *Session) Trip() (progress.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trip == nil {
		return progress.State{}, false
	}
	return *s.trip, true
}

func (s *Session) Position() (domain.LatLon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil {
		return domain.LatLon{}, false
	}
	return *s.position, true
}

func (s *Session) consumeLocations(ctx context.Context) {
	defer close(s.done)
	if s.locations == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-s.locations:
			if !ok {
				return
			}
			if !s.sched.Do(func() { s.handleLocation(ctx, pos) }) {
				return
			}
		}
	}
}

func (s *Session) handleLocation(ctx context.Context, pos domain.LatLon) {
	if !domain.ValidCoordinate(pos.Lat, pos.Lon) {
		s.logger.Debug("ignoring invalid location", "lat", pos.Lat, "lon", pos.Lon)
		return
	}

	s.mu.Lock()
	first := s.position == nil
	s.position = &pos
	s.mu.Unlock()

	if s.tracker != nil {
		s.tracker.UpdateLocation(s.Now(), pos)
	}
	// Don't wait a full interval for the first list.
	if first {
		s.refreshNearby(ctx)
	}
}

func (s *Session) refreshNearby(ctx context.Context) {
	pos, ok := s.Position()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	vehicles, err := s.source.Nearby(ctx, pos.Lat, pos.Lon, s.opts.Radius)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("nearby fetch failed, keeping previous list", "error", err)
			s.scheduleRetry(ctx)
		}
		return
	}
	s.cancelRetry()

	candidates := eta.NearestPerRoute(vehicles)
	if s.opts.Line != "" {
		candidates = eta.FilterByLine(candidates, s.opts.Line)
	}

	resolved, err := s.engine.Resolve(ctx, candidates)
	if err != nil {
		s.logger.Debug("eta resolution abandoned", "error", err)
		return
	}

	s.mu.Lock()
	s.nearby = resolved
	s.mu.Unlock()

	if s.OnNearby != nil {
		s.OnNearby(resolved)
	}
}

func (s *Session) scheduleRetry(ctx context.Context) {
	if s.retry != 0 {
		return
	}
	s.retry = s.sched.After(s.opts.RetryDelay, func() {
		s.retry = 0
		s.refreshNearby(ctx)
	})
}

func (s *Session) cancelRetry() {
	if s.retry != 0 {
		s.sched.Cancel(s.retry)
		s.retry = 0
	}
}

func (s *Session) tickTrip() {
	if s.tracker == nil {
		return
	}
	state := s.tracker.Tick(s.Now())

	s.mu.Lock()
	s.trip = &state
	s.mu.Unlock()

	if s.OnTrip != nil {
		s.OnTrip(state)
	}
}
