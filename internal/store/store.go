package store

import (
	"sync/atomic"
	"time"

	"transitpulse/internal/domain"
)

// FeedHealth summarises one feed slot for the health endpoint
type FeedHealth = domain.FeedStatus

// FeedCache owns the latest snapshot of each feed. Each slot is swapped with a
// single atomic store, so readers never block and never see a partial poll.
type FeedCache struct {
	vehicles    atomic.Pointer[domain.Snapshot[*domain.VehiclePosition]]
	tripUpdates atomic.Pointer[domain.Snapshot[*domain.TripUpdate]]
	alerts      atomic.Pointer[domain.Snapshot[*domain.ServiceAlert]]

	staleAfter map[domain.FeedKind]time.Duration
	now        func() time.Time
}

// New creates an empty cache. staleAfter maps each feed to the age after
// which its snapshot is reported stale; missing entries never go stale.
func New(staleAfter map[domain.FeedKind]time.Duration) *FeedCache {
	c := &FeedCache{
		staleAfter: staleAfter,
		now:        time.Now,
	}
	c.vehicles.Store(domain.NewSnapshot[*domain.VehiclePosition](nil, time.Time{}, time.Time{}))
	c.tripUpdates.Store(domain.NewSnapshot[*domain.TripUpdate](nil, time.Time{}, time.Time{}))
	c.alerts.Store(domain.NewSnapshot[*domain.ServiceAlert](nil, time.Time{}, time.Time{}))
	return c
}

// ReplaceVehicles swaps in a new vehicle snapshot and returns the deltas
// against the previous one for live subscribers.
func (c *FeedCache) ReplaceVehicles(next *domain.Snapshot[*domain.VehiclePosition]) []domain.VehicleDelta {
	prev := c.vehicles.Swap(next)
	return diffVehicles(prev, next)
}

func (c *FeedCache) ReplaceTripUpdates(next *domain.Snapshot[*domain.TripUpdate]) {
	c.tripUpdates.Store(next)
}

func (c *FeedCache) ReplaceAlerts(next *domain.Snapshot[*domain.ServiceAlert]) {
	c.alerts.Store(next)
}

func (c *FeedCache) Vehicles() *domain.Snapshot[*domain.VehiclePosition] {
	return c.vehicles.Load()
}

func (c *FeedCache) TripUpdates() *domain.Snapshot[*domain.TripUpdate] {
	return c.tripUpdates.Load()
}

func (c *FeedCache) Alerts() *domain.Snapshot[*domain.ServiceAlert] {
	return c.alerts.Load()
}

// Health reports entity count, last successful fetch and staleness per feed.
func (c *FeedCache) Health() map[domain.FeedKind]FeedHealth {
	v := c.vehicles.Load()
	tu := c.tripUpdates.Load()
	a := c.alerts.Load()

	return map[domain.FeedKind]FeedHealth{
		domain.FeedVehiclePositions: c.health(domain.FeedVehiclePositions, v.EntityCount, v.FetchedAt),
		domain.FeedTripUpdates:      c.health(domain.FeedTripUpdates, tu.EntityCount, tu.FetchedAt),
		domain.FeedServiceAlerts:    c.health(domain.FeedServiceAlerts, a.EntityCount, a.FetchedAt),
	}
}

func (c *FeedCache) health(kind domain.FeedKind, count int, lastFetch time.Time) FeedHealth {
	stale := lastFetch.IsZero()
	if limit, ok := c.staleAfter[kind]; ok && limit > 0 && !stale {
		stale = c.now().Sub(lastFetch) > limit
	}
	return FeedHealth{Count: count, LastFetch: lastFetch, Stale: stale}
}

// Loaded reports whether every feed has completed at least one successful poll.
func (c *FeedCache) Loaded() bool {
	return !c.vehicles.Load().FetchedAt.IsZero() &&
		!c.tripUpdates.Load().FetchedAt.IsZero() &&
		!c.alerts.Load().FetchedAt.IsZero()
}

func diffVehicles(prev, next *domain.Snapshot[*domain.VehiclePosition]) []domain.VehicleDelta {
	deltas := make([]domain.VehicleDelta, 0, len(next.Entities))

	for key, v := range next.Entities {
		if !v.Locatable() {
			continue
		}
		old, exists := prev.Entities[key]
		if exists && old.Locatable() && !hasChanged(old, v) {
			continue
		}
		deltas = append(deltas, domain.VehicleDelta{
			Type:    domain.DeltaUpdate,
			Vehicle: v,
			TileID:  v.TileID,
		})
	}

	for key, old := range prev.Entities {
		if !old.Locatable() {
			continue
		}
		if v, ok := next.Entities[key]; ok && v.Locatable() {
			continue
		}
		deltas = append(deltas, domain.VehicleDelta{
			Type:   domain.DeltaRemove,
			Key:    key,
			TileID: old.TileID,
		})
	}

	return deltas
}

func hasChanged(old, new *domain.VehiclePosition) bool {
	const epsilon = 0.000001

	if old.RouteID != new.RouteID || old.TripID != new.TripID {
		return true
	}

	latDiff := old.Lat - new.Lat
	if latDiff < 0 {
		latDiff = -latDiff
	}
	lonDiff := old.Lon - new.Lon
	if lonDiff < 0 {
		lonDiff = -lonDiff
	}

	if latDiff > epsilon || lonDiff > epsilon {
		return true
	}

	if !old.Timestamp.Equal(new.Timestamp) {
		return true
	}

	return false
}
