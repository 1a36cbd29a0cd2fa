package store

import (
	"sort"

	"transitpulse/internal/domain"
)

// DefaultNearbyLimit applies when VehiclesNear is called with limit <= 0.
const DefaultNearbyLimit = 10

// ListOptions filters VehiclesFiltered
type ListOptions struct {
	RouteID string
	BBox    *domain.BoundingBox
}

// VehiclesByRoute returns the vehicles on routeID, or all vehicles when routeID is empty.
func (c *FeedCache) VehiclesByRoute(routeID string) []*domain.VehiclePosition {
	return c.VehiclesFiltered(ListOptions{RouteID: routeID})
}

// VehiclesFiltered applies the route and bounding-box filters to the current snapshot.
func (c *FeedCache) VehiclesFiltered(opts ListOptions) []*domain.VehiclePosition {
	snap := c.vehicles.Load()

	result := make([]*domain.VehiclePosition, 0, len(snap.Entities))
	for _, v := range snap.Sorted() {
		if opts.RouteID != "" && v.RouteID != opts.RouteID {
			continue
		}
		if opts.BBox != nil && (!v.Locatable() || !opts.BBox.Contains(v.Lat, v.Lon)) {
			continue
		}
		copy := *v
		result = append(result, &copy)
	}
	return result
}

// VehiclesNear returns vehicles within radiusMeters of the point, nearest first,
// truncated to limit. The second return value is the count before truncation.
func (c *FeedCache) VehiclesNear(lat, lon, radiusMeters float64, limit int) ([]domain.VehicleDistance, int) {
	if limit <= 0 {
		limit = DefaultNearbyLimit
	}

	snap := c.vehicles.Load()

	matches := make([]domain.VehicleDistance, 0)
	for _, v := range snap.Entities {
		if !v.Locatable() {
			continue
		}
		d := domain.HaversineMeters(lat, lon, v.Lat, v.Lon)
		if d > radiusMeters {
			continue
		}
		copy := *v
		matches = append(matches, domain.VehicleDistance{Vehicle: &copy, DistanceMeters: d})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].Vehicle.ID < matches[j].Vehicle.ID
	})

	total := len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total
}

// AlertsForRoutes returns alerts that are system-wide or affect any of routeIDs.
// An empty routeIDs returns every alert.
func (c *FeedCache) AlertsForRoutes(routeIDs []string) []*domain.ServiceAlert {
	snap := c.alerts.Load()

	result := make([]*domain.ServiceAlert, 0, len(snap.Entities))
	for _, a := range snap.Sorted() {
		if a.AffectsAny(routeIDs) {
			result = append(result, a)
		}
	}
	return result
}

// PredictionsForRoute returns the trip updates whose route id equals routeID.
func (c *FeedCache) PredictionsForRoute(routeID string) []*domain.TripUpdate {
	snap := c.tripUpdates.Load()

	result := make([]*domain.TripUpdate, 0)
	for _, tu := range snap.Sorted() {
		if tu.RouteID == routeID {
			result = append(result, tu)
		}
	}
	return result
}

// SnapshotForTiles returns locatable vehicles in any of the given tiles.
func (c *FeedCache) SnapshotForTiles(tileIDs []string) []*domain.VehiclePosition {
	wanted := make(map[string]struct{}, len(tileIDs))
	for _, id := range tileIDs {
		wanted[id] = struct{}{}
	}

	snap := c.vehicles.Load()

	var result []*domain.VehiclePosition
	for _, v := range snap.Sorted() {
		if !v.Locatable() {
			continue
		}
		if _, ok := wanted[v.TileID]; ok {
			copy := *v
			result = append(result, &copy)
		}
	}
	return result
}
