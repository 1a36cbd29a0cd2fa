package eta

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"transitpulse/internal/domain"
)

const (
	DefaultMaxInFlight  = 4
	DefaultDisplayCount = 4
)

// PredictionSource returns the trip updates for one route.
type PredictionSource interface {
	Predictions(ctx context.Context, routeID string) ([]*domain.TripUpdate, error)
}

// Candidate is the nearest vehicle of one route.
type Candidate = domain.VehicleDistance

// NearestPerRoute keeps the closest vehicle of each route, ordered by distance.
func NearestPerRoute(vehicles []domain.VehicleDistance) []Candidate {
	best := make(map[string]Candidate)
	for _, vd := range vehicles {
		if vd.Vehicle == nil || vd.Vehicle.RouteID == "" {
			continue
		}
		cur, ok := best[vd.Vehicle.RouteID]
		if !ok || vd.DistanceMeters < cur.DistanceMeters ||
			(vd.DistanceMeters == cur.DistanceMeters && vd.Vehicle.ID < cur.Vehicle.ID) {
			best[vd.Vehicle.RouteID] = vd
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Vehicle.RouteID < out[j].Vehicle.RouteID
	})
	return out
}

type Engine struct {
	Source       PredictionSource
	MaxInFlight  int
	DisplayCount int
	Now          func() time.Time
	Logger       *slog.Logger
}

func NewEngine(source PredictionSource, logger *slog.Logger) *Engine {
	return &Engine{
		Source:       source,
		MaxInFlight:  DefaultMaxInFlight,
		DisplayCount: DefaultDisplayCount,
		Now:          time.Now,
		Logger:       logger.With("component", "eta"),
	}
}

// Resolve fetches predictions for every distinct route among candidates with
// bounded concurrency, then correlates each candidate. A route whose fetch
// fails is treated as having no predictions, so its vehicle gets the heuristic.
func (e *Engine) Resolve(ctx context.Context, candidates []Candidate) ([]domain.NearbyVehicle, error) {
	routes := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Vehicle.RouteID]; ok {
			continue
		}
		seen[c.Vehicle.RouteID] = struct{}{}
		routes = append(routes, c.Vehicle.RouteID)
	}

	var mu sync.Mutex
	byRoute := make(map[string][]*domain.TripUpdate, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.MaxInFlight))
	for _, route := range routes {
		g.Go(func() error {
			updates, err := e.Source.Predictions(gctx, route)
			if err != nil {
				e.logger().Warn("prediction fetch failed, using heuristic", "route_id", route, "error", err)
				return nil
			}
			mu.Lock()
			byRoute[route] = updates
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]domain.NearbyVehicle, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Correlate(c.Vehicle, c.DistanceMeters, byRoute[c.Vehicle.RouteID], now))
	}

	display := e.DisplayCount
	if display <= 0 {
		display = DefaultDisplayCount
	}
	return SortAndTruncate(out, display), nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
