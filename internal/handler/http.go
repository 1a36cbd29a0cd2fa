package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"transitpulse/internal/domain"
	"transitpulse/internal/store"
)

const (
	MaxNearbyRadius = 5000.0
	MaxNearbyLimit  = 50
)

type HTTPHandler struct {
	cache         *store.FeedCache
	defaultRadius float64
	now           func() time.Time
}

func NewHTTPHandler(cache *store.FeedCache, defaultRadius float64) *HTTPHandler {
	return &HTTPHandler{cache: cache, defaultRadius: defaultRadius, now: time.Now}
}

// Register mounts the query endpoints on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /vehicles", h.ListVehicles)
	mux.HandleFunc("GET /nearby", h.Nearby)
	mux.HandleFunc("GET /alerts", h.Alerts)
	mux.HandleFunc("GET /predictions", h.Predictions)
}

func (h *HTTPHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{RouteID: strings.TrimSpace(r.URL.Query().Get("route"))}

	if raw := r.URL.Query().Get("bbox"); raw != "" {
		bbox, err := parseBBox(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.BBox = bbox
	}

	vehicles := h.cache.VehiclesFiltered(opts)
	respondJSON(w, http.StatusOK, domain.VehiclesResponse{
		Vehicles:   vehicles,
		Count:      len(vehicles),
		ServerTime: h.now(),
	})
}

func (h *HTTPHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lon, err := parseFloatParam(q.Get("lon"), "lon")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondError(w, http.StatusBadRequest, "lat/lon out of range")
		return
	}

	radius := h.defaultRadius
	if raw := q.Get("radius"); raw != "" {
		radius, err = parseFloatParam(raw, "radius")
		if err != nil || radius <= 0 || radius > MaxNearbyRadius {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("radius must be a number in (0, %.0f]", MaxNearbyRadius))
			return
		}
	}

	limit := store.DefaultNearbyLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxNearbyLimit {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer in [1, %d]", MaxNearbyLimit))
			return
		}
	}

	matches, total := h.cache.VehiclesNear(lat, lon, radius, limit)

	items := make([]domain.NearbyItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, domain.NearbyItem{VehiclePosition: m.Vehicle, DistanceMeters: math.Round(m.DistanceMeters)})
	}

	respondJSON(w, http.StatusOK, domain.NearbyResponse{
		Vehicles: items,
		Count:    len(items),
		Total:    total,
	})
}

func (h *HTTPHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	routes := splitList(r.URL.Query().Get("routes"))

	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = b
	}

	now := h.now()
	alerts := make([]*domain.ServiceAlert, 0)
	for _, a := range h.cache.AlertsForRoutes(routes) {
		if activeOnly && !a.ActiveAt(now) {
			continue
		}
		alerts = append(alerts, a)
	}

	respondJSON(w, http.StatusOK, domain.AlertsResponse{Alerts: alerts, Count: len(alerts)})
}

func (h *HTTPHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	route := strings.TrimSpace(r.URL.Query().Get("route"))
	if route == "" {
		respondError(w, http.StatusBadRequest, "missing required parameter: route")
		return
	}

	predictions := h.cache.PredictionsForRoute(route)
	respondJSON(w, http.StatusOK, domain.PredictionsResponse{
		RouteID:     route,
		Predictions: predictions,
		Count:       len(predictions),
	})
}

func parseFloatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return f, nil
}

func parseBBox(raw string) (*domain.BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, errors.New("invalid bbox format: expected minLat,minLon,maxLat,maxLon")
	}

	var vals [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox value %q", p)
		}
		vals[i] = f
	}

	bbox := &domain.BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if bbox.MinLat > bbox.MaxLat || bbox.MinLon > bbox.MaxLon {
		return nil, errors.New("invalid bbox: min must not exceed max")
	}
	return bbox, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.ErrorResponse{Error: message})
}
