package handler

import (
	"net/http"
	"time"

	"transitpulse/internal/domain"
	"transitpulse/internal/store"
)

// ReadinessChecker reports whether every feed has loaded at least once.
type ReadinessChecker interface {
	IsReady() bool
}

type HealthHandler struct {
	ready ReadinessChecker
	cache *store.FeedCache
}

func NewHealthHandler(ready ReadinessChecker, cache *store.FeedCache) *HealthHandler {
	return &HealthHandler{ready: ready, cache: cache}
}

func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Health reports per-feed entity count, last fetch time and staleness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.HealthResponse{
		Feeds:      h.cache.Health(),
		ServerTime: time.Now(),
	})
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready        bool      `json:"ready"`
	VehicleCount int       `json:"vehicle_count"`
	ServerTime   time.Time `json:"server_time"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, ReadyResponse{
		Ready:        ready,
		VehicleCount: h.cache.Vehicles().EntityCount,
		ServerTime:   time.Now(),
	})
}
