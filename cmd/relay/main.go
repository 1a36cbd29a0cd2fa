package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transitpulse/internal/config"
	"transitpulse/internal/domain"
	"transitpulse/internal/handler"
	"transitpulse/internal/hub"
	"transitpulse/internal/ingestor"
	"transitpulse/internal/metrics"
	"transitpulse/internal/middleware"
	"transitpulse/internal/store"
	"transitpulse/pkg/gtfsrt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"vehicle_interval", cfg.VehiclePollInterval,
		"trip_update_interval", cfg.TripUpdatePollInterval,
		"alert_interval", cfg.AlertPollInterval,
	)

	sources := []ingestor.FeedSource{
		{Kind: domain.FeedVehiclePositions, URL: cfg.VehiclePositionsURL, Interval: cfg.VehiclePollInterval},
		{Kind: domain.FeedTripUpdates, URL: cfg.TripUpdatesURL, Interval: cfg.TripUpdatePollInterval},
		{Kind: domain.FeedServiceAlerts, URL: cfg.ServiceAlertsURL, Interval: cfg.AlertPollInterval},
	}

	staleAfter := make(map[domain.FeedKind]time.Duration, len(sources))
	for _, src := range sources {
		staleAfter[src.Kind] = 3 * src.Interval
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.NewCollector()
	}

	cache := store.New(staleAfter)
	wsHub := hub.New(logger)
	if collector != nil {
		wsHub.OnCountChange = func(n int) { collector.WSClients.Set(float64(n)) }
	}

	poller := ingestor.New(
		gtfsrt.NewClient(cfg.FeedAPIKey, cfg.FeedAPIKeyHeader),
		cache,
		wsHub,
		collector,
		ingestor.Options{
			Sources:       sources,
			Timeout:       cfg.FeedTimeout,
			AlertLanguage: cfg.AlertLanguage,
			ZoomLevel:     cfg.TileZoomLevel,
		},
		logger,
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	api := http.NewServeMux()
	handler.NewHTTPHandler(cache, cfg.NearbyDefaultRadius).Register(api)
	handler.NewHealthHandler(poller, cache).Register(api)

	var apiHandler http.Handler = handler.MetricsMiddleware(collector)(api)
	apiHandler = limiter.Middleware(apiHandler)
	apiHandler = handler.CORSMiddleware(apiHandler)
	apiHandler = handler.GzipMiddleware(apiHandler)

	// The websocket route bypasses gzip since the upgrade needs the raw connection.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/ws", handler.NewWSHandler(wsHub, cache, cfg.TileZoomLevel, logger).ServeWS)
	if collector != nil {
		mux.Handle("GET /metrics", collector.Handler())
	}
	mux.Handle("/", apiHandler)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsHub.Run(ctx)
	go limiter.Run(ctx)

	pollerDone := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(pollerDone)
	}()

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	cancel()
	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		logger.Warn("poller did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
}
