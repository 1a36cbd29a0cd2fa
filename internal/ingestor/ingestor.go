package ingestor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"transitpulse/internal/domain"
	"transitpulse/internal/hub"
	"transitpulse/internal/metrics"
	"transitpulse/internal/store"
	"transitpulse/pkg/gtfsrt"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Broadcaster interface {
	Broadcast(deltas []domain.VehicleDelta)
}

// FeedSource describes one polled feed.
type FeedSource struct {
	Kind     domain.FeedKind
	URL      string
	Interval time.Duration
}

type Options struct {
	Sources       []FeedSource
	Timeout       time.Duration
	AlertLanguage string
	ZoomLevel     int
}

// Poller runs one ticker loop per feed. Each feed has a single-flight guard:
// a tick that finds the previous fetch still running is dropped, not queued.
type Poller struct {
	fetcher     Fetcher
	cache       *store.FeedCache
	broadcaster Broadcaster
	metrics     *metrics.Collector
	opts        Options
	logger      *slog.Logger

	inFlight map[domain.FeedKind]*atomic.Bool
	now      func() time.Time

	ready   map[domain.FeedKind]bool
	readyMu sync.RWMutex
}

func New(fetcher Fetcher, cache *store.FeedCache, broadcaster Broadcaster, m *metrics.Collector, opts Options, logger *slog.Logger) *Poller {
	inFlight := make(map[domain.FeedKind]*atomic.Bool, len(opts.Sources))
	for _, src := range opts.Sources {
		inFlight[src.Kind] = &atomic.Bool{}
	}
	return &Poller{
		fetcher:     fetcher,
		cache:       cache,
		broadcaster: broadcaster,
		metrics:     m,
		opts:        opts,
		logger:      logger.With("component", "poller"),
		inFlight:    inFlight,
		now:         time.Now,
		ready:       make(map[domain.FeedKind]bool),
	}
}

// Run starts every feed loop and blocks until ctx is cancelled and all loops have exited.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range p.opts.Sources {
		wg.Add(1)
		go func(src FeedSource) {
			defer wg.Done()
			p.loop(ctx, src)
		}(src)
	}
	wg.Wait()
}

func (p *Poller) loop(ctx context.Context, src FeedSource) {
	ticker := time.NewTicker(src.Interval)
	defer ticker.Stop()

	var ticks sync.WaitGroup
	defer ticks.Wait()

	run := func() {
		ticks.Add(1)
		go func() {
			defer ticks.Done()
			p.tick(ctx, src)
		}()
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// tick polls once unless a poll of the same feed is already running.
func (p *Poller) tick(ctx context.Context, src FeedSource) {
	guard := p.inFlight[src.Kind]
	if !guard.CompareAndSwap(false, true) {
		p.logger.Debug("previous fetch still running, skipping tick", "feed", src.Kind)
		p.metrics.TickSkipped(src.Kind)
		return
	}
	defer guard.Store(false)

	if err := p.PollOnce(ctx, src.Kind); err != nil {
		p.logger.Error("feed poll failed, keeping previous snapshot",
			"feed", src.Kind,
			"error", err,
			"last_fetch", p.cache.Health()[src.Kind].LastFetch,
		)
	}
}

// PollOnce fetches and decodes one feed and replaces its snapshot on success.
// On any error the cached snapshot is left untouched.
func (p *Poller) PollOnce(ctx context.Context, kind domain.FeedKind) error {
	src, ok := p.source(kind)
	if !ok {
		return fmt.Errorf("feed %s is not configured", kind)
	}

	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	data, err := p.fetcher.Fetch(fetchCtx, src.URL)
	if err != nil {
		p.metrics.FeedFailed(src.Kind, time.Since(start))
		return fmt.Errorf("fetching %s: %w", src.Kind, err)
	}

	fetchedAt := p.now()
	count, err := p.apply(src.Kind, data, fetchedAt)
	if err != nil {
		p.metrics.FeedFailed(src.Kind, time.Since(start))
		return fmt.Errorf("decoding %s: %w", src.Kind, err)
	}

	p.metrics.FeedSucceeded(src.Kind, time.Since(start), count, fetchedAt)
	p.markReady(src.Kind, count)

	p.logger.Debug("poll completed",
		"feed", src.Kind,
		"entities", count,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Poller) apply(kind domain.FeedKind, data []byte, fetchedAt time.Time) (int, error) {
	switch kind {
	case domain.FeedVehiclePositions:
		decoded, err := gtfsrt.DecodeVehiclePositions(data)
		if err != nil {
			return 0, err
		}
		for _, v := range decoded.Entities {
			if v.Locatable() {
				v.TileID = hub.TileID(v.Lat, v.Lon, p.opts.ZoomLevel)
			}
		}
		deltas := p.cache.ReplaceVehicles(domain.NewSnapshot(decoded.Entities, fetchedAt, decoded.Timestamp))
		if p.broadcaster != nil {
			p.broadcaster.Broadcast(deltas)
		}
		return len(decoded.Entities), nil

	case domain.FeedTripUpdates:
		decoded, err := gtfsrt.DecodeTripUpdates(data)
		if err != nil {
			return 0, err
		}
		p.cache.ReplaceTripUpdates(domain.NewSnapshot(decoded.Entities, fetchedAt, decoded.Timestamp))
		return len(decoded.Entities), nil

	case domain.FeedServiceAlerts:
		decoded, err := gtfsrt.DecodeAlerts(data, p.opts.AlertLanguage)
		if err != nil {
			return 0, err
		}
		p.cache.ReplaceAlerts(domain.NewSnapshot(decoded.Entities, fetchedAt, decoded.Timestamp))
		return len(decoded.Entities), nil
	}

	return 0, fmt.Errorf("unknown feed kind %q", kind)
}

func (p *Poller) source(kind domain.FeedKind) (FeedSource, bool) {
	for _, src := range p.opts.Sources {
		if src.Kind == kind {
			return src, true
		}
	}
	return FeedSource{}, false
}

// IsReady reports whether every configured feed has succeeded at least once.
func (p *Poller) IsReady() bool {
	p.readyMu.RLock()
	defer p.readyMu.RUnlock()
	return len(p.ready) == len(p.opts.Sources)
}

func (p *Poller) markReady(kind domain.FeedKind, count int) {
	p.readyMu.Lock()
	defer p.readyMu.Unlock()
	if p.ready[kind] {
		return
	}
	p.ready[kind] = true
	p.logger.Info("feed ready", "feed", kind, "entities", count)
}
