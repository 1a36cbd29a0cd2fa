package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transitpulse/internal/domain"
)

// Collector holds the relay's prometheus instruments on a private registry.
type Collector struct {
	reg *prometheus.Registry

	FeedFetches      *prometheus.CounterVec   // feed, result
	FeedDuration     *prometheus.HistogramVec // feed
	FeedEntities     *prometheus.GaugeVec     // feed
	FeedLastSuccess  *prometheus.GaugeVec     // feed, unix seconds
	FeedSkippedTicks *prometheus.CounterVec   // feed

	HTTPRequests *prometheus.CounterVec // route, code
	WSClients    prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_feed_fetches_total",
			Help: "Feed polls by outcome.",
		}, []string{"feed", "result"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_feed_fetch_duration_seconds",
			Help:    "Duration of fetch plus decode per feed.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"feed"}),
		FeedEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_feed_entities",
			Help: "Entities in the current snapshot.",
		}, []string{"feed"}),
		FeedLastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_feed_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll.",
		}, []string{"feed"}),
		FeedSkippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_feed_skipped_ticks_total",
			Help: "Ticks skipped because the previous fetch was still running.",
		}, []string{"feed"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_ws_clients",
			Help: "Connected websocket clients.",
		}),
	}

	reg.MustRegister(
		c.FeedFetches, c.FeedDuration, c.FeedEntities, c.FeedLastSuccess, c.FeedSkippedTicks,
		c.HTTPRequests, c.WSClients,
		collectors.NewGoCollector(),
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// FeedSucceeded records a successful poll.
func (c *Collector) FeedSucceeded(kind domain.FeedKind, d time.Duration, entities int, at time.Time) {
	if c == nil {
		return
	}
	c.FeedFetches.WithLabelValues(string(kind), "ok").Inc()
	c.FeedDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
	c.FeedEntities.WithLabelValues(string(kind)).Set(float64(entities))
	c.FeedLastSuccess.WithLabelValues(string(kind)).Set(float64(at.Unix()))
}

// FeedFailed records a failed poll.
func (c *Collector) FeedFailed(kind domain.FeedKind, d time.Duration) {
	if c == nil {
		return
	}
	c.FeedFetches.WithLabelValues(string(kind), "error").Inc()
	c.FeedDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (c *Collector) TickSkipped(kind domain.FeedKind) {
	if c == nil {
		return
	}
	c.FeedSkippedTicks.WithLabelValues(string(kind)).Inc()
}
