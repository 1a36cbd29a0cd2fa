package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFeeds(t *testing.T) {
	t.Setenv("VEHICLE_POSITIONS_URL", "https://feeds.example.com/vehicles.pb")
	t.Setenv("TRIP_UPDATES_URL", "https://feeds.example.com/trips.pb")
	t.Setenv("SERVICE_ALERTS_URL", "https://feeds.example.com/alerts.pb")
}

func TestLoadDefaults(t *testing.T) {
	setFeeds(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.VehiclePollInterval)
	assert.Equal(t, 30*time.Second, cfg.TripUpdatePollInterval)
	assert.Equal(t, 2*time.Minute, cfg.AlertPollInterval)
	assert.Equal(t, 15*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 800.0, cfg.NearbyDefaultRadius)
	assert.Equal(t, "en", cfg.AlertLanguage)
	assert.True(t, cfg.MetricsEnabled)
	assert.Nil(t, cfg.RateLimitWhitelist)
}

func TestLoadOverrides(t *testing.T) {
	setFeeds(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("VEHICLE_POLL_INTERVAL", "5s")
	t.Setenv("NEARBY_DEFAULT_RADIUS", "1200")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,127.0.0.1 ")
	t.Setenv("TILE_ZOOM_LEVEL", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.VehiclePollInterval)
	assert.Equal(t, 1200.0, cfg.NearbyDefaultRadius)
	assert.Equal(t, []string{"10.0.0.1", "127.0.0.1"}, cfg.RateLimitWhitelist)
	assert.Equal(t, 14, cfg.TileZoomLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("VEHICLE_POSITIONS_URL", "")
	t.Setenv("TRIP_UPDATES_URL", "https://feeds.example.com/trips.pb")
	t.Setenv("SERVICE_ALERTS_URL", "https://feeds.example.com/alerts.pb")

	_, err := Load()
	assert.Error(t, err)

	setFeeds(t)
	t.Setenv("FEED_TIMEOUT", "5m")
	_, err = Load()
	assert.Error(t, err)
}
