package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string        `validate:"required"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	VehiclePositionsURL string `validate:"required,url"`
	TripUpdatesURL      string `validate:"required,url"`
	ServiceAlertsURL    string `validate:"required,url"`
	FeedAPIKey          string
	FeedAPIKeyHeader    string

	VehiclePollInterval    time.Duration `validate:"gt=0"`
	TripUpdatePollInterval time.Duration `validate:"gt=0"`
	AlertPollInterval      time.Duration `validate:"gt=0"`
	FeedTimeout            time.Duration `validate:"gte=1s,lte=1m"`
	AlertLanguage          string

	NearbyDefaultRadius float64 `validate:"gt=0"`
	TileZoomLevel       int     `validate:"gte=1,lte=20"`

	RateLimitPerWindow int           `validate:"gt=0"`
	RateLimitWindow    time.Duration `validate:"gt=0"`
	RateLimitWhitelist []string

	MetricsEnabled bool
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		VehiclePositionsURL: os.Getenv("VEHICLE_POSITIONS_URL"),
		TripUpdatesURL:      os.Getenv("TRIP_UPDATES_URL"),
		ServiceAlertsURL:    os.Getenv("SERVICE_ALERTS_URL"),
		FeedAPIKey:          os.Getenv("FEED_API_KEY"),
		FeedAPIKeyHeader:    getEnv("FEED_API_KEY_HEADER", "x-api-key"),

		VehiclePollInterval:    getDurationEnv("VEHICLE_POLL_INTERVAL", 15*time.Second),
		TripUpdatePollInterval: getDurationEnv("TRIP_UPDATE_POLL_INTERVAL", 30*time.Second),
		AlertPollInterval:      getDurationEnv("ALERT_POLL_INTERVAL", 2*time.Minute),
		FeedTimeout:            getDurationEnv("FEED_TIMEOUT", 15*time.Second),
		AlertLanguage:          getEnv("ALERT_LANGUAGE", "en"),

		NearbyDefaultRadius: getFloatEnv("NEARBY_DEFAULT_RADIUS", 800),
		TileZoomLevel:       getIntEnv("TILE_ZOOM_LEVEL", 14),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),

		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
