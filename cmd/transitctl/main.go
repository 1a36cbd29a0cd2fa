package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"transitpulse/internal/kvstore"
	"transitpulse/internal/notify"
)

var rootCmd = &cobra.Command{
	Use:          "transitctl",
	Short:        "TransitPulse rider tool",
	Long:         "Nearby arrivals, trip progress and commute patterns against a TransitPulse relay",
	SilenceUsage: true,
}

var (
	relayURL    string
	storeKind   string
	sqlitePath  string
	redisAddr   string
	postgresDSN string
	natsURL     string
	logLevel    string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&relayURL, "relay-url", "", "http://localhost:8080", "Relay base URL")
	rootCmd.PersistentFlags().StringVarP(&storeKind, "store", "", "sqlite", "Device store: memory, sqlite, redis or postgres")
	rootCmd.PersistentFlags().StringVarP(&sqlitePath, "sqlite-path", "", "transitpulse.db", "SQLite database file")
	rootCmd.PersistentFlags().StringVarP(&redisAddr, "redis-addr", "", "localhost:6379", "Redis address")
	rootCmd.PersistentFlags().StringVarP(&postgresDSN, "postgres-dsn", "", "", "Postgres connection string")
	rootCmd.PersistentFlags().StringVarP(&natsURL, "nats-url", "", "", "Publish notifications to this NATS server instead of logging them")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "warn", "Log level")

	rootCmd.AddCommand(nearbyCmd)
	rootCmd.AddCommand(commuteCmd)
	rootCmd.AddCommand(tripCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(placesCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

type closeFunc func()

func openStore(ctx context.Context, logger *slog.Logger) (kvstore.Store, closeFunc, error) {
	switch storeKind {
	case "memory":
		return kvstore.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := kvstore.NewSQLiteStore(sqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, func() { s.Close() }, nil
	case "redis":
		s, err := kvstore.NewRedisStore(redisAddr, os.Getenv("REDIS_PASSWORD"), 0, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis store: %w", err)
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		if postgresDSN == "" {
			return nil, nil, fmt.Errorf("--postgres-dsn is required for the postgres store")
		}
		s, err := kvstore.NewPostgresStore(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", storeKind)
	}
}

func openNotifier(logger *slog.Logger) (notify.Notifier, closeFunc, error) {
	if natsURL == "" {
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	n, err := notify.NewNATSNotifier(natsURL, "", logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return n, n.Close, nil
}
