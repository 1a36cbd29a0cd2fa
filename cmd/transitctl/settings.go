package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"transitpulse/internal/kvstore"
	"transitpulse/internal/progress"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Rider settings",
}

var accessibilityCmd = &cobra.Command{
	Use:   "accessibility [on|off]",
	Short: "Shows or sets accessibility mode, which gives earlier arrival alerts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  accessibility,
}

func init() {
	settingsCmd.AddCommand(accessibilityCmd)
}

func accessibility(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if len(args) == 1 {
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		if err := kvstore.SetBool(ctx, store, kvstore.KeyAccessibility, on); err != nil {
			return fmt.Errorf("saving accessibility: %w", err)
		}
	}

	on, err := kvstore.GetBool(ctx, store, kvstore.KeyAccessibility, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "accessibility %s\n", onOff(on))
	return nil
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", v)
	}
	return b, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// applyAccessibility reads the stored flag into tracker. A read failure
// leaves the default radius.
func applyAccessibility(ctx context.Context, store kvstore.Store, tracker *progress.Tracker, logger *slog.Logger) {
	on, err := kvstore.GetBool(ctx, store, kvstore.KeyAccessibility, false)
	if err != nil {
		logger.Warn("reading accessibility setting failed", "error", err)
	}
	tracker.SetAccessible(on)
}
