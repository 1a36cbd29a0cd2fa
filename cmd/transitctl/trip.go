package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"transitpulse/internal/domain"
	"transitpulse/internal/progress"
)

var tripCmd = &cobra.Command{
	Use:   "trip",
	Short: "Trip progress",
}

var tripStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows progress along the current itinerary",
	Args:  cobra.NoArgs,
	RunE:  tripStatus,
}

var itineraryPath string

func init() {
	tripStatusCmd.Flags().StringVarP(&itineraryPath, "itinerary", "i", "", "Itinerary JSON file; without it the cached itinerary is used offline")
	tripCmd.AddCommand(tripStatusCmd)
}

func loadItinerary(path string) (*domain.Itinerary, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading itinerary: %w", err)
	}
	var it domain.Itinerary
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, fmt.Errorf("decoding itinerary: %w", err)
	}
	return &it, nil
}

func tripStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	live, err := loadItinerary(itineraryPath)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, closeNotifier, err := openNotifier(logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	tracker, err := progress.Resume(ctx, store, live, notifier, logger)
	if errors.Is(err, progress.ErrNoItinerary) {
		fmt.Fprintln(cmd.OutOrStdout(), "no trip in progress")
		return nil
	}
	if err != nil {
		return err
	}

	applyAccessibility(ctx, store, tracker, logger)
	state := tracker.Tick(time.Now())
	it := tracker.Itinerary()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "step %d of %d: %s\n", state.CurrentStepIndex+1, len(it.Steps), describeStep(state.Step))
	if state.StopsRemaining != nil {
		fmt.Fprintf(out, "%d stops remaining\n", *state.StopsRemaining)
	}
	if state.Offline {
		fmt.Fprintln(out, "offline: showing cached itinerary")
	}
	return nil
}

func describeStep(s domain.Step) string {
	if s.IsTransit() {
		return fmt.Sprintf("ride %s from %s to %s, arriving %s", s.LineName, s.DepartureStop, s.ArrivalStop, s.ArrivalTime.Local().Format("15:04"))
	}
	return fmt.Sprintf("walk %.0fm", s.Distance)
}
