package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"transitpulse/internal/domain"
	"transitpulse/internal/eta"
	"transitpulse/internal/progress"
	"transitpulse/internal/session"
	"transitpulse/pkg/relayclient"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keeps the nearby list and any cached trip up to date until interrupted",
	Args:  cobra.NoArgs,
	RunE:  watch,
}

var refreshEvery time.Duration

func init() {
	watchCmd.Flags().Float64VarP(&lat, "lat", "", 0, "Latitude")
	watchCmd.Flags().Float64VarP(&lon, "lon", "", 0, "Longitude")
	watchCmd.Flags().Float64VarP(&radius, "radius", "r", session.DefaultRadius, "Search radius in meters")
	watchCmd.Flags().StringVarP(&line, "line", "l", "", "Restrict to a line")
	watchCmd.Flags().DurationVarP(&refreshEvery, "every", "", session.DefaultNearbyInterval, "Nearby refresh interval")
	watchCmd.Flags().StringVarP(&placeName, "place", "p", "", "Use a saved place instead of --lat/--lon")
}

func watch(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	at, err := origin(cmd.Context(), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	tracker, err := progress.Resume(ctx, store, nil, notifier, logger)
	if err != nil && !errors.Is(err, progress.ErrNoItinerary) {
		return err
	}
	if tracker != nil {
		applyAccessibility(ctx, store, tracker, logger)
	}

	client := relayclient.New(relayURL)
	locations := make(chan domain.LatLon, 1)
	locations <- at

	s := session.New(client, eta.NewEngine(client, logger), tracker, locations, session.Options{
		NearbyInterval: refreshEvery,
		Radius:         radius,
		Line:           line,
	}, logger)

	out := cmd.OutOrStdout()
	s.OnNearby = func(v []domain.NearbyVehicle) {
		fmt.Fprintf(out, "-- %s\n", time.Now().Format("15:04:05"))
		printNearby(out, v)
	}
	s.OnTrip = func(state progress.State) {
		if state.StopsRemaining != nil {
			fmt.Fprintf(out, "trip: step %d, %d stops remaining\n", state.CurrentStepIndex+1, *state.StopsRemaining)
		}
	}

	s.Start(ctx)
	<-ctx.Done()
	s.Close()
	return nil
}
