package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"transitpulse/internal/domain"
	"transitpulse/internal/eta"
	"transitpulse/pkg/relayclient"
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Lists the nearest vehicle of each route with an arrival estimate",
	Args:  cobra.NoArgs,
	RunE:  nearby,
}

var (
	lat    float64
	lon    float64
	radius float64
	line   string
)

func init() {
	nearbyCmd.Flags().Float64VarP(&lat, "lat", "", 0, "Latitude")
	nearbyCmd.Flags().Float64VarP(&lon, "lon", "", 0, "Longitude")
	nearbyCmd.Flags().Float64VarP(&radius, "radius", "r", 800, "Search radius in meters")
	nearbyCmd.Flags().StringVarP(&line, "line", "l", "", "Restrict to a line, e.g. \"504 King\"")
	nearbyCmd.Flags().StringVarP(&placeName, "place", "p", "", "Use a saved place instead of --lat/--lon")
}

func nearby(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	at, err := origin(cmd.Context(), logger)
	if err != nil {
		return err
	}

	client := relayclient.New(relayURL)
	engine := eta.NewEngine(client, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	vehicles, err := client.Nearby(ctx, at.Lat, at.Lon, radius)
	if err != nil {
		return fmt.Errorf("fetching nearby vehicles: %w", err)
	}

	candidates := eta.NearestPerRoute(vehicles)
	if line != "" {
		candidates = eta.FilterByLine(candidates, line)
	}

	resolved, err := engine.Resolve(ctx, candidates)
	if err != nil {
		return err
	}

	printNearby(cmd.OutOrStdout(), resolved)
	return nil
}

func printNearby(w io.Writer, vehicles []domain.NearbyVehicle) {
	if len(vehicles) == 0 {
		fmt.Fprintln(w, "no vehicles nearby")
		return
	}
	for _, v := range vehicles {
		source := "est"
		if v.IsRealtime {
			source = "live"
		}
		fmt.Fprintf(w, "%-6s %-12s %5.0fm %3d min (%s)\n", v.RouteID, v.Vehicle.ID, v.DistanceMeters, v.EstimatedArrivalMins, source)
	}
}
