package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"transitpulse/internal/domain"
	"transitpulse/internal/kvstore"
)

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Saved places (home, work and custom)",
}

var placesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists saved places",
	Args:  cobra.NoArgs,
	RunE:  placesList,
}

var placesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Saves a place; \"home\" and \"work\" are kept separately from custom places",
	Args:  cobra.ExactArgs(1),
	RunE:  placesSave,
}

var (
	placeLat   float64
	placeLon   float64
	placeLabel string
	placeName  string
)

func init() {
	placesSaveCmd.Flags().Float64VarP(&placeLat, "lat", "", 0, "Latitude")
	placesSaveCmd.Flags().Float64VarP(&placeLon, "lon", "", 0, "Longitude")
	placesSaveCmd.Flags().StringVarP(&placeLabel, "label", "", "", "Display label, e.g. a street address")
	placesSaveCmd.MarkFlagRequired("lat")
	placesSaveCmd.MarkFlagRequired("lon")

	placesCmd.AddCommand(placesListCmd)
	placesCmd.AddCommand(placesSaveCmd)
}

func placesList(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	places, err := kvstore.LoadPlaces(ctx, store)
	if err != nil {
		return err
	}
	if len(places) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no saved places")
		return nil
	}
	for _, p := range places {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %.5f,%.5f  %s\n", p.Name, p.At.Lat, p.At.Lon, p.Label)
	}
	return nil
}

func placesSave(cmd *cobra.Command, args []string) error {
	if !domain.ValidCoordinate(placeLat, placeLon) {
		return fmt.Errorf("invalid coordinate %f,%f", placeLat, placeLon)
	}

	logger := newLogger()
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	p := kvstore.Place{Name: args[0], Label: placeLabel, At: domain.LatLon{Lat: placeLat, Lon: placeLon}}
	if err := kvstore.SavePlace(ctx, store, p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", p.Name)
	return nil
}

// origin returns the saved place named by --place, or the --lat/--lon pair.
func origin(ctx context.Context, logger *slog.Logger) (domain.LatLon, error) {
	if placeName == "" {
		if !domain.ValidCoordinate(lat, lon) {
			return domain.LatLon{}, fmt.Errorf("invalid coordinate %f,%f (use --lat/--lon or --place)", lat, lon)
		}
		return domain.LatLon{Lat: lat, Lon: lon}, nil
	}

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return domain.LatLon{}, err
	}
	defer closeStore()

	places, err := kvstore.LoadPlaces(ctx, store)
	if err != nil {
		return domain.LatLon{}, err
	}
	for _, p := range places {
		if strings.EqualFold(p.Name, placeName) {
			return p.At, nil
		}
	}
	return domain.LatLon{}, fmt.Errorf("no saved place named %q", placeName)
}
