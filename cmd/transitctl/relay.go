package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transitpulse/internal/domain"
	"transitpulse/pkg/relayclient"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Lists service alerts, optionally for specific routes",
	Args:  cobra.NoArgs,
	RunE:  alerts,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Shows the relay's feed freshness",
	Args:  cobra.NoArgs,
	RunE:  health,
}

var alertRoutes []string

func init() {
	alertsCmd.Flags().StringSliceVarP(&alertRoutes, "route", "r", []string{}, "Route id (repeatable)")
}

func alerts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), relayclient.DefaultTimeout)
	defer cancel()

	list, err := relayclient.New(relayURL).Alerts(ctx, alertRoutes)
	if err != nil {
		return fmt.Errorf("fetching alerts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "no alerts")
		return nil
	}
	for _, a := range list {
		scope := "all routes"
		if !a.SystemWide() {
			scope = strings.Join(a.RouteIDs, ",")
		}
		fmt.Fprintf(out, "[%s] %s (%s)\n", scope, a.Header, a.Effect)
	}
	return nil
}

func health(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), relayclient.DefaultTimeout)
	defer cancel()

	resp, err := relayclient.New(relayURL).Health(ctx)
	if err != nil {
		return fmt.Errorf("fetching health: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, kind := range domain.FeedKinds {
		status, ok := resp.Feeds[kind]
		if !ok {
			continue
		}
		age := "never"
		if !status.LastFetch.IsZero() {
			age = resp.ServerTime.Sub(status.LastFetch).Round(time.Second).String() + " ago"
		}
		state := "ok"
		if status.Stale {
			state = "stale"
		}
		fmt.Fprintf(out, "%-18s %6d  %-12s %s\n", kind, status.Count, age, state)
	}
	return nil
}
