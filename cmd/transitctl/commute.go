package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"transitpulse/internal/commute"
	"transitpulse/internal/domain"
)

var commuteCmd = &cobra.Command{
	Use:   "commute",
	Short: "Records destination searches and shows detected commute patterns",
}

var commuteRecordCmd = &cobra.Command{
	Use:   "record <destination>",
	Short: "Records a search for destination and reschedules the leave-now alert",
	Args:  cobra.ExactArgs(1),
	RunE:  commuteRecord,
}

var commutePatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Lists detected commute patterns",
	Args:  cobra.NoArgs,
	RunE:  commutePatterns,
}

var (
	recordAt  string
	todayOnly bool
	leadTime  time.Duration
)

func init() {
	commuteRecordCmd.Flags().StringVarP(&recordAt, "at", "", "", "Search time (RFC 3339), defaults to now")
	commuteRecordCmd.Flags().DurationVarP(&leadTime, "lead", "", commute.DefaultLeadTime, "How long before a commute to alert")
	commutePatternsCmd.Flags().BoolVarP(&todayOnly, "today", "t", false, "Only patterns for the current day and time window")

	commuteCmd.AddCommand(commuteRecordCmd)
	commuteCmd.AddCommand(commutePatternsCmd)
}

func commuteRecord(cmd *cobra.Command, args []string) error {
	at := time.Now()
	if recordAt != "" {
		t, err := time.Parse(time.RFC3339, recordAt)
		if err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
		at = t
	}

	logger := newLogger()
	ctx := cmd.Context()

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

	detector := commute.NewDetector(store, notifier, logger)
	detector.LeadTime = leadTime
	patterns, err := detector.RecordSearch(ctx, args[0], at)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded %q at %s, %d patterns\n", args[0], at.Format(time.RFC3339), len(patterns))
	return nil
}

func commutePatterns(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	detector := commute.NewDetector(store, nil, logger)

	var patterns []domain.CommutePattern
	if todayOnly {
		patterns, err = detector.TodaysPatterns(ctx, time.Now())
	} else {
		patterns, err = detector.Patterns(ctx)
	}
	if err != nil {
		return err
	}

	if len(patterns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no commute patterns yet")
		return nil
	}
	for _, p := range patterns {
		fmt.Fprintf(cmd.OutOrStdout(), "%-9s %02d:%02d  %-24s x%d\n", p.DayOfWeek, p.AvgHour, p.AvgMinute, p.Destination, p.Occurrences)
	}
	return nil
}
