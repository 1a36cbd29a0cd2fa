package commute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"transitpulse/internal/domain"
	"transitpulse/internal/kvstore"
	"transitpulse/internal/notify"
)

const DefaultLeadTime = 10 * time.Minute

// Windows, in minutes relative to now.
const (
	todayFrom = -30
	todayTo   = 120
	nextFrom  = 10
	nextTo    = 60
)

// Detector logs destination searches, derives commute patterns and keeps one
// predictive "time to leave" notification scheduled.
type Detector struct {
	Store    kvstore.Store
	Notifier notify.Notifier
	LeadTime time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

func NewDetector(store kvstore.Store, notifier notify.Notifier, logger *slog.Logger) *Detector {
	return &Detector{
		Store:    store,
		Notifier: notifier,
		LeadTime: DefaultLeadTime,
		Clock:    time.Now,
		Logger:   logger.With("component", "commute"),
	}
}

// RecordSearch appends a departure for destination at the given time, then
// rebuilds the pattern cache and reschedules the predictive alert.
func (d *Detector) RecordSearch(ctx context.Context, destination string, at time.Time) ([]domain.CommutePattern, error) {
	log, err := d.Departures(ctx)
	if err != nil {
		return nil, err
	}

	log = append(log, NewDeparture(destination, at))
	log = Prune(log, d.now())
	if err := kvstore.SetJSON(ctx, d.Store, kvstore.KeyCommuteLog, log); err != nil {
		return nil, fmt.Errorf("saving departure log: %w", err)
	}

	patterns := DetectPatterns(log)
	if err := kvstore.SetJSON(ctx, d.Store, kvstore.KeyCommutePatterns, patterns); err != nil {
		return nil, fmt.Errorf("saving patterns: %w", err)
	}

	if _, err := kvstore.PushSearchHistory(ctx, d.Store, destination); err != nil {
		d.logger().Warn("updating search history failed", "error", err)
	}

	d.logger().Debug("departure recorded", "destination", destination, "log_size", len(log), "patterns", len(patterns))

	if err := d.SchedulePredictive(ctx, d.now()); err != nil {
		d.logger().Warn("scheduling predictive alert failed", "error", err)
	}
	return patterns, nil
}

// Departures loads the departure log. A missing or corrupt log is empty.
func (d *Detector) Departures(ctx context.Context) ([]domain.CommuteDeparture, error) {
	var log []domain.CommuteDeparture
	err := kvstore.GetJSON(ctx, d.Store, kvstore.KeyCommuteLog, &log)
	if errors.Is(err, kvstore.ErrCorrupt) {
		d.logger().Warn("departure log unreadable, starting over", "error", err)
	}
	if kvstore.IsAbsent(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading departure log: %w", err)
	}
	return log, nil
}

// Patterns returns the cached patterns, rebuilding them from the log when the
// cache is missing or corrupt.
func (d *Detector) Patterns(ctx context.Context) ([]domain.CommutePattern, error) {
	var patterns []domain.CommutePattern
	err := kvstore.GetJSON(ctx, d.Store, kvstore.KeyCommutePatterns, &patterns)
	if err == nil {
		return patterns, nil
	}
	if !kvstore.IsAbsent(err) {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}

	log, err := d.Departures(ctx)
	if err != nil {
		return nil, err
	}
	return DetectPatterns(log), nil
}

// TodaysPatterns returns today's patterns from 30 minutes ago to 2 hours ahead.
func (d *Detector) TodaysPatterns(ctx context.Context, now time.Time) ([]domain.CommutePattern, error) {
	patterns, err := d.Patterns(ctx)
	if err != nil {
		return nil, err
	}
	return Today(patterns, now, todayFrom, todayTo), nil
}

// NextCommute returns the earliest pattern 10 to 60 minutes ahead of now.
func (d *Detector) NextCommute(ctx context.Context, now time.Time) (*domain.CommutePattern, error) {
	patterns, err := d.Patterns(ctx)
	if err != nil {
		return nil, err
	}
	next := Today(patterns, now, nextFrom, nextTo)
	if len(next) == 0 {
		return nil, nil
	}
	return &next[0], nil
}

// SchedulePredictive cancels the previously scheduled predictive alert and,
// when a commute is coming up, schedules a new one LeadTime before it.
func (d *Detector) SchedulePredictive(ctx context.Context, now time.Time) error {
	prev, err := kvstore.GetString(ctx, d.Store, kvstore.KeyPredictiveHandle, "")
	if err != nil {
		return fmt.Errorf("loading predictive handle: %w", err)
	}
	if prev != "" {
		d.Notifier.Cancel(notify.Handle(prev))
		if err := d.Store.Delete(ctx, kvstore.KeyPredictiveHandle); err != nil {
			return fmt.Errorf("clearing predictive handle: %w", err)
		}
	}

	next, err := d.NextCommute(ctx, now)
	if err != nil || next == nil {
		return err
	}

	departAt, ok := next.Occurrence(now)
	if !ok {
		return nil
	}
	at := departAt.Add(-d.leadTime())
	if at.Before(now) {
		at = now
	}

	h := d.Notifier.ScheduleAt(
		"Time to leave",
		fmt.Sprintf("Your usual trip to %s is at %s", next.Destination, departAt.Format("15:04")),
		at,
	)
	if err := d.Store.Set(ctx, kvstore.KeyPredictiveHandle, string(h)); err != nil {
		return fmt.Errorf("saving predictive handle: %w", err)
	}

	d.logger().Info("predictive alert scheduled", "destination", next.Destination, "at", at)
	return nil
}

func (d *Detector) leadTime() time.Duration {
	if d.LeadTime > 0 {
		return d.LeadTime
	}
	return DefaultLeadTime
}

func (d *Detector) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

func (d *Detector) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
