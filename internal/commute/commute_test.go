package commute

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitpulse/internal/domain"
	"transitpulse/internal/kvstore"
	"transitpulse/internal/notify"
)

// 2024-03-04 is a Monday.
func monday(week, hour, minute int) time.Time {
	return time.Date(2024, 3, 4+7*week, hour, minute, 0, 0, time.UTC)
}

func TestDetectPatternsClustersMondays(t *testing.T) {
	log := []domain.CommuteDeparture{
		NewDeparture("Union Station", monday(0, 8, 5)),
		NewDeparture("union station ", monday(1, 8, 12)),
		NewDeparture("UNION STATION", monday(2, 8, 20)),
		NewDeparture("Union Station", monday(3, 9, 30)),
	}

	patterns := DetectPatterns(log)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, 3, p.Occurrences)
	assert.Equal(t, 8, p.AvgHour)
	assert.Equal(t, 12, p.AvgMinute)
	assert.Equal(t, time.Monday, p.DayOfWeek)
	// Most recent spelling within the cluster
	assert.Equal(t, "UNION STATION", p.Destination)
	assert.Equal(t, monday(2, 8, 20), p.LastUsed)
}

func TestDetectPatternsSplitsOnGap(t *testing.T) {
	var log []domain.CommuteDeparture
	for w := 0; w < 3; w++ {
		log = append(log, NewDeparture("Work", monday(w, 8, 0)))
		log = append(log, NewDeparture("Work", monday(w, 17, 30)))
		// Tuesday
		log = append(log, NewDeparture("Work", monday(w, 8, 0).AddDate(0, 0, 1)))
	}
	log = append(log, NewDeparture("Gym", monday(0, 19, 0)), NewDeparture("Gym", monday(1, 19, 0)))

	patterns := DetectPatterns(log)
	require.Len(t, patterns, 3)
	assert.Equal(t, time.Monday, patterns[0].DayOfWeek)
	assert.Equal(t, 8, patterns[0].AvgHour)
	assert.Equal(t, time.Monday, patterns[1].DayOfWeek)
	assert.Equal(t, 17, patterns[1].AvgHour)
	assert.Equal(t, 30, patterns[1].AvgMinute)
	assert.Equal(t, time.Tuesday, patterns[2].DayOfWeek)

	for _, p := range patterns {
		assert.GreaterOrEqual(t, p.Occurrences, MinOccurrences)
	}
}

func TestDetectPatternsChainsWithinGap(t *testing.T) {
	// 7:00, 7:40, 8:20: each gap is 40 min, so one cluster spanning 80 min
	log := []domain.CommuteDeparture{
		NewDeparture("Work", monday(0, 7, 0)),
		NewDeparture("Work", monday(1, 7, 40)),
		NewDeparture("Work", monday(2, 8, 20)),
	}
	patterns := DetectPatterns(log)
	require.Len(t, patterns, 1)
	assert.Equal(t, 7, patterns[0].AvgHour)
	assert.Equal(t, 40, patterns[0].AvgMinute)
}

func TestDetectPatternsMinuteRoundsIntoNextHour(t *testing.T) {
	log := []domain.CommuteDeparture{
		NewDeparture("Work", monday(0, 8, 59)),
		NewDeparture("Work", monday(1, 9, 0)),
		NewDeparture("Work", monday(2, 9, 0)),
	}
	p := DetectPatterns(log)[0]
	assert.Equal(t, 9, p.AvgHour)
	assert.Equal(t, 0, p.AvgMinute)
}

func TestDetectPatternsIdempotent(t *testing.T) {
	var log []domain.CommuteDeparture
	for w := 0; w < 4; w++ {
		log = append(log,
			NewDeparture("Work", monday(w, 8, w*3)),
			NewDeparture("Home", monday(w, 17, 45+w)),
			NewDeparture("Gym", monday(w, 19, 0).AddDate(0, 0, 2)),
		)
	}

	first := DetectPatterns(log)
	second := DetectPatterns(log)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)

	// Input order does not matter
	reversed := make([]domain.CommuteDeparture, len(log))
	for i, d := range log {
		reversed[len(log)-1-i] = d
	}
	assert.Equal(t, first, DetectPatterns(reversed))
}

func TestPrune(t *testing.T) {
	now := monday(10, 8, 0)
	log := []domain.CommuteDeparture{
		NewDeparture("Old", now.Add(-61*24*time.Hour)),
		NewDeparture("Edge", now.Add(-Retention)),
		NewDeparture("New", now.Add(-time.Hour)),
	}
	got := Prune(log, now)
	require.Len(t, got, 2)
	assert.Equal(t, "Edge", got[0].Destination)
}

func TestTodayWindow(t *testing.T) {
	patterns := []domain.CommutePattern{
		{Destination: "A", DayOfWeek: time.Monday, AvgHour: 7, AvgMinute: 29},
		{Destination: "B", DayOfWeek: time.Monday, AvgHour: 7, AvgMinute: 30},
		{Destination: "C", DayOfWeek: time.Monday, AvgHour: 10, AvgMinute: 0},
		{Destination: "D", DayOfWeek: time.Monday, AvgHour: 10, AvgMinute: 1},
		{Destination: "E", DayOfWeek: time.Tuesday, AvgHour: 8, AvgMinute: 0},
		{Destination: "F", DayOfWeek: time.Monday, AvgHour: 8, AvgMinute: 15},
	}
	got := Today(patterns, monday(0, 8, 0), todayFrom, todayTo)

	var names []string
	for _, p := range got {
		names = append(names, p.Destination)
	}
	assert.Equal(t, []string{"B", "F", "C"}, names)
}

func TestTodayWindowCrossesMidnight(t *testing.T) {
	patterns := []domain.CommutePattern{
		{Destination: "Late shift", DayOfWeek: time.Tuesday, AvgHour: 0, AvgMinute: 10},
		{Destination: "Morning", DayOfWeek: time.Monday, AvgHour: 0, AvgMinute: 10},
	}

	next := Today(patterns, monday(0, 23, 50), nextFrom, nextTo)
	require.Len(t, next, 1)
	assert.Equal(t, "Late shift", next[0].Destination)

	// Just after midnight, a Sunday 23:55 pattern is still in the trailing window
	sunday := []domain.CommutePattern{{Destination: "Night bus", DayOfWeek: time.Sunday, AvgHour: 23, AvgMinute: 55}}
	got := Today(sunday, monday(1, 0, 5), todayFrom, todayTo)
	require.Len(t, got, 1)
	assert.Equal(t, "Night bus", got[0].Destination)
}

func TestOccurrenceUsesAdjacentDay(t *testing.T) {
	p := domain.CommutePattern{DayOfWeek: time.Tuesday, AvgHour: 0, AvgMinute: 10}
	at, ok := p.Occurrence(monday(0, 23, 50))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 10, 0, 0, time.UTC), at)

	p.DayOfWeek = time.Friday
	_, ok = p.Occurrence(monday(0, 23, 50))
	assert.False(t, ok)
}

func newTestDetector(now time.Time) (*Detector, *notify.Recorder, kvstore.Store) {
	store := kvstore.NewMemory()
	rec := notify.NewRecorder()
	d := NewDetector(store, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.Clock = func() time.Time { return now }
	return d, rec, store
}

func TestRecordSearchSchedulesPredictive(t *testing.T) {
	ctx := context.Background()
	now := monday(3, 7, 45)
	d, rec, store := newTestDetector(now)

	for w := 0; w < 3; w++ {
		_, err := d.RecordSearch(ctx, "Union Station", monday(w, 8, 10))
		require.NoError(t, err)
	}

	patterns, err := d.Patterns(ctx)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	next, err := d.NextCommute(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "Union Station", next.Destination)

	pending := rec.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, monday(3, 8, 0), pending[0].At)
	assert.Contains(t, pending[0].Body, "08:10")

	stored, err := kvstore.GetString(ctx, store, kvstore.KeyPredictiveHandle, "")
	require.NoError(t, err)
	assert.Equal(t, string(pending[0].Handle), stored)

	// Rescheduling replaces the previous alert
	require.NoError(t, d.SchedulePredictive(ctx, now))
	assert.Len(t, rec.Pending(), 1)
	assert.Contains(t, rec.Cancelled, pending[0].Handle)

	history, err := kvstore.LoadSearchHistory(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"Union Station"}, history)
}

func TestSchedulePredictiveClampsToNow(t *testing.T) {
	ctx := context.Background()
	now := monday(3, 8, 2)
	d, rec, _ := newTestDetector(now)
	d.LeadTime = 30 * time.Minute

	for w := 0; w < 3; w++ {
		_, err := d.RecordSearch(ctx, "Work", monday(w, 8, 15))
		require.NoError(t, err)
	}

	pending := rec.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, now, pending[0].At)
}

func TestSchedulePredictiveAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	now := monday(3, 23, 40)
	d, rec, store := newTestDetector(now)

	// Three Tuesdays at 00:15
	log := []domain.CommuteDeparture{
		NewDeparture("Depot", monday(0, 24, 15)),
		NewDeparture("Depot", monday(1, 24, 15)),
		NewDeparture("Depot", monday(2, 24, 15)),
	}
	require.NoError(t, kvstore.SetJSON(ctx, store, kvstore.KeyCommuteLog, log))
	require.NoError(t, d.SchedulePredictive(ctx, now))

	pending := rec.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, time.Date(2024, 3, 26, 0, 5, 0, 0, time.UTC), pending[0].At)
	assert.Contains(t, pending[0].Body, "00:15")
}

func TestNoUpcomingCommuteCancelsOnly(t *testing.T) {
	ctx := context.Background()
	now := monday(3, 12, 0)
	d, rec, store := newTestDetector(now)

	require.NoError(t, store.Set(ctx, kvstore.KeyPredictiveHandle, "stale-handle"))
	require.NoError(t, d.SchedulePredictive(ctx, now))

	assert.Equal(t, []notify.Handle{"stale-handle"}, rec.Cancelled)
	assert.Empty(t, rec.Pending())
	_, err := store.Get(ctx, kvstore.KeyPredictiveHandle)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestCorruptStorageTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	now := monday(3, 7, 0)
	d, _, store := newTestDetector(now)

	require.NoError(t, store.Set(ctx, kvstore.KeyCommuteLog, "not json"))
	require.NoError(t, store.Set(ctx, kvstore.KeyCommutePatterns, "{"))

	patterns, err := d.TodaysPatterns(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, patterns)

	_, err = d.RecordSearch(ctx, "Work", now)
	require.NoError(t, err)
	log, err := d.Departures(ctx)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}
