package progress

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

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	t0         = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	dest       = domain.LatLon{Lat: 43.6453, Lon: -79.3806}
)

func transit(line, from, to string, dep, arr time.Time, stops int) domain.Step {
	return domain.Step{
		Mode:          domain.StepTransit,
		LineName:      line,
		DepartureStop: from,
		ArrivalStop:   to,
		DepartureTime: dep,
		ArrivalTime:   arr,
		NumStops:      stops,
	}
}

// walk, 504 (8:00-8:20, 10 stops), 1 (8:25-8:35, 5 stops), 97 (8:40-8:44, 2 stops), walk
func testItinerary() domain.Itinerary {
	return domain.Itinerary{
		ID: "it-1",
		Steps: []domain.Step{
			{Mode: domain.StepWalk, Distance: 250, Duration: 4 * time.Minute},
			transit("504", "King St", "Union", t0, t0.Add(20*time.Minute), 10),
			transit("1", "Union", "St Andrew", t0.Add(25*time.Minute), t0.Add(35*time.Minute), 5),
			transit("97", "St Andrew", "Front", t0.Add(40*time.Minute), t0.Add(44*time.Minute), 2),
			{Mode: domain.StepWalk, Distance: 120, End: &dest},
		},
	}
}

func TestActiveStepIndex(t *testing.T) {
	steps := []domain.Step{
		transit("a", "", "", t0, t0.Add(10*time.Minute), 3),
		transit("b", "", "", t0.Add(15*time.Minute), t0.Add(25*time.Minute), 3),
		transit("c", "", "", t0.Add(30*time.Minute), t0.Add(40*time.Minute), 3),
	}

	assert.Equal(t, 0, ActiveStepIndex(steps, t0.Add(-time.Minute)))
	assert.Equal(t, 0, ActiveStepIndex(steps, t0))
	assert.Equal(t, 1, ActiveStepIndex(steps, t0.Add(20*time.Minute)))
	assert.Equal(t, 1, ActiveStepIndex(steps, t0.Add(15*time.Minute)))
	assert.Equal(t, 2, ActiveStepIndex(steps, t0.Add(2*time.Hour)))
}

func TestStopsRemainingBoundaries(t *testing.T) {
	step := transit("504", "", "", t0, t0.Add(20*time.Minute), 10)

	assert.Equal(t, 10, StopsRemaining(step, t0.Add(-time.Minute)))
	assert.Equal(t, 10, StopsRemaining(step, t0))
	assert.Equal(t, 5, StopsRemaining(step, t0.Add(10*time.Minute)))
	assert.Equal(t, 1, StopsRemaining(step, t0.Add(19*time.Minute)))
	assert.Equal(t, 0, StopsRemaining(step, t0.Add(20*time.Minute)))
	assert.Equal(t, 0, StopsRemaining(step, t0.Add(time.Hour)))

	zeroSpan := transit("x", "", "", t0, t0, 4)
	assert.Equal(t, 0, StopsRemaining(zeroSpan, t0))
	assert.Equal(t, 4, StopsRemaining(zeroSpan, t0.Add(-time.Second)))
}

func TestTickProgressesMonotonically(t *testing.T) {
	rec := notify.NewRecorder()
	tr := NewTracker(testItinerary(), false, rec, testLogger)

	s := tr.Tick(t0.Add(-5 * time.Minute))
	assert.Equal(t, 0, s.CurrentStepIndex)
	assert.Nil(t, s.StopsRemaining)
	last, _ := rec.LastPersistent()
	assert.Equal(t, "504", last.Label)
	assert.Equal(t, "08:20", last.ArrivalClock)

	s = tr.Tick(t0.Add(6 * time.Minute))
	assert.Equal(t, 1, s.CurrentStepIndex)
	require.NotNil(t, s.StopsRemaining)
	assert.Equal(t, 7, *s.StopsRemaining)

	// A clock that jumps back never regresses the step or the countdown
	s = tr.Tick(t0.Add(2 * time.Minute))
	assert.Equal(t, 1, s.CurrentStepIndex)
	assert.Equal(t, 7, *s.StopsRemaining)

	s = tr.Tick(t0.Add(26 * time.Minute))
	assert.Equal(t, 2, s.CurrentStepIndex)
	assert.Equal(t, 5, *s.StopsRemaining)
	last, _ = rec.LastPersistent()
	assert.Equal(t, "1", last.Label)
	assert.Equal(t, 5, *last.StopsLeft)
	assert.Equal(t, "08:35", last.ArrivalClock)

	s = tr.Tick(t0.Add(2 * time.Hour))
	assert.Equal(t, 3, s.CurrentStepIndex)
	assert.Equal(t, 0, *s.StopsRemaining)
}

func TestTransferAlertsFireOnce(t *testing.T) {
	rec := notify.NewRecorder()
	tr := NewTracker(testItinerary(), false, rec, testLogger)

	// 504: avg stop 2 min, window [8:16, 8:20)
	tr.Tick(t0.Add(15 * time.Minute))
	assert.Equal(t, 0, rec.ImmediateCount())

	tr.Tick(t0.Add(16 * time.Minute))
	require.Equal(t, 1, rec.ImmediateCount())
	assert.Contains(t, rec.Immediate[0].Body, "Union")

	tr.Tick(t0.Add(17 * time.Minute))
	assert.Equal(t, 1, rec.ImmediateCount())

	// Arrival instant is outside the window
	tr2 := NewTracker(testItinerary(), false, notify.NewRecorder(), testLogger)
	tr2.Tick(t0.Add(20 * time.Minute))
	assert.Equal(t, 0, tr2.notifier.(*notify.Recorder).ImmediateCount())

	// Line 1: avg 2 min, window [8:31, 8:35)
	tr.Tick(t0.Add(32 * time.Minute))
	require.Equal(t, 2, rec.ImmediateCount())
	assert.Contains(t, rec.Immediate[1].Body, "St Andrew")

	// 97 is the last transit step and has only 2 stops: never alerts
	tr.Tick(t0.Add(43 * time.Minute))
	assert.Equal(t, 2, rec.ImmediateCount())
}

func TestDestinationAlert(t *testing.T) {
	rec := notify.NewRecorder()
	tr := NewTracker(testItinerary(), false, rec, testLogger)

	far := domain.LatLon{Lat: dest.Lat + 0.01, Lon: dest.Lon}
	assert.False(t, tr.UpdateLocation(t0, far))

	near := domain.LatLon{Lat: dest.Lat + 0.003, Lon: dest.Lon}
	assert.True(t, tr.UpdateLocation(t0, near))
	assert.False(t, tr.UpdateLocation(t0, dest))
	assert.Equal(t, 1, rec.ImmediateCount())

	assert.True(t, tr.Tick(t0).DestinationAlerted)
}

func TestAccessibleRadius(t *testing.T) {
	// About 556 m north of the destination
	pos := domain.LatLon{Lat: dest.Lat + 0.005, Lon: dest.Lon}

	tr := NewTracker(testItinerary(), false, notify.NewRecorder(), testLogger)
	assert.False(t, tr.UpdateLocation(t0, pos))

	rec := notify.NewRecorder()
	accessible := NewTracker(testItinerary(), false, rec, testLogger)
	accessible.SetAccessible(true)
	assert.True(t, accessible.UpdateLocation(t0, pos))
	assert.Equal(t, 1, rec.ImmediateCount())
}

func TestCloseDismisses(t *testing.T) {
	rec := notify.NewRecorder()
	tr := NewTracker(testItinerary(), false, rec, testLogger)
	tr.Tick(t0)
	updates := len(rec.Persistent)

	tr.Close()
	assert.Equal(t, 1, rec.Dismissals)

	tr.Tick(t0.Add(time.Minute))
	assert.Len(t, rec.Persistent, updates)
}

func TestNoTransferAlertAfterClose(t *testing.T) {
	rec := notify.NewRecorder()
	tr := NewTracker(testItinerary(), false, rec, testLogger)
	tr.Tick(t0.Add(10 * time.Minute))
	tr.Close()

	// Inside the 504 transfer window
	s := tr.Tick(t0.Add(16 * time.Minute))
	assert.Equal(t, 1, s.CurrentStepIndex)
	assert.Equal(t, 0, rec.ImmediateCount())
	assert.Len(t, rec.Persistent, 1)
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()

	_, err := Resume(ctx, kv, nil, notify.NewRecorder(), testLogger)
	assert.ErrorIs(t, err, ErrNoItinerary)

	live := testItinerary()
	tr, err := Resume(ctx, kv, &live, notify.NewRecorder(), testLogger)
	require.NoError(t, err)
	assert.False(t, tr.Tick(t0).Offline)

	rec := notify.NewRecorder()
	tr, err = Resume(ctx, kv, nil, rec, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "it-1", tr.Itinerary().ID)
	assert.Len(t, tr.Itinerary().Steps, 5)

	s := tr.Tick(t0.Add(6 * time.Minute))
	assert.True(t, s.Offline)
	assert.Equal(t, 1, s.CurrentStepIndex)
	last, _ := rec.LastPersistent()
	assert.Equal(t, "504 (offline)", last.Label)

	require.NoError(t, kv.Set(ctx, kvstore.KeyLastItinerary, "{broken"))
	_, err = Resume(ctx, kv, nil, rec, testLogger)
	assert.ErrorIs(t, err, ErrNoItinerary)
}
