package ingestor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	p "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"

	"transitpulse/internal/domain"
	"transitpulse/internal/metrics"
	"transitpulse/internal/store"
	"transitpulse/pkg/gtfsrt"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func feed(t *testing.T, entities ...*p.FeedEntity) []byte {
	data, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1702473763),
		},
		Entity: entities,
	})
	require.NoError(t, err)
	return data
}

func vehicleEntity(id, route string, lat, lon float32) *p.FeedEntity {
	return &p.FeedEntity{
		Id: proto.String(id),
		Vehicle: &p.VehiclePosition{
			Trip:     &p.TripDescriptor{TripId: proto.String("trip-" + id), RouteId: proto.String(route)},
			Position: &p.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
		},
	}
}

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	err       error
	block     chan struct{}
	calls     int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[url], nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	deltas []domain.VehicleDelta
}

func (b *recordingBroadcaster) Broadcast(deltas []domain.VehicleDelta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deltas = append(b.deltas, deltas...)
}

func testOptions() Options {
	return Options{
		Sources: []FeedSource{
			{Kind: domain.FeedVehiclePositions, URL: "vp", Interval: time.Hour},
			{Kind: domain.FeedTripUpdates, URL: "tu", Interval: time.Hour},
			{Kind: domain.FeedServiceAlerts, URL: "sa", Interval: time.Hour},
		},
		Timeout:       time.Second,
		AlertLanguage: "en",
		ZoomLevel:     14,
	}
}

func TestPollOnceReplacesSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"vp": feed(t, vehicleEntity("v1", "504", 43.65, -79.38), vehicleEntity("v2", "505", 43.66, -79.39)),
	}}
	cache := store.New(nil)
	bc := &recordingBroadcaster{}
	poller := New(fetcher, cache, bc, metrics.NewCollector(), testOptions(), testLogger)

	require.NoError(t, poller.PollOnce(context.Background(), domain.FeedVehiclePositions))

	snap := cache.Vehicles()
	assert.Equal(t, 2, snap.EntityCount)
	assert.NotEmpty(t, snap.Entities["v1"].TileID)
	assert.Len(t, bc.deltas, 2)
	assert.False(t, poller.IsReady())
}

func TestPollFailureKeepsPreviousSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"vp": feed(t, vehicleEntity("v1", "504", 43.65, -79.38)),
	}}
	cache := store.New(nil)
	poller := New(fetcher, cache, nil, nil, testOptions(), testLogger)

	require.NoError(t, poller.PollOnce(context.Background(), domain.FeedVehiclePositions))
	before := cache.Vehicles()

	fetcher.err = errors.New("connection refused")
	assert.Error(t, poller.PollOnce(context.Background(), domain.FeedVehiclePositions))

	after := cache.Vehicles()
	assert.Same(t, before, after)
	assert.Equal(t, before.FetchedAt, cache.Health()[domain.FeedVehiclePositions].LastFetch)

	// Undecodable payload is also a failure
	fetcher.err = nil
	fetcher.responses["vp"] = []byte("garbage \xff\xff")
	assert.Error(t, poller.PollOnce(context.Background(), domain.FeedVehiclePositions))
	assert.Same(t, before, cache.Vehicles())
}

func TestPollOnceUnknownFeed(t *testing.T) {
	opts := testOptions()
	opts.Sources = opts.Sources[:1]
	poller := New(&fakeFetcher{}, store.New(nil), nil, nil, opts, testLogger)

	assert.Error(t, poller.PollOnce(context.Background(), domain.FeedServiceAlerts))
}

func TestReadyAfterEveryFeed(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"vp": feed(t, vehicleEntity("v1", "504", 43.65, -79.38)),
		"tu": feed(t, &p.FeedEntity{
			Id:         proto.String("t1"),
			TripUpdate: &p.TripUpdate{Trip: &p.TripDescriptor{TripId: proto.String("trip1"), RouteId: proto.String("504")}},
		}),
		"sa": feed(t),
	}}
	cache := store.New(nil)
	poller := New(fetcher, cache, nil, nil, testOptions(), testLogger)

	for _, kind := range domain.FeedKinds {
		assert.False(t, poller.IsReady())
		require.NoError(t, poller.PollOnce(context.Background(), kind))
	}
	assert.True(t, poller.IsReady())
	assert.Equal(t, 1, cache.TripUpdates().EntityCount)
	assert.True(t, cache.Loaded())
}

func TestTickSingleFlight(t *testing.T) {
	fetcher := &fakeFetcher{
		responses: map[string][]byte{"vp": feed(t, vehicleEntity("v1", "504", 43.65, -79.38))},
		block:     make(chan struct{}),
	}
	cache := store.New(nil)
	poller := New(fetcher, cache, nil, nil, testOptions(), testLogger)
	src := testOptions().Sources[0]

	done := make(chan struct{})
	go func() {
		poller.tick(context.Background(), src)
		close(done)
	}()

	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// Second tick while the first is blocked is dropped
	poller.tick(context.Background(), src)
	assert.Equal(t, 1, fetcher.callCount())

	close(fetcher.block)
	<-done
	assert.Equal(t, 1, cache.Vehicles().EntityCount)

	// Guard is released afterwards
	fetcher.mu.Lock()
	fetcher.block = nil
	fetcher.mu.Unlock()
	poller.tick(context.Background(), src)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestRunPollsImmediatelyOverHTTP(t *testing.T) {
	vp := feed(t, vehicleEntity("v1", "504", 43.65, -79.38))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(vp)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.Sources = []FeedSource{{Kind: domain.FeedVehiclePositions, URL: srv.URL, Interval: time.Hour}}

	cache := store.New(nil)
	poller := New(gtfsrt.NewClient("secret", ""), cache, nil, nil, opts, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(finished)
	}()

	require.Eventually(t, poller.IsReady, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, cache.Vehicles().EntityCount)

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
