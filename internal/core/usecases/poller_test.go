package usecases

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/gtfsrt"
	"github.com/transitiq/nervecentre/internal/adapters/memstore"
)

func float32p(f float32) *float32 { return &f }
func int32p(i int32) *int32       { return &i }

func TestBuildVehicleRecords_ResolvesDelayAndRouteName(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	feed := &gtfsrt.FeedMessage{
		Entities: []gtfsrt.FeedEntity{
			{
				ID: "E1",
				Vehicle: &gtfsrt.VehiclePosition{
					Trip:     gtfsrt.TripDescriptor{TripID: "T1", RouteID: "R1"},
					Vehicle:  gtfsrt.VehicleDescriptor{ID: "V1"},
					Position: gtfsrt.Position{Latitude: 53.35, Longitude: -6.26, Speed: float32p(10)},
				},
			},
		},
	}
	delays := map[string]int{"T1": 90}
	catalog := newFakeCatalog()
	catalog.tripRoutes["T1"] = "R1"
	catalog.routes["R1"] = "1"

	records := buildVehicleRecords(feed, delays, catalog, now)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	v := records[0]
	if v.VehicleID != "V1" || v.RouteID != "R1" || v.RouteShortName != "1" {
		t.Fatalf("unexpected record: %+v", v)
	}
	if v.DelaySeconds != 90 {
		t.Fatalf("expected delay 90, got %d", v.DelaySeconds)
	}
	if v.SpeedKmh == nil || *v.SpeedKmh != 36.0 {
		t.Fatalf("expected speed 36km/h, got %v", v.SpeedKmh)
	}
}

func TestBuildVehicleRecords_FallsBackToEntityID(t *testing.T) {
	feed := &gtfsrt.FeedMessage{
		Entities: []gtfsrt.FeedEntity{
			{ID: "E1", Vehicle: &gtfsrt.VehiclePosition{}},
		},
	}
	records := buildVehicleRecords(feed, nil, nil, time.Now())
	if len(records) != 1 || records[0].VehicleID != "E1" {
		t.Fatalf("expected fallback to entity id, got %+v", records)
	}
}

func TestBuildVehicleRecords_SkipsEntityWithNoID(t *testing.T) {
	feed := &gtfsrt.FeedMessage{
		Entities: []gtfsrt.FeedEntity{
			{Vehicle: &gtfsrt.VehiclePosition{}},
			{TripUpdate: &gtfsrt.TripUpdate{}},
		},
	}
	records := buildVehicleRecords(feed, nil, nil, time.Now())
	if len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestBuildDelayMap_WorstStopWins(t *testing.T) {
	feed := &gtfsrt.FeedMessage{
		Entities: []gtfsrt.FeedEntity{
			{
				TripUpdate: &gtfsrt.TripUpdate{
					Trip: gtfsrt.TripDescriptor{TripID: "T1"},
					StopTimeUpdate: []gtfsrt.StopTimeUpdate{
						{Arrival: &gtfsrt.StopTimeEvent{Delay: int32p(-30)}},
						{Departure: &gtfsrt.StopTimeEvent{Delay: int32p(120)}},
					},
				},
			},
		},
	}
	delays := buildDelayMap(feed)
	if delays["T1"] != 120 {
		t.Fatalf("expected worst delay 120, got %d", delays["T1"])
	}
}

func TestBuildDelayMap_ZeroDelayOmitted(t *testing.T) {
	feed := &gtfsrt.FeedMessage{
		Entities: []gtfsrt.FeedEntity{
			{TripUpdate: &gtfsrt.TripUpdate{
				Trip:           gtfsrt.TripDescriptor{TripID: "T1"},
				StopTimeUpdate: []gtfsrt.StopTimeUpdate{{Arrival: &gtfsrt.StopTimeEvent{Delay: int32p(0)}}},
			}},
		},
	}
	delays := buildDelayMap(feed)
	if _, ok := delays["T1"]; ok {
		t.Fatalf("expected zero delay to be omitted, got %v", delays)
	}
}

// fakeFeedSource is a ports.FeedSource stand-in that returns pre-baked
// protobuf bytes (or an error) without touching the network.
type fakeFeedSource struct {
	vp, tu       []byte
	vpErr, tuErr error
}

func (f *fakeFeedSource) FetchVehiclePositions(ctx context.Context) ([]byte, error) {
	return f.vp, f.vpErr
}

func (f *fakeFeedSource) FetchTripUpdates(ctx context.Context) ([]byte, error) {
	return f.tu, f.tuErr
}

func emptyFeedBytes(t *testing.T) []byte {
	t.Helper()
	// An empty FeedMessage (no entities) is valid wire-format input: a
	// zero-length payload decodes to a FeedMessage with no fields set.
	return []byte{}
}

func TestPoller_Tick_VehiclePositionsFetchErrorAborts(t *testing.T) {
	store := memstore.New()
	p := &Poller{
		Store:        store,
		Feed:         &fakeFeedSource{vpErr: errors.New("upstream 429")},
		BaseInterval: time.Second,
		Logger:       slog.Default(),
	}
	err := p.Tick(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected tick to fail when vehicle positions fetch errors")
	}
}

func TestPoller_Tick_TripUpdatesFailureIsNonFatal(t *testing.T) {
	store := memstore.New()
	p := &Poller{
		Store:        store,
		Feed:         &fakeFeedSource{vp: emptyFeedBytes(t), tuErr: errors.New("trip updates down")},
		BaseInterval: time.Second,
		Logger:       slog.Default(),
	}
	if err := p.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("expected tick to succeed despite trip-updates failure, got %v", err)
	}
	ids, err := store.SetMembers(context.Background(), KeyFleet)
	if err != nil {
		t.Fatalf("set members: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty fleet from an empty feed, got %v", ids)
	}
}

func TestNextBackoff_CapsAtMax(t *testing.T) {
	base := 5 * time.Second
	d := base
	for i := 0; i < 20; i++ {
		d = nextBackoff(d, base)
	}
	if d != maxPollBackoff {
		t.Fatalf("expected backoff to cap at %v, got %v", maxPollBackoff, d)
	}
}
