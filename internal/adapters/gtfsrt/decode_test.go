package gtfsrt

import (
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendPosition(b []byte, lat, lon float32) []byte {
	b = protowire.AppendTag(b, fieldPositionLatitude, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(lat))
	b = protowire.AppendTag(b, fieldPositionLongitude, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(lon))
	return b
}

func appendTripDescriptor(b []byte, tripID, routeID string) []byte {
	b = protowire.AppendTag(b, fieldTripDescID, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(tripID))
	b = protowire.AppendTag(b, fieldTripDescRouteID, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(routeID))
	return b
}

func TestDecodeFeedMessage_VehiclePosition(t *testing.T) {
	var pos []byte
	pos = appendPosition(pos, 53.35, -6.26)

	var trip []byte
	trip = appendTripDescriptor(trip, "T1", "R1")

	var vp []byte
	vp = protowire.AppendTag(vp, fieldVPTrip, protowire.BytesType)
	vp = protowire.AppendBytes(vp, trip)
	vp = protowire.AppendTag(vp, fieldVPPosition, protowire.BytesType)
	vp = protowire.AppendBytes(vp, pos)
	vp = protowire.AppendTag(vp, fieldVPTimestamp, protowire.VarintType)
	vp = protowire.AppendVarint(vp, 1700000000)

	var entity []byte
	entity = protowire.AppendTag(entity, fieldEntityID, protowire.BytesType)
	entity = protowire.AppendBytes(entity, []byte("E1"))
	entity = protowire.AppendTag(entity, fieldEntityVehicle, protowire.BytesType)
	entity = protowire.AppendBytes(entity, vp)

	var feed []byte
	feed = protowire.AppendTag(feed, fieldFeedMessageEntity, protowire.BytesType)
	feed = protowire.AppendBytes(feed, entity)

	fm, err := DecodeFeedMessage(feed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fm.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(fm.Entities))
	}
	e := fm.Entities[0]
	if e.ID != "E1" {
		t.Errorf("id = %q, want E1", e.ID)
	}
	if e.Vehicle == nil {
		t.Fatal("expected vehicle position")
	}
	if e.Vehicle.Trip.TripID != "T1" || e.Vehicle.Trip.RouteID != "R1" {
		t.Errorf("trip = %+v", e.Vehicle.Trip)
	}
	if math.Abs(float64(e.Vehicle.Position.Latitude)-53.35) > 1e-4 {
		t.Errorf("latitude = %v, want ~53.35", e.Vehicle.Position.Latitude)
	}
	if e.Vehicle.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d", e.Vehicle.Timestamp)
	}
}

func TestDecodeFeedMessage_TripUpdateDelay(t *testing.T) {
	// Delay is a plain (non-zigzag) int32; encode -45 as protoc would, via
	// sign-extension to uint64.
	var ev []byte
	ev = protowire.AppendTag(ev, fieldSTEDelay, protowire.VarintType)
	ev = protowire.AppendVarint(ev, uint64(int64(int32(-45))))

	var stu []byte
	stu = protowire.AppendTag(stu, fieldSTUArrival, protowire.BytesType)
	stu = protowire.AppendBytes(stu, ev)

	var trip []byte
	trip = appendTripDescriptor(trip, "T9", "R9")

	var tu []byte
	tu = protowire.AppendTag(tu, fieldTUTrip, protowire.BytesType)
	tu = protowire.AppendBytes(tu, trip)
	tu = protowire.AppendTag(tu, fieldTUStopTimeUpdate, protowire.BytesType)
	tu = protowire.AppendBytes(tu, stu)

	var entity []byte
	entity = protowire.AppendTag(entity, fieldEntityTripUpdate, protowire.BytesType)
	entity = protowire.AppendBytes(entity, tu)

	var feed []byte
	feed = protowire.AppendTag(feed, fieldFeedMessageEntity, protowire.BytesType)
	feed = protowire.AppendBytes(feed, entity)

	fm, err := DecodeFeedMessage(feed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tuOut := fm.Entities[0].TripUpdate
	if tuOut == nil {
		t.Fatal("expected trip update")
	}
	if len(tuOut.StopTimeUpdate) != 1 {
		t.Fatalf("expected 1 stop_time_update, got %d", len(tuOut.StopTimeUpdate))
	}
	arrival := tuOut.StopTimeUpdate[0].Arrival
	if arrival == nil || arrival.Delay == nil {
		t.Fatal("expected arrival delay")
	}
	if *arrival.Delay != -45 {
		t.Errorf("delay = %d, want -45", *arrival.Delay)
	}
}
