package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

func TestListFleet_ReturnsRecordsAndTimestamp(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V1", RouteID: "R1", Timestamp: now})
	if err := store.SetWithTTL(ctx, KeyFleetTimestamp, []byte(now.Format(time.RFC3339)), 0); err != nil {
		t.Fatalf("set fleet timestamp: %v", err)
	}

	records, ts, err := ListFleet(ctx, store)
	if err != nil {
		t.Fatalf("list fleet: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !ts.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", ts, now)
	}
}

func TestFleetTimestamp_NotFoundReturnsFalse(t *testing.T) {
	store := memstore.New()
	_, ok, err := FleetTimestamp(context.Background(), store)
	if err != nil {
		t.Fatalf("fleet timestamp: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when no poll has ever completed")
	}
}

func TestGetVehicle_FoundAndNotFound(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V1", RouteID: "R1", Timestamp: time.Now()})

	v, ok, err := GetVehicle(ctx, store, "V1")
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if !ok || v.VehicleID != "V1" {
		t.Fatalf("expected to find V1, got ok=%v v=%+v", ok, v)
	}

	_, ok, err = GetVehicle(ctx, store, "missing")
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an unknown vehicle")
	}
}
