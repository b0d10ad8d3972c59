package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

func putVehicle(t *testing.T, store *memstore.Store, v domain.VehicleRecord) {
	t.Helper()
	ctx := context.Background()
	if err := store.HashSet(ctx, VehicleKey(v.VehicleID), vehicleToHash(v)); err != nil {
		t.Fatalf("hash set: %v", err)
	}
	if err := store.SetAdd(ctx, KeyFleet, v.VehicleID); err != nil {
		t.Fatalf("set add: %v", err)
	}
}

func TestDetectGhosts_StaleVehicleBecomesGhostBus(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V1", RouteID: "R1", RouteShortName: "1",
		Timestamp: now.Add(-3 * time.Minute),
	})
	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V2", RouteID: "R2", RouteShortName: "2",
		Timestamp: now.Add(-10 * time.Second),
	})

	report, err := DetectGhosts(context.Background(), store, nil, now)
	if err != nil {
		t.Fatalf("detect ghosts: %v", err)
	}

	if len(report.GhostBuses) != 1 || report.GhostBuses[0].VehicleID != "V1" {
		t.Fatalf("expected V1 as the only ghost bus, got %+v", report.GhostBuses)
	}
	if report.TotalLiveVehicles != 1 {
		t.Fatalf("expected 1 live vehicle, got %d", report.TotalLiveVehicles)
	}
	if report.TotalGhostVehicles != 1 {
		t.Fatalf("expected 1 ghost vehicle, got %d", report.TotalGhostVehicles)
	}
}

func TestDetectGhosts_RouteWithNoLiveVehicleIsGhostRoute(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V1", RouteID: "R1", RouteShortName: "1",
		Timestamp: now,
	})

	catalog := newFakeCatalog()
	catalog.routes["R1"] = "1"
	catalog.routes["R2"] = "2"

	report, err := DetectGhosts(context.Background(), store, catalog, now)
	if err != nil {
		t.Fatalf("detect ghosts: %v", err)
	}

	if len(report.GhostRoutes) != 1 || report.GhostRoutes[0].RouteID != "R2" {
		t.Fatalf("expected R2 as the only ghost route, got %+v", report.GhostRoutes)
	}
	if report.TotalRoutesWithBuses != 1 {
		t.Fatalf("expected 1 route with buses, got %d", report.TotalRoutesWithBuses)
	}
}

func TestDetectGhosts_EmptyFleet(t *testing.T) {
	store := memstore.New()
	report, err := DetectGhosts(context.Background(), store, nil, time.Now())
	if err != nil {
		t.Fatalf("detect ghosts: %v", err)
	}
	if len(report.GhostBuses) != 0 || len(report.GhostRoutes) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
