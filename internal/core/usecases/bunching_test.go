package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

func TestDetectBunching_ClosePairIsSevere(t *testing.T) {
	store := memstore.New()
	now := time.Now()

	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V1", RouteID: "R1", RouteShortName: "1",
		Latitude: 53.3500, Longitude: -6.2600, Timestamp: now,
	})
	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V2", RouteID: "R1", RouteShortName: "1",
		Latitude: 53.3505, Longitude: -6.2600, Timestamp: now,
	})

	report, err := DetectBunching(context.Background(), store, nil, now)
	if err != nil {
		t.Fatalf("detect bunching: %v", err)
	}

	if len(report.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(report.Alerts))
	}
	alert := report.Alerts[0]
	if alert.RouteID != "R1" {
		t.Fatalf("expected alert for R1, got %s", alert.RouteID)
	}
	if alert.Severity != domain.SeveritySevere {
		t.Fatalf("expected severe bunching at ~55m apart, got %s (%.0fm)", alert.Severity, alert.WorstDistanceM)
	}

	worst := alert.Worst
	if worst.VehicleALatitude != 53.3500 || worst.VehicleALongitude != -6.2600 {
		t.Fatalf("expected vehicle A endpoint preserved, got %v,%v", worst.VehicleALatitude, worst.VehicleALongitude)
	}
	if worst.VehicleBLatitude != 53.3505 || worst.VehicleBLongitude != -6.2600 {
		t.Fatalf("expected vehicle B endpoint preserved, got %v,%v", worst.VehicleBLatitude, worst.VehicleBLongitude)
	}
}

func TestDetectBunching_DistantVehiclesDoNotBunch(t *testing.T) {
	store := memstore.New()
	now := time.Now()

	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V1", RouteID: "R1", Latitude: 53.3500, Longitude: -6.2600, Timestamp: now,
	})
	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V2", RouteID: "R1", Latitude: 53.4000, Longitude: -6.3500, Timestamp: now,
	})

	report, err := DetectBunching(context.Background(), store, nil, now)
	if err != nil {
		t.Fatalf("detect bunching: %v", err)
	}
	if len(report.Alerts) != 0 {
		t.Fatalf("expected no bunching alerts, got %+v", report.Alerts)
	}
}

func TestDetectBunching_DifferentRoutesNeverPaired(t *testing.T) {
	store := memstore.New()
	now := time.Now()

	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V1", RouteID: "R1", Latitude: 53.3500, Longitude: -6.2600, Timestamp: now,
	})
	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V2", RouteID: "R2", Latitude: 53.3500, Longitude: -6.2600, Timestamp: now,
	})

	report, err := DetectBunching(context.Background(), store, nil, now)
	if err != nil {
		t.Fatalf("detect bunching: %v", err)
	}
	if len(report.Alerts) != 0 {
		t.Fatalf("expected no cross-route bunching, got %+v", report.Alerts)
	}
}

func TestDetectBunching_StaleVehiclesExcluded(t *testing.T) {
	store := memstore.New()
	now := time.Now()

	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V1", RouteID: "R1", Latitude: 53.3500, Longitude: -6.2600,
		Timestamp: now.Add(-10 * time.Minute),
	})
	putVehicle(t, store, domain.VehicleRecord{
		VehicleID: "V2", RouteID: "R1", Latitude: 53.3505, Longitude: -6.2600,
		Timestamp: now.Add(-10 * time.Minute),
	})

	report, err := DetectBunching(context.Background(), store, nil, now)
	if err != nil {
		t.Fatalf("detect bunching: %v", err)
	}
	if report.TotalLiveVehicles != 0 || len(report.Alerts) != 0 {
		t.Fatalf("expected stale vehicles excluded entirely, got %+v", report)
	}
}
