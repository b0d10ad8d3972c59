package usecases

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

func TestComputeStatsRecord_BucketsOnTimeDelays(t *testing.T) {
	store := memstore.New()
	now := time.Now()
	catalog := newFakeCatalog()

	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V1", RouteID: "R1", DelaySeconds: 100, Timestamp: now})
	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V2", RouteID: "R1", DelaySeconds: 700, Timestamp: now})
	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V3", RouteID: "R1", DelaySeconds: 1000, Timestamp: now})

	record, err := ComputeStatsRecord(context.Background(), store, catalog, now)
	if err != nil {
		t.Fatalf("compute stats record: %v", err)
	}
	if record.TotalVehicles != 3 {
		t.Fatalf("expected 3 vehicles, got %d", record.TotalVehicles)
	}
	if record.OnTime0to300 != 1 || record.OnTime601to900 != 1 || record.OnTimeOver900 != 1 {
		t.Fatalf("unexpected delay buckets: %+v", record)
	}
}

func TestTopDelayedRoutes_RequiresMinimumSampleCount(t *testing.T) {
	live := []domain.VehicleRecord{
		{VehicleID: "V1", RouteID: "R1", RouteShortName: "1", DelaySeconds: 500},
		{VehicleID: "V2", RouteID: "R1", RouteShortName: "1", DelaySeconds: 500},
		// Only 2 samples on R1: below minDelaySampleCount (3), so excluded.
	}
	stats := topDelayedRoutes(live)
	if len(stats) != 0 {
		t.Fatalf("expected no routes below the minimum sample count, got %+v", stats)
	}
}

func TestTopDelayedRoutes_SortedWorstFirst(t *testing.T) {
	live := []domain.VehicleRecord{
		{VehicleID: "V1", RouteID: "R1", RouteShortName: "1", DelaySeconds: 100},
		{VehicleID: "V2", RouteID: "R1", RouteShortName: "1", DelaySeconds: 100},
		{VehicleID: "V3", RouteID: "R1", RouteShortName: "1", DelaySeconds: 100},
		{VehicleID: "V4", RouteID: "R2", RouteShortName: "2", DelaySeconds: 900},
		{VehicleID: "V5", RouteID: "R2", RouteShortName: "2", DelaySeconds: 900},
		{VehicleID: "V6", RouteID: "R2", RouteShortName: "2", DelaySeconds: 900},
	}
	stats := topDelayedRoutes(live)
	if len(stats) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(stats))
	}
	if stats[0].RouteID != "R2" {
		t.Fatalf("expected R2 (worse delay) first, got %s", stats[0].RouteID)
	}
}

func TestSummarizeStatsFile_AveragesAcrossRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.ndjson")

	records := []StatsRecord{
		{Timestamp: time.Now(), Hour: 8, TotalVehicles: 10, OnTimePct: 90, AvgDelaySeconds: 50},
		{Timestamp: time.Now(), Hour: 8, TotalVehicles: 20, OnTimePct: 70, AvgDelaySeconds: 150},
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create stats file: %v", err)
	}
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		if _, err := f.Write(append(raw, '\n')); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
	f.Close()

	summary, err := SummarizeStatsFile(path)
	if err != nil {
		t.Fatalf("summarize stats file: %v", err)
	}
	if summary.SampleCount != 2 {
		t.Fatalf("expected 2 samples, got %d", summary.SampleCount)
	}
	if summary.AvgTotalVehicles != 15 {
		t.Fatalf("expected avg vehicles 15, got %v", summary.AvgTotalVehicles)
	}
	if summary.AvgOnTimePct != 80 {
		t.Fatalf("expected avg on-time 80, got %v", summary.AvgOnTimePct)
	}
	if summary.OnTimePctByHour[8] != 80 {
		t.Fatalf("expected hour-8 bucket avg 80, got %v", summary.OnTimePctByHour[8])
	}
}

func TestSummarizeStatsFile_MissingFileErrors(t *testing.T) {
	_, err := SummarizeStatsFile(filepath.Join(t.TempDir(), "missing.ndjson"))
	if err == nil {
		t.Fatal("expected an error reading a nonexistent stats file")
	}
}
