package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

func TestComputeHealth_AllOnTimeScoresWell(t *testing.T) {
	store := memstore.New()
	now := time.Now()
	catalog := newFakeCatalog()
	catalog.routes["R1"] = "1"

	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V1", RouteID: "R1", DelaySeconds: 10, Timestamp: now})
	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V2", RouteID: "R1", DelaySeconds: -20, Timestamp: now})

	report, err := ComputeHealth(context.Background(), store, catalog, now)
	if err != nil {
		t.Fatalf("compute health: %v", err)
	}
	if report.TotalLiveVehicles != 2 {
		t.Fatalf("expected 2 live vehicles, got %d", report.TotalLiveVehicles)
	}
	if report.Score < 50 {
		t.Fatalf("expected a healthy score with all on-time vehicles, got %d", report.Score)
	}
	if len(report.Components) != 4 {
		t.Fatalf("expected 4 scoring components, got %d", len(report.Components))
	}
}

func TestComputeHealth_CachesResult(t *testing.T) {
	store := memstore.New()
	now := time.Now()
	catalog := newFakeCatalog()

	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V1", RouteID: "R1", Timestamp: now})

	first, err := ComputeHealth(context.Background(), store, catalog, now)
	if err != nil {
		t.Fatalf("compute health: %v", err)
	}

	// Mutate the underlying fleet after the first call; since the result is
	// cached, a second call within the TTL must return the identical report
	// rather than recomputing from the new state.
	putVehicle(t, store, domain.VehicleRecord{VehicleID: "V2", RouteID: "R2", Timestamp: now})

	second, err := ComputeHealth(context.Background(), store, catalog, now)
	if err != nil {
		t.Fatalf("compute health (cached): %v", err)
	}
	if second.TotalLiveVehicles != first.TotalLiveVehicles {
		t.Fatalf("expected cached result, got fresh recompute: first=%d second=%d", first.TotalLiveVehicles, second.TotalLiveVehicles)
	}
}

func TestHealthGradeAndStatus_Boundaries(t *testing.T) {
	cases := []struct {
		score int
		grade string
		status string
	}{
		{95, "A", "excellent"},
		{80, "B", "good"},
		{65, "C", "fair"},
		{45, "D", "poor"},
		{10, "F", "crisis"},
	}
	for _, c := range cases {
		if g := healthGrade(c.score); g != c.grade {
			t.Errorf("healthGrade(%d) = %s, want %s", c.score, g, c.grade)
		}
		if s := healthStatus(c.score); s != c.status {
			t.Errorf("healthStatus(%d) = %s, want %s", c.score, s, c.status)
		}
	}
}

func TestPassengerComfortScore_NoReportsDefaultsModerate(t *testing.T) {
	score := passengerComfortScore(domain.CrowdingSnapshot{})
	if score != 85 {
		t.Fatalf("expected default comfort score of 85 with no reports, got %v", score)
	}
}

func TestPassengerComfortScore_FullRoutesScoreWorse(t *testing.T) {
	crowded := domain.CrowdingSnapshot{
		RouteSummaries: []domain.RouteCrowdingSummary{
			{RouteID: "R1", Levels: map[string]int{string(domain.CrowdFull): 10}, ReportCount: 10},
		},
	}
	comfy := domain.CrowdingSnapshot{
		RouteSummaries: []domain.RouteCrowdingSummary{
			{RouteID: "R1", Levels: map[string]int{string(domain.CrowdEmpty): 10}, ReportCount: 10},
		},
	}
	if passengerComfortScore(crowded) >= passengerComfortScore(comfy) {
		t.Fatalf("expected a fully-crowded route to score worse than an empty one")
	}
}
