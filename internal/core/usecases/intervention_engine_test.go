package usecases

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/memstore"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

func TestGenerateInterventions_BunchingProducesHold(t *testing.T) {
	store := memstore.New()
	catalog := newFakeCatalog()
	catalog.stops["S1"] = domain.StopInfo{Name: "Parnell Street", Latitude: 53.35, Longitude: -6.26}
	now := time.Now()

	bunching := domain.BunchingReport{
		Alerts: []domain.BunchingAlert{
			{
				RouteID:   "R1",
				RouteName: "1",
				Severity:  domain.SeveritySevere,
				PairCount: 1,
				Worst: domain.BunchingPair{
					VehicleA: "V1", VehicleB: "V2", RouteID: "R1", RouteName: "1",
					DistanceM: 80, MidLatitude: 53.35, MidLongitude: -6.26,
					Severity: domain.SeveritySevere,
				},
			},
		},
		TotalPairs: 1,
	}

	interventions, err := GenerateInterventions(context.Background(), store, catalog, domain.GhostBusReport{}, bunching, domain.CrowdingSnapshot{}, now)
	if err != nil {
		t.Fatalf("generate interventions: %v", err)
	}
	if len(interventions) != 1 {
		t.Fatalf("expected 1 intervention, got %d", len(interventions))
	}
	iv := interventions[0]
	if iv.Type != domain.InterventionHold {
		t.Fatalf("expected HOLD, got %s", iv.Type)
	}
	if iv.Priority != domain.PriorityCritical {
		t.Fatalf("expected critical priority for severe bunching, got %s", iv.Priority)
	}
	if iv.VehicleID != "V2" {
		t.Fatalf("expected the trailing bus V2 to be held, got %s", iv.VehicleID)
	}
	if iv.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %s", iv.Status)
	}

	active, err := ActiveInterventions(context.Background(), store)
	if err != nil {
		t.Fatalf("active interventions: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 stored active intervention, got %d", len(active))
	}
}

func TestGenerateInterventions_GhostRouteProducesDeploy(t *testing.T) {
	store := memstore.New()
	catalog := newFakeCatalog()
	catalog.repStops["R9"] = domain.StopInfo{Name: "Depot Stop", Latitude: 53.36, Longitude: -6.27}
	now := time.Now()

	ghosts := domain.GhostBusReport{
		GhostRoutes: []domain.GhostRoute{{RouteID: "R9", RouteShortName: "9"}},
	}

	interventions, err := GenerateInterventions(context.Background(), store, catalog, ghosts, domain.BunchingReport{}, domain.CrowdingSnapshot{}, now)
	if err != nil {
		t.Fatalf("generate interventions: %v", err)
	}
	if len(interventions) != 1 {
		t.Fatalf("expected 1 intervention, got %d", len(interventions))
	}
	if interventions[0].Type != domain.InterventionDeploy {
		t.Fatalf("expected DEPLOY, got %s", interventions[0].Type)
	}
	if interventions[0].Trigger != domain.TriggerGhost {
		t.Fatalf("expected ghost trigger, got %s", interventions[0].Trigger)
	}
}

func TestGenerateInterventions_CrowdingSurgeTrigger(t *testing.T) {
	store := memstore.New()
	catalog := newFakeCatalog()
	now := time.Now()

	crowding := domain.CrowdingSnapshot{
		RouteSummaries: []domain.RouteCrowdingSummary{
			{
				RouteID:   "R1",
				RouteName: "1",
				Levels:    map[string]int{string(domain.CrowdFull): 2, string(domain.CrowdStanding): 1},
			},
		},
	}

	interventions, err := GenerateInterventions(context.Background(), store, catalog, domain.GhostBusReport{}, domain.BunchingReport{}, crowding, now)
	if err != nil {
		t.Fatalf("generate interventions: %v", err)
	}
	if len(interventions) != 1 {
		t.Fatalf("expected 1 surge intervention, got %d", len(interventions))
	}
	iv := interventions[0]
	if iv.Type != domain.InterventionSurge {
		t.Fatalf("expected SURGE, got %s", iv.Type)
	}
	if iv.Priority != domain.PriorityHigh {
		t.Fatalf("expected high priority at 2 full reports, got %s", iv.Priority)
	}
}

func TestGenerateInterventions_BelowSurgeThresholdProducesNothing(t *testing.T) {
	store := memstore.New()
	catalog := newFakeCatalog()
	now := time.Now()

	crowding := domain.CrowdingSnapshot{
		RouteSummaries: []domain.RouteCrowdingSummary{
			{RouteID: "R1", RouteName: "1", Levels: map[string]int{string(domain.CrowdSeats): 3}},
		},
	}

	interventions, err := GenerateInterventions(context.Background(), store, catalog, domain.GhostBusReport{}, domain.BunchingReport{}, crowding, now)
	if err != nil {
		t.Fatalf("generate interventions: %v", err)
	}
	if len(interventions) != 0 {
		t.Fatalf("expected no interventions below surge threshold, got %d", len(interventions))
	}
}

func TestGenerateInterventions_StoredOrderMatchesPriorityOrder(t *testing.T) {
	store := memstore.New()
	catalog := newFakeCatalog()
	now := time.Now()

	bunching := domain.BunchingReport{
		Alerts: []domain.BunchingAlert{
			{
				RouteID:   "R1",
				RouteName: "1",
				Severity:  domain.SeverityMild,
				PairCount: 1,
				Worst: domain.BunchingPair{
					VehicleA: "V1", VehicleB: "V2", RouteID: "R1", RouteName: "1",
					DistanceM: 350, MidLatitude: 53.35, MidLongitude: -6.26,
					Severity: domain.SeverityMild,
				},
			},
		},
	}
	crowding := domain.CrowdingSnapshot{
		RouteSummaries: []domain.RouteCrowdingSummary{
			{RouteID: "R2", RouteName: "2", Levels: map[string]int{string(domain.CrowdFull): 3}},
		},
	}

	generated, err := GenerateInterventions(context.Background(), store, catalog, domain.GhostBusReport{}, bunching, crowding, now)
	if err != nil {
		t.Fatalf("generate interventions: %v", err)
	}
	if len(generated) != 2 {
		t.Fatalf("expected 2 interventions, got %d", len(generated))
	}
	if generated[0].Priority != domain.PriorityCritical || generated[1].Priority != domain.PriorityMedium {
		t.Fatalf("expected computed order critical,medium, got %s,%s", generated[0].Priority, generated[1].Priority)
	}

	stored, err := ActiveInterventions(context.Background(), store)
	if err != nil {
		t.Fatalf("active interventions: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored interventions, got %d", len(stored))
	}
	if stored[0].ID != generated[0].ID || stored[1].ID != generated[1].ID {
		t.Fatalf("stored order %s,%s does not match computed priority order %s,%s",
			stored[0].ID, stored[1].ID, generated[0].ID, generated[1].ID)
	}
}

func TestActionIntervention_ApproveMovesToHistory(t *testing.T) {
	store := memstore.New()
	catalog := newFakeCatalog()
	now := time.Now()

	crowding := domain.CrowdingSnapshot{
		RouteSummaries: []domain.RouteCrowdingSummary{
			{RouteID: "R1", RouteName: "1", Levels: map[string]int{string(domain.CrowdFull): 3}},
		},
	}
	interventions, err := GenerateInterventions(context.Background(), store, catalog, domain.GhostBusReport{}, domain.BunchingReport{}, crowding, now)
	if err != nil {
		t.Fatalf("generate interventions: %v", err)
	}
	if len(interventions) != 1 {
		t.Fatalf("expected 1 intervention, got %d", len(interventions))
	}
	id := interventions[0].ID

	iv, found, err := ActionIntervention(context.Background(), store, id, domain.ActionApprove, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("action intervention: %v", err)
	}
	if !found {
		t.Fatal("expected intervention to be found")
	}
	if iv.Status != domain.StatusApproved {
		t.Fatalf("expected approved status, got %s", iv.Status)
	}
	if iv.ActionedAt == nil {
		t.Fatal("expected ActionedAt to be set")
	}

	history, err := InterventionHistory(context.Background(), store, 0, 10)
	if err != nil {
		t.Fatalf("intervention history: %v", err)
	}
	if len(history) != 1 || history[0].ID != id {
		t.Fatalf("expected the approved intervention in history, got %+v", history)
	}

	active, err := ActiveInterventions(context.Background(), store)
	if err != nil {
		t.Fatalf("active interventions: %v", err)
	}
	if len(active) != 1 || active[0].Status != domain.StatusApproved {
		t.Fatalf("expected active list entry updated in place, got %+v", active)
	}
}

func TestActionIntervention_UnknownIDNotFound(t *testing.T) {
	store := memstore.New()
	_, found, err := ActionIntervention(context.Background(), store, "nope", domain.ActionApprove, time.Now())
	if err != nil {
		t.Fatalf("action intervention: %v", err)
	}
	if found {
		t.Fatal("expected not found for an unknown id")
	}
}

func TestInterventionHistory_RespectsOffsetAndLimit(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		iv := domain.Intervention{ID: string(rune('a' + i)), Status: domain.StatusDismissed}
		raw, err := json.Marshal(iv)
		if err != nil {
			t.Fatalf("marshal seed intervention: %v", err)
		}
		if err := store.ListPushLeft(ctx, KeyInterventionsHistory, string(raw)); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	page, err := InterventionHistory(ctx, store, 1, 2)
	if err != nil {
		t.Fatalf("intervention history: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected a page of 2, got %d", len(page))
	}
}
