package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
)

const (
	defaultCityLatitude  = 53.3498
	defaultCityLongitude = -6.2603

	holdTargetGapSeconds   = 600
	holdMinSeconds         = 30
	holdMaxSeconds         = 180
	minCurrentGapSeconds   = 30
	speedMetersPerSecond   = 5.5

	deployTopGhostRoutes     = 10
	deployMinutesPerMeter    = 500.0
	deployMinMinutes         = 5
	staleVehicleDeploySecs   = 300
	staleVehicleDeployMax    = 5
	staleDeployPassengers    = 75
	staleDeployConfidence    = 0.60

	surgeFullTrigger     = 2
	surgeFullStandingSum = 3
	surgePassengerBase   = 75.0
	surgePassengerFactor = 0.9
	surgeWaitImpactSecs  = -180

	passengersPerBus = 75.0

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// MaxHistoryLimit is the append-only history cap (interventionHistoryCap
	// in keys.go), exported for callers that need the full backlog size for
	// pagination.
	MaxHistoryLimit = maxHistoryLimit
)

// GenerateInterventions runs all three intervention families over the
// current detector outputs, orders and caps the result, and stores it in
// interventions:active with a 30-minute TTL.
func GenerateInterventions(ctx context.Context, store ports.StateStore, catalog ports.StaticCatalog, ghosts domain.GhostBusReport, bunching domain.BunchingReport, crowding domain.CrowdingSnapshot, now time.Time) ([]domain.Intervention, error) {
	var interventions []domain.Intervention
	interventions = append(interventions, holdInterventions(bunching, catalog, now)...)
	interventions = append(interventions, deployInterventions(ghosts, catalog, now)...)
	interventions = append(interventions, surgeInterventions(crowding, now)...)

	sort.SliceStable(interventions, func(i, j int) bool {
		return interventions[i].Priority.Rank() < interventions[j].Priority.Rank()
	})
	if len(interventions) > interventionActiveCap {
		interventions = interventions[:interventionActiveCap]
	}

	if err := storeActiveInterventions(ctx, store, interventions); err != nil {
		return nil, err
	}
	for _, iv := range interventions {
		metrics.InterventionsGenerated.WithLabelValues(string(iv.Type)).Inc()
	}
	return interventions, nil
}

// storeActiveInterventions pipelines the priority-sorted interventions into
// interventions:active. The Pipeline interface only exposes ListPushLeft
// (LPUSH), which reverses insertion order, so interventions are queued
// tail-to-head here to land stored in the same head-to-tail priority order
// they were computed in.
func storeActiveInterventions(ctx context.Context, store ports.StateStore, interventions []domain.Intervention) error {
	p := store.Pipeline()
	p.Delete(KeyInterventionsActive)
	for i := len(interventions) - 1; i >= 0; i-- {
		raw, err := json.Marshal(interventions[i])
		if err != nil {
			return fmt.Errorf("marshal intervention: %w", err)
		}
		p.ListPushLeft(KeyInterventionsActive, string(raw))
	}
	p.Expire(KeyInterventionsActive, interventionTTLSeconds*time.Second)
	return p.Exec(ctx)
}

func newInterventionID() string {
	return uuid.NewString()[:8]
}

func holdInterventions(bunching domain.BunchingReport, catalog ports.StaticCatalog, now time.Time) []domain.Intervention {
	var out []domain.Intervention
	for _, alert := range bunching.Alerts {
		pair := alert.Worst
		targetVehicle := pair.VehicleB

		stopName := "next stop"
		lat, lon := pair.MidLatitude, pair.MidLongitude
		if stop, ok := catalog.NearestStop(lat, lon); ok {
			stopName = stop.Name
		}

		currentGap := maxFloat(minCurrentGapSeconds, pair.DistanceM/speedMetersPerSecond)
		holdSeconds := int(clamp(holdTargetGapSeconds/2-currentGap, holdMinSeconds, holdMaxSeconds))

		priority := domain.PriorityMedium
		confidence := 0.65
		if alert.Severity == domain.SeveritySevere {
			priority = domain.PriorityCritical
			confidence = 0.78
		} else if alert.Severity == domain.SeverityModerate {
			priority = domain.PriorityHigh
		}

		passengers := estimatePassengers(2, now)

		out = append(out, domain.Intervention{
			ID:                 newInterventionID(),
			Type:               domain.InterventionHold,
			Priority:           priority,
			Status:             domain.StatusPending,
			Headline:           fmt.Sprintf("Hold %s at %s for %ds", targetVehicle, stopName, holdSeconds),
			Description:        fmt.Sprintf("Buses %s and %s bunched %.0fm apart on %s; hold the trailing bus to restore headway.", pair.VehicleA, pair.VehicleB, pair.DistanceM, alert.RouteName),
			RouteID:            alert.RouteID,
			RouteName:          alert.RouteName,
			Trigger:            domain.TriggerBunching,
			VehicleID:          targetVehicle,
			TargetStop:         stopName,
			HoldSeconds:        holdSeconds,
			PassengersAffected: passengers,
			WaitTimeImpactSecs: 0,
			Confidence:         confidence,
			Latitude:           lat,
			Longitude:          lon,
			CreatedAt:          now,
			ExpiresAt:          now.Add(interventionTTLSeconds * time.Second),
		})
	}
	return out
}

func deployInterventions(ghosts domain.GhostBusReport, catalog ports.StaticCatalog, now time.Time) []domain.Intervention {
	var out []domain.Intervention

	routes := ghosts.GhostRoutes
	if len(routes) > deployTopGhostRoutes {
		routes = routes[:deployTopGhostRoutes]
	}
	for _, route := range routes {
		lat, lon := defaultCityLatitude, defaultCityLongitude
		if stop, ok := catalog.RepresentativeStop(route.RouteID); ok {
			lat, lon = stop.Latitude, stop.Longitude
		}
		depot, distance := NearestDepot(lat, lon)
		deployMinutes := maxFloat(deployMinMinutes, distance/deployMinutesPerMeter)

		out = append(out, domain.Intervention{
			ID:                 newInterventionID(),
			Type:               domain.InterventionDeploy,
			Priority:           domain.PriorityHigh,
			Status:             domain.StatusPending,
			Headline:           fmt.Sprintf("Deploy backup bus to %s from %s", route.RouteShortName, depot.Name),
			Description:        fmt.Sprintf("Route %s has no live vehicle; nearest depot %s is %.0fm away (~%.0f min).", route.RouteShortName, depot.Name, distance, deployMinutes),
			RouteID:            route.RouteID,
			RouteName:          route.RouteShortName,
			Trigger:            domain.TriggerGhost,
			DepotName:          depot.Name,
			PassengersAffected: 500,
			WaitTimeImpactSecs: -int(deployMinutes * 60),
			Confidence:         0.82,
			Latitude:           lat,
			Longitude:          lon,
			CreatedAt:          now,
			ExpiresAt:          now.Add(interventionTTLSeconds * time.Second),
		})
	}

	staleCount := 0
	for _, g := range ghosts.GhostBuses {
		if g.StaleSeconds <= staleVehicleDeploySecs {
			continue
		}
		if staleCount >= staleVehicleDeployMax {
			break
		}
		staleCount++

		depot, distance := NearestDepot(g.LastLatitude, g.LastLongitude)
		deployMinutes := maxFloat(deployMinMinutes, distance/deployMinutesPerMeter)

		out = append(out, domain.Intervention{
			ID:                 newInterventionID(),
			Type:               domain.InterventionDeploy,
			Priority:           domain.PriorityMedium,
			Status:             domain.StatusPending,
			Headline:           fmt.Sprintf("Deploy backup for signal-lost vehicle %s", g.VehicleID),
			Description:        fmt.Sprintf("Vehicle %s on %s has not reported in %ds; nearest depot %s.", g.VehicleID, g.RouteShortName, g.StaleSeconds, depot.Name),
			RouteID:            g.RouteID,
			RouteName:          g.RouteShortName,
			Trigger:            domain.TriggerGhost,
			VehicleID:          g.VehicleID,
			DepotName:          depot.Name,
			PassengersAffected: staleDeployPassengers,
			WaitTimeImpactSecs: -int(deployMinutes * 60),
			Confidence:         staleDeployConfidence,
			Latitude:           g.LastLatitude,
			Longitude:          g.LastLongitude,
			CreatedAt:          now,
			ExpiresAt:          now.Add(interventionTTLSeconds * time.Second),
		})
	}

	return out
}

func surgeInterventions(crowding domain.CrowdingSnapshot, now time.Time) []domain.Intervention {
	var out []domain.Intervention
	for _, rs := range crowding.RouteSummaries {
		full := rs.Levels[string(domain.CrowdFull)]
		standing := rs.Levels[string(domain.CrowdStanding)]
		if full < surgeFullTrigger && full+standing < surgeFullStandingSum {
			continue
		}

		lat, lon := representativeCrowdingCoordinate(crowding, rs.RouteID)
		passengers := int(float64(full+standing) * surgePassengerBase * surgePassengerFactor)

		priority := domain.PriorityHigh
		if full >= 3 {
			priority = domain.PriorityCritical
		}

		out = append(out, domain.Intervention{
			ID:                 newInterventionID(),
			Type:               domain.InterventionSurge,
			Priority:           priority,
			Status:             domain.StatusPending,
			Headline:           fmt.Sprintf("Surge capacity on %s", rs.RouteName),
			Description:        fmt.Sprintf("Riders are reporting crowding on %s (%d full, %d standing in recent reports).", rs.RouteName, full, standing),
			RouteID:            rs.RouteID,
			RouteName:          rs.RouteName,
			Trigger:            domain.TriggerCrowding,
			PassengersAffected: passengers,
			WaitTimeImpactSecs: surgeWaitImpactSecs,
			Confidence:         0.72,
			Latitude:           lat,
			Longitude:          lon,
			CreatedAt:          now,
			ExpiresAt:          now.Add(interventionTTLSeconds * time.Second),
		})
	}
	return out
}

func representativeCrowdingCoordinate(crowding domain.CrowdingSnapshot, routeID string) (float64, float64) {
	for _, r := range crowding.RecentReports {
		if r.RouteID == routeID {
			return r.Latitude, r.Longitude
		}
	}
	return defaultCityLatitude, defaultCityLongitude
}

// estimatePassengers scales a per-bus baseline by a time-of-day load
// factor: peak commute hours load the heaviest, midday is moderate, and
// everything else is light.
func estimatePassengers(nBuses int, now time.Time) int {
	hour := now.Hour()
	loadFactor := 0.25
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 19):
		loadFactor = 0.60
	case hour > 9 && hour < 16:
		loadFactor = 0.40
	}
	return int(float64(nBuses) * passengersPerBus * loadFactor)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ActionIntervention scans interventions:active for id, transitions its
// status, and appends the mutated record to interventions:history. It
// returns ok=false if no active intervention matches id.
func ActionIntervention(ctx context.Context, store ports.StateStore, id string, action domain.InterventionAction, now time.Time) (domain.Intervention, bool, error) {
	raw, err := store.ListRange(ctx, KeyInterventionsActive, 0, -1)
	if err != nil {
		return domain.Intervention{}, false, fmt.Errorf("read active interventions: %w", err)
	}

	for i, r := range raw {
		var iv domain.Intervention
		if err := json.Unmarshal([]byte(r), &iv); err != nil {
			continue
		}
		if iv.ID != id {
			continue
		}

		iv.Status = action.ResultingStatus()
		actionedAt := now
		iv.ActionedAt = &actionedAt

		updated, err := json.Marshal(iv)
		if err != nil {
			return domain.Intervention{}, false, fmt.Errorf("marshal intervention: %w", err)
		}
		if err := store.ListSetIndex(ctx, KeyInterventionsActive, i, string(updated)); err != nil {
			return domain.Intervention{}, false, fmt.Errorf("update active list: %w", err)
		}
		if err := store.ListPushLeft(ctx, KeyInterventionsHistory, string(updated)); err != nil {
			return domain.Intervention{}, false, fmt.Errorf("push history: %w", err)
		}
		if err := store.ListTrim(ctx, KeyInterventionsHistory, 0, interventionHistoryCap-1); err != nil {
			return domain.Intervention{}, false, fmt.Errorf("trim history: %w", err)
		}
		return iv, true, nil
	}
	return domain.Intervention{}, false, nil
}

// InterventionHistory returns the most recent limit history entries,
// defaulting to 50 and capping at 200.
func InterventionHistory(ctx context.Context, store ports.StateStore, offset, limit int) ([]domain.Intervention, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	raw, err := store.ListRange(ctx, KeyInterventionsHistory, offset, offset+limit-1)
	if err != nil {
		return nil, fmt.Errorf("read intervention history: %w", err)
	}

	out := make([]domain.Intervention, 0, len(raw))
	for _, r := range raw {
		var iv domain.Intervention
		if err := json.Unmarshal([]byte(r), &iv); err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}

// ActiveInterventions returns the current contents of interventions:active.
func ActiveInterventions(ctx context.Context, store ports.StateStore) ([]domain.Intervention, error) {
	raw, err := store.ListRange(ctx, KeyInterventionsActive, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read active interventions: %w", err)
	}
	out := make([]domain.Intervention, 0, len(raw))
	for _, r := range raw {
		var iv domain.Intervention
		if err := json.Unmarshal([]byte(r), &iv); err != nil {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}
