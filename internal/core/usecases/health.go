package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
)

const (
	weightOnTime   = 0.40
	weightCoverage = 0.25
	weightHeadway  = 0.20
	weightComfort  = 0.15

	onTimeThresholdSeconds = 300
	fallbackRouteCount     = 116
)

// ComputeHealth returns the cached HealthReport from health:latest if one
// exists, otherwise recomputes it from the three detectors and caches the
// result for 30s.
func ComputeHealth(ctx context.Context, store ports.StateStore, catalog ports.StaticCatalog, now time.Time) (domain.HealthReport, error) {
	if cached, ok, err := readCachedHealth(ctx, store); err == nil && ok {
		return cached, nil
	}

	records, err := loadFleetSnapshot(ctx, store)
	if err != nil {
		return domain.HealthReport{}, err
	}
	live := liveVehicles(records, now)

	ghosts := buildGhostReport(records, catalog, now)
	bunching := buildBunchingReport(live, catalog)
	crowding, err := AggregateCrowding(ctx, store)
	if err != nil {
		return domain.HealthReport{}, err
	}
	pending := countPendingInterventions(ctx, store)

	report := buildHealthReport(live, ghosts, bunching, crowding, catalog, pending, now)

	if raw, err := json.Marshal(report); err == nil {
		_ = store.SetWithTTL(ctx, KeyHealthLatest, raw, healthCacheTTLSeconds*time.Second)
	}
	return report, nil
}

func readCachedHealth(ctx context.Context, store ports.StateStore) (domain.HealthReport, bool, error) {
	raw, ok, err := store.Get(ctx, KeyHealthLatest)
	if err != nil || !ok {
		return domain.HealthReport{}, false, err
	}
	var report domain.HealthReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.HealthReport{}, false, nil
	}
	return report, true, nil
}

func countPendingInterventions(ctx context.Context, store ports.StateStore) int {
	raw, err := store.ListRange(ctx, KeyInterventionsActive, 0, -1)
	if err != nil {
		return 0
	}
	count := 0
	for _, r := range raw {
		var iv domain.Intervention
		if err := json.Unmarshal([]byte(r), &iv); err != nil {
			continue
		}
		if iv.Status == domain.StatusPending {
			count++
		}
	}
	return count
}

func buildHealthReport(live []domain.VehicleRecord, ghosts domain.GhostBusReport, bunching domain.BunchingReport, crowding domain.CrowdingSnapshot, catalog ports.StaticCatalog, pending int, now time.Time) domain.HealthReport {
	onTime, _ := onTimeCounts(live)
	otpScore := onTimePerformanceScore(onTime, len(live))
	coverageScore := routeCoverageScore(ghosts.TotalRoutesWithBuses, catalog)
	headwayScore := headwayRegularityScore(bunching.TotalPairs, len(live))
	comfortScore := passengerComfortScore(crowding)

	components := []domain.HealthComponent{
		{Name: "on_time_performance", Score: otpScore, Weight: weightOnTime, Weighted: otpScore * weightOnTime, Detail: fmt.Sprintf("%d/%d on time", onTime, len(live))},
		{Name: "route_coverage", Score: coverageScore, Weight: weightCoverage, Weighted: coverageScore * weightCoverage, Detail: fmt.Sprintf("%d routes with buses", ghosts.TotalRoutesWithBuses)},
		{Name: "headway_regularity", Score: headwayScore, Weight: weightHeadway, Weighted: headwayScore * weightHeadway, Detail: fmt.Sprintf("%d bunching pairs", bunching.TotalPairs)},
		{Name: "passenger_comfort", Score: comfortScore, Weight: weightComfort, Weighted: comfortScore * weightComfort, Detail: fmt.Sprintf("%d crowd reports", crowding.TotalReports)},
	}

	composite := 0.0
	for _, c := range components {
		composite += c.Weighted
	}
	score := int(math.Round(clamp(composite, 0, 100)))

	report := domain.HealthReport{
		Score:                score,
		Grade:                healthGrade(score),
		Status:               healthStatus(score),
		Components:           components,
		TopRoutes:            topWorstRoutes(live, ghosts, bunching, crowding, catalog),
		TotalLiveVehicles:    len(live),
		TotalRoutesActive:    ghosts.TotalRoutesWithBuses,
		InterventionsPending: pending,
		GeneratedAt:          now,
	}
	return report
}

func onTimeCounts(live []domain.VehicleRecord) (onTime, delayed int) {
	for _, v := range live {
		d := v.DelaySeconds
		if d < 0 {
			d = -d
		}
		if d <= onTimeThresholdSeconds {
			onTime++
		} else {
			delayed++
		}
	}
	return onTime, delayed
}

func onTimePerformanceScore(onTime, total int) float64 {
	if total == 0 {
		return 50
	}
	return float64(onTime) / float64(total) * 100
}

func routeCoverageScore(routesWithBuses int, catalog ports.StaticCatalog) float64 {
	denom := 0
	if catalog != nil {
		denom = catalog.RouteCount()
	}
	if denom == 0 {
		denom = fallbackRouteCount
	}
	if denom == 0 {
		return 50
	}
	coverage := float64(routesWithBuses) / float64(denom)
	return math.Min(100, (coverage/0.5)*100)
}

func headwayRegularityScore(pairs, vehicles int) float64 {
	if vehicles == 0 {
		return 100
	}
	ratio := float64(pairs) / (float64(vehicles) / 10.0)
	return math.Max(0, 100-ratio*25)
}

func passengerComfortScore(crowding domain.CrowdingSnapshot) float64 {
	var full, standing, total int
	for _, rs := range crowding.RouteSummaries {
		full += rs.Levels[string(domain.CrowdFull)]
		standing += rs.Levels[string(domain.CrowdStanding)]
		total += rs.ReportCount
	}
	if total == 0 {
		return 85
	}
	h := float64(full) + 0.5*float64(standing)
	return math.Max(0, 100-(h/float64(total))*100)
}

func healthGrade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

func healthStatus(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 60:
		return "fair"
	case score >= 40:
		return "poor"
	default:
		return "crisis"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func topWorstRoutes(live []domain.VehicleRecord, ghosts domain.GhostBusReport, bunching domain.BunchingReport, crowding domain.CrowdingSnapshot, catalog ports.StaticCatalog) []domain.RouteHealth {
	byRoute := map[string][]domain.VehicleRecord{}
	names := map[string]string{}
	var routeOrder []string
	for _, v := range live {
		if v.RouteID == "" {
			continue
		}
		if _, ok := byRoute[v.RouteID]; !ok {
			routeOrder = append(routeOrder, v.RouteID)
		}
		byRoute[v.RouteID] = append(byRoute[v.RouteID], v)
		if v.RouteShortName != "" {
			names[v.RouteID] = v.RouteShortName
		}
	}

	ghostCounts := map[string]int{}
	for _, g := range ghosts.GhostBuses {
		ghostCounts[g.RouteID]++
	}
	bunchPairs := map[string]int{}
	for _, a := range bunching.Alerts {
		bunchPairs[a.RouteID] = a.PairCount
	}
	crowdScores := map[string]float64{}
	for _, rs := range crowding.RouteSummaries {
		crowdScores[rs.RouteID] = rs.AvgScore
	}

	var routes []domain.RouteHealth
	for _, routeID := range routeOrder {
		vehicles := byRoute[routeID]
		onTime, delayed := onTimeCounts(vehicles)
		n := len(vehicles)
		pairs := bunchPairs[routeID]
		crowdScore := crowdScores[routeID]

		rOnTime := (float64(onTime) / float64(n)) * 50
		rBunch := math.Max(0, 30-15*float64(pairs))
		rCrowd := math.Max(0, 20-5*crowdScore)
		healthScore := rOnTime + rBunch + rCrowd

		name := names[routeID]
		if name == "" {
			name = routeShortNameOrRaw(catalog, routeID)
		}

		routes = append(routes, domain.RouteHealth{
			RouteID:       routeID,
			RouteName:     name,
			LiveVehicles:  n,
			OnTimeCount:   onTime,
			DelayedCount:  delayed,
			GhostVehicles: ghostCounts[routeID],
			BunchingPairs: pairs,
			CrowdingScore: crowdScore,
			HealthScore:   healthScore,
			Status:        routeHealthStatus(healthScore),
		})
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].HealthScore < routes[j].HealthScore
	})
	if len(routes) > 10 {
		routes = routes[:10]
	}
	return routes
}

func routeHealthStatus(score float64) string {
	switch {
	case score >= 75:
		return "healthy"
	case score >= 50:
		return "warning"
	default:
		return "critical"
	}
}
