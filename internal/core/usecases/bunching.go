package usecases

import (
	"context"
	"sort"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/geospatial"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
)

const bunchingThresholdM = 400.0
const bunchingSevereM = 200.0
const bunchingModerateM = 300.0

// DetectBunching finds vehicles on the same route closer together than the
// bunching threshold, grouped per route with a "worst" (closest) pair and a
// severity classification.
func DetectBunching(ctx context.Context, store ports.StateStore, catalog ports.StaticCatalog, now time.Time) (domain.BunchingReport, error) {
	records, err := loadFleetSnapshot(ctx, store)
	if err != nil {
		return domain.BunchingReport{}, err
	}
	report := buildBunchingReport(liveVehicles(records, now), catalog)
	metrics.DetectorFindings.WithLabelValues("bunching").Add(float64(report.TotalPairs))
	return report, nil
}

// liveVehicles filters a fleet snapshot down to records fresher than the
// ghost-detection stale window, the shared definition of "live" used by
// bunching, health scoring and the stats snapshotter.
func liveVehicles(records []domain.VehicleRecord, now time.Time) []domain.VehicleRecord {
	live := make([]domain.VehicleRecord, 0, len(records))
	for _, v := range records {
		if v.Age(now) <= ghostStaleAfter {
			live = append(live, v)
		}
	}
	return live
}

func buildBunchingReport(live []domain.VehicleRecord, catalog ports.StaticCatalog) domain.BunchingReport {
	var report domain.BunchingReport
	report.TotalLiveVehicles = len(live)

	byRoute := map[string][]domain.VehicleRecord{}
	var routeOrder []string
	for _, v := range live {
		if v.RouteID == "" {
			continue
		}
		if _, ok := byRoute[v.RouteID]; !ok {
			routeOrder = append(routeOrder, v.RouteID)
		}
		byRoute[v.RouteID] = append(byRoute[v.RouteID], v)
	}
	sort.Strings(routeOrder)

	for _, routeID := range routeOrder {
		vehicles := byRoute[routeID]
		if len(vehicles) < 2 {
			continue
		}
		alert, ok := bunchingAlertForRoute(routeID, vehicles, catalog)
		if !ok {
			continue
		}
		report.Alerts = append(report.Alerts, alert)
		report.TotalPairs += alert.PairCount
	}

	report.RoutesAffected = len(report.Alerts)

	sort.SliceStable(report.Alerts, func(i, j int) bool {
		si, sj := report.Alerts[i].Severity.Rank(), report.Alerts[j].Severity.Rank()
		if si != sj {
			return si < sj
		}
		return report.Alerts[i].WorstDistanceM < report.Alerts[j].WorstDistanceM
	})

	return report
}

func bunchingAlertForRoute(routeID string, vehicles []domain.VehicleRecord, catalog ports.StaticCatalog) (domain.BunchingAlert, bool) {
	var pairs []domain.BunchingPair
	for i := 0; i < len(vehicles); i++ {
		for j := i + 1; j < len(vehicles); j++ {
			a, b := vehicles[i], vehicles[j]
			d := geospatial.Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
			if d >= bunchingThresholdM {
				continue
			}
			pairs = append(pairs, domain.BunchingPair{
				VehicleA:          a.VehicleID,
				VehicleB:          b.VehicleID,
				RouteID:           routeID,
				RouteName:         routeShortNameOrRaw(catalog, routeID),
				DistanceM:         roundTo(d, 1),
				VehicleALatitude:  a.Latitude,
				VehicleALongitude: a.Longitude,
				VehicleBLatitude:  b.Latitude,
				VehicleBLongitude: b.Longitude,
				MidLatitude:       roundTo((a.Latitude+b.Latitude)/2, 6),
				MidLongitude:      roundTo((a.Longitude+b.Longitude)/2, 6),
				Severity:          bunchingSeverity(d),
			})
		}
	}
	if len(pairs) == 0 {
		return domain.BunchingAlert{}, false
	}

	worst := pairs[0]
	for _, p := range pairs[1:] {
		if p.DistanceM < worst.DistanceM {
			worst = p
		}
	}

	return domain.BunchingAlert{
		RouteID:        routeID,
		RouteName:      routeShortNameOrRaw(catalog, routeID),
		Pairs:          pairs,
		PairCount:      len(pairs),
		Worst:          worst,
		WorstDistanceM: worst.DistanceM,
		Severity:       worst.Severity,
	}, true
}

func bunchingSeverity(d float64) domain.BunchingSeverity {
	switch {
	case d < bunchingSevereM:
		return domain.SeveritySevere
	case d < bunchingModerateM:
		return domain.SeverityModerate
	default:
		return domain.SeverityMild
	}
}

func roundTo(v float64, decimals int) float64 {
	p := 1.0
	for i := 0; i < decimals; i++ {
		p *= 10
	}
	return float64(int64(v*p+sign(v)*0.5)) / p
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
