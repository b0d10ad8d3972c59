package usecases

import (
	"context"
	"sort"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
)

const ghostStaleAfter = 120 * time.Second

// DetectGhosts finds signal-lost vehicles (no fresh record within the stale
// window) and schedule-only ghost routes (routes the static catalog knows
// about but with no live vehicle).
func DetectGhosts(ctx context.Context, store ports.StateStore, catalog ports.StaticCatalog, now time.Time) (domain.GhostBusReport, error) {
	records, err := loadFleetSnapshot(ctx, store)
	if err != nil {
		return domain.GhostBusReport{}, err
	}
	report := buildGhostReport(records, catalog, now)
	metrics.DetectorFindings.WithLabelValues("ghost").Add(float64(len(report.GhostBuses) + len(report.GhostRoutes)))
	return report, nil
}

func buildGhostReport(records []domain.VehicleRecord, catalog ports.StaticCatalog, now time.Time) domain.GhostBusReport {
	var report domain.GhostBusReport
	liveRouteIDs := map[string]struct{}{}
	routesWithBuses := map[string]struct{}{}

	for _, v := range records {
		age := v.Age(now)
		if age > ghostStaleAfter {
			report.GhostBuses = append(report.GhostBuses, domain.GhostBus{
				VehicleID:      v.VehicleID,
				RouteID:        v.RouteID,
				RouteShortName: v.RouteShortName,
				LastLatitude:   v.Latitude,
				LastLongitude:  v.Longitude,
				LastSeen:       v.Timestamp,
				StaleSeconds:   int(age.Seconds()),
				Type:           "signal-lost",
			})
			continue
		}
		report.TotalLiveVehicles++
		if v.RouteID != "" {
			liveRouteIDs[v.RouteID] = struct{}{}
			routesWithBuses[v.RouteID] = struct{}{}
		}
	}
	report.TotalGhostVehicles = len(report.GhostBuses)

	var scheduleOnly []string
	if catalog != nil {
		for _, routeID := range catalog.AllRouteIDs() {
			if _, live := liveRouteIDs[routeID]; !live {
				scheduleOnly = append(scheduleOnly, routeID)
			}
		}
	}
	sort.Strings(scheduleOnly)
	for _, routeID := range scheduleOnly {
		report.GhostRoutes = append(report.GhostRoutes, domain.GhostRoute{
			RouteID:        routeID,
			RouteShortName: routeShortNameOrRaw(catalog, routeID),
		})
	}

	report.TotalRoutesWithBuses = len(routesWithBuses)
	report.TotalRoutesWithoutBus = len(report.GhostRoutes)
	return report
}

func routeShortNameOrRaw(catalog ports.StaticCatalog, routeID string) string {
	if catalog == nil {
		return routeID
	}
	return catalog.RouteShortName(routeID)
}
