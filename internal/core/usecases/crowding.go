package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
)

const crowdRecentLimit = 50
const crowdTopReports = 20

// AggregateCrowding reads the recent crowd-reports list (cap 50), buckets
// it by route, and scores each route's average perceived crowding.
func AggregateCrowding(ctx context.Context, store ports.StateStore) (domain.CrowdingSnapshot, error) {
	raw, err := store.ListRange(ctx, KeyCrowdReports, 0, crowdRecentLimit-1)
	if err != nil {
		return domain.CrowdingSnapshot{}, fmt.Errorf("read recent crowd reports: %w", err)
	}

	reports := make([]domain.CrowdReport, 0, len(raw))
	for _, r := range raw {
		var rep domain.CrowdReport
		if err := json.Unmarshal([]byte(r), &rep); err != nil {
			continue
		}
		reports = append(reports, rep)
	}

	snapshot := buildCrowdingSnapshot(reports)

	total, found, err := store.Get(ctx, KeyCrowdTotalCount)
	if err == nil && found {
		var n int64
		if _, scanErr := fmt.Sscanf(string(total), "%d", &n); scanErr == nil {
			snapshot.TotalReports = int(n)
		}
	}
	metrics.DetectorFindings.WithLabelValues("crowding").Add(float64(len(snapshot.RecentReports)))
	return snapshot, nil
}

// RecentCrowdReports returns the most recent limit reports straight from
// crowd:reports (cap 500), independent of the 50-report window the
// aggregation detector scores routes over.
func RecentCrowdReports(ctx context.Context, store ports.StateStore, limit int) ([]domain.CrowdReport, error) {
	raw, err := store.ListRange(ctx, KeyCrowdReports, 0, limit-1)
	if err != nil {
		return nil, fmt.Errorf("read recent crowd reports: %w", err)
	}
	reports := make([]domain.CrowdReport, 0, len(raw))
	for _, r := range raw {
		var rep domain.CrowdReport
		if err := json.Unmarshal([]byte(r), &rep); err != nil {
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func buildCrowdingSnapshot(reports []domain.CrowdReport) domain.CrowdingSnapshot {
	type accum struct {
		routeName string
		levels    map[string]int
		count     int
		scoreSum  int
	}
	byRoute := map[string]*accum{}
	var routeOrder []string

	for _, r := range reports {
		a, ok := byRoute[r.RouteID]
		if !ok {
			a = &accum{routeName: r.RouteShortName, levels: map[string]int{}}
			byRoute[r.RouteID] = a
			routeOrder = append(routeOrder, r.RouteID)
		}
		a.levels[string(r.CrowdingLevel)]++
		a.count++
		a.scoreSum += r.CrowdingLevel.Score()
		if a.routeName == "" {
			a.routeName = r.RouteShortName
		}
	}

	var summaries []domain.RouteCrowdingSummary
	for _, routeID := range routeOrder {
		a := byRoute[routeID]
		avg := 0.0
		if a.count > 0 {
			avg = float64(a.scoreSum) / float64(a.count)
		}
		summaries = append(summaries, domain.RouteCrowdingSummary{
			RouteID:     routeID,
			RouteName:   a.routeName,
			Levels:      a.levels,
			ReportCount: a.count,
			AvgScore:    avg,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].ReportCount > summaries[j].ReportCount
	})

	recent := reports
	if len(recent) > crowdTopReports {
		recent = recent[:crowdTopReports]
	}

	return domain.CrowdingSnapshot{
		RouteSummaries:  summaries,
		RecentReports:   recent,
		ReportsLastHour: len(reports),
	}
}
