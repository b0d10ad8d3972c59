package usecases

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
)

const minDelaySampleCount = 3
const topDelayedRouteCount = 10

// DelayedRouteStat is one row of the stats snapshot's worst-delay table.
type DelayedRouteStat struct {
	RouteID         string  `json:"route_id"`
	RouteName       string  `json:"route_name"`
	AvgDelaySeconds float64 `json:"avg_delay_seconds"`
	SampleCount     int     `json:"sample_count"`
}

// StatsRecord is one line of the append-only stats file: a compact summary
// of network state at the moment it was computed.
type StatsRecord struct {
	Timestamp        time.Time          `json:"timestamp"`
	Hour             int                `json:"hour"`
	Weekday          string             `json:"weekday"`
	TotalVehicles    int                `json:"total_vehicles"`
	ActiveRoutes     int                `json:"active_routes"`
	OnTime0to300     int                `json:"on_time_0_300"`
	OnTime301to600   int                `json:"on_time_301_600"`
	OnTime601to900   int                `json:"on_time_601_900"`
	OnTimeOver900    int                `json:"on_time_over_900"`
	OnTimePct        float64            `json:"on_time_pct"`
	AvgDelaySeconds  float64            `json:"avg_delay_seconds"`
	GhostVehicles    int                `json:"ghost_vehicles"`
	DeadRoutes       int                `json:"dead_routes"`
	BunchingPairs    int                `json:"bunching_pairs"`
	BunchingRoutes   int                `json:"bunching_routes"`
	BunchingSevere   int                `json:"bunching_severe"`
	CrowdReports     int                `json:"crowd_reports"`
	TopDelayedRoutes []DelayedRouteStat `json:"top_delayed_routes"`
}

// StatsSummary aggregates an entire stats file: overall means plus
// hour-bucketed on-time rates, for a dashboard trend view.
type StatsSummary struct {
	SampleCount           int             `json:"sample_count"`
	AvgTotalVehicles      float64         `json:"avg_total_vehicles"`
	AvgOnTimePct          float64         `json:"avg_on_time_pct"`
	AvgDelaySeconds       float64         `json:"avg_delay_seconds"`
	OnTimePctByHour       map[int]float64 `json:"on_time_pct_by_hour"`
}

// StatsSnapshotter periodically computes a StatsRecord and appends it to a
// local line-delimited JSON file.
type StatsSnapshotter struct {
	Store    ports.StateStore
	Catalog  ports.StaticCatalog
	Archiver ports.HistoryArchiver
	FilePath string
	Interval time.Duration
	Logger   *slog.Logger
}

// Run loops until ctx is cancelled, writing one record every Interval.
func (s *StatsSnapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.snapshotOnce(ctx, time.Now()); err != nil {
				s.Logger.Error("stats snapshot failed", "error", err)
			}
		}
	}
}

func (s *StatsSnapshotter) snapshotOnce(ctx context.Context, now time.Time) error {
	record, err := ComputeStatsRecord(ctx, s.Store, s.Catalog, now)
	if err != nil {
		return fmt.Errorf("compute stats record: %w", err)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal stats record: %w", err)
	}

	f, err := os.OpenFile(s.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open stats file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("write stats record: %w", err)
	}

	if s.Archiver != nil {
		if err := s.Archiver.ArchiveStatsSnapshot(ctx, raw, now.Unix()); err != nil {
			s.Logger.Warn("archive stats snapshot failed", "error", err)
		}
	}
	return nil
}

// ComputeStatsRecord reads the current fleet and re-derives ghost,
// bunching, and crowding state to build one stats record. It does not
// touch the health cache.
func ComputeStatsRecord(ctx context.Context, store ports.StateStore, catalog ports.StaticCatalog, now time.Time) (StatsRecord, error) {
	records, err := loadFleetSnapshot(ctx, store)
	if err != nil {
		return StatsRecord{}, err
	}
	live := liveVehicles(records, now)

	ghosts := buildGhostReport(records, catalog, now)
	bunching := buildBunchingReport(live, catalog)
	crowding, err := AggregateCrowding(ctx, store)
	if err != nil {
		return StatsRecord{}, err
	}

	record := StatsRecord{
		Timestamp:     now,
		Hour:          now.Hour(),
		Weekday:       now.Weekday().String(),
		TotalVehicles: len(live),
		ActiveRoutes:  ghosts.TotalRoutesWithBuses,
		GhostVehicles: ghosts.TotalGhostVehicles,
		DeadRoutes:    ghosts.TotalRoutesWithoutBus,
		BunchingPairs: bunching.TotalPairs,
		BunchingRoutes: bunching.RoutesAffected,
		CrowdReports:  crowding.TotalReports,
	}

	var delaySum int
	for _, v := range live {
		d := absInt(v.DelaySeconds)
		delaySum += d
		switch {
		case d <= 300:
			record.OnTime0to300++
		case d <= 600:
			record.OnTime301to600++
		case d <= 900:
			record.OnTime601to900++
		default:
			record.OnTimeOver900++
		}
	}
	if len(live) > 0 {
		record.OnTimePct = float64(record.OnTime0to300) / float64(len(live)) * 100
		record.AvgDelaySeconds = float64(delaySum) / float64(len(live))
	}

	for _, alert := range bunching.Alerts {
		for _, pair := range alert.Pairs {
			if pair.Severity == domain.SeveritySevere {
				record.BunchingSevere++
			}
		}
	}

	record.TopDelayedRoutes = topDelayedRoutes(live)

	return record, nil
}

func topDelayedRoutes(live []domain.VehicleRecord) []DelayedRouteStat {
	type accum struct {
		name string
		sum  int
		n    int
	}
	byRoute := map[string]*accum{}
	var order []string
	for _, v := range live {
		if v.RouteID == "" {
			continue
		}
		a, ok := byRoute[v.RouteID]
		if !ok {
			a = &accum{name: v.RouteShortName}
			byRoute[v.RouteID] = a
			order = append(order, v.RouteID)
		}
		a.sum += absInt(v.DelaySeconds)
		a.n++
		if a.name == "" {
			a.name = v.RouteShortName
		}
	}

	var stats []DelayedRouteStat
	for _, routeID := range order {
		a := byRoute[routeID]
		if a.n < minDelaySampleCount {
			continue
		}
		stats = append(stats, DelayedRouteStat{
			RouteID:         routeID,
			RouteName:       a.name,
			AvgDelaySeconds: float64(a.sum) / float64(a.n),
			SampleCount:     a.n,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].AvgDelaySeconds > stats[j].AvgDelaySeconds
	})
	if len(stats) > topDelayedRouteCount {
		stats = stats[:topDelayedRouteCount]
	}
	return stats
}

// SummarizeStatsFile reads every record in the append-only stats file and
// returns overall means plus hour-bucketed on-time rates.
func SummarizeStatsFile(filePath string) (StatsSummary, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return StatsSummary{}, fmt.Errorf("open stats file: %w", err)
	}
	defer f.Close()

	hourSums := map[int]float64{}
	hourCounts := map[int]int{}
	var vehicleSum, onTimeSum, delaySum float64
	var n int

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record StatsRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		n++
		vehicleSum += float64(record.TotalVehicles)
		onTimeSum += record.OnTimePct
		delaySum += record.AvgDelaySeconds
		hourSums[record.Hour] += record.OnTimePct
		hourCounts[record.Hour]++
	}
	if err := scanner.Err(); err != nil {
		return StatsSummary{}, fmt.Errorf("scan stats file: %w", err)
	}

	summary := StatsSummary{
		SampleCount:     n,
		OnTimePctByHour: map[int]float64{},
	}
	if n > 0 {
		summary.AvgTotalVehicles = vehicleSum / float64(n)
		summary.AvgOnTimePct = onTimeSum / float64(n)
		summary.AvgDelaySeconds = delaySum / float64(n)
	}
	for hour, sum := range hourSums {
		summary.OnTimePctByHour[hour] = sum / float64(hourCounts[hour])
	}
	return summary, nil
}
