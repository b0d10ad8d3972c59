package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/transitiq/nervecentre/internal/adapters/gtfsrt"
	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
)

const maxPollBackoff = 300 * time.Second

// Poller runs the periodic fetch-merge-publish loop: it fetches the two
// upstream feeds concurrently, merges them into vehicle records, and
// atomically publishes the result as the new fleet snapshot.
type Poller struct {
	Store        ports.StateStore
	Catalog      ports.StaticCatalog
	Feed         ports.FeedSource
	Archiver     ports.HistoryArchiver
	BaseInterval time.Duration
	Logger       *slog.Logger
}

// Run loops until ctx is cancelled, ticking at BaseInterval and backing off
// exponentially (capped at 300s) after a failed tick, resetting to
// BaseInterval on the next success.
func (p *Poller) Run(ctx context.Context) {
	interval := p.BaseInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx, time.Now()); err != nil {
				p.Logger.Error("poll tick failed", "error", err)
				interval = nextBackoff(interval, p.BaseInterval)
			} else {
				interval = p.BaseInterval
			}
			ticker.Reset(interval)
		}
	}
}

func nextBackoff(current, base time.Duration) time.Duration {
	next := current * 2
	if next < base {
		next = base * 2
	}
	if next > maxPollBackoff {
		next = maxPollBackoff
	}
	return next
}

// Tick performs one fetch-merge-publish cycle.
func (p *Poller) Tick(ctx context.Context, now time.Time) error {
	tickStart := time.Now()
	vpData, tuData, vpErr, tuErr := p.fetchBoth(ctx)
	metrics.FeedPollDuration.WithLabelValues("vehicle_positions").Observe(time.Since(tickStart).Seconds())
	if vpErr != nil {
		metrics.FeedPollErrors.WithLabelValues("vehicle_positions").Inc()
		return fmt.Errorf("fetch vehicle positions: %w", vpErr)
	}

	vpFeed, err := gtfsrt.DecodeFeedMessage(vpData)
	if err != nil {
		metrics.FeedPollErrors.WithLabelValues("vehicle_positions").Inc()
		return fmt.Errorf("decode vehicle positions: %w", err)
	}

	delays := map[string]int{}
	if tuErr != nil {
		metrics.FeedPollErrors.WithLabelValues("trip_updates").Inc()
		p.Logger.Warn("trip updates fetch failed, delays unavailable this tick", "error", tuErr)
	} else {
		tuFeed, err := gtfsrt.DecodeFeedMessage(tuData)
		if err != nil {
			metrics.FeedPollErrors.WithLabelValues("trip_updates").Inc()
			p.Logger.Warn("trip updates decode failed, delays unavailable this tick", "error", err)
		} else {
			delays = buildDelayMap(tuFeed)
			metrics.DelaysDetected.WithLabelValues("trip_updates").Add(float64(len(delays)))
		}
	}

	records := buildVehicleRecords(vpFeed, delays, p.Catalog, now)
	metrics.VehiclePositionsIngested.WithLabelValues("vehicle_positions").Add(float64(len(records)))
	if err := writeFleetSnapshot(ctx, p.Store, records, now); err != nil {
		return fmt.Errorf("write fleet snapshot: %w", err)
	}

	if p.Archiver != nil {
		if err := p.Archiver.ArchiveVehicles(ctx, domain.FleetSnapshot{Vehicles: records, Timestamp: now}); err != nil {
			p.Logger.Warn("archive fleet snapshot failed", "error", err)
		}
	}

	return nil
}

func (p *Poller) fetchBoth(ctx context.Context) (vpData, tuData []byte, vpErr, tuErr error) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		vpData, vpErr = p.Feed.FetchVehiclePositions(ctx)
	}()
	go func() {
		defer wg.Done()
		tuData, tuErr = p.Feed.FetchTripUpdates(ctx)
	}()

	wg.Wait()
	return vpData, tuData, vpErr, tuErr
}

// buildDelayMap computes, for each trip in a TripUpdates feed, the largest
// absolute stop-time delay across all of its stop_time_update entries
// (max(|arrival.delay|, |departure.delay|) per stop, then the max of that
// across stops), keeping only trips whose delay is greater than zero.
func buildDelayMap(feed *gtfsrt.FeedMessage) map[string]int {
	delays := map[string]int{}
	for _, entity := range feed.Entities {
		tu := entity.TripUpdate
		if tu == nil || tu.Trip.TripID == "" {
			continue
		}
		worst := 0
		for _, stu := range tu.StopTimeUpdate {
			stopDelay := maxInt(absInt(stopTimeDelay(stu.Arrival)), absInt(stopTimeDelay(stu.Departure)))
			if stopDelay > worst {
				worst = stopDelay
			}
		}
		if worst > 0 {
			delays[tu.Trip.TripID] = worst
		}
	}
	return delays
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func stopTimeDelay(ev *gtfsrt.StopTimeEvent) int {
	if ev == nil || ev.Delay == nil {
		return 0
	}
	return int(*ev.Delay)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// buildVehicleRecords merges VehiclePositions entities with the trip-level
// delay map and resolves route names against the static catalog.
func buildVehicleRecords(feed *gtfsrt.FeedMessage, delays map[string]int, catalog ports.StaticCatalog, now time.Time) []domain.VehicleRecord {
	var records []domain.VehicleRecord
	for _, entity := range feed.Entities {
		vp := entity.Vehicle
		if vp == nil {
			continue
		}

		vehicleID := vp.Vehicle.ID
		if vehicleID == "" {
			vehicleID = entity.ID
		}
		if vehicleID == "" {
			continue
		}

		routeName := resolveRouteShortName(catalog, vp.Trip.TripID, vp.Trip.RouteID)

		var bearing *int
		if vp.Position.Bearing != nil {
			b := int(*vp.Position.Bearing)
			bearing = &b
		}
		var speedKmh *float64
		if vp.Position.Speed != nil {
			s := math.Round(float64(*vp.Position.Speed)*3.6*10) / 10
			speedKmh = &s
		}

		ts := now
		if vp.Timestamp != 0 {
			ts = time.Unix(int64(vp.Timestamp), 0).UTC()
		}

		records = append(records, domain.VehicleRecord{
			VehicleID:      vehicleID,
			RouteID:        vp.Trip.RouteID,
			RouteShortName: routeName,
			TripID:         vp.Trip.TripID,
			Latitude:       roundTo(float64(vp.Position.Latitude), 6),
			Longitude:      roundTo(float64(vp.Position.Longitude), 6),
			Bearing:        bearing,
			SpeedKmh:       speedKmh,
			Occupancy:      parseOccupancy(vp.OccupancyStatus),
			DelaySeconds:   delays[vp.Trip.TripID],
			Timestamp:      ts,
		})
	}
	return records
}

func parseOccupancy(status *int32) domain.OccupancyStatus {
	if status == nil {
		return domain.OccupancyUnknown
	}
	return domain.ParseOccupancyStatus(*status)
}

// resolveRouteShortName follows the poller's fallback chain: trip id first,
// then route id, then the raw route id itself.
func resolveRouteShortName(catalog ports.StaticCatalog, tripID, routeID string) string {
	if tripID != "" {
		if name := catalog.RouteShortNameByTrip(tripID); name != "" {
			return name
		}
	}
	return routeShortNameOrRaw(catalog, routeID)
}

func writeFleetSnapshot(ctx context.Context, store ports.StateStore, records []domain.VehicleRecord, now time.Time) error {
	p := store.Pipeline()
	ids := make([]string, 0, len(records))
	for _, v := range records {
		p.HashSet(VehicleKey(v.VehicleID), vehicleToHash(v))
		p.Expire(VehicleKey(v.VehicleID), vehicleTTLSeconds*time.Second)
		ids = append(ids, v.VehicleID)
	}
	p.Delete(KeyFleet)
	if len(ids) > 0 {
		p.SetAdd(KeyFleet, ids...)
	}
	p.SetWithTTL(KeyFleetTimestamp, []byte(now.UTC().Format(time.RFC3339)), 0)
	if err := p.Exec(ctx); err != nil {
		return err
	}

	msg, err := json.Marshal(snapshotMessage{
		Type:      "snapshot",
		Vehicles:  records,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot message: %w", err)
	}
	return store.Publish(ctx, ChannelLive, msg)
}
