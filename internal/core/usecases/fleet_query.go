package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
)

// ListFleet returns the current fleet snapshot plus the instant it was last
// refreshed, for the HTTP layer's GET /buses.
func ListFleet(ctx context.Context, store ports.StateStore) ([]domain.VehicleRecord, time.Time, error) {
	records, err := loadFleetSnapshot(ctx, store)
	if err != nil {
		return nil, time.Time{}, err
	}
	ts, _, err := FleetTimestamp(ctx, store)
	if err != nil {
		return nil, time.Time{}, err
	}
	return records, ts, nil
}

// GetVehicle reads one vehicle's current record, reporting ok=false if it
// is not (or no longer) in the fleet.
func GetVehicle(ctx context.Context, store ports.StateStore, vehicleID string) (domain.VehicleRecord, bool, error) {
	h, err := store.HashGetAll(ctx, VehicleKey(vehicleID))
	if err != nil {
		return domain.VehicleRecord{}, false, fmt.Errorf("read vehicle %s: %w", vehicleID, err)
	}
	v, ok := vehicleFromHash(h)
	return v, ok, nil
}

// FleetTimestamp returns the instant the fleet snapshot was last written,
// or the zero time and ok=false if no poll has ever completed.
func FleetTimestamp(ctx context.Context, store ports.StateStore) (time.Time, bool, error) {
	raw, found, err := store.Get(ctx, KeyFleetTimestamp)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read fleet timestamp: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false, nil
	}
	return ts, true, nil
}
