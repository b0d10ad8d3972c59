package usecases

import (
	"context"
	"fmt"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/ports"
)

// loadFleetSnapshot is the "consistent snapshot" rule shared by the fleet
// readers (ghost and bunching detection, health scoring, stats and fleet
// queries): fetch the fleet-set members, then read each vehicle hash with
// its own HashGetAll call (the reads are not pipelined); entries that
// vanished between the two steps are silently dropped rather than surfaced
// as an error.
func loadFleetSnapshot(ctx context.Context, store ports.StateStore) ([]domain.VehicleRecord, error) {
	ids, err := store.SetMembers(ctx, KeyFleet)
	if err != nil {
		return nil, fmt.Errorf("read fleet set: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records := make([]domain.VehicleRecord, 0, len(ids))
	for _, id := range ids {
		h, err := store.HashGetAll(ctx, VehicleKey(id))
		if err != nil {
			return nil, fmt.Errorf("read vehicle %s: %w", id, err)
		}
		v, ok := vehicleFromHash(h)
		if !ok {
			continue
		}
		records = append(records, v)
	}
	return records, nil
}
