package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

// Archiver implements ports.HistoryArchiver, persisting fleet snapshots and
// stats records beyond the state store's TTLs. It is wired in as optional:
// a nil *Archiver is never constructed, and every call site nil-checks the
// ports.HistoryArchiver it was handed before calling in.
type Archiver struct {
	db *DB
}

// NewArchiver wraps a connection pool.
func NewArchiver(db *DB) *Archiver {
	return &Archiver{db: db}
}

// ArchiveVehicles batch-inserts one fleet snapshot's vehicle records,
// storing position as a PostGIS geography point.
func (a *Archiver) ArchiveVehicles(ctx context.Context, snapshot domain.FleetSnapshot) error {
	if len(snapshot.Vehicles) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range snapshot.Vehicles {
		batch.Queue(`
			INSERT INTO vehicle_position_history
				(time, vehicle_id, trip_id, route_id, route_short_name, location, bearing, speed_kmh, occupancy_status, delay_seconds)
			VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8, $9, $10, $11)
		`, v.Timestamp, v.VehicleID, nilIfEmpty(v.TripID), nilIfEmpty(v.RouteID), v.RouteShortName,
			v.Longitude, v.Latitude, v.Bearing, v.SpeedKmh, v.Occupancy.String(), v.DelaySeconds)
	}

	br := a.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range snapshot.Vehicles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// ArchiveStatsSnapshot stores one line of the stats file as a JSONB row,
// keyed by the Unix timestamp it was generated at.
func (a *Archiver) ArchiveStatsSnapshot(ctx context.Context, raw []byte, generatedAt int64) error {
	_, err := a.db.Pool.Exec(ctx, `
		INSERT INTO stats_snapshot_history (generated_at, record)
		VALUES (to_timestamp($1), $2)
	`, generatedAt, raw)
	return err
}

// Close releases the underlying connection pool.
func (a *Archiver) Close() {
	a.db.Close()
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
