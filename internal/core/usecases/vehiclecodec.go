package usecases

import (
	"strconv"
	"time"

	"github.com/transitiq/nervecentre/internal/core/domain"
)

// vehicleToHash stringifies a VehicleRecord's fields for storage in a hash.
// Nullable fields (bearing, speed, trip_id) are simply omitted rather than
// written as an empty string, so the reverse conversion can tell "absent"
// from "zero".
func vehicleToHash(v domain.VehicleRecord) map[string]string {
	h := map[string]string{
		"vehicle_id":       v.VehicleID,
		"route_id":         v.RouteID,
		"route_short_name": v.RouteShortName,
		"latitude":         strconv.FormatFloat(v.Latitude, 'f', 6, 64),
		"longitude":        strconv.FormatFloat(v.Longitude, 'f', 6, 64),
		"occupancy_status": strconv.Itoa(int(v.Occupancy)),
		"delay_seconds":    strconv.Itoa(v.DelaySeconds),
		"timestamp":        v.Timestamp.UTC().Format(time.RFC3339),
	}
	if v.TripID != "" {
		h["trip_id"] = v.TripID
	}
	if v.Bearing != nil {
		h["bearing"] = strconv.Itoa(*v.Bearing)
	}
	if v.SpeedKmh != nil {
		h["speed_kmh"] = strconv.FormatFloat(*v.SpeedKmh, 'f', 1, 64)
	}
	return h
}

// vehicleFromHash reverses vehicleToHash. A hash missing required fields
// (vehicle_id, timestamp) returns ok=false so callers can silently drop a
// record that vanished between the fleet-set read and the hash read.
func vehicleFromHash(h map[string]string) (domain.VehicleRecord, bool) {
	id, ok := h["vehicle_id"]
	if !ok || id == "" {
		return domain.VehicleRecord{}, false
	}
	ts, err := time.Parse(time.RFC3339, h["timestamp"])
	if err != nil {
		return domain.VehicleRecord{}, false
	}

	v := domain.VehicleRecord{
		VehicleID:      id,
		RouteID:        h["route_id"],
		RouteShortName: h["route_short_name"],
		TripID:         h["trip_id"],
		Timestamp:      ts,
	}
	v.Latitude, _ = strconv.ParseFloat(h["latitude"], 64)
	v.Longitude, _ = strconv.ParseFloat(h["longitude"], 64)
	if code, err := strconv.Atoi(h["occupancy_status"]); err == nil {
		v.Occupancy = domain.ParseOccupancyStatus(int32(code))
	}
	v.DelaySeconds, _ = strconv.Atoi(h["delay_seconds"])

	if raw, ok := h["bearing"]; ok {
		if b, err := strconv.Atoi(raw); err == nil {
			v.Bearing = &b
		}
	}
	if raw, ok := h["speed_kmh"]; ok {
		if sp, err := strconv.ParseFloat(raw, 64); err == nil {
			v.SpeedKmh = &sp
		}
	}
	return v, true
}
