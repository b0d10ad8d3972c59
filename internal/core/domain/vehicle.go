// Package domain holds the plain value types shared across the ingestion
// pipeline, the detectors, and the API layer. Nothing in this package talks
// to a store or a socket; it only describes shapes.
package domain

import "time"

// OccupancyStatus mirrors the GTFS-realtime OccupancyStatus enum (codes 0-6)
// so it can be stored and compared without a translation table.
type OccupancyStatus int

const (
	OccupancyEmpty OccupancyStatus = iota
	OccupancyManySeatsAvailable
	OccupancyFewSeatsAvailable
	OccupancyStandingRoomOnly
	OccupancyCrushedStandingRoomOnly
	OccupancyFull
	OccupancyNotAcceptingPassengers
	OccupancyUnknown
)

func (o OccupancyStatus) String() string {
	switch o {
	case OccupancyEmpty:
		return "EMPTY"
	case OccupancyManySeatsAvailable:
		return "MANY_SEATS_AVAILABLE"
	case OccupancyFewSeatsAvailable:
		return "FEW_SEATS_AVAILABLE"
	case OccupancyStandingRoomOnly:
		return "STANDING_ROOM_ONLY"
	case OccupancyCrushedStandingRoomOnly:
		return "CRUSHED_STANDING_ROOM_ONLY"
	case OccupancyFull:
		return "FULL"
	case OccupancyNotAcceptingPassengers:
		return "NOT_ACCEPTING_PASSENGERS"
	default:
		return "UNKNOWN"
	}
}

// ParseOccupancyStatus converts a raw GTFS-realtime wire code into the enum.
// Unknown or out-of-range codes decode to OccupancyUnknown rather than an
// error, matching how a stray feed field should never abort a poll.
func ParseOccupancyStatus(code int32) OccupancyStatus {
	if code < 0 || code > int32(OccupancyNotAcceptingPassengers) {
		return OccupancyUnknown
	}
	return OccupancyStatus(code)
}

// VehicleRecord is one bus's last known state. It is keyed by VehicleID and
// is overwritten wholesale on every poll; readers should treat it as a
// snapshot, not a stream of deltas.
type VehicleRecord struct {
	VehicleID      string          `json:"vehicle_id"`
	RouteID        string          `json:"route_id"`
	RouteShortName string          `json:"route_short_name"`
	TripID         string          `json:"trip_id,omitempty"`
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	Bearing        *int            `json:"bearing"`
	SpeedKmh       *float64        `json:"speed_kmh"`
	Occupancy      OccupancyStatus `json:"occupancy_status"`
	DelaySeconds   int             `json:"delay_seconds"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Age reports how long it has been since this record was last refreshed.
func (v VehicleRecord) Age(now time.Time) time.Duration {
	return now.Sub(v.Timestamp)
}

// FleetSnapshot is the atomic output of one poll tick: every vehicle seen
// during that tick plus the instant the snapshot was taken.
type FleetSnapshot struct {
	Vehicles  []VehicleRecord `json:"vehicles"`
	Timestamp time.Time       `json:"timestamp"`
}

// CrowdLevel is the reporter-supplied perceived occupancy.
type CrowdLevel string

const (
	CrowdEmpty    CrowdLevel = "empty"
	CrowdSeats    CrowdLevel = "seats"
	CrowdStanding CrowdLevel = "standing"
	CrowdFull     CrowdLevel = "full"
)

// Score maps a crowd level to the 0-3 scale used by aggregation.
func (l CrowdLevel) Score() int {
	switch l {
	case CrowdEmpty:
		return 0
	case CrowdSeats:
		return 1
	case CrowdStanding:
		return 2
	case CrowdFull:
		return 3
	default:
		return 0
	}
}

// CrowdReport is a single rider-submitted occupancy observation.
type CrowdReport struct {
	ID             string     `json:"id"`
	VehicleID      string     `json:"vehicle_id"`
	RouteID        string     `json:"route_id"`
	RouteShortName string     `json:"route_short_name"`
	CrowdingLevel  CrowdLevel `json:"crowding_level"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	ReportedAt     time.Time  `json:"reported_at"`
}
