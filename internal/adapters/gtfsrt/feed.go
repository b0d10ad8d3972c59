// Package gtfsrt decodes the GTFS-realtime protobuf wire format: FeedMessage
// envelopes carrying VehiclePosition and TripUpdate entities. There is no
// generated Go package for this schema in the vendor tree available to this
// build, so the decoder below walks the wire format directly with
// google.golang.org/protobuf/encoding/protowire, keyed off the field numbers
// published in the public gtfs-realtime.proto schema. Only the fields the
// poller actually consumes are decoded; everything else is skipped.
package gtfsrt

// FeedMessage is the top-level envelope of one GTFS-realtime response.
type FeedMessage struct {
	Timestamp uint64
	Entities  []FeedEntity
}

// FeedEntity wraps exactly one of VehiclePosition or TripUpdate.
type FeedEntity struct {
	ID          string
	IsDeleted   bool
	Vehicle     *VehiclePosition
	TripUpdate  *TripUpdate
}

// TripDescriptor identifies the scheduled trip a vehicle or update refers to.
type TripDescriptor struct {
	TripID      string
	RouteID     string
	DirectionID *uint32
	StartTime   string
	StartDate   string
}

// VehicleDescriptor identifies the physical vehicle.
type VehicleDescriptor struct {
	ID           string
	Label        string
	LicensePlate string
}

// Position is a vehicle's instantaneous location and motion.
type Position struct {
	Latitude  float32
	Longitude float32
	Bearing   *float32
	Speed     *float32
}

// VehiclePosition is one FeedEntity's vehicle payload.
type VehiclePosition struct {
	Trip             TripDescriptor
	Vehicle          VehicleDescriptor
	Position         Position
	StopID           string
	OccupancyStatus  *int32
	Timestamp        uint64
}

// StopTimeEvent is the predicted/actual arrival or departure at one stop.
type StopTimeEvent struct {
	Delay *int32
	Time  *int64
}

// StopTimeUpdate is one stop along a TripUpdate's remaining itinerary.
type StopTimeUpdate struct {
	StopSequence *uint32
	StopID       string
	Arrival      *StopTimeEvent
	Departure    *StopTimeEvent
}

// TripUpdate is one FeedEntity's trip_update payload.
type TripUpdate struct {
	Trip           TripDescriptor
	Vehicle        VehicleDescriptor
	StopTimeUpdate []StopTimeUpdate
	Timestamp      uint64
}
