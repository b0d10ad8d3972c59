package gtfsrt

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from the published gtfs-realtime.proto schema.
const (
	fieldFeedMessageHeader = 1
	fieldFeedMessageEntity = 2

	fieldFeedHeaderTimestamp = 3

	fieldEntityID         = 1
	fieldEntityIsDeleted   = 2
	fieldEntityTripUpdate  = 3
	fieldEntityVehicle     = 4

	fieldTripDescID          = 1
	fieldTripDescRouteID     = 5
	fieldTripDescDirectionID = 6
	fieldTripDescStartTime   = 2
	fieldTripDescStartDate   = 3

	fieldVehicleDescID    = 1
	fieldVehicleDescLabel = 2
	fieldVehicleDescPlate = 3

	fieldPositionLatitude  = 1
	fieldPositionLongitude = 2
	fieldPositionBearing   = 3
	fieldPositionSpeed     = 5

	fieldVPTrip            = 1
	fieldVPVehicle         = 8
	fieldVPPosition        = 2
	fieldVPStopID          = 7
	fieldVPOccupancyStatus = 9
	fieldVPTimestamp       = 5

	fieldTUTrip           = 1
	fieldTUVehicle        = 3
	fieldTUStopTimeUpdate = 2
	fieldTUTimestamp      = 4

	fieldSTUStopSequence = 1
	fieldSTUStopID       = 4
	fieldSTUArrival      = 2
	fieldSTUDeparture    = 3

	fieldSTEDelay = 1
	fieldSTETime  = 2
)

// DecodeFeedMessage parses a raw GTFS-realtime FeedMessage payload.
func DecodeFeedMessage(data []byte) (*FeedMessage, error) {
	fm := &FeedMessage{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldFeedMessageHeader:
			return walkFields(v, func(hn protowire.Number, ht protowire.Type, hv []byte, hscalar uint64) error {
				if hn == fieldFeedHeaderTimestamp && ht == protowire.VarintType {
					fm.Timestamp = hscalar
				}
				return nil
			})
		case fieldFeedMessageEntity:
			entity, err := decodeEntity(v)
			if err != nil {
				return fmt.Errorf("entity: %w", err)
			}
			fm.Entities = append(fm.Entities, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fm, nil
}

func decodeEntity(data []byte) (FeedEntity, error) {
	var e FeedEntity
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldEntityID:
			e.ID = string(v)
		case fieldEntityIsDeleted:
			e.IsDeleted = scalar != 0
		case fieldEntityVehicle:
			vp, err := decodeVehiclePosition(v)
			if err != nil {
				return err
			}
			e.Vehicle = vp
		case fieldEntityTripUpdate:
			tu, err := decodeTripUpdate(v)
			if err != nil {
				return err
			}
			e.TripUpdate = tu
		}
		return nil
	})
	return e, err
}

func decodeVehiclePosition(data []byte) (*VehiclePosition, error) {
	vp := &VehiclePosition{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldVPTrip:
			td, err := decodeTripDescriptor(v)
			if err != nil {
				return err
			}
			vp.Trip = td
		case fieldVPVehicle:
			vd, err := decodeVehicleDescriptor(v)
			if err != nil {
				return err
			}
			vp.Vehicle = vd
		case fieldVPPosition:
			pos, err := decodePosition(v)
			if err != nil {
				return err
			}
			vp.Position = pos
		case fieldVPStopID:
			vp.StopID = string(v)
		case fieldVPOccupancyStatus:
			status := int32(scalar)
			vp.OccupancyStatus = &status
		case fieldVPTimestamp:
			vp.Timestamp = scalar
		}
		return nil
	})
	return vp, err
}

func decodeTripUpdate(data []byte) (*TripUpdate, error) {
	tu := &TripUpdate{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldTUTrip:
			td, err := decodeTripDescriptor(v)
			if err != nil {
				return err
			}
			tu.Trip = td
		case fieldTUVehicle:
			vd, err := decodeVehicleDescriptor(v)
			if err != nil {
				return err
			}
			tu.Vehicle = vd
		case fieldTUStopTimeUpdate:
			stu, err := decodeStopTimeUpdate(v)
			if err != nil {
				return err
			}
			tu.StopTimeUpdate = append(tu.StopTimeUpdate, stu)
		case fieldTUTimestamp:
			tu.Timestamp = scalar
		}
		return nil
	})
	return tu, err
}

func decodeTripDescriptor(data []byte) (TripDescriptor, error) {
	var td TripDescriptor
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldTripDescID:
			td.TripID = string(v)
		case fieldTripDescRouteID:
			td.RouteID = string(v)
		case fieldTripDescDirectionID:
			d := uint32(scalar)
			td.DirectionID = &d
		case fieldTripDescStartTime:
			td.StartTime = string(v)
		case fieldTripDescStartDate:
			td.StartDate = string(v)
		}
		return nil
	})
	return td, err
}

func decodeVehicleDescriptor(data []byte) (VehicleDescriptor, error) {
	var vd VehicleDescriptor
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldVehicleDescID:
			vd.ID = string(v)
		case fieldVehicleDescLabel:
			vd.Label = string(v)
		case fieldVehicleDescPlate:
			vd.LicensePlate = string(v)
		}
		return nil
	})
	return vd, err
}

func decodePosition(data []byte) (Position, error) {
	var pos Position
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldPositionLatitude:
			pos.Latitude = math.Float32frombits(uint32(scalar))
		case fieldPositionLongitude:
			pos.Longitude = math.Float32frombits(uint32(scalar))
		case fieldPositionBearing:
			b := math.Float32frombits(uint32(scalar))
			pos.Bearing = &b
		case fieldPositionSpeed:
			s := math.Float32frombits(uint32(scalar))
			pos.Speed = &s
		}
		return nil
	})
	return pos, err
}

func decodeStopTimeUpdate(data []byte) (StopTimeUpdate, error) {
	var stu StopTimeUpdate
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldSTUStopSequence:
			s := uint32(scalar)
			stu.StopSequence = &s
		case fieldSTUStopID:
			stu.StopID = string(v)
		case fieldSTUArrival:
			ev, err := decodeStopTimeEvent(v)
			if err != nil {
				return err
			}
			stu.Arrival = ev
		case fieldSTUDeparture:
			ev, err := decodeStopTimeEvent(v)
			if err != nil {
				return err
			}
			stu.Departure = ev
		}
		return nil
	})
	return stu, err
}

func decodeStopTimeEvent(data []byte) (*StopTimeEvent, error) {
	ev := &StopTimeEvent{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error {
		switch num {
		case fieldSTEDelay:
			d := int32(int64(scalar))
			ev.Delay = &d
		case fieldSTETime:
			t := int64(scalar)
			ev.Time = &t
		}
		return nil
	})
	return ev, err
}

// walkFields iterates every top-level field in data, decoding varints and
// fixed32 values into scalar (sign-extension and float bit-reinterpretation
// are the caller's responsibility) and length-delimited fields into v. It
// stops at the first malformed tag/value, matching protobuf's "best effort"
// posture for forward-compatible unknown fields elsewhere in the message.
func walkFields(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, scalar uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("consume tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("consume varint: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(num, typ, nil, val); err != nil {
				return err
			}
		case protowire.Fixed32Type:
			val, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return fmt.Errorf("consume fixed32: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(num, typ, nil, uint64(val)); err != nil {
				return err
			}
		case protowire.Fixed64Type:
			val, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fmt.Errorf("consume fixed64: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(num, typ, nil, val); err != nil {
				return err
			}
		case protowire.BytesType:
			val, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("consume bytes: %w", protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(num, typ, val, 0); err != nil {
				return err
			}
		case protowire.StartGroupType:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("consume group: %w", protowire.ParseError(n))
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("consume field: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
