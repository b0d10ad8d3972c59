package usecases

import "github.com/transitiq/nervecentre/internal/core/domain"

// snapshotMessage is published on the live channel after every poll tick.
type snapshotMessage struct {
	Type      string                 `json:"type"`
	Vehicles  []domain.VehicleRecord `json:"vehicles"`
	Timestamp string                 `json:"timestamp"`
}

// crowdReportMessage is published on the live channel after every accepted
// crowd report.
type crowdReportMessage struct {
	Type   string             `json:"type"`
	Report domain.CrowdReport `json:"report"`
}
