package http

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/transitiq/nervecentre/internal/core/domain"
	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// crowdReportBody is the rider-submitted payload for POST /crowding/report.
type crowdReportBody struct {
	VehicleID      string `json:"vehicle_id"`
	RouteID        string `json:"route_id"`
	RouteShortName string `json:"route_short_name"`
	CrowdingLevel  string `json:"crowding_level"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

var validCrowdLevels = map[string]domain.CrowdLevel{
	string(domain.CrowdEmpty):    domain.CrowdEmpty,
	string(domain.CrowdSeats):    domain.CrowdSeats,
	string(domain.CrowdStanding): domain.CrowdStanding,
	string(domain.CrowdFull):     domain.CrowdFull,
}

// SubmitCrowdReportHandler accepts an anonymous rider-submitted occupancy
// observation.
func SubmitCrowdReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body crowdReportBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body: "+err.Error())
		}
		if body.VehicleID == "" {
			return errBadRequest(c, "vehicle_id is required")
		}
		level, valid := validCrowdLevels[body.CrowdingLevel]
		if !valid {
			return errBadRequest(c, "crowding_level must be one of empty, seats, standing, full")
		}

		report, err := usecases.SubmitCrowdReport(c.UserContext(), deps.Store, usecases.CrowdReportInput{
			VehicleID:      body.VehicleID,
			RouteID:        body.RouteID,
			RouteShortName: body.RouteShortName,
			CrowdingLevel:  level,
			Latitude:       body.Latitude,
			Longitude:      body.Longitude,
		}, time.Now())
		if err != nil {
			return errInternal(c, "submit crowd report: "+err.Error())
		}
		return ok(c, report)
	}
}

// CrowdingSnapshotHandler returns the current aggregated crowding picture.
func CrowdingSnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snapshot, err := usecases.AggregateCrowding(c.UserContext(), deps.Store)
		if err != nil {
			return errInternal(c, "aggregate crowding: "+err.Error())
		}
		return ok(c, fiber.Map{
			"total_reports":     snapshot.TotalReports,
			"reports_last_hour": snapshot.ReportsLastHour,
			"route_summaries":   snapshot.RouteSummaries,
			"recent_reports":    snapshot.RecentReports,
		})
	}
}

// RecentCrowdReportsHandler returns the most recent N crowd reports
// (default 20, max 100), as a bare array in the envelope's data field.
func RecentCrowdReportsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		if limit < 1 {
			limit = 1
		}
		if limit > 100 {
			limit = 100
		}

		recent, err := usecases.RecentCrowdReports(c.UserContext(), deps.Store, limit)
		if err != nil {
			return errInternal(c, "read recent crowd reports: "+err.Error())
		}
		return okCount(c, recent, len(recent))
	}
}

// VehicleCrowdingHandler returns the latest crowd report for one vehicle.
func VehicleCrowdingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicleID := c.Params("id")
		raw, found, err := deps.Store.Get(c.UserContext(), usecases.CrowdVehicleKey(vehicleID))
		if err != nil {
			return errInternal(c, "read vehicle crowding: "+err.Error())
		}
		if !found {
			return ok(c, nil)
		}
		var report domain.CrowdReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return errInternal(c, "decode vehicle crowding: "+err.Error())
		}
		return ok(c, report)
	}
}
