package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// ListBusesHandler returns every vehicle currently in the fleet set.
func ListBusesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		vehicles, ts, err := usecases.ListFleet(ctx, deps.Store)
		if err != nil {
			return errInternal(c, "list fleet: "+err.Error())
		}
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		return ok(c, fiber.Map{
			"vehicles":  vehicles,
			"count":     len(vehicles),
			"timestamp": ts,
		})
	}
}

// GetBusHandler returns one vehicle's current record by id.
func GetBusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicleID := c.Params("id")
		v, found, err := usecases.GetVehicle(c.UserContext(), deps.Store, vehicleID)
		if err != nil {
			return errInternal(c, "read vehicle: "+err.Error())
		}
		if !found {
			return errNotFound(c, "vehicle not found: "+vehicleID)
		}
		return ok(c, v)
	}
}
