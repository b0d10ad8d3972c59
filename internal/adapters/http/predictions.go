package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/transitiq/nervecentre/internal/core/usecases"
)

// GhostsHandler runs ghost-bus detection over the current fleet snapshot.
func GhostsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := usecases.DetectGhosts(c.UserContext(), deps.Store, deps.Catalog, time.Now())
		if err != nil {
			return errInternal(c, "detect ghosts: "+err.Error())
		}
		return ok(c, report)
	}
}

// BunchingHandler runs bus-bunching detection over the current fleet snapshot.
func BunchingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := usecases.DetectBunching(c.UserContext(), deps.Store, deps.Catalog, time.Now())
		if err != nil {
			return errInternal(c, "detect bunching: "+err.Error())
		}
		return ok(c, report)
	}
}
