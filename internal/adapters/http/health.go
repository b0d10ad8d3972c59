package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(deps.StartedAt).String(),
			"version": apiVersion,
		})
	}
}

// ReadyHandler probes state-store connectivity and reports whether the
// archiver and audit publisher are configured; those two are not probed.
// Archiver and Audit are optional extras: their absence is reported but
// does not flip the overall status to "not ready".
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		if _, _, err := deps.Store.Get(ctx, "__health_check__"); err != nil {
			checks["state_store"] = "error: " + err.Error()
			allOK = false
		} else {
			checks["state_store"] = "ok"
		}

		if deps.Archiver != nil {
			checks["archiver"] = "configured"
		} else {
			checks["archiver"] = "not configured"
		}

		if deps.Audit != nil {
			checks["audit"] = "configured"
		} else {
			checks["audit"] = "not configured"
		}

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
