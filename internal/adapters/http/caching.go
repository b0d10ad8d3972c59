package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasPrefix(path, "/buses"):
			ttl = "public, max-age=5" // Live fleet snapshot, refreshed every poll tick

		case strings.HasPrefix(path, "/predictions/"):
			ttl = "public, max-age=10" // Ghost/bunching detection, same cadence as the fleet

		case strings.HasPrefix(path, "/crowding/"):
			ttl = "public, max-age=30"

		case strings.HasPrefix(path, "/ops/interventions"):
			ttl = "no-cache" // Action endpoints must never be served stale

		case strings.HasPrefix(path, "/ops/health"):
			ttl = "public, max-age=30" // Network health cache matches ComputeHealth's own TTL

		case strings.HasPrefix(path, "/ops/stats"):
			ttl = "public, max-age=60"

		case strings.HasPrefix(path, "/catalog/"):
			ttl = "public, max-age=3600" // Static schedule data, loaded once at startup
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
