package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/transitiq/nervecentre/internal/core/ports"
	"github.com/transitiq/nervecentre/internal/pkg/metrics"
)

var legacyV1Sunset = time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)

// Dependencies holds everything the HTTP layer needs to serve a request.
// Archiver and Audit are optional: a nil value just means the write paths
// that would otherwise touch them skip that step.
type Dependencies struct {
	Store     ports.StateStore
	Catalog   ports.StaticCatalog
	Archiver  ports.HistoryArchiver
	Audit     ports.AuditPublisher
	StatsFile string
	StartedAt time.Time
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", apiVersion)
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	const reqTimeout = 15 * time.Second

	// The fleet listing moved from /v1/buses to /buses when the /v1 prefix
	// was dropped; the old path is kept as a deprecated alias.
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/buses", SunsetDate: legacyV1Sunset, Alternative: "/buses"},
	}))
	app.Get("/v1/buses", timeout.NewWithContext(ListBusesHandler(deps), reqTimeout))

	buses := app.Group("/buses")
	buses.Get("", timeout.NewWithContext(ListBusesHandler(deps), reqTimeout))
	buses.Get("/:id", timeout.NewWithContext(GetBusHandler(deps), reqTimeout))

	predictions := app.Group("/predictions")
	predictions.Get("/ghosts", timeout.NewWithContext(GhostsHandler(deps), reqTimeout))
	predictions.Get("/bunching", timeout.NewWithContext(BunchingHandler(deps), reqTimeout))

	crowding := app.Group("/crowding")
	crowding.Post("/report", timeout.NewWithContext(SubmitCrowdReportHandler(deps), reqTimeout))
	crowding.Get("/snapshot", timeout.NewWithContext(CrowdingSnapshotHandler(deps), reqTimeout))
	crowding.Get("/recent", timeout.NewWithContext(RecentCrowdReportsHandler(deps), reqTimeout))
	crowding.Get("/vehicle/:id", timeout.NewWithContext(VehicleCrowdingHandler(deps), reqTimeout))

	ops := app.Group("/ops")
	ops.Get("/interventions", timeout.NewWithContext(ListInterventionsHandler(deps), reqTimeout))
	ops.Post("/interventions/:id", timeout.NewWithContext(ActionInterventionHandler(deps), reqTimeout))
	ops.Get("/interventions/history", timeout.NewWithContext(InterventionHistoryHandler(deps), reqTimeout))
	ops.Get("/health", timeout.NewWithContext(NetworkHealthHandler(deps), reqTimeout))
	ops.Get("/stats/summary", timeout.NewWithContext(StatsSummaryHandler(deps), reqTimeout))

	app.Get("/catalog/shapes", timeout.NewWithContext(ShapesGeoJSONHandler(deps), reqTimeout))
	app.Get("/catalog/shapes/:routeID", timeout.NewWithContext(ShapesGeoJSONHandler(deps), reqTimeout))
	app.Get("/catalog/stops", timeout.NewWithContext(StopsGeoJSONHandler(deps), reqTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/live", websocket.New(LiveFeedHandler(deps)))
}
