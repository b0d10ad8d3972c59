package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const apiVersion = "1.0"

// meta is the envelope's metadata block, carried on every success response.
type meta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Count     int       `json:"count,omitempty"`
	Action    string    `json:"action,omitempty"`
}

// ok wraps data in the standard {data, meta} envelope.
func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"data": data,
		"meta": meta{Timestamp: time.Now().UTC(), Version: apiVersion},
	})
}

// okCount wraps data in the envelope with a count field in meta.
func okCount(c *fiber.Ctx, data interface{}, count int) error {
	return c.JSON(fiber.Map{
		"data": data,
		"meta": meta{Timestamp: time.Now().UTC(), Version: apiVersion, Count: count},
	})
}

// okAction wraps data in the envelope with an action field in meta,
// matching the intervention-update response shape.
func okAction(c *fiber.Ctx, data interface{}, action string) error {
	return c.JSON(fiber.Map{
		"data": data,
		"meta": meta{Timestamp: time.Now().UTC(), Version: apiVersion, Action: action},
	})
}
