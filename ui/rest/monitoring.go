package rest

import (
	"github.com/AzielCF/wa-relay/pkg/metrics"
	"github.com/AzielCF/wa-relay/pkg/msgworker"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type Monitoring struct {
	Pool *msgworker.Pool
}

func InitRestMonitoring(app fiber.Router, pool *msgworker.Pool, prom *metrics.Prom) Monitoring {
	rest := Monitoring{Pool: pool}

	app.Get("/api/event-pool/stats", rest.PoolStats)
	if prom != nil {
		app.Get("/metrics", adaptor.HTTPHandler(prom.Handler()))
	}
	return rest
}

// PoolStats returns real-time statistics of the event worker pool.
func (controller *Monitoring) PoolStats(c *fiber.Ctx) error {
	if controller.Pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Event worker pool not initialized",
		})
	}
	return c.JSON(controller.Pool.Stats())
}
