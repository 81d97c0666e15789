package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	httpMetrics     *fiberprometheus.FiberPrometheus
	httpMetricsOnce sync.Once
)

// InitMetrics registers the HTTP request metrics middleware and exposes /metrics.
// The collectors live in the default registry, so they are created once per process.
func InitMetrics(app *fiber.App, serviceName string) {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	httpMetrics.RegisterAt(app, "/metrics")
	app.Use(httpMetrics.Middleware)
}
