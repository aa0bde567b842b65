package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber and records
// whether a model evaluator is configured.
func MetricsHandler(evaluatorReady bool) fiber.Handler {
	RegisterMetrics()
	if evaluatorReady {
		evaluatorUp.Set(1)
	} else {
		evaluatorUp.Set(0)
	}

	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
