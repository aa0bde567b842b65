package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-interview-api/internal/config"
	"github.com/noah-isme/gema-interview-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Evaluator   string    `json:"evaluator"`
}

// HealthCheck returns a handler that reports application health information.
// evaluatorReady reports whether a model client was configured at startup.
func HealthCheck(cfg config.Config, evaluatorReady bool) fiber.Handler {
	evaluator := "disabled"
	if evaluatorReady {
		evaluator = cfg.AIModel
	}

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Evaluator:   evaluator,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
