package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-interview-api/internal/utils"
)

// RateLimit creates a per-user rate limiter middleware instance. Requests without an
// authenticated user are keyed by client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			userID, _ := c.Locals("user_id").(string)
			if userID == "" {
				userID = c.IP()
			}
			return fmt.Sprintf("%s:%s", identifier, userID)
		},
		LimitReached: func(c *fiber.Ctx) error {
			details := fiber.Map{"limit": max, "window_seconds": int(window.Seconds())}
			if retryAfter := c.GetRespHeader(fiber.HeaderRetryAfter); retryAfter != "" {
				details["retry_after"] = retryAfter
			}
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many evaluation requests, slow down", details)
		},
	})
}
