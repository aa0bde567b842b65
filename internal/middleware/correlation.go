package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// CorrelationHeader carries the request identifier across services and into evaluation logs.
	CorrelationHeader = "X-Correlation-ID"

	correlationLocal     = "correlation_id"
	maxCorrelationLength = 128
)

// CorrelationID reuses a caller supplied identifier or mints a new one and echoes it back.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := sanitizeCorrelation(c.Get(CorrelationHeader))
		if id == "" {
			id = sanitizeCorrelation(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(CorrelationHeader, id)
		return c.Next()
	}
}

// GetCorrelationID returns the identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	id, _ := c.Locals(correlationLocal).(string)
	return id
}

// Identifiers are written to logs verbatim, so anything long or non-printable is replaced.
func sanitizeCorrelation(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxCorrelationLength {
		return ""
	}
	for _, r := range value {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return value
}
