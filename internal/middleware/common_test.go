package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/middleware"
)

func newPipeline() *fiber.App {
	logger := zerolog.Nop()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	middleware.Register(app, middleware.Config{Logger: &logger})
	return app
}

func TestCorrelationIDIsGeneratedAndEchoed(t *testing.T) {
	app := newPipeline()
	var seen string
	app.Get("/api/v1/ping", func(c *fiber.Ctx) error {
		seen = middleware.GetCorrelationID(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	require.Equal(t, seen, resp.Header.Get(middleware.CorrelationHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set(middleware.CorrelationHeader, "trace-abc")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "trace-abc", seen)
	require.Equal(t, "trace-abc", resp.Header.Get(middleware.CorrelationHeader))
}

func TestCorrelationIDFallsBackToRequestID(t *testing.T) {
	app := newPipeline()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.GetCorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-42", resp.Header.Get(middleware.CorrelationHeader))
}

func TestCorrelationIDReplacesUnsafeValues(t *testing.T) {
	app := newPipeline()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.CorrelationHeader, strings.Repeat("x", 200))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	echoed := resp.Header.Get(middleware.CorrelationHeader)
	require.NotEmpty(t, echoed)
	require.NotEqual(t, strings.Repeat("x", 200), echoed)
}

func TestErrorHandlerUsesEnvelopeForUnknownRoutes(t *testing.T) {
	app := newPipeline()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.False(t, payload.Success)
	require.NotEmpty(t, payload.Message)
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	app := newPipeline()
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(middleware.CorrelationHeader))
}

func TestCORSExposesCorrelationHeader(t *testing.T) {
	app := newPipeline()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.org")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Contains(t, resp.Header.Get(fiber.HeaderAccessControlExposeHeaders), middleware.CorrelationHeader)
}
