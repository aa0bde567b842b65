package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-interview-api/internal/config"
	"github.com/noah-isme/gema-interview-api/internal/handler"
	"github.com/noah-isme/gema-interview-api/internal/middleware"
	"github.com/noah-isme/gema-interview-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QuestionHandler   *handler.QuestionHandler
	InterviewHandler  *handler.InterviewHandler
	AnswerNoteHandler *handler.AnswerNoteHandler
	SeedHandler       *handler.SeedHandler
	JWTMiddleware     fiber.Handler
	EvaluatorReady    bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(deps.EvaluatorReady))

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.EvaluatorReady))

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	candidate := middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() }, middleware.AuthOptions{Role: middleware.AuthRoleCandidate})

	if deps.QuestionHandler != nil {
		deps.QuestionHandler.Register(api.Group("/questions", jwtMiddleware, candidate))
	}

	if deps.InterviewHandler != nil {
		deps.InterviewHandler.Register(api.Group("/interview", jwtMiddleware, candidate))
	}

	if deps.AnswerNoteHandler != nil {
		deps.AnswerNoteHandler.Register(api.Group("/answer-notes", jwtMiddleware, candidate))
	}
}
