package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/middleware"
	"github.com/noah-isme/gema-interview-api/internal/service"
	"github.com/noah-isme/gema-interview-api/internal/utils"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parsePagination reads page and page_size (pageSize is accepted as an alias).
func parsePagination(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	key := "page_size"
	if c.Query(key) == "" {
		key = "pageSize"
	}
	pageSize, err := parseQueryInt(c, key)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func userIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendServiceError maps service and evaluator failures onto the HTTP envelope.
// Model output and provider messages are logged, never echoed to the client.
func sendServiceError(c *fiber.Ctx, base zerolog.Logger, err error) error {
	logger := requestLogger(base, c)

	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrInvalidPosition), errors.Is(err, service.ErrEmptyText), errors.Is(err, service.ErrNoChanges):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAnswerExists),
		errors.Is(err, service.ErrSetNotReady),
		errors.Is(err, service.ErrSetCompleted),
		errors.Is(err, service.ErrSetEvaluating),
		errors.Is(err, service.ErrNoAnswers),
		errors.Is(err, service.ErrFollowUpAnswered),
		errors.Is(err, service.ErrFollowUpPending),
		errors.Is(err, service.ErrNoteEvaluated),
		errors.Is(err, service.ErrNoteInSet):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotEnoughQuestions):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrEvaluatorUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	}

	if failure, ok := ai.AsError(err); ok {
		return sendEvaluatorError(c, logger, failure)
	}

	logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func sendEvaluatorError(c *fiber.Ctx, logger *zerolog.Logger, failure *ai.Error) error {
	event := logger.Warn().
		Str("kind", string(failure.Kind)).
		Str("operation", string(failure.Operation)).
		Str("reason", failure.Reason).
		Int("attempts", failure.Attempts)
	if failure.Raw != "" {
		event = event.Str("raw_output", failure.Raw)
	}
	if failure.Err != nil {
		event = event.AnErr("cause", failure.Err)
	}
	event.Msg("evaluator call failed")

	details := fiber.Map{"kind": string(failure.Kind), "operation": string(failure.Operation)}
	switch failure.Kind {
	case ai.KindInvalidContext:
		details["reason"] = failure.Reason
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "answer cannot be evaluated", details)
	case ai.KindUpstreamTimeout:
		details["attempts"] = failure.Attempts
		return utils.Fail(c, fiber.StatusGatewayTimeout, "evaluation model timed out", details)
	case ai.KindMalformedOutput:
		return utils.Fail(c, fiber.StatusBadGateway, "evaluation model returned an invalid response", details)
	case ai.KindUpstreamUnavailable:
		details["reason"] = failure.Reason
		details["attempts"] = failure.Attempts
		if failure.Reason == ai.ReasonUnauthorized || failure.Reason == ai.ReasonRejected {
			return utils.Fail(c, fiber.StatusBadGateway, "evaluation model rejected the request", details)
		}
		return utils.Fail(c, fiber.StatusServiceUnavailable, "evaluation model unavailable", details)
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func validationDetails(errs validator.ValidationErrors) []fiber.Map {
	details := make([]fiber.Map, 0, len(errs))
	for _, fieldErr := range errs {
		details = append(details, fiber.Map{
			"field": fieldErr.Field(),
			"rule":  fieldErr.Tag(),
		})
	}
	return details
}
