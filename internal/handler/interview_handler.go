package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/service"
	"github.com/noah-isme/gema-interview-api/internal/utils"
)

// InterviewHandler serves mock interview sets.
type InterviewHandler struct {
	service service.InterviewService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewInterviewHandler constructs the handler. limiter guards the routes that call the
// evaluation model and may be nil.
func NewInterviewHandler(service service.InterviewService, limiter fiber.Handler, logger zerolog.Logger) *InterviewHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &InterviewHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "interview_handler").Logger(),
	}
}

// Register wires interview routes.
func (h *InterviewHandler) Register(router fiber.Router) {
	router.Post("/sets", h.createSet)
	router.Get("/sets", h.listSets)
	router.Get("/sets/:id", h.getSet)
	router.Delete("/sets/:id", h.deleteSet)
	router.Post("/sets/:id/complete", h.limiter, h.complete)
	router.Get("/sets/:id/summary", h.summary)
	router.Post("/answers", h.limiter, h.submitAnswer)
	router.Post("/answers/:id/follow-up", h.answerFollowUp)
}

func (h *InterviewHandler) createSet(c *fiber.Ctx) error {
	var payload dto.InterviewSetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	set, err := h.service.CreateSet(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "interview set created", set)
}

func (h *InterviewHandler) listSets(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	sets, meta, err := h.service.ListSets(c.Context(), userIDFromContext(c), page, pageSize)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, sets, "interview sets retrieved", meta)
}

func (h *InterviewHandler) getSet(c *fiber.Ctx) error {
	set, err := h.service.GetSet(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "interview set retrieved", set)
}

func (h *InterviewHandler) deleteSet(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteSet(c.Context(), userIDFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "interview set deleted", fiber.Map{"id": id})
}

func (h *InterviewHandler) submitAnswer(c *fiber.Ctx) error {
	var payload dto.SubmitAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.SubmitAnswer(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	message := "answer saved"
	if result.FollowUpError != "" {
		message = "answer saved without follow-up"
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, result)
}

func (h *InterviewHandler) answerFollowUp(c *fiber.Ctx) error {
	var payload dto.FollowUpAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.AnswerFollowUp(c.Context(), userIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "follow-up answered", result)
}

func (h *InterviewHandler) complete(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)
	summary, err := h.service.Complete(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	logger.Info().Str("set_id", summary.SetID).Float64("overall_score", summary.OverallScore).Msg("interview evaluated")
	return utils.SendSuccess(c, "interview evaluated", summary)
}

func (h *InterviewHandler) summary(c *fiber.Ctx) error {
	summary, err := h.service.GetSummary(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "interview summary retrieved", summary)
}
