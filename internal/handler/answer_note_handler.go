package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/service"
	"github.com/noah-isme/gema-interview-api/internal/utils"
)

// AnswerNoteHandler serves practice answers outside of interview sets.
type AnswerNoteHandler struct {
	service service.AnswerNoteService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewAnswerNoteHandler constructs the handler. limiter may be nil.
func NewAnswerNoteHandler(service service.AnswerNoteService, limiter fiber.Handler, logger zerolog.Logger) *AnswerNoteHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &AnswerNoteHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "answer_note_handler").Logger(),
	}
}

// Register wires answer note routes.
func (h *AnswerNoteHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/evaluations", h.limiter, h.evaluate)
	router.Get("/:id/evaluations", h.listEvaluations)
	router.Get("/:id/evaluations/:evaluationId", h.getEvaluation)
	router.Post("/:id/follow-ups", h.limiter, h.generateFollowUp)
	router.Post("/:id/follow-ups/:followUpId/answer", h.answerFollowUp)
}

func (h *AnswerNoteHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	notes, meta, err := h.service.List(c.Context(), userIDFromContext(c), c.Query("question_id"), page, pageSize)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, notes, "answer notes retrieved", meta)
}

func (h *AnswerNoteHandler) create(c *fiber.Ctx) error {
	var payload dto.AnswerNoteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	note, err := h.service.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer note created", note)
}

func (h *AnswerNoteHandler) get(c *fiber.Ctx) error {
	note, err := h.service.Get(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer note retrieved", note)
}

func (h *AnswerNoteHandler) update(c *fiber.Ctx) error {
	var payload dto.AnswerNoteUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	note, err := h.service.Update(c.Context(), userIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer note updated", note)
}

func (h *AnswerNoteHandler) delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.Delete(c.Context(), userIDFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answer note deleted", fiber.Map{"id": id})
}

func (h *AnswerNoteHandler) evaluate(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	evaluation, err := h.service.Evaluate(c.Context(), userIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer evaluated", evaluation)
}

func (h *AnswerNoteHandler) listEvaluations(c *fiber.Ctx) error {
	evaluations, err := h.service.ListEvaluations(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *AnswerNoteHandler) getEvaluation(c *fiber.Ctx) error {
	evaluation, err := h.service.GetEvaluation(c.Context(), userIDFromContext(c), c.Params("id"), c.Params("evaluationId"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *AnswerNoteHandler) generateFollowUp(c *fiber.Ctx) error {
	var payload dto.EvaluateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	followUp, err := h.service.GenerateFollowUp(c.Context(), userIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "follow-up generated", followUp)
}

func (h *AnswerNoteHandler) answerFollowUp(c *fiber.Ctx) error {
	var payload dto.FollowUpAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	followUp, err := h.service.AnswerFollowUp(c.Context(), userIDFromContext(c), c.Params("id"), c.Params("followUpId"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "follow-up answered", followUp)
}
