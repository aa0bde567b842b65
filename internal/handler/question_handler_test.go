package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/handler"
	"github.com/noah-isme/gema-interview-api/internal/repository"
)

type stubQuestionService struct {
	lastFilter repository.QuestionFilter
	created    int
}

func (s *stubQuestionService) List(_ context.Context, filter repository.QuestionFilter) ([]dto.QuestionResponse, dto.PaginationMeta, error) {
	s.lastFilter = filter
	return []dto.QuestionResponse{{ID: "q-1", Question: "Why us?", Category: "common"}}, dto.NewPaginationMeta(1, 20, 1), nil
}

func (s *stubQuestionService) Get(_ context.Context, id string) (dto.QuestionResponse, error) {
	return dto.QuestionResponse{ID: id}, nil
}

func (s *stubQuestionService) Create(_ context.Context, payload dto.QuestionRequest) (dto.QuestionResponse, error) {
	s.created++
	return dto.QuestionResponse{ID: "q-2", Question: payload.Question, Category: payload.Category}, nil
}

func (s *stubQuestionService) Update(_ context.Context, id string, payload dto.QuestionRequest) (dto.QuestionResponse, error) {
	return dto.QuestionResponse{ID: id, Question: payload.Question}, nil
}

func (s *stubQuestionService) Delete(context.Context, string) error {
	return nil
}

func newQuestionApp(svc *stubQuestionService, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/questions", withUser("user-1", role))
	handler.NewQuestionHandler(svc, zerolog.Nop()).Register(group)
	return app
}

func TestQuestionHandlerListPassesFilters(t *testing.T) {
	svc := &stubQuestionService{}
	app := newQuestionApp(svc, "candidate")

	resp, body, _ := doJSON(t, app, http.MethodGet, "/api/v1/questions?category=job&job_type=it&level=entry&page=1&pageSize=20", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, repository.QuestionFilter{Category: "job", JobType: "it", Level: "entry", Page: 1, PageSize: 20}, svc.lastFilter)

	var list dto.QuestionListResponse
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, int64(1), list.Pagination.TotalItems)
}

func TestQuestionHandlerWritesRequireAdmin(t *testing.T) {
	svc := &stubQuestionService{}
	payload := dto.QuestionRequest{Question: "Describe a launch.", Category: "job", JobType: "marketing"}

	resp, _, _ := doJSON(t, newQuestionApp(svc, "candidate"), http.MethodPost, "/api/v1/questions", payload)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, svc.created)

	resp, body, _ := doJSON(t, newQuestionApp(svc, "admin"), http.MethodPost, "/api/v1/questions", payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, 1, svc.created)
	require.Equal(t, "question created", body.Message)

	resp, _, _ = doJSON(t, newQuestionApp(svc, "admin"), http.MethodDelete, "/api/v1/questions/q-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
