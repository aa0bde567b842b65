package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/handler"
	"github.com/noah-isme/gema-interview-api/internal/service"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

type stubInterviewService struct {
	lastUser    string
	lastSubmit  dto.SubmitAnswerRequest
	createErr   error
	submitErr   error
	completeErr error
	submit      dto.SubmitAnswerResponse
	summary     dto.SummaryResponse
}

func (s *stubInterviewService) CreateSet(_ context.Context, userID string, payload dto.InterviewSetRequest) (dto.InterviewSetDetailResponse, error) {
	s.lastUser = userID
	if s.createErr != nil {
		return dto.InterviewSetDetailResponse{}, s.createErr
	}
	position := 1
	return dto.InterviewSetDetailResponse{
		InterviewSetResponse: dto.InterviewSetResponse{ID: "set-1", Title: payload.Title, JobType: payload.JobType, Level: payload.Level, Status: "in_progress"},
		Questions:            []dto.SetQuestionResponse{{QuestionID: "q-1", Position: 1, Question: "Why us?", Category: "common"}},
		Answers:              []dto.AnswerNoteResponse{},
		NextPosition:         &position,
	}, nil
}

func (s *stubInterviewService) ListSets(_ context.Context, userID string, page, pageSize int) ([]dto.InterviewSetResponse, dto.PaginationMeta, error) {
	s.lastUser = userID
	return []dto.InterviewSetResponse{{ID: "set-1"}}, dto.NewPaginationMeta(page, pageSize, 1), nil
}

func (s *stubInterviewService) GetSet(_ context.Context, userID, setID string) (dto.InterviewSetDetailResponse, error) {
	s.lastUser = userID
	if setID == "missing" {
		return dto.InterviewSetDetailResponse{}, fmt.Errorf("interview set: %w", service.ErrNotFound)
	}
	if setID == "foreign" {
		return dto.InterviewSetDetailResponse{}, service.ErrForbidden
	}
	return dto.InterviewSetDetailResponse{InterviewSetResponse: dto.InterviewSetResponse{ID: setID}}, nil
}

func (s *stubInterviewService) DeleteSet(_ context.Context, userID, _ string) error {
	s.lastUser = userID
	return nil
}

func (s *stubInterviewService) SubmitAnswer(_ context.Context, userID string, payload dto.SubmitAnswerRequest) (dto.SubmitAnswerResponse, error) {
	s.lastUser = userID
	s.lastSubmit = payload
	return s.submit, s.submitErr
}

func (s *stubInterviewService) AnswerFollowUp(_ context.Context, userID, answerID string, _ dto.FollowUpAnswerRequest) (dto.SubmitAnswerResponse, error) {
	s.lastUser = userID
	return dto.SubmitAnswerResponse{AnswerID: answerID, SetStatus: "pending_evaluation"}, nil
}

func (s *stubInterviewService) Complete(_ context.Context, userID, _ string) (dto.SummaryResponse, error) {
	s.lastUser = userID
	return s.summary, s.completeErr
}

func (s *stubInterviewService) GetSummary(_ context.Context, userID, _ string) (dto.SummaryResponse, error) {
	s.lastUser = userID
	return s.summary, nil
}

func newInterviewApp(svc service.InterviewService, limiter fiber.Handler) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/interview", withUser("user-1", "candidate"))
	handler.NewInterviewHandler(svc, limiter, zerolog.Nop()).Register(group)
	return app
}

func TestInterviewHandlerCreateSet(t *testing.T) {
	svc := &stubInterviewService{}
	app := newInterviewApp(svc, nil)

	resp, body, _ := doJSON(t, app, http.MethodPost, "/api/v1/interview/sets", dto.InterviewSetRequest{JobType: "it", Level: "entry", QuestionCount: 1})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, "user-1", svc.lastUser)

	var detail dto.InterviewSetDetailResponse
	require.NoError(t, json.Unmarshal(body.Data, &detail))
	require.Equal(t, "set-1", detail.ID)
	require.Equal(t, 1, *detail.NextPosition)
}

func TestInterviewHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not enough questions", err: fmt.Errorf("%w: requested 10, available 3", service.ErrNotEnoughQuestions), status: fiber.StatusUnprocessableEntity},
		{name: "conflict", err: service.ErrAnswerExists, status: fiber.StatusConflict},
		{name: "generic", err: fmt.Errorf("db down"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newInterviewApp(&stubInterviewService{createErr: tc.err}, nil)
			resp, body, _ := doJSON(t, app, http.MethodPost, "/api/v1/interview/sets", dto.InterviewSetRequest{JobType: "it", Level: "entry", QuestionCount: 10})
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
			require.NotContains(t, body.Message, "db down")
		})
	}

	app := newInterviewApp(&stubInterviewService{}, nil)
	resp, _, _ := doJSON(t, app, http.MethodGet, "/api/v1/interview/sets/missing", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp, _, _ = doJSON(t, app, http.MethodGet, "/api/v1/interview/sets/foreign", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestInterviewHandlerSubmitReportsFollowUpFailure(t *testing.T) {
	svc := &stubInterviewService{submit: dto.SubmitAnswerResponse{AnswerID: "a-1", FollowUpError: "follow-up generation timed out", SetStatus: "pending_evaluation"}}
	app := newInterviewApp(svc, nil)

	resp, body, _ := doJSON(t, app, http.MethodPost, "/api/v1/interview/answers", map[string]interface{}{
		"set_id":           "6a2f41a3-c54c-4c1c-8f9f-1d7a8c3c2e11",
		"position":         1,
		"answer":           "My answer",
		"enable_follow_up": true,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "answer saved without follow-up", body.Message)
	require.True(t, svc.lastSubmit.EnableFollowUp)

	var result dto.SubmitAnswerResponse
	require.NoError(t, json.Unmarshal(body.Data, &result))
	require.Equal(t, "a-1", result.AnswerID)
	require.Nil(t, result.FollowUp)
}

func TestInterviewHandlerCompleteMapsEvaluatorFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid context", err: &ai.Error{Kind: ai.KindInvalidContext, Operation: ai.OperationComprehensive, Reason: "no answers"}, status: fiber.StatusUnprocessableEntity},
		{name: "unavailable", err: &ai.Error{Kind: ai.KindUpstreamUnavailable, Operation: ai.OperationComprehensive, Reason: ai.ReasonServerError, Attempts: 3}, status: fiber.StatusServiceUnavailable},
		{name: "rejected", err: &ai.Error{Kind: ai.KindUpstreamUnavailable, Operation: ai.OperationComprehensive, Reason: ai.ReasonUnauthorized, Attempts: 1}, status: fiber.StatusBadGateway},
		{name: "timeout", err: &ai.Error{Kind: ai.KindUpstreamTimeout, Operation: ai.OperationComprehensive, Reason: ai.ReasonTimeout, Attempts: 3}, status: fiber.StatusGatewayTimeout},
		{name: "malformed", err: &ai.Error{Kind: ai.KindMalformedOutput, Operation: ai.OperationComprehensive, Raw: "secret raw output"}, status: fiber.StatusBadGateway},
		{name: "wrapped", err: fmt.Errorf("evaluate answer 2: %w", &ai.Error{Kind: ai.KindUpstreamTimeout, Operation: ai.OperationEvaluate}), status: fiber.StatusGatewayTimeout},
		{name: "not ready", err: service.ErrSetNotReady, status: fiber.StatusConflict},
		{name: "no evaluator", err: service.ErrEvaluatorUnavailable, status: fiber.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newInterviewApp(&stubInterviewService{completeErr: tc.err}, nil)
			resp, body, raw := doJSON(t, app, http.MethodPost, "/api/v1/interview/sets/set-1/complete", nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
			require.NotContains(t, string(raw), "secret raw output")
		})
	}
}

func TestInterviewHandlerCompleteIsRateLimited(t *testing.T) {
	svc := &stubInterviewService{summary: dto.SummaryResponse{ID: "sum-1", SetID: "set-1", OverallScore: 80}}
	calls := 0
	limiter := func(c *fiber.Ctx) error {
		calls++
		if calls > 1 {
			return c.SendStatus(fiber.StatusTooManyRequests)
		}
		return c.Next()
	}
	app := newInterviewApp(svc, limiter)

	resp, body, _ := doJSON(t, app, http.MethodPost, "/api/v1/interview/sets/set-1/complete", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var summary dto.SummaryResponse
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	require.Equal(t, 80.0, summary.OverallScore)

	require.Equal(t, fiber.StatusTooManyRequests, doStatus(t, app, http.MethodPost, "/api/v1/interview/sets/set-1/complete"))

	resp, _, _ = doJSON(t, app, http.MethodGet, "/api/v1/interview/sets/set-1/summary", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestInterviewHandlerListSetsCarriesPagination(t *testing.T) {
	app := newInterviewApp(&stubInterviewService{}, nil)

	resp, body, _ := doJSON(t, app, http.MethodGet, "/api/v1/interview/sets?page=2&page_size=5", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var meta dto.PaginationMeta
	require.NoError(t, json.Unmarshal(body.Meta, &meta))
	require.Equal(t, 2, meta.Page)
	require.Equal(t, 5, meta.PageSize)

	resp, _, _ = doJSON(t, app, http.MethodGet, "/api/v1/interview/sets?page=abc", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
