package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QuestionService manages the interview question bank.
type QuestionService interface {
	List(ctx context.Context, filter repository.QuestionFilter) ([]dto.QuestionResponse, dto.PaginationMeta, error)
	Get(ctx context.Context, id string) (dto.QuestionResponse, error)
	Create(ctx context.Context, payload dto.QuestionRequest) (dto.QuestionResponse, error)
	Update(ctx context.Context, id string, payload dto.QuestionRequest) (dto.QuestionResponse, error)
	Delete(ctx context.Context, id string) error
}

type questionService struct {
	repo      repository.QuestionRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewQuestionService constructs a question bank service.
func NewQuestionService(repo repository.QuestionRepository, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	return &questionService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) List(ctx context.Context, filter repository.QuestionFilter) ([]dto.QuestionResponse, dto.PaginationMeta, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	questions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return dto.NewQuestionResponses(questions), dto.NewPaginationMeta(filter.Page, filter.PageSize, total), nil
}

func (s *questionService) Get(ctx context.Context, id string) (dto.QuestionResponse, error) {
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.QuestionResponse{}, notFound(err, "question")
	}
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Create(ctx context.Context, payload dto.QuestionRequest) (dto.QuestionResponse, error) {
	question, err := s.toModel(payload)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	if err := s.repo.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Str("question_id", question.ID).Str("category", question.Category).Msg("question created")
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Update(ctx context.Context, id string, payload dto.QuestionRequest) (dto.QuestionResponse, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.QuestionResponse{}, notFound(err, "question")
	}

	updated, err := s.toModel(payload)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, &updated); err != nil {
		return dto.QuestionResponse{}, err
	}
	return dto.NewQuestionResponse(updated), nil
}

func (s *questionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err, "question")
	}
	s.logger.Info().Str("question_id", id).Msg("question deleted")
	return nil
}

func (s *questionService) toModel(payload dto.QuestionRequest) (models.Question, error) {
	payload.Category = strings.ToLower(strings.TrimSpace(payload.Category))
	payload.JobType = strings.ToLower(strings.TrimSpace(payload.JobType))
	payload.Level = strings.ToLower(strings.TrimSpace(payload.Level))
	if err := s.validator.Struct(payload); err != nil {
		return models.Question{}, err
	}

	text := cleanText(payload.Question)
	if text == "" {
		return models.Question{}, ErrEmptyText
	}

	return models.Question{
		Text:        text,
		Category:    payload.Category,
		JobType:     payload.JobType,
		Level:       payload.Level,
		ModelAnswer: cleanText(payload.ModelAnswer),
		Reasoning:   cleanText(payload.Reasoning),
	}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
