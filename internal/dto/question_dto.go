package dto

import (
	"time"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// QuestionRequest is the payload for creating or replacing a bank question.
type QuestionRequest struct {
	Question    string `json:"question" validate:"required,max=2000"`
	Category    string `json:"category" validate:"required,oneof=common job foreigner"`
	JobType     string `json:"job_type" validate:"omitempty,oneof=it marketing"`
	Level       string `json:"level" validate:"omitempty,oneof=intern entry experienced"`
	ModelAnswer string `json:"model_answer" validate:"max=8000"`
	Reasoning   string `json:"reasoning" validate:"max=8000"`
}

// QuestionResponse describes a bank question.
type QuestionResponse struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Category    string    `json:"category"`
	JobType     string    `json:"job_type,omitempty"`
	Level       string    `json:"level,omitempty"`
	ModelAnswer string    `json:"model_answer,omitempty"`
	Reasoning   string    `json:"reasoning,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QuestionListResponse wraps a page of questions.
type QuestionListResponse struct {
	Items      []QuestionResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// PaginationMeta describes the page returned by list endpoints.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta computes page counts for list responses.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}
}

// NewQuestionResponse converts a model into its API representation.
func NewQuestionResponse(question models.Question) QuestionResponse {
	return QuestionResponse{
		ID:          question.ID,
		Question:    question.Text,
		Category:    question.Category,
		JobType:     question.JobType,
		Level:       question.Level,
		ModelAnswer: question.ModelAnswer,
		Reasoning:   question.Reasoning,
		CreatedAt:   question.CreatedAt,
		UpdatedAt:   question.UpdatedAt,
	}
}

// NewQuestionResponses converts a slice of models.
func NewQuestionResponses(questions []models.Question) []QuestionResponse {
	responses := make([]QuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, NewQuestionResponse(question))
	}
	return responses
}
