package dto

import (
	"time"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// InterviewSetRequest creates a new mock interview.
type InterviewSetRequest struct {
	Title         string `json:"title" validate:"max=255"`
	JobType       string `json:"job_type" validate:"required,oneof=it marketing"`
	Level         string `json:"level" validate:"required,oneof=intern entry experienced"`
	QuestionCount int    `json:"question_count" validate:"required,min=1,max=10"`
}

// SubmitAnswerRequest answers the question at a position of a set.
type SubmitAnswerRequest struct {
	SetID          string `json:"set_id" validate:"required,uuid"`
	Position       int    `json:"position" validate:"required,min=1,max=10"`
	Answer         string `json:"answer" validate:"required,max=20000"`
	EnableFollowUp bool   `json:"enable_follow_up"`
	Model          string `json:"model" validate:"max=128"`
}

// InterviewSetResponse summarises a set for list views.
type InterviewSetResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	JobType     string     `json:"job_type"`
	Level       string     `json:"level"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SetQuestionResponse is one question of a set.
type SetQuestionResponse struct {
	QuestionID string `json:"question_id"`
	Position   int    `json:"position"`
	Question   string `json:"question"`
	Category   string `json:"category"`
}

// InterviewSetDetailResponse is the full state of a set for resuming or review.
type InterviewSetDetailResponse struct {
	InterviewSetResponse
	Questions    []SetQuestionResponse `json:"questions"`
	Answers      []AnswerNoteResponse  `json:"answers"`
	NextPosition *int                  `json:"next_position"`
	Summary      *SummaryResponse      `json:"summary,omitempty"`
}

// SubmitAnswerResponse returns the stored answer and, when requested, a follow-up.
type SubmitAnswerResponse struct {
	AnswerID      string            `json:"answer_id"`
	FollowUp      *FollowUpResponse `json:"follow_up,omitempty"`
	FollowUpError string            `json:"follow_up_error,omitempty"`
	SetStatus     string            `json:"set_status"`
}

// SummaryResponse is the comprehensive interview assessment.
type SummaryResponse struct {
	ID               string             `json:"id"`
	SetID            string             `json:"set_id"`
	OverallScore     float64            `json:"overall_score"`
	CategoryAverages map[string]float64 `json:"category_averages"`
	Recommendation   string             `json:"recommendation"`
	FocusAreas       []string           `json:"focus_areas"`
	AnswerCount      int                `json:"answer_count"`
	Model            string             `json:"model"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewInterviewSetResponse converts a set model.
func NewInterviewSetResponse(set models.QuestionSet) InterviewSetResponse {
	return InterviewSetResponse{
		ID:          set.ID,
		Title:       set.Title,
		JobType:     set.JobType,
		Level:       set.Level,
		Status:      set.Status,
		CreatedAt:   set.CreatedAt,
		CompletedAt: set.CompletedAt,
	}
}

// NewInterviewSetResponses converts a slice of sets.
func NewInterviewSetResponses(sets []models.QuestionSet) []InterviewSetResponse {
	responses := make([]InterviewSetResponse, 0, len(sets))
	for _, set := range sets {
		responses = append(responses, NewInterviewSetResponse(set))
	}
	return responses
}

// NewSetQuestionResponses converts the ordered questions of a set.
func NewSetQuestionResponses(questions []models.SetQuestion) []SetQuestionResponse {
	responses := make([]SetQuestionResponse, 0, len(questions))
	for _, question := range questions {
		responses = append(responses, SetQuestionResponse{
			QuestionID: question.QuestionID,
			Position:   question.Position,
			Question:   question.Text,
			Category:   question.Category,
		})
	}
	return responses
}

// NewSummaryResponse converts a stored summary.
func NewSummaryResponse(summary models.InterviewSummary) SummaryResponse {
	return SummaryResponse{
		ID:               summary.ID,
		SetID:            summary.SetID,
		OverallScore:     summary.OverallScore,
		CategoryAverages: models.DecodeScores(summary.CategoryAverages),
		Recommendation:   summary.Recommendation,
		FocusAreas:       models.DecodeStrings(summary.FocusAreas),
		AnswerCount:      summary.AnswerCount,
		Model:            summary.Model,
		CreatedAt:        summary.CreatedAt,
	}
}
