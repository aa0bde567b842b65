package dto

import (
	"time"

	"github.com/noah-isme/gema-interview-api/internal/models"
)

// AnswerNoteRequest creates a standalone answer note for a bank question.
type AnswerNoteRequest struct {
	QuestionID string `json:"question_id" validate:"required,uuid"`
	Answer     string `json:"answer" validate:"required,max=20000"`
	Title      string `json:"title" validate:"max=255"`
}

// AnswerNoteUpdateRequest edits a note before it is evaluated. Omitted fields keep their value.
type AnswerNoteUpdateRequest struct {
	Title          *string `json:"title" validate:"omitempty,max=255"`
	FirstFeedback  *string `json:"first_feedback" validate:"omitempty,max=20000"`
	SecondFeedback *string `json:"second_feedback" validate:"omitempty,max=20000"`
	FinalAnswer    *string `json:"final_answer" validate:"omitempty,max=20000"`
}

// Empty reports whether the request changes nothing.
func (r AnswerNoteUpdateRequest) Empty() bool {
	return r.Title == nil && r.FirstFeedback == nil && r.SecondFeedback == nil && r.FinalAnswer == nil
}

// EvaluateRequest optionally overrides the model used for an evaluation.
type EvaluateRequest struct {
	Model string `json:"model" validate:"max=128"`
}

// FollowUpAnswerRequest answers a generated follow-up question.
type FollowUpAnswerRequest struct {
	Answer string `json:"answer" validate:"required,max=20000"`
}

// AnswerNoteResponse describes an answer note with its follow-ups and latest evaluation.
type AnswerNoteResponse struct {
	ID               string              `json:"id"`
	QuestionID       string              `json:"question_id"`
	SetID            *string             `json:"set_id,omitempty"`
	Position         *int                `json:"position,omitempty"`
	Question         string              `json:"question"`
	Category         string              `json:"category,omitempty"`
	Title            string              `json:"title,omitempty"`
	Answer           string              `json:"answer"`
	FirstFeedback    *string             `json:"first_feedback,omitempty"`
	SecondFeedback   *string             `json:"second_feedback,omitempty"`
	FinalAnswer      *string             `json:"final_answer,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	FollowUps        []FollowUpResponse  `json:"follow_ups"`
	LatestEvaluation *EvaluationResponse `json:"latest_evaluation,omitempty"`
	EvaluationCount  int                 `json:"evaluation_count"`
}

// FollowUpResponse describes a generated follow-up question.
type FollowUpResponse struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Rationale  string     `json:"rationale"`
	Answer     *string    `json:"answer,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	Model      string     `json:"model"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EvaluationResponse describes a stored evaluation.
type EvaluationResponse struct {
	ID             string             `json:"id"`
	AnswerNoteID   string             `json:"answer_note_id"`
	Score          float64            `json:"score"`
	Feedback       string             `json:"feedback"`
	Strengths      []string           `json:"strengths"`
	Weaknesses     []string           `json:"weaknesses"`
	CategoryScores map[string]float64 `json:"category_scores"`
	Model          string             `json:"model"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewAnswerNoteResponse converts a note, including its preloaded children.
func NewAnswerNoteResponse(note models.AnswerNote) AnswerNoteResponse {
	response := AnswerNoteResponse{
		ID:              note.ID,
		QuestionID:      note.QuestionID,
		SetID:           note.SetID,
		Position:        note.Position,
		Question:        note.Question,
		Category:        note.Category,
		Title:           note.Title,
		Answer:          note.Answer,
		FirstFeedback:   note.FirstFeedback,
		SecondFeedback:  note.SecondFeedback,
		FinalAnswer:     note.FinalAnswer,
		CreatedAt:       note.CreatedAt,
		UpdatedAt:       note.UpdatedAt,
		FollowUps:       make([]FollowUpResponse, 0, len(note.FollowUps)),
		EvaluationCount: len(note.Evaluations),
	}
	for _, followUp := range note.FollowUps {
		response.FollowUps = append(response.FollowUps, NewFollowUpResponse(followUp))
	}
	if count := len(note.Evaluations); count > 0 {
		latest := NewEvaluationResponse(note.Evaluations[count-1])
		response.LatestEvaluation = &latest
	}
	return response
}

// NewAnswerNoteResponses converts a slice of notes.
func NewAnswerNoteResponses(notes []models.AnswerNote) []AnswerNoteResponse {
	responses := make([]AnswerNoteResponse, 0, len(notes))
	for _, note := range notes {
		responses = append(responses, NewAnswerNoteResponse(note))
	}
	return responses
}

// NewFollowUpResponse converts a follow-up model.
func NewFollowUpResponse(followUp models.FollowUpQuestion) FollowUpResponse {
	return FollowUpResponse{
		ID:         followUp.ID,
		Question:   followUp.Question,
		Rationale:  followUp.Rationale,
		Answer:     followUp.Answer,
		AnsweredAt: followUp.AnsweredAt,
		Model:      followUp.Model,
		CreatedAt:  followUp.CreatedAt,
	}
}

// NewEvaluationResponse converts an evaluation model, decoding its JSON columns.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		ID:             evaluation.ID,
		AnswerNoteID:   evaluation.AnswerNoteID,
		Score:          evaluation.Score,
		Feedback:       evaluation.Feedback,
		Strengths:      models.DecodeStrings(evaluation.Strengths),
		Weaknesses:     models.DecodeStrings(evaluation.Weaknesses),
		CategoryScores: models.DecodeScores(evaluation.CategoryScores),
		Model:          evaluation.Model,
		CreatedAt:      evaluation.CreatedAt,
	}
}

// NewEvaluationResponses converts a slice of evaluations.
func NewEvaluationResponses(evaluations []models.Evaluation) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		responses = append(responses, NewEvaluationResponse(evaluation))
	}
	return responses
}
