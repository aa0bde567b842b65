package ai

import (
	"context"
	"time"
)

// Operation identifies which evaluation pipeline a request belongs to.
type Operation string

const (
	OperationEvaluate      Operation = "single_evaluation"
	OperationFollowUp      Operation = "follow_up"
	OperationComprehensive Operation = "comprehensive"
)

// Exchange is a prior follow-up question together with the candidate's answer.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnswerInput carries everything needed to judge a single answer.
type AnswerInput struct {
	Question    string
	Answer      string
	History     []Exchange
	Category    string
	Difficulty  string
	ModelAnswer string
	// Model overrides the configured default model for this call.
	Model string
}

// SummaryItem is one answered question as seen by the comprehensive evaluation.
// Only already computed scores and feedback are carried, never the transcript.
type SummaryItem struct {
	Position       int
	QuestionID     string
	Question       string
	Category       string
	Score          float64
	Feedback       string
	CategoryScores map[string]float64
}

// PromptContext is the input of the prompt builder.
type PromptContext struct {
	Operation Operation
	AnswerInput
	Items      []SummaryItem
	Aggregates Aggregate
}

// Message is a single role-tagged chat message.
type Message struct {
	Role    string
	Content string
}

// Request is a fully rendered model request.
type Request struct {
	Operation Operation
	Messages  []Message
	// Schema is the JSON schema the response is expected to satisfy.
	Schema string
	Model  string
}

// RawResponse is the unparsed output of a model call.
type RawResponse struct {
	Content  string
	Model    string
	Elapsed  time.Duration
	Attempts int
}

// Completer sends a rendered request to a model.
type Completer interface {
	Complete(ctx context.Context, req Request) (RawResponse, error)
}

// Scale describes the score range and category taxonomy results are validated against.
type Scale struct {
	Min       float64
	Max       float64
	Tolerance float64
	// Categories lists the allowed category keys in display order. Empty means any key is accepted.
	Categories []string
}

// DefaultScale returns the 0-100 scale with the five interview dimensions.
func DefaultScale() Scale {
	return Scale{
		Min:        0,
		Max:        100,
		Tolerance:  1,
		Categories: []string{"logic", "evidence", "job_understanding", "formality", "completeness"},
	}
}

// Evaluation is the validated verdict on a single answer.
type Evaluation struct {
	Score          float64            `json:"score"`
	Feedback       string             `json:"feedback"`
	Strengths      []string           `json:"strengths"`
	Weaknesses     []string           `json:"weaknesses"`
	CategoryScores map[string]float64 `json:"category_scores,omitempty"`
	Model          string             `json:"model,omitempty"`
}

// FollowUp is a generated probing question.
type FollowUp struct {
	Question  string `json:"question"`
	Rationale string `json:"rationale"`
	Model     string `json:"model,omitempty"`
}

// Aggregate holds the locally computed numbers of an interview.
type Aggregate struct {
	OverallScore     float64            `json:"overall_score"`
	CategoryAverages map[string]float64 `json:"category_averages"`
	AnswerCount      int                `json:"answer_count"`
}

// Summary is the session level verdict.
type Summary struct {
	Aggregate
	Recommendation string   `json:"recommendation"`
	FocusAreas     []string `json:"focus_areas"`
	Model          string   `json:"model,omitempty"`
}

// Evaluator is the public contract of the orchestrator.
type Evaluator interface {
	EvaluateAnswer(ctx context.Context, input AnswerInput) (Evaluation, error)
	GenerateFollowUp(ctx context.Context, input AnswerInput) (FollowUp, error)
	EvaluateInterview(ctx context.Context, items []SummaryItem) (Summary, error)
}
