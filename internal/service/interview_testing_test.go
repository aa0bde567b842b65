package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

type stubEvaluator struct {
	mu        sync.Mutex
	evaluate  func(input ai.AnswerInput) (ai.Evaluation, error)
	followUp  func(input ai.AnswerInput) (ai.FollowUp, error)
	summarise func(items []ai.SummaryItem) (ai.Summary, error)
	inputs    []ai.AnswerInput
	calls     int
}

func (s *stubEvaluator) record(input ai.AnswerInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.inputs = append(s.inputs, input)
}

func (s *stubEvaluator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubEvaluator) EvaluateAnswer(_ context.Context, input ai.AnswerInput) (ai.Evaluation, error) {
	s.record(input)
	if s.evaluate != nil {
		return s.evaluate(input)
	}
	return ai.Evaluation{Score: 70, Feedback: "ok", Strengths: []string{"clear"}, Weaknesses: []string{}, Model: "stub-model"}, nil
}

func (s *stubEvaluator) GenerateFollowUp(_ context.Context, input ai.AnswerInput) (ai.FollowUp, error) {
	s.record(input)
	if s.followUp != nil {
		return s.followUp(input)
	}
	return ai.FollowUp{Question: "Can you give a number?", Rationale: "no evidence", Model: "stub-model"}, nil
}

func (s *stubEvaluator) EvaluateInterview(_ context.Context, items []ai.SummaryItem) (ai.Summary, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.summarise != nil {
		return s.summarise(items)
	}
	return ai.Summary{Aggregate: ai.AggregateItems(items), Recommendation: "Keep practising.", FocusAreas: []string{"evidence"}, Model: "stub-model"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []EvaluationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event EvaluationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Question{},
		&models.QuestionSet{},
		&models.SetQuestion{},
		&models.AnswerNote{},
		&models.FollowUpQuestion{},
		&models.Evaluation{},
		&models.InterviewSummary{},
	))
	return db
}

func seedBank(t *testing.T, db *gorm.DB, category, jobType string, count int) []models.Question {
	t.Helper()
	questions := make([]models.Question, 0, count)
	for i := 0; i < count; i++ {
		question := models.Question{
			Text:        fmt.Sprintf("%s %s question %d", category, jobType, i+1),
			Category:    category,
			JobType:     jobType,
			ModelAnswer: "reference",
		}
		require.NoError(t, db.Create(&question).Error)
		questions = append(questions, question)
	}
	return questions
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func noShuffle(int, func(i, j int)) {}
