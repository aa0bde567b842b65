package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/internal/repository"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

var strictPolicy = bluemonday.StrictPolicy()

// cleanText strips markup from user supplied text while keeping it readable for the model.
func cleanText(value string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(value)))
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// answerInput assembles the evaluator input for a note, with answered follow-ups as history.
func answerInput(note models.AnswerNote, model string) ai.AnswerInput {
	history := make([]ai.Exchange, 0, len(note.FollowUps))
	for _, followUp := range note.FollowUps {
		if !followUp.IsAnswered() {
			continue
		}
		history = append(history, ai.Exchange{Question: followUp.Question, Answer: *followUp.Answer})
	}

	return ai.AnswerInput{
		Question:    note.Question,
		Answer:      note.EvaluatedAnswer(),
		History:     history,
		Category:    note.Category,
		Difficulty:  note.Level,
		ModelAnswer: note.ModelAnswer,
		Model:       strings.TrimSpace(model),
	}
}

// evaluateNote runs a single answer evaluation and stores the result as a new row.
func evaluateNote(ctx context.Context, evaluator ai.Evaluator, evaluations repository.EvaluationRepository, note models.AnswerNote, model string) (models.Evaluation, error) {
	record, err := requestEvaluation(ctx, evaluator, note, model)
	if err != nil {
		return models.Evaluation{}, err
	}
	if err := evaluations.Create(ctx, &record); err != nil {
		return models.Evaluation{}, err
	}
	return record, nil
}

// requestEvaluation calls the evaluator and returns the unsaved evaluation row.
func requestEvaluation(ctx context.Context, evaluator ai.Evaluator, note models.AnswerNote, model string) (models.Evaluation, error) {
	if evaluator == nil {
		return models.Evaluation{}, ErrEvaluatorUnavailable
	}

	result, err := evaluator.EvaluateAnswer(ctx, answerInput(note, model))
	if err != nil {
		return models.Evaluation{}, err
	}

	return models.Evaluation{
		AnswerNoteID:   note.ID,
		UserID:         note.UserID,
		Score:          result.Score,
		Feedback:       result.Feedback,
		Strengths:      models.EncodeJSON(nonNilStrings(result.Strengths)),
		Weaknesses:     models.EncodeJSON(nonNilStrings(result.Weaknesses)),
		CategoryScores: models.EncodeJSON(nonNilScores(result.CategoryScores)),
		Model:          result.Model,
	}, nil
}

// advanceSetStatus moves an in-progress set to pending evaluation once every position is
// answered and no follow-up is left open. It returns the resulting status.
func advanceSetStatus(ctx context.Context, sets repository.InterviewSetRepository, notes repository.AnswerNoteRepository, setID string) (string, error) {
	set, err := sets.GetByID(ctx, setID)
	if err != nil {
		return "", notFound(err, "interview set")
	}
	if set.Status != models.SetStatusInProgress {
		return set.Status, nil
	}

	answers, err := notes.ListBySet(ctx, setID)
	if err != nil {
		return "", err
	}
	if !setReady(set, answers) {
		return set.Status, nil
	}

	moved, err := sets.TransitionStatus(ctx, setID, models.SetStatusInProgress, models.SetStatusPendingEvaluation, nil)
	if err != nil {
		return "", err
	}
	if !moved {
		current, err := sets.GetByID(ctx, setID)
		if err != nil {
			return "", notFound(err, "interview set")
		}
		return current.Status, nil
	}
	return models.SetStatusPendingEvaluation, nil
}

func setReady(set models.QuestionSet, answers []models.AnswerNote) bool {
	answered := make(map[int]struct{}, len(answers))
	for _, note := range answers {
		if note.HasPendingFollowUp() {
			return false
		}
		if note.Position != nil {
			answered[*note.Position] = struct{}{}
		}
	}
	for _, question := range set.Questions {
		if _, ok := answered[question.Position]; !ok {
			return false
		}
	}
	return len(set.Questions) > 0
}

func nextPosition(set models.QuestionSet, answers []models.AnswerNote) *int {
	answered := make(map[int]struct{}, len(answers))
	for _, note := range answers {
		if note.Position != nil {
			answered[*note.Position] = struct{}{}
		}
	}
	for _, question := range set.Questions {
		if _, ok := answered[question.Position]; !ok {
			position := question.Position
			return &position
		}
	}
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilScores(values map[string]float64) map[string]float64 {
	if values == nil {
		return map[string]float64{}
	}
	return values
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
