package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/internal/repository"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

// AnswerNoteService manages a user's answer notes, their evaluations and follow-ups.
type AnswerNoteService interface {
	Create(ctx context.Context, userID string, payload dto.AnswerNoteRequest) (dto.AnswerNoteResponse, error)
	List(ctx context.Context, userID, questionID string, page, pageSize int) ([]dto.AnswerNoteResponse, dto.PaginationMeta, error)
	Get(ctx context.Context, userID, id string) (dto.AnswerNoteResponse, error)
	Update(ctx context.Context, userID, id string, payload dto.AnswerNoteUpdateRequest) (dto.AnswerNoteResponse, error)
	Delete(ctx context.Context, userID, id string) error
	Evaluate(ctx context.Context, userID, id string, payload dto.EvaluateRequest) (dto.EvaluationResponse, error)
	ListEvaluations(ctx context.Context, userID, id string) ([]dto.EvaluationResponse, error)
	GetEvaluation(ctx context.Context, userID, id, evaluationID string) (dto.EvaluationResponse, error)
	GenerateFollowUp(ctx context.Context, userID, id string, payload dto.EvaluateRequest) (dto.FollowUpResponse, error)
	AnswerFollowUp(ctx context.Context, userID, id, followUpID string, payload dto.FollowUpAnswerRequest) (dto.FollowUpResponse, error)
}

type answerNoteService struct {
	notes       repository.AnswerNoteRepository
	questions   repository.QuestionRepository
	evaluations repository.EvaluationRepository
	sets        repository.InterviewSetRepository
	evaluator   ai.Evaluator
	events      EventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAnswerNoteService constructs the answer note service. evaluator may be nil when no model is configured.
func NewAnswerNoteService(notes repository.AnswerNoteRepository, questions repository.QuestionRepository, evaluations repository.EvaluationRepository, sets repository.InterviewSetRepository, evaluator ai.Evaluator, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) AnswerNoteService {
	return &answerNoteService{
		notes:       notes,
		questions:   questions,
		evaluations: evaluations,
		sets:        sets,
		evaluator:   evaluator,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "answer_note_service").Logger(),
	}
}

func (s *answerNoteService) Create(ctx context.Context, userID string, payload dto.AnswerNoteRequest) (dto.AnswerNoteResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerNoteResponse{}, err
	}

	answer := cleanText(payload.Answer)
	if answer == "" {
		return dto.AnswerNoteResponse{}, ErrEmptyText
	}

	question, err := s.questions.GetByID(ctx, payload.QuestionID)
	if err != nil {
		return dto.AnswerNoteResponse{}, notFound(err, "question")
	}

	note := models.AnswerNote{
		UserID:      userID,
		QuestionID:  question.ID,
		Question:    question.Text,
		Category:    question.Category,
		Level:       question.Level,
		ModelAnswer: question.ModelAnswer,
		Answer:      answer,
		Title:       cleanText(payload.Title),
	}
	if err := s.notes.Create(ctx, &note); err != nil {
		return dto.AnswerNoteResponse{}, err
	}

	return dto.NewAnswerNoteResponse(note), nil
}

func (s *answerNoteService) List(ctx context.Context, userID, questionID string, page, pageSize int) ([]dto.AnswerNoteResponse, dto.PaginationMeta, error) {
	page, pageSize = normalizePage(page, pageSize)
	notes, total, err := s.notes.List(ctx, repository.AnswerNoteFilter{
		UserID:     userID,
		QuestionID: strings.TrimSpace(questionID),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return dto.NewAnswerNoteResponses(notes), dto.NewPaginationMeta(page, pageSize, total), nil
}

func (s *answerNoteService) Get(ctx context.Context, userID, id string) (dto.AnswerNoteResponse, error) {
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return dto.AnswerNoteResponse{}, err
	}
	return dto.NewAnswerNoteResponse(note), nil
}

// Update edits the title and refinement trail of a note that has not been evaluated yet.
func (s *answerNoteService) Update(ctx context.Context, userID, id string, payload dto.AnswerNoteUpdateRequest) (dto.AnswerNoteResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerNoteResponse{}, err
	}
	if payload.Empty() {
		return dto.AnswerNoteResponse{}, ErrNoChanges
	}

	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return dto.AnswerNoteResponse{}, err
	}
	if len(note.Evaluations) > 0 {
		return dto.AnswerNoteResponse{}, ErrNoteEvaluated
	}
	if note.SetID != nil {
		set, err := s.sets.GetByID(ctx, *note.SetID)
		if err != nil {
			return dto.AnswerNoteResponse{}, notFound(err, "interview set")
		}
		switch set.Status {
		case models.SetStatusEvaluating:
			return dto.AnswerNoteResponse{}, ErrSetEvaluating
		case models.SetStatusCompleted:
			return dto.AnswerNoteResponse{}, ErrSetCompleted
		}
	}

	update := repository.AnswerNoteUpdate{
		Title:          cleanOptional(payload.Title),
		FirstFeedback:  cleanOptional(payload.FirstFeedback),
		SecondFeedback: cleanOptional(payload.SecondFeedback),
		FinalAnswer:    cleanOptional(payload.FinalAnswer),
	}
	if err := s.notes.Update(ctx, note.ID, update); err != nil {
		if errors.Is(err, repository.ErrNoteFrozen) {
			return dto.AnswerNoteResponse{}, ErrNoteEvaluated
		}
		return dto.AnswerNoteResponse{}, notFound(err, "answer note")
	}

	updated, err := s.notes.GetByID(ctx, note.ID)
	if err != nil {
		return dto.AnswerNoteResponse{}, notFound(err, "answer note")
	}
	s.logger.Info().Str("answer_note_id", note.ID).Msg("answer note updated")
	return dto.NewAnswerNoteResponse(updated), nil
}

func (s *answerNoteService) Delete(ctx context.Context, userID, id string) error {
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return err
	}
	if note.SetID != nil {
		return ErrNoteInSet
	}
	if err := s.notes.Delete(ctx, id); err != nil {
		return notFound(err, "answer note")
	}
	return nil
}

// Evaluate always stores a new evaluation row; earlier evaluations stay readable.
func (s *answerNoteService) Evaluate(ctx context.Context, userID, id string, payload dto.EvaluateRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	if note.HasPendingFollowUp() {
		return dto.EvaluationResponse{}, ErrFollowUpPending
	}

	evaluation, err := evaluateNote(ctx, s.evaluator, s.evaluations, note, payload.Model)
	if err != nil {
		s.logFailure(err, note.ID, "answer evaluation failed")
		return dto.EvaluationResponse{}, err
	}

	setID := ""
	if note.SetID != nil {
		setID = *note.SetID
	}
	s.events.Publish(ctx, EvaluationEvent{
		Type:         EventEvaluationCompleted,
		UserID:       userID,
		SetID:        setID,
		AnswerNoteID: note.ID,
		ResourceID:   evaluation.ID,
		Score:        evaluation.Score,
		Model:        evaluation.Model,
	})

	s.logger.Info().Str("answer_note_id", note.ID).Float64("score", evaluation.Score).Msg("answer evaluated")
	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *answerNoteService) ListEvaluations(ctx context.Context, userID, id string) ([]dto.EvaluationResponse, error) {
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	evaluations, err := s.evaluations.ListByNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponses(evaluations), nil
}

func (s *answerNoteService) GetEvaluation(ctx context.Context, userID, id, evaluationID string) (dto.EvaluationResponse, error) {
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	evaluation, err := s.evaluations.GetByID(ctx, note.ID, evaluationID)
	if err != nil {
		return dto.EvaluationResponse{}, notFound(err, "evaluation")
	}
	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *answerNoteService) GenerateFollowUp(ctx context.Context, userID, id string, payload dto.EvaluateRequest) (dto.FollowUpResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FollowUpResponse{}, err
	}
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return dto.FollowUpResponse{}, err
	}
	if len(note.Evaluations) > 0 {
		return dto.FollowUpResponse{}, ErrNoteEvaluated
	}
	if note.HasPendingFollowUp() {
		return dto.FollowUpResponse{}, ErrFollowUpPending
	}

	reopened := false
	if note.SetID != nil {
		reopened, err = s.reopenSet(ctx, *note.SetID)
		if err != nil {
			return dto.FollowUpResponse{}, err
		}
	}

	followUp, err := generateFollowUp(ctx, s.evaluator, s.notes, note, payload.Model)
	if err != nil {
		s.logFailure(err, note.ID, "follow-up generation failed")
		if reopened {
			if _, restoreErr := advanceSetStatus(context.WithoutCancel(ctx), s.sets, s.notes, *note.SetID); restoreErr != nil {
				s.logger.Warn().Err(restoreErr).Str("set_id", *note.SetID).Msg("failed to restore interview set status")
			}
		}
		return dto.FollowUpResponse{}, err
	}
	return dto.NewFollowUpResponse(followUp), nil
}

// reopenSet moves a set waiting for evaluation back to in progress so a new follow-up
// must be answered before completion. It reports whether the set was moved.
func (s *answerNoteService) reopenSet(ctx context.Context, setID string) (bool, error) {
	set, err := s.sets.GetByID(ctx, setID)
	if err != nil {
		return false, notFound(err, "interview set")
	}
	switch set.Status {
	case models.SetStatusCompleted:
		return false, ErrSetCompleted
	case models.SetStatusEvaluating:
		return false, ErrSetEvaluating
	case models.SetStatusPendingEvaluation:
		moved, err := s.sets.TransitionStatus(ctx, setID, models.SetStatusPendingEvaluation, models.SetStatusInProgress, nil)
		if err != nil {
			return false, err
		}
		if !moved {
			return false, ErrSetEvaluating
		}
		return true, nil
	default:
		return false, nil
	}
}

func (s *answerNoteService) AnswerFollowUp(ctx context.Context, userID, id, followUpID string, payload dto.FollowUpAnswerRequest) (dto.FollowUpResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.FollowUpResponse{}, err
	}
	note, err := s.ownedNote(ctx, userID, id)
	if err != nil {
		return dto.FollowUpResponse{}, err
	}
	if len(note.Evaluations) > 0 {
		return dto.FollowUpResponse{}, ErrNoteEvaluated
	}

	followUp, err := s.notes.GetFollowUp(ctx, note.ID, followUpID)
	if err != nil {
		return dto.FollowUpResponse{}, notFound(err, "follow-up")
	}

	answered, err := answerFollowUp(ctx, s.notes, followUp, payload.Answer)
	if err != nil {
		return dto.FollowUpResponse{}, err
	}

	if note.SetID != nil {
		if _, err := advanceSetStatus(ctx, s.sets, s.notes, *note.SetID); err != nil {
			s.logger.Warn().Err(err).Str("set_id", *note.SetID).Msg("failed to refresh interview set status")
		}
	}
	return dto.NewFollowUpResponse(answered), nil
}

func (s *answerNoteService) ownedNote(ctx context.Context, userID, id string) (models.AnswerNote, error) {
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return models.AnswerNote{}, notFound(err, "answer note")
	}
	if note.UserID != userID {
		return models.AnswerNote{}, ErrForbidden
	}
	return note, nil
}

func (s *answerNoteService) logFailure(err error, noteID, message string) {
	event := s.logger.Warn().Err(err).Str("answer_note_id", noteID)
	if failure, ok := ai.AsError(err); ok {
		event = event.Str("kind", string(failure.Kind)).Str("reason", failure.Reason).Int("attempts", failure.Attempts)
		if failure.Raw != "" {
			event = event.Str("raw_output", failure.Raw)
		}
	}
	event.Msg(message)
}

// generateFollowUp asks the evaluator for a probing question and stores it on the note.
func generateFollowUp(ctx context.Context, evaluator ai.Evaluator, notes repository.AnswerNoteRepository, note models.AnswerNote, model string) (models.FollowUpQuestion, error) {
	if evaluator == nil {
		return models.FollowUpQuestion{}, ErrEvaluatorUnavailable
	}

	result, err := evaluator.GenerateFollowUp(ctx, answerInput(note, model))
	if err != nil {
		return models.FollowUpQuestion{}, err
	}

	followUp := models.FollowUpQuestion{
		AnswerNoteID: note.ID,
		Question:     result.Question,
		Rationale:    result.Rationale,
		Model:        result.Model,
	}
	if err := notes.CreateFollowUp(ctx, &followUp); err != nil {
		return models.FollowUpQuestion{}, err
	}
	return followUp, nil
}

func cleanOptional(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := cleanText(*value)
	return &cleaned
}

func answerFollowUp(ctx context.Context, notes repository.AnswerNoteRepository, followUp models.FollowUpQuestion, answer string) (models.FollowUpQuestion, error) {
	if followUp.IsAnswered() {
		return models.FollowUpQuestion{}, ErrFollowUpAnswered
	}
	cleaned := cleanText(answer)
	if cleaned == "" {
		return models.FollowUpQuestion{}, ErrEmptyText
	}

	answeredAt := nowUTC()
	if err := notes.AnswerFollowUp(ctx, followUp.ID, cleaned, answeredAt); err != nil {
		if errors.Is(err, repository.ErrFollowUpAlreadyAnswered) {
			return models.FollowUpQuestion{}, ErrFollowUpAnswered
		}
		return models.FollowUpQuestion{}, err
	}

	followUp.Answer = &cleaned
	followUp.AnsweredAt = &answeredAt
	return followUp, nil
}
