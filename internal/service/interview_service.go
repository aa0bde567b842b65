package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-interview-api/internal/dto"
	"github.com/noah-isme/gema-interview-api/internal/models"
	"github.com/noah-isme/gema-interview-api/internal/observability"
	"github.com/noah-isme/gema-interview-api/internal/repository"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

const candidateLimit = 20

// InterviewService runs mock interview sets from creation to the comprehensive evaluation.
type InterviewService interface {
	CreateSet(ctx context.Context, userID string, payload dto.InterviewSetRequest) (dto.InterviewSetDetailResponse, error)
	ListSets(ctx context.Context, userID string, page, pageSize int) ([]dto.InterviewSetResponse, dto.PaginationMeta, error)
	GetSet(ctx context.Context, userID, setID string) (dto.InterviewSetDetailResponse, error)
	DeleteSet(ctx context.Context, userID, setID string) error
	SubmitAnswer(ctx context.Context, userID string, payload dto.SubmitAnswerRequest) (dto.SubmitAnswerResponse, error)
	AnswerFollowUp(ctx context.Context, userID, answerID string, payload dto.FollowUpAnswerRequest) (dto.SubmitAnswerResponse, error)
	Complete(ctx context.Context, userID, setID string) (dto.SummaryResponse, error)
	GetSummary(ctx context.Context, userID, setID string) (dto.SummaryResponse, error)
}

// InterviewConfig tunes the interview service.
type InterviewConfig struct {
	MaxConcurrency  int
	SummaryCacheTTL time.Duration
	// Shuffle reorders question candidates; defaults to math/rand.
	Shuffle func(n int, swap func(i, j int))
}

type interviewService struct {
	questions   repository.QuestionRepository
	sets        repository.InterviewSetRepository
	notes       repository.AnswerNoteRepository
	evaluations repository.EvaluationRepository
	evaluator   ai.Evaluator
	events      EventPublisher
	cache       *redis.Client
	validator   *validator.Validate
	logger      zerolog.Logger
	config      InterviewConfig
}

// NewInterviewService constructs the interview service. evaluator and cache may be nil.
func NewInterviewService(questions repository.QuestionRepository, sets repository.InterviewSetRepository, notes repository.AnswerNoteRepository, evaluations repository.EvaluationRepository, evaluator ai.Evaluator, events EventPublisher, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger, cfg InterviewConfig) InterviewService {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 10 * time.Minute
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = rand.Shuffle
	}

	return &interviewService{
		questions:   questions,
		sets:        sets,
		notes:       notes,
		evaluations: evaluations,
		evaluator:   evaluator,
		events:      events,
		cache:       cache,
		validator:   validate,
		logger:      logger.With().Str("component", "interview_service").Logger(),
		config:      cfg,
	}
}

func (s *interviewService) CreateSet(ctx context.Context, userID string, payload dto.InterviewSetRequest) (dto.InterviewSetDetailResponse, error) {
	payload.JobType = strings.ToLower(strings.TrimSpace(payload.JobType))
	payload.Level = strings.ToLower(strings.TrimSpace(payload.Level))
	if err := s.validator.Struct(payload); err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}

	count := payload.QuestionCount
	commonCount := count * 4 / 10
	jobCount := count * 3 / 10
	foreignerCount := count - commonCount - jobCount

	common, err := s.questions.ListCandidates(ctx, models.QuestionCategoryCommon, "", candidateLimit)
	if err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}
	job, err := s.questions.ListCandidates(ctx, models.QuestionCategoryJob, payload.JobType, candidateLimit)
	if err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}
	foreigner, err := s.questions.ListCandidates(ctx, models.QuestionCategoryForeigner, "", candidateLimit)
	if err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}

	selected := make([]models.Question, 0, count)
	selected = append(selected, s.pick(common, commonCount)...)
	selected = append(selected, s.pick(job, jobCount)...)
	selected = append(selected, s.pick(foreigner, foreignerCount)...)

	if len(selected) < count {
		return dto.InterviewSetDetailResponse{}, fmt.Errorf("%w: requested %d, available %d (common %d, job(%s) %d, foreigner %d)",
			ErrNotEnoughQuestions, count, len(selected), len(common), payload.JobType, len(job), len(foreigner))
	}

	title := cleanText(payload.Title)
	if title == "" {
		title = fmt.Sprintf("%s %s interview (%s)", strings.ToUpper(payload.JobType), strings.ToUpper(payload.Level), nowUTC().Format("2006-01-02"))
	}

	set := models.QuestionSet{
		UserID:    userID,
		Title:     title,
		JobType:   payload.JobType,
		Level:     payload.Level,
		Status:    models.SetStatusInProgress,
		Questions: make([]models.SetQuestion, 0, len(selected)),
	}
	for index, question := range selected {
		set.Questions = append(set.Questions, models.SetQuestion{
			QuestionID:  question.ID,
			Position:    index + 1,
			Text:        question.Text,
			Category:    question.Category,
			Level:       question.Level,
			ModelAnswer: question.ModelAnswer,
		})
	}

	if err := s.sets.Create(ctx, &set); err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}

	s.logger.Info().Str("set_id", set.ID).Str("user_id", userID).Int("questions", len(set.Questions)).Msg("interview set created")
	return s.detail(set, nil, nil), nil
}

func (s *interviewService) ListSets(ctx context.Context, userID string, page, pageSize int) ([]dto.InterviewSetResponse, dto.PaginationMeta, error) {
	page, pageSize = normalizePage(page, pageSize)
	sets, total, err := s.sets.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}
	return dto.NewInterviewSetResponses(sets), dto.NewPaginationMeta(page, pageSize, total), nil
}

func (s *interviewService) GetSet(ctx context.Context, userID, setID string) (dto.InterviewSetDetailResponse, error) {
	set, err := s.ownedSet(ctx, userID, setID)
	if err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}

	answers, err := s.notes.ListBySet(ctx, set.ID)
	if err != nil {
		return dto.InterviewSetDetailResponse{}, err
	}

	var summary *models.InterviewSummary
	latest, err := s.evaluations.LatestSummary(ctx, set.ID)
	switch {
	case err == nil:
		summary = &latest
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.InterviewSetDetailResponse{}, err
	}

	return s.detail(set, answers, summary), nil
}

func (s *interviewService) DeleteSet(ctx context.Context, userID, setID string) error {
	set, err := s.ownedSet(ctx, userID, setID)
	if err != nil {
		return err
	}
	if err := s.sets.Delete(ctx, set.ID); err != nil {
		return notFound(err, "interview set")
	}
	s.invalidateSummary(ctx, set.ID)
	s.logger.Info().Str("set_id", set.ID).Msg("interview set deleted")
	return nil
}

// SubmitAnswer stores the answer for a set position. A failed follow-up generation is
// reported in the response and does not undo the stored answer.
func (s *interviewService) SubmitAnswer(ctx context.Context, userID string, payload dto.SubmitAnswerRequest) (dto.SubmitAnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmitAnswerResponse{}, err
	}

	set, err := s.ownedSet(ctx, userID, payload.SetID)
	if err != nil {
		return dto.SubmitAnswerResponse{}, err
	}
	if set.IsCompleted() {
		return dto.SubmitAnswerResponse{}, ErrSetCompleted
	}

	question, ok := set.QuestionAt(payload.Position)
	if !ok {
		return dto.SubmitAnswerResponse{}, ErrInvalidPosition
	}

	exists, err := s.notes.ExistsAtPosition(ctx, set.ID, payload.Position)
	if err != nil {
		return dto.SubmitAnswerResponse{}, err
	}
	if exists {
		return dto.SubmitAnswerResponse{}, ErrAnswerExists
	}

	answer := cleanText(payload.Answer)
	if answer == "" {
		return dto.SubmitAnswerResponse{}, ErrEmptyText
	}

	position := payload.Position
	setID := set.ID
	note := models.AnswerNote{
		UserID:      userID,
		QuestionID:  question.QuestionID,
		SetID:       &setID,
		Position:    &position,
		Question:    question.Text,
		Category:    question.Category,
		Level:       question.Level,
		ModelAnswer: question.ModelAnswer,
		Answer:      answer,
	}
	if err := s.notes.Create(ctx, &note); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmitAnswerResponse{}, ErrAnswerExists
		}
		return dto.SubmitAnswerResponse{}, err
	}

	response := dto.SubmitAnswerResponse{AnswerID: note.ID}
	if payload.EnableFollowUp {
		followUp, err := generateFollowUp(ctx, s.evaluator, s.notes, note, payload.Model)
		if err != nil {
			s.logger.Warn().Err(err).Str("answer_note_id", note.ID).Msg("follow-up generation failed; answer kept")
			response.FollowUpError = followUpFailureMessage(err)
		} else {
			converted := dto.NewFollowUpResponse(followUp)
			response.FollowUp = &converted
		}
	}

	status, err := advanceSetStatus(ctx, s.sets, s.notes, set.ID)
	if err != nil {
		return dto.SubmitAnswerResponse{}, err
	}
	response.SetStatus = status
	return response, nil
}

func (s *interviewService) AnswerFollowUp(ctx context.Context, userID, answerID string, payload dto.FollowUpAnswerRequest) (dto.SubmitAnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmitAnswerResponse{}, err
	}

	note, err := s.notes.GetByID(ctx, answerID)
	if err != nil {
		return dto.SubmitAnswerResponse{}, notFound(err, "answer")
	}
	if note.UserID != userID {
		return dto.SubmitAnswerResponse{}, ErrForbidden
	}
	if note.SetID == nil {
		return dto.SubmitAnswerResponse{}, ErrNotFound
	}
	if len(note.Evaluations) > 0 {
		return dto.SubmitAnswerResponse{}, ErrNoteEvaluated
	}

	var pending *models.FollowUpQuestion
	for i := range note.FollowUps {
		if !note.FollowUps[i].IsAnswered() {
			pending = &note.FollowUps[i]
			break
		}
	}
	if pending == nil {
		return dto.SubmitAnswerResponse{}, ErrFollowUpAnswered
	}

	if _, err := answerFollowUp(ctx, s.notes, *pending, payload.Answer); err != nil {
		return dto.SubmitAnswerResponse{}, err
	}

	status, err := advanceSetStatus(ctx, s.sets, s.notes, *note.SetID)
	if err != nil {
		return dto.SubmitAnswerResponse{}, err
	}
	return dto.SubmitAnswerResponse{AnswerID: note.ID, SetStatus: status}, nil
}

// Complete evaluates any answers without an evaluation, then requests the comprehensive
// assessment and stores it as the set's current summary.
func (s *interviewService) Complete(ctx context.Context, userID, setID string) (dto.SummaryResponse, error) {
	set, err := s.ownedSet(ctx, userID, setID)
	if err != nil {
		return dto.SummaryResponse{}, err
	}
	switch set.Status {
	case models.SetStatusCompleted:
		return dto.SummaryResponse{}, ErrSetCompleted
	case models.SetStatusEvaluating:
		return dto.SummaryResponse{}, ErrSetEvaluating
	case models.SetStatusPendingEvaluation:
	default:
		return dto.SummaryResponse{}, ErrSetNotReady
	}
	if s.evaluator == nil {
		return dto.SummaryResponse{}, ErrEvaluatorUnavailable
	}

	claimed, err := s.sets.TransitionStatus(ctx, set.ID, models.SetStatusPendingEvaluation, models.SetStatusEvaluating, nil)
	if err != nil {
		return dto.SummaryResponse{}, err
	}
	if !claimed {
		return dto.SummaryResponse{}, ErrSetEvaluating
	}

	response, err := s.complete(ctx, userID, set)
	if err != nil {
		// The caller may have gone away; the set must still become retryable.
		releaseCtx := context.WithoutCancel(ctx)
		if _, releaseErr := s.sets.TransitionStatus(releaseCtx, set.ID, models.SetStatusEvaluating, models.SetStatusPendingEvaluation, nil); releaseErr != nil {
			s.logger.Error().Err(releaseErr).Str("set_id", set.ID).Msg("failed to release interview set after evaluation error")
		}
		return dto.SummaryResponse{}, err
	}
	return response, nil
}

func (s *interviewService) complete(ctx context.Context, userID string, set models.QuestionSet) (dto.SummaryResponse, error) {
	answers, err := s.notes.ListBySet(ctx, set.ID)
	if err != nil {
		return dto.SummaryResponse{}, err
	}
	if len(answers) == 0 {
		return dto.SummaryResponse{}, ErrNoAnswers
	}

	latest, err := s.evaluateMissing(ctx, answers)
	if err != nil {
		return dto.SummaryResponse{}, err
	}

	items := make([]ai.SummaryItem, 0, len(answers))
	for i, note := range answers {
		position := 0
		if note.Position != nil {
			position = *note.Position
		}
		items = append(items, ai.SummaryItem{
			Position:       position,
			QuestionID:     note.QuestionID,
			Question:       note.Question,
			Category:       note.Category,
			Score:          latest[i].Score,
			Feedback:       latest[i].Feedback,
			CategoryScores: models.DecodeScores(latest[i].CategoryScores),
		})
	}

	result, err := s.evaluator.EvaluateInterview(ctx, items)
	if err != nil {
		s.logger.Warn().Err(err).Str("set_id", set.ID).Msg("comprehensive evaluation failed")
		return dto.SummaryResponse{}, err
	}

	summary := models.InterviewSummary{
		SetID:            set.ID,
		UserID:           userID,
		OverallScore:     result.OverallScore,
		CategoryAverages: models.EncodeJSON(nonNilScores(result.CategoryAverages)),
		Recommendation:   result.Recommendation,
		FocusAreas:       models.EncodeJSON(nonNilStrings(result.FocusAreas)),
		AnswerCount:      result.AnswerCount,
		Model:            result.Model,
	}
	if err := s.evaluations.CreateSummary(ctx, &summary); err != nil {
		return dto.SummaryResponse{}, err
	}

	completedAt := nowUTC()
	if _, err := s.sets.TransitionStatus(ctx, set.ID, models.SetStatusEvaluating, models.SetStatusCompleted, &completedAt); err != nil {
		return dto.SummaryResponse{}, err
	}
	observability.SetsCompleted().Inc()

	response := dto.NewSummaryResponse(summary)
	s.storeSummary(ctx, response)
	s.events.Publish(ctx, EvaluationEvent{
		Type:       EventSummaryCompleted,
		UserID:     userID,
		SetID:      set.ID,
		ResourceID: summary.ID,
		Score:      summary.OverallScore,
		Model:      summary.Model,
	})

	s.logger.Info().Str("set_id", set.ID).Float64("overall_score", summary.OverallScore).Msg("interview set completed")
	return response, nil
}

func (s *interviewService) GetSummary(ctx context.Context, userID, setID string) (dto.SummaryResponse, error) {
	set, err := s.ownedSet(ctx, userID, setID)
	if err != nil {
		return dto.SummaryResponse{}, err
	}

	if cached, ok := s.cachedSummary(ctx, set.ID); ok {
		return cached, nil
	}

	summary, err := s.evaluations.LatestSummary(ctx, set.ID)
	if err != nil {
		return dto.SummaryResponse{}, notFound(err, "interview summary")
	}

	response := dto.NewSummaryResponse(summary)
	s.storeSummary(ctx, response)
	return response, nil
}

// evaluateMissing returns the latest evaluation for every answer. Answers without one are
// sent to the evaluator with bounded concurrency; the new rows are written together once
// every model call has succeeded.
func (s *interviewService) evaluateMissing(ctx context.Context, answers []models.AnswerNote) ([]models.Evaluation, error) {
	latest := make([]models.Evaluation, len(answers))
	fresh := make([]bool, len(answers))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.MaxConcurrency)

	for i := range answers {
		note := answers[i]
		if count := len(note.Evaluations); count > 0 {
			latest[i] = note.Evaluations[count-1]
			continue
		}

		index := i
		fresh[index] = true
		group.Go(func() error {
			evaluation, err := requestEvaluation(groupCtx, s.evaluator, note, "")
			if err != nil {
				return fmt.Errorf("evaluate answer %d: %w", index+1, err)
			}
			latest[index] = evaluation
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		s.logger.Warn().Err(err).Msg("answer evaluation failed during completion")
		return nil, err
	}

	records := make([]*models.Evaluation, 0, len(answers))
	for i := range latest {
		if fresh[i] {
			records = append(records, &latest[i])
		}
	}
	if err := s.evaluations.CreateBatch(ctx, records); err != nil {
		return nil, err
	}
	return latest, nil
}

func (s *interviewService) ownedSet(ctx context.Context, userID, setID string) (models.QuestionSet, error) {
	set, err := s.sets.GetByID(ctx, setID)
	if err != nil {
		return models.QuestionSet{}, notFound(err, "interview set")
	}
	if set.UserID != userID {
		return models.QuestionSet{}, ErrForbidden
	}
	return set, nil
}

func (s *interviewService) pick(candidates []models.Question, count int) []models.Question {
	shuffled := make([]models.Question, len(candidates))
	copy(shuffled, candidates)
	s.config.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}

func (s *interviewService) detail(set models.QuestionSet, answers []models.AnswerNote, summary *models.InterviewSummary) dto.InterviewSetDetailResponse {
	response := dto.InterviewSetDetailResponse{
		InterviewSetResponse: dto.NewInterviewSetResponse(set),
		Questions:            dto.NewSetQuestionResponses(set.Questions),
		Answers:              dto.NewAnswerNoteResponses(answers),
		NextPosition:         nextPosition(set, answers),
	}
	if summary != nil {
		converted := dto.NewSummaryResponse(*summary)
		response.Summary = &converted
	}
	return response
}

func summaryCacheKey(setID string) string {
	return fmt.Sprintf("interview:summary:%s", setID)
}

func (s *interviewService) cachedSummary(ctx context.Context, setID string) (dto.SummaryResponse, bool) {
	if s.cache == nil {
		return dto.SummaryResponse{}, false
	}

	cached, err := s.cache.Get(ctx, summaryCacheKey(setID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read summary cache")
		}
		observability.SummaryCache().WithLabelValues("miss").Inc()
		return dto.SummaryResponse{}, false
	}

	var response dto.SummaryResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		observability.SummaryCache().WithLabelValues("miss").Inc()
		return dto.SummaryResponse{}, false
	}
	observability.SummaryCache().WithLabelValues("hit").Inc()
	return response, true
}

func (s *interviewService) storeSummary(ctx context.Context, response dto.SummaryResponse) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summaryCacheKey(response.SetID), payload, s.config.SummaryCacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store summary cache")
	}
}

func (s *interviewService) invalidateSummary(ctx context.Context, setID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, summaryCacheKey(setID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate summary cache")
	}
}

func followUpFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrEvaluatorUnavailable):
		return "follow-up generation is not configured"
	case errors.Is(err, ai.ErrUpstreamTimeout):
		return "follow-up generation timed out"
	case errors.Is(err, ai.ErrUpstreamUnavailable):
		return "follow-up generation is temporarily unavailable"
	default:
		return "follow-up generation failed"
	}
}
