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
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService loads questions into the bank.
type SeedService interface {
	SeedQuestions(ctx context.Context, token string, items []dto.QuestionRequest) (int64, error)
	SeedDefaults(ctx context.Context) (int64, error)
}

type seedService struct {
	questions repository.QuestionRepository
	validator *validator.Validate
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(questions repository.QuestionRepository, validate *validator.Validate, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		questions: questions,
		validator: validate,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedQuestions(ctx context.Context, token string, items []dto.QuestionRequest) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	questions := make([]models.Question, 0, len(items))
	for _, item := range items {
		item.Category = strings.ToLower(strings.TrimSpace(item.Category))
		item.JobType = strings.ToLower(strings.TrimSpace(item.JobType))
		item.Level = strings.ToLower(strings.TrimSpace(item.Level))
		if err := s.validator.Struct(item); err != nil {
			return 0, err
		}
		questions = append(questions, models.Question{
			Text:        cleanText(item.Question),
			Category:    item.Category,
			JobType:     item.JobType,
			Level:       item.Level,
			ModelAnswer: cleanText(item.ModelAnswer),
			Reasoning:   cleanText(item.Reasoning),
		})
	}

	if err := s.questions.CreateBatch(ctx, questions); err != nil {
		return 0, err
	}
	s.logger.Info().Int("affected", len(questions)).Msg("questions seeded")
	return int64(len(questions)), nil
}

// SeedDefaults fills an empty bank with the built-in question set.
func (s *seedService) SeedDefaults(ctx context.Context) (int64, error) {
	total, err := s.questions.Count(ctx)
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return 0, nil
	}

	questions := defaultQuestions()
	if err := s.questions.CreateBatch(ctx, questions); err != nil {
		return 0, err
	}
	s.logger.Info().Int("affected", len(questions)).Msg("default questions seeded")
	return int64(len(questions)), nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtleConstantTimeCompare(expected, strings.TrimSpace(token))
}

func subtleConstantTimeCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	mismatch := byte(0)
	for i := 0; i < len(a); i++ {
		mismatch |= a[i] ^ b[i]
	}
	return mismatch == 0
}

func defaultQuestions() []models.Question {
	return []models.Question{
		{Category: models.QuestionCategoryCommon, Level: models.LevelEntry,
			Text:        "Please introduce yourself briefly.",
			ModelAnswer: "Name, background, two concrete strengths with evidence and why they fit this role.",
			Reasoning:   "Checks structure and whether the candidate can summarise themselves in about a minute."},
		{Category: models.QuestionCategoryCommon, Level: models.LevelEntry,
			Text:        "Why do you want to join our company?",
			ModelAnswer: "Connects specific facts about the company's product or values to personal goals and skills.",
			Reasoning:   "Tests research and motivation rather than generic praise."},
		{Category: models.QuestionCategoryCommon,
			Text:        "Tell me about a conflict in a team and how you resolved it.",
			ModelAnswer: "Situation, task, action, result. Focus on own actions and what changed afterwards.",
			Reasoning:   "Assesses collaboration and the ability to reflect."},
		{Category: models.QuestionCategoryCommon,
			Text:        "What is your biggest weakness?",
			ModelAnswer: "A real weakness, its impact, and concrete steps already taken to improve it.",
			Reasoning:   "Checks self awareness and honesty."},
		{Category: models.QuestionCategoryCommon,
			Text:        "Where do you see yourself in five years?",
			ModelAnswer: "A realistic growth path that is consistent with the role and the company.",
			Reasoning:   "Checks long term fit and retention risk."},
		{Category: models.QuestionCategoryJob, JobType: models.JobTypeIT, Level: models.LevelEntry,
			Text:        "Explain the difference between a process and a thread.",
			ModelAnswer: "Processes have separate address spaces; threads share memory within a process and are cheaper to switch.",
			Reasoning:   "Basic systems knowledge."},
		{Category: models.QuestionCategoryJob, JobType: models.JobTypeIT,
			Text:        "Describe a project where you fixed a difficult bug.",
			ModelAnswer: "How the bug was reproduced, isolated and fixed, and how a regression was prevented.",
			Reasoning:   "Evaluates debugging method and ownership."},
		{Category: models.QuestionCategoryJob, JobType: models.JobTypeIT,
			Text:        "How would you design a URL shortener?",
			ModelAnswer: "Key generation, storage, redirects, caching, and how it scales with read heavy traffic.",
			Reasoning:   "Checks system design reasoning and trade offs."},
		{Category: models.QuestionCategoryJob, JobType: models.JobTypeMarketing, Level: models.LevelEntry,
			Text:        "How would you measure the success of a campaign?",
			ModelAnswer: "Define the goal first, then pick KPIs such as conversion rate, CAC and retention, and compare to a baseline.",
			Reasoning:   "Checks data driven thinking."},
		{Category: models.QuestionCategoryJob, JobType: models.JobTypeMarketing,
			Text:        "Pick a brand you like and explain its positioning.",
			ModelAnswer: "Target customer, key benefit, differentiation from competitors and the evidence for it.",
			Reasoning:   "Evaluates strategic understanding."},
		{Category: models.QuestionCategoryJob, JobType: models.JobTypeMarketing,
			Text:        "How would you launch a product in a new market with a small budget?",
			ModelAnswer: "Narrow segment, low cost channels, quick experiments, and reinvesting in what works.",
			Reasoning:   "Tests prioritisation under constraints."},
		{Category: models.QuestionCategoryForeigner,
			Text:        "How have you adapted to working in a different culture?",
			ModelAnswer: "Concrete examples of learning norms, communication style and how it improved collaboration.",
			Reasoning:   "Checks cultural adaptability."},
		{Category: models.QuestionCategoryForeigner,
			Text:        "How do you handle misunderstandings caused by language differences?",
			ModelAnswer: "Confirming understanding, summarising in writing and asking clarifying questions early.",
			Reasoning:   "Assesses communication strategies."},
		{Category: models.QuestionCategoryForeigner,
			Text:        "What are your plans for staying and working in this country long term?",
			ModelAnswer: "Clear visa situation, personal ties or goals, and a realistic plan that shows commitment.",
			Reasoning:   "Checks retention and legal readiness."},
	}
}
