package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-interview-api/internal/config"
	"github.com/noah-isme/gema-interview-api/internal/database"
	"github.com/noah-isme/gema-interview-api/internal/handler"
	"github.com/noah-isme/gema-interview-api/internal/middleware"
	"github.com/noah-isme/gema-interview-api/internal/repository"
	"github.com/noah-isme/gema-interview-api/internal/router"
	"github.com/noah-isme/gema-interview-api/internal/service"
	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; summary cache and redis events disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	evaluator, err := buildEvaluator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure evaluator: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	setRepo := repository.NewInterviewSetRepository(db)
	noteRepo := repository.NewAnswerNoteRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)

	events := service.NewEventPublisher(redisClient, natsConn, cfg.EventSubject, logger)
	questionService := service.NewQuestionService(questionRepo, validate, logger)
	answerNoteService := service.NewAnswerNoteService(noteRepo, questionRepo, evaluationRepo, setRepo, evaluator, events, validate, logger)
	interviewService := service.NewInterviewService(questionRepo, setRepo, noteRepo, evaluationRepo, evaluator, events, redisClient, validate, logger, service.InterviewConfig{
		MaxConcurrency:  cfg.AIMaxConcurrency,
		SummaryCacheTTL: cfg.SummaryCacheTTL,
	})
	seedService := service.NewSeedService(questionRepo, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	if cfg.SeedQuestions {
		seeded, err := seedService.SeedDefaults(context.Background())
		if err != nil {
			log.Fatalf("failed to seed default questions: %v", err)
		}
		logger.Info().Int64("seeded", seeded).Msg("default question bank checked")
	}

	evaluationLimit := middleware.RateLimit("evaluation", cfg.RateLimitMax, cfg.RateLimitWindow)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout*time.Duration(cfg.AIMaxRetries+1) + 30*time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		QuestionHandler:   handler.NewQuestionHandler(questionService, logger),
		InterviewHandler:  handler.NewInterviewHandler(interviewService, evaluationLimit, logger),
		AnswerNoteHandler: handler.NewAnswerNoteHandler(answerNoteService, evaluationLimit, logger),
		SeedHandler:       handler.NewSeedHandler(seedService, logger),
		JWTMiddleware:     middleware.BearerAuth(cfg.JWTSecret),
		EvaluatorReady:    evaluator != nil,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildEvaluator wires the model client into the orchestrator. A missing API key leaves
// the service running with evaluation endpoints answering 503.
func buildEvaluator(cfg config.Config, logger zerolog.Logger) (ai.Evaluator, error) {
	client, err := ai.NewModelClient(cfg.AIClientConfig(logger))
	if err != nil {
		if errors.Is(err, ai.ErrMissingAPIKey) {
			logger.Warn().Msg("no model api key configured; evaluation endpoints disabled")
			return nil, nil
		}
		return nil, err
	}

	scale := cfg.AIScale()
	parser, err := ai.NewResponseParser(scale)
	if err != nil {
		return nil, err
	}
	builder := ai.NewPromptBuilder(ai.PromptConfig{MaxAnswerChars: cfg.AIMaxAnswerChars, Scale: scale})

	logger.Info().Str("model", client.DefaultModel()).Msg("evaluation model configured")
	return ai.NewOrchestrator(builder, client, parser, logger), nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
