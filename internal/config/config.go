package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-interview-api/pkg/ai"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	AllowOrigins      string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	EventSubject      string
	JWTSecret         string
	SummaryCacheTTL   time.Duration
	SeedQuestions     bool
	SeedEnabled       bool
	SeedToken         string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	AIBaseURL         string
	AIAPIKey          string
	AIModel           string
	AITimeout         time.Duration
	AIMaxRetries      int
	AIBackoffBase     time.Duration
	AIBackoffMax      time.Duration
	AIMaxAnswerChars  int
	AITemperature     float32
	AIMaxTokens       int
	AIResponseFormat  string
	AIBreakerFailures int
	AIMaxConcurrency  int
	ScoreMin          float64
	ScoreMax          float64
	ScoreTolerance    float64
	Categories        []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AIScale returns the score range and category taxonomy used to validate model output.
func (c Config) AIScale() ai.Scale {
	categories := make([]string, len(c.Categories))
	copy(categories, c.Categories)
	return ai.Scale{
		Min:        c.ScoreMin,
		Max:        c.ScoreMax,
		Tolerance:  c.ScoreTolerance,
		Categories: categories,
	}
}

// AIClientConfig derives the model client configuration.
func (c Config) AIClientConfig(logger zerolog.Logger) ai.ClientConfig {
	policy := ai.DefaultRetryPolicy()
	policy.MaxRetries = c.AIMaxRetries
	policy.BaseDelay = c.AIBackoffBase
	policy.MaxDelay = c.AIBackoffMax

	return ai.ClientConfig{
		APIKey:          c.AIAPIKey,
		BaseURL:         c.AIBaseURL,
		Model:           c.AIModel,
		Timeout:         c.AITimeout,
		MaxTokens:       c.AIMaxTokens,
		Temperature:     c.AITemperature,
		ResponseFormat:  c.AIResponseFormat,
		Retry:           policy,
		BreakerFailures: uint32(c.AIBreakerFailures),
		BreakerCooldown: 30 * time.Second,
		Logger:          logger,
	}
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("openai_api_key", "GEMA_OPENAI_API_KEY", "OPENAI_API_KEY")

	v.SetDefault("app.name", "GEMA Interview API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("database.url", "file:interview.db?cache=shared")
	v.SetDefault("events.subject", "interview.evaluations")
	v.SetDefault("summary.cache_ttl", "10m")
	v.SetDefault("seed_questions", false)
	v.SetDefault("seed.enabled", false)
	v.SetDefault("rate_limit.max", 20)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout_ms", 30000)
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.backoff_base_ms", 500)
	v.SetDefault("ai.backoff_max_ms", 8000)
	v.SetDefault("ai.max_answer_chars", 4000)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.response_format", ai.ResponseFormatJSONObject)
	v.SetDefault("ai.breaker_failures", 5)
	v.SetDefault("ai.max_concurrency", 4)
	v.SetDefault("ai.score_min", 0)
	v.SetDefault("ai.score_max", 100)
	v.SetDefault("ai.score_tolerance", 1)
	v.SetDefault("ai.categories", "logic,evidence,job_understanding,formality,completeness")

	cacheTTL, err := parseDuration(v.GetString("summary.cache_ttl"), 10*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}
	window, err := parseDuration(v.GetString("rate_limit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		AllowOrigins:      v.GetString("cors.allow_origins"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		EventSubject:      v.GetString("events.subject"),
		JWTSecret:         v.GetString("jwt.secret"),
		SummaryCacheTTL:   cacheTTL,
		SeedQuestions:     v.GetBool("seed_questions"),
		SeedEnabled:       v.GetBool("seed.enabled"),
		SeedToken:         v.GetString("seed.token"),
		RateLimitMax:      v.GetInt("rate_limit.max"),
		RateLimitWindow:   window,
		AIBaseURL:         v.GetString("ai.base_url"),
		AIAPIKey:          firstNonEmpty(v.GetString("ai.api_key"), v.GetString("openai_api_key")),
		AIModel:           v.GetString("ai.model"),
		AITimeout:         time.Duration(v.GetInt("ai.timeout_ms")) * time.Millisecond,
		AIMaxRetries:      v.GetInt("ai.max_retries"),
		AIBackoffBase:     time.Duration(v.GetInt("ai.backoff_base_ms")) * time.Millisecond,
		AIBackoffMax:      time.Duration(v.GetInt("ai.backoff_max_ms")) * time.Millisecond,
		AIMaxAnswerChars:  v.GetInt("ai.max_answer_chars"),
		AITemperature:     float32(v.GetFloat64("ai.temperature")),
		AIMaxTokens:       v.GetInt("ai.max_tokens"),
		AIResponseFormat:  strings.ToLower(v.GetString("ai.response_format")),
		AIBreakerFailures: v.GetInt("ai.breaker_failures"),
		AIMaxConcurrency:  v.GetInt("ai.max_concurrency"),
		ScoreMin:          v.GetFloat64("ai.score_min"),
		ScoreMax:          v.GetFloat64("ai.score_max"),
		ScoreTolerance:    v.GetFloat64("ai.score_tolerance"),
		Categories:        splitList(v.GetString("ai.categories")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.ScoreMax <= c.ScoreMin {
		return fmt.Errorf("score max must be greater than score min")
	}
	if c.AITimeout <= 0 {
		c.AITimeout = 30 * time.Second
	}
	if c.AIMaxRetries < 0 {
		c.AIMaxRetries = 0
	}
	if c.AIBackoffBase <= 0 {
		c.AIBackoffBase = 500 * time.Millisecond
	}
	if c.AIBackoffMax < c.AIBackoffBase {
		c.AIBackoffMax = c.AIBackoffBase
	}
	if c.AIMaxConcurrency <= 0 {
		c.AIMaxConcurrency = 1
	}
	switch c.AIResponseFormat {
	case ai.ResponseFormatJSONObject, ai.ResponseFormatJSONSchema:
	default:
		return fmt.Errorf("unsupported ai response format %q", c.AIResponseFormat)
	}
	return nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
