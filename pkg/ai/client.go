package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Response format options.
const (
	ResponseFormatJSONObject = "json_object"
	ResponseFormatJSONSchema = "json_schema"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

var (
	modelCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "model_call_duration_seconds",
		Help:      "Duration of model calls including retries",
	}, []string{"model", "operation"})

	modelAttemptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "model_attempt_failures_total",
		Help:      "Number of failed model call attempts by reason",
	}, []string{"model", "reason"})
)

// ChatTransport is the provider API the model client talks to. *openai.Client satisfies it.
type ChatTransport interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ClientConfig defines configuration options for the model client.
type ClientConfig struct {
	APIKey string
	// BaseURL points at any OpenAI compatible endpoint. Empty uses the OpenAI default.
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxTokens      int
	Temperature    float32
	ResponseFormat string
	Retry          RetryPolicy
	// BreakerFailures opens the circuit after that many consecutive failed calls. Zero disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Logger          zerolog.Logger
}

// ModelClient calls the external model with per-attempt timeouts, retries and a circuit breaker.
type ModelClient struct {
	transport ChatTransport
	cfg       ClientConfig
	breaker   *gobreaker.CircuitBreaker
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewModelClient builds a client backed by the go-openai SDK.
func NewModelClient(cfg ClientConfig) (*ModelClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return NewModelClientWithTransport(openai.NewClientWithConfig(config), cfg), nil
}

// NewModelClientWithTransport builds a client on top of an arbitrary transport.
func NewModelClientWithTransport(transport ChatTransport, cfg ClientConfig) *ModelClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = ResponseFormatJSONObject
	}
	cfg.Retry = cfg.Retry.normalized()

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	client := &ModelClient{
		transport: transport,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/noah-isme/gema-interview-api/pkg/ai/client"),
		logger:    logger.With().Str("component", "ai_model_client").Logger(),
	}

	if cfg.BreakerFailures > 0 {
		threshold := cfg.BreakerFailures
		client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ai-model",
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !IsTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				client.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("model circuit breaker state changed")
			},
		})
	}

	return client
}

// DefaultModel returns the model used when a request does not name one.
func (c *ModelClient) DefaultModel() string {
	return c.cfg.Model
}

// Complete sends req to the model and returns the raw reply text.
func (c *ModelClient) Complete(parent context.Context, req Request) (RawResponse, error) {
	if err := parent.Err(); err != nil {
		return RawResponse{}, interrupted(req.Operation, 0, err)
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	ctx, span := c.tracer.Start(parent, "ai.model.complete", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", string(req.Operation)),
	))
	defer span.End()

	chatRequest := c.chatRequest(model, req)
	start := time.Now()

	var (
		attempts int
		content  string
		used     string
	)
	call := func() (interface{}, error) {
		n, err := c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			resp, err := c.attempt(ctx, chatRequest)
			if err != nil {
				reason, transient := classify(err)
				modelAttemptFailures.WithLabelValues(model, reason).Inc()
				c.logger.Warn().Err(err).Str("model", model).Str("reason", reason).Bool("transient", transient).Msg("model call attempt failed")
				return err
			}
			used = resp.Model
			if len(resp.Choices) > 0 {
				content = strings.TrimSpace(resp.Choices[0].Message.Content)
			}
			return nil
		})
		attempts = n
		return nil, err
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(call)
	} else {
		_, err = call()
	}

	elapsed := time.Since(start)
	modelCallDuration.WithLabelValues(model, string(req.Operation)).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int("attempts", attempts))

	if used == "" {
		used = model
	}
	raw := RawResponse{Content: content, Model: used, Elapsed: elapsed, Attempts: attempts}
	if err != nil {
		failure := c.failure(parent, req.Operation, attempts, err)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		return raw, failure
	}

	return raw, nil
}

func (c *ModelClient) attempt(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.transport.CreateChatCompletion(attemptCtx, request)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return resp, &attemptTimeoutError{timeout: c.cfg.Timeout, err: err}
		}
		return resp, err
	}
	return resp, nil
}

func (c *ModelClient) failure(ctx context.Context, op Operation, attempts int, err error) *Error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Kind: KindUpstreamUnavailable, Operation: op, Reason: ReasonCircuitOpen, Attempts: attempts, Err: err}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		failure := interrupted(op, attempts, ctxErr)
		failure.Err = err
		return failure
	}

	reason, _ := classify(err)
	kind := KindUpstreamUnavailable
	if reason == ReasonTimeout {
		kind = KindUpstreamTimeout
	}
	return &Error{Kind: kind, Operation: op, Reason: reason, Attempts: attempts, Err: err}
}

func (c *ModelClient) chatRequest(model string, req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, message := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: message.Role, Content: message.Content})
	}

	request := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages:    messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	if c.cfg.ResponseFormat == ResponseFormatJSONSchema && req.Schema != "" {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   string(req.Operation),
				Schema: json.RawMessage(req.Schema),
			},
		}
	}

	return request
}

type attemptTimeoutError struct {
	timeout time.Duration
	err     error
}

func (e *attemptTimeoutError) Error() string {
	return fmt.Sprintf("attempt exceeded %s: %v", e.timeout, e.err)
}

func (e *attemptTimeoutError) Unwrap() error {
	return e.err
}

// IsTransient reports whether a failed model call is worth retrying.
func IsTransient(err error) bool {
	_, transient := classify(err)
	return transient
}

func classify(err error) (string, bool) {
	var timeoutErr *attemptTimeoutError
	if errors.As(err, &timeoutErr) {
		return ReasonTimeout, true
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout, true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var requestErr *openai.RequestError
	if errors.As(err, &requestErr) {
		return classifyStatus(requestErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout, true
		}
		return ReasonNetwork, true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ReasonNetwork, true
	}

	return ReasonRejected, false
}

func classifyStatus(status int) (string, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimited, true
	case status == http.StatusRequestTimeout:
		return ReasonTimeout, true
	case status >= http.StatusInternalServerError:
		return ReasonServerError, true
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ReasonUnauthorized, false
	default:
		return ReasonRejected, false
	}
}
