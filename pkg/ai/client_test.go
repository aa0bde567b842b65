package ai

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	mu       sync.Mutex
	calls    int
	requests []openai.ChatCompletionRequest
	reply    func(ctx context.Context, call int) (openai.ChatCompletionResponse, error)
}

func (s *stubTransport) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.requests = append(s.requests, request)
	s.mu.Unlock()
	return s.reply(ctx, call)
}

func (s *stubTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func statusError(code int) error {
	return &openai.APIError{HTTPStatusCode: code, Message: http.StatusText(code)}
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Model: "gpt-test",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Jitter: NoJitter}
}

func testRequest() Request {
	return Request{
		Operation: OperationEvaluate,
		Schema:    evaluationSchema,
		Messages:  []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "usr"}},
	}
}

func TestModelClientRetriesTransientFailuresUntilExhausted(t *testing.T) {
	transport := &stubTransport{reply: func(context.Context, int) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, statusError(http.StatusServiceUnavailable)
	}}
	client := NewModelClientWithTransport(transport, ClientConfig{Model: "gpt-test", Retry: fastPolicy(3), Logger: zerolog.Nop()})

	raw, err := client.Complete(context.Background(), testRequest())
	require.True(t, errors.Is(err, ErrUpstreamUnavailable))
	require.Equal(t, 4, transport.callCount())
	require.Equal(t, 4, raw.Attempts)

	failure, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ReasonServerError, failure.Reason)
	require.Equal(t, 4, failure.Attempts)
}

func TestModelClientRecoversFromRateLimit(t *testing.T) {
	transport := &stubTransport{reply: func(_ context.Context, call int) (openai.ChatCompletionResponse, error) {
		if call < 3 {
			return openai.ChatCompletionResponse{}, statusError(http.StatusTooManyRequests)
		}
		return reply(`{"ok": true}`), nil
	}}
	client := NewModelClientWithTransport(transport, ClientConfig{Retry: fastPolicy(2)})

	raw, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, `{"ok": true}`, raw.Content)
	require.Equal(t, "gpt-test", raw.Model)
	require.Equal(t, 3, raw.Attempts)
}

func TestModelClientDoesNotRetryClientErrors(t *testing.T) {
	cases := map[int]string{
		http.StatusBadRequest:   ReasonRejected,
		http.StatusUnauthorized: ReasonUnauthorized,
		http.StatusForbidden:    ReasonUnauthorized,
	}

	for status, reason := range cases {
		transport := &stubTransport{reply: func(context.Context, int) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, statusError(status)
		}}
		client := NewModelClientWithTransport(transport, ClientConfig{Retry: fastPolicy(5)})

		_, err := client.Complete(context.Background(), testRequest())
		require.True(t, errors.Is(err, ErrUpstreamUnavailable))
		require.Equal(t, 1, transport.callCount())
		failure, _ := AsError(err)
		require.Equal(t, reason, failure.Reason)
	}
}

func TestModelClientReportsTimeoutOfFinalAttempt(t *testing.T) {
	transport := &stubTransport{reply: func(ctx context.Context, _ int) (openai.ChatCompletionResponse, error) {
		<-ctx.Done()
		return openai.ChatCompletionResponse{}, ctx.Err()
	}}
	client := NewModelClientWithTransport(transport, ClientConfig{Timeout: 10 * time.Millisecond, Retry: fastPolicy(1)})

	_, err := client.Complete(context.Background(), testRequest())
	require.True(t, errors.Is(err, ErrUpstreamTimeout))
	require.Equal(t, 2, transport.callCount())
}

func TestModelClientStopsBackoffWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &stubTransport{reply: func(context.Context, int) (openai.ChatCompletionResponse, error) {
		cancel()
		return openai.ChatCompletionResponse{}, statusError(http.StatusBadGateway)
	}}
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Jitter: NoJitter}
	client := NewModelClientWithTransport(transport, ClientConfig{Retry: policy})

	done := make(chan error, 1)
	go func() {
		_, err := client.Complete(ctx, testRequest())
		done <- err
	}()

	select {
	case err := <-done:
		require.True(t, errors.Is(err, ErrUpstreamUnavailable))
		failure, _ := AsError(err)
		require.Equal(t, ReasonCanceled, failure.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not interrupt backoff")
	}
	require.Equal(t, 1, transport.callCount())
}

func TestModelClientCircuitBreakerFailsFast(t *testing.T) {
	transport := &stubTransport{reply: func(context.Context, int) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{}, statusError(http.StatusInternalServerError)
	}}
	client := NewModelClientWithTransport(transport, ClientConfig{Retry: fastPolicy(0), BreakerFailures: 2, BreakerCooldown: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), testRequest())
		require.True(t, errors.Is(err, ErrUpstreamUnavailable))
	}

	_, err := client.Complete(context.Background(), testRequest())
	require.True(t, errors.Is(err, ErrUpstreamUnavailable))
	failure, _ := AsError(err)
	require.Equal(t, ReasonCircuitOpen, failure.Reason)
	require.Equal(t, 2, transport.callCount())
}

func TestModelClientBuildsProviderRequest(t *testing.T) {
	transport := &stubTransport{reply: func(context.Context, int) (openai.ChatCompletionResponse, error) {
		return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: " {} "}}}}, nil
	}}
	client := NewModelClientWithTransport(transport, ClientConfig{Model: "default-model", ResponseFormat: ResponseFormatJSONSchema, Retry: fastPolicy(0)})

	raw, err := client.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "{}", raw.Content)
	require.Equal(t, "default-model", raw.Model)

	override := testRequest()
	override.Model = "other-model"
	_, err = client.Complete(context.Background(), override)
	require.NoError(t, err)

	require.Len(t, transport.requests, 2)
	first := transport.requests[0]
	require.Equal(t, "default-model", first.Model)
	require.Len(t, first.Messages, 2)
	require.Equal(t, "system", first.Messages[0].Role)
	require.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, first.ResponseFormat.Type)
	require.Equal(t, string(OperationEvaluate), first.ResponseFormat.JSONSchema.Name)
	require.Equal(t, "other-model", transport.requests[1].Model)
}

func TestNewModelClientRequiresAPIKey(t *testing.T) {
	_, err := NewModelClient(ClientConfig{})
	require.ErrorIs(t, err, ErrMissingAPIKey)

	client, err := NewModelClient(ClientConfig{APIKey: "sk-test", BaseURL: "https://openrouter.ai/api/v1/"})
	require.NoError(t, err)
	require.Equal(t, defaultModel, client.DefaultModel())
}

func TestRetryPolicyBackoffGrowsAndCaps(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: NoJitter}

	require.Equal(t, 100*time.Millisecond, policy.Backoff(1))
	require.Equal(t, 200*time.Millisecond, policy.Backoff(2))
	require.Equal(t, 400*time.Millisecond, policy.Backoff(3))
	require.Equal(t, time.Second, policy.Backoff(6))

	jittered := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: FullJitter}
	for i := 0; i < 20; i++ {
		delay := jittered.Backoff(2)
		require.GreaterOrEqual(t, delay, 200*time.Millisecond)
		require.Less(t, delay, 400*time.Millisecond)
	}
}

func TestRetryPolicyUsesInjectedClassifier(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 4, BaseDelay: time.Millisecond, Jitter: NoJitter, Transient: func(err error) bool {
		return err.Error() == "again"
	}}

	calls := 0
	attempts, err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("again")
		}
		return errors.New("stop")
	})
	require.EqualError(t, err, "stop")
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyStartsNoAttemptAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, err := fastPolicy(3).Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, attempts)
	require.Zero(t, calls)
}

func TestModelClientSkipsTransportWhenContextDone(t *testing.T) {
	transport := &stubTransport{reply: func(context.Context, int) (openai.ChatCompletionResponse, error) {
		return reply(`{"ok": true}`), nil
	}}
	client := NewModelClientWithTransport(transport, ClientConfig{Retry: fastPolicy(2)})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Complete(canceled, testRequest())
	require.True(t, errors.Is(err, ErrUpstreamUnavailable))
	failure, _ := AsError(err)
	require.Equal(t, ReasonCanceled, failure.Reason)
	require.Zero(t, failure.Attempts)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	_, err = client.Complete(expired, testRequest())
	require.True(t, errors.Is(err, ErrUpstreamTimeout))

	require.Zero(t, transport.callCount())
}
