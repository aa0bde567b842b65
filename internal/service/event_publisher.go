package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-interview-api/internal/observability"
)

// Event types emitted after evaluations are stored.
const (
	EventEvaluationCompleted = "evaluation.completed"
	EventSummaryCompleted    = "summary.completed"
)

// EvaluationEvent announces a stored evaluation or interview summary.
type EvaluationEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Source       string    `json:"source"`
	UserID       string    `json:"user_id"`
	SetID        string    `json:"set_id,omitempty"`
	AnswerNoteID string    `json:"answer_note_id,omitempty"`
	ResourceID   string    `json:"resource_id"`
	Score        float64   `json:"score"`
	Model        string    `json:"model,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher fans evaluation events out to the configured brokers.
// Publishing is best effort and never fails the calling operation.
type EventPublisher interface {
	Publish(ctx context.Context, event EvaluationEvent)
}

type eventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewEventPublisher constructs a publisher. Either client may be nil.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	subject = strings.TrimSpace(subject)
	return &eventPublisher{
		redis:        redisClient,
		redisChannel: strings.ReplaceAll(subject, ".", ":"),
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "event_publisher").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-interview-api/internal/service/events"),
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event EvaluationEvent) {
	if p.natsSubject == "" || (p.redis == nil && p.nats == nil) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = nowUTC()
	}
	event.Source = p.nodeID

	spanCtx, span := p.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.String("event.resource_id", event.ResourceID),
	))
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode event")
		return
	}

	if p.redis != nil {
		result := "ok"
		if err := p.redis.Publish(spanCtx, p.redisChannel, payload).Err(); err != nil {
			result = "error"
			span.RecordError(err)
			p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event to redis")
		}
		observability.EventsPublished().WithLabelValues(event.Type, "redis", result).Inc()
	}

	if p.nats != nil {
		result := "ok"
		if err := p.nats.Publish(p.natsSubject+"."+event.Type, payload); err != nil {
			result = "error"
			span.RecordError(err)
			p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event to nats")
		}
		observability.EventsPublished().WithLabelValues(event.Type, "nats", result).Inc()
	}
}
