package ai

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage is a step of the orchestration state machine.
type Stage string

const (
	StageBuilding  Stage = "building"
	StageCalling   Stage = "calling"
	StageParsing   Stage = "parsing"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

var (
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "pipeline_runs_total",
		Help:      "Number of orchestrated evaluation runs by outcome",
	}, []string{"operation", "outcome"})

	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of orchestrated evaluation runs",
	}, []string{"operation"})
)

// Orchestrator drives prompt building, model calls and parsing for every evaluation operation.
type Orchestrator struct {
	builder *PromptBuilder
	client  Completer
	parser  *ResponseParser
	tracer  trace.Tracer
	logger  zerolog.Logger
}

var _ Evaluator = (*Orchestrator)(nil)

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(builder *PromptBuilder, client Completer, parser *ResponseParser, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		builder: builder,
		client:  client,
		parser:  parser,
		tracer:  otel.Tracer("github.com/noah-isme/gema-interview-api/pkg/ai/orchestrator"),
		logger:  logger.With().Str("component", "ai_orchestrator").Logger(),
	}
}

// EvaluateAnswer scores a single answer.
func (o *Orchestrator) EvaluateAnswer(ctx context.Context, input AnswerInput) (Evaluation, error) {
	var result Evaluation
	err := o.run(ctx, PromptContext{Operation: OperationEvaluate, AnswerInput: input}, func(raw RawResponse) error {
		evaluation, err := o.parser.ParseEvaluation(raw.Content)
		if err != nil {
			return err
		}
		evaluation.Model = raw.Model
		result = evaluation
		return nil
	})
	return result, err
}

// GenerateFollowUp produces a probing question for an answer.
func (o *Orchestrator) GenerateFollowUp(ctx context.Context, input AnswerInput) (FollowUp, error) {
	var result FollowUp
	err := o.run(ctx, PromptContext{Operation: OperationFollowUp, AnswerInput: input}, func(raw RawResponse) error {
		followUp, err := o.parser.ParseFollowUp(raw.Content)
		if err != nil {
			return err
		}
		followUp.Model = raw.Model
		result = followUp
		return nil
	})
	return result, err
}

// EvaluateInterview aggregates evaluated answers and asks the model for the narrative verdict.
// Scores are computed locally; the model only receives per-answer summaries.
func (o *Orchestrator) EvaluateInterview(ctx context.Context, items []SummaryItem) (Summary, error) {
	aggregate := AggregateItems(items)

	var result Summary
	pc := PromptContext{Operation: OperationComprehensive, Items: items, Aggregates: aggregate}
	err := o.run(ctx, pc, func(raw RawResponse) error {
		narrative, err := o.parser.ParseSummary(raw.Content)
		if err != nil {
			return err
		}
		narrative.Aggregate = aggregate
		narrative.Model = raw.Model
		result = narrative
		return nil
	})
	return result, err
}

func (o *Orchestrator) run(parent context.Context, pc PromptContext, parse func(RawResponse) error) error {
	ctx, span := o.tracer.Start(parent, "ai.orchestrate", trace.WithAttributes(
		attribute.String("operation", string(pc.Operation)),
	))
	defer span.End()

	start := time.Now()
	logger := o.logger.With().Str("operation", string(pc.Operation)).Logger()

	stage := StageBuilding
	enter := func(next Stage) {
		stage = next
		span.AddEvent(string(next))
		logger.Debug().Str("stage", string(next)).Msg("evaluation stage")
	}
	fail := func(err error) error {
		failedAt := stage
		enter(StageFailed)
		pipelineRuns.WithLabelValues(string(pc.Operation), outcomeLabel(err)).Inc()
		pipelineDuration.WithLabelValues(string(pc.Operation)).Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("failed_stage", string(failedAt)).Msg("evaluation failed")
		return err
	}

	enter(StageBuilding)
	if err := ctx.Err(); err != nil {
		return fail(interrupted(pc.Operation, 0, err))
	}
	request, err := o.builder.Build(pc)
	if err != nil {
		return fail(err)
	}

	enter(StageCalling)
	if err := ctx.Err(); err != nil {
		return fail(interrupted(pc.Operation, 0, err))
	}
	raw, err := o.client.Complete(ctx, request)
	if err != nil {
		return fail(asUpstream(pc.Operation, err))
	}

	enter(StageParsing)
	if err := ctx.Err(); err != nil {
		return fail(interrupted(pc.Operation, raw.Attempts, err))
	}
	if err := parse(raw); err != nil {
		return fail(err)
	}

	enter(StageCompleted)
	pipelineRuns.WithLabelValues(string(pc.Operation), "completed").Inc()
	pipelineDuration.WithLabelValues(string(pc.Operation)).Observe(time.Since(start).Seconds())
	logger.Info().
		Str("model", raw.Model).
		Int("attempts", raw.Attempts).
		Dur("elapsed", raw.Elapsed).
		Msg("evaluation completed")
	return nil
}

// asUpstream keeps typed client failures and folds foreign ones into the closed error set.
func asUpstream(op Operation, err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	kind := KindUpstreamUnavailable
	reason := ReasonNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindUpstreamTimeout
		reason = ReasonTimeout
	}
	return &Error{Kind: kind, Operation: op, Reason: reason, Err: err}
}

func outcomeLabel(err error) string {
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
