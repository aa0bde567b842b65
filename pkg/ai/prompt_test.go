package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBuilder(maxChars int) *PromptBuilder {
	return NewPromptBuilder(PromptConfig{MaxAnswerChars: maxChars, Scale: DefaultScale()})
}

func TestPromptBuilderIsDeterministic(t *testing.T) {
	builder := testBuilder(200)
	pc := PromptContext{
		Operation: OperationEvaluate,
		AnswerInput: AnswerInput{
			Question:    "Tell me about a conflict in your team.",
			Answer:      "We disagreed about the release date and I set up a meeting.",
			Category:    "common",
			Difficulty:  "entry",
			ModelAnswer: "Describe the situation, your action and the result.",
			History: []Exchange{
				{Question: "What did you learn?", Answer: "To communicate earlier."},
				{Question: "Would you do it again?", Answer: "Yes."},
			},
		},
	}

	first, err := builder.Build(pc)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := builder.Build(pc)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	require.Len(t, first.Messages, 2)
	require.Equal(t, "system", first.Messages[0].Role)
	require.Equal(t, "user", first.Messages[1].Role)
	require.Equal(t, evaluationSchema, first.Schema)

	user := first.Messages[1].Content
	require.Less(t, strings.Index(user, "What did you learn?"), strings.Index(user, "Would you do it again?"))
	require.Contains(t, user, "## Reference Answer")
}

func TestPromptBuilderTruncatesLongAnswers(t *testing.T) {
	builder := testBuilder(10)
	answer := strings.Repeat("가", 25)

	truncated := builder.Truncate(answer)
	require.Equal(t, strings.Repeat("가", 10)+TruncationMarker, truncated)
	require.Equal(t, 10+len([]rune(TruncationMarker)), len([]rune(truncated)))

	request, err := builder.Build(PromptContext{
		Operation:   OperationFollowUp,
		AnswerInput: AnswerInput{Question: "Why us?", Answer: answer},
	})
	require.NoError(t, err)
	require.Contains(t, request.Messages[1].Content, truncated)
	require.NotContains(t, request.Messages[1].Content, strings.Repeat("가", 11))
}

func TestPromptBuilderKeepsShortAnswers(t *testing.T) {
	builder := testBuilder(10)
	require.Equal(t, "short", builder.Truncate("short"))
	require.Equal(t, "0123456789", builder.Truncate("0123456789"))
}

func TestPromptBuilderRejectsMissingQuestion(t *testing.T) {
	builder := testBuilder(100)

	_, err := builder.Build(PromptContext{Operation: OperationEvaluate, AnswerInput: AnswerInput{Question: "  ", Answer: "an answer"}})
	require.True(t, errors.Is(err, ErrInvalidContext))

	_, err = builder.Build(PromptContext{Operation: OperationFollowUp, AnswerInput: AnswerInput{Question: "Why?", Answer: ""}})
	require.True(t, errors.Is(err, ErrInvalidContext))

	_, err = builder.Build(PromptContext{Operation: OperationComprehensive})
	require.True(t, errors.Is(err, ErrInvalidContext))

	_, err = builder.Build(PromptContext{Operation: "unknown", AnswerInput: AnswerInput{Question: "q", Answer: "a"}})
	require.True(t, errors.Is(err, ErrInvalidContext))
}

func TestPromptBuilderSummaryIgnoresInputOrder(t *testing.T) {
	builder := testBuilder(100)
	items := []SummaryItem{
		{Position: 2, QuestionID: "b", Question: "Second", Score: 60, CategoryScores: map[string]float64{"logic": 60, "evidence": 50}},
		{Position: 1, QuestionID: "a", Question: "First", Score: 80, Feedback: "Clear", CategoryScores: map[string]float64{"logic": 80}},
	}
	reversed := []SummaryItem{items[1], items[0]}

	aggregate := AggregateItems(items)
	first, err := builder.Build(PromptContext{Operation: OperationComprehensive, Items: items, Aggregates: aggregate})
	require.NoError(t, err)
	second, err := builder.Build(PromptContext{Operation: OperationComprehensive, Items: reversed, Aggregates: AggregateItems(reversed)})
	require.NoError(t, err)
	require.Equal(t, first, second)

	user := first.Messages[1].Content
	require.Less(t, strings.Index(user, "First"), strings.Index(user, "Second"))
	require.Contains(t, user, "Overall: 70 (2 answers)")
	require.Less(t, strings.Index(user, "\nlogic: 70"), strings.Index(user, "\nevidence: 50"))
}
