package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEvaluationAcceptsWellFormedOutput(t *testing.T) {
	parser := MustResponseParser(DefaultScale())

	result, err := parser.ParseEvaluation(`{"score": 82, "feedback": "Solid structure", "strengths": ["clarity"], "weaknesses": ["depth"]}`)
	require.NoError(t, err)
	require.Equal(t, Evaluation{
		Score:      82,
		Feedback:   "Solid structure",
		Strengths:  []string{"clarity"},
		Weaknesses: []string{"depth"},
	}, result)
}

func TestParseEvaluationRejectsOutOfRangeScore(t *testing.T) {
	parser := MustResponseParser(DefaultScale())
	raw := `{"score": 150, "feedback": "ok", "strengths": [], "weaknesses": []}`

	_, err := parser.ParseEvaluation(raw)
	require.True(t, errors.Is(err, ErrMalformedModelOutput))

	failure, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, raw, failure.Raw)
}

func TestParseEvaluationClampsMarginalScores(t *testing.T) {
	parser := MustResponseParser(DefaultScale())

	result, err := parser.ParseEvaluation(`{"score": 100.4, "feedback": "ok", "strengths": [], "weaknesses": [], "categories": {"Logic": -0.3}}`)
	require.NoError(t, err)
	require.Equal(t, 100.0, result.Score)
	require.Equal(t, map[string]float64{"logic": 0}, result.CategoryScores)
}

func TestParseEvaluationRejectsInvalidPayloads(t *testing.T) {
	parser := MustResponseParser(DefaultScale())

	cases := map[string]string{
		"not json":          "I think the answer is fine.",
		"truncated json":    `{"score": 80, "feedback": "ok"`,
		"missing feedback":  `{"score": 80, "strengths": [], "weaknesses": []}`,
		"string score":      `{"score": "80", "feedback": "ok", "strengths": [], "weaknesses": []}`,
		"blank feedback":    `{"score": 80, "feedback": "   ", "strengths": [], "weaknesses": []}`,
		"blank strength":    `{"score": 80, "feedback": "ok", "strengths": [" "], "weaknesses": []}`,
		"unknown category":  `{"score": 80, "feedback": "ok", "strengths": [], "weaknesses": [], "categories": {"charisma": 90}}`,
		"category overflow": `{"score": 80, "feedback": "ok", "strengths": [], "weaknesses": [], "categories": {"logic": 180}}`,
		"array payload":     `[{"score": 80}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parser.ParseEvaluation(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformedModelOutput))
			failure, ok := AsError(err)
			require.True(t, ok)
			require.Equal(t, raw, failure.Raw)
		})
	}
}

func TestParseEvaluationStripsMarkdownFence(t *testing.T) {
	parser := MustResponseParser(DefaultScale())

	raw := "```json\n{\"score\": 70, \"feedback\": \" Good \", \"strengths\": [\"examples\"], \"weaknesses\": [], \"categories\": {\"evidence\": 65}}\n```"
	result, err := parser.ParseEvaluation(raw)
	require.NoError(t, err)
	require.Equal(t, 70.0, result.Score)
	require.Equal(t, "Good", result.Feedback)
	require.Equal(t, map[string]float64{"evidence": 65}, result.CategoryScores)
}

func TestParseEvaluationWithCustomScale(t *testing.T) {
	parser := MustResponseParser(Scale{Min: 1, Max: 5, Tolerance: 0.1, Categories: []string{"clarity"}})

	result, err := parser.ParseEvaluation(`{"score": 4, "feedback": "ok", "strengths": [], "weaknesses": [], "categories": {"clarity": 5.05}}`)
	require.NoError(t, err)
	require.Equal(t, 5.0, result.CategoryScores["clarity"])

	_, err = parser.ParseEvaluation(`{"score": 82, "feedback": "ok", "strengths": [], "weaknesses": []}`)
	require.True(t, errors.Is(err, ErrMalformedModelOutput))
}

func TestParseFollowUpRequiresQuestionAndRationale(t *testing.T) {
	parser := MustResponseParser(DefaultScale())

	result, err := parser.ParseFollowUp(`{"question": "What was the measurable outcome?", "rationale": "The answer lacks numbers."}`)
	require.NoError(t, err)
	require.Equal(t, "What was the measurable outcome?", result.Question)
	require.Equal(t, "The answer lacks numbers.", result.Rationale)

	_, err = parser.ParseFollowUp(`{"question": "What was the measurable outcome?"}`)
	require.True(t, errors.Is(err, ErrMalformedModelOutput))

	_, err = parser.ParseFollowUp(`{"question": "", "rationale": "x"}`)
	require.True(t, errors.Is(err, ErrMalformedModelOutput))
}

func TestParseSummary(t *testing.T) {
	parser := MustResponseParser(DefaultScale())

	result, err := parser.ParseSummary(`{"recommendation": "Practise STAR answers.", "focusAreas": ["evidence"]}`)
	require.NoError(t, err)
	require.Equal(t, "Practise STAR answers.", result.Recommendation)
	require.Equal(t, []string{"evidence"}, result.FocusAreas)

	_, err = parser.ParseSummary(`{"focusAreas": ["evidence"]}`)
	require.True(t, errors.Is(err, ErrMalformedModelOutput))
}

func TestNewResponseParserRejectsInvalidScale(t *testing.T) {
	_, err := NewResponseParser(Scale{Min: 10, Max: 10})
	require.Error(t, err)
}
