package ai

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TruncationMarker is appended to text cut at the configured bound.
const TruncationMarker = "…[truncated]"

const defaultMaxAnswerChars = 4000

// PromptConfig configures the prompt builder.
type PromptConfig struct {
	MaxAnswerChars int
	Scale          Scale
}

// PromptBuilder renders prompt contexts into model requests. It holds no mutable state.
type PromptBuilder struct {
	maxChars int
	scale    Scale
}

// NewPromptBuilder constructs a builder, applying defaults for unset options.
func NewPromptBuilder(cfg PromptConfig) *PromptBuilder {
	if cfg.MaxAnswerChars <= 0 {
		cfg.MaxAnswerChars = defaultMaxAnswerChars
	}
	if cfg.Scale.Max <= cfg.Scale.Min {
		cfg.Scale = DefaultScale()
	}
	return &PromptBuilder{maxChars: cfg.MaxAnswerChars, scale: cfg.Scale}
}

// Truncate cuts text longer than the bound to exactly the bound (in runes) plus the marker.
func (b *PromptBuilder) Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= b.maxChars {
		return text
	}
	return string(runes[:b.maxChars]) + TruncationMarker
}

// Build renders pc into a request. It is deterministic for equal inputs.
func (b *PromptBuilder) Build(pc PromptContext) (Request, error) {
	var user string
	switch pc.Operation {
	case OperationEvaluate, OperationFollowUp:
		if strings.TrimSpace(pc.Question) == "" {
			return Request{}, invalidContext(pc.Operation, "question text is required")
		}
		if strings.TrimSpace(pc.Answer) == "" {
			return Request{}, invalidContext(pc.Operation, "answer text is required")
		}
		user = b.answerPrompt(pc)
	case OperationComprehensive:
		if len(pc.Items) == 0 {
			return Request{}, invalidContext(pc.Operation, "at least one evaluated answer is required")
		}
		for i, item := range pc.Items {
			if strings.TrimSpace(item.Question) == "" {
				return Request{}, invalidContext(pc.Operation, "item %d has no question text", i)
			}
		}
		user = b.summaryPrompt(pc)
	default:
		return Request{}, invalidContext(pc.Operation, "unknown operation %q", pc.Operation)
	}

	schema := SchemaFor(pc.Operation)
	return Request{
		Operation: pc.Operation,
		Model:     strings.TrimSpace(pc.Model),
		Schema:    schema,
		Messages: []Message{
			{Role: "system", Content: b.systemPrompt(pc.Operation, schema)},
			{Role: "user", Content: user},
		},
	}, nil
}

func (b *PromptBuilder) systemPrompt(op Operation, schema string) string {
	var sb strings.Builder
	sb.WriteString("You are an experienced interviewer coaching a candidate through a job interview rehearsal. ")
	switch op {
	case OperationEvaluate:
		fmt.Fprintf(&sb, "Evaluate the candidate's answer. Give an overall score between %s and %s, concise feedback, "+
			"the strengths and the weaknesses of the answer", formatNumber(b.scale.Min), formatNumber(b.scale.Max))
		if len(b.scale.Categories) > 0 {
			fmt.Fprintf(&sb, ", and a score on the same scale for each of these categories: %s", strings.Join(b.scale.Categories, ", "))
		}
		sb.WriteString(".")
	case OperationFollowUp:
		sb.WriteString("Ask one probing follow-up question that challenges the weakest part of the candidate's answer, " +
			"and explain briefly why you ask it. Do not repeat questions that were already asked.")
	case OperationComprehensive:
		sb.WriteString("You receive per-answer scores and feedback of a finished interview together with the aggregated scores. " +
			"Write a narrative recommendation for the candidate and list the areas they should focus on next. " +
			"Do not recompute or change the scores.")
	}
	sb.WriteString("\nRespond with a single JSON object matching this schema and nothing else:\n")
	sb.WriteString(schema)
	return sb.String()
}

func (b *PromptBuilder) answerPrompt(pc PromptContext) string {
	var sb strings.Builder
	sb.WriteString("# Question\n")
	sb.WriteString(strings.TrimSpace(pc.Question))
	if pc.Category != "" {
		sb.WriteString("\n\n## Category\n")
		sb.WriteString(pc.Category)
	}
	if pc.Difficulty != "" {
		sb.WriteString("\n\n## Level\n")
		sb.WriteString(pc.Difficulty)
	}
	if pc.ModelAnswer != "" {
		sb.WriteString("\n\n## Reference Answer\n")
		sb.WriteString(b.Truncate(pc.ModelAnswer))
	}
	sb.WriteString("\n\n## Candidate Answer\n")
	sb.WriteString(b.Truncate(pc.Answer))
	if len(pc.History) > 0 {
		sb.WriteString("\n\n## Follow-up Exchanges\n")
		for i, exchange := range pc.History {
			fmt.Fprintf(&sb, "%d. Q: %s\n   A: %s\n", i+1, strings.TrimSpace(exchange.Question), b.Truncate(exchange.Answer))
		}
	}
	sb.WriteString("\nReturn JSON.")
	return sb.String()
}

func (b *PromptBuilder) summaryPrompt(pc PromptContext) string {
	items := sortedItems(pc.Items)

	var sb strings.Builder
	sb.WriteString("# Interview Results\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(item.Question))
		if item.Category != "" {
			fmt.Fprintf(&sb, "   Category: %s\n", item.Category)
		}
		fmt.Fprintf(&sb, "   Score: %s\n", formatNumber(item.Score))
		for _, name := range orderedCategories(b.scale.Categories, item.CategoryScores) {
			fmt.Fprintf(&sb, "   %s: %s\n", name, formatNumber(item.CategoryScores[name]))
		}
		if feedback := strings.TrimSpace(item.Feedback); feedback != "" {
			fmt.Fprintf(&sb, "   Feedback: %s\n", b.Truncate(feedback))
		}
	}

	sb.WriteString("\n## Aggregated Scores\n")
	fmt.Fprintf(&sb, "Overall: %s (%d answers)\n", formatNumber(pc.Aggregates.OverallScore), pc.Aggregates.AnswerCount)
	for _, name := range orderedCategories(b.scale.Categories, pc.Aggregates.CategoryAverages) {
		fmt.Fprintf(&sb, "%s: %s\n", name, formatNumber(pc.Aggregates.CategoryAverages[name]))
	}
	sb.WriteString("\nReturn JSON.")
	return sb.String()
}

func sortedItems(items []SummaryItem) []SummaryItem {
	sorted := make([]SummaryItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].QuestionID < sorted[j].QuestionID
	})
	return sorted
}

// orderedCategories lists the keys of scores: configured categories first, the rest alphabetically.
func orderedCategories(configured []string, scores map[string]float64) []string {
	if len(scores) == 0 {
		return nil
	}
	names := make([]string, 0, len(scores))
	seen := make(map[string]struct{}, len(scores))
	for _, name := range configured {
		if _, ok := scores[name]; ok {
			names = append(names, name)
			seen[name] = struct{}{}
		}
	}
	rest := make([]string, 0, len(scores)-len(names))
	for name := range scores {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
