package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResponseParser decodes and validates raw model output.
type ResponseParser struct {
	scale   Scale
	allowed map[string]struct{}
	schemas map[Operation]*jsonschema.Schema
}

// NewResponseParser compiles the output schemas for the given scale.
func NewResponseParser(scale Scale) (*ResponseParser, error) {
	if scale.Max <= scale.Min {
		return nil, fmt.Errorf("invalid score scale [%v, %v]", scale.Min, scale.Max)
	}
	if scale.Tolerance < 0 {
		scale.Tolerance = 0
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	var allowed map[string]struct{}
	if len(scale.Categories) > 0 {
		allowed = make(map[string]struct{}, len(scale.Categories))
		for _, name := range scale.Categories {
			allowed[normalizeCategory(name)] = struct{}{}
		}
	}

	return &ResponseParser{scale: scale, allowed: allowed, schemas: schemas}, nil
}

// MustResponseParser is like NewResponseParser but panics on error.
func MustResponseParser(scale Scale) *ResponseParser {
	parser, err := NewResponseParser(scale)
	if err != nil {
		panic(err)
	}
	return parser
}

type evaluationPayload struct {
	Score      *float64           `json:"score"`
	Feedback   *string            `json:"feedback"`
	Strengths  []string           `json:"strengths"`
	Weaknesses []string           `json:"weaknesses"`
	Categories map[string]float64 `json:"categories"`
}

type followUpPayload struct {
	Question  *string `json:"question"`
	Rationale *string `json:"rationale"`
}

type summaryPayload struct {
	Recommendation *string  `json:"recommendation"`
	FocusAreas     []string `json:"focusAreas"`
}

// ParseEvaluation validates a single answer evaluation.
func (p *ResponseParser) ParseEvaluation(raw string) (Evaluation, error) {
	const op = OperationEvaluate

	var payload evaluationPayload
	if err := p.decode(op, raw, &payload); err != nil {
		return Evaluation{}, err
	}

	score, err := p.score(op, raw, "score", *payload.Score)
	if err != nil {
		return Evaluation{}, err
	}
	feedback, err := requireText(op, raw, "feedback", *payload.Feedback)
	if err != nil {
		return Evaluation{}, err
	}
	strengths, err := requireTexts(op, raw, "strengths", payload.Strengths)
	if err != nil {
		return Evaluation{}, err
	}
	weaknesses, err := requireTexts(op, raw, "weaknesses", payload.Weaknesses)
	if err != nil {
		return Evaluation{}, err
	}

	var categories map[string]float64
	if len(payload.Categories) > 0 {
		categories = make(map[string]float64, len(payload.Categories))
		for key, value := range payload.Categories {
			name := normalizeCategory(key)
			if name == "" {
				return Evaluation{}, malformed(op, raw, "empty category name")
			}
			if p.allowed != nil {
				if _, ok := p.allowed[name]; !ok {
					return Evaluation{}, malformed(op, raw, "unknown category %q", key)
				}
			}
			if _, dup := categories[name]; dup {
				return Evaluation{}, malformed(op, raw, "duplicate category %q", key)
			}
			bounded, err := p.score(op, raw, "categories."+name, value)
			if err != nil {
				return Evaluation{}, err
			}
			categories[name] = bounded
		}
	}

	return Evaluation{
		Score:          score,
		Feedback:       feedback,
		Strengths:      strengths,
		Weaknesses:     weaknesses,
		CategoryScores: categories,
	}, nil
}

// ParseFollowUp validates a generated follow-up question.
func (p *ResponseParser) ParseFollowUp(raw string) (FollowUp, error) {
	const op = OperationFollowUp

	var payload followUpPayload
	if err := p.decode(op, raw, &payload); err != nil {
		return FollowUp{}, err
	}

	question, err := requireText(op, raw, "question", *payload.Question)
	if err != nil {
		return FollowUp{}, err
	}
	rationale, err := requireText(op, raw, "rationale", *payload.Rationale)
	if err != nil {
		return FollowUp{}, err
	}

	return FollowUp{Question: question, Rationale: rationale}, nil
}

// ParseSummary validates the narrative part of a comprehensive evaluation.
func (p *ResponseParser) ParseSummary(raw string) (Summary, error) {
	const op = OperationComprehensive

	var payload summaryPayload
	if err := p.decode(op, raw, &payload); err != nil {
		return Summary{}, err
	}

	recommendation, err := requireText(op, raw, "recommendation", *payload.Recommendation)
	if err != nil {
		return Summary{}, err
	}
	focus, err := requireTexts(op, raw, "focusAreas", payload.FocusAreas)
	if err != nil {
		return Summary{}, err
	}

	return Summary{Recommendation: recommendation, FocusAreas: focus}, nil
}

// decode extracts the JSON object from raw, validates it against the schema and unmarshals it.
func (p *ResponseParser) decode(op Operation, raw string, target interface{}) error {
	body := extractJSON(raw)
	if body == "" {
		return malformed(op, raw, "no JSON object found")
	}

	var document interface{}
	if err := json.Unmarshal([]byte(body), &document); err != nil {
		failure := malformed(op, raw, "invalid JSON")
		failure.Err = err
		return failure
	}

	if schema, ok := p.schemas[op]; ok {
		if err := schema.Validate(document); err != nil {
			failure := malformed(op, raw, "schema violation")
			failure.Err = err
			return failure
		}
	}

	if err := json.Unmarshal([]byte(body), target); err != nil {
		failure := malformed(op, raw, "decode payload")
		failure.Err = err
		return failure
	}
	return nil
}

func (p *ResponseParser) score(op Operation, raw, field string, value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, malformed(op, raw, "%s is not a finite number", field)
	}
	switch {
	case value < p.scale.Min-p.scale.Tolerance, value > p.scale.Max+p.scale.Tolerance:
		return 0, malformed(op, raw, "%s %v outside [%v, %v]", field, value, p.scale.Min, p.scale.Max)
	case value < p.scale.Min:
		return p.scale.Min, nil
	case value > p.scale.Max:
		return p.scale.Max, nil
	default:
		return value, nil
	}
}

func requireText(op Operation, raw, field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", malformed(op, raw, "%s is empty", field)
	}
	return trimmed, nil
}

func requireTexts(op Operation, raw, field string, values []string) ([]string, error) {
	result := make([]string, 0, len(values))
	for i, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return nil, malformed(op, raw, "%s[%d] is empty", field, i)
		}
		result = append(result, trimmed)
	}
	return result, nil
}

func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// extractJSON returns the outermost JSON object in raw, ignoring markdown fences and prose.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
