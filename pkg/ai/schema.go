package ai

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const evaluationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["score", "feedback", "strengths", "weaknesses"],
  "properties": {
    "score": {"type": "number"},
    "feedback": {"type": "string"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "categories": {"type": "object", "additionalProperties": {"type": "number"}}
  }
}`

const followUpSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["question", "rationale"],
  "properties": {
    "question": {"type": "string"},
    "rationale": {"type": "string"}
  }
}`

const summarySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["recommendation"],
  "properties": {
    "recommendation": {"type": "string"},
    "focusAreas": {"type": "array", "items": {"type": "string"}}
  }
}`

// SchemaFor returns the expected output schema of an operation.
func SchemaFor(op Operation) string {
	switch op {
	case OperationEvaluate:
		return evaluationSchema
	case OperationFollowUp:
		return followUpSchema
	case OperationComprehensive:
		return summarySchema
	default:
		return ""
	}
}

func compileSchemas() (map[Operation]*jsonschema.Schema, error) {
	compiled := make(map[Operation]*jsonschema.Schema, 3)
	for _, op := range []Operation{OperationEvaluate, OperationFollowUp, OperationComprehensive} {
		compiler := jsonschema.NewCompiler()
		url := fmt.Sprintf("mem://ai/%s.json", op)
		if err := compiler.AddResource(url, strings.NewReader(SchemaFor(op))); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", op, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", op, err)
		}
		compiled[op] = schema
	}
	return compiled, nil
}
