package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"coursecraft/internal/domain"
)

// Temperatures for structured generation. The first attempt runs cool; each
// retry runs cooler still to squeeze out formatting drift.
var structuredTemps = []float64{0.3, 0.2, 0.1, 0.05}

// maxStructuredRetries is the number of strict re-issues after the first
// attempt fails to produce schema-valid JSON.
const maxStructuredRetries = 3

// StructuredRequest describes a generation call that must return JSON
// matching a schema.
type StructuredRequest struct {
	SystemPrompt string
	Prompt       string
	Capabilities []string
	Tier         string
	Model        string
	MaxTokens    int
	Schema       json.RawMessage // JSON Schema; nil skips validation
}

// GenerateStructured generates JSON output conforming to req.Schema. The raw
// output goes through the repair pipeline before parsing; on parse or
// validation failure the request is re-issued with stricter instructions and
// lower temperature, up to maxStructuredRetries times. The last error
// propagates wrapped in domain.ErrParseFailed.
func (r *Router) GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, *GenerateResult, error) {
	var schema *jsonschema.Schema
	if len(req.Schema) > 0 {
		compiler := jsonschema.NewCompiler()
		var err error
		schema, err = compiler.Compile(req.Schema)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid schema: %w", err)
		}
	}

	prompt := structuredPrompt(req.Prompt, req.Schema, false)

	var lastErr error
	for attempt := 0; attempt <= maxStructuredRetries; attempt++ {
		temp := structuredTemps[min(attempt, len(structuredTemps)-1)]
		if attempt > 0 {
			prompt = structuredPrompt(req.Prompt, req.Schema, true)
		}

		result, err := r.Generate(ctx, GenerateRequest{
			SystemPrompt: req.SystemPrompt,
			Prompt:       prompt,
			Capabilities: req.Capabilities,
			Tier:         req.Tier,
			Model:        req.Model,
			MaxTokens:    req.MaxTokens,
			Temperature:  temp,
			// Retries must reach the live model, not a cached bad answer.
			NoCache: attempt > 0,
		})
		if err != nil {
			// Provider failure is not a formatting problem; do not burn
			// retries re-asking the same broken backend.
			return nil, nil, err
		}

		parsed, parseErr := parseStructured(result.Text, schema)
		if parseErr == nil {
			return parsed, result, nil
		}
		lastErr = parseErr
		r.logger.Warn("structured output invalid, retrying",
			"attempt", attempt+1, "temperature", temp, "error", parseErr)
	}

	return nil, nil, fmt.Errorf("%w: %v", domain.ErrParseFailed, lastErr)
}

// parseStructured repairs, parses, and validates one model output.
func parseStructured(text string, schema *jsonschema.Schema) (map[string]any, error) {
	repaired, err := RepairJSON(text)
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return nil, fmt.Errorf("parse repaired JSON: %w", err)
	}

	if schema != nil {
		result := schema.Validate(parsed)
		if !result.IsValid() {
			return nil, fmt.Errorf("schema validation: %s", result.Error())
		}
	}

	return parsed, nil
}

// structuredPrompt appends schema instructions to the user prompt. Retries
// get a harsher preamble.
func structuredPrompt(prompt string, schema json.RawMessage, strict bool) string {
	out := prompt
	if len(schema) > 0 {
		out += "\n\nRespond with a JSON object matching this JSON Schema exactly:\n" + string(schema)
	} else {
		out += "\n\nRespond with a single JSON object."
	}
	if strict {
		out += "\n\nIMPORTANT: Output ONLY raw JSON. No markdown fences, no prose, no trailing commentary."
	}
	return out
}
