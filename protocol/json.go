package protocol

import (
	"encoding/json"
	"strings"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/funcs"
	"github.com/spindle-ai/spindle/schema"
)

// JSON is the default codec. It asks the model for a single JSON envelope
// when a tool is needed:
//
//	{"functionCall": {"name": "search", "arguments": {"query": "weather"}}, "reasoning": "..."}
//
// and unconstrained prose otherwise.
type JSON struct{}

// NewJSON creates the JSON codec.
func NewJSON() *JSON {
	return &JSON{}
}

// envelope is the wire shape of a function-call response.
type envelope struct {
	FunctionCall *struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"functionCall"`
	Reasoning string `json:"reasoning"`
}

// BuildFunctionSystemPrompt emits the tool catalog as JSON followed by the
// fixed envelope instructions. An empty catalog yields an empty string.
func (c *JSON) BuildFunctionSystemPrompt(catalog []funcs.CatalogEntry) string {
	if len(catalog) == 0 {
		return ""
	}

	catalogJSON, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You have access to the following functions:\n\n")
	sb.Write(catalogJSON)
	sb.WriteString("\n\n")
	sb.WriteString("When you need to call a function, respond with a single JSON object of this exact shape:\n")
	sb.WriteString(`{"functionCall": {"name": "function_name", "arguments": {...}}, "reasoning": "why you are calling it"}`)
	sb.WriteString("\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Respond with exactly one JSON object when calling a function, nothing else.\n")
	sb.WriteString("- Arguments must match the function's parameter schema.\n")
	sb.WriteString("- When no function is needed, respond in plain prose without any JSON.\n")
	return sb.String()
}

// ParseResponse classifies model output in two stages: locate the first
// balanced {...} candidate, then strict-parse it. Any failure at either
// stage - no candidate, malformed JSON, or a well-formed object without a
// functionCall field - degrades to a regular response carrying the full
// original text. This never returns an error.
func (c *JSON) ParseResponse(text string) *Parsed {
	candidate, ok := FirstJSONObject(text)
	if !ok {
		return &Parsed{RegularResponse: text}
	}

	var env envelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return &Parsed{RegularResponse: text}
	}
	if env.FunctionCall == nil || env.FunctionCall.Name == "" {
		return &Parsed{RegularResponse: text}
	}

	args := env.FunctionCall.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return &Parsed{
		FunctionCall: &spindle.FunctionCall{
			Name:      env.FunctionCall.Name,
			Arguments: args,
		},
		Reasoning: env.Reasoning,
	}
}

// BuildSchemaPrompt renders the schema's rule set.
func (c *JSON) BuildSchemaPrompt(s *schema.Schema) string {
	if s == nil {
		return ""
	}
	return s.PromptRules()
}

// BuildStructuredRequest concatenates schema instructions and user content
// with a clear section boundary.
func (c *JSON) BuildStructuredRequest(s *schema.Schema, userPrompt string) string {
	var sb strings.Builder
	sb.WriteString(c.BuildSchemaPrompt(s))
	sb.WriteString("\n---\n\n")
	sb.WriteString(userPrompt)
	return sb.String()
}

// Compile-time check that JSON implements Codec.
var _ Codec = (*JSON)(nil)
