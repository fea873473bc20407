package protocol

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/funcs"
	"github.com/spindle-ai/spindle/schema"
)

// YAML is a codec variant expressing the same envelope contract in YAML, for
// models that produce cleaner YAML than JSON:
//
//	functionCall:
//	  name: search
//	  arguments:
//	    query: weather
//	reasoning: the user asked about the weather
//
// Structured-output prompts remain JSON; only the function envelope changes.
type YAML struct{}

// NewYAML creates the YAML codec.
func NewYAML() *YAML {
	return &YAML{}
}

type yamlEnvelope struct {
	FunctionCall *struct {
		Name      string         `yaml:"name"`
		Arguments map[string]any `yaml:"arguments"`
	} `yaml:"functionCall"`
	Reasoning string `yaml:"reasoning"`
}

// BuildFunctionSystemPrompt emits the tool catalog as JSON followed by YAML
// envelope instructions. An empty catalog yields an empty string.
func (c *YAML) BuildFunctionSystemPrompt(catalog []funcs.CatalogEntry) string {
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
	sb.WriteString("When you need to call a function, respond with a single YAML document of this exact shape:\n")
	sb.WriteString("functionCall:\n")
	sb.WriteString("  name: function_name\n")
	sb.WriteString("  arguments:\n")
	sb.WriteString("    key: value\n")
	sb.WriteString("reasoning: why you are calling it\n")
	sb.WriteString("\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- Respond with exactly one YAML document when calling a function, nothing else.\n")
	sb.WriteString("- Arguments must match the function's parameter schema.\n")
	sb.WriteString("- When no function is needed, respond in plain prose.\n")
	return sb.String()
}

// ParseResponse strips fences and attempts a YAML parse of the envelope.
// Anything that does not decode to a mapping with a functionCall entry is a
// regular response carrying the full original text. Never returns an error.
func (c *YAML) ParseResponse(text string) *Parsed {
	candidate := StripFences(text)

	var env yamlEnvelope
	if err := yaml.Unmarshal([]byte(candidate), &env); err != nil {
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

// BuildSchemaPrompt renders the schema's rule set. Structured output stays
// JSON even under the YAML codec.
func (c *YAML) BuildSchemaPrompt(s *schema.Schema) string {
	if s == nil {
		return ""
	}
	return s.PromptRules()
}

// BuildStructuredRequest concatenates schema instructions and user content
// with a clear section boundary.
func (c *YAML) BuildStructuredRequest(s *schema.Schema, userPrompt string) string {
	var sb strings.Builder
	sb.WriteString(c.BuildSchemaPrompt(s))
	sb.WriteString("\n---\n\n")
	sb.WriteString(userPrompt)
	return sb.String()
}

// Compile-time check that YAML implements Codec.
var _ Codec = (*YAML)(nil)
