// Package protocol is the single source of truth for the textual contract
// between the loop and the completion primitive.
//
// A Codec builds the instructions that elicit either a structured JSON
// payload or a function-call envelope, and parses model output back into one
// of: function call, or regular response. Parsing never fails - model output
// is adversarial, and the codec prefers false negatives (ambiguous text
// treated as prose) over false positives (a misfired tool call with real
// side effects).
package protocol

import (
	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/funcs"
	"github.com/spindle-ai/spindle/schema"
)

// Parsed is the classification of one model response.
//
// Exactly one of FunctionCall or RegularResponse is meaningful: when
// FunctionCall is non-nil the response requested tool execution (with
// optional Reasoning); otherwise RegularResponse holds the full original
// text.
type Parsed struct {
	FunctionCall    *spindle.FunctionCall
	Reasoning       string
	RegularResponse string
}

// IsFunctionCall reports whether the response was classified as a function
// call.
func (p *Parsed) IsFunctionCall() bool {
	return p.FunctionCall != nil
}

// Codec defines the textual contract with the model.
type Codec interface {
	// BuildFunctionSystemPrompt emits the tool catalog followed by the fixed
	// instruction block demanding the function-call envelope. An empty
	// catalog yields an empty string: no function-calling capability is
	// advertised.
	BuildFunctionSystemPrompt(catalog []funcs.CatalogEntry) string

	// ParseResponse classifies model output. It never returns an error;
	// anything that is not a well-formed envelope is a regular response
	// carrying the full original text.
	ParseResponse(text string) *Parsed

	// BuildSchemaPrompt renders the instruction block for schema-constrained
	// output.
	BuildSchemaPrompt(s *schema.Schema) string

	// BuildStructuredRequest concatenates schema instructions and user
	// content with a clear section boundary.
	BuildStructuredRequest(s *schema.Schema, userPrompt string) string
}
