// Package structured drives the retry loop for schema-validated extraction:
// prompt the model, parse the response as JSON, validate against the schema,
// and on failure feed the error back into the conversation and try again.
package structured

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/protocol"
	"github.com/spindle-ai/spindle/schema"
)

// DefaultMaxAttempts is the attempt budget when Options.MaxAttempts is zero.
const DefaultMaxAttempts = 3

// Options configures an extraction.
type Options struct {
	// MaxAttempts is the total attempt budget, counting the first attempt.
	// MaxAttempts=1 performs no retry. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// Codec builds the schema prompts. Nil means protocol.NewJSON().
	Codec protocol.Codec

	// Logger receives per-attempt progress. Disabled when zero-valued.
	Logger zerolog.Logger

	// OnPartial receives best-effort partial values during streaming
	// extraction. Advisory only; partial-parse failures are silently
	// swallowed and have no effect on the final outcome. Ignored by Extract.
	OnPartial func(value any)
}

func (o Options) maxAttempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}

func (o Options) codec() protocol.Codec {
	if o.Codec == nil {
		return protocol.NewJSON()
	}
	return o.Codec
}

// ExhaustedError is returned when every attempt failed. It carries the last
// underlying parse or validation error.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("structured output failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Extract prompts the session for a value matching the schema, retrying with
// error feedback until the attempt budget is spent.
//
// The first attempt sends the schema-annotated prompt; subsequent attempts
// send a feedback prompt describing why the previous response was invalid.
// Successful validation returns immediately without consuming remaining
// attempts. Exhaustion returns a *ExhaustedError; session transport errors
// surface as-is.
func Extract(
	ctx context.Context,
	session spindle.Session,
	prompt string,
	s *schema.Schema,
	opts Options,
) (any, error) {
	codec := opts.codec()
	maxAttempts := opts.maxAttempts()

	request := codec.BuildStructuredRequest(s, prompt)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			request = feedbackPrompt(codec, s, lastErr)
		}

		opts.Logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("structured extraction attempt")

		response, err := session.Prompt(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("prompt (attempt %d): %w", attempt, err)
		}

		value, err := parseAndValidate(response, s)
		if err == nil {
			return value, nil
		}
		lastErr = err

		opts.Logger.Debug().
			Int("attempt", attempt).
			Err(err).
			Msg("structured extraction attempt failed")
	}

	return nil, &ExhaustedError{Attempts: maxAttempts, LastErr: lastErr}
}

// ExtractInto is Extract with the validated value decoded into T.
func ExtractInto[T any](
	ctx context.Context,
	session spindle.Session,
	prompt string,
	s *schema.Schema,
	opts Options,
) (T, error) {
	var out T

	value, err := Extract(ctx, session, prompt, s, opts)
	if err != nil {
		return out, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return out, fmt.Errorf("encode extracted value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode extracted value: %w", err)
	}
	return out, nil
}

// parseAndValidate runs the two-stage pipeline on one response: strip fences,
// locate the first balanced JSON value, strict-parse, then validate.
func parseAndValidate(response string, s *schema.Schema) (any, error) {
	cleaned := protocol.StripFences(response)

	candidate, ok := protocol.FirstJSONValue(cleaned)
	if !ok {
		return nil, spindle.ErrNoJSONFound
	}

	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}

	if err := s.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// feedbackPrompt crafts the corrective prompt for a retry attempt.
func feedbackPrompt(codec protocol.Codec, s *schema.Schema, lastErr error) string {
	return fmt.Sprintf(
		"The previous response was invalid because: %v\n\nTry again.\n\n%s",
		lastErr, codec.BuildSchemaPrompt(s),
	)
}
