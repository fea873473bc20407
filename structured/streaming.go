package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/protocol"
	"github.com/spindle-ai/spindle/schema"
)

// ExtractStreaming is Extract over the session's streaming interface. After
// each snapshot it heuristically closes unbalanced braces and attempts a
// parse; values that parse are reported through Options.OnPartial. Partial
// failures are silently swallowed - the side channel is advisory and never
// affects the final attempt's outcome, which follows the same
// parse/validate/retry contract as Extract.
func ExtractStreaming(
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

		stream, err := session.PromptStreaming(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("prompt streaming (attempt %d): %w", attempt, err)
		}

		var final string
		for snapshot := range stream {
			final = snapshot
			if opts.OnPartial != nil {
				if value, ok := parsePartial(snapshot); ok {
					opts.OnPartial(value)
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := parseAndValidate(final, s)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}

	return nil, &ExhaustedError{Attempts: maxAttempts, LastErr: lastErr}
}

// parsePartial attempts a best-effort parse of a mid-stream snapshot by
// balancing its missing closing braces. ok=false on any failure.
func parsePartial(snapshot string) (any, bool) {
	cleaned := protocol.StripFences(snapshot)

	start := strings.IndexAny(cleaned, "{[")
	if start == -1 {
		return nil, false
	}

	repaired := protocol.CloseUnbalanced(cleaned[start:])
	var value any
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, false
	}
	return value, true
}
