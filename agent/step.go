package agent

import (
	"time"

	"github.com/spindle-ai/spindle"
)

// Step records one loop iteration. Steps form an append-only audit trail of
// a run; a step either carries an Action with its Observation (a tool call
// round-trip) or a bare Thought (a regular response, possibly the final
// answer).
type Step struct {
	// Iteration is 1-based and strictly increasing within a run.
	Iteration int

	Timestamp time.Time

	// Thought is the model's reasoning: the envelope's reasoning field for a
	// tool call, or the full response text otherwise.
	Thought string

	// Action is the function call requested this iteration, nil for a
	// regular response.
	Action *spindle.FunctionCall

	// Observation is the result of executing Action, nil when Action is nil.
	Observation *spindle.ToolResult
}

// Result is the immutable snapshot returned when a run ends.
type Result struct {
	// RunID uniquely identifies the run across the process.
	RunID string

	Status      Status
	Steps       []*Step
	FinalAnswer string
	Err         error

	// Iterations is how many loop iterations actually executed.
	Iterations int

	Stats Stats
}

// Stats aggregates per-run counters.
type Stats struct {
	PromptCount     int
	ToolCalls       int
	ToolCallsByName map[string]int

	// Budget is the session's token accounting at run end. Zero-valued when
	// the session could not report it.
	Budget spindle.Budget
}
