package agent

import "strings"

// StopCondition decides early, successful termination from the accumulated
// step history. It is evaluated only for regular (non-tool-call) responses.
type StopCondition func(steps []*Step) bool

// completionIndicators is the fixed vocabulary the default heuristic matches
// case-insensitively against a regular response.
var completionIndicators = []string{
	"task is complete",
	"task complete",
	"task completed",
	"i have completed",
	"final answer",
	"finished",
	"done",
	"completed",
}

// DefaultStopCondition matches the last step's thought against the
// completion-indicator vocabulary. Steps that carried an action never
// terminate.
func DefaultStopCondition(steps []*Step) bool {
	if len(steps) == 0 {
		return false
	}
	last := steps[len(steps)-1]
	if last.Action != nil {
		return false
	}

	thought := strings.ToLower(last.Thought)
	for _, indicator := range completionIndicators {
		if strings.Contains(thought, indicator) {
			return true
		}
	}
	return false
}
