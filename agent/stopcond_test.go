package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spindle-ai/spindle"
)

func TestDefaultStopCondition(t *testing.T) {
	tests := []struct {
		name     string
		steps    []*Step
		expected bool
	}{
		{
			name:     "no steps",
			steps:    nil,
			expected: false,
		},
		{
			name: "completion phrase matches",
			steps: []*Step{
				{Thought: "The task is complete. The answer is 42."},
			},
			expected: true,
		},
		{
			name: "case insensitive match",
			steps: []*Step{
				{Thought: "FINAL ANSWER: 42"},
			},
			expected: true,
		},
		{
			name: "ongoing work does not match",
			steps: []*Step{
				{Thought: "Let me think about the next move."},
			},
			expected: false,
		},
		{
			name: "action steps never terminate",
			steps: []*Step{
				{
					Thought: "done searching",
					Action:  &spindle.FunctionCall{Name: "search"},
				},
			},
			expected: false,
		},
		{
			name: "only the last step is considered",
			steps: []*Step{
				{Thought: "Task complete."},
				{Thought: "Actually, one more thing to check."},
			},
			expected: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DefaultStopCondition(tc.steps))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusStopped.Terminal())
}
