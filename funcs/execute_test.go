package funcs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/schema"
)

func searchRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry()
	reg.Register(&FunctionDefinition{
		Name:        "search",
		Description: "Search the web",
		Parameters: schema.Object(map[string]*schema.Schema{
			"query": schema.String("The search query"),
			"limit": schema.Number("Max results").AsOptional(),
		}),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return "results for " + args["query"].(string), nil
		},
	})
	return reg
}

func TestExecute(t *testing.T) {
	type input struct {
		call *spindle.FunctionCall
	}

	type expected struct {
		success bool
		result  any
		errPart string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "successful call",
			input: input{
				call: &spindle.FunctionCall{
					Name:      "search",
					Arguments: map[string]any{"query": "weather"},
				},
			},
			expected: expected{
				success: true,
				result:  "results for weather",
			},
		},
		{
			name: "unknown function",
			input: input{
				call: &spindle.FunctionCall{
					Name:      "teleport",
					Arguments: map[string]any{},
				},
			},
			expected: expected{
				errPart: "unknown function: teleport",
			},
		},
		{
			name: "missing required argument short-circuits",
			input: input{
				call: &spindle.FunctionCall{
					Name:      "search",
					Arguments: map[string]any{"limit": 3.0},
				},
			},
			expected: expected{
				errPart: `missing required argument "query"`,
			},
		},
		{
			name: "extra arguments tolerated",
			input: input{
				call: &spindle.FunctionCall{
					Name: "search",
					Arguments: map[string]any{
						"query":     "weather",
						"verbosity": "high",
					},
				},
			},
			expected: expected{
				success: true,
				result:  "results for weather",
			},
		},
		{
			name: "nil call",
			input: input{
				call: nil,
			},
			expected: expected{
				errPart: "no function call provided",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := searchRegistry(t)

			result := Execute(context.Background(), tc.input.call, reg)

			require.NotNil(t, result)
			if tc.expected.success {
				assert.True(t, result.Success)
				assert.Equal(t, tc.expected.result, result.Result)
				return
			}
			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tc.expected.errPart)
		})
	}
}

func TestExecute_HandlerError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&FunctionDefinition{
		Name: "flaky",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		},
	})

	result := Execute(context.Background(), &spindle.FunctionCall{
		Name:      "flaky",
		Arguments: map[string]any{},
	}, reg)

	assert.False(t, result.Success)
	assert.Equal(t, "backend unavailable", result.Error)
}

func TestExecute_HandlerPanicRecovered(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&FunctionDefinition{
		Name: "boom",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			panic("unexpected state")
		},
	})

	result := Execute(context.Background(), &spindle.FunctionCall{
		Name:      "boom",
		Arguments: map[string]any{},
	}, reg)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "panicked")
	assert.Contains(t, result.Error, "unexpected state")
}

func TestExecute_NilHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&FunctionDefinition{Name: "hollow"})

	result := Execute(context.Background(), &spindle.FunctionCall{
		Name:      "hollow",
		Arguments: map[string]any{},
	}, reg)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "has no handler")
}

func TestExecuteAll_PreservesOrder(t *testing.T) {
	reg := searchRegistry(t)

	results := ExecuteAll(context.Background(), []*spindle.FunctionCall{
		{Name: "search", Arguments: map[string]any{"query": "one"}},
		{Name: "missing", Arguments: map[string]any{}},
		{Name: "search", Arguments: map[string]any{"query": "two"}},
	}, reg)

	require.Len(t, results, 3)
	assert.Equal(t, "results for one", results[0].Result)
	assert.False(t, results[1].Success)
	assert.Equal(t, "results for two", results[2].Result)
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name     string
		result   *spindle.ToolResult
		expected string
	}{
		{
			name:     "success encodes result as JSON",
			result:   spindle.OkResult(map[string]any{"count": 2}),
			expected: `Function "search" returned: {"count":2}`,
		},
		{
			name:     "failure carries error message",
			result:   spindle.FailResult("backend unavailable"),
			expected: `Function "search" failed: backend unavailable`,
		},
		{
			name:     "nil result",
			result:   nil,
			expected: `Function "search" produced no result.`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatResult("search", tc.result))
		})
	}
}
