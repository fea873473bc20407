package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-ai/spindle/funcs"
	"github.com/spindle-ai/spindle/schema"
)

func TestJSON_BuildFunctionSystemPrompt(t *testing.T) {
	t.Run("empty catalog yields empty prompt", func(t *testing.T) {
		assert.Equal(t, "", NewJSON().BuildFunctionSystemPrompt(nil))
	})

	t.Run("catalog and envelope instructions included", func(t *testing.T) {
		catalog := []funcs.CatalogEntry{
			{
				Name:        "search",
				Description: "Search the web",
				Parameters: schema.Object(map[string]*schema.Schema{
					"query": schema.String("The search query"),
				}).Wire(),
			},
		}

		prompt := NewJSON().BuildFunctionSystemPrompt(catalog)

		assert.Contains(t, prompt, `"search"`)
		assert.Contains(t, prompt, `"Search the web"`)
		assert.Contains(t, prompt, `"functionCall"`)
		assert.Contains(t, prompt, "respond in plain prose")
	})
}

func TestJSON_ParseResponse(t *testing.T) {
	type expected struct {
		isCall    bool
		name      string
		arguments map[string]any
		reasoning string
		regular   string
	}

	tests := []struct {
		name     string
		text     string
		expected expected
	}{
		{
			name: "well-formed envelope",
			text: `{"functionCall": {"name": "search", "arguments": {"query": "weather"}}, "reasoning": "need data"}`,
			expected: expected{
				isCall:    true,
				name:      "search",
				arguments: map[string]any{"query": "weather"},
				reasoning: "need data",
			},
		},
		{
			name: "envelope embedded in prose",
			text: `Let me look that up. {"functionCall": {"name": "search", "arguments": {"query": "weather"}}}`,
			expected: expected{
				isCall:    true,
				name:      "search",
				arguments: map[string]any{"query": "weather"},
			},
		},
		{
			name: "nil arguments normalized to empty map",
			text: `{"functionCall": {"name": "refresh"}}`,
			expected: expected{
				isCall:    true,
				name:      "refresh",
				arguments: map[string]any{},
			},
		},
		{
			name: "plain prose",
			text: "The capital of France is Paris.",
			expected: expected{
				regular: "The capital of France is Paris.",
			},
		},
		{
			name: "malformed JSON degrades to full original text",
			text: `prefix {"functionCall": {"name": } suffix`,
			expected: expected{
				regular: `prefix {"functionCall": {"name": } suffix`,
			},
		},
		{
			name: "object without functionCall field",
			text: `{"answer": 42}`,
			expected: expected{
				regular: `{"answer": 42}`,
			},
		},
		{
			name: "empty function name treated as regular",
			text: `{"functionCall": {"name": "", "arguments": {}}}`,
			expected: expected{
				regular: `{"functionCall": {"name": "", "arguments": {}}}`,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed := NewJSON().ParseResponse(tc.text)

			require.NotNil(t, parsed)
			assert.Equal(t, tc.expected.isCall, parsed.IsFunctionCall())

			if tc.expected.isCall {
				require.NotNil(t, parsed.FunctionCall)
				assert.Equal(t, tc.expected.name, parsed.FunctionCall.Name)
				assert.Equal(t, tc.expected.arguments, parsed.FunctionCall.Arguments)
				assert.Equal(t, tc.expected.reasoning, parsed.Reasoning)
				return
			}
			assert.Nil(t, parsed.FunctionCall)
			assert.Equal(t, tc.expected.regular, parsed.RegularResponse)
		})
	}
}

func TestJSON_BuildStructuredRequest(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{
		"name": schema.String("The name"),
	})

	request := NewJSON().BuildStructuredRequest(s, "Describe Ada Lovelace.")

	assert.Contains(t, request, "valid JSON matching this schema")
	assert.Contains(t, request, "\n---\n")
	assert.Contains(t, request, "Describe Ada Lovelace.")
}
