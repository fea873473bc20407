package structured

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-ai/spindle/internal/tt"
)

func TestExtractStreaming_ReportsPartials(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse(`{"name": "Ada", "age": 36}`)
	session.StreamChunkSize = 8

	var partials []any
	value, err := ExtractStreaming(context.Background(), session, "Describe Ada.", personSchema(), Options{
		OnPartial: func(v any) {
			partials = append(partials, v)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, value)

	// Every snapshot that could be repaired into valid JSON was reported, and
	// the last partial matches the final value.
	require.NotEmpty(t, partials)
	assert.Equal(t, value, partials[len(partials)-1])
}

func TestExtractStreaming_PartialFailuresAreSilent(t *testing.T) {
	// Chunk boundaries that split mid-token produce unparseable prefixes;
	// those are dropped without affecting the outcome.
	session := tt.NewMockSession().
		AddResponse(`{"name": "Ada", "age": 36}`)
	session.StreamChunkSize = 3

	value, err := ExtractStreaming(context.Background(), session, "Describe Ada.", personSchema(), Options{
		OnPartial: func(any) {},
	})

	require.NoError(t, err)
	assert.NotNil(t, value)
}

func TestExtractStreaming_RetryContractMatchesExtract(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse("prose only, no structure").
		AddResponse(`{"name": "Ada", "age": 36}`)

	value, err := ExtractStreaming(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, value)
	require.Equal(t, 2, session.CallCount())
	assert.Contains(t, session.CapturedPrompts[1], "previous response was invalid")
}

func TestExtractStreaming_Exhaustion(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse("nope").
		AddResponse("still nope")

	_, err := ExtractStreaming(context.Background(), session, "Describe Ada.", personSchema(), Options{MaxAttempts: 2})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
}

func TestExtractStreaming_TransportErrorSurfaces(t *testing.T) {
	session := tt.NewMockSession()
	session.Dispose()

	_, err := ExtractStreaming(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.Error(t, err)
}
