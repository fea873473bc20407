package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-ai/spindle"
	"github.com/spindle-ai/spindle/internal/tt"
	"github.com/spindle-ai/spindle/schema"
)

func personSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"name": schema.String("The name"),
		"age":  schema.Number("Age in years"),
	})
}

func TestExtract_FirstAttemptSucceeds(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse(`{"name": "Ada", "age": 36}`)

	value, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, value)
	require.Equal(t, 1, session.CallCount())
	assert.Contains(t, session.CapturedPrompts[0], "valid JSON matching this schema")
	assert.Contains(t, session.CapturedPrompts[0], "Describe Ada.")
}

func TestExtract_RetriesWithErrorFeedback(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse("Ada Lovelace was a mathematician.").
		AddResponse(`{"name": "Ada", "age": "thirty-six"}`).
		AddResponse(`{"name": "Ada", "age": 36}`)

	value, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, value)
	require.Equal(t, 3, session.CallCount())

	// First retry: no JSON was found.
	assert.Contains(t, session.CapturedPrompts[1], "previous response was invalid")
	assert.Contains(t, session.CapturedPrompts[1], "Try again.")

	// Second retry: validation failed at a specific field.
	assert.Contains(t, session.CapturedPrompts[2], "previous response was invalid")
	assert.Contains(t, session.CapturedPrompts[2], `"age"`)
}

func TestExtract_SuccessDoesNotConsumeRemainingAttempts(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse(`{"name": "Ada", "age": 36}`).
		AddResponse(`{"name": "never", "age": 0}`)

	_, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{MaxAttempts: 5})

	require.NoError(t, err)
	assert.Equal(t, 1, session.CallCount())
}

func TestExtract_Exhaustion(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse("no JSON here").
		AddResponse("still no JSON")

	_, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{MaxAttempts: 2})

	require.Error(t, err)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, spindle.ErrNoJSONFound)
	assert.Equal(t, 2, session.CallCount())
}

func TestExtract_SingleAttemptNeverRetries(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse("not structured").
		AddResponse(`{"name": "Ada", "age": 36}`)

	_, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{MaxAttempts: 1})

	require.Error(t, err)
	assert.Equal(t, 1, session.CallCount())
}

func TestExtract_SessionErrorSurfaces(t *testing.T) {
	transportErr := errors.New("connection reset")
	session := tt.NewMockSession().AddError(transportErr)

	_, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestExtract_FencedResponse(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse("```json\n{\"name\": \"Ada\", \"age\": 36}\n```")

	value, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, value)
}

func TestExtract_ProseAroundJSON(t *testing.T) {
	session := tt.NewMockSession().
		AddResponse(`Sure! Here is the data: {"name": "Ada", "age": 36} Let me know if you need more.`)

	value, err := Extract(context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, value)
}

func TestExtractInto(t *testing.T) {
	type person struct {
		Name string  `json:"name"`
		Age  float64 `json:"age"`
	}

	session := tt.NewMockSession().
		AddResponse(`{"name": "Ada", "age": 36}`)

	got, err := ExtractInto[person](context.Background(), session, "Describe Ada.", personSchema(), Options{})

	require.NoError(t, err)
	assert.Equal(t, person{Name: "Ada", Age: 36}, got)
}

func TestExtractInto_PropagatesExtractionError(t *testing.T) {
	type person struct {
		Name string `json:"name"`
	}

	session := tt.NewMockSession().AddResponse("no JSON")

	_, err := ExtractInto[person](context.Background(), session, "Describe Ada.", personSchema(), Options{MaxAttempts: 1})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
}
