package chatmodel

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_QueryRequest(t *testing.T) {
	t.Parallel()

	m := &QueryRequest{}
	err := m.ParseInput(`{"chatID":"chat123","input":"any alerts in TX?"}`)
	require.NoError(t, err)
	assert.Equal(t, "chat123", m.ChatID)
	assert.Equal(t, "any alerts in TX?", m.Input)
	assert.Equal(t, "any alerts in TX?", m.GetContent())

	err = m.ParseInput("{invalid json}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFailedUnmarshalInput)

	schema := &jsonschema.Schema{}
	m.JSONSchemaExtend(schema)
	assert.Equal(t, "Query Request", schema.Title)
}

func Test_InputRequest(t *testing.T) {
	t.Parallel()

	r := &InputRequest{}
	err := r.ParseInput(`{"input":"what is the forecast for Austin?"}`)
	require.NoError(t, err)
	assert.Equal(t, "what is the forecast for Austin?", r.Input)
	assert.Equal(t, "what is the forecast for Austin?", r.GetContent())

	err = r.ParseInput("{broken}")
	require.Error(t, err)

	ri := NewInputRequest("hourly forecast")
	assert.Equal(t, "hourly forecast", ri.Input)

	schema := &jsonschema.Schema{}
	r.JSONSchemaExtend(schema)
	assert.Equal(t, "Input Request", schema.Title)
}

func Test_OutputResult(t *testing.T) {
	t.Parallel()

	r := OutputResult{Content: "72F and sunny"}
	assert.Equal(t, "72F and sunny", r.GetContent())

	nr := NewOutputResult("no active alerts")
	assert.Equal(t, "no active alerts", nr.Content)
}
