package bridge

import (
	"context"
	"testing"

	"github.com/effective-security/mcpbridge/chatmodel"
	"github.com/effective-security/mcpbridge/encoding"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherVerdict struct {
	Summary string `json:"summary"`
	Severe  bool   `json:"severe"`
}

func Test_Typed_ProcessQuery(t *testing.T) {
	server := newFakeServer(alertsTool())
	llm := &scriptedLLM{responses: []*llms.ContentResponse{
		textResponse("```json\n{\"summary\":\"Flood watch in TX\",\"severe\":true}\n```"),
	}}
	b := newTestBridge(t, llm, server)

	typed, err := NewTyped[weatherVerdict](b, encoding.ModeJSON)
	require.NoError(t, err)
	assert.Same(t, b, typed.Bridge())

	out, err := typed.ProcessQuery(context.Background(), "How bad is the weather in TX?")
	require.NoError(t, err)
	assert.Equal(t, "Flood watch in TX", out.Summary)
	assert.True(t, out.Severe)

	// the output schema rides in the system message
	first := llm.payloads[0]
	require.Len(t, first, 2)
	assert.Equal(t, llms.RoleSystem, first[0].Role)
	instructions := partText(first[0])
	assert.Contains(t, instructions, "# OUTPUT SCHEMA")
	assert.Contains(t, instructions, "Respond with JSON")
}

func Test_Typed_SystemPromptPrecedesSchema(t *testing.T) {
	server := newFakeServer(alertsTool())
	llm := &scriptedLLM{responses: []*llms.ContentResponse{
		textResponse(`{"summary":"clear","severe":false}`),
	}}
	b := newTestBridge(t, llm, server, WithSystemPrompt("You are a weather assistant."))

	typed, err := NewTyped[weatherVerdict](b, encoding.ModeJSON)
	require.NoError(t, err)

	_, err = typed.ProcessQuery(context.Background(), "How is the weather?")
	require.NoError(t, err)

	instructions := partText(llm.payloads[0][0])
	assert.Contains(t, instructions, "You are a weather assistant.")
	assert.Contains(t, instructions, "# OUTPUT SCHEMA")

	// plain queries on the same bridge carry no schema
	llm.responses = append(llm.responses, textResponse("sunny"))
	_, err = b.ProcessQuery(context.Background(), "And now?")
	require.NoError(t, err)
	assert.NotContains(t, partText(llm.payloads[1][0]), "# OUTPUT SCHEMA")
}

func Test_Typed_ParseError(t *testing.T) {
	server := newFakeServer(alertsTool())
	llm := &scriptedLLM{responses: []*llms.ContentResponse{
		textResponse("I cannot answer that."),
	}}
	b := newTestBridge(t, llm, server)

	typed, err := NewTyped[weatherVerdict](b, encoding.ModeJSON)
	require.NoError(t, err)

	_, err = typed.ProcessQuery(context.Background(), "How bad is the weather?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse LLM response")
	assert.ErrorIs(t, err, chatmodel.ErrFailedUnmarshalOutput)
}

func Test_Typed_UnknownMode(t *testing.T) {
	b := New(&scriptedLLM{})
	_, err := NewTyped[weatherVerdict](b, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create encoder")
}
