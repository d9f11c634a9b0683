package googleai

import (
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertCandidates(t *testing.T) {
	t.Parallel()

	candidates := []*genai.Candidate{
		{
			Content: &genai.Content{
				Role: RoleModel,
				Parts: []*genai.Part{
					{Text: "checking the forecast"},
					{FunctionCall: &genai.FunctionCall{
						Name: "get_weather",
						Args: map[string]any{"location": "Austin"},
					}},
					{FunctionCall: &genai.FunctionCall{
						ID:   "call_abc",
						Name: "get_alerts",
						Args: map[string]any{"state": "TX"},
					}},
				},
			},
			FinishReason: genai.FinishReasonStop,
		},
	}
	usage := &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     12,
		CandidatesTokenCount: 34,
		TotalTokenCount:      46,
	}

	resp, err := convertCandidates(candidates, usage)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	choice := resp.Choices[0]
	assert.Equal(t, "checking the forecast", choice.Content)
	assert.Equal(t, string(genai.FinishReasonStop), choice.StopReason)

	require.Len(t, choice.ToolCalls, 2)
	assert.Equal(t, "get_weather_0", choice.ToolCalls[0].ID)
	assert.Equal(t, "function", choice.ToolCalls[0].Type)
	assert.Equal(t, "get_weather", choice.ToolCalls[0].FunctionCall.Name)
	assert.JSONEq(t, `{"location":"Austin"}`, choice.ToolCalls[0].FunctionCall.Arguments)
	assert.Equal(t, "call_abc", choice.ToolCalls[1].ID)

	assert.Equal(t, int32(12), choice.GenerationInfo["InputTokens"])
	assert.Equal(t, int32(34), choice.GenerationInfo["OutputTokens"])
	assert.Equal(t, int32(46), choice.GenerationInfo["TotalTokens"])
}

func TestConvertCandidatesPerCandidate(t *testing.T) {
	t.Parallel()

	candidates := []*genai.Candidate{
		{
			Content: &genai.Content{
				Role: RoleModel,
				Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{
						Name: "get_weather",
						Args: map[string]any{"location": "Dallas"},
					}},
				},
			},
		},
		{
			Content: &genai.Content{
				Role: RoleModel,
				Parts: []*genai.Part{
					{Text: "thinking it over", Thought: true},
					{Text: "no tools needed"},
				},
			},
		},
	}

	resp, err := convertCandidates(candidates, nil)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 2)

	require.Len(t, resp.Choices[0].ToolCalls, 1)
	assert.Empty(t, resp.Choices[1].ToolCalls)
	assert.Equal(t, "no tools needed", resp.Choices[1].Content)
	assert.Equal(t, "thinking it over", resp.Choices[1].ReasoningContent)
}

func TestConvertPartsToolRoundTrip(t *testing.T) {
	t.Parallel()

	parts, err := convertParts([]llms.ContentPart{
		llms.ToolCall{
			ID:   "get_weather_0",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "get_weather",
				Arguments: `{"location":"Austin"}`,
			},
		},
		llms.ToolCallResponse{
			ToolCallID: "get_weather_0",
			Name:       "get_weather",
			Content:    "72F and sunny",
		},
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	call := parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "get_weather_0", call.ID)
	assert.Equal(t, "get_weather", call.Name)
	assert.Equal(t, map[string]any{"location": "Austin"}, call.Args)

	fr := parts[1].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "get_weather_0", fr.ID)
	assert.Equal(t, "get_weather", fr.Name)
	assert.Equal(t, map[string]any{"response": "72F and sunny"}, fr.Response)
}

func TestConvertContentRoles(t *testing.T) {
	t.Parallel()

	c, err := convertContent(llms.MessageFromTextParts(llms.RoleAI, "hi"))
	require.NoError(t, err)
	assert.Equal(t, RoleModel, c.Role)

	c, err = convertContent(llms.MessageFromTextParts(llms.RoleGeneric, "hi"))
	require.NoError(t, err)
	assert.Equal(t, RoleUser, c.Role)

	_, err = convertContent(llms.Message{Role: llms.Role("bogus")})
	assert.Error(t, err)
}
