package openai

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StructuredOutputObjectSchema(t *testing.T) {
	t.Parallel()

	type forecast struct {
		Summary string `json:"summary" description:"One sentence forecast summary"`
	}
	responseFormat, err := schema.NewResponseFormat(reflect.TypeOf(forecast{}), true)
	require.NoError(t, err)

	llm := newTestClient(
		t,
		WithModel("gpt-4o-2024-08-06"),
		WithResponseFormat(responseFormat),
	)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a weather reporter."),
		llms.MessageFromTextParts(llms.RoleGeneric, "Give a forecast for a sunny 72F day in Austin."),
	}

	rsp, err := llm.GenerateContent(context.Background(), content)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "\"summary\":", strings.ToLower(rsp.Choices[0].Content))
}

func Test_StructuredOutputNestedSchema(t *testing.T) {
	t.Parallel()

	type forecast struct {
		Conditions []string `json:"conditions" description:"Expected conditions, in order"`
		Summary    string   `json:"summary" description:"One sentence forecast summary"`
	}
	responseFormat, err := schema.NewResponseFormat(reflect.TypeOf(forecast{}), true)
	require.NoError(t, err)

	llm := newTestClient(
		t,
		WithModel("gpt-4o-2024-08-06"),
		WithResponseFormat(responseFormat),
	)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a weather reporter."),
		llms.MessageFromTextParts(llms.RoleGeneric, "Give a forecast for a stormy day in Dallas."),
	}

	rsp, err := llm.GenerateContent(context.Background(), content)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "\"conditions\":", strings.ToLower(rsp.Choices[0].Content))
}

func Test_StructuredOutputFunctionCalling(t *testing.T) {
	t.Parallel()
	llm := newTestClient(
		t,
		WithModel("gpt-4o-2024-08-06"),
	)

	type alertsArgs struct {
		State    string `json:"state" description:"Two-letter US state code"`
		Severity string `json:"severity" enum:"minor,moderate,severe"`
	}
	sc, err := schema.New(reflect.TypeOf(alertsArgs{}))
	require.NoError(t, err)

	toolList := []llms.Tool{
		{
			Type: string(openaiclient.ToolTypeFunction),
			Function: &llms.FunctionDefinition{
				Name:        "get_alerts",
				Description: "Get active weather alerts for a US state",
				Parameters:  sc.Parameters,
				Strict:      true,
			},
		},
	}

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant"),
		llms.MessageFromTextParts(llms.RoleGeneric, "Are there any severe weather alerts in Texas right now?"),
	}

	rsp, err := llm.GenerateContent(
		context.Background(),
		content,
		llms.WithTools(toolList),
	)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	c1 := rsp.Choices[0]
	require.NotEmpty(t, c1.ToolCalls)
	assert.Equal(t, "get_alerts", c1.ToolCalls[0].FunctionCall.Name)
	assert.Regexp(t, "\"state\":", c1.ToolCalls[0].FunctionCall.Arguments)
}
