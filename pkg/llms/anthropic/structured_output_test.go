package anthropic

import (
	"context"
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ToAnthropicOutputConfig(t *testing.T) {
	t.Parallel()

	boolFalse := false

	t.Run("skipped formats", func(t *testing.T) {
		t.Parallel()
		// Only json_schema formats with a schema produce an output config.
		assert.Nil(t, toAnthropicOutputConfig(nil))
		assert.Nil(t, toAnthropicOutputConfig(&schema.ResponseFormat{Type: "text"}))
		assert.Nil(t, toAnthropicOutputConfig(&schema.ResponseFormat{Type: "json_schema"}))
		assert.Nil(t, toAnthropicOutputConfig(&schema.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &schema.ResponseFormatJSONSchema{},
		}))
	})

	t.Run("object schema", func(t *testing.T) {
		t.Parallel()
		got := toAnthropicOutputConfig(&schema.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &schema.ResponseFormatJSONSchema{
				Schema: &schema.ResponseFormatJSONSchemaProperty{
					Type: "object",
					Properties: map[string]*schema.ResponseFormatJSONSchemaProperty{
						"summary":     {Type: "string"},
						"temperature": {Type: "integer"},
					},
					Required: []string{"summary"},
				},
			},
		})
		require.NotNil(t, got)
		require.NotEmpty(t, got.Format.Schema)
		assert.Equal(t, "object", got.Format.Schema["type"])
	})

	t.Run("schema conversion", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, convertToAnthropicSchema(nil))

		obj := convertToAnthropicSchema(&schema.ResponseFormatJSONSchemaProperty{
			Type: "object",
			Properties: map[string]*schema.ResponseFormatJSONSchemaProperty{
				"summary": {Type: "string"},
			},
			Required:             []string{"summary"},
			AdditionalProperties: &boolFalse,
		})
		require.NotNil(t, obj)
		assert.Equal(t, "object", obj["type"])
		assert.Contains(t, obj, "properties")
		assert.Contains(t, obj, "required")
		assert.Contains(t, obj, "additionalProperties")

		arr := convertToAnthropicSchema(&schema.ResponseFormatJSONSchemaProperty{
			Type:  "array",
			Items: &schema.ResponseFormatJSONSchemaProperty{Type: "string"},
		})
		require.NotNil(t, arr)
		assert.Equal(t, "array", arr["type"])
		assert.Contains(t, arr, "items")
	})
}

func newStructuredTestClient(t *testing.T) *LLM {
	t.Helper()
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" || apiKey == "fakekey" {
		t.Skip("ANTHROPIC_API_KEY not set")
	}

	llm, err := New(
		WithToken(apiKey),
		WithModel("claude-sonnet-4-5"),
	)
	require.NoError(t, err)
	return llm
}

func Test_StructuredOutputObjectSchema(t *testing.T) {
	t.Parallel()

	type forecast struct {
		Summary string `json:"summary" description:"One sentence forecast summary"`
	}
	responseFormat, err := schema.NewResponseFormat(reflect.TypeOf(forecast{}), true)
	require.NoError(t, err)

	llm := newStructuredTestClient(t)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a weather reporter."),
		llms.MessageFromTextParts(llms.RoleHuman, "Give a forecast for a sunny 72F day in Austin."),
	}

	rsp, err := llm.GenerateContent(context.Background(), content,
		llms.WithResponseFormat(responseFormat),
		llms.WithMaxTokens(256),
	)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	c1 := rsp.Choices[0]
	assert.Regexp(t, `"summary"`, strings.ToLower(c1.Content))

	var parsed forecast
	require.NoError(t, json.Unmarshal([]byte(c1.Content), &parsed))
	assert.NotEmpty(t, parsed.Summary)
}

func Test_StructuredOutputNestedSchema(t *testing.T) {
	type forecast struct {
		Conditions []string `json:"conditions" description:"Expected conditions, in order"`
		Summary    string   `json:"summary" description:"One sentence forecast summary"`
	}
	responseFormat, err := schema.NewResponseFormat(reflect.TypeOf(forecast{}), true)
	require.NoError(t, err)

	llm := newStructuredTestClient(t)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a weather reporter."),
		llms.MessageFromTextParts(llms.RoleHuman, "Give a forecast for a stormy day in Dallas."),
	}

	rsp, err := llm.GenerateContent(context.Background(), content,
		llms.WithResponseFormat(responseFormat),
		llms.WithMaxTokens(512),
	)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	c1 := rsp.Choices[0]
	assert.Regexp(t, `"conditions"`, strings.ToLower(c1.Content))

	var parsed forecast
	require.NoError(t, json.Unmarshal([]byte(c1.Content), &parsed))
	assert.NotEmpty(t, parsed.Conditions)
	assert.NotEmpty(t, parsed.Summary)
}
