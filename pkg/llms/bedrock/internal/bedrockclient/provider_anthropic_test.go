package bedrockclient

import (
	"encoding/base64"
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ProcessInputMessagesAnthropic(t *testing.T) {
	messages := []Message{
		{Role: llms.RoleSystem, Content: "You are a weather assistant.", Type: AnthropicMessageTypeText},
		{Role: llms.RoleHuman, Content: "Alerts in TX?", Type: AnthropicMessageTypeText},
		{Role: llms.RoleHuman, Content: "Keep it short.", Type: AnthropicMessageTypeText},
		{Role: llms.RoleAI, Type: AnthropicMessageTypeToolUse, ToolCallID: "call_1", ToolName: "get_alerts", ToolInput: `{"state":"TX"}`},
		{Role: llms.RoleTool, Type: AnthropicMessageTypeToolResult, ToolCallID: "call_1", Content: "Severe thunderstorm warning for TX"},
	}

	input, system, err := processInputMessagesAnthropic(messages)
	require.NoError(t, err)
	assert.Equal(t, "You are a weather assistant.", system)

	require.Len(t, input, 3)

	first := input[0]
	assert.Equal(t, AnthropicRoleUser, first.Role)
	require.Len(t, first.Content, 2)
	assert.Equal(t, "Alerts in TX?", first.Content[0].Text)
	assert.Equal(t, "Keep it short.", first.Content[1].Text)

	second := input[1]
	assert.Equal(t, AnthropicRoleAssistant, second.Role)
	require.Len(t, second.Content, 1)
	use := second.Content[0]
	assert.Equal(t, AnthropicMessageTypeToolUse, use.Type)
	assert.Equal(t, "call_1", use.ID)
	assert.Equal(t, "get_alerts", use.Name)
	assert.Equal(t, map[string]any{"state": "TX"}, use.Input)

	third := input[2]
	assert.Equal(t, AnthropicRoleUser, third.Role)
	require.Len(t, third.Content, 1)
	result := third.Content[0]
	assert.Equal(t, AnthropicMessageTypeToolResult, result.Type)
	assert.Equal(t, "call_1", result.ToolUseID)
	assert.Equal(t, "Severe thunderstorm warning for TX", result.Content)
}

func Test_ProcessInputMessagesAnthropic_SystemErrors(t *testing.T) {
	_, _, err := processInputMessagesAnthropic([]Message{
		{Role: llms.RoleSystem, Content: "one", Type: AnthropicMessageTypeText},
		{Role: llms.RoleHuman, Content: "hi", Type: AnthropicMessageTypeText},
		{Role: llms.RoleSystem, Content: "two", Type: AnthropicMessageTypeText},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple system prompts")

	_, _, err = processInputMessagesAnthropic([]Message{
		{Role: llms.RoleSystem, Content: "img", Type: AnthropicMessageTypeImage, MimeType: "image/png"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system prompt must be text")
}

func Test_GetAnthropicRole(t *testing.T) {
	tests := []struct {
		role     llms.Role
		expected string
	}{
		{llms.RoleSystem, AnthropicSystem},
		{llms.RoleAI, AnthropicRoleAssistant},
		{llms.RoleHuman, AnthropicRoleUser},
		{llms.RoleGeneric, AnthropicRoleUser},
		{llms.RoleTool, AnthropicRoleUser},
	}
	for _, tt := range tests {
		role, err := getAnthropicRole(tt.role)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, role, "role %s", tt.role)
	}

	_, err := getAnthropicRole(llms.Role("function"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role not supported")
}

func Test_GetAnthropicInputContent_Image(t *testing.T) {
	c := getAnthropicInputContent(Message{
		Role:     llms.RoleHuman,
		Type:     AnthropicMessageTypeImage,
		MimeType: "image/png",
		Content:  "rawbytes",
	})
	assert.Equal(t, AnthropicMessageTypeImage, c.Type)
	require.NotNil(t, c.Source)
	assert.Equal(t, "base64", c.Source.Type)
	assert.Equal(t, "image/png", c.Source.MediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("rawbytes")), c.Source.Data)
}

func Test_GetMaxTokens(t *testing.T) {
	assert.Equal(t, 2048, getMaxTokens(0, 2048))
	assert.Equal(t, 2048, getMaxTokens(-1, 2048))
	assert.Equal(t, 100, getMaxTokens(100, 2048))
}
