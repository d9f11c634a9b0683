package llms_test

import (
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llmutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MessageFromTextParts(t *testing.T) {
	t.Parallel()

	mc := llms.MessageFromTextParts(llms.RoleHuman, "a", "b", "c")
	assert.Equal(t, llms.RoleHuman, mc.Role)
	require.Len(t, mc.Parts, 3)
	assert.Equal(t, llms.TextContent{Text: "a"}, mc.Parts[0])
	assert.Equal(t, llms.TextContent{Text: "c"}, mc.Parts[2])
}

func Test_Message_JSONAndContent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     llms.Message
		js      string
		content string
	}{
		{
			"text",
			llms.MessageFromTextParts(llms.RoleHuman, "a", "b", "c"),
			`{"role":"human","parts":[{"text":"a","type":"text"},{"text":"b","type":"text"},{"text":"c","type":"text"}]}`,
			`a
b
c
`,
		},
		{
			"binary",
			llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("image/png", []byte{0x00, 0x01, 0x02})),
			`{"role":"human","parts":[{"type":"binary","binary":{"data":"AAEC","mime_type":"image/png"}}]}`,
			`Binary: image/png
AAEC
`,
		},
		{
			"image",
			llms.MessageFromParts(llms.RoleHuman, llms.ImageURLPart("https://example.com/radar.png")),
			`{"role":"human","parts":[{"type":"image_url","image_url":{"url":"https://example.com/radar.png"}}]}`,
			`URL: https://example.com/radar.png
`,
		},
		{
			"image with detail",
			llms.MessageFromParts(llms.RoleHuman, llms.ImageURLWithDetailPart("https://example.com/radar.png", "low")),
			`{"role":"human","parts":[{"type":"image_url","image_url":{"url":"https://example.com/radar.png","detail":"low"}}]}`,
			`URL: https://example.com/radar.png
`,
		},
		{
			"tool call",
			llms.MessageFromParts(llms.RoleAI, llms.ToolCall{ID: "call_1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "get_alerts", Arguments: `{"state":"TX"}`}}),
			`{"role":"ai","parts":[{"type":"tool_call","tool_call":{"function":{"name":"get_alerts","arguments":"{\"state\":\"TX\"}"},"id":"call_1","type":"function"}}]}`,
			`Tool Call: {"type":"tool_call","tool_call":{"function":{"name":"get_alerts","arguments":"{\"state\":\"TX\"}"},"id":"call_1","type":"function"}}
`,
		},
		{
			"tool response",
			llms.MessageFromParts(llms.RoleAI, llms.ToolCallResponse{ToolCallID: "call_1", Name: "get_alerts", Content: "none active"}),
			`{"role":"ai","parts":[{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":"none active"}}]}`,
			`Response: {"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":"none active"}}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.js, llmutils.ToJSON(tt.msg))
			assert.Equal(t, tt.content, tt.msg.GetContent())
		})
	}
}
