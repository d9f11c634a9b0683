package llms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

type unknownContent struct{}

func (unknownContent) isPart() {}

func Test_Message_UnmarshalYAML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr bool
	}{
		{
			name: "single text part",
			input: `role: user
text: What are the weather alerts for Texas?
`,
			want: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "What are the weather alerts for Texas?"},
				},
			},
		},
		{
			name: "multiple parts",
			input: `role: user
parts:
- type: text
  text: Describe this radar image.
- type: image_url
  image_url:
    url: http://example.com/radar.png
- type: image_url
  image_url:
    url: http://example.com/radar.png
    detail: high
- type: binary
  binary:
    mime_type: application/octet-stream
    data: YWxlcnQgZGF0YQ==
- tool_response:
    tool_call_id: call_1
    name: get_alerts
    content: Severe thunderstorm warning
  type: tool_response
`,
			want: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "Describe this radar image."},
					ImageURLContent{URL: "http://example.com/radar.png"},
					ImageURLContent{URL: "http://example.com/radar.png", Detail: "high"},
					BinaryContent{
						MIMEType: "application/octet-stream",
						Data:     []byte("alert data"),
					},
					ToolCallResponse{ToolCallID: "call_1", Name: "get_alerts", Content: "Severe thunderstorm warning"},
				},
			},
		},
		{
			name: "unknown content type",
			input: `
role: user
parts:
  - type: unknown
    data: some data
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var mc Message
			err := yaml.Unmarshal([]byte(tt.input), &mc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mc)
		})
	}
}

func Test_Message_MarshalYAML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input Message
		want  string
	}{
		{
			name: "single text part",
			input: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "What are the weather alerts for Texas?"},
				},
			},
			want: `role: user
text: What are the weather alerts for Texas?
`,
		},
		{
			name: "multiple parts",
			input: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "Describe this radar image."},
					ImageURLContent{URL: "http://example.com/radar.png"},
					BinaryContent{
						MIMEType: "application/octet-stream",
						Data:     []byte("alert data"),
					},
					ToolCallResponse{
						ToolCallID: "call_1",
						Name:       "get_alerts",
						Content:    "Severe thunderstorm warning",
					},
				},
			},
			want: `parts:
- text: Describe this radar image.
  type: text
- image_url:
    url: http://example.com/radar.png
  type: image_url
- binary:
    data: YWxlcnQgZGF0YQ==
    mime_type: application/octet-stream
  type: binary
- tool_response:
    content: Severe thunderstorm warning
    name: get_alerts
    tool_call_id: call_1
  type: tool_response
role: user
`,
		},
		{
			name: "unknown content type",
			input: Message{
				Role: "user",
				Parts: []ContentPart{
					unknownContent{},
				},
			},
			want: "parts:\n- {}\nrole: user\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := yaml.Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func Test_Message_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr bool
	}{
		{
			name:  "single text part",
			input: `{"role":"user","text":"What are the weather alerts for Texas?"}`,
			want: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "What are the weather alerts for Texas?"},
				},
			},
		},
		{
			name:  "multiple parts",
			input: `{"role":"user","parts":[{"text":"Describe this radar image.","type":"text"},{"type":"image_url","image_url":{"url":"http://example.com/radar.png"}},{"type":"binary","binary":{"data":"YWxlcnQgZGF0YQ==","mime_type":"application/octet-stream"}}]}`,
			want: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "Describe this radar image."},
					ImageURLContent{URL: "http://example.com/radar.png"},
					BinaryContent{
						MIMEType: "application/octet-stream",
						Data:     []byte("alert data"),
					},
				},
			},
		},
		{
			name:    "unknown content type",
			input:   `{"role":"user","parts":[{"type":"unknown","data":"some data"}]}`,
			wantErr: true,
		},
		{
			name:  "tool call",
			input: `{"role":"assistant","parts":[{"type":"text","text":"Checking the alerts."},{"type":"tool_call","tool_call":{"id":"call_1","type":"function","function":{"name":"get_alerts","arguments":"{ \"state\": \"TX\" }"}}}]}`,
			want: Message{
				Role: "assistant",
				Parts: []ContentPart{
					TextContent{Text: "Checking the alerts."},
					ToolCall{
						ID:           "call_1",
						Type:         "function",
						FunctionCall: &FunctionCall{Name: "get_alerts", Arguments: `{ "state": "TX" }`},
					},
				},
			},
		},
		{
			name:  "tool response",
			input: `{"role":"user","parts":[{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":"Severe thunderstorm warning"}}]}`,
			want: Message{
				Role: "user",
				Parts: []ContentPart{
					ToolCallResponse{ToolCallID: "call_1", Name: "get_alerts", Content: "Severe thunderstorm warning"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var mc Message
			err := mc.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mc)
		})
	}
}

func Test_Message_MarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input Message
		want  string
	}{
		{
			name: "single text part",
			input: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "What are the weather alerts for Texas?"},
				},
			},
			want: `{"role":"user","text":"What are the weather alerts for Texas?"}`,
		},
		{
			name: "multiple parts",
			input: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "Describe this radar image."},
					ImageURLContent{URL: "http://example.com/radar.png"},
					BinaryContent{
						MIMEType: "application/octet-stream",
						Data:     []byte("alert data"),
					},
				},
			},
			want: `{"role":"user","parts":[{"text":"Describe this radar image.","type":"text"},{"type":"image_url","image_url":{"url":"http://example.com/radar.png"}},{"type":"binary","binary":{"data":"YWxlcnQgZGF0YQ==","mime_type":"application/octet-stream"}}]}`,
		},
		{
			name: "unknown content type",
			input: Message{
				Role: "user",
				Parts: []ContentPart{
					unknownContent{},
				},
			},
			want: `{"role":"user","parts":[{}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := json.Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

// Round-trips messages through both JSON and YAML and checks they come back
// identical; a subset also pins the exact encoded form.
func Test_Message_Roundtrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		in           Message
		assertedJSON string
		assertedYAML string
	}{
		{
			name: "single text part",
			in: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "What are the weather alerts for Texas?"},
				},
			},
			assertedJSON: `{"role":"user","text":"What are the weather alerts for Texas?"}`,
			assertedYAML: "role: user\ntext: What are the weather alerts for Texas?\n",
		},
		{
			name: "mixed parts",
			in: Message{
				Role: "user",
				Parts: []ContentPart{
					TextContent{Text: "Describe this radar image."},
					ImageURLContent{URL: "http://example.com/radar.png", Detail: "low"},
					BinaryContent{
						MIMEType: "application/octet-stream",
						Data:     []byte("alert data"),
					},
				},
			},
			assertedYAML: `parts:
- text: Describe this radar image.
  type: text
- image_url:
    detail: low
    url: http://example.com/radar.png
  type: image_url
- binary:
    data: YWxlcnQgZGF0YQ==
    mime_type: application/octet-stream
  type: binary
role: user
`,
		},
		{
			name: "single tool call",
			in: Message{
				Role: "assistant",
				Parts: []ContentPart{
					ToolCall{Type: "function", ID: "call_1", FunctionCall: &FunctionCall{Name: "get_alerts", Arguments: `{ "state": "TX" }`}},
				},
			},
		},
		{
			name: "parallel tool calls",
			in: Message{
				Role: "assistant",
				Parts: []ContentPart{
					ToolCall{Type: "function", ID: "call_1", FunctionCall: &FunctionCall{Name: "get_alerts", Arguments: `{ "state": "TX" }`}},
					ToolCall{Type: "function", ID: "call_2", FunctionCall: &FunctionCall{Name: "get_alerts", Arguments: `{ "state": "CA" }`}},
				},
			},
			assertedJSON: `{"role":"assistant","parts":[{"type":"tool_call","tool_call":{"function":{"name":"get_alerts","arguments":"{ \"state\": \"TX\" }"},"id":"call_1","type":"function"}},{"type":"tool_call","tool_call":{"function":{"name":"get_alerts","arguments":"{ \"state\": \"CA\" }"},"id":"call_2","type":"function"}}]}`,
			assertedYAML: `parts:
- tool_call:
    function:
      arguments: '{ "state": "TX" }'
      name: get_alerts
    id: call_1
    type: function
  type: tool_call
- tool_call:
    function:
      arguments: '{ "state": "CA" }'
      name: get_alerts
    id: call_2
    type: function
  type: tool_call
role: assistant
`,
		},
		{
			name: "tool response",
			in: Message{
				Role: "user",
				Parts: []ContentPart{
					ToolCallResponse{ToolCallID: "call_1", Name: "get_alerts", Content: "Severe thunderstorm warning"},
				},
			},
		},
		{
			name: "multi-tool response",
			in: Message{
				Role: "user",
				Parts: []ContentPart{
					ToolCallResponse{ToolCallID: "call_1", Name: "get_alerts", Content: "Severe thunderstorm warning"},
					ToolCallResponse{ToolCallID: "call_2", Name: "get_forecast", Content: "Sunny, 25C"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jsonBytes, err := json.Marshal(tt.in)
			require.NoError(t, err)
			if tt.assertedJSON != "" {
				assert.Equal(t, tt.assertedJSON, string(jsonBytes))
			}
			var mc Message
			require.NoError(t, mc.UnmarshalJSON(jsonBytes))
			assert.Equal(t, tt.in, mc)

			yamlBytes, err := yaml.Marshal(tt.in)
			require.NoError(t, err)
			if tt.assertedYAML != "" {
				assert.Equal(t, tt.assertedYAML, string(yamlBytes))
			}
			mc = Message{}
			require.NoError(t, yaml.Unmarshal(yamlBytes, &mc))
			assert.Equal(t, tt.in, mc)
		})
	}
}

func Test_TextContent_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    TextContent
		wantErr bool
	}{
		{
			name:  "valid text content",
			input: `{"type":"text","text":"final answer"}`,
			want:  TextContent{Text: "final answer"},
		},
		{
			name:    "wrong type",
			input:   `{"type":"image_url","text":"final answer"}`,
			wantErr: true,
		},
		{
			name:    "missing type field",
			input:   `{"text":"final answer"}`,
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			input:   `{"type":"text","text":"final answer"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var tc TextContent
			err := tc.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tc)
		})
	}
}

func Test_ImageURLContent_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    ImageURLContent
		wantErr bool
	}{
		{
			name:  "valid image URL content",
			input: `{"type":"image_url","image_url":{"url":"http://example.com/radar.png"}}`,
			want:  ImageURLContent{URL: "http://example.com/radar.png"},
		},
		{
			name:  "image URL with detail",
			input: `{"type":"image_url","image_url":{"url":"http://example.com/radar.png","detail":"high"}}`,
			want:  ImageURLContent{URL: "http://example.com/radar.png", Detail: "high"},
		},
		{
			name:    "missing type field",
			input:   `{"image_url":{"url":"http://example.com/radar.png"}}`,
			wantErr: true,
		},
		{
			name:    "missing image_url field",
			input:   `{"type":"image_url"}`,
			wantErr: true,
		},
		{
			name:    "image_url not an object",
			input:   `{"type":"image_url","image_url":"not an object"}`,
			wantErr: true,
		},
		{
			name:    "missing url field",
			input:   `{"type":"image_url","image_url":{"detail":"high"}}`,
			wantErr: true,
		},
		{
			name:    "url not a string",
			input:   `{"type":"image_url","image_url":{"url":123}}`,
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			input:   `{"type":"image_url","image_url":{"url":"http://example.com/radar.png"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var iuc ImageURLContent
			err := iuc.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, iuc)
		})
	}
}

func Test_BinaryContent_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    BinaryContent
		wantErr bool
	}{
		{
			name:  "valid binary content",
			input: `{"type":"binary","binary":{"mime_type":"application/octet-stream","data":"YWxlcnQgZGF0YQ=="}}`,
			want:  BinaryContent{MIMEType: "application/octet-stream", Data: []byte("alert data")},
		},
		{
			name:    "wrong type",
			input:   `{"type":"text","binary":{"mime_type":"application/octet-stream","data":"YWxlcnQgZGF0YQ=="}}`,
			wantErr: true,
		},
		{
			name:    "missing binary field",
			input:   `{"type":"binary"}`,
			wantErr: true,
		},
		{
			name:    "binary not an object",
			input:   `{"type":"binary","binary":"not an object"}`,
			wantErr: true,
		},
		{
			name:    "missing mime_type field",
			input:   `{"type":"binary","binary":{"data":"YWxlcnQgZGF0YQ=="}}`,
			wantErr: true,
		},
		{
			name:    "missing data field",
			input:   `{"type":"binary","binary":{"mime_type":"application/octet-stream"}}`,
			wantErr: true,
		},
		{
			name:    "mime_type not a string",
			input:   `{"type":"binary","binary":{"mime_type":123,"data":"YWxlcnQgZGF0YQ=="}}`,
			wantErr: true,
		},
		{
			name:    "data not a string",
			input:   `{"type":"binary","binary":{"mime_type":"application/octet-stream","data":123}}`,
			wantErr: true,
		},
		{
			name:    "invalid base64 data",
			input:   `{"type":"binary","binary":{"mime_type":"application/octet-stream","data":"invalid-base64!"}}`,
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			input:   `{"type":"binary","binary":{"mime_type":"application/octet-stream","data":"YWxlcnQgZGF0YQ=="}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var bc BinaryContent
			err := bc.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bc)
		})
	}
}

func Test_ToolCall_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    ToolCall
		wantErr bool
	}{
		{
			name:  "valid tool call with function",
			input: `{"type":"tool_call","tool_call":{"id":"call_1","type":"function","function":{"name":"get_alerts","arguments":"{ \"state\": \"TX\" }"}}}`,
			want:  ToolCall{ID: "call_1", Type: "function", FunctionCall: &FunctionCall{Name: "get_alerts", Arguments: `{ "state": "TX" }`}},
		},
		{
			name:  "tool call without function",
			input: `{"type":"tool_call","tool_call":{"id":"call_1","type":"function"}}`,
			want:  ToolCall{ID: "call_1", Type: "function", FunctionCall: &FunctionCall{}},
		},
		{
			name:    "missing type field",
			input:   `{"tool_call":{"id":"call_1","type":"function","function":{"name":"get_alerts","arguments":"{}"}}}`,
			wantErr: true,
		},
		{
			name:    "missing tool_call field",
			input:   `{"type":"tool_call"}`,
			wantErr: true,
		},
		{
			name:    "tool_call not an object",
			input:   `{"type":"tool_call","tool_call":"not an object"}`,
			wantErr: true,
		},
		{
			name:    "missing id field",
			input:   `{"type":"tool_call","tool_call":{"type":"function","function":{"name":"get_alerts","arguments":"{}"}}}`,
			wantErr: true,
		},
		{
			name:    "missing type field in tool_call",
			input:   `{"type":"tool_call","tool_call":{"id":"call_1","function":{"name":"get_alerts","arguments":"{}"}}}`,
			wantErr: true,
		},
		{
			name:    "id not a string",
			input:   `{"type":"tool_call","tool_call":{"id":123,"type":"function","function":{"name":"get_alerts","arguments":"{}"}}}`,
			wantErr: true,
		},
		{
			name:    "type not a string in tool_call",
			input:   `{"type":"tool_call","tool_call":{"id":"call_1","type":123,"function":{"name":"get_alerts","arguments":"{}"}}}`,
			wantErr: true,
		},
		{
			name:  "function not an object",
			input: `{"type":"tool_call","tool_call":{"id":"call_1","type":"function","function":"invalid function"}}`,
			want:  ToolCall{ID: "call_1", Type: "function", FunctionCall: &FunctionCall{}},
		},
		{
			name:    "truncated JSON",
			input:   `{"type":"tool_call","tool_call":{"id":"call_1","type":"function","function":{"name":"get_alerts","arguments":"{}"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var tc ToolCall
			err := tc.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tc)
		})
	}
}

func Test_ToolCallResponse_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    ToolCallResponse
		wantErr bool
	}{
		{
			name:  "valid tool call response",
			input: `{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":"Severe thunderstorm warning"}}`,
			want:  ToolCallResponse{ToolCallID: "call_1", Name: "get_alerts", Content: "Severe thunderstorm warning"},
		},
		{
			name:    "wrong type",
			input:   `{"type":"tool_call","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":"ok"}}`,
			wantErr: true,
		},
		{
			name:    "missing tool_response field",
			input:   `{"type":"tool_response"}`,
			wantErr: true,
		},
		{
			name:    "tool_response not an object",
			input:   `{"type":"tool_response","tool_response":"not an object"}`,
			wantErr: true,
		},
		{
			name:    "missing tool_call_id field",
			input:   `{"type":"tool_response","tool_response":{"name":"get_alerts","content":"ok"}}`,
			wantErr: true,
		},
		{
			name:    "missing name field",
			input:   `{"type":"tool_response","tool_response":{"tool_call_id":"call_1","content":"ok"}}`,
			wantErr: true,
		},
		{
			name:    "missing content field",
			input:   `{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts"}}`,
			wantErr: true,
		},
		{
			name:    "tool_call_id not a string",
			input:   `{"type":"tool_response","tool_response":{"tool_call_id":123,"name":"get_alerts","content":"ok"}}`,
			wantErr: true,
		},
		{
			name:    "name not a string",
			input:   `{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":123,"content":"ok"}}`,
			wantErr: true,
		},
		{
			name:    "content not a string",
			input:   `{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":123}}`,
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			input:   `{"type":"tool_response","tool_response":{"tool_call_id":"call_1","name":"get_alerts","content":"ok"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var tcr ToolCallResponse
			err := tcr.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tcr)
		})
	}
}
