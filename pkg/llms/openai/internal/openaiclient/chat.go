package openaiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

const defaultChatModel = DefaultChatModel

// FunctionCallBehavior is the behavior to use when calling functions.
type FunctionCallBehavior string

const (
	// FunctionCallBehaviorNone will not call any functions.
	FunctionCallBehaviorNone FunctionCallBehavior = "none"
	// FunctionCallBehaviorAuto will call functions automatically.
	FunctionCallBehaviorAuto FunctionCallBehavior = "auto"
)

// ChatRequest is a request to the chat completions endpoint.
type ChatRequest struct {
	Model       string         `json:"model"`
	Messages    []*ChatMessage `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
	TopP        float64        `json:"top_p,omitempty"`
	// MaxCompletionTokens is an upper bound for the number of tokens that can
	// be generated for a completion, including reasoning tokens.
	// The legacy max_tokens field is not supported by reasoning models.
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	N                   int            `json:"n,omitempty"`
	StopWords           []string       `json:"stop,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions `json:"stream_options,omitempty"`
	FrequencyPenalty    float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     float64        `json:"presence_penalty,omitempty"`
	Seed                int            `json:"seed,omitempty"`

	// ResponseFormat is the format of the response, e.g. json_schema for structured outputs.
	ResponseFormat *schema.ResponseFormat `json:"response_format,omitempty"`

	Tools []Tool `json:"tools,omitempty"`
	// ToolChoice is the choice of tool to use: "none", "auto" (the default
	// when tools are present), "required", or a specific tool.
	ToolChoice any `json:"tool_choice,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// PromptCacheKey groups requests for server-side prompt caching.
	PromptCacheKey string `json:"prompt_cache_key,omitempty"`
	// PromptCacheRetention is "in_memory" or "24h".
	PromptCacheRetention string `json:"prompt_cache_retention,omitempty"`

	// Deprecated: use ToolChoice instead.
	FunctionCallBehavior FunctionCallBehavior `json:"function_call,omitempty"`

	// StreamingFunc is a function to be called for each chunk of a streaming response.
	// Return an error to stop streaming early.
	StreamingFunc func(ctx context.Context, chunk []byte) error `json:"-"`
	// StreamingReasoningFunc receives reasoning and content chunks for models
	// that stream reasoning tokens separately.
	StreamingReasoningFunc func(ctx context.Context, reasoningChunk, chunk []byte) error `json:"-"`
}

// StreamOptions configures the behavior of streaming responses.
type StreamOptions struct {
	// IncludeUsage requests a final chunk with token usage for the whole request.
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// Tool is a tool the model may call.
type Tool struct {
	Type     ToolType           `json:"type"`
	Function FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a function the model may call.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Strict      bool               `json:"strict,omitempty"`
}

// ToolCall is a call to a tool requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type"`
	Function ToolFunction `json:"function"`
	// Index identifies the tool call across streamed fragments.
	Index *int `json:"index,omitempty"`
}

// ToolFunction is the function invoked by a tool call.
type ToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// FunctionCall is the legacy single-function call field.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is a message in a chat conversation.
type ChatMessage struct {
	// Role is one of "system", "user", "assistant", "tool".
	Role string
	// Content is the text content of the message.
	Content string
	// MultiContent carries multi-part content; when set it is marshaled as a
	// content array instead of a plain string.
	MultiContent []llms.ContentPart
	// Name is an optional participant name.
	Name string
	// ReasoningContent holds reasoning tokens for models that expose them.
	ReasoningContent string
	// FunctionCall is the legacy single-function call returned by the model.
	FunctionCall *FunctionCall
	// ToolCalls are the tool calls requested by the model.
	ToolCalls []ToolCall
	// ToolCallID links a tool result message to the call that produced it.
	ToolCallID string
}

type chatMessagePart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *chatMessageImage `json:"image_url,omitempty"`
}

type chatMessageImage struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessageWire struct {
	Role             string          `json:"role"`
	Content          json.RawMessage `json:"content,omitempty"`
	Name             string          `json:"name,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	FunctionCall     *FunctionCall   `json:"function_call,omitempty"`
	ToolCalls        []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
}

// MarshalJSON renders content as a plain string, or as a content-part array
// when MultiContent is set.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	wire := chatMessageWire{
		Role:         m.Role,
		Name:         m.Name,
		FunctionCall: m.FunctionCall,
		ToolCalls:    m.ToolCalls,
		ToolCallID:   m.ToolCallID,
	}

	var content any = m.Content
	if len(m.MultiContent) > 0 {
		parts := make([]chatMessagePart, 0, len(m.MultiContent))
		for _, part := range m.MultiContent {
			switch p := part.(type) {
			case llms.TextContent:
				parts = append(parts, chatMessagePart{Type: "text", Text: p.Text})
			case llms.ImageURLContent:
				parts = append(parts, chatMessagePart{
					Type:     "image_url",
					ImageURL: &chatMessageImage{URL: p.URL, Detail: p.Detail},
				})
			case llms.BinaryContent:
				parts = append(parts, chatMessagePart{
					Type:     "image_url",
					ImageURL: &chatMessageImage{URL: p.String()},
				})
			default:
				return nil, errors.Errorf("unsupported content part type %T", part)
			}
		}
		content = parts
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, errors.Wrap(err, "marshal content")
	}
	wire.Content = raw

	return json.Marshal(wire)
}

// UnmarshalJSON accepts content as a plain string or a content-part array.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var wire chatMessageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.WithStack(err)
	}

	*m = ChatMessage{
		Role:             wire.Role,
		Name:             wire.Name,
		ReasoningContent: wire.ReasoningContent,
		FunctionCall:     wire.FunctionCall,
		ToolCalls:        wire.ToolCalls,
		ToolCallID:       wire.ToolCallID,
	}

	content := bytes.TrimSpace(wire.Content)
	switch {
	case len(content) == 0 || bytes.Equal(content, []byte("null")):
		return nil
	case content[0] == '"':
		return errors.WithStack(json.Unmarshal(content, &m.Content))
	case content[0] == '[':
		var parts []chatMessagePart
		if err := json.Unmarshal(content, &parts); err != nil {
			return errors.WithStack(err)
		}
		for _, p := range parts {
			switch p.Type {
			case "text":
				m.MultiContent = append(m.MultiContent, llms.TextContent{Text: p.Text})
			case "image_url":
				if p.ImageURL != nil {
					m.MultiContent = append(m.MultiContent, llms.ImageURLContent{URL: p.ImageURL.URL, Detail: p.ImageURL.Detail})
				}
			default:
				return errors.Errorf("unsupported content part type %q", p.Type)
			}
		}
		return nil
	default:
		return errors.Errorf("unsupported content encoding: %s", string(content))
	}
}

// FinishReason is the reason the model stopped generating tokens.
type FinishReason string

// ChatCompletionChoice is a choice in a chat completion response.
type ChatCompletionChoice struct {
	Index        int          `json:"index"`
	Message      ChatMessage  `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
}

// ChatUsage is the token accounting for a chat completion.
type ChatUsage struct {
	CompletionTokens        int64                   `json:"completion_tokens"`
	PromptTokens            int64                   `json:"prompt_tokens"`
	TotalTokens             int64                   `json:"total_tokens"`
	PromptTokensDetails     PromptTokensDetails     `json:"prompt_tokens_details"`
	CompletionTokensDetails CompletionTokensDetails `json:"completion_tokens_details"`
}

// PromptTokensDetails breaks down the prompt tokens.
type PromptTokensDetails struct {
	AudioTokens int64 `json:"audio_tokens"`
	// CachedTokens is the number of prompt tokens served from cache.
	CachedTokens int64 `json:"cached_tokens"`
}

// CompletionTokensDetails breaks down the completion tokens.
type CompletionTokensDetails struct {
	AudioTokens     int64 `json:"audio_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
}

// ChatCompletionResponse is a response from the chat completions endpoint.
type ChatCompletionResponse struct {
	ID                string                  `json:"id,omitempty"`
	Object            string                  `json:"object,omitempty"`
	Created           int64                   `json:"created,omitempty"`
	Model             string                  `json:"model,omitempty"`
	Choices           []*ChatCompletionChoice `json:"choices"`
	Usage             ChatUsage               `json:"usage"`
	SystemFingerprint string                  `json:"system_fingerprint,omitempty"`
}

// StreamedChatResponsePayload is a single chunk of a streamed chat completion.
type StreamedChatResponsePayload struct {
	ID      string               `json:"id,omitempty"`
	Object  string               `json:"object,omitempty"`
	Created float64              `json:"created,omitempty"`
	Model   string               `json:"model,omitempty"`
	Choices []StreamedChatChoice `json:"choices"`
	// Usage arrives in the final chunk when stream_options.include_usage is set.
	Usage *ChatUsage   `json:"usage,omitempty"`
	Error *StreamError `json:"error,omitempty"`
}

// StreamedChatChoice is a choice fragment within a streamed chunk.
type StreamedChatChoice struct {
	Index        int               `json:"index"`
	Delta        StreamedChatDelta `json:"delta"`
	FinishReason FinishReason      `json:"finish_reason,omitempty"`
}

// StreamedChatDelta carries the incremental fields of a streamed choice.
type StreamedChatDelta struct {
	Role             string        `json:"role,omitempty"`
	Content          string        `json:"content,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	FunctionCall     *FunctionCall `json:"function_call,omitempty"`
	ToolCalls        []ToolCall    `json:"tool_calls,omitempty"`
}

// StreamError is an error event delivered inside a stream.
type StreamError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    any    `json:"code,omitempty"`
}

func (c *Client) createChat(ctx context.Context, payload *ChatRequest) (*ChatCompletionResponse, error) {
	if payload.StreamingFunc != nil || payload.StreamingReasoningFunc != nil {
		payload.Stream = true
		if payload.StreamOptions == nil {
			payload.StreamOptions = &StreamOptions{IncludeUsage: true}
		}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	u := c.buildURL("/chat/completions", payload.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.setHeaders(req)

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if r.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API returned unexpected status code: %d", r.StatusCode)

		var errResp errorMessage
		if err := json.NewDecoder(r.Body).Decode(&errResp); err != nil {
			return nil, errors.New(msg) // nolint:goerr113
		}
		return nil, errors.Errorf("%s: %s", msg, errResp.Error.Message) // nolint:goerr113
	}

	if payload.Stream {
		return parseStreamingChatResponse(ctx, r, payload)
	}

	var response ChatCompletionResponse
	if err := json.NewDecoder(r.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &response, nil
}

// nolint:cyclop
func parseStreamingChatResponse(ctx context.Context, r *http.Response, payload *ChatRequest) (*ChatCompletionResponse, error) {
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	response := &ChatCompletionResponse{
		Choices: []*ChatCompletionChoice{{}},
	}
	var content strings.Builder
	var reasoning strings.Builder
	var functionCall *FunctionCall
	var toolCalls []ToolCall

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk StreamedChatResponsePayload
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, errors.Wrap(err, "decode stream payload")
		}
		if chunk.Error != nil {
			return nil, errors.Newf("stream error: %s", chunk.Error.Message)
		}
		if chunk.ID != "" {
			response.ID = chunk.ID
		}
		if chunk.Model != "" {
			response.Model = chunk.Model
		}
		if chunk.Usage != nil {
			response.Usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			response.Choices[0].FinishReason = choice.FinishReason
		}

		delta := choice.Delta
		if delta.Role != "" {
			response.Choices[0].Message.Role = delta.Role
		}
		if delta.FunctionCall != nil {
			if functionCall == nil {
				functionCall = &FunctionCall{}
			}
			functionCall.Name += delta.FunctionCall.Name
			functionCall.Arguments += delta.FunctionCall.Arguments
		}
		for _, tc := range delta.ToolCalls {
			toolCalls = mergeToolCallDelta(toolCalls, tc)
		}
		content.WriteString(delta.Content)
		reasoning.WriteString(delta.ReasoningContent)

		if payload.StreamingReasoningFunc != nil && (delta.ReasoningContent != "" || delta.Content != "") {
			if err := payload.StreamingReasoningFunc(ctx, []byte(delta.ReasoningContent), []byte(delta.Content)); err != nil {
				return nil, errors.Wrap(err, "streaming reasoning func")
			}
		} else if payload.StreamingFunc != nil && delta.Content != "" {
			if err := payload.StreamingFunc(ctx, []byte(delta.Content)); err != nil {
				return nil, errors.Wrap(err, "streaming func")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read stream")
	}

	msg := &response.Choices[0].Message
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	msg.Content = content.String()
	msg.ReasoningContent = reasoning.String()
	msg.FunctionCall = functionCall
	msg.ToolCalls = toolCalls

	return response, nil
}

// mergeToolCallDelta folds a streamed tool call fragment into the accumulated
// calls, matching fragments by index.
func mergeToolCallDelta(acc []ToolCall, delta ToolCall) []ToolCall {
	if delta.Index != nil {
		for i := range acc {
			if acc[i].Index != nil && *acc[i].Index == *delta.Index {
				if delta.ID != "" {
					acc[i].ID = delta.ID
				}
				if delta.Type != "" {
					acc[i].Type = delta.Type
				}
				acc[i].Function.Name += delta.Function.Name
				acc[i].Function.Arguments += delta.Function.Arguments
				return acc
			}
		}
	}
	return append(acc, delta)
}
