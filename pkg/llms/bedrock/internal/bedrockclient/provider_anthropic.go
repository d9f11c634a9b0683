package bedrockclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
)

// Wire format per the Anthropic messages API as exposed by Bedrock:
// https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-anthropic-claude-messages.html

// AnthropicLatestVersion is the anthropic_version value Bedrock expects.
const AnthropicLatestVersion = "bedrock-2023-05-31"

// Role values in the anthropic wire format.
const (
	AnthropicSystem        = "system"
	AnthropicRoleUser      = "user"
	AnthropicRoleAssistant = "assistant"
)

// Content block types in the anthropic wire format.
const (
	AnthropicMessageTypeText       = "text"
	AnthropicMessageTypeImage      = "image"
	AnthropicMessageTypeToolUse    = "tool_use"
	AnthropicMessageTypeToolResult = "tool_result"
)

// Stop reasons reported by the model.
const (
	AnthropicCompletionReasonEndTurn      = "end_turn"
	AnthropicCompletionReasonMaxTokens    = "max_tokens"
	AnthropicCompletionReasonStopSequence = "stop_sequence"
	AnthropicCompletionReasonToolUse      = "tool_use"
)

// anthropicBinGenerationInputSource carries base64 image data.
type anthropicBinGenerationInputSource struct {
	Type      string `json:"type"`       // "base64"
	MediaType string `json:"media_type"` // e.g. "image/png"
	Data      string `json:"data"`
}

// anthropicTextGenerationInputContent is one content block in a request
// message. The populated fields depend on Type.
type anthropicTextGenerationInputContent struct {
	Type   string                             `json:"type"`
	Source *anthropicBinGenerationInputSource `json:"source,omitempty"`
	Text   string                             `json:"text,omitempty"`

	// tool_use
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicTextGenerationInputMessage struct {
	Role    string                                `json:"role"` // "user" or "assistant"
	Content []anthropicTextGenerationInputContent `json:"content"`
}

type anthropicTool struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	InputSchema anthropicInputSchema `json:"input_schema"`
}

type anthropicInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

type anthropicTextGenerationInput struct {
	AnthropicVersion string                                 `json:"anthropic_version"`
	MaxTokens        int                                    `json:"max_tokens"`
	System           string                                 `json:"system,omitempty"`
	Messages         []*anthropicTextGenerationInputMessage `json:"messages"`
	Temperature      float64                                `json:"temperature,omitempty"`
	TopP             float64                                `json:"top_p,omitempty"`
	TopK             int                                    `json:"top_k,omitempty"`
	StopSequences    []string                               `json:"stop_sequences,omitempty"`
	Tools            []anthropicTool                        `json:"tools,omitempty"`
}

type anthropicTextGenerationOutputContent struct {
	Type string `json:"type"` // "text" or "tool_use"
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

type anthropicTextGenerationOutput struct {
	Type         string                                 `json:"type"`
	Role         string                                 `json:"role"`
	Content      []anthropicTextGenerationOutputContent `json:"content"`
	StopReason   string                                 `json:"stop_reason"`
	StopSequence string                                 `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (o *anthropicTextGenerationOutput) usageInfo() map[string]any {
	return map[string]any{
		"InputTokens":  o.Usage.InputTokens,
		"OutputTokens": o.Usage.OutputTokens,
		"TotalTokens":  o.Usage.InputTokens + o.Usage.OutputTokens,
	}
}

func createAnthropicCompletion(ctx context.Context,
	client *bedrockruntime.Client,
	modelID string,
	messages []Message,
	options llms.CallOptions,
) (*llms.ContentResponse, error) {
	inputContents, systemPrompt, err := processInputMessagesAnthropic(messages)
	if err != nil {
		return nil, err
	}

	tools, err := buildAnthropicTools(options.Tools)
	if err != nil {
		return nil, err
	}

	input := anthropicTextGenerationInput{
		AnthropicVersion: AnthropicLatestVersion,
		MaxTokens:        getMaxTokens(options.MaxTokens, 2048),
		System:           systemPrompt,
		Messages:         inputContents,
		Temperature:      options.Temperature,
		TopP:             options.TopP,
		TopK:             options.TopK,
		StopSequences:    options.StopWords,
		Tools:            tools,
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	if options.StreamingFunc != nil {
		return parseStreamingCompletionResponse(ctx, client, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(modelID),
			Accept:      aws.String("*/*"),
			ContentType: aws.String("application/json"),
			Body:        body,
		}, options)
	}

	resp, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Accept:      aws.String("*/*"),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, err
	}

	var output anthropicTextGenerationOutput
	if err := json.Unmarshal(resp.Body, &output); err != nil {
		return nil, err
	}
	return convertAnthropicOutput(&output)
}

// buildAnthropicTools converts tool definitions to the anthropic wire
// format, flattening the schema's ordered properties into a plain map.
func buildAnthropicTools(defs []llms.Tool) ([]anthropicTool, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	tools := make([]anthropicTool, len(defs))
	for i, tool := range defs {
		if tool.Function == nil {
			return nil, errors.New("function tool is missing its definition")
		}
		schema := anthropicInputSchema{Type: "object"}
		if params := tool.Function.Parameters; params != nil {
			schema.Required = params.Required
			if params.Properties != nil {
				schema.Properties = make(map[string]any)
				for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
					schema.Properties[pair.Key] = pair.Value
				}
			}
		}
		tools[i] = anthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: schema,
		}
	}
	return tools, nil
}

// convertAnthropicOutput maps the model output to content choices. Text
// blocks and tool-use blocks get separate choices.
func convertAnthropicOutput(output *anthropicTextGenerationOutput) (*llms.ContentResponse, error) {
	if len(output.Content) == 0 {
		return nil, errors.New("no results")
	}
	switch output.StopReason {
	case AnthropicCompletionReasonEndTurn,
		AnthropicCompletionReasonStopSequence,
		AnthropicCompletionReasonToolUse:
	default:
		return nil, errors.New("completed due to " + output.StopReason + ". Maybe try increasing max tokens")
	}

	var textContent string
	var toolCalls []llms.ToolCall
	for _, c := range output.Content {
		switch c.Type {
		case AnthropicMessageTypeText:
			textContent += c.Text
		case AnthropicMessageTypeToolUse:
			argumentsJSON, err := json.Marshal(c.Input)
			if err != nil {
				return nil, errors.Wrap(err, "failed to marshal tool arguments")
			}
			toolCalls = append(toolCalls, llms.ToolCall{
				ID: c.ID,
				FunctionCall: &llms.FunctionCall{
					Name:      c.Name,
					Arguments: string(argumentsJSON),
				},
			})
		}
	}

	var choices []*llms.ContentChoice
	if textContent != "" {
		choices = append(choices, &llms.ContentChoice{
			Content:        textContent,
			StopReason:     output.StopReason,
			GenerationInfo: output.usageInfo(),
		})
	}
	if len(toolCalls) > 0 {
		choices = append(choices, &llms.ContentChoice{
			ToolCalls:      toolCalls,
			StopReason:     output.StopReason,
			GenerationInfo: output.usageInfo(),
		})
	}
	if len(choices) == 0 {
		choices = append(choices, &llms.ContentChoice{
			Content:        output.Content[0].Text,
			StopReason:     output.StopReason,
			GenerationInfo: output.usageInfo(),
		})
	}

	return &llms.ContentResponse{Choices: choices}, nil
}

type streamingCompletionResponseChunk struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		StopReason   string `json:"stop_reason"`
		StopSequence any    `json:"stop_sequence"`
	} `json:"delta"`
	AmazonBedrockInvocationMetrics struct {
		InputTokenCount   int `json:"inputTokenCount"`
		OutputTokenCount  int `json:"outputTokenCount"`
		InvocationLatency int `json:"invocationLatency"`
		FirstByteLatency  int `json:"firstByteLatency"`
	} `json:"amazon-bedrock-invocationMetrics"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message struct {
		ID           string `json:"id"`
		Type         string `json:"type"`
		Role         string `json:"role"`
		Content      []any  `json:"content"`
		Model        string `json:"model"`
		StopReason   any    `json:"stop_reason"`
		StopSequence any    `json:"stop_sequence"`
		Usage        struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

func parseStreamingCompletionResponse(ctx context.Context, client *bedrockruntime.Client, modelInput *bedrockruntime.InvokeModelWithResponseStreamInput, options llms.CallOptions) (*llms.ContentResponse, error) {
	output, err := client.InvokeModelWithResponseStream(ctx, modelInput)
	if err != nil {
		return nil, err
	}
	stream := output.GetStream()
	if stream == nil {
		return nil, errors.New("no stream")
	}
	defer func() {
		_ = stream.Close()
	}()

	choice := &llms.ContentChoice{GenerationInfo: map[string]any{}}
	for e := range stream.Events() {
		if err = stream.Err(); err != nil {
			return nil, err
		}

		chunk, ok := e.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var resp streamingCompletionResponseChunk
		if err := json.NewDecoder(bytes.NewReader(chunk.Value.Bytes)).Decode(&resp); err != nil {
			return nil, err
		}

		switch resp.Type {
		case "message_start":
			choice.GenerationInfo["InputTokens"] = resp.Message.Usage.InputTokens
		case "content_block_delta":
			if err = options.StreamingFunc(ctx, []byte(resp.Delta.Text)); err != nil {
				return nil, err
			}
			choice.Content += resp.Delta.Text
		case "message_delta":
			choice.StopReason = resp.Delta.StopReason
			choice.GenerationInfo["OutputTokens"] = resp.Usage.OutputTokens
		}
	}
	if err = stream.Err(); err != nil {
		return nil, err
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

// processInputMessagesAnthropic groups consecutive same-role messages into
// single wire messages and lifts system messages into the system prompt.
func processInputMessagesAnthropic(messages []Message) ([]*anthropicTextGenerationInputMessage, string, error) {
	var chunks [][]Message
	var current []Message
	var lastRole llms.Role
	for _, message := range messages {
		if message.Role != lastRole && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
		}
		current = append(current, message)
		lastRole = message.Role
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	var inputContents []*anthropicTextGenerationInputMessage
	var systemPrompt string
	for _, chunk := range chunks {
		role, err := getAnthropicRole(chunk[0].Role)
		if err != nil {
			return nil, "", err
		}
		if role == AnthropicSystem {
			if systemPrompt != "" {
				return nil, "", errors.New("multiple system prompts")
			}
			for _, message := range chunk {
				c := getAnthropicInputContent(message)
				if c.Type != AnthropicMessageTypeText {
					return nil, "", errors.New("system prompt must be text")
				}
				systemPrompt += c.Text
			}
			continue
		}
		content := make([]anthropicTextGenerationInputContent, 0, len(chunk))
		for _, message := range chunk {
			content = append(content, getAnthropicInputContent(message))
		}
		inputContents = append(inputContents, &anthropicTextGenerationInputMessage{
			Role:    role,
			Content: content,
		})
	}
	return inputContents, systemPrompt, nil
}

func getAnthropicRole(role llms.Role) (string, error) {
	switch role {
	case llms.RoleSystem:
		return AnthropicSystem, nil
	case llms.RoleAI:
		return AnthropicRoleAssistant, nil
	case llms.RoleGeneric, llms.RoleHuman, llms.RoleTool:
		return AnthropicRoleUser, nil
	default:
		return "", errors.New("role not supported")
	}
}

func getAnthropicInputContent(message Message) anthropicTextGenerationInputContent {
	switch message.Type {
	case AnthropicMessageTypeText:
		return anthropicTextGenerationInputContent{
			Type: message.Type,
			Text: message.Content,
		}
	case AnthropicMessageTypeImage:
		return anthropicTextGenerationInputContent{
			Type: message.Type,
			Source: &anthropicBinGenerationInputSource{
				Type:      "base64",
				MediaType: message.MimeType,
				Data:      base64.StdEncoding.EncodeToString([]byte(message.Content)),
			},
		}
	case AnthropicMessageTypeToolUse:
		var input any
		if message.ToolInput != "" {
			_ = json.Unmarshal([]byte(message.ToolInput), &input)
		}
		return anthropicTextGenerationInputContent{
			Type:  message.Type,
			ID:    message.ToolCallID,
			Name:  message.ToolName,
			Input: input,
		}
	case AnthropicMessageTypeToolResult:
		return anthropicTextGenerationInputContent{
			Type:      message.Type,
			ToolUseID: message.ToolCallID,
			Content:   message.Content,
		}
	}
	return anthropicTextGenerationInputContent{}
}
