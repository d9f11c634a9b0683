package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/x/values"
)

type ChatMessage = openaiclient.ChatMessage

var (
	// ErrEmptyResponse is returned when the API returned no choices.
	ErrEmptyResponse = errors.New("no response")
	// ErrMissingToken is returned when the API key is not configured.
	ErrMissingToken = errors.New("missing the OpenAI API key, set it in the OPENAI_API_KEY environment variable")
	// ErrMissingAzureModel is returned when the Azure deployment name is not configured.
	ErrMissingAzureModel = errors.New("model needs to be provided when using Azure API")
	// ErrUnexpectedResponseLength is returned when the number of embeddings
	// does not match the number of inputs.
	ErrUnexpectedResponseLength = errors.New("unexpected length of response")
)

const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleFunction  = "function"
	RoleTool      = "tool"
)

// LLM is a client for OpenAI and OpenAI-compatible chat APIs.
type LLM struct {
	client *openaiclient.Client
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	_, c, err := newClient(opts...)
	if err != nil {
		return nil, err
	}
	return &LLM{
		client: c,
	}, err
}

func newClient(opts ...Option) (*options, *openaiclient.Client, error) {
	options := &options{
		token:        os.Getenv(tokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      values.StringsCoalesce(os.Getenv(baseURLEnvVarName), os.Getenv(baseAPIBaseEnvVarName)),
		organization: os.Getenv(organizationEnvVarName),
		provider:     ProviderOpenAI,
		apiVersion:   DefaultAPIVersion,
		httpClient:   http.DefaultClient,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.token == "" {
		return options, nil, ErrMissingToken
	}
	if openaiclient.IsAzure(openaiclient.ProviderType(options.provider)) && options.model == "" {
		return options, nil, ErrMissingAzureModel
	}

	cli, err := openaiclient.New(
		openaiclient.ProviderType(options.provider),
		options.model,
		options.token,
		options.baseURL,
		options.organization,
		options.apiVersion,
		options.httpClient,
		options.embeddingModel,
		options.responseFormat,
	)
	return options, cli, err
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.client.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
// Requests are sent to the Responses API when the configured provider and API
// version support it, otherwise to the chat completions endpoint.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	if o.client.SupportsResponsesAPI() {
		return o.generateResponsesContent(ctx, messages, &opts)
	}
	return o.generateChatContent(ctx, messages, &opts)
}

func (o *LLM) generateChatContent(ctx context.Context, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	chatMsgs, err := buildChatMessages(messages)
	if err != nil {
		return nil, err
	}

	req := &openaiclient.ChatRequest{
		Model:                  opts.Model,
		StopWords:              opts.StopWords,
		Messages:               chatMsgs,
		StreamingFunc:          opts.StreamingFunc,
		StreamingReasoningFunc: opts.StreamingReasoningFunc,
		Temperature:            opts.Temperature,
		N:                      opts.N,
		FrequencyPenalty:       opts.FrequencyPenalty,
		PresencePenalty:        opts.PresencePenalty,

		MaxCompletionTokens: opts.MaxTokens,

		ToolChoice:           opts.ToolChoice,
		FunctionCallBehavior: openaiclient.FunctionCallBehavior(opts.FunctionCallBehavior),
		Seed:                 opts.Seed,
		Metadata:             opts.Metadata,
		ResponseFormat:       opts.ResponseFormat,
	}
	if req.Tools, err = buildChatTools(opts); err != nil {
		return nil, err
	}
	// A response format configured on the client wins over per-call options.
	if o.client.ResponseFormat != nil {
		req.ResponseFormat = o.client.ResponseFormat
	}

	applyPromptCacheToChatRequest(req, o.client.Provider, opts)

	result, err := o.client.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return convertChatResponse(result), nil
}

// buildChatMessages converts generic messages to the chat completions wire
// form. Tool calls are moved out of the content array into their dedicated
// field, and a tool message contributes its single ToolCallResponse part as
// Content and ToolCallID.
func buildChatMessages(messages []llms.Message) ([]*ChatMessage, error) {
	chatMsgs := make([]*ChatMessage, 0, len(messages))
	for _, mc := range messages {
		msg := &ChatMessage{}
		switch mc.Role {
		case llms.RoleSystem:
			msg.Role = RoleSystem
		case llms.RoleAI:
			msg.Role = RoleAssistant
		case llms.RoleHuman, llms.RoleGeneric:
			msg.Role = RoleUser
		case llms.RoleTool:
			msg.Role = RoleTool
			if len(mc.Parts) != 1 {
				return nil, errors.Errorf("expected exactly one part for role %v, got %v", mc.Role, len(mc.Parts))
			}
			resp, ok := mc.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Errorf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, mc.Parts[0])
			}
			msg.ToolCallID = resp.ToolCallID
			msg.Content = resp.Content
		default:
			return nil, errors.Errorf("role %v not supported", mc.Role)
		}

		for _, part := range mc.Parts {
			switch p := part.(type) {
			case llms.TextContent, llms.ImageURLContent, llms.BinaryContent:
				msg.MultiContent = append(msg.MultiContent, p)
			case llms.ToolCall:
				msg.ToolCalls = append(msg.ToolCalls, openaiclient.ToolCall{
					ID:   p.ID,
					Type: openaiclient.ToolType(p.Type),
					Function: openaiclient.ToolFunction{
						Name:      p.FunctionCall.Name,
						Arguments: p.FunctionCall.Arguments,
					},
				})
			}
		}

		chatMsgs = append(chatMsgs, msg)
	}
	return chatMsgs, nil
}

// buildChatTools merges the deprecated Functions option and the Tools option
// into a single tool list for the request.
func buildChatTools(opts *llms.CallOptions) ([]openaiclient.Tool, error) {
	var tools []openaiclient.Tool
	for _, fn := range opts.Functions {
		tools = append(tools, openaiclient.Tool{
			Type: "function",
			Function: openaiclient.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
				Strict:      fn.Strict,
			},
		})
	}
	for _, t := range opts.Tools {
		if t.Type != string(openaiclient.ToolTypeFunction) {
			return nil, errors.Errorf("tool type %v not supported", t.Type)
		}
		if t.Function == nil {
			return nil, errors.New("function tool is missing its definition")
		}
		tools = append(tools, openaiclient.Tool{
			Type: openaiclient.ToolType(t.Type),
			Function: openaiclient.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
				Strict:      t.Function.Strict,
			},
		})
	}
	return tools, nil
}

func convertChatResponse(result *openaiclient.ChatCompletionResponse) *llms.ContentResponse {
	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:          c.Message.Content,
			ReasoningContent: c.Message.ReasoningContent,
			StopReason:       fmt.Sprint(c.FinishReason),
			GenerationInfo: map[string]any{
				"InputTokens":     result.Usage.PromptTokens,
				"OutputTokens":    result.Usage.CompletionTokens,
				"TotalTokens":     result.Usage.TotalTokens,
				"ReasoningTokens": result.Usage.CompletionTokensDetails.ReasoningTokens,
				"CacheReadTokens": result.Usage.PromptTokensDetails.CachedTokens,
			},
		}

		if c.FinishReason == "function_call" && c.Message.FunctionCall != nil {
			choice.FuncCall = &llms.FunctionCall{
				Name:      c.Message.FunctionCall.Name,
				Arguments: c.Message.FunctionCall.Arguments,
			}
		}
		for _, tool := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: string(tool.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
		// FuncCall mirrors the first tool call for callers still on the
		// deprecated single-function API.
		if len(choice.ToolCalls) > 0 {
			choice.FuncCall = choice.ToolCalls[0].FunctionCall
		}
		choices[i] = choice
	}
	return &llms.ContentResponse{Choices: choices}
}

// CreateEmbedding creates embeddings for the given input texts.
func (o *LLM) CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error) {
	embeddings, err := o.client.CreateEmbedding(ctx, &openaiclient.EmbeddingRequest{
		Input: inputTexts,
		Model: o.client.EmbeddingModel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create openai embeddings")
	}
	if len(embeddings) == 0 {
		return nil, ErrEmptyResponse
	}
	if len(inputTexts) != len(embeddings) {
		return embeddings, ErrUnexpectedResponseLength
	}
	return embeddings, nil
}
