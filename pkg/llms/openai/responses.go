package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// generateResponsesContent routes a request through the Responses API.
func (o *LLM) generateResponsesContent(ctx context.Context, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	params, err := buildResponsesParams(messages, opts)
	if err != nil {
		return nil, err
	}

	responseFormat := opts.ResponseFormat
	if o.client.ResponseFormat != nil {
		responseFormat = o.client.ResponseFormat
	}
	if responseFormat != nil {
		if err := applyResponsesTextFormat(params, responseFormat); err != nil {
			return nil, err
		}
	}

	applyPromptCacheToResponsesRequest(params, o.client.Provider, opts)

	var resp *responses.Response
	if opts.StreamingFunc != nil || opts.StreamingReasoningFunc != nil {
		streamFunc := opts.StreamingFunc
		if streamFunc == nil {
			reasoningFunc := opts.StreamingReasoningFunc
			streamFunc = func(ctx context.Context, chunk []byte) error {
				return reasoningFunc(ctx, nil, chunk)
			}
		}
		resp, err = o.client.CreateStreamingResponse(ctx, params, streamFunc)
	} else {
		resp, err = o.client.CreateResponse(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	return contentResponseFromResponse(resp)
}

// nolint: cyclop
func buildResponsesParams(messages []llms.Message, opts *llms.CallOptions) (*responses.ResponseNewParams, error) {
	params := &responses.ResponseNewParams{
		Model: opts.Model,
	}
	if opts.MaxTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = param.NewOpt(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = param.NewOpt(opts.TopP)
	}
	if len(opts.Metadata) > 0 {
		md := make(shared.Metadata, len(opts.Metadata))
		for k, v := range opts.Metadata {
			md[k] = fmt.Sprint(v)
		}
		params.Metadata = md
	}

	for _, fn := range opts.Functions {
		tool, err := responsesToolParam(&fn)
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, tool)
	}
	for _, tool := range opts.Tools {
		if tool.Type != string(openaiclient.ToolTypeFunction) {
			return nil, errors.Errorf("tool type %v not supported", tool.Type)
		}
		t, err := responsesToolParam(tool.Function)
		if err != nil {
			return nil, err
		}
		params.Tools = append(params.Tools, t)
	}
	if err := applyResponsesToolChoice(params, opts.ToolChoice); err != nil {
		return nil, err
	}

	items, err := responsesInputItems(messages)
	if err != nil {
		return nil, err
	}
	params.Input = responses.ResponseNewParamsInputUnion{OfInputItemList: items}

	return params, nil
}

// nolint: cyclop
func responsesInputItems(messages []llms.Message) (responses.ResponseInputParam, error) {
	items := make(responses.ResponseInputParam, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			text, err := textOnlyContent(mc)
			if err != nil {
				return nil, err
			}
			items = append(items, easyMessageItem(responses.EasyInputMessageRoleSystem, text))

		case llms.RoleHuman, llms.RoleGeneric:
			item, err := userMessageItem(mc.Parts)
			if err != nil {
				return nil, err
			}
			items = append(items, item)

		case llms.RoleAI:
			var text strings.Builder
			var callItems []responses.ResponseInputItemUnionParam
			for _, part := range mc.Parts {
				switch p := part.(type) {
				case llms.TextContent:
					if text.Len() > 0 {
						text.WriteString("\n")
					}
					text.WriteString(p.Text)
				case llms.ToolCall:
					if p.FunctionCall == nil {
						return nil, errors.Errorf("tool call %s is missing its function call", p.ID)
					}
					callItems = append(callItems, responses.ResponseInputItemUnionParam{
						OfFunctionCall: &responses.ResponseFunctionToolCallParam{
							CallID:    p.ID,
							Name:      p.FunctionCall.Name,
							Arguments: p.FunctionCall.Arguments,
						},
					})
				default:
					return nil, errors.Errorf("unsupported content part type %T for role %v", part, mc.Role)
				}
			}
			if text.Len() > 0 {
				items = append(items, easyMessageItem(responses.EasyInputMessageRoleAssistant, text.String()))
			}
			items = append(items, callItems...)

		case llms.RoleTool:
			for _, part := range mc.Parts {
				p, ok := part.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.Errorf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, part)
				}
				items = append(items, responses.ResponseInputItemUnionParam{
					OfFunctionCallOutput: &responses.ResponseInputItemFunctionCallOutputParam{
						CallID: p.ToolCallID,
						Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
							OfString: param.NewOpt(p.Content),
						},
					},
				})
			}

		default:
			return nil, errors.Errorf("role %v not supported", mc.Role)
		}
	}
	return items, nil
}

func easyMessageItem(role responses.EasyInputMessageRole, text string) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemUnionParam{
		OfMessage: &responses.EasyInputMessageParam{
			Role:    role,
			Content: responses.EasyInputMessageContentUnionParam{OfString: param.NewOpt(text)},
		},
	}
}

func userMessageItem(parts []llms.ContentPart) (responses.ResponseInputItemUnionParam, error) {
	list := make(responses.ResponseInputMessageContentListParam, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			list = append(list, responses.ResponseInputContentUnionParam{
				OfInputText: &responses.ResponseInputTextParam{Text: p.Text},
			})
		case llms.ImageURLContent:
			detail := responses.ResponseInputImageDetailAuto
			if p.Detail != "" {
				detail = responses.ResponseInputImageDetail(p.Detail)
			}
			list = append(list, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: param.NewOpt(p.URL),
					Detail:   detail,
				},
			})
		case llms.BinaryContent:
			list = append(list, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: param.NewOpt(p.String()),
					Detail:   responses.ResponseInputImageDetailAuto,
				},
			})
		default:
			return responses.ResponseInputItemUnionParam{}, errors.Errorf("unsupported content part type %T", part)
		}
	}
	return responses.ResponseInputItemUnionParam{
		OfMessage: &responses.EasyInputMessageParam{
			Role:    responses.EasyInputMessageRoleUser,
			Content: responses.EasyInputMessageContentUnionParam{OfInputItemContentList: list},
		},
	}, nil
}

func textOnlyContent(mc llms.Message) (string, error) {
	var sb strings.Builder
	for _, part := range mc.Parts {
		tp, ok := part.(llms.TextContent)
		if !ok {
			return "", errors.Errorf("expected text part for role %v, got %T", mc.Role, part)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(tp.Text)
	}
	return sb.String(), nil
}

func responsesToolParam(fn *llms.FunctionDefinition) (responses.ToolUnionParam, error) {
	if fn == nil {
		return responses.ToolUnionParam{}, errors.New("function tool is missing its definition")
	}

	var paramsMap map[string]any
	if fn.Parameters != nil {
		var err error
		paramsMap, err = schemaAsMap(fn.Parameters)
		if err != nil {
			return responses.ToolUnionParam{}, err
		}
	}

	fnTool := &responses.FunctionToolParam{
		Name:       fn.Name,
		Parameters: paramsMap,
		Strict:     param.NewOpt(fn.Strict),
	}
	if fn.Description != "" {
		fnTool.Description = param.NewOpt(fn.Description)
	}
	return responses.ToolUnionParam{OfFunction: fnTool}, nil
}

func applyResponsesToolChoice(params *responses.ResponseNewParams, toolChoice any) error {
	switch tc := toolChoice.(type) {
	case nil:
	case string:
		if tc != "" {
			params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
				OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptions(tc)),
			}
		}
	case llms.ToolChoice:
		return applyResponsesToolChoice(params, &tc)
	case *llms.ToolChoice:
		if tc.Function == nil {
			return errors.New("tool choice function is not set")
		}
		params.ToolChoice = responses.ResponseNewParamsToolChoiceUnion{
			OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: tc.Function.Name},
		}
	default:
		return errors.Errorf("unsupported tool choice type %T", toolChoice)
	}
	return nil
}

func applyResponsesTextFormat(params *responses.ResponseNewParams, rf *schema.ResponseFormat) error {
	switch rf.Type {
	case "json_schema":
		if rf.JSONSchema == nil {
			return errors.New("json_schema response format requires a schema")
		}
		schemaMap, err := schemaAsMap(rf.JSONSchema.Schema)
		if err != nil {
			return err
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   rf.JSONSchema.Name,
					Schema: schemaMap,
					Strict: param.NewOpt(rf.JSONSchema.Strict),
				},
			},
		}
	case "json_object":
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	case "", "text":
	default:
		return errors.Errorf("unsupported response format type %q", rf.Type)
	}
	return nil
}

// schemaAsMap converts a schema value to the generic map form the SDK expects.
func schemaAsMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal schema")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "decode schema")
	}
	return m, nil
}

func contentResponseFromResponse(resp *responses.Response) (*llms.ContentResponse, error) {
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	if resp.Status == responses.ResponseStatusFailed {
		return nil, errors.Newf("response failed: %s", resp.Error.Message)
	}

	choice := &llms.ContentChoice{
		Content: resp.OutputText(),
		GenerationInfo: map[string]any{
			"InputTokens":     resp.Usage.InputTokens,
			"OutputTokens":    resp.Usage.OutputTokens,
			"TotalTokens":     resp.Usage.TotalTokens,
			"ReasoningTokens": resp.Usage.OutputTokensDetails.ReasoningTokens,
			"CacheReadTokens": resp.Usage.InputTokensDetails.CachedTokens,
		},
	}

	for _, item := range resp.Output {
		switch item.Type {
		case "function_call":
			fc := item.AsFunctionCall()
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   fc.CallID,
				Type: string(openaiclient.ToolTypeFunction),
				FunctionCall: &llms.FunctionCall{
					Name:      fc.Name,
					Arguments: fc.Arguments,
				},
			})
		case "reasoning":
			reasoning := item.AsReasoning()
			for _, s := range reasoning.Summary {
				if choice.ReasoningContent != "" {
					choice.ReasoningContent += "\n"
				}
				choice.ReasoningContent += s.Text
			}
		}
	}

	stopReason := "stop"
	if len(choice.ToolCalls) > 0 {
		stopReason = "tool_calls"
		choice.FuncCall = choice.ToolCalls[0].FunctionCall
	}
	if resp.Status == responses.ResponseStatusIncomplete {
		stopReason = values.StringsCoalesce(string(resp.IncompleteDetails.Reason), "incomplete")
	}
	choice.StopReason = stopReason

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}
