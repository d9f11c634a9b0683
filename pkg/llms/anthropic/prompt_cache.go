package anthropic

import (
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
)

// Prompt cache breakpoints are addressed by callers in the generic llms
// message space (message index, part index), but Anthropic applies
// cache_control markers in its own request layout, where system parts move
// to the top-level System blocks. processMessagesForRequest records the
// mapping between the two index spaces so applyPromptCachePolicyToRequest
// can resolve each target.

// Anthropic allows at most 4 cache_control markers per request.
const maxPromptCacheBreakpoints = 4

// cachePartKey addresses a part in the caller's message space.
type cachePartKey struct {
	Message int
	Part    int
}

// cachePartLocation is where that part landed in the request: either a
// System block or a content block of a chat message.
type cachePartLocation struct {
	IsSystem bool
	System   int
	Message  int
	Content  int
}

// cacheTargetKey normalizes breakpoint targets for duplicate detection.
type cacheTargetKey struct {
	Kind    llms.PromptCacheTargetKind
	Message int
	Part    int
	Tool    int
}

// processMessagesForRequest converts messages to SDK request params and
// returns the location of every original part in the converted request.
func processMessagesForRequest(messages []llms.Message) ([]sdkanthropic.MessageParam, []sdkanthropic.TextBlockParam,
	map[cachePartKey]cachePartLocation, error,
) {
	chatMessages := make([]sdkanthropic.MessageParam, 0, len(messages))
	systemBlocks := make([]sdkanthropic.TextBlockParam, 0)
	locations := make(map[cachePartKey]cachePartLocation)

	for msgIndex, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}

		if msg.Role == llms.RoleSystem {
			for partIndex, part := range msg.Parts {
				text, err := HandleSystemMessage(llms.Message{
					Parts: []llms.ContentPart{part},
				})
				if err != nil {
					return nil, nil, nil, errors.Wrap(err, "anthropic: failed to handle system message")
				}
				systemBlocks = append(systemBlocks, sdkanthropic.TextBlockParam{
					Type: "text",
					Text: text,
				})
				locations[cachePartKey{Message: msgIndex, Part: partIndex}] = cachePartLocation{
					IsSystem: true,
					System:   len(systemBlocks) - 1,
				}
			}
			continue
		}

		var (
			chatMessage sdkanthropic.MessageParam
			err         error
		)
		switch msg.Role {
		case llms.RoleHuman:
			chatMessage, err = HandleHumanMessage(msg)
			err = errors.Wrap(err, "anthropic: failed to handle human message")
		case llms.RoleAI, llms.RoleGeneric:
			chatMessage, err = HandleAIMessage(msg)
			err = errors.Wrap(err, "anthropic: failed to handle AI message")
		case llms.RoleTool:
			chatMessage, err = HandleToolMessage(msg)
			err = errors.WithMessage(err, "anthropic: failed to handle tool message")
		default:
			return nil, nil, nil, errors.WithMessagef(ErrUnsupportedMessageType, "anthropic: %v", msg.Role)
		}
		if err != nil {
			return nil, nil, nil, err
		}

		// Content blocks map 1:1 to parts; the cache target resolution
		// depends on it.
		if len(chatMessage.Content) != len(msg.Parts) {
			return nil, nil, nil, errors.Errorf("anthropic: unexpected content mapping length for %s message: parts=%d content=%d",
				msg.Role, len(msg.Parts), len(chatMessage.Content))
		}

		chatMessages = append(chatMessages, chatMessage)
		messagePos := len(chatMessages) - 1
		for partIndex := range msg.Parts {
			locations[cachePartKey{Message: msgIndex, Part: partIndex}] = cachePartLocation{
				Message: messagePos,
				Content: partIndex,
			}
		}
	}

	return chatMessages, systemBlocks, locations, nil
}

// applyPromptCachePolicyToRequest resolves the policy's breakpoint targets
// and sets cache_control markers in-place on the request params. It returns
// per-request options for any beta headers the selected TTLs require.
func applyPromptCachePolicyToRequest(o *LLM, params *sdkanthropic.MessageNewParams, opts *llms.CallOptions,
	locations map[cachePartKey]cachePartLocation,
) ([]option.RequestOption, error) {
	if opts == nil || opts.PromptCachePolicy == nil || len(opts.PromptCachePolicy.Breakpoints) == 0 {
		return nil, nil
	}

	breakpoints := opts.PromptCachePolicy.Breakpoints
	if len(breakpoints) > maxPromptCacheBreakpoints {
		return nil, errors.Errorf("anthropic: too many prompt cache breakpoints: %d (max %d)", len(breakpoints), maxPromptCacheBreakpoints)
	}

	seen := make(map[cacheTargetKey]struct{}, len(breakpoints))
	needsExtendedTTLBeta := false

	for _, bp := range breakpoints {
		cacheControl, extendedTTL, err := cacheControlForTTL(bp.TTL)
		if err != nil {
			return nil, err
		}
		needsExtendedTTLBeta = needsExtendedTTLBeta || extendedTTL

		switch bp.Target.Kind {
		case llms.PromptCacheTargetMessagePart:
			if err := applyMessagePartBreakpoint(params, bp.Target, cacheControl, locations, seen); err != nil {
				return nil, err
			}
		case llms.PromptCacheTargetTool:
			if err := applyToolBreakpoint(params, bp.Target, cacheControl, seen); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("anthropic: unsupported prompt cache target kind: %q", bp.Target.Kind)
		}
	}

	return promptCacheRequestOptions(o, needsExtendedTTLBeta), nil
}

func applyMessagePartBreakpoint(params *sdkanthropic.MessageNewParams, target llms.PromptCacheTarget,
	cacheControl sdkanthropic.CacheControlEphemeralParam,
	locations map[cachePartKey]cachePartLocation, seen map[cacheTargetKey]struct{},
) error {
	if target.MessageIndex < 0 || target.PartIndex < 0 {
		return errors.Errorf("anthropic: invalid prompt cache message_part target: message=%d part=%d", target.MessageIndex, target.PartIndex)
	}

	dupKey := cacheTargetKey{
		Kind:    target.Kind,
		Message: target.MessageIndex,
		Part:    target.PartIndex,
	}
	if _, exists := seen[dupKey]; exists {
		return errors.Errorf("anthropic: duplicate prompt cache breakpoint for message[%d].part[%d]", target.MessageIndex, target.PartIndex)
	}
	seen[dupKey] = struct{}{}

	loc, ok := locations[cachePartKey{Message: target.MessageIndex, Part: target.PartIndex}]
	if !ok {
		return errors.Errorf("anthropic: prompt cache target not found for message[%d].part[%d]", target.MessageIndex, target.PartIndex)
	}

	if loc.IsSystem {
		if loc.System < 0 || loc.System >= len(params.System) {
			return errors.Errorf("anthropic: invalid system prompt cache target index: %d", loc.System)
		}
		params.System[loc.System].CacheControl = cacheControl
		return nil
	}

	if loc.Message < 0 || loc.Message >= len(params.Messages) {
		return errors.Errorf("anthropic: invalid message prompt cache target index: %d", loc.Message)
	}
	if loc.Content < 0 || loc.Content >= len(params.Messages[loc.Message].Content) {
		return errors.Errorf("anthropic: invalid message content prompt cache target index: %d", loc.Content)
	}

	cacheControlPtr := params.Messages[loc.Message].Content[loc.Content].GetCacheControl()
	if cacheControlPtr == nil {
		return errors.Errorf("anthropic: prompt cache unsupported for message[%d].part[%d]", target.MessageIndex, target.PartIndex)
	}
	*cacheControlPtr = cacheControl
	return nil
}

func applyToolBreakpoint(params *sdkanthropic.MessageNewParams, target llms.PromptCacheTarget,
	cacheControl sdkanthropic.CacheControlEphemeralParam, seen map[cacheTargetKey]struct{},
) error {
	if target.ToolIndex < 0 {
		return errors.Errorf("anthropic: invalid prompt cache tool target: tool=%d", target.ToolIndex)
	}

	dupKey := cacheTargetKey{
		Kind: target.Kind,
		Tool: target.ToolIndex,
	}
	if _, exists := seen[dupKey]; exists {
		return errors.Errorf("anthropic: duplicate prompt cache breakpoint for tool[%d]", target.ToolIndex)
	}
	seen[dupKey] = struct{}{}

	if target.ToolIndex >= len(params.Tools) {
		return errors.Errorf("anthropic: prompt cache tool target out of range: tool[%d]", target.ToolIndex)
	}
	cacheControlPtr := params.Tools[target.ToolIndex].GetCacheControl()
	if cacheControlPtr == nil {
		return errors.Errorf("anthropic: prompt cache unsupported for tool[%d]", target.ToolIndex)
	}
	*cacheControlPtr = cacheControl
	return nil
}

// cacheControlForTTL maps a TTL to the SDK cache_control param. The bool
// reports whether the extended-cache-ttl beta header is required.
func cacheControlForTTL(ttl llms.PromptCacheTTL) (sdkanthropic.CacheControlEphemeralParam, bool, error) {
	cacheControl := sdkanthropic.NewCacheControlEphemeralParam()
	switch ttl {
	case "":
		return cacheControl, false, nil
	case llms.PromptCacheTTL5m:
		cacheControl.TTL = sdkanthropic.CacheControlEphemeralTTLTTL5m
		return cacheControl, false, nil
	case llms.PromptCacheTTL1h:
		cacheControl.TTL = sdkanthropic.CacheControlEphemeralTTLTTL1h
		return cacheControl, true, nil
	default:
		return sdkanthropic.CacheControlEphemeralParam{}, false, errors.Errorf("anthropic: unsupported prompt cache TTL: %q", ttl)
	}
}

// promptCacheRequestOptions returns a request-scoped anthropic-beta header
// when an extended TTL is in use, leaving the client-level header untouched.
func promptCacheRequestOptions(o *LLM, needsExtendedTTLBeta bool) []option.RequestOption {
	if o == nil || o.Options == nil || !needsExtendedTTLBeta {
		return nil
	}

	betaToken := string(sdkanthropic.AnthropicBetaExtendedCacheTTL2025_04_11)
	if hasBetaToken(o.Options.AnthropicBetaHeader, betaToken) {
		return nil
	}

	headerValue := betaToken
	if existing := strings.TrimSpace(o.Options.AnthropicBetaHeader); existing != "" {
		headerValue = existing + "," + betaToken
	}
	return []option.RequestOption{
		option.WithHeader("anthropic-beta", headerValue),
	}
}

// hasBetaToken reports whether a comma-separated anthropic-beta header
// already carries the token.
func hasBetaToken(headerValue, token string) bool {
	for _, part := range strings.Split(headerValue, ",") {
		if strings.TrimSpace(part) == token {
			return true
		}
	}
	return false
}
