package openai

import (
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/openai/internal/openaiclient"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// Prompt caching is request-scoped on OpenAI: a cache key routes requests
// with a shared prefix to the same cache, and retention picks how long the
// prefix stays cached. Azure exposes the same fields; Perplexity does not.

func supportsPromptCacheProvider(provider openaiclient.ProviderType) bool {
	switch provider {
	case openaiclient.ProviderOpenAI, "OPEN_AI", openaiclient.ProviderAzure, openaiclient.ProviderAzureAD:
		return true
	default:
		return false
	}
}

func promptCacheRequest(opts *llms.CallOptions) *llms.PromptCacheRequestPolicy {
	if opts == nil || opts.PromptCachePolicy == nil {
		return nil
	}
	return opts.PromptCachePolicy.Request
}

func applyPromptCacheToChatRequest(req *openaiclient.ChatRequest, provider openaiclient.ProviderType, opts *llms.CallOptions) {
	if req == nil || !supportsPromptCacheProvider(provider) {
		return
	}
	cache := promptCacheRequest(opts)
	if cache == nil {
		return
	}
	if cache.Key != "" {
		req.PromptCacheKey = cache.Key
	}
	if cache.Retention != "" {
		req.PromptCacheRetention = toChatPromptCacheRetention(cache.Retention)
	}
}

func applyPromptCacheToResponsesRequest(req *responses.ResponseNewParams, provider openaiclient.ProviderType, opts *llms.CallOptions) {
	if req == nil || !supportsPromptCacheProvider(provider) {
		return
	}
	cache := promptCacheRequest(opts)
	if cache == nil {
		return
	}
	if cache.Retention != "" {
		req.PromptCacheRetention = toResponsesPromptCacheRetention(cache.Retention)
	}
	if cache.Key != "" {
		req.PromptCacheKey = param.NewOpt(cache.Key)
	}
}

// toChatPromptCacheRetention maps the retention constant to the Chat
// Completions wire value: the API takes "in_memory" (underscore) while the
// constant uses "in-memory" (hyphen).
func toChatPromptCacheRetention(retention llms.PromptCacheRetention) string {
	if retention == llms.PromptCacheRetentionInMemory {
		return "in_memory"
	}
	return string(retention)
}

// toResponsesPromptCacheRetention maps the retention constant to the
// Responses API wire value. The SDK constant for in-memory carries the
// hyphenated spelling the API rejects, so the wire value is spelled out.
func toResponsesPromptCacheRetention(retention llms.PromptCacheRetention) responses.ResponseNewParamsPromptCacheRetention {
	switch retention {
	case llms.PromptCacheRetentionInMemory:
		return "in_memory"
	case llms.PromptCacheRetention24h:
		return responses.ResponseNewParamsPromptCacheRetention24h
	default:
		return responses.ResponseNewParamsPromptCacheRetention(retention)
	}
}
