package llms

// PromptCacheRetention selects how long a provider keeps a cached prompt.
type PromptCacheRetention string

const (
	// PromptCacheRetentionInMemory keeps the cached prompt in provider memory
	// with the provider's default eviction.
	PromptCacheRetentionInMemory PromptCacheRetention = "in-memory"
	// PromptCacheRetention24h keeps the cached prompt for 24 hours.
	PromptCacheRetention24h PromptCacheRetention = "24h"
)

// PromptCacheTTL is the time-to-live of a cache breakpoint.
type PromptCacheTTL string

const (
	// PromptCacheTTL5m caches the prefix for five minutes.
	PromptCacheTTL5m PromptCacheTTL = "5m"
	// PromptCacheTTL1h caches the prefix for one hour.
	PromptCacheTTL1h PromptCacheTTL = "1h"
)

// PromptCacheTargetKind discriminates what a cache breakpoint points at.
type PromptCacheTargetKind string

const (
	// PromptCacheTargetMessagePart targets a part of an input message,
	// addressed by message and part index.
	PromptCacheTargetMessagePart PromptCacheTargetKind = "message_part"
	// PromptCacheTargetTool targets a tool definition, addressed by tool index.
	PromptCacheTargetTool PromptCacheTargetKind = "tool"
)

// PromptCacheTarget addresses the request element a breakpoint applies to.
// MessageIndex and PartIndex are used for message parts, ToolIndex for tools.
type PromptCacheTarget struct {
	Kind         PromptCacheTargetKind `json:"kind"`
	MessageIndex int                   `json:"message_index,omitempty"`
	PartIndex    int                   `json:"part_index,omitempty"`
	ToolIndex    int                   `json:"tool_index,omitempty"`
}

// PromptCacheBreakpoint marks a cacheable prefix boundary in the request.
// Providers with block-level caching (Anthropic) translate each breakpoint
// into a cache_control marker on the targeted block.
type PromptCacheBreakpoint struct {
	Target PromptCacheTarget `json:"target"`
	TTL    PromptCacheTTL    `json:"ttl,omitempty"`
}

// PromptCacheRequestPolicy is request-level cache routing for providers that
// key whole prompts (OpenAI prompt_cache_key / prompt_cache_retention).
type PromptCacheRequestPolicy struct {
	Key       string               `json:"key,omitempty"`
	Retention PromptCacheRetention `json:"retention,omitempty"`
}

// PromptCachePolicy configures provider-side prompt caching. Request applies
// to providers with request-level cache keys; Breakpoints to providers with
// block-level cache markers. Providers ignore the half they do not support.
type PromptCachePolicy struct {
	Request     *PromptCacheRequestPolicy `json:"request,omitempty"`
	Breakpoints []PromptCacheBreakpoint   `json:"breakpoints,omitempty"`
}

// WithPromptCachePolicy will add an option to set the prompt cache policy for
// the call.
func WithPromptCachePolicy(policy *PromptCachePolicy) CallOption {
	return func(o *CallOptions) {
		o.PromptCachePolicy = policy
	}
}
