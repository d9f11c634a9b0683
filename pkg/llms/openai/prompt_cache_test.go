package openai

import (
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/openai/internal/openaiclient"
	"github.com/openai/openai-go/v3/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PromptCacheRequest(t *testing.T) {
	t.Parallel()

	assert.Nil(t, promptCacheRequest(nil))
	assert.Nil(t, promptCacheRequest(&llms.CallOptions{}))

	// breakpoint-only policies carry no request-level cache fields
	assert.Nil(t, promptCacheRequest(&llms.CallOptions{
		PromptCachePolicy: &llms.PromptCachePolicy{
			Breakpoints: []llms.PromptCacheBreakpoint{
				{
					Target: llms.PromptCacheTarget{
						Kind:         llms.PromptCacheTargetMessagePart,
						MessageIndex: 0,
						PartIndex:    0,
					},
				},
			},
		},
	}))

	cache := promptCacheRequest(&llms.CallOptions{
		PromptCachePolicy: &llms.PromptCachePolicy{
			Request: &llms.PromptCacheRequestPolicy{
				Key:       "policy-key",
				Retention: llms.PromptCacheRetentionInMemory,
			},
		},
	})
	require.NotNil(t, cache)
	assert.Equal(t, "policy-key", cache.Key)
	assert.Equal(t, llms.PromptCacheRetentionInMemory, cache.Retention)
}

func Test_ApplyPromptCacheToChatRequest(t *testing.T) {
	t.Parallel()

	policy := func(retention llms.PromptCacheRetention) *llms.PromptCachePolicy {
		return &llms.PromptCachePolicy{
			Request: &llms.PromptCacheRequestPolicy{
				Key:       "chat-key",
				Retention: retention,
			},
		}
	}

	req := &openaiclient.ChatRequest{}
	applyPromptCacheToChatRequest(req, openaiclient.ProviderOpenAI, &llms.CallOptions{
		PromptCachePolicy: policy(llms.PromptCacheRetentionInMemory),
	})
	assert.Equal(t, "chat-key", req.PromptCacheKey)
	assert.Equal(t, "in_memory", req.PromptCacheRetention)

	// Perplexity has no prompt cache fields
	req = &openaiclient.ChatRequest{}
	applyPromptCacheToChatRequest(req, openaiclient.ProviderPerplexity, &llms.CallOptions{
		PromptCachePolicy: policy(llms.PromptCacheRetention24h),
	})
	assert.Empty(t, req.PromptCacheKey)
	assert.Empty(t, req.PromptCacheRetention)
}

func Test_ApplyPromptCacheToResponsesRequest(t *testing.T) {
	t.Parallel()

	req := &responses.ResponseNewParams{}
	opts := llms.CallOptions{
		PromptCachePolicy: &llms.PromptCachePolicy{
			Request: &llms.PromptCacheRequestPolicy{
				Key:       "resp-key",
				Retention: llms.PromptCacheRetentionInMemory,
			},
		},
	}

	applyPromptCacheToResponsesRequest(req, openaiclient.ProviderOpenAI, &opts)

	// the API wants "in_memory", not the SDK's hyphenated constant
	assert.Equal(t, responses.ResponseNewParamsPromptCacheRetention("in_memory"), req.PromptCacheRetention)
	require.True(t, req.PromptCacheKey.Valid())
	assert.Equal(t, "resp-key", req.PromptCacheKey.Value)
}
