package bedrock

// Model IDs for the Anthropic models served by Bedrock.
// See https://docs.aws.amazon.com/bedrock/latest/userguide/models-supported.html
const (
	ModelAnthropicClaudeV35SonnetV2 = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	ModelAnthropicClaudeV35Sonnet   = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	ModelAnthropicClaudeV3Opus      = "anthropic.claude-3-opus-20240229-v1:0"
	ModelAnthropicClaudeV3Sonnet    = "anthropic.claude-3-sonnet-20240229-v1:0"
	ModelAnthropicClaudeV3Haiku     = "anthropic.claude-3-haiku-20240307-v1:0"
	ModelAnthropicClaudeV21         = "anthropic.claude-v2:1"
	ModelAnthropicClaudeV2          = "anthropic.claude-v2"
	ModelAnthropicClaudeInstantV1   = "anthropic.claude-instant-v1"
)
