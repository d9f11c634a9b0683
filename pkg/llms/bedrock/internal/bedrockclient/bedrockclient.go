// Package bedrockclient dispatches completion requests to the provider
// implementation matching the Bedrock model ID.
package bedrockclient

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
)

// Client wraps the Bedrock runtime client.
type Client struct {
	client *bedrockruntime.Client
}

// NewClient creates a Bedrock client.
func NewClient(client *bedrockruntime.Client) *Client {
	return &Client{
		client: client,
	}
}

// Message is a provider-neutral message chunk. The provider implementation
// transforms it to its own wire format.
type Message struct {
	Role    llms.Role
	Content string
	// Type is "text", "image", "tool_use" or "tool_result".
	Type string
	// MimeType applies to image content.
	MimeType string

	ToolCallID string // tool_use and tool_result
	ToolName   string // tool_use
	ToolInput  string // tool_use, JSON arguments
}

// getProvider extracts the provider from a model ID. It handles inference
// profiles such as "us.anthropic.claude-3-5-sonnet-20241022-v2:0" as well
// as direct IDs such as "anthropic.claude-3-sonnet-20240229-v1:0".
func getProvider(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) < 2 {
		return parts[0]
	}
	// A two-letter lowercase first segment is a region prefix.
	if len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
		return parts[1]
	}
	return parts[0]
}

// CreateCompletion sends the messages to the provider selected by the model
// ID and returns its completion.
func (c *Client) CreateCompletion(ctx context.Context,
	modelID string,
	messages []Message,
	options llms.CallOptions,
) (*llms.ContentResponse, error) {
	provider := getProvider(modelID)
	switch provider {
	case "anthropic":
		return createAnthropicCompletion(ctx, c.client, modelID, messages, options)
	default:
		return nil, errors.Newf("bedrock: unsupported provider %q", provider)
	}
}

func getMaxTokens(maxTokens, defaultValue int) int {
	if maxTokens <= 0 {
		return defaultValue
	}
	return maxTokens
}
