package openaiclient

import (
	"context"
)

// CompletionRequest is a request to complete a single prompt.
type CompletionRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	Temperature      float64  `json:"temperature,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	N                int      `json:"n,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	TopP             float64  `json:"top_p,omitempty"`
	StopWords        []string `json:"stop,omitempty"`
	Seed             int      `json:"seed,omitempty"`

	// StreamingFunc is a function to be called for each chunk of a streaming response.
	StreamingFunc func(ctx context.Context, chunk []byte) error `json:"-"`
}

// createCompletion runs a prompt through the chat completions endpoint
// as a single user message.
func (c *Client) createCompletion(ctx context.Context, payload *CompletionRequest) (*ChatCompletionResponse, error) {
	return c.createChat(ctx, &ChatRequest{
		Model: payload.Model,
		Messages: []*ChatMessage{
			{Role: "user", Content: payload.Prompt},
		},
		Temperature:         payload.Temperature,
		MaxCompletionTokens: payload.MaxTokens,
		N:                   payload.N,
		FrequencyPenalty:    payload.FrequencyPenalty,
		PresencePenalty:     payload.PresencePenalty,
		TopP:                payload.TopP,
		StopWords:           payload.StopWords,
		Seed:                payload.Seed,
		StreamingFunc:       payload.StreamingFunc,
	})
}
