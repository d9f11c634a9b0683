// Package googleai implements the Model interface for Google Gemini models.
// See https://ai.google.dev/ for details.
package googleai

import (
	"context"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"google.golang.org/genai"
)

// GoogleAI is a Google AI API client.
type GoogleAI struct {
	client *genai.Client
	opts   Options
}

var _ llms.Model = (*GoogleAI)(nil)

// New creates a GoogleAI client against the Gemini API backend.
func New(ctx context.Context, opts ...Option) (*GoogleAI, error) {
	clientOptions := DefaultOptions()
	for _, opt := range opts {
		opt(&clientOptions)
	}
	clientOptions.EnsureAuthPresent()

	gi := &GoogleAI{
		opts: clientOptions,
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     clientOptions.CloudProject,
		Location:    clientOptions.CloudLocation,
		APIKey:      clientOptions.APIKey,
		Credentials: clientOptions.Credentials,
		HTTPClient:  clientOptions.HTTPClient,
		Backend:     genai.BackendGeminiAPI,
	})
	if err != nil {
		return gi, err
	}
	gi.client = client

	return gi, nil
}
