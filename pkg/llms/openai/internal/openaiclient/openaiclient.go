// Package openaiclient is a thin HTTP client for the OpenAI-compatible
// chat, responses and embeddings endpoints, covering OpenAI itself, Azure
// OpenAI deployments and Perplexity.
package openaiclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultBaseURL              = "https://api.openai.com/v1"
	DefaultFunctionCallBehavior = "auto"
	DefaultChatModel            = "gpt-5-mini"
	DefaultMaxTokens            = 2 * 16384
)

// ErrEmptyResponse is returned when the API reply carries no choices or data.
var ErrEmptyResponse = errors.New("empty response")

type ProviderType string

const (
	ProviderOpenAI     ProviderType = "OPENAI"
	ProviderAzure      ProviderType = "AZURE"
	ProviderAzureAD    ProviderType = "AZURE_AD"
	ProviderPerplexity ProviderType = "PERPLEXITY"
)

// ToolType is the type of a tool offered to the model.
type ToolType string

const (
	ToolTypeFunction  ToolType = "function"
	ToolTypeWebSearch ToolType = "web_search"
)

// Client talks to one OpenAI-compatible endpoint. The zero value is not
// usable; construct it with New.
type Client struct {
	Model          string
	Provider       ProviderType
	EmbeddingModel string
	ResponseFormat *schema.ResponseFormat

	token        string
	baseURL      string
	organization string
	httpClient   Doer

	// apiVersion is required for Azure and Azure AD endpoints.
	apiVersion           string
	supportsResponsesAPI bool
}

// Option mutates the client during New.
type Option func(*Client) error

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a client for the given provider and endpoint.
func New(provider ProviderType, model string, token string, baseURL string, organization string,
	apiVersion string, httpClient Doer, embeddingModel string,
	responseFormat *schema.ResponseFormat,
	opts ...Option,
) (*Client, error) {
	c := &Client{
		Model:                model,
		Provider:             provider,
		EmbeddingModel:       embeddingModel,
		ResponseFormat:       responseFormat,
		token:                token,
		baseURL:              strings.TrimSuffix(baseURL, "/"),
		organization:         organization,
		apiVersion:           apiVersion,
		httpClient:           httpClient,
		supportsResponsesAPI: isResponsesAPI(provider, apiVersion),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// responsesAPIThreshold is the first Azure api-version that exposes the
// /responses endpoint.
var responsesAPIThreshold = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func isResponsesAPI(provider ProviderType, apiVersion string) bool {
	switch provider {
	case ProviderAzure, ProviderAzureAD:
		// Azure api-versions are YYYY-MM-DD dates, sometimes with a
		// "-preview" suffix. Compare as dates, not strings.
		version, _, _ := strings.Cut(apiVersion, "-preview")
		date, err := time.Parse("2006-01-02", strings.TrimSpace(version))
		if err != nil {
			return false
		}
		return !date.Before(responsesAPIThreshold)
	case ProviderOpenAI, "OPEN_AI":
		return true
	default:
		return false
	}
}

func (c *Client) SupportsResponsesAPI() bool {
	return c.supportsResponsesAPI
}

// Completion is the text of a single completion choice.
type Completion struct {
	Text string `json:"text"`
}

// CreateCompletion requests a completion and returns the first choice.
func (c *Client) CreateCompletion(ctx context.Context, r *CompletionRequest) (*Completion, error) {
	resp, err := c.createCompletion(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &Completion{
		Text: resp.Choices[0].Message.Content,
	}, nil
}

// EmbeddingRequest is a request to create embeddings for a batch of inputs.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// CreateEmbedding returns one embedding vector per input, in input order.
func (c *Client) CreateEmbedding(ctx context.Context, r *EmbeddingRequest) ([][]float32, error) {
	if r.Model == "" {
		r.Model = defaultEmbeddingModel
	}

	resp, err := c.createEmbedding(ctx, &embeddingPayload{
		Model: r.Model,
		Input: r.Input,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	embeddings := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		embeddings = append(embeddings, d.Embedding)
	}
	return embeddings, nil
}

// CreateChat sends a chat completion request.
func (c *Client) CreateChat(ctx context.Context, r *ChatRequest) (*ChatCompletionResponse, error) {
	if r.Model == "" {
		r.Model = c.defaultModel()
	}
	resp, err := c.createChat(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// CreateResponse sends a request to the Responses API.
func (c *Client) CreateResponse(ctx context.Context, r *responses.ResponseNewParams) (*responses.Response, error) {
	c.applyResponseDefaults(r)
	return c.createResponse(ctx, r)
}

// CreateStreamingResponse sends a Responses API request with SSE streaming.
// streamFunc receives each text delta; the full Response, with usage stats,
// is returned once the response.completed event arrives.
func (c *Client) CreateStreamingResponse(
	ctx context.Context,
	r *responses.ResponseNewParams,
	streamFunc func(ctx context.Context, chunk []byte) error,
) (*responses.Response, error) {
	c.applyResponseDefaults(r)
	return c.createStreamingResponse(ctx, r, streamFunc)
}

func (c *Client) applyResponseDefaults(r *responses.ResponseNewParams) {
	if r.Model == "" {
		r.Model = c.defaultModel()
	}
	if !r.MaxOutputTokens.Valid() {
		r.MaxOutputTokens = param.NewOpt(int64(DefaultMaxTokens))
	}
}

func (c *Client) defaultModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultChatModel
}

func IsAzure(apiType ProviderType) bool {
	return apiType == ProviderAzure || apiType == ProviderAzureAD
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	switch c.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderAzureAD, "OPEN_AI":
		req.Header.Set("Authorization", "Bearer "+c.token)
	default:
		req.Header.Set("api-key", c.token)
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
}

func (c *Client) buildURL(suffix string, model string) string {
	if IsAzure(c.Provider) {
		return c.buildAzureURL(suffix, model)
	}
	return c.baseURL + suffix
}

func (c *Client) buildAzureURL(suffix string, model string) string {
	baseURL := strings.TrimRight(c.baseURL, "/")

	// The /responses API is not nested under /deployments/{deployment};
	// the deployment name travels in the request body instead.
	if suffix == "/responses" {
		return baseURL + "/openai/responses?api-version=" + c.apiVersion
	}

	// /openai/deployments/{model}/chat/completions?api-version={api_version}
	return baseURL + "/openai/deployments/" + model + suffix + "?api-version=" + c.apiVersion
}

type errorMessage struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
