package openai

import (
	"github.com/effective-security/mcpbridge/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/mcpbridge/pkg/schema"
)

const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	baseAPIBaseEnvVarName  = "OPENAI_API_BASE"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec
)

type ProviderType string

const (
	ProviderOpenAI     ProviderType = "OPENAI"
	ProviderAzure      ProviderType = "AZURE"
	ProviderAzureAD    ProviderType = "AZURE_AD"
	ProviderPerplexity ProviderType = "PERPLEXITY"
)

const DefaultAPIVersion = "2023-05-15"

type options struct {
	token          string
	model          string
	embeddingModel string
	baseURL        string
	organization   string
	provider       ProviderType
	httpClient     openaiclient.Doer
	responseFormat *schema.ResponseFormat

	// apiVersion is required for Azure and Azure AD providers.
	apiVersion string
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken sets the API token. Falls back to OPENAI_API_KEY.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel sets the model. Falls back to OPENAI_MODEL. For Azure this is
// the deployment name and is required.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithEmbeddingModel sets the embedding model. Required for Azure.
func WithEmbeddingModel(embeddingModel string) Option {
	return func(opts *options) {
		opts.embeddingModel = embeddingModel
	}
}

// WithBaseURL sets the endpoint. Falls back to OPENAI_BASE_URL, then the
// public OpenAI endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization sets the organization header. Falls back to
// OPENAI_ORGANIZATION.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider picks the provider flavor; ProviderOpenAI when unset.
func WithProvider(apiType ProviderType) Option {
	return func(opts *options) {
		opts.provider = apiType
	}
}

// WithAPIVersion sets the Azure api-version; DefaultAPIVersion when unset.
func WithAPIVersion(apiVersion string) Option {
	return func(opts *options) {
		opts.apiVersion = apiVersion
	}
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client openaiclient.Doer) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithResponseFormat sets a structured response format for completions.
func WithResponseFormat(responseFormat *schema.ResponseFormat) Option {
	return func(opts *options) {
		opts.responseFormat = responseFormat
	}
}
