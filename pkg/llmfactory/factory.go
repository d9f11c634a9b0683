package llmfactory

import (
	"context"
	"slices"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llms/anthropic"
	"github.com/effective-security/mcpbridge/pkg/llms/bedrock"
	"github.com/effective-security/mcpbridge/pkg/llms/googleai"
	"github.com/effective-security/mcpbridge/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default
// implementation, mostly in tests.
var NewLLM = CreateLLM

// Factory creates and caches LLM models from provider configuration.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type, e.g.
	// OPEN_AI, AZURE, AZURE_AD, ANTHROPIC, GOOGLEAI, BEDROCK, PERPLEXITY.
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by name, falling back to the
	// default model when none of the names is configured.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// ToolModel returns the model configured for a tool.
	ToolModel(toolName string, preferredModels ...string) (llms.Model, error)
	// BridgeModel returns the model configured for a bridge.
	BridgeModel(bridgeName string, preferredModels ...string) (llms.Model, error)
}

// Load reads the factory configuration from a file and creates the factory.
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	toolModels      map[string][]string
	bridgeModels    map[string][]string
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates an LLM factory from the configuration. The default provider
// is the one named by DefaultProvider, or the first one configured.
func New(cfg *Config) Factory {
	f := &factory{
		cfg:          cfg,
		byType:       make(map[string]llms.Model),
		byName:       make(map[string]llms.Model),
		toolModels:   make(map[string][]string),
		bridgeModels: make(map[string][]string),
	}

	for k, v := range cfg.ToolModels {
		f.toolModels[k] = slices.Clone(v)
	}
	for k, v := range cfg.BridgeModels {
		f.bridgeModels[k] = slices.Clone(v)
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}
	if f.defaultProvider == nil && len(cfg.Providers) > 0 {
		f.defaultProvider = cfg.Providers[0]
	}

	return f
}

// CreateLLM creates a model client for the provider configuration.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType := strings.ToUpper(cfg.OpenAI.APIType)
	switch provType {
	case "OPENAI", "OPEN_AI":
		return newOpenAICompatible(openai.ProviderOpenAI, cfg, preferredModels...)
	case "PERPLEXITY":
		return newOpenAICompatible(openai.ProviderPerplexity, cfg, preferredModels...)
	case "AZURE":
		return newOpenAICompatible(openai.ProviderAzure, cfg, preferredModels...)
	case "AZURE_AD":
		return newOpenAICompatible(openai.ProviderAzureAD, cfg, preferredModels...)
	case "ANTHROPIC":
		return newAnthropic(cfg, preferredModels...)
	case "GOOGLEAI":
		return newGoogleAI(cfg, preferredModels...)
	case "BEDROCK":
		return newBedrock(cfg, preferredModels...)
	}
	return nil, errors.Errorf("unsupported provider type: %s", provType)
}

func newOpenAICompatible(provider openai.ProviderType, cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithProvider(provider),
		openai.WithModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.OrgID != "" && provider == openai.ProviderOpenAI {
		opts = append(opts, openai.WithOrganization(cfg.OpenAI.OrgID))
	}
	if cfg.OpenAI.APIVersion != "" &&
		(provider == openai.ProviderAzure || provider == openai.ProviderAzureAD) {
		opts = append(opts, openai.WithAPIVersion(cfg.OpenAI.APIVersion))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		opts = append(opts, anthropic.WithToken(cfg.Token))
	}
	return anthropic.New(opts...)
}

func newGoogleAI(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithDefaultModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.Token))
	}
	return googleai.New(context.Background(), opts...)
}

func newBedrock(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	opts := []bedrock.Option{
		bedrock.WithModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		// Token carries static AWS credentials as "key_id:secret[:session]";
		// when empty the default credential chain is used.
		parts := strings.SplitN(cfg.Token, ":", 3)
		if len(parts) < 2 {
			return nil, errors.New("bedrock token must be in key_id:secret[:session] format")
		}
		var session string
		if len(parts) == 3 {
			session = parts[2]
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(parts[0], parts[1], session)))
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load AWS config")
		}
		opts = append(opts, bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)))
	}
	return bedrock.New(opts...)
}

func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}
	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[providerType]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if cfg.OpenAI.APIType != providerType {
			continue
		}
		model, err := NewLLM(cfg)
		if err != nil {
			return nil, err
		}

		logger.KV(xlog.DEBUG,
			"status", "created_llm",
			"type", cfg.OpenAI.APIType,
			"version", cfg.OpenAI.APIVersion,
			"name", cfg.Name)

		f.byType[providerType] = model
		return model, nil
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, modelName := range modelNames {
		if client, ok := f.byName[modelName]; ok {
			return client, nil
		}

		for _, cfg := range f.cfg.Providers {
			if !slices.Contains(cfg.AvailableModels, modelName) {
				continue
			}
			model, err := NewLLM(cfg, modelNames...)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "NewLLM",
					"type", cfg.OpenAI.APIType,
					"version", cfg.OpenAI.APIVersion,
					"models", modelNames,
				)
				continue
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.OpenAI.APIType,
				"version", cfg.OpenAI.APIVersion,
				"name", cfg.Name)

			f.byName[modelName] = model
			return model, nil
		}
	}
	return f.DefaultModel()
}

// ToolModel returns the model mapped to a tool, then the "default" mapping,
// then falls back to ModelByName with the preferred models.
func (f *factory) ToolModel(toolName string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.toolModels[toolName]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.toolModels["default"]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}

// BridgeModel returns the model mapped to a bridge, then the
// "default" mapping, then falls back to ModelByName.
func (f *factory) BridgeModel(bridgeName string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.bridgeModels[bridgeName]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.bridgeModels["default"]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}
