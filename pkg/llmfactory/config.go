// Package llmfactory builds LLM model clients from file-based provider
// configuration.
package llmfactory

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

// Config is the factory configuration.
type Config struct {
	// Providers lists the configured providers.
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"required,dive"`
	// DefaultProvider names the provider used when no other match is found.
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// ToolModels maps a tool name to its preferred model names.
	// A "default" key applies to tools without an explicit mapping.
	ToolModels map[string][]string `json:"tool_models" yaml:"tool_models"`
	// BridgeModels maps a bridge name to its preferred model names.
	// A "default" key applies to assistants without an explicit mapping.
	BridgeModels map[string][]string `json:"bridge_models" yaml:"bridge_models"`
}

// ProviderConfig describes one provider and the models it serves.
type ProviderConfig struct {
	Name            string       `json:"name" yaml:"name" validate:"required"`
	Token           string       `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string       `json:"default_model,omitempty" yaml:"default_model,omitempty" validate:"required"`
	AvailableModels []string     `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	OpenAI          OpenAIConfig `json:"open_ai" yaml:"open_ai"`
}

// OpenAIConfig carries API endpoint settings. Despite the name it covers
// every provider type, since most expose OpenAI-compatible endpoints.
type OpenAIConfig struct {
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// APIType selects the provider implementation:
	// OPENAI|AZURE|AZURE_AD|ANTHROPIC|GOOGLEAI|BEDROCK|PERPLEXITY
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// OrgID selects which organization's quota and billing to use.
	OrgID            string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
	AssistantVersion string `json:"assistant_version,omitempty" yaml:"assistant_version,omitempty"`
}

// FindModel returns the first preferred model this provider serves, or the
// provider's default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// Validate the config.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid LLM config")
	}
	return nil
}

// LoadConfig reads and validates the configuration file, expanding
// environment variables. An empty location yields an empty config.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
