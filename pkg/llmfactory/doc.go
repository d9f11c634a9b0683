// Package llmfactory builds llms.Model instances from a YAML provider
// configuration, selecting among the configured providers by model name or
// falling back to the default provider.
package llmfactory
