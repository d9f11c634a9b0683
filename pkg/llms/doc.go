// Package llms defines the provider-neutral model of an LLM conversation:
// messages with typed content parts, tool declarations, call options and the
// Model interface every provider implements.
//
// Provider subpackages (anthropic, openai, googleai, bedrock) translate this
// model to and from their SDK wire formats; their internal directories hold
// the provider-specific clients.
package llms
