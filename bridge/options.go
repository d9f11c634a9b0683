package bridge

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/callbacks"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/prompts"
	"github.com/effective-security/mcpbridge/pkg/schema"
	"github.com/effective-security/mcpbridge/store"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultMaxToolRounds bounds how many tool rounds one query may run.
	DefaultMaxToolRounds = 5
	// DefaultMaxRetries bounds retries of LLM responses with no choices.
	DefaultMaxRetries = 3
	// DefaultMaxMessages bounds the request payload message count.
	DefaultMaxMessages = 100
	// DefaultMaxContentSize bounds the request payload content bytes.
	DefaultMaxContentSize = 256 * 1024
)

// Option is a function that can be used to modify the behavior of the bridge Config.
type Option func(*Config)

// Config controls one bridge instance. The scalar fields load from YAML; the
// rest are set programmatically via options.
type Config struct {
	// SystemPrompt is the instruction message sent ahead of the conversation.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// Model overrides the LLM's default model for bridge calls.
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	modelSet bool

	// Temperature is the sampling temperature for bridge calls.
	Temperature    float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"gte=0,lte=2"`
	temperatureSet bool

	// MaxToolRounds is the maximum number of tool rounds per query,
	// DefaultMaxToolRounds when zero.
	MaxToolRounds int `json:"max_tool_rounds,omitempty" yaml:"max_tool_rounds,omitempty" validate:"gte=0"`

	// MaxMessages is the maximum request payload message count,
	// DefaultMaxMessages when zero.
	MaxMessages int `json:"max_messages,omitempty" yaml:"max_messages,omitempty" validate:"gte=0"`

	// MaxContentSize is the maximum request payload content bytes,
	// DefaultMaxContentSize when zero.
	MaxContentSize int `json:"max_content_size,omitempty" yaml:"max_content_size,omitempty" validate:"gte=0"`

	// ChatID pins the session to an existing chat. A new chat ID is minted
	// when empty.
	ChatID string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`

	// SkipHistory excludes prior turns from LLM requests. Turns are still
	// recorded in the conversation.
	SkipHistory bool `json:"skip_history,omitempty" yaml:"skip_history,omitempty"`

	// CallbackHandler receives query, LLM and tool lifecycle events.
	CallbackHandler callbacks.Callback `json:"-" yaml:"-"`

	// Store mirrors the conversation, when set.
	Store store.MessageStore `json:"-" yaml:"-"`

	// PromptTemplate renders the system prompt from PromptInput. It takes
	// precedence over SystemPrompt.
	PromptTemplate prompts.FormatPrompter `json:"-" yaml:"-"`

	// PromptInput is the input for PromptTemplate.
	PromptInput map[string]any `json:"-" yaml:"-"`

	// ResponseFormat constrains the model output format.
	ResponseFormat *schema.ResponseFormat `json:"-" yaml:"-"`

	// formatInstructions describe the expected output to the model when no
	// response format is enforced.
	formatInstructions string
}

// withFormatInstructions returns a copy of the config carrying output format
// instructions for the system prompt.
func (c *Config) withFormatInstructions(instructions string) *Config {
	clone := *c
	clone.formatInstructions = instructions
	return &clone
}

// NewConfig builds a config from options.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate the config
func (c *Config) Validate() error {
	validate := validator.New()
	err := validate.Struct(c)
	if err != nil {
		return errors.Wrap(err, "invalid bridge config")
	}
	return nil
}

// LoadConfig loads the bridge configuration from a YAML or JSON file,
// expanding environment variables.
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load bridge config")
	}
	// values from file behave as explicitly set
	cfg.modelSet = cfg.Model != ""
	cfg.temperatureSet = cfg.Temperature != 0
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// WithSystemPrompt sets the instruction message sent ahead of the conversation.
func WithSystemPrompt(prompt string) Option {
	return func(o *Config) {
		o.SystemPrompt = prompt
	}
}

// WithPromptTemplate renders the system prompt from a template and input.
func WithPromptTemplate(template prompts.FormatPrompter, input map[string]any) Option {
	return func(o *Config) {
		o.PromptTemplate = template
		o.PromptInput = input
	}
}

// WithMaxToolRounds bounds how many tool rounds one query may run.
func WithMaxToolRounds(rounds int) Option {
	return func(o *Config) {
		o.MaxToolRounds = rounds
	}
}

// WithMaxMessages bounds the request payload message count.
func WithMaxMessages(messages int) Option {
	return func(o *Config) {
		o.MaxMessages = messages
	}
}

// WithMaxContentSize bounds the request payload content bytes.
func WithMaxContentSize(size int) Option {
	return func(o *Config) {
		o.MaxContentSize = size
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callback callbacks.Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callback
	}
}

// WithMessageStore mirrors the conversation into the given store.
func WithMessageStore(mstore store.MessageStore) Option {
	return func(o *Config) {
		o.Store = mstore
	}
}

// WithChatID pins the session to an existing chat.
func WithChatID(chatID string) Option {
	return func(o *Config) {
		o.ChatID = chatID
	}
}

// WithModelName overrides the LLM's default model for bridge calls.
func WithModelName(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithTemperature sets the sampling temperature for bridge calls.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithSkipHistory excludes prior turns from LLM requests.
func WithSkipHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipHistory = skip
	}
}

// WithResponseFormat constrains the model output format.
func WithResponseFormat(format *schema.ResponseFormat) Option {
	return func(o *Config) {
		o.ResponseFormat = format
	}
}

// WithJSONMode makes the model return a JSON object.
func WithJSONMode() Option {
	return func(o *Config) {
		o.ResponseFormat = &schema.ResponseFormat{Type: "json_object"}
	}
}

// GetCallOptions renders the per-call LLM options for one request.
func (c *Config) GetCallOptions(options ...llms.CallOption) []llms.CallOption {
	callOptions := append([]llms.CallOption{}, options...)
	if c.modelSet {
		callOptions = append(callOptions, llms.WithModel(c.Model))
	}
	if c.temperatureSet {
		callOptions = append(callOptions, llms.WithTemperature(c.Temperature))
	}
	if c.ResponseFormat != nil {
		callOptions = append(callOptions, llms.WithResponseFormat(c.ResponseFormat))
	}
	return callOptions
}
