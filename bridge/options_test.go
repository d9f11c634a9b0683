package bridge

import (
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/prompts"
	"github.com/effective-security/mcpbridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewConfig(t *testing.T) {
	cfg := NewConfig()
	assert.Empty(t, cfg.SystemPrompt)
	assert.False(t, cfg.modelSet)
	assert.False(t, cfg.temperatureSet)
	assert.Zero(t, cfg.MaxToolRounds)
	assert.Nil(t, cfg.ResponseFormat)
	require.NoError(t, cfg.Validate())

	template := prompts.NewPromptTemplate("You answer about {{.topic}}.", []string{"topic"})
	callback := &recordingCallback{}
	mstore := store.NewMemoryStore()
	cfg = NewConfig(
		WithSystemPrompt("You are a weather assistant."),
		WithPromptTemplate(template, map[string]any{"topic": "weather"}),
		WithMaxToolRounds(7),
		WithMaxMessages(42),
		WithMaxContentSize(1024),
		WithCallback(callback),
		WithMessageStore(mstore),
		WithChatID("chat-1"),
		WithModelName("gpt-4o"),
		WithTemperature(0),
		WithSkipHistory(true),
	)
	assert.Equal(t, "You are a weather assistant.", cfg.SystemPrompt)
	assert.NotNil(t, cfg.PromptTemplate)
	assert.Equal(t, "weather", cfg.PromptInput["topic"])
	assert.Equal(t, 7, cfg.MaxToolRounds)
	assert.Equal(t, 42, cfg.MaxMessages)
	assert.Equal(t, 1024, cfg.MaxContentSize)
	assert.NotNil(t, cfg.CallbackHandler)
	assert.NotNil(t, cfg.Store)
	assert.Equal(t, "chat-1", cfg.ChatID)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.True(t, cfg.modelSet)
	assert.True(t, cfg.temperatureSet)
	assert.True(t, cfg.SkipHistory)
	require.NoError(t, cfg.Validate())
}

func Test_Config_Validate(t *testing.T) {
	cfg := NewConfig(WithTemperature(2.5))
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bridge config")

	cfg = NewConfig(WithTemperature(2))
	require.NoError(t, cfg.Validate())
}

func Test_Config_GetCallOptions(t *testing.T) {
	cfg := NewConfig()
	assert.Empty(t, cfg.GetCallOptions())

	cfg = NewConfig(
		WithModelName("gpt-4o"),
		WithTemperature(0.5),
		WithJSONMode(),
	)
	applied := llms.CallOptions{}
	for _, opt := range cfg.GetCallOptions() {
		opt(&applied)
	}
	assert.Equal(t, "gpt-4o", applied.Model)
	assert.Equal(t, 0.5, applied.Temperature)
	require.NotNil(t, applied.ResponseFormat)
	assert.Equal(t, "json_object", applied.ResponseFormat.Type)

	// an explicitly set zero temperature is applied
	cfg = NewConfig(WithTemperature(0))
	applied = llms.CallOptions{Temperature: 0.7}
	for _, opt := range cfg.GetCallOptions() {
		opt(&applied)
	}
	assert.Zero(t, applied.Temperature)
}

func Test_Config_WithFormatInstructions(t *testing.T) {
	cfg := NewConfig(WithSystemPrompt("base"))
	clone := cfg.withFormatInstructions("Respond in JSON.")

	assert.Empty(t, cfg.formatInstructions)
	assert.Equal(t, "Respond in JSON.", clone.formatInstructions)
	assert.Equal(t, "base", clone.SystemPrompt)
}

func Test_LoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.SystemPrompt)

	t.Setenv("BRIDGE_MODEL", "gpt-4o-mini")
	cfg, err = LoadConfig("testdata/bridge.yaml")
	require.NoError(t, err)
	assert.Equal(t, "You are a weather assistant.", cfg.SystemPrompt)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.True(t, cfg.modelSet)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.True(t, cfg.temperatureSet)
	assert.Equal(t, 3, cfg.MaxToolRounds)
	assert.Equal(t, 50, cfg.MaxMessages)
	assert.Equal(t, 65536, cfg.MaxContentSize)
	assert.Equal(t, "chat-42", cfg.ChatID)
	assert.True(t, cfg.SkipHistory)

	_, err = LoadConfig("testdata/invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bridge config")

	_, err = LoadConfig("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load bridge config")
}
