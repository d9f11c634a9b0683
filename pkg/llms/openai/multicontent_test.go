package openai

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts ...Option) llms.Model {
	t.Helper()
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey == "" || openaiKey == "fakekey" {
		t.Skip("OPENAI_API_KEY not set")
		return nil
	}

	llm, err := New(opts...)
	require.NoError(t, err)
	return llm
}

func Test_GenerateText(t *testing.T) {
	t.Parallel()
	llm := newTestClient(t)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "What US state is Austin the capital of?", "Answer with the state name."),
	}

	rsp, err := llm.GenerateContent(context.Background(), content)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "texas", strings.ToLower(rsp.Choices[0].Content))
}

func Test_GenerateChatSequence(t *testing.T) {
	t.Parallel()
	llm := newTestClient(t)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "Name two Texas cities"),
		llms.MessageFromTextParts(llms.RoleAI, "Houston and Lubbock"),
		llms.MessageFromTextParts(llms.RoleHuman, "Which of these is larger?"),
	}

	rsp, err := llm.GenerateContent(context.Background(), content)
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "houston", strings.ToLower(rsp.Choices[0].Content))
}

func Test_GenerateWithImagePart(t *testing.T) {
	t.Parallel()

	llm := newTestClient(t, WithModel("gpt-4o"))

	content := []llms.Message{
		{
			Role: llms.RoleHuman,
			Parts: []llms.ContentPart{
				llms.ImageURLPart("https://upload.wikimedia.org/wikipedia/commons/thumb/3/3a/Cat03.jpg/481px-Cat03.jpg"),
				llms.TextPart("describe this image in one sentence"),
			},
		},
	}

	rsp, err := llm.GenerateContent(context.Background(), content, llms.WithMaxTokens(300))
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "cat", strings.ToLower(rsp.Choices[0].Content))
}

func Test_GenerateStreaming(t *testing.T) {
	t.Parallel()
	llm := newTestClient(t)

	content := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman,
			"What US state is Austin the capital of?",
			"Answer with the state name."),
	}

	var sb strings.Builder
	rsp, err := llm.GenerateContent(context.Background(), content,
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			sb.Write(chunk)
			return nil
		}))
	require.NoError(t, err)

	require.NotEmpty(t, rsp.Choices)
	assert.Regexp(t, "texas", strings.ToLower(rsp.Choices[0].Content))
	assert.Regexp(t, "texas", strings.ToLower(sb.String()))
}
