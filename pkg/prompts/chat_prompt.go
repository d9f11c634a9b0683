package prompts

import (
	"strings"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/pkg/llmutils"
)

// ChatPromptValue is a prompt value backed by a list of chat messages.
type ChatPromptValue []llms.Message

var _ llms.PromptValue = ChatPromptValue{}

// String renders the messages in a human-readable transcript form.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the message slice.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}
