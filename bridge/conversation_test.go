package bridge

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/chatmodel"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Messages(context.Context) ([]llms.Message, error) {
	return nil, errors.New("store unavailable")
}

func (failingStore) Add(context.Context, ...llms.Message) error {
	return errors.New("store unavailable")
}

func (failingStore) Reset(context.Context) error {
	return errors.New("store unavailable")
}

func Test_Conversation_Append(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(nil)

	c.Append(ctx)
	assert.Equal(t, 0, c.Len())

	c.Append(ctx, llms.MessageFromTextParts(llms.RoleHuman, "hello"))
	c.Append(ctx,
		llms.MessageFromTextParts(llms.RoleAI, "hi"),
		llms.MessageFromTextParts(llms.RoleHuman, "how are you?"),
	)
	assert.Equal(t, 3, c.Len())

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, llms.RoleHuman, snap[0].Role)
	assert.Equal(t, llms.RoleAI, snap[1].Role)
	assert.Equal(t, llms.RoleHuman, snap[2].Role)
	assert.Equal(t, "hello", partText(snap[0]))
}

func Test_Conversation_SnapshotIsolated(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(nil)
	c.Append(ctx, llms.MessageFromTextParts(llms.RoleHuman, "original"))

	snap := c.Snapshot()
	snap[0].Parts[0] = llms.TextContent{Text: "mutated"}
	snap = append(snap, llms.MessageFromTextParts(llms.RoleAI, "extra"))
	_ = snap

	fresh := c.Snapshot()
	require.Len(t, fresh, 1)
	assert.Equal(t, "original", partText(fresh[0]))
}

func Test_Conversation_SnapshotDeepCopiesToolCalls(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(nil)
	c.Append(ctx, llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "get_alerts", Arguments: `{"state":"TX"}`},
	}))

	snap := c.Snapshot()
	toolCall, ok := snap[0].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	toolCall.FunctionCall.Name = "mutated"
	toolCall.FunctionCall.Arguments = `{"state":"CA"}`

	fresh := c.Snapshot()
	stored, ok := fresh[0].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "get_alerts", stored.FunctionCall.Name)
	assert.Equal(t, `{"state":"TX"}`, stored.FunctionCall.Arguments)
}

func Test_Conversation_StoreMirror(t *testing.T) {
	ctx := chatmodel.WithChatContext(context.Background(),
		chatmodel.NewChatContext("t1", "chat1", nil))

	mstore := store.NewMemoryStore()
	c := NewConversation(mstore)

	c.Append(ctx,
		llms.MessageFromTextParts(llms.RoleHuman, "hello"),
		llms.MessageFromTextParts(llms.RoleAI, "hi"),
	)
	stored, err := mstore.Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	c.Reset(ctx)
	assert.Equal(t, 0, c.Len())
	stored, err = mstore.Messages(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func Test_Conversation_StoreFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	c := NewConversation(failingStore{})

	c.Append(ctx, llms.MessageFromTextParts(llms.RoleHuman, "hello"))
	assert.Equal(t, 1, c.Len())

	c.Reset(ctx)
	assert.Equal(t, 0, c.Len())
}
