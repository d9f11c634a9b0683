package bridge

import (
	"context"
	"slices"
	"sync"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/mcpbridge/store"
	"github.com/effective-security/xlog"
)

// Conversation is the append-only message history of one bridge session.
// Turns are never reordered or dropped; Reset starts a new history. When a
// message store is attached, appends are mirrored into it so the history
// survives across queries, but a store failure never fails the append.
type Conversation struct {
	store store.MessageStore

	mu       sync.RWMutex
	messages []llms.Message
}

// NewConversation creates an empty conversation. The store is optional.
func NewConversation(mstore store.MessageStore) *Conversation {
	return &Conversation{store: mstore}
}

// Append adds messages to the end of the history.
func (c *Conversation) Append(ctx context.Context, msgs ...llms.Message) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	c.messages = append(c.messages, msgs...)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Add(ctx, msgs...); err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "message_store_add",
				"err", err.Error(),
			)
		}
	}
}

// Snapshot returns a copy of the history. Mutating the returned messages or
// their parts does not affect the conversation.
func (c *Conversation) Snapshot() []llms.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make([]llms.Message, len(c.messages))
	for i, msg := range c.messages {
		parts := make([]llms.ContentPart, len(msg.Parts))
		for j, part := range msg.Parts {
			parts[j] = clonePart(part)
		}
		snap[i] = llms.Message{
			Role:  msg.Role,
			Parts: parts,
		}
	}
	return snap
}

// clonePart copies the pointer- and slice-bearing parts so a snapshot never
// aliases the stored message.
func clonePart(part llms.ContentPart) llms.ContentPart {
	switch p := part.(type) {
	case llms.ToolCall:
		if p.FunctionCall != nil {
			fc := *p.FunctionCall
			p.FunctionCall = &fc
		}
		return p
	case llms.BinaryContent:
		p.Data = slices.Clone(p.Data)
		return p
	default:
		return part
	}
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Reset clears the history and the mirrored store.
func (c *Conversation) Reset(ctx context.Context) {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Reset(ctx); err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "message_store_reset",
				"err", err.Error(),
			)
		}
	}
}
