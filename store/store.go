// Package store persists conversation history and chat metadata, keyed by
// the tenant and chat IDs carried in the chat context.
package store

import (
	"context"
	"time"

	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbridge", "store")

// MessageStore persists the message history of the chat in context.
type MessageStore interface {
	Messages(ctx context.Context) ([]llms.Message, error)
	Add(ctx context.Context, msgs ...llms.Message) error
	Reset(ctx context.Context) error
}

// ChatManager extends MessageStore with chat metadata operations.
type ChatManager interface {
	MessageStore

	// UpdateChat creates or updates the chat in context with the title and
	// metadata, and returns the resulting info.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error)
	ListChats(ctx context.Context) ([]string, error)
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
	GetChatTitle(ctx context.Context, id string) (string, error)
	ListTenants(ctx context.Context) ([]string, error)
	// Cleanup removes the tenant's chats not updated for olderThan,
	// and returns the number of deleted chats.
	Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error)
}

// ChatInfo describes a stored chat.
type ChatInfo struct {
	TenantID  string         `json:"tenant_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Messages  []llms.Message `json:"messages,omitempty"`
}
