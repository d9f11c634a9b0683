package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// DefaultTenant is used when the caller does not scope the chat to a tenant.
const DefaultTenant = "default"

// ErrInvalidChatContext is returned when an operation requires a chat context
// and the provided context does not carry one.
var ErrInvalidChatContext = errors.New("invalid chat context")

// ChatContext identifies one chat session and one run (query) within it.
type ChatContext interface {
	GetTenantID() string
	GetChatID() string
	// SetChatID rebinds the context to another chat session.
	SetChatID(chatID string)
	// RunID identifies a single query execution within the chat session.
	RunID() string
	// AppData returns immutable app data
	AppData() any
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type chatContext struct {
	tenantID string
	chatID   string
	runID    string
	metadata sync.Map
	appData  any
}

func (c *chatContext) GetTenantID() string {
	return c.tenantID
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) SetChatID(chatID string) {
	c.chatID = chatID
}

func (c *chatContext) RunID() string {
	return c.runID
}

func (c *chatContext) AppData() any {
	return c.appData
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// NewChatContext creates a ChatContext.
// An empty tenantID falls back to DefaultTenant, an empty chatID is replaced
// with a generated flake ID, and a fresh run ID is always assigned.
func NewChatContext(tenantID, chatID string, appData any) ChatContext {
	return &chatContext{
		tenantID: values.StringsCoalesce(tenantID, DefaultTenant),
		chatID:   values.StringsCoalesce(chatID, NewChatID()),
		runID:    NewRunID(),
		appData:  appData,
		metadata: sync.Map{},
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// NewFromContext returns a detached background context that preserves the
// ChatContext from the original, if any. Useful for work that must outlive
// the caller's cancellation.
func NewFromContext(ctx context.Context) context.Context {
	newCtx := context.Background()
	if chatCtx := GetChatContext(ctx); chatCtx != nil {
		newCtx = WithChatContext(newCtx, chatCtx)
	}
	return newCtx
}

// SetChatID rebinds the chat session carried by the context.
// It fails with ErrInvalidChatContext when the context has no ChatContext.
func SetChatID(ctx context.Context, chatID string) (context.Context, error) {
	chatCtx := GetChatContext(ctx)
	if chatCtx == nil {
		return ctx, errors.WithStack(ErrInvalidChatContext)
	}
	chatCtx.SetChatID(chatID)
	return ctx, nil
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetChatID()
	}
	return ""
}

// GetRunID retrieves the run ID from the provided context,
// or an empty string if the context does not carry a ChatContext.
func GetRunID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.RunID()
	}
	return ""
}

// GetTenantAndChatID returns the tenant and chat IDs from the context,
// or ErrInvalidChatContext if the context does not carry a chat session.
func GetTenantAndChatID(ctx context.Context) (string, string, error) {
	chatCtx := GetChatContext(ctx)
	if chatCtx == nil || chatCtx.GetChatID() == "" {
		return "", "", errors.WithStack(ErrInvalidChatContext)
	}
	return chatCtx.GetTenantID(), chatCtx.GetChatID(), nil
}

// NewChatID generates a new chat ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}

// NewRunID generates a new run ID using the flake ID generator.
func NewRunID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
