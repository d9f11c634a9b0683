package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/effective-security/mcpbridge/chatmodel"
	"github.com/effective-security/mcpbridge/pkg/llms"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]llms.Message
	chats   map[string]*ChatInfo
}

// NewMemoryStore returns a ChatManager backed by process memory,
// for tests and single-session CLI use.
func NewMemoryStore() ChatManager {
	return &inMemory{}
}

func memKey(tenantID, chatID string) string {
	return tenantID + "/" + chatID
}

func (m *inMemory) Messages(ctx context.Context) ([]llms.Message, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.storage == nil {
		return nil, nil
	}
	return m.storage[memKey(tenantID, chatID)], nil
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string][]llms.Message)
	}
	key := memKey(tenantID, chatID)
	m.storage[key] = append(m.storage[key], msgs...)
	m.touchChat(tenantID, chatID)
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(tenantID, chatID)
	if m.storage != nil {
		delete(m.storage, key)
	}
	if m.chats != nil {
		delete(m.chats, key)
	}
	return nil
}

// touchChat creates or refreshes the chat info. The caller must hold the lock.
func (m *inMemory) touchChat(tenantID, chatID string) *ChatInfo {
	if m.chats == nil {
		m.chats = make(map[string]*ChatInfo)
	}
	key := memKey(tenantID, chatID)
	chat := m.chats[key]
	if chat == nil {
		now := time.Now()
		chat = &ChatInfo{
			TenantID:  tenantID,
			ChatID:    chatID,
			Title:     "New Chat",
			CreatedAt: now,
			UpdatedAt: now,
			Metadata:  make(map[string]any),
		}
		m.chats[key] = chat
	} else {
		chat.UpdatedAt = time.Now()
	}
	return chat
}

func (m *inMemory) UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.touchChat(tenantID, chatID)
	if title != "" {
		chat.Title = title
	}
	for k, v := range metadata {
		chat.Metadata[k] = v
	}
	info := *chat
	return &info, nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := tenantID + "/"
	var ids []string
	for key := range m.chats {
		if strings.HasPrefix(key, prefix) {
			ids = append(ids, strings.TrimPrefix(key, prefix))
		}
	}
	return ids, nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chats[memKey(tenantID, id)]
	if chat == nil {
		chat = m.touchChat(tenantID, id)
	}
	info := *chat
	info.Messages = m.storage[memKey(tenantID, id)]
	return &info, nil
}

func (m *inMemory) GetChatTitle(ctx context.Context, id string) (string, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = chatID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat := m.chats[memKey(tenantID, id)]
	if chat == nil {
		return "", nil
	}
	return chat.Title, nil
}

func (m *inMemory) ListTenants(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tenants := make(map[string]struct{})
	for key := range m.chats {
		if idx := strings.IndexByte(key, '/'); idx > 0 {
			tenants[key[:idx]] = struct{}{}
		}
	}
	result := make([]string, 0, len(tenants))
	for tenant := range tenants {
		result = append(result, tenant)
	}
	return result, nil
}

func (m *inMemory) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	prefix := tenantID + "/"
	deleted := uint32(0)
	for key, chat := range m.chats {
		if strings.HasPrefix(key, prefix) && chat.UpdatedAt.Before(cutoff) {
			delete(m.chats, key)
			delete(m.storage, key)
			deleted++
		}
	}
	return deleted, nil
}
