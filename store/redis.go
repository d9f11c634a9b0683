package store

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbridge/chatmodel"
	"github.com/effective-security/mcpbridge/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// maxStoredMessages caps the per-chat history kept in Redis.
const maxStoredMessages = 50

// redisStore implements ChatManager on Redis. Keys are namespaced by tenant
// and chat:
//   - <prefix>/chatstore/<tenantID>/messages/<chatID>  message list
//   - <prefix>/chatstore/<tenantID>/info/<chatID>      chat metadata
//   - <prefix>/chatstore/<tenantID>/chats              set of chat IDs
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a ChatManager backed by Redis. All keys are placed
// under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) ChatManager {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) messagesKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "messages", chatID)
}

func (m *redisStore) chatInfoKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "info", chatID)
}

func (m *redisStore) chatListKey(tenantID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "chats")
}

func (m *redisStore) Messages(ctx context.Context) ([]llms.Message, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	return m.messages(ctx, tenantID, chatID)
}

// messages loads the full message list. Entries that fail to decode are
// logged and skipped rather than failing the whole read.
func (m *redisStore) messages(ctx context.Context, tenantID, chatID string) ([]llms.Message, error) {
	key := m.messagesKey(tenantID, chatID)
	data, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messages from Redis")
	}

	var messages []llms.Message
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal message", "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	key := m.messagesKey(tenantID, chatID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -maxStoredMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store message in Redis")
	}

	// Bump the chat's UpdatedAt.
	_, err = m.UpdateChat(ctx, "", nil)
	return err
}

func (m *redisStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.messagesKey(tenantID, chatID))
	pipe.Del(ctx, m.chatInfoKey(tenantID, chatID))
	pipe.SRem(ctx, m.chatListKey(tenantID), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}

// UpdateChat creates or updates the current chat's title and metadata.
func (m *redisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error) {
	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	chat, err := m.getChatInfo(ctx, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chat info")
	}

	if title != "" {
		chat.Title = title
	}
	if metadata != nil {
		if chat.Metadata == nil {
			chat.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			chat.Metadata[k] = v
		}
	}
	chat.UpdatedAt = time.Now()

	if err := m.putChatInfo(ctx, chat, false); err != nil {
		return nil, err
	}
	return chat, nil
}

func (m *redisStore) putChatInfo(ctx context.Context, chat *ChatInfo, isNew bool) error {
	chatData, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.chatInfoKey(chat.TenantID, chat.ChatID), chatData, 0)
	if isNew {
		pipe.SAdd(ctx, m.chatListKey(chat.TenantID), chat.ChatID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	chatIDs, err := m.client.SMembers(ctx, m.chatListKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	return chatIDs, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	info, err := m.getChatInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	info.Messages, err = m.messages(ctx, info.TenantID, info.ChatID)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// getChatInfo returns the chat metadata without messages, creating and
// persisting a fresh record when the chat does not exist yet.
func (m *redisStore) getChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	data, err := m.client.Get(ctx, m.chatInfoKey(tenantID, id)).Result()
	if err == nil {
		chat := &ChatInfo{}
		if err := json.Unmarshal([]byte(data), chat); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal chat info")
		}
		return chat, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to get chat info from Redis")
	}

	now := time.Now()
	chat := &ChatInfo{
		TenantID:  tenantID,
		ChatID:    id,
		Title:     "New Chat",
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
	if err := m.putChatInfo(ctx, chat, true); err != nil {
		return nil, errors.Wrap(err, "failed to initialize new chat info")
	}
	return chat, nil
}

// GetChatTitle returns the chat title, or an empty string when the chat has
// not been persisted.
func (m *redisStore) GetChatTitle(ctx context.Context, id string) (string, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = chatID
	}

	data, err := m.client.Get(ctx, m.chatInfoKey(tenantID, id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", errors.Wrap(err, "failed to get chat info from Redis")
		}
		return "", nil
	}

	var chat ChatInfo
	if err := json.Unmarshal([]byte(data), &chat); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat.Title, nil
}

func (m *redisStore) ListTenants(ctx context.Context) ([]string, error) {
	root := path.Join(m.prefix, "chatstore")
	// SCAN instead of KEYS to avoid blocking the server.
	iter := m.client.Scan(ctx, 0, root+"/*", 0).Iterator()
	tenants := make(map[string]struct{})

	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), root+"/")
		if tenant, _, ok := strings.Cut(rest, "/"); ok {
			tenants[tenant] = struct{}{}
		} else if rest != "" {
			tenants[rest] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan tenants from Redis")
	}

	result := make([]string, 0, len(tenants))
	for tenant := range tenants {
		result = append(result, tenant)
	}
	return result, nil
}

// Cleanup deletes all chats for a tenant whose last update is older than
// the given duration, returning the number of chats removed.
func (m *redisStore) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	chatListKey := m.chatListKey(tenantID)
	chatIDs, err := m.client.SMembers(ctx, chatListKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	var deleted uint32
	cutoff := time.Now().Add(-olderThan)
	for _, chatID := range chatIDs {
		chatKey := m.chatInfoKey(tenantID, chatID)
		data, err := m.client.Get(ctx, chatKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return 0, errors.Wrap(err, "failed to get chat info")
		}

		var chat ChatInfo
		if err := json.Unmarshal([]byte(data), &chat); err != nil {
			return 0, errors.Wrap(err, "failed to unmarshal chat info")
		}
		if !chat.UpdatedAt.Before(cutoff) {
			continue
		}

		pipe := m.client.Pipeline()
		pipe.Del(ctx, chatKey)
		pipe.Del(ctx, m.messagesKey(tenantID, chatID))
		pipe.SRem(ctx, chatListKey, chatID)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, errors.Wrap(err, "failed to delete chat info and messages from Redis")
		}
		deleted++
	}
	return deleted, nil
}
