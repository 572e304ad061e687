package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a persisted conversation survives after its last
// message. The expiry is refreshed on every append.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "chat:"

// RedisStore persists conversation logs as per-conversation Redis lists.
// Entries are pushed to the head, so the native order is most-recent-first;
// Recent reverses before returning. Every write refreshes the key's TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a store over an existing Redis client. A zero ttl
// falls back to DefaultTTL.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, conversationID string, msg Message) error {
	key := keyPrefix + conversationID
	if err := s.client.LPush(ctx, key, EncodeEntry(msg)).Err(); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("history expire refresh: %w", err)
	}
	return nil
}

// Recent implements Store.
func (s *RedisStore) Recent(ctx context.Context, conversationID string, n int) ([]Message, error) {
	if n <= 0 {
		n = DefaultWindow
	}
	entries, err := s.client.LRange(ctx, keyPrefix+conversationID, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	return DecodeEntries(entries), nil
}

// Clear implements Store. Session teardown must not erase persisted history;
// the TTL handles removal. Clear is therefore a no-op.
func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	return nil
}

// EncodeEntry renders a message in the persisted "<Role>: <text>" form.
func EncodeEntry(msg Message) string {
	role := "User"
	if msg.Role == RoleAssistant {
		role = "AI"
	}
	return role + ": " + msg.Text
}

// DecodeEntries converts most-recent-first persisted entries into
// chronological messages. Entries without a role prefix decode as user text.
func DecodeEntries(entries []string) []Message {
	msgs := make([]Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		msgs = append(msgs, DecodeEntry(entries[i]))
	}
	return msgs
}

// DecodeEntry parses one persisted entry.
func DecodeEntry(entry string) Message {
	role, text, found := strings.Cut(entry, ":")
	if !found {
		return Message{Role: RoleUser, Text: strings.TrimSpace(entry)}
	}
	msg := Message{Text: strings.TrimSpace(text)}
	switch strings.TrimSpace(role) {
	case "AI":
		msg.Role = RoleAssistant
	default:
		msg.Role = RoleUser
	}
	return msg
}
