package history

import (
	"context"
	"sync"
)

// MemoryStore is a session-scoped in-memory store. Growth within a session
// is unbounded; sessions are short-lived and only the most recent window is
// ever sent downstream.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]Message)}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, conversationID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(ctx context.Context, conversationID string, n int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

// Len reports the number of messages held for a conversation.
func (s *MemoryStore) Len(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[conversationID])
}
