// Package history stores bounded per-conversation message logs. Interactive
// sessions use the in-memory store and clear it on session end; asynchronous
// bot channels use the Redis store, whose entries expire on their own so
// nothing sensitive outlives the conversation.
package history

import (
	"context"
	"time"
)

// DefaultWindow is the number of most recent messages handed to the dialogue
// backend as context.
const DefaultWindow = 10

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation log. Messages are never mutated
// after creation.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a bounded, append-only per-conversation message log. Ordering is
// insertion order; role alternation is not enforced.
type Store interface {
	// Append adds a message to the conversation's log.
	Append(ctx context.Context, conversationID string, msg Message) error

	// Recent returns up to n most recent messages in chronological order.
	Recent(ctx context.Context, conversationID string, n int) ([]Message, error)

	// Clear removes the conversation's log. Implementations backed by
	// external storage with their own expiry may implement this as a no-op
	// for session teardown (persisted history survives the session).
	Clear(ctx context.Context, conversationID string) error
}
