// Package event routes session events between the orchestrator and the
// surfaces observing it (control-surface pushes, emergency alerting).
package event

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published by the session layer.
const (
	TypeSessionState       = "session.state"
	TypeSessionTranscript  = "session.transcript"
	TypeSessionMessage     = "session.message"
	TypeSessionError       = "session.error"
	TypeEmergencyActivated = "emergency.activated"
	TypeEmergencyDismissed = "emergency.dismissed"
)

// Event is one published occurrence within a session.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Handler handles published events.
type Handler func(evt Event)

type subscription struct {
	id       string
	patterns []string
	handler  Handler
}

// Bus fans events out to pattern subscribers. Handlers run on the
// publisher's goroutine so state pushes keep event order.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	logger        zerolog.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subscriptions: make(map[string]*subscription),
		logger:        logger.With().Str("component", "eventbus").Logger(),
	}
}

// Subscribe registers a handler for events matching any of the patterns and
// returns a subscription id for Unsubscribe.
func (b *Bus) Subscribe(patterns []string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.subscriptions[id] = &subscription{id: id, patterns: patterns, handler: handler}
	b.logger.Debug().Strs("patterns", patterns).Msg("subscription added")
	return id
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, id)
}

// Publish delivers the event to every matching subscriber.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if matchesAny(evt.Type, sub.patterns) {
			sub.handler(evt)
		}
	}
}

func matchesAny(eventType string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, eventType) {
			return true
		}
	}
	return false
}

// matchPattern supports dotted wildcards: "session.*" matches
// "session.state" and "session.message".
func matchPattern(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	eventParts := strings.Split(eventType, ".")
	for i, pp := range patternParts {
		if pp == "*" {
			return true
		}
		if i >= len(eventParts) || pp != eventParts[i] {
			return false
		}
	}
	return len(patternParts) == len(eventParts)
}
