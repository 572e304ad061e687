package event

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"*", "session.state", true},
		{"session.*", "session.state", true},
		{"session.*", "session.message", true},
		{"session.*", "emergency.activated", false},
		{"session.state", "session.state", true},
		{"session.state", "session.state.extra", false},
		{"emergency.*", "emergency.dismissed", true},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.eventType); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.eventType, got, tt.want)
		}
	}
}

func TestBus_PublishDeliversInOrder(t *testing.T) {
	b := NewBus(zerolog.Nop())
	var got []string
	b.Subscribe([]string{"session.*"}, func(evt Event) {
		got = append(got, evt.Type)
	})

	b.Publish(Event{Type: TypeSessionState})
	b.Publish(Event{Type: TypeSessionMessage})
	b.Publish(Event{Type: TypeEmergencyActivated}) // no match

	if len(got) != 2 {
		t.Fatalf("delivered = %d, want 2", len(got))
	}
	if got[0] != TypeSessionState || got[1] != TypeSessionMessage {
		t.Errorf("delivery order = %v", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(zerolog.Nop())
	calls := 0
	id := b.Subscribe([]string{"*"}, func(evt Event) { calls++ })
	b.Publish(Event{Type: TypeSessionState})
	b.Unsubscribe(id)
	b.Publish(Event{Type: TypeSessionState})

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
}
