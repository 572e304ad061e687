package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStore_RoundTripOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var want []string
	for i := 0; i < 14; i++ {
		text := fmt.Sprintf("message %d", i)
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := s.Append(ctx, "conv", Message{Role: role, Text: text, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		want = append(want, text)
	}

	got, err := s.Recent(ctx, "conv", DefaultWindow)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != DefaultWindow {
		t.Fatalf("len(Recent) = %d, want %d", len(got), DefaultWindow)
	}
	for i, msg := range got {
		if msg.Text != want[len(want)-DefaultWindow+i] {
			t.Errorf("Recent[%d] = %q, want %q", i, msg.Text, want[len(want)-DefaultWindow+i])
		}
	}
}

func TestMemoryStore_RecentFewerThanWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		s.Append(ctx, "conv", Message{Role: RoleUser, Text: fmt.Sprintf("m%d", i)})
	}
	got, err := s.Recent(ctx, "conv", DefaultWindow)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(Recent) = %d, want 3", len(got))
	}
	if got[0].Text != "m0" || got[2].Text != "m2" {
		t.Errorf("Recent = %v, want chronological m0..m2", got)
	}
}

func TestMemoryStore_ClearIsolatesConversations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Append(ctx, "a", Message{Role: RoleUser, Text: "hello"})
	s.Append(ctx, "b", Message{Role: RoleUser, Text: "there"})

	if err := s.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Len("a") != 0 {
		t.Errorf("Len(a) = %d, want 0", s.Len("a"))
	}
	if s.Len("b") != 1 {
		t.Errorf("Len(b) = %d, want 1", s.Len("b"))
	}
}

func TestEncodeEntry(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{Message{Role: RoleUser, Text: "I need help"}, "User: I need help"},
		{Message{Role: RoleAssistant, Text: "I hear you"}, "AI: I hear you"},
	}
	for _, tt := range tests {
		if got := EncodeEntry(tt.msg); got != tt.want {
			t.Errorf("EncodeEntry(%v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestDecodeEntries_ReversesToChronological(t *testing.T) {
	// Native Redis order is most-recent-first.
	entries := []string{
		"AI: You are safe now",
		"User: he left",
		"AI: I hear you",
		"User: I am scared",
	}
	got := DecodeEntries(entries)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Text != "I am scared" || got[0].Role != RoleUser {
		t.Errorf("first = %+v, want oldest user message", got[0])
	}
	if got[3].Text != "You are safe now" || got[3].Role != RoleAssistant {
		t.Errorf("last = %+v, want newest assistant message", got[3])
	}
}

func TestDecodeEntry_TextWithColons(t *testing.T) {
	got := DecodeEntry("User: he said: leave now")
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want %q", got.Role, RoleUser)
	}
	if got.Text != "he said: leave now" {
		t.Errorf("Text = %q, want %q", got.Text, "he said: leave now")
	}
}

func TestDecodeEntry_MissingPrefix(t *testing.T) {
	got := DecodeEntry("no role here")
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want fallback %q", got.Role, RoleUser)
	}
}
