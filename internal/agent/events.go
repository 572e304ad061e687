package agent

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Event is one message from the voice-agent provider's socket.
type Event interface {
	eventKind() string
}

// AudioOutputEvent carries one chunk of agent speech audio.
type AudioOutputEvent struct {
	Data []byte
}

// UserMessageEvent is a transcript of the caller's speech. Interim results
// are replaced by a later final result for the same utterance.
type UserMessageEvent struct {
	Text    string
	Interim bool
}

// AssistantMessageEvent is the agent's textual reply.
type AssistantMessageEvent struct {
	Text string
}

// InterruptionEvent signals the caller spoke over the agent. Any buffered
// agent audio should be discarded.
type InterruptionEvent struct{}

// TrackStartedEvent signals the agent's audio track is live.
type TrackStartedEvent struct{}

// UnknownEvent wraps message kinds this client does not understand. They are
// surfaced rather than dropped so new provider behavior is visible.
type UnknownEvent struct {
	Kind string
	Raw  json.RawMessage
}

func (AudioOutputEvent) eventKind() string      { return "audio_output" }
func (UserMessageEvent) eventKind() string      { return "user_message" }
func (AssistantMessageEvent) eventKind() string { return "assistant_message" }
func (InterruptionEvent) eventKind() string     { return "user_interruption" }
func (TrackStartedEvent) eventKind() string     { return "track_started" }
func (e UnknownEvent) eventKind() string        { return e.Kind }

type wireEvent struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Text    string `json:"text,omitempty"`
	Interim bool   `json:"interim,omitempty"`
}

// DecodeEvent parses one raw socket message into the typed union.
func DecodeEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decoding agent event: %w", err)
	}
	switch w.Type {
	case "audio_output":
		data, err := base64.StdEncoding.DecodeString(w.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding audio_output payload: %w", err)
		}
		return AudioOutputEvent{Data: data}, nil
	case "user_message":
		return UserMessageEvent{Text: w.Text, Interim: w.Interim}, nil
	case "assistant_message":
		return AssistantMessageEvent{Text: w.Text}, nil
	case "user_interruption":
		return InterruptionEvent{}, nil
	case "track_started":
		return TrackStartedEvent{}, nil
	default:
		return UnknownEvent{Kind: w.Type, Raw: json.RawMessage(raw)}, nil
	}
}
