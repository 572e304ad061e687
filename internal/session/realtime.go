package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/agent"
	"github.com/hezronokwach/safe-haven/internal/audio"
	"github.com/hezronokwach/safe-haven/internal/avatar"
	"github.com/hezronokwach/safe-haven/internal/event"
	"github.com/hezronokwach/safe-haven/internal/history"
)

// RealtimeOptions configures the speech-to-speech agent link.
type RealtimeOptions struct {
	Caller       *agent.Caller
	SystemPrompt string
	// AvatarURL, when set, also feeds converted PCM16 frames to the
	// renderer. The caller joins mic-muted so the renderer owns the intro.
	AvatarURL string
	Bus       *event.Bus
	Logger    zerolog.Logger
}

// RealtimeLink is one live agent call bridged to the playback sink and,
// optionally, the avatar renderer. It replaces the transcription, dialogue
// and synthesis legs of the direct pipeline; transcripts still surface on
// the event bus so the conversation log stays complete.
type RealtimeLink struct {
	sessionID string
	client    *agent.Client
	track     *audio.ChannelTrack
	sink      *audio.BufferedSink
	bridge    *audio.Bridge
	avatar    *avatar.Client
	bus       *event.Bus
	logger    zerolog.Logger
	cancel    context.CancelFunc
}

// StartRealtimeLink creates the agent call, joins its socket and starts the
// audio bridge. Avatar connection failure is not fatal; frames are dropped
// for visual sync only.
func StartRealtimeLink(ctx context.Context, sessionID string, opts RealtimeOptions) (*RealtimeLink, error) {
	joinURL, err := opts.Caller.CreateCall(ctx, agent.CallConfig{
		SystemPrompt: opts.SystemPrompt,
		InitialMuted: opts.AvatarURL != "",
	})
	if err != nil {
		return nil, err
	}
	client, err := agent.Join(ctx, joinURL, opts.Logger)
	if err != nil {
		return nil, err
	}

	l := &RealtimeLink{
		sessionID: sessionID,
		client:    client,
		track:     audio.NewChannelTrack(32),
		sink:      audio.NewBufferedSink(64, opts.Logger),
		bus:       opts.Bus,
		logger:    opts.Logger.With().Str("component", "realtime").Str("session_id", sessionID).Logger(),
	}

	var ingest audio.Ingest
	if opts.AvatarURL != "" {
		l.avatar = avatar.NewClient(opts.AvatarURL, opts.Logger)
		if err := l.avatar.Connect(); err != nil {
			l.logger.Warn().Err(err).Msg("avatar renderer unreachable, audio continues without lip sync")
		}
		ingest = l.avatar
	}
	l.bridge = audio.NewBridge(l.track, ingest, l.sink, opts.Logger)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	go l.bridge.Run(runCtx)
	go l.consume()
	return l, nil
}

// SendAudio forwards one chunk of caller microphone audio to the agent.
func (l *RealtimeLink) SendAudio(pcm []byte) error {
	return l.client.SendAudio(pcm)
}

// Frames exposes the playback side of the sink: the audio the user hears.
func (l *RealtimeLink) Frames() <-chan []float32 {
	return l.sink.Frames()
}

// SetMuted flips the caller mic on the agent side.
func (l *RealtimeLink) SetMuted(muted bool) error {
	return l.client.UpdateSettings(agent.SessionSettings{Muted: &muted})
}

// Interrupt discards buffered agent audio. Used for barge-in initiated on
// this side; agent-detected interruptions arrive as events and do the same.
func (l *RealtimeLink) Interrupt() {
	l.sink.Stop()
	l.track.Flush()
}

func (l *RealtimeLink) consume() {
	for ev := range l.client.Events() {
		switch e := ev.(type) {
		case agent.AudioOutputEvent:
			l.track.PushPCM16(audio.BytesToInt16(e.Data))
		case agent.TrackStartedEvent:
			if err := l.sink.Resume(); err != nil {
				l.logger.Warn().Err(err).Msg("resuming playback sink")
			}
		case agent.InterruptionEvent:
			l.sink.Stop()
			l.track.Flush()
			l.publish(event.TypeSessionTranscript, "")
		case agent.UserMessageEvent:
			if e.Interim {
				l.publish(event.TypeSessionTranscript, e.Text)
			} else {
				l.publish(event.TypeSessionMessage, history.Message{
					Role: history.RoleUser, Text: e.Text, Timestamp: time.Now(),
				})
			}
		case agent.AssistantMessageEvent:
			l.publish(event.TypeSessionMessage, history.Message{
				Role: history.RoleAssistant, Text: e.Text, Timestamp: time.Now(),
			})
		case agent.UnknownEvent:
			l.logger.Debug().Str("kind", e.Kind).Msg("ignoring unknown agent event")
		}
	}
}

func (l *RealtimeLink) publish(eventType string, payload any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(event.Event{
		Type:      eventType,
		SessionID: l.sessionID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// Close tears the link down: agent socket, bridge loop, sink and renderer.
func (l *RealtimeLink) Close() {
	l.client.Close()
	l.cancel()
	l.track.Close()
	l.sink.Close()
	if l.avatar != nil {
		l.avatar.Close()
	}
}
