// Package session owns the live voice session: its lifecycle state machine,
// mic and speaker state, turn-taking, and the wiring between capture,
// transcription, dialogue, emergency handling and playback.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/dialogue"
	"github.com/hezronokwach/safe-haven/internal/emergency"
	"github.com/hezronokwach/safe-haven/internal/event"
	"github.com/hezronokwach/safe-haven/internal/history"
	"github.com/hezronokwach/safe-haven/internal/speech"
	"github.com/hezronokwach/safe-haven/internal/transcribe"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusError      Status = "error"
	StatusClosed     Status = "closed"
)

// Provider selects how the session reaches the assistant.
type Provider string

const (
	// DirectPipeline transcribes locally, calls the dialogue backend and
	// synthesizes the reply.
	DirectPipeline Provider = "direct"

	// RealtimeAgent hands speech-to-speech to an external agent session and
	// only observes transcripts.
	RealtimeAgent Provider = "realtime_agent"
)

var (
	// ErrAlreadyActive is returned by Start when the session is past Idle.
	// Start on an Active session is an idempotent no-op instead.
	ErrAlreadyActive = errors.New("session already started")

	// ErrNotActive guards operations that are only legal while Active.
	ErrNotActive = errors.New("session not active")

	// ErrClosed is returned once the session reached Closed.
	ErrClosed = errors.New("session closed")
)

// apologyText is the single generic message appended for an unrecovered
// turn. Raw provider errors never reach the conversation.
const apologyText = "I'm sorry, I'm having trouble responding right now. I'm still here with you. Please try again in a moment."

const turnTimeout = 45 * time.Second

// Responder is the dialogue contract the orchestrator depends on.
type Responder interface {
	Respond(ctx context.Context, userText string, hist []history.Message, opts dialogue.TurnOptions) (*dialogue.TurnResult, error)
}

// Playback renders synthesized audio to the user. Play replaces any audio
// currently playing; Stop discards buffered audio immediately.
type Playback interface {
	Play(audio []byte) error
	Stop()
}

// Deps are the collaborators a session is constructed with. Clients are
// built once at process start and passed in; the session never constructs
// its own provider handles.
type Deps struct {
	Dialogue    Responder
	Synthesizer speech.Synthesizer
	Playback    Playback
	History     history.Store
	Bus         *event.Bus

	// NewRecognizer is called on each mic unmute. One recognizer per
	// capture acquisition; Stop releases the device.
	NewRecognizer func() transcribe.Recognizer

	// Handshake runs during Connecting. Nil means no provider handshake.
	Handshake func(ctx context.Context) error

	Provider Provider
	Voice    speech.VoiceProfile
	Logger   zerolog.Logger
}

type queuedTurn struct {
	generation uint64
	text       string
}

// Session is one live voice interaction, owned by the Manager.
type Session struct {
	ID      string
	Surface string

	deps   Deps
	logger zerolog.Logger

	mu             sync.Mutex
	status         Status
	micMuted       bool
	speakerMuted   bool
	voice          speech.VoiceProfile
	liveTranscript string
	messages       []history.Message
	generation     uint64

	emergency  *emergency.State
	recognizer transcribe.Recognizer
	transcript strings.Builder

	ctx    context.Context
	cancel context.CancelFunc
	turns  chan queuedTurn
	done   chan struct{}
}

// New builds an Idle session for a conversation surface.
func New(surface string, deps Deps) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:      id,
		Surface: surface,
		deps:    deps,
		logger:  deps.Logger.With().Str("component", "session").Str("session_id", id).Logger(),
		status:  StatusIdle,
		voice:   deps.Voice,
		turns:   make(chan queuedTurn, 8),
		done:    make(chan struct{}),
	}
	s.emergency = emergency.NewState(s.onEmergencyChange)
	return s
}

// Start moves Idle to Connecting, runs the provider handshake and enters
// Active. Start on an Active session is a no-op; any other non-Idle state
// returns ErrAlreadyActive. On handshake failure the session moves to Error
// and the caller decides whether to create a fresh session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusActive:
		s.mu.Unlock()
		return nil
	case StatusIdle:
	default:
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.status = StatusConnecting
	s.generation++
	gen := s.generation
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()
	s.publishState()

	if s.deps.Handshake != nil {
		if err := s.deps.Handshake(ctx); err != nil {
			s.mu.Lock()
			s.status = StatusError
			s.mu.Unlock()
			s.publishState()
			s.publishError(err)
			return err
		}
	}

	s.mu.Lock()
	if s.generation != gen || s.status != StatusConnecting {
		s.mu.Unlock()
		return ErrClosed
	}
	s.status = StatusActive
	// Capture only ever starts on an explicit unmute, so the session comes
	// up muted in both modes. In realtime mode the agent owns the opening
	// turn anyway.
	s.micMuted = true
	s.mu.Unlock()
	s.publishState()

	go s.turnLoop()
	return nil
}

// End moves the session to Closed: capture is released, in-flight playback
// stops and the in-memory history view is cleared. Persisted history for
// bot channels is untouched. Outstanding dialogue or synthesis results are
// discarded, not aborted.
func (s *Session) End() {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return
	}
	s.status = StatusClosed
	s.generation++
	rec := s.recognizer
	s.recognizer = nil
	s.micMuted = true
	s.liveTranscript = ""
	s.transcript.Reset()
	cancel := s.cancel
	s.mu.Unlock()

	if rec != nil {
		rec.Stop()
	}
	if s.deps.Playback != nil {
		s.deps.Playback.Stop()
	}
	if cancel != nil {
		cancel()
	}
	close(s.done)

	ctx, cancelClear := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClear()
	if err := s.deps.History.Clear(ctx, s.ID); err != nil {
		s.logger.Warn().Err(err).Msg("clearing session history")
	}
	s.publishState()
}

// ToggleMic flips capture. Unmuting acquires a fresh recognizer; muting
// stops it and releases the device before returning. Only legal in Active.
func (s *Session) ToggleMic() error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.micMuted {
		rec := s.deps.NewRecognizer()
		if err := rec.Start(); err != nil {
			s.mu.Unlock()
			s.publishError(err)
			return err
		}
		s.micMuted = false
		s.recognizer = rec
		gen := s.generation
		s.mu.Unlock()
		go s.consumeRecognition(rec, gen)
		s.publishState()
		return nil
	}
	rec := s.recognizer
	s.recognizer = nil
	s.micMuted = true
	s.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
	s.publishState()
	return nil
}

// ToggleSpeaker flips playback. Muting stops in-flight audio immediately
// with no fade. Capture is unaffected.
func (s *Session) ToggleSpeaker() error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.speakerMuted = !s.speakerMuted
	muted := s.speakerMuted
	s.mu.Unlock()
	if muted && s.deps.Playback != nil {
		s.deps.Playback.Stop()
	}
	s.publishState()
	return nil
}

// Interrupt handles barge-in: current playback stops and buffered audio is
// discarded. Transcription already in flight continues.
func (s *Session) Interrupt() {
	if s.deps.Playback != nil {
		s.deps.Playback.Stop()
	}
}

// UpdateVoiceProfile applies to subsequent synthesis only.
func (s *Session) UpdateVoiceProfile(p speech.VoiceProfile) {
	s.mu.Lock()
	s.voice = p
	s.mu.Unlock()
}

// DismissEmergency clears the emergency affordance. Nothing else does.
func (s *Session) DismissEmergency() {
	s.emergency.Dismiss()
}

// CommitText submits typed input, following the same turn path as a spoken
// utterance. Empty input commits nothing.
func (s *Session) CommitText(text string) error {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	gen := s.generation
	s.mu.Unlock()
	s.commitUtterance(text, gen)
	return nil
}

// Snapshot is the observable state pushed to the control surface.
type Snapshot struct {
	ID              string            `json:"id"`
	Status          Status            `json:"status"`
	MicMuted        bool              `json:"mic_muted"`
	SpeakerMuted    bool              `json:"speaker_muted"`
	EmergencyActive bool              `json:"emergency_active"`
	Messages        []history.Message `json:"messages"`
	LiveTranscript  string            `json:"live_transcript"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]history.Message, len(s.messages))
	copy(msgs, s.messages)
	return Snapshot{
		ID:              s.ID,
		Status:          s.status,
		MicMuted:        s.micMuted,
		SpeakerMuted:    s.speakerMuted,
		EmergencyActive: s.emergency.Active(),
		Messages:        msgs,
		LiveTranscript:  s.liveTranscript,
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// consumeRecognition drains one recognizer acquisition. Interim results
// update the live transcript only; final results accumulate. When the
// result stream ends (mute or provider stop) the accumulated text commits
// as exactly one utterance if non-empty after trimming.
func (s *Session) consumeRecognition(rec transcribe.Recognizer, gen uint64) {
	go func() {
		for err := range rec.Errors() {
			if err == nil {
				continue
			}
			if errors.Is(err, transcribe.ErrPermissionDenied) {
				s.publishError(err)
				s.mu.Lock()
				if s.generation == gen {
					s.micMuted = true
					s.recognizer = nil
				}
				s.mu.Unlock()
				rec.Stop()
				s.publishState()
				continue
			}
			s.publishError(err)
		}
	}()

	for res := range rec.Results() {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		if res.Final {
			if s.transcript.Len() > 0 {
				s.transcript.WriteByte(' ')
			}
			s.transcript.WriteString(res.Text)
			s.liveTranscript = ""
		} else {
			s.liveTranscript = res.Text
		}
		transcript := s.liveTranscript
		s.mu.Unlock()
		s.publish(event.TypeSessionTranscript, transcript)
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	text := s.transcript.String()
	s.transcript.Reset()
	s.liveTranscript = ""
	s.mu.Unlock()
	s.commitUtterance(text, gen)
}

// commitUtterance queues one turn. Silence commits nothing. Turns are
// processed strictly in commit order; a turn committed while another is in
// flight waits its turn, never interleaves.
func (s *Session) commitUtterance(text string, gen uint64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	select {
	case s.turns <- queuedTurn{generation: gen, text: text}:
	case <-s.done:
	}
}

func (s *Session) turnLoop() {
	for {
		select {
		case turn := <-s.turns:
			s.processTurn(turn)
		case <-s.done:
			return
		}
	}
}

func (s *Session) processTurn(turn queuedTurn) {
	s.mu.Lock()
	if s.generation != turn.generation || s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	voice := s.voice
	prior := s.emergency.Active()
	ctx := s.ctx
	s.mu.Unlock()

	userMsg := history.Message{Role: history.RoleUser, Text: turn.text, Timestamp: time.Now()}
	s.appendMessage(turn.generation, userMsg)

	callCtx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	hist, err := s.deps.History.Recent(callCtx, s.ID, history.DefaultWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reading history window")
		hist = nil
	}

	result, err := s.deps.Dialogue.Respond(callCtx, turn.text, hist, dialogue.TurnOptions{
		Language:       voice.Language,
		PriorEmergency: prior,
	})

	if s.stale(turn.generation) {
		return
	}

	if err != nil {
		if errors.Is(err, dialogue.ErrMalformedResponse) {
			// The unsafe failure direction is suppressing an emergency
			// signal, so an unparseable reply shows the affordance.
			s.emergency.Activate(emergency.ReasonUnknown)
		}
		s.publishError(err)
		s.appendMessage(turn.generation, history.Message{
			Role: history.RoleAssistant, Text: apologyText, Timestamp: time.Now(),
		})
		return
	}

	if result.IsEmergency {
		s.emergency.Activate(emergency.ReasonFlagged)
	}
	s.appendMessage(turn.generation, history.Message{
		Role: history.RoleAssistant, Text: result.Reply, Timestamp: time.Now(),
	})
	s.speak(callCtx, turn.generation, result.Reply, voice)
}

// speak renders the reply. Synthesis failure never fails the turn; the
// reply text is already in the conversation.
func (s *Session) speak(ctx context.Context, gen uint64, text string, voice speech.VoiceProfile) {
	s.mu.Lock()
	muted := s.speakerMuted
	s.mu.Unlock()
	if muted || s.deps.Synthesizer == nil || s.deps.Playback == nil {
		return
	}
	audio, err := s.deps.Synthesizer.Synthesize(ctx, text, voice)
	if err != nil {
		s.logger.Warn().Err(err).Msg("synthesis failed, turn continues text-only")
		return
	}
	if s.stale(gen) {
		return
	}
	if err := s.deps.Playback.Play(audio); err != nil {
		s.logger.Warn().Err(err).Msg("playback failed")
	}
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation != gen || s.status == StatusClosed
}

func (s *Session) appendMessage(gen uint64, msg history.Message) {
	if s.stale(gen) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.History.Append(ctx, s.ID, msg); err != nil {
		s.logger.Warn().Err(err).Msg("appending history")
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.publish(event.TypeSessionMessage, msg)
}

func (s *Session) onEmergencyChange(active bool, reason emergency.Reason) {
	evt := event.TypeEmergencyActivated
	if !active {
		evt = event.TypeEmergencyDismissed
	}
	s.publish(evt, map[string]any{"reason": string(reason), "surface": s.Surface})
	s.publishState()
}

func (s *Session) publishState() {
	s.publish(event.TypeSessionState, s.Snapshot())
}

func (s *Session) publishError(err error) {
	s.logger.Error().Err(err).Msg("session error")
	s.publish(event.TypeSessionError, err.Error())
}

func (s *Session) publish(eventType string, payload any) {
	if s.deps.Bus == nil {
		return
	}
	s.deps.Bus.Publish(event.Event{
		Type:      eventType,
		SessionID: s.ID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
