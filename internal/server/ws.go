package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hezronokwach/safe-haven/internal/audio"
	"github.com/hezronokwach/safe-haven/internal/dialogue"
	"github.com/hezronokwach/safe-haven/internal/event"
	"github.com/hezronokwach/safe-haven/internal/session"
	"github.com/hezronokwach/safe-haven/internal/speech"
	"github.com/hezronokwach/safe-haven/internal/transcribe"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is the envelope in both directions.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsClient is one connected control-surface client. The client id doubles as
// the conversation surface, so each connection owns at most one session.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server

	mu         sync.Mutex
	closed     bool
	session    *session.Session
	recognizer *remoteRecognizer
	link       *session.RealtimeLink
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.logger.Info().Str("client_id", c.id).Msg("client connected")

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c.id)
		c.server.mu.Unlock()
		c.server.cfg.Sessions.End(c.id)
		c.closeLink()
		c.conn.Close()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		c.server.logger.Info().Str("client_id", c.id).Msg("client disconnected")
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.push("error", map[string]string{"error": "invalid message"})
		return
	}

	switch msg.Type {
	case "start":
		var payload struct {
			Mode string `json:"mode"`
		}
		if len(msg.Payload) > 0 {
			json.Unmarshal(msg.Payload, &payload)
		}
		c.handleStart(payload.Mode)
	case "end":
		c.server.cfg.Sessions.End(c.id)
		c.closeLink()
		c.setSession(nil)
	case "toggle_mic":
		c.withSession(func(s *session.Session) error {
			if err := s.ToggleMic(); err != nil {
				return err
			}
			if link := c.currentLink(); link != nil {
				return link.SetMuted(s.Snapshot().MicMuted)
			}
			return nil
		})
	case "toggle_speaker":
		c.withSession(func(s *session.Session) error { return s.ToggleSpeaker() })
	case "dismiss_emergency":
		c.withSession(func(s *session.Session) error {
			s.DismissEmergency()
			return nil
		})
	case "update_voice":
		var profile speech.VoiceProfile
		if err := json.Unmarshal(msg.Payload, &profile); err != nil {
			c.push("error", map[string]string{"error": "invalid voice profile"})
			return
		}
		c.withSession(func(s *session.Session) error {
			s.UpdateVoiceProfile(profile)
			return nil
		})
	case "commit_text":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.push("error", map[string]string{"error": "invalid payload"})
			return
		}
		c.withSession(func(s *session.Session) error { return s.CommitText(payload.Text) })
	case "transcript":
		var payload struct {
			Text  string `json:"text"`
			Final bool   `json:"final"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.feedTranscript(transcribe.Result{Text: payload.Text, Final: payload.Final})
	case "recognition_error":
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.feedRecognitionError(payload.Code)
	case "audio_input":
		var payload struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.forwardAudioInput(payload.Data)
	case "interrupt":
		c.withSession(func(s *session.Session) error {
			s.Interrupt()
			return nil
		})
		if link := c.currentLink(); link != nil {
			link.Interrupt()
		}
	case "ping":
		c.push("pong", nil)
	default:
		c.push("error", map[string]string{"error": "unknown command: " + msg.Type})
	}
}

func (c *wsClient) handleStart(mode string) {
	realtime := mode == "realtime"
	if realtime && c.server.cfg.Agent == nil {
		c.push("error", map[string]string{"error": "realtime mode is not configured"})
		return
	}

	sess, err := c.server.cfg.Sessions.StartWith(context.Background(), c.id, func(deps *session.Deps) {
		deps.Playback = &wsPlayback{client: c}
		deps.NewRecognizer = c.newRecognizer
		if realtime {
			deps.Provider = session.RealtimeAgent
			deps.Handshake = c.joinRealtime
		}
	})
	if err != nil && !errors.Is(err, session.ErrSurfaceBusy) {
		c.push("error", map[string]string{"error": "could not start session"})
		return
	}
	c.setSession(sess)
	c.push(event.TypeSessionState, sess.Snapshot())
}

// joinRealtime is the Connecting-phase handshake for realtime mode: it
// creates the agent call, bridges its audio and starts pumping playback
// frames to this client.
func (c *wsClient) joinRealtime(ctx context.Context) error {
	link, err := session.StartRealtimeLink(ctx, c.id, session.RealtimeOptions{
		Caller:       c.server.cfg.Agent,
		SystemPrompt: dialogue.SpokenPersona(),
		AvatarURL:    c.server.cfg.AvatarURL,
		Bus:          c.server.cfg.Bus,
		Logger:       c.server.logger,
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.link = link
	c.mu.Unlock()
	go c.pumpFrames(link)
	return nil
}

// pumpFrames ships the audible side of the bridge to the client as PCM16.
func (c *wsClient) pumpFrames(link *session.RealtimeLink) {
	for frame := range link.Frames() {
		c.push("audio_frame", map[string]string{
			"data": base64.StdEncoding.EncodeToString(audio.Int16ToBytes(audio.FrameToInt16(frame))),
		})
	}
}

func (c *wsClient) currentLink() *session.RealtimeLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

func (c *wsClient) closeLink() {
	c.mu.Lock()
	link := c.link
	c.link = nil
	c.mu.Unlock()
	if link != nil {
		link.Close()
	}
}

func (c *wsClient) forwardAudioInput(data string) {
	link := c.currentLink()
	if link == nil {
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return
	}
	if err := link.SendAudio(pcm); err != nil {
		c.server.logger.Warn().Err(err).Msg("forwarding caller audio")
	}
}

func (c *wsClient) setSession(s *session.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *wsClient) currentSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *wsClient) withSession(fn func(*session.Session) error) {
	s := c.currentSession()
	if s == nil {
		c.push("error", map[string]string{"error": "no active session"})
		return
	}
	if err := fn(s); err != nil {
		c.push("error", map[string]string{"error": err.Error()})
	}
}

func (c *wsClient) push(msgType string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		raw = data
	}
	msg, err := json.Marshal(wsMessage{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// Slow consumer; drop rather than block the session.
	}
}

// forwardEvent routes session events to the owning client.
func (s *Server) forwardEvent(evt event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		sess := c.currentSession()
		if sess != nil && sess.ID == evt.SessionID {
			c.push(evt.Type, evt.Payload)
			return
		}
	}
}

// wsPlayback renders synthesized audio by pushing it to the client. Stop
// tells the client to discard anything buffered, which is how barge-in and
// speaker mute reach the ear.
type wsPlayback struct {
	client *wsClient
}

func (p *wsPlayback) Play(audio []byte) error {
	p.client.push("audio", map[string]string{
		"data": base64.StdEncoding.EncodeToString(audio),
	})
	return nil
}

func (p *wsPlayback) Stop() {
	p.client.push("audio_stop", nil)
}

// remoteRecognizer adapts client-side recognition results pushed over the
// socket into the continuous recognition contract. One instance per capture
// acquisition.
type remoteRecognizer struct {
	mu      sync.Mutex
	closed  bool
	results chan transcribe.Result
	errs    chan error
}

func (c *wsClient) newRecognizer() transcribe.Recognizer {
	rec := &remoteRecognizer{
		results: make(chan transcribe.Result, 32),
		errs:    make(chan error, 4),
	}
	c.mu.Lock()
	c.recognizer = rec
	c.mu.Unlock()
	return rec
}

func (r *remoteRecognizer) Start() error { return nil }

func (r *remoteRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.results)
	close(r.errs)
}

func (r *remoteRecognizer) Results() <-chan transcribe.Result { return r.results }
func (r *remoteRecognizer) Errors() <-chan error              { return r.errs }

func (r *remoteRecognizer) offerResult(res transcribe.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.results <- res:
	default:
	}
}

func (r *remoteRecognizer) offerError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.errs <- err:
	default:
	}
}

func (c *wsClient) feedTranscript(res transcribe.Result) {
	c.mu.Lock()
	rec := c.recognizer
	c.mu.Unlock()
	if rec != nil {
		rec.offerResult(res)
	}
}

func (c *wsClient) feedRecognitionError(code string) {
	err := transcribe.ClassifyError(code)
	if err == nil {
		// no-speech is silence, not an error
		return
	}
	c.mu.Lock()
	rec := c.recognizer
	c.mu.Unlock()
	if rec != nil {
		rec.offerError(err)
	}
}
