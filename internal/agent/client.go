package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by outbound calls after the socket is torn down.
var ErrClosed = errors.New("agent session closed")

// Client holds one live speech-to-speech session with the agent provider.
// Inbound events arrive on Events; a read failure closes the session and
// surfaces the error on Errors.
type Client struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	events chan Event
	errs   chan error

	writeMu sync.Mutex
	closeMu sync.Once
	closed  chan struct{}
}

// Join dials the per-call join URL returned by CreateCall and starts the
// read loop.
func Join(ctx context.Context, joinURL string, logger zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, joinURL, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:   conn,
		logger: logger.With().Str("component", "agent").Logger(),
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers decoded provider events in arrival order. The channel is
// closed when the session ends.
func (c *Client) Events() <-chan Event { return c.events }

// Errors delivers at most one terminal error.
func (c *Client) Errors() <-chan error { return c.errs }

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.errs <- err
			}
			c.Close()
			return
		}
		ev, err := DecodeEvent(raw)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable agent event")
			continue
		}
		if u, ok := ev.(UnknownEvent); ok {
			c.logger.Debug().Str("kind", u.Kind).Msg("unknown agent event kind")
		}
		select {
		case c.events <- ev:
		case <-c.closed:
			return
		}
	}
}

// SendAudio ships one base64 chunk of caller audio to the agent.
func (c *Client) SendAudio(pcm []byte) error {
	return c.send(wireEvent{
		Type: "audio_input",
		Data: base64.StdEncoding.EncodeToString(pcm),
	})
}

// SessionSettings updates the live session. Zero-value fields are omitted on
// the wire so a partial update only touches what it names.
type SessionSettings struct {
	SystemPrompt string `json:"system_prompt,omitempty"`
	Language     string `json:"language,omitempty"`
	Muted        *bool  `json:"muted,omitempty"`
}

// UpdateSettings pushes a session settings message.
func (c *Client) UpdateSettings(s SessionSettings) error {
	return c.send(struct {
		Type string `json:"type"`
		SessionSettings
	}{Type: "session_settings", SessionSettings: s})
}

func (c *Client) send(v any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close tears the session down. Idempotent.
func (c *Client) Close() error {
	c.closeMu.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}
