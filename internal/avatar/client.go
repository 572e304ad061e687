package avatar

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/audio"
)

// ErrNotConnected is returned by SendAudio when the renderer link is down.
var ErrNotConnected = errors.New("avatar renderer not connected")

const writeTimeout = 5 * time.Second

// Client streams PCM16 audio frames to an external avatar renderer over a
// WebSocket. The renderer drives lip sync from the raw samples; the link is
// best-effort and audio playback must not depend on it.
type Client struct {
	url    string
	logger zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(url string, logger zerolog.Logger) *Client {
	return &Client{
		url:    url,
		logger: logger.With().Str("component", "avatar").Logger(),
	}
}

// Connect dials the renderer. Safe to call again after a failure.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	c.logger.Info().Str("url", c.url).Msg("connected to renderer")
	return nil
}

// SendAudio ships one frame of int16 samples as little-endian bytes. On a
// write failure the connection is dropped so the next Connect can redial.
func (c *Client) SendAudio(samples []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio.Int16ToBytes(samples)); err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
