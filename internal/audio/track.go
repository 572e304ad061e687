package audio

import (
	"io"
	"sync"
)

// ChannelTrack adapts pushed sample chunks into the fixed-size frames the
// bridge consumes. Pushed chunks of any length are re-chunked into FrameSize
// frames; a trailing partial frame is flushed when the track closes.
type ChannelTrack struct {
	mu      sync.Mutex
	pending []float32
	frames  chan []float32
	closed  bool
}

// NewChannelTrack creates a track buffering up to depth frames.
func NewChannelTrack(depth int) *ChannelTrack {
	if depth <= 0 {
		depth = 64
	}
	return &ChannelTrack{frames: make(chan []float32, depth)}
}

// Push appends samples to the track. Full frames are made available to
// ReadFrame in push order. Push after Close is a no-op.
func (t *ChannelTrack) Push(samples []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.pending = append(t.pending, samples...)
	for len(t.pending) >= FrameSize {
		frame := make([]float32, FrameSize)
		copy(frame, t.pending[:FrameSize])
		t.pending = t.pending[FrameSize:]
		select {
		case t.frames <- frame:
		default:
			// Reader stalled; drop the oldest frame to stay real-time.
			select {
			case <-t.frames:
			default:
			}
			t.frames <- frame
		}
	}
}

// PushPCM16 converts signed 16-bit samples to float32 and pushes them.
func (t *ChannelTrack) PushPCM16(samples []int16) {
	frame := make([]float32, len(samples))
	for i, s := range samples {
		frame[i] = float32(s) / 32768
	}
	t.Push(frame)
}

// ReadFrame returns the next frame, blocking until one is available. It
// returns io.EOF after Close once all frames are drained.
func (t *ChannelTrack) ReadFrame() ([]float32, error) {
	frame, ok := <-t.frames
	if !ok {
		return nil, io.EOF
	}
	return frame, nil
}

// Flush discards everything buffered but not yet read. Used on barge-in,
// where queued agent audio must not play out.
func (t *ChannelTrack) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
	for {
		select {
		case <-t.frames:
		default:
			return
		}
	}
}

// Close flushes any partial frame and ends the track.
func (t *ChannelTrack) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	if len(t.pending) > 0 {
		tail := make([]float32, len(t.pending))
		copy(tail, t.pending)
		t.pending = nil
		select {
		case t.frames <- tail:
		default:
		}
	}
	close(t.frames)
}
