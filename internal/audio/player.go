package audio

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sink is a playback output device. Implementations must tolerate Stop being
// called concurrently with Write.
type Sink interface {
	// Write queues one frame for playback.
	Write(frame []float32) error

	// Stop halts playback immediately and discards any buffered frames.
	Stop()

	// Resume wakes a suspended output context. Platform audio policies may
	// suspend the context until a user gesture; callers must not need to
	// poll for this.
	Resume() error

	Close() error
}

// BufferedSink is an in-process Sink backed by a bounded frame buffer. A
// consumer (the platform playback loop) drains Frames; Stop empties the
// buffer so nothing queued before the stop is ever heard.
type BufferedSink struct {
	mu        sync.Mutex
	frames    chan []float32
	suspended bool
	closed    bool
	logger    zerolog.Logger
}

// NewBufferedSink creates a sink buffering up to depth frames.
func NewBufferedSink(depth int, logger zerolog.Logger) *BufferedSink {
	if depth <= 0 {
		depth = 32
	}
	return &BufferedSink{
		frames:    make(chan []float32, depth),
		suspended: true,
		logger:    logger.With().Str("component", "playback").Logger(),
	}
}

// Write queues a frame, dropping the oldest buffered frame when full rather
// than blocking the bridge loop.
func (s *BufferedSink) Write(frame []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	if s.suspended {
		s.mu.Unlock()
		return ErrSinkSuspended
	}
	s.mu.Unlock()

	for {
		select {
		case s.frames <- frame:
			return nil
		default:
			select {
			case <-s.frames:
				s.logger.Debug().Msg("playback buffer full, dropping oldest frame")
			default:
			}
		}
	}
}

// Stop discards all buffered frames immediately. No fade-out.
func (s *BufferedSink) Stop() {
	for {
		select {
		case <-s.frames:
		default:
			return
		}
	}
}

// Resume marks the sink as running.
func (s *BufferedSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if s.suspended {
		s.suspended = false
		s.logger.Debug().Msg("playback context resumed")
	}
	return nil
}

// Frames exposes the drain side for the platform playback loop.
func (s *BufferedSink) Frames() <-chan []float32 {
	return s.frames
}

// Close stops playback and releases the sink.
func (s *BufferedSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.Stop()
	return nil
}

// Buffered reports the number of frames currently queued.
func (s *BufferedSink) Buffered() int {
	return len(s.frames)
}
