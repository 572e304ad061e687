package audio

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// TrackSource yields fixed-size frames from a live outbound audio track.
// ReadFrame returns io.EOF when the track ends.
type TrackSource interface {
	ReadFrame() ([]float32, error)
}

// Ingest receives converted PCM16 frames and drives lip-sync rendering.
type Ingest interface {
	SendAudio(samples []int16) error
}

// Bridge taps a real-time agent audio track, converting each frame to PCM16
// for the avatar renderer while routing the original frame to the user's
// playback sink. The avatar path is best-effort: if the renderer is missing
// or failing, frames are dropped for visual sync and audio continues.
type Bridge struct {
	src    TrackSource
	avatar Ingest
	sink   Sink
	logger zerolog.Logger

	muted       atomic.Bool
	avatarDown  bool
	framesSent  atomic.Int64
	framesHeard atomic.Int64
}

// NewBridge wires a track source to the avatar renderer and playback sink.
// avatar may be nil when no renderer is attached.
func NewBridge(src TrackSource, avatar Ingest, sink Sink, logger zerolog.Logger) *Bridge {
	return &Bridge{
		src:    src,
		avatar: avatar,
		sink:   sink,
		logger: logger.With().Str("component", "bridge").Logger(),
	}
}

// SetMuted mutes or unmutes the user-facing playback path. Muting stops
// in-flight playback immediately; the avatar keeps receiving frames so the
// rendering stays in step for when the speaker is unmuted.
func (b *Bridge) SetMuted(muted bool) {
	b.muted.Store(muted)
	if muted {
		b.sink.Stop()
	}
}

// Run processes frames in arrival order until the track ends, the source
// fails, or ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := b.src.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				b.logger.Debug().
					Int64("avatar_frames", b.framesSent.Load()).
					Int64("playback_frames", b.framesHeard.Load()).
					Msg("track ended")
				return nil
			}
			return err
		}
		if len(frame) == 0 {
			continue
		}

		b.forwardToAvatar(frame)

		if b.muted.Load() {
			continue
		}
		if err := b.playFrame(frame); err != nil {
			if errors.Is(err, ErrSinkClosed) {
				return nil
			}
			return err
		}
		b.framesHeard.Add(1)
	}
}

func (b *Bridge) forwardToAvatar(frame []float32) {
	if b.avatar == nil {
		return
	}
	if err := b.avatar.SendAudio(FrameToInt16(frame)); err != nil {
		// Visual degradation is acceptable, audio loss is not: log the first
		// failure and keep playing.
		if !b.avatarDown {
			b.avatarDown = true
			b.logger.Warn().Err(err).Msg("avatar ingest failing, dropping frames for visual sync")
		}
		return
	}
	if b.avatarDown {
		b.avatarDown = false
		b.logger.Info().Msg("avatar ingest recovered")
	}
	b.framesSent.Add(1)
}

func (b *Bridge) playFrame(frame []float32) error {
	err := b.sink.Write(frame)
	if errors.Is(err, ErrSinkSuspended) {
		if err := b.sink.Resume(); err != nil {
			return err
		}
		err = b.sink.Write(frame)
	}
	return err
}
