package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type failingIngest struct {
	calls int
}

func (f *failingIngest) SendAudio(samples []int16) error {
	f.calls++
	return errors.New("renderer unavailable")
}

type recordingIngest struct {
	frames [][]int16
}

func (r *recordingIngest) SendAudio(samples []int16) error {
	r.frames = append(r.frames, samples)
	return nil
}

func pushFrames(t *ChannelTrack, n int) {
	for i := 0; i < n; i++ {
		t.Push(make([]float32, FrameSize))
	}
	t.Close()
}

func TestBridge_AudioContinuesWhenAvatarFails(t *testing.T) {
	track := NewChannelTrack(8)
	sink := NewBufferedSink(8, zerolog.Nop())
	ingest := &failingIngest{}
	b := NewBridge(track, ingest, sink, zerolog.Nop())

	pushFrames(track, 3)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	if ingest.calls != 3 {
		t.Errorf("avatar calls = %d, want 3", ingest.calls)
	}
	if got := sink.Buffered(); got != 3 {
		t.Errorf("playback frames = %d, want 3", got)
	}
}

func TestBridge_NilAvatarStillPlays(t *testing.T) {
	track := NewChannelTrack(8)
	sink := NewBufferedSink(8, zerolog.Nop())
	b := NewBridge(track, nil, sink, zerolog.Nop())

	pushFrames(track, 2)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if got := sink.Buffered(); got != 2 {
		t.Errorf("playback frames = %d, want 2", got)
	}
}

func TestBridge_ResumesSuspendedSink(t *testing.T) {
	track := NewChannelTrack(8)
	sink := NewBufferedSink(8, zerolog.Nop())
	// Sink starts suspended; the bridge must resume it without caller help.
	b := NewBridge(track, nil, sink, zerolog.Nop())

	pushFrames(track, 1)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if got := sink.Buffered(); got != 1 {
		t.Errorf("playback frames = %d, want 1", got)
	}
}

func TestBridge_MuteDropsPlaybackKeepsAvatar(t *testing.T) {
	track := NewChannelTrack(8)
	sink := NewBufferedSink(8, zerolog.Nop())
	ingest := &recordingIngest{}
	b := NewBridge(track, ingest, sink, zerolog.Nop())
	b.SetMuted(true)

	pushFrames(track, 2)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if got := sink.Buffered(); got != 0 {
		t.Errorf("playback frames = %d, want 0 while muted", got)
	}
	if len(ingest.frames) != 2 {
		t.Errorf("avatar frames = %d, want 2", len(ingest.frames))
	}
}

func TestBridge_ConvertedFramesAreSaturated(t *testing.T) {
	track := NewChannelTrack(8)
	sink := NewBufferedSink(8, zerolog.Nop())
	ingest := &recordingIngest{}
	b := NewBridge(track, ingest, sink, zerolog.Nop())

	frame := make([]float32, FrameSize)
	frame[0] = 2.0
	frame[1] = -2.0
	track.Push(frame)
	track.Close()

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if len(ingest.frames) != 1 {
		t.Fatalf("avatar frames = %d, want 1", len(ingest.frames))
	}
	if got := ingest.frames[0][0]; got != 32767 {
		t.Errorf("clipped positive sample = %d, want 32767", got)
	}
	if got := ingest.frames[0][1]; got != -32768 {
		t.Errorf("clipped negative sample = %d, want -32768", got)
	}
}

func TestChannelTrack_RechunksToFrameSize(t *testing.T) {
	track := NewChannelTrack(8)
	track.Push(make([]float32, FrameSize/2))
	track.Push(make([]float32, FrameSize))
	track.Close()

	first, err := track.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(first) != FrameSize {
		t.Fatalf("frame len = %d, want %d", len(first), FrameSize)
	}
	tail, err := track.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if len(tail) != FrameSize/2 {
		t.Fatalf("tail len = %d, want %d", len(tail), FrameSize/2)
	}
}
