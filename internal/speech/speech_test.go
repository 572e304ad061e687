package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestVoiceMapResolve(t *testing.T) {
	vm := VoiceMap{
		MaleEN:   "voice-male-en",
		FemaleEN: "voice-female-en",
		MaleSW:   "voice-male-sw",
		FemaleSW: "voice-female-sw",
	}

	cases := []struct {
		name    string
		vm      VoiceMap
		profile VoiceProfile
		want    string
	}{
		{"swahili female", vm, VoiceProfile{Gender: "female", Language: "sw"}, "voice-female-sw"},
		{"swahili male", vm, VoiceProfile{Gender: "male", Language: "sw"}, "voice-male-sw"},
		{"english female", vm, VoiceProfile{Gender: "female", Language: "en"}, "voice-female-en"},
		{"english male", vm, VoiceProfile{Gender: "male", Language: "en"}, "voice-male-en"},
		{"swahili missing falls to gender", VoiceMap{FemaleEN: "voice-female-en"}, VoiceProfile{Gender: "female", Language: "sw"}, "voice-female-en"},
		{"everything missing falls to default", VoiceMap{}, VoiceProfile{Gender: "female", Language: "sw"}, fallbackVoiceID},
		{"unknown gender falls to default", VoiceMap{MaleEN: "voice-male-en"}, VoiceProfile{Gender: "other", Language: "en"}, fallbackVoiceID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.vm.Resolve(tc.profile)
			if got != tc.want {
				t.Fatalf("Resolve(%+v) = %q, want %q", tc.profile, got, tc.want)
			}
		})
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("xi-api-key = %q, want test-key", r.Header.Get("xi-api-key"))
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	el := NewElevenLabs("test-key", VoiceMap{FemaleEN: "v1"})
	el.SetBase(srv.URL)

	audio, err := el.Synthesize(context.Background(), "hello", VoiceProfile{Gender: "female", Language: "en"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("audio = %q, want mp3-bytes", audio)
	}
}

type stubSynth struct {
	audio []byte
	err   error
	calls int
}

func (s *stubSynth) Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func TestFallbackUsesPrimary(t *testing.T) {
	primary := &stubSynth{audio: []byte("primary")}
	secondary := &stubSynth{audio: []byte("local")}
	f := NewFallback(primary, secondary, false, zerolog.Nop())

	audio, err := f.Synthesize(context.Background(), "hi", VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "primary" {
		t.Fatalf("audio = %q, want primary", audio)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	primary := &stubSynth{err: errors.New("network down")}
	secondary := &stubSynth{audio: []byte("local")}
	f := NewFallback(primary, secondary, false, zerolog.Nop())

	audio, err := f.Synthesize(context.Background(), "hi", VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "local" {
		t.Fatalf("audio = %q, want local", audio)
	}
}

func TestFallbackPrimaryDisabled(t *testing.T) {
	primary := &stubSynth{audio: []byte("primary")}
	secondary := &stubSynth{audio: []byte("local")}
	f := NewFallback(primary, secondary, true, zerolog.Nop())

	audio, err := f.Synthesize(context.Background(), "hi", VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "local" {
		t.Fatalf("audio = %q, want local", audio)
	}
	if primary.calls != 0 {
		t.Fatalf("primary called %d times, want 0", primary.calls)
	}
}

func TestFallbackBothFail(t *testing.T) {
	primary := &stubSynth{err: errors.New("network down")}
	secondary := &stubSynth{err: errors.New("binary missing")}
	f := NewFallback(primary, secondary, false, zerolog.Nop())

	_, err := f.Synthesize(context.Background(), "hi", VoiceProfile{})
	if !errors.Is(err, ErrSynthesisUnavailable) {
		t.Fatalf("err = %v, want ErrSynthesisUnavailable", err)
	}
}

func TestFallbackNoSecondary(t *testing.T) {
	primary := &stubSynth{err: errors.New("network down")}
	f := NewFallback(primary, nil, false, zerolog.Nop())

	_, err := f.Synthesize(context.Background(), "hi", VoiceProfile{})
	if !errors.Is(err, ErrSynthesisUnavailable) {
		t.Fatalf("err = %v, want ErrSynthesisUnavailable", err)
	}
}
