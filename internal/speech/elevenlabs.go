package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	defaultTTSBase  = "https://api.elevenlabs.io"
	defaultTTSModel = "eleven_turbo_v2_5"
)

// Synthesizer converts reply text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, error)
}

// ElevenLabs is the primary network synthesizer. It returns audio/mpeg
// bytes.
type ElevenLabs struct {
	apiKey string
	base   string
	model  string
	voices VoiceMap
	client *http.Client
}

// NewElevenLabs creates the primary synthesizer. A missing key falls back
// to ELEVENLABS_API_KEY.
func NewElevenLabs(apiKey string, voices VoiceMap) *ElevenLabs {
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	return &ElevenLabs{
		apiKey: apiKey,
		base:   defaultTTSBase,
		model:  defaultTTSModel,
		voices: voices,
		client: &http.Client{},
	}
}

// SetBase overrides the API base, for tests.
func (e *ElevenLabs) SetBase(base string) {
	e.base = strings.TrimRight(base, "/")
}

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, profile VoiceProfile) ([]byte, error) {
	voiceID := e.voices.Resolve(profile)

	reqBody := map[string]any{
		"text":     text,
		"model_id": e.model,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.base, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis status %d: %s", resp.StatusCode, string(errBody))
	}
	return io.ReadAll(resp.Body)
}
