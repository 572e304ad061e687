package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultIsolationBase = "https://api.elevenlabs.io"
	defaultGeminiBase    = "https://generativelanguage.googleapis.com/v1beta"

	// The downstream contract is text only; the prompt forbids commentary.
	transcriptionPrompt = "Transcribe this audio exactly. Do not add any commentary."
)

// BatchTranscriber transcribes one finished audio blob. The blob first goes
// through a noise-isolation pass; isolation is a quality improvement, never
// a hard dependency. On failure the original audio is transcribed and the
// fallback is invisible to the end user.
type BatchTranscriber struct {
	isolationKey  string
	isolationBase string
	geminiKey     string
	geminiBase    string
	model         string
	client        *http.Client
	logger        zerolog.Logger
}

// NewBatchTranscriber creates a transcriber. Missing keys fall back to
// ELEVENLABS_API_KEY and GEMINI_API_KEY.
func NewBatchTranscriber(isolationKey, geminiKey, model string, logger zerolog.Logger) *BatchTranscriber {
	if isolationKey == "" {
		isolationKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if geminiKey == "" {
		geminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &BatchTranscriber{
		isolationKey:  isolationKey,
		isolationBase: defaultIsolationBase,
		geminiKey:     geminiKey,
		geminiBase:    defaultGeminiBase,
		model:         model,
		client:        &http.Client{},
		logger:        logger.With().Str("component", "transcribe").Logger(),
	}
}

// SetIsolationBase overrides the isolation API base, for tests.
func (t *BatchTranscriber) SetIsolationBase(base string) {
	t.isolationBase = strings.TrimRight(base, "/")
}

// SetGeminiBase overrides the transcription API base, for tests.
func (t *BatchTranscriber) SetGeminiBase(base string) {
	t.geminiBase = strings.TrimRight(base, "/")
}

// Transcribe isolates voice from the blob and returns best-effort text.
func (t *BatchTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	clean, err := t.isolate(ctx, audio)
	if err != nil {
		t.logger.Warn().Err(err).Msg("audio isolation failed, falling back to original audio")
		clean = audio
	}
	return t.recognize(ctx, clean)
}

func (t *BatchTranscriber) isolate(ctx context.Context, audio []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "audio.webm")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.isolationBase+"/v1/audio-isolation", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("xi-api-key", t.isolationKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("isolation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("isolation status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func (t *BatchTranscriber) recognize(ctx context.Context, audio []byte) (string, error) {
	reqBody := map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{
						"inline_data": map[string]any{
							"mime_type": "audio/mp3",
							"data":      base64.StdEncoding.EncodeToString(audio),
						},
					},
					map[string]any{"text": transcriptionPrompt},
				},
			},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", t.geminiBase, t.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", t.geminiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription status %d", resp.StatusCode)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("transcription response: %w", err)
	}

	var text string
	for _, cand := range result.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
		break
	}
	return strings.TrimSpace(text), nil
}
