package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CallConfig describes a new agent call.
type CallConfig struct {
	SystemPrompt string  `json:"systemPrompt"`
	Voice        string  `json:"voice,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	// InitialMuted joins the call with the caller's mic muted. Used when an
	// avatar renderer owns the intro so the caller is not captured early.
	InitialMuted bool `json:"initialMuted,omitempty"`
}

// Caller creates calls against the provider's REST API.
type Caller struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewCaller(apiKey, baseURL string) *Caller {
	return &Caller{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCall registers a call and returns the WebSocket join URL for Join.
func (c *Caller) CreateCall(ctx context.Context, cfg CallConfig) (string, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/calls", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating agent call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("agent call API returned %d: %s", resp.StatusCode, data)
	}

	var out struct {
		JoinURL string `json:"joinUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding call response: %w", err)
	}
	if out.JoinURL == "" {
		return "", fmt.Errorf("agent call API returned no join URL")
	}
	return out.JoinURL, nil
}
