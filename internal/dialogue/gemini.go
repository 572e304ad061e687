// Package dialogue calls the language-generation backend with the SafeHaven
// persona and a bounded conversation history, and parses the structured
// reply-plus-emergency-flag protocol used for automated escalation.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/history"
)

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"

// ErrMalformedResponse means the backend returned unparseable structured
// output. This is a hard failure: callers must not treat it as "no
// emergency" (see the defensive affordance in the emergency policy).
var ErrMalformedResponse = errors.New("malformed dialogue response")

// TurnResult is one parsed dialogue reply.
type TurnResult struct {
	Reply       string `json:"reply"`
	IsEmergency bool   `json:"is_emergency"`
}

// TurnOptions carries per-turn context into the dialogue call.
type TurnOptions struct {
	// Language is an optional hint, e.g. "en" or "sw".
	Language string

	// PriorEmergency marks that the immediately preceding turn was flagged.
	// Emergency detection is contextual: a terse help-seeking follow-up
	// after a flagged turn continues the emergency.
	PriorEmergency bool
}

// Client talks to the Gemini generateContent API. One bounded call per turn;
// retry policy, if any, belongs to the caller.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient creates a dialogue client. A missing key falls back to
// GEMINI_API_KEY; a missing model falls back to gemini-2.5-flash.
func NewClient(apiKey, model string, logger zerolog.Logger) *Client {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBase,
		client:  &http.Client{},
		logger:  logger.With().Str("component", "dialogue").Logger(),
	}
}

// SetBaseURL overrides the API base, for tests and proxies.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// Respond sends the user text plus bounded history and returns the parsed
// structured result. The reply is always non-empty on success.
func (c *Client) Respond(ctx context.Context, userText string, hist []history.Message, opts TurnOptions) (*TurnResult, error) {
	system := basePersona + structuredProtocol
	if opts.PriorEmergency {
		system += directiveHint
	}
	if lang := languageName(opts.Language); lang != "" {
		system += "\n\nRespond in " + lang + "."
	}

	text, err := c.generate(ctx, system, userText, hist, 0)
	if err != nil {
		return nil, err
	}

	result, err := ParseTurnResult(text)
	if err != nil {
		c.logger.Error().Str("raw", truncate(text, 200)).Msg("unparseable dialogue response")
		return nil, err
	}

	if !result.IsEmergency && opts.PriorEmergency && continuesEmergency(userText) {
		c.logger.Info().Msg("terse follow-up after flagged turn, keeping emergency active")
		result.IsEmergency = true
	}
	return result, nil
}

// RespondPlain sends the user text with the plain-text channel persona and
// returns the reply as-is. Used by channels without automated escalation.
func (c *Client) RespondPlain(ctx context.Context, userText string, hist []history.Message) (string, error) {
	return c.generate(ctx, plainChatPersona, userText, hist, 300)
}

func (c *Client) generate(ctx context.Context, system, userText string, hist []history.Message, maxTokens int) (string, error) {
	if len(hist) > history.DefaultWindow {
		hist = hist[len(hist)-history.DefaultWindow:]
	}

	contents := make([]geminiContent, 0, len(hist)+1)
	for _, m := range hist {
		role := "user"
		if m.Role == history.RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Text}}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: userText}}})

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          contents,
	}
	if maxTokens > 0 {
		reqBody.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: maxTokens}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dialogue request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("dialogue response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dialogue backend status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("dialogue response: %w", err)
	}

	var text string
	for _, cand := range result.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
		break
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("dialogue backend returned no text")
	}
	return text, nil
}

// ParseTurnResult strips formatting fences and decodes the structured
// protocol. A decode failure after stripping returns ErrMalformedResponse.
func ParseTurnResult(raw string) (*TurnResult, error) {
	cleaned := StripFences(raw)

	var result TurnResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(result.Reply) == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	return &result, nil
}

// StripFences removes markdown code fences and language markers that some
// backends wrap structured output in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}
	return s
}

// continuesEmergency reports whether a message looks like a terse
// help-seeking follow-up rather than a topic change.
func continuesEmergency(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	for _, phrase := range []string{"help", "what do i do", "what should i do", "what now", "now what", "please"} {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	// Very short messages mid-crisis are continuations, not topic changes.
	return len(strings.Fields(t)) <= 4
}

func languageName(code string) string {
	switch strings.ToLower(strings.SplitN(code, "-", 2)[0]) {
	case "sw":
		return "Swahili"
	case "en":
		return "English"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"system_instruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
