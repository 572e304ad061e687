// Package telegram is the asynchronous bot channel: a webhook receiving
// Telegram updates, replying through the plain-text dialogue variant with
// Redis-persisted conversation history.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/alert"
	"github.com/hezronokwach/safe-haven/internal/emergency"
	"github.com/hezronokwach/safe-haven/internal/history"
)

const defaultAPIBase = "https://api.telegram.org"

// safetyPlanReply is the directive response for messages that trip the
// keyword check. Short, concrete steps and real numbers, not open-ended
// inquiry.
const safetyPlanReply = `I'm really concerned about your safety right now. Please do these things:

1. If you are in immediate danger, call 999 or the GBV helpline 1195 (free, 24 hours).
2. Move to a room with a lock, or leave for a neighbour's if you safely can.
3. Keep your phone charged and with you.

I'm here with you. Tell me what's happening when you can.`

// PlainResponder is the dialogue contract for this channel.
type PlainResponder interface {
	RespondPlain(ctx context.Context, userText string, hist []history.Message) (string, error)
}

// Handler serves the Telegram webhook.
type Handler struct {
	botToken string
	apiBase  string
	dialogue PlainResponder
	store    history.Store
	alerts   *alert.Publisher
	client   *http.Client
	logger   zerolog.Logger
}

func NewHandler(botToken string, dialogue PlainResponder, store history.Store, alerts *alert.Publisher, log zerolog.Logger) *Handler {
	return &Handler{
		botToken: botToken,
		apiBase:  defaultAPIBase,
		dialogue: dialogue,
		store:    store,
		alerts:   alerts,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   log.With().Str("component", "telegram").Logger(),
	}
}

// SetAPIBase overrides the Bot API host. Used by tests.
func (h *Handler) SetAPIBase(base string) { h.apiBase = base }

type update struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// ServeHTTP handles one webhook update. Telegram retries non-200 responses,
// so processing failures still return 200 after logging; only undecodable
// payloads are rejected.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var u update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if u.Message.Text == "" || u.Message.Chat.ID == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.handleMessage(r.Context(), u.Message.Chat.ID, u.Message.Text); err != nil {
		h.logger.Error().Err(err).Int64("chat_id", u.Message.Chat.ID).Msg("handling update")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleMessage(ctx context.Context, chatID int64, text string) error {
	conversationID := strconv.FormatInt(chatID, 10)

	hist, err := h.store.Recent(ctx, conversationID, history.DefaultWindow)
	if err != nil {
		h.logger.Warn().Err(err).Msg("reading chat history")
		hist = nil
	}

	var reply string
	if emergency.Scan(text) {
		reply = safetyPlanReply
		h.alerts.Publish(alert.Alert{
			SessionID: conversationID,
			Surface:   "telegram",
			Reason:    string(emergency.ReasonKeyword),
			Timestamp: time.Now(),
		})
	} else {
		reply, err = h.dialogue.RespondPlain(ctx, text, hist)
		if err != nil {
			return fmt.Errorf("dialogue: %w", err)
		}
	}

	if err := h.sendMessage(ctx, chatID, reply); err != nil {
		return err
	}

	now := time.Now()
	if err := h.store.Append(ctx, conversationID, history.Message{Role: history.RoleUser, Text: text, Timestamp: now}); err != nil {
		h.logger.Warn().Err(err).Msg("appending user turn")
	}
	if err := h.store.Append(ctx, conversationID, history.Message{Role: history.RoleAssistant, Text: reply, Timestamp: now}); err != nil {
		h.logger.Warn().Err(err).Msg("appending assistant turn")
	}
	return nil
}

func (h *Handler) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", h.apiBase, h.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage returned %d", resp.StatusCode)
	}
	return nil
}
