package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/hezronokwach/safe-haven/internal/dialogue"
	"github.com/hezronokwach/safe-haven/internal/history"
	"github.com/hezronokwach/safe-haven/internal/speech"
)

const maxAudioUpload = 16 << 20

type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
	History  []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"history,omitempty"`
}

type chatResponse struct {
	Reply       string `json:"reply"`
	IsEmergency bool   `json:"is_emergency"`
}

// handleChat answers one stateless dialogue turn. Legacy clients pass
// ?plain=1 and receive the unstructured {response} shape.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	hist := make([]history.Message, 0, len(req.History))
	for _, h := range req.History {
		if len(h.Parts) == 0 {
			continue
		}
		role := history.RoleUser
		if h.Role == "model" || h.Role == "assistant" {
			role = history.RoleAssistant
		}
		hist = append(hist, history.Message{Role: role, Text: h.Parts[0].Text})
	}

	if r.URL.Query().Get("plain") == "1" {
		reply, err := s.cfg.Dialogue.RespondPlain(r.Context(), req.Message, hist)
		if err != nil {
			s.logger.Error().Err(err).Msg("plain chat turn failed")
			writeError(w, http.StatusBadGateway, "dialogue backend unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"response": reply})
		return
	}

	result, err := s.cfg.Dialogue.Respond(r.Context(), req.Message, hist, dialogue.TurnOptions{Language: req.Language})
	if err != nil {
		s.logger.Error().Err(err).Msg("chat turn failed")
		writeError(w, http.StatusBadGateway, "dialogue backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: result.Reply, IsEmergency: result.IsEmergency})
}

type speakRequest struct {
	Text     string `json:"text"`
	Gender   string `json:"gender,omitempty"`
	Language string `json:"language,omitempty"`
}

// handleSpeak synthesizes text and streams the audio back.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := s.cfg.Synthesizer.Synthesize(r.Context(), req.Text, speech.VoiceProfile{
		Gender:   req.Gender,
		Language: req.Language,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("synthesis failed")
		writeError(w, http.StatusBadGateway, "speech synthesis unavailable")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// handleIsolate accepts a multipart audio blob, cleans and transcribes it.
func (s *Server) handleIsolate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading audio upload")
		return
	}

	text, err := s.cfg.Transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		s.logger.Error().Err(err).Msg("transcription failed")
		writeError(w, http.StatusBadGateway, "transcription unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// handleHelplines serves the directory for the emergency affordance.
func (s *Server) handleHelplines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := s.cfg.Directory.All()
	if err != nil {
		s.logger.Error().Err(err).Msg("listing helplines")
		writeError(w, http.StatusInternalServerError, "directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"helplines": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
