// Package server exposes the external interfaces: the REST API for chat,
// synthesis, transcription and the helpline directory, the Telegram webhook,
// and the WebSocket session control surface.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/agent"
	"github.com/hezronokwach/safe-haven/internal/dialogue"
	"github.com/hezronokwach/safe-haven/internal/event"
	"github.com/hezronokwach/safe-haven/internal/history"
	"github.com/hezronokwach/safe-haven/internal/resources"
	"github.com/hezronokwach/safe-haven/internal/session"
	"github.com/hezronokwach/safe-haven/internal/speech"
)

// Dialogue is the dialogue backend contract used by the REST endpoints.
type Dialogue interface {
	Respond(ctx context.Context, userText string, hist []history.Message, opts dialogue.TurnOptions) (*dialogue.TurnResult, error)
	RespondPlain(ctx context.Context, userText string, hist []history.Message) (string, error)
}

// Transcriber is the batch transcription contract.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Directory is the helpline lookup contract.
type Directory interface {
	All() ([]resources.Helpline, error)
}

// Config wires the server's collaborators.
type Config struct {
	Addr        string
	Dialogue    Dialogue
	Synthesizer speech.Synthesizer
	Transcriber Transcriber
	Directory   Directory
	Sessions    *session.Manager
	Bus         *event.Bus
	Telegram    http.Handler
	Logger      zerolog.Logger

	// Agent enables the realtime speech-to-speech mode when non-nil.
	Agent     *agent.Caller
	AvatarURL string
}

// Server is the HTTP front of the process.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient

	httpServer *http.Server
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("component", "server").Logger(),
		clients: make(map[string]*wsClient),
	}
	if cfg.Bus != nil {
		cfg.Bus.Subscribe([]string{"session.*", "emergency.*"}, s.forwardEvent)
	}
	return s
}

// Handler builds the route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/speak", s.handleSpeak)
	mux.HandleFunc("/api/isolate", s.handleIsolate)
	mux.HandleFunc("/api/helplines", s.handleHelplines)
	mux.HandleFunc("/health", s.handleHealth)
	if s.cfg.Telegram != nil {
		mux.Handle("/telegram/webhook", s.cfg.Telegram)
	}
	return corsMiddleware(mux)
}

// Start serves until Stop or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
	return s.httpServer.ListenAndServe()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
