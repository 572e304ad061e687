package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrSurfaceBusy means the conversation surface already has a live session.
var ErrSurfaceBusy = errors.New("surface already has an active session")

// Manager is the session registry. It enforces at most one non-Closed
// session per conversation surface.
type Manager struct {
	deps   Deps
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		logger:   deps.Logger.With().Str("component", "sessions").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Start creates and starts a session for the surface. If the surface already
// holds a session that is not Closed, that session is returned with
// ErrSurfaceBusy. Closed sessions are replaced.
func (m *Manager) Start(ctx context.Context, surface string) (*Session, error) {
	return m.StartWith(ctx, surface, nil)
}

// StartWith is Start with per-session dependency overrides, used by surfaces
// that bring their own playback or recognition transport.
func (m *Manager) StartWith(ctx context.Context, surface string, customize func(deps *Deps)) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[surface]; ok && existing.Status() != StatusClosed {
		m.mu.Unlock()
		return existing, ErrSurfaceBusy
	}
	deps := m.deps
	if customize != nil {
		customize(&deps)
	}
	s := New(surface, deps)
	m.sessions[surface] = s
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	m.logger.Info().Str("surface", surface).Str("session_id", s.ID).Msg("session started")
	return s, nil
}

// Get returns the surface's session, nil when none exists.
func (m *Manager) Get(surface string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[surface]
}

// End closes the surface's session and drops it from the registry.
func (m *Manager) End(surface string) {
	m.mu.Lock()
	s := m.sessions[surface]
	delete(m.sessions, surface)
	m.mu.Unlock()
	if s != nil {
		s.End()
		m.logger.Info().Str("surface", surface).Str("session_id", s.ID).Msg("session ended")
	}
}

// Shutdown ends every registered session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.End()
	}
}
