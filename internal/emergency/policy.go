// Package emergency implements the escalation policy layered over normal
// turn-taking: flag evaluation, the keyword check used by raw-text channels,
// and the sticky affordance state that only explicit user action or session
// end may clear.
package emergency

import (
	"strings"
	"sync"
	"time"
)

// dangerPhrases trigger the raw-text channel check. The contextual scheme in
// the dialogue client is canonical for flagging; this list exists for
// channels that carry plain text with no structured result.
var dangerPhrases = []string{
	"knife",
	"gun",
	"weapon",
	"bleeding",
	"he is here",
	"he's here",
	"she is here",
	"breaking down the door",
	"outside my door",
	"going to kill",
	"wants to kill",
	"hurt me",
	"hurting me",
	"following me",
	"locked me in",
	"can't get out",
}

// Scan reports whether raw user text indicates immediate danger.
func Scan(text string) bool {
	t := strings.ToLower(text)
	for _, phrase := range dangerPhrases {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}

// Reason records why the affordance was activated.
type Reason string

const (
	// ReasonFlagged: the dialogue backend flagged the turn.
	ReasonFlagged Reason = "flagged"

	// ReasonKeyword: the raw-text check matched.
	ReasonKeyword Reason = "keyword"

	// ReasonUnknown: the dialogue response could not be parsed. Suppressing
	// a possible emergency is the unsafe failure direction, so the
	// affordance is shown defensively.
	ReasonUnknown Reason = "unknown"
)

// State is the session-wide emergency presentation state. Activation is
// sticky: it never auto-dismisses, only Dismiss or session teardown clears
// it.
type State struct {
	mu          sync.Mutex
	active      bool
	reason      Reason
	activatedAt time.Time
	onChange    func(active bool, reason Reason)
}

// NewState creates an inactive state. onChange, if non-nil, is called on
// every activation and dismissal.
func NewState(onChange func(active bool, reason Reason)) *State {
	return &State{onChange: onChange}
}

// Activate turns the affordance on. Re-activation while already active
// updates the reason but fires no change notification.
func (s *State) Activate(reason Reason) {
	s.mu.Lock()
	wasActive := s.active
	s.active = true
	s.reason = reason
	if !wasActive {
		s.activatedAt = time.Now()
	}
	notify := s.onChange
	s.mu.Unlock()

	if !wasActive && notify != nil {
		notify(true, reason)
	}
}

// Dismiss clears the affordance. Only explicit user action or session end
// calls this.
func (s *State) Dismiss() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	reason := s.reason
	s.reason = ""
	notify := s.onChange
	s.mu.Unlock()

	if wasActive && notify != nil {
		notify(false, reason)
	}
}

// Active reports whether the affordance is currently shown.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Reason returns the current activation reason, empty when inactive.
func (s *State) ActiveReason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
