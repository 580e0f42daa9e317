// Package compose tracks each operator's broadcast composition session:
// idle, then awaiting the message text, then awaiting confirmation.
package compose

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnexpectedState is returned when an input does not fit the current state.
var ErrUnexpectedState = errors.New("unexpected composition state")

// State is the phase of a composition session.
type State int

const (
	StateIdle State = iota
	StateAwaitingText
	StateAwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingText:
		return "awaiting_text"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type session struct {
	state State
	text  string
}

// Registry holds one session per operator.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*session)}
}

// State returns the operator's current state.
func (r *Registry) State(operatorID int64) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[operatorID]; ok {
		return s.state
	}
	return StateIdle
}

// Text returns the pending message text, if any.
func (r *Registry) Text(operatorID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[operatorID]; ok {
		return s.text
	}
	return ""
}

// Begin starts a new composition, discarding any previous one.
func (r *Registry) Begin(operatorID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[operatorID] = &session{state: StateAwaitingText}
}

// EditText returns a session awaiting confirmation to awaiting text.
func (r *Registry) EditText(operatorID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[operatorID]
	if !ok || s.state != StateAwaitingConfirmation {
		return fmt.Errorf("%w: cannot edit text while %s", ErrUnexpectedState, r.stateLocked(operatorID))
	}
	s.state = StateAwaitingText
	s.text = ""
	return nil
}

// SubmitText stores the message text and moves to awaiting confirmation.
// Blank text is rejected and the session keeps waiting.
func (r *Registry) SubmitText(operatorID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[operatorID]
	if !ok || s.state != StateAwaitingText {
		return fmt.Errorf("%w: not awaiting text", ErrUnexpectedState)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("message text is empty")
	}
	s.text = text
	s.state = StateAwaitingConfirmation
	return nil
}

// Confirm ends the session and returns the text to dispatch.
func (r *Registry) Confirm(operatorID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[operatorID]
	if !ok || s.state != StateAwaitingConfirmation {
		return "", fmt.Errorf("%w: nothing to confirm", ErrUnexpectedState)
	}
	delete(r.sessions, operatorID)
	return s.text, nil
}

// Cancel resets the operator to idle and reports whether a session was active.
func (r *Registry) Cancel(operatorID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[operatorID]
	delete(r.sessions, operatorID)
	return ok
}

func (r *Registry) stateLocked(operatorID int64) State {
	if s, ok := r.sessions[operatorID]; ok {
		return s.state
	}
	return StateIdle
}
