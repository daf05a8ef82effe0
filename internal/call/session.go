// Package call holds the client-side call session state machine used by the
// embedded test client and any Go client of the signaling surface. The server
// relays signaling blindly; negotiation state lives at the two ends.
package call

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle position of one call session.
type State string

const (
	StateIdle       State = "idle"
	StateCalling    State = "calling"
	StateRinging    State = "ringing"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
	StateEnded      State = "ended"
)

// ErrInvalidTransition reports an attempt to move a session along an edge the
// state machine does not have.
var ErrInvalidTransition = errors.New("invalid call state transition")

// transitions enumerates the forward edges. The terminal edges (rejected,
// failed, ended) are reachable from every non-idle state and handled
// separately in terminate.
var transitions = map[State][]State{
	StateIdle:       {StateCalling, StateRinging},
	StateCalling:    {StateConnecting},
	StateRinging:    {StateConnecting},
	StateConnecting: {StateConnected},
}

// Session tracks one call attempt from either end. Incoming ICE candidates
// arriving before the remote description are buffered in arrival order and
// drained exactly once when the description lands.
type Session struct {
	CallID     string
	CallerID   int
	ReceiverID int
	CallType   string

	mu            sync.Mutex
	state         State
	remoteDescSet bool
	drained       bool
	pending       []json.RawMessage

	onCandidate   func(json.RawMessage)
	onStateChange func(State)
}

// NewSession constructs an idle session for one call attempt.
func NewSession(callID string, callerID, receiverID int, callType string) *Session {
	return &Session{
		CallID:     callID,
		CallerID:   callerID,
		ReceiverID: receiverID,
		CallType:   callType,
		state:      StateIdle,
	}
}

// OnCandidate registers the callback that receives drained or live remote
// ICE candidates.
func (s *Session) OnCandidate(fn func(json.RawMessage)) {
	s.mu.Lock()
	s.onCandidate = fn
	s.mu.Unlock()
}

// OnStateChange registers the callback invoked after every transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.onStateChange = fn
	s.mu.Unlock()
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Terminal reports whether the session has reached a final state.
func (s *Session) Terminal() bool {
	switch s.State() {
	case StateRejected, StateFailed, StateEnded:
		return true
	}
	return false
}

// Dial moves the caller end from idle to calling.
func (s *Session) Dial() error { return s.advance(StateCalling) }

// Ring moves the receiver end from idle to ringing.
func (s *Session) Ring() error { return s.advance(StateRinging) }

// Connect marks the start of negotiation after the call is accepted.
func (s *Session) Connect() error { return s.advance(StateConnecting) }

// Established marks negotiation complete and media flowing.
func (s *Session) Established() error { return s.advance(StateConnected) }

// Reject terminates the session because the far end declined.
func (s *Session) Reject() error { return s.terminate(StateRejected) }

// Fail terminates the session after a delivery or negotiation failure.
func (s *Session) Fail() error { return s.terminate(StateFailed) }

// End terminates an in-progress call from either end.
func (s *Session) End() error { return s.terminate(StateEnded) }

func (s *Session) advance(next State) error {
	s.mu.Lock()
	allowed := false
	for _, to := range transitions[s.state] {
		if to == next {
			allowed = true
			break
		}
	}
	if !allowed {
		cur := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	s.state = next
	notify := s.onStateChange
	s.mu.Unlock()

	if notify != nil {
		notify(next)
	}
	return nil
}

// terminate moves to a terminal state from any non-idle, non-terminal state.
// Callbacks are detached before the lock is released so nothing fires against
// a torn-down session afterwards.
func (s *Session) terminate(next State) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateRejected, StateFailed, StateEnded:
		cur := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	s.state = next
	notify := s.onStateChange
	s.onCandidate = nil
	s.onStateChange = nil
	s.pending = nil
	s.mu.Unlock()

	if notify != nil {
		notify(next)
	}
	return nil
}

// AddRemoteCandidate queues or delivers one far-end ICE candidate. Before the
// remote description is set candidates are buffered in arrival order; after
// it they are handed straight to the callback. Candidates arriving on a
// terminal session are dropped.
func (s *Session) AddRemoteCandidate(candidate json.RawMessage) {
	s.mu.Lock()
	switch s.state {
	case StateRejected, StateFailed, StateEnded:
		s.mu.Unlock()
		return
	}
	if !s.remoteDescSet {
		s.pending = append(s.pending, candidate)
		s.mu.Unlock()
		return
	}
	deliver := s.onCandidate
	s.mu.Unlock()

	if deliver != nil {
		deliver(candidate)
	}
}

// SetRemoteDescription records that negotiation can proceed and drains the
// candidate buffer in arrival order. The drain happens at most once; the
// buffer is discarded afterwards.
func (s *Session) SetRemoteDescription() {
	s.mu.Lock()
	if s.remoteDescSet {
		s.mu.Unlock()
		return
	}
	s.remoteDescSet = true
	var queued []json.RawMessage
	if !s.drained {
		s.drained = true
		queued = s.pending
		s.pending = nil
	}
	deliver := s.onCandidate
	s.mu.Unlock()

	if deliver == nil {
		return
	}
	for _, candidate := range queued {
		deliver(candidate)
	}
}

// Close detaches every callback and drops buffered candidates without
// recording a terminal reason. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	s.onCandidate = nil
	s.onStateChange = nil
	s.pending = nil
	s.mu.Unlock()
}
