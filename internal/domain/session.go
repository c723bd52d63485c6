package domain

import (
	"sync"
	"time"
)

// ConnState is the lifecycle state of one live connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session tracks the authenticated principal and lifecycle state for a
// single connection. A reconnect is always a brand-new Session.
type Session struct {
	ID           string
	UserID       string
	Username     string
	Avatar       string
	State        ConnState
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		State:        StateConnecting,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// BeginAuth moves Connecting -> Authenticating once the transport
// handshake completed.
func (s *Session) BeginAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateConnecting {
		s.State = StateAuthenticating
	}
}

// Activate binds the authenticated principal and moves to Active.
func (s *Session) Activate(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID = user.ID
	s.Username = user.Username
	s.Avatar = user.Avatar
	s.State = StateActive
	s.LastActiveAt = time.Now()
}

// Close marks the session terminal. Idempotent; reports whether this
// call performed the transition.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateClosed {
		return false
	}
	s.State = StateClosed
	return true
}

func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State == StateActive
}

func (s *Session) GetState() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

func (s *Session) GetUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserID
}

func (s *Session) GetUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Username
}

func (s *Session) GetAvatar() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Avatar
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
