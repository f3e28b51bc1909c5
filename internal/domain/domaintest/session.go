// Package domaintest provides an in-memory domain.Session for tests.
package domaintest

import (
	"sync"

	"github.com/weiawesome/wes-match-live/internal/domain"
)

// Session records every event delivered to it.
type Session struct {
	ID   string
	User string

	mu     sync.Mutex
	events []domain.ServerEvent
	closed bool
}

func NewSession(userID, sessionID string) *Session {
	return &Session{ID: sessionID, User: userID}
}

func (s *Session) SessionID() string { return s.ID }
func (s *Session) OwnerID() string   { return s.User }

func (s *Session) Deliver(ev domain.ServerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.events = append(s.events, ev)
	return nil
}

// Close makes later deliveries fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Events returns a copy of everything delivered so far.
func (s *Session) Events() []domain.ServerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ServerEvent(nil), s.events...)
}

// Messages returns the payloads of delivered receive-message events.
func (s *Session) Messages() []domain.Message {
	var out []domain.Message
	for _, ev := range s.Events() {
		if rm, ok := ev.(domain.ReceiveMessage); ok {
			out = append(out, rm.Message)
		}
	}
	return out
}

// Notifications returns the payloads of delivered new_notification events.
func (s *Session) Notifications() []domain.Notification {
	var out []domain.Notification
	for _, ev := range s.Events() {
		if nn, ok := ev.(domain.NewNotification); ok {
			out = append(out, nn.Notification)
		}
	}
	return out
}

// Errors returns the reasons of delivered error events.
func (s *Session) Errors() []string {
	var out []string
	for _, ev := range s.Events() {
		if e, ok := ev.(domain.Error); ok {
			out = append(out, e.Reason)
		}
	}
	return out
}
