package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/pkg/clock"
)

// Observer is notified of aggregate transitions. Callbacks run while the
// tracker lock is held: they must not block and must not call back into
// the Tracker.
type Observer interface {
	UserOnline(userID string)
	UserOffline(userID string, lastSeen time.Time)
}

type sessionEntry struct {
	session       domain.Session
	establishedAt time.Time
}

type userPresence struct {
	sessions map[string]sessionEntry
	lastSeen time.Time // zero while online or never seen
}

// Tracker owns user -> live sessions and user -> last seen. All mutations of
// presence state, and the offline queue decisions that depend on it, happen
// under its lock.
type Tracker struct {
	mu        sync.Mutex
	clock     clock.Clock
	users     map[string]*userPresence
	observers []Observer
}

// NewTracker creates an empty tracker.
func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clock: clk,
		users: make(map[string]*userPresence),
	}
}

// AddObserver registers o for transition callbacks. Call before serving.
func (t *Tracker) AddObserver(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// RegisterSession adds s to its owner's session set and reports whether the
// owner went from offline to online. Registering the same session twice is
// a no-op.
func (t *Tracker) RegisterSession(s domain.Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registerLocked(s)
}

// Admit registers s and then runs flush before any other delivery for the
// owner can be routed, so a backlog drained by flush cannot interleave with
// live traffic.
func (t *Tracker) Admit(s domain.Session, flush func(domain.Session)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	online := t.registerLocked(s)
	if flush != nil {
		flush(s)
	}
	return online
}

func (t *Tracker) registerLocked(s domain.Session) bool {
	userID := s.OwnerID()
	up, ok := t.users[userID]
	if !ok {
		up = &userPresence{sessions: make(map[string]sessionEntry)}
		t.users[userID] = up
	}
	if _, dup := up.sessions[s.SessionID()]; dup {
		return false
	}

	wasOnline := len(up.sessions) > 0
	up.sessions[s.SessionID()] = sessionEntry{session: s, establishedAt: t.clock.Now()}
	if wasOnline {
		return false
	}

	up.lastSeen = time.Time{}
	for _, o := range t.observers {
		o.UserOnline(userID)
	}
	return true
}

// RemoveSession drops sessionID from userID's set and reports whether that
// was the last one. Unknown sessions are ignored.
func (t *Tracker) RemoveSession(userID, sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	up, ok := t.users[userID]
	if !ok {
		return false
	}
	if _, ok := up.sessions[sessionID]; !ok {
		return false
	}
	delete(up.sessions, sessionID)
	if len(up.sessions) > 0 {
		return false
	}

	up.lastSeen = t.clock.Now()
	for _, o := range t.observers {
		o.UserOffline(userID, up.lastSeen)
	}
	return true
}

// Snapshot returns online users (sorted) and last-seen times of offline ones.
func (t *Tracker) Snapshot() domain.PresenceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := domain.PresenceSnapshot{
		Online:   make([]string, 0, len(t.users)),
		LastSeen: make(map[string]time.Time),
	}
	for userID, up := range t.users {
		if len(up.sessions) > 0 {
			snap.Online = append(snap.Online, userID)
			continue
		}
		if !up.lastSeen.IsZero() {
			snap.LastSeen[userID] = up.lastSeen
		}
	}
	sort.Strings(snap.Online)
	return snap
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	up, ok := t.users[userID]
	return ok && len(up.sessions) > 0
}

// LastSeenOf reports when userID's last session closed. ok is false while
// the user is online or has never been seen.
func (t *Tracker) LastSeenOf(userID string) (lastSeen time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	up, found := t.users[userID]
	if !found || up.lastSeen.IsZero() {
		return time.Time{}, false
	}
	return up.lastSeen, true
}

// Sessions returns userID's live sessions, oldest first.
func (t *Tracker) Sessions(userID string) []domain.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionsLocked(userID)
}

func (t *Tracker) sessionsLocked(userID string) []domain.Session {
	up, ok := t.users[userID]
	if !ok || len(up.sessions) == 0 {
		return nil
	}
	entries := make([]sessionEntry, 0, len(up.sessions))
	for _, e := range up.sessions {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].establishedAt.Equal(entries[j].establishedAt) {
			return entries[i].session.SessionID() < entries[j].session.SessionID()
		}
		return entries[i].establishedAt.Before(entries[j].establishedAt)
	})
	out := make([]domain.Session, len(entries))
	for i, e := range entries {
		out[i] = e.session
	}
	return out
}

// Route calls live with userID's sessions if the user is online, otherwise
// offline. The check and the callback run under one critical section, so an
// admission cannot slip between them. Callbacks must not block.
func (t *Tracker) Route(userID string, live func([]domain.Session), offline func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sessions := t.sessionsLocked(userID); len(sessions) > 0 {
		if live != nil {
			live(sessions)
		}
		return true
	}
	if offline != nil {
		offline()
	}
	return false
}

// RestoreLastSeen seeds last-seen times saved by a previous process. Users
// that are already known are left alone. It returns the number restored.
func (t *Tracker) RestoreLastSeen(lastSeen map[string]time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for userID, ts := range lastSeen {
		if ts.IsZero() {
			continue
		}
		if _, ok := t.users[userID]; ok {
			continue
		}
		t.users[userID] = &userPresence{
			sessions: make(map[string]sessionEntry),
			lastSeen: ts,
		}
		n++
	}
	return n
}
