package domain

import "time"

// PresenceSnapshot is the full roster view: who is online right now and when
// everyone else was last seen.
type PresenceSnapshot struct {
	Online   []string             `json:"online"`
	LastSeen map[string]time.Time `json:"lastSeen"`
}

// PresenceUpdate is published to the presence side channel on every
// aggregate transition.
type PresenceUpdate struct {
	UserID           string     `json:"user_id"`
	Online           bool       `json:"online"`
	LastSeen         *time.Time `json:"last_seen,omitempty"`
	OriginInstanceID string     `json:"origin_instance_id,omitempty"`
}

// Session is one live connection as seen by the delivery components.
// Deliver must not block; it returns ErrSessionClosed once the connection
// is gone.
type Session interface {
	SessionID() string
	OwnerID() string
	Deliver(ev ServerEvent) error
}
