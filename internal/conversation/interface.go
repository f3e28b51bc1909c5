package conversation

import (
	"context"
	"time"

	"github.com/weiawesome/wes-match-live/internal/domain"
)

// Cursor bounds a history page from above. The zero Cursor selects the
// newest messages.
//
// BeforeID names the oldest message of the previous page, and Before is
// that message's SentAt. When BeforeID is set, the page ends just before
// that message, even if other messages share its timestamp. When only
// Before is set, messages sent at or after Before are excluded.
type Cursor struct {
	Before   time.Time
	BeforeID string
}

// IsZero reports whether c leaves the page unbounded.
func (c Cursor) IsZero() bool { return c.Before.IsZero() && c.BeforeID == "" }

// CursorBefore returns the cursor for the page preceding m.
func CursorBefore(m domain.Message) Cursor {
	return Cursor{Before: m.SentAt, BeforeID: m.ID}
}

// Store is the durable conversation log. Within a conversation, messages
// are returned in append order.
type Store interface {
	// Append persists msg at the end of its conversation.
	Append(ctx context.Context, msg domain.Message) error

	// History returns up to limit of the newest messages of key above
	// cursor, oldest first. A limit of zero or less means no limit.
	History(ctx context.Context, key string, cursor Cursor, limit int) ([]domain.Message, error)

	Close() error
}
