package store

import (
	"context"
	"time"

	"github.com/weiawesome/wes-match-live/internal/domain"
)

// PresenceStore is the presence side store: last-seen persistence across
// restarts and the presence change feed.
type PresenceStore interface {
	// SaveLastSeen merges lastSeen into the stored last-seen table.
	SaveLastSeen(ctx context.Context, lastSeen map[string]time.Time) error

	// LoadLastSeen returns the stored last-seen table. Unparsable entries
	// are skipped.
	LoadLastSeen(ctx context.Context) (map[string]time.Time, error)

	// PublishPresence publishes an aggregate transition to the presence
	// channel.
	PublishPresence(ctx context.Context, update domain.PresenceUpdate) error

	// Close closes the store connection.
	Close() error
}
