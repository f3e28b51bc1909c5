package service

import (
	"context"

	"github.com/weiawesome/wes-match-live/internal/conversation"
	"github.com/weiawesome/wes-match-live/internal/domain"
	"github.com/weiawesome/wes-match-live/internal/hub"
)

// RealtimeService orchestrates connection lifecycle, client events and
// notification delivery.
type RealtimeService interface {
	// HandleConnect admits an authenticated client: registers its session,
	// flushes its offline backlog and starts presence bookkeeping.
	HandleConnect(ctx context.Context, c *hub.Client) error

	// HandleDisconnect removes the client's session.
	HandleDisconnect(ctx context.Context, c *hub.Client)

	// HandleEvent dispatches one decoded client event.
	HandleEvent(ctx context.Context, c *hub.Client, ev domain.ClientEvent) error

	// Snapshot returns the current presence roster.
	Snapshot() domain.PresenceSnapshot

	// History returns a page of the conversation between userID and peerID.
	History(ctx context.Context, userID, peerID string, cursor conversation.Cursor, limit int) ([]domain.Message, error)

	// DeliverNotification routes a notification to its receiver.
	DeliverNotification(ctx context.Context, n domain.Notification) (domain.Notification, bool, error)

	// HandleNotification handles a notification record from Kafka.
	HandleNotification(ctx context.Context, n *domain.Notification) error

	// Start restores state saved by a previous process.
	Start(ctx context.Context) error

	// Stop cancels pending broadcasts and saves last-seen state.
	Stop() error
}
