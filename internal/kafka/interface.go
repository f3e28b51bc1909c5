package kafka

import (
	"context"

	"github.com/weiawesome/wes-match-live/internal/domain"
)

// NotificationHandler handles notification records consumed from Kafka.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, n *domain.Notification) error
}

// NotificationConsumer defines the interface for consuming notification records.
type NotificationConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
