package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-match-live/internal/domain"
	pkglog "github.com/weiawesome/wes-match-live/pkg/log"
)

// ConfluentConsumer implements NotificationConsumer using confluent-kafka-go.
type ConfluentConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  NotificationHandler
	doneCh   chan struct{}
}

// NewConfluentConsumer creates a new Kafka consumer for notification records.
func NewConfluentConsumer(brokers, topic, groupID string, handler NotificationHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &ConfluentConsumer{
		consumer: c,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins consuming messages from Kafka.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	go cc.consumeLoop(ctx)

	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	defer close(cc.doneCh)
	l := pkglog.Ctx(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Info().Str("topic", cc.topic).Msg("kafka consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Warn().Err(err).Msg("kafka consumer error")
				continue
			}

			cc.processMessage(ctx, msg)
		}
	}
}

func (cc *ConfluentConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	l := pkglog.Ctx(ctx)

	var n domain.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		l.Warn().Err(err).Msg("failed to unmarshal notification record")
		return
	}

	if err := cc.handler.HandleNotification(ctx, &n); err != nil {
		l.Warn().Err(err).
			Str(pkglog.FieldNotificationID, n.ID).
			Str(pkglog.FieldUserID, n.ReceiverID.String()).
			Msg("failed to handle notification record")
	}
}

// Close stops the consumer and releases resources. Cancel the Start context
// first so the consume loop can exit.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh
	if err := cc.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
