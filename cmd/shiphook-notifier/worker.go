package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dukex/shiphook/pkg/models"
	"github.com/dukex/shiphook/pkg/notifier"
	"github.com/dukex/shiphook/pkg/protocol"
)

// Worker consumes notification requests from the bus and delivers each one
// through a terminal notifier. Delivery failures nack the message so the bus
// redelivers it; malformed payloads are acked away since redelivery can
// never make them parseable.
type Worker struct {
	subscriber message.Subscriber
	deliverer  protocol.Notifier
	logger     *slog.Logger
}

// NewWorker creates a delivery worker over the given subscriber.
func NewWorker(subscriber message.Subscriber, deliverer protocol.Notifier, logger *slog.Logger) *Worker {
	return &Worker{
		subscriber: subscriber,
		deliverer:  deliverer,
		logger:     logger.With("module", "notification_worker"),
	}
}

// Run consumes the notification topic until ctx is cancelled or the
// subscriber closes its channel.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, notifier.Topic)
	if err != nil {
		return err
	}

	w.logger.Info("Consuming notifications", "topic", notifier.Topic)

	for msg := range messages {
		w.handle(ctx, msg)
	}

	return nil
}

func (w *Worker) handle(ctx context.Context, msg *message.Message) {
	var req models.NotificationRequest

	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("Discarding malformed notification message",
			"message_id", msg.UUID, "error", err)
		msg.Ack()

		return
	}

	if err := w.deliverer.Send(ctx, &req); err != nil {
		w.logger.Error("Notification delivery failed",
			"message_id", msg.UUID,
			"kind", string(req.Kind),
			"repository", req.Repository,
			"error", err)
		msg.Nack()

		return
	}

	w.logger.Debug("Notification delivered",
		"kind", string(req.Kind), "repository", req.Repository)
	msg.Ack()
}
