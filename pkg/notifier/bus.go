// Package notifier provides the notification transports consumed by the
// release pipeline. The pipeline owns only the send call contract.
package notifier

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dukex/shiphook/pkg/models"
)

// Topic is where notification requests are published for downstream
// delivery workers (email, chat, pager).
const Topic = "shiphook.notifications"

// KindMetadataKey carries the notification kind in message metadata so
// consumers can filter without unmarshaling.
const KindMetadataKey = "kind"

// BusNotifier publishes notification requests to a message bus.
type BusNotifier struct {
	publisher message.Publisher
}

// NewBusNotifier creates a notifier over the given publisher.
func NewBusNotifier(publisher message.Publisher) *BusNotifier {
	return &BusNotifier{publisher: publisher}
}

// Send publishes one notification request. No retries: a failed publish is
// surfaced to the caller.
func (n *BusNotifier) Send(_ context.Context, req *models.NotificationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(KindMetadataKey, string(req.Kind))

	return n.publisher.Publish(Topic, msg)
}

// Close releases the underlying publisher.
func (n *BusNotifier) Close() error {
	return n.publisher.Close()
}
