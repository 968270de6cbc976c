// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/shiphook/pkg/channels/gochannel"
	"github.com/dukex/shiphook/pkg/channels/kafka"
	"github.com/dukex/shiphook/pkg/notifier"
	"github.com/dukex/shiphook/pkg/protocol"
)

// NewNotifier creates a notification transport based on the provider name.
//
// nolint:ireturn // Factory intentionally returns the protocol interface
func NewNotifier(provider, slackWebhookURL string, logger *slog.Logger) protocol.Notifier {
	switch provider {
	case "kafka":
		pub, err := kafka.CreatePublisher(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka notification publisher: %w", err))
		}

		return notifier.NewBusNotifier(pub)
	case "gochannel":
		pub, _, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory notification channel: %w", err))
		}

		return notifier.NewBusNotifier(pub)
	case "slack":
		if slackWebhookURL == "" {
			panic("slack notifier requires a webhook URL")
		}

		return notifier.NewSlackNotifier(slackWebhookURL, logger)
	default:
		panic("Unsupported notifier provider: " + provider)
	}
}
