// Package main provides the shiphook notification delivery worker.
package main

import (
	"context"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/shiphook/pkg/channels/kafka"
	"github.com/dukex/shiphook/pkg/log"
	"github.com/dukex/shiphook/pkg/notifier"
)

func main() {
	command := &cli.Command{
		Name:                  "shiphook-notifier",
		Usage:                 "Deliver queued release notifications to their terminal transport",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "slack-webhook-url",
				Usage:    "Incoming webhook URL notifications are delivered to",
				Required: true,
				Sources:  cli.EnvVars("SLACK_WEBHOOK_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("shiphook-notifier")

			logger.InfoContext(ctx, "Initializing notification delivery worker")

			subscriber, err := kafka.CreateSubscriber(watermill.NewSlogLogger(logger), "shiphook")
			if err != nil {
				return err
			}

			defer func() {
				if err := subscriber.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close subscriber", "error", err)
				}
			}()

			deliverer := notifier.NewSlackNotifier(command.String("slack-webhook-url"), logger)

			worker := NewWorker(subscriber, deliverer, logger)

			err = worker.Run(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Notification worker stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
