// Package main provides the shiphook release webhook server.
package main

import (
	"context"
	"os"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/shiphook/pkg/cmd"
	githubdispatcher "github.com/dukex/shiphook/pkg/dispatchers/github"
	"github.com/dukex/shiphook/pkg/handler"
	"github.com/dukex/shiphook/pkg/log"
	"github.com/dukex/shiphook/pkg/orchestrator"
	"github.com/dukex/shiphook/pkg/otelhelper"
	"github.com/dukex/shiphook/pkg/security"
	"github.com/dukex/shiphook/pkg/web"
)

const defaultPort = 9094

func main() {
	logger := log.WithModule("shiphook")

	command := &cli.Command{
		Name:                  "shiphook",
		Usage:                 "Ingest signed release webhooks and fan out deployment workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the webhook server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Usage:   "Shared secret for webhook signature verification",
				Sources: cli.EnvVars("WEBHOOK_SECRET"),
			},
			&cli.StringFlag{
				Name:    "callback-url",
				Usage:   "Externally reachable webhook callback URL reported by the diagnostics endpoint",
				Value:   "http://localhost:9094/webhooks/release",
				Sources: cli.EnvVars("CALLBACK_URL"),
			},
			&cli.StringFlag{
				Name:    "limiter-url",
				Usage:   "Rate limiter backend URL (memory:// or redis://host:port)",
				Value:   "memory://",
				Sources: cli.EnvVars("LIMITER_URL"),
			},
			&cli.DurationFlag{
				Name:    "rate-limit-window",
				Usage:   "Sliding window span for rate limiting",
				Value:   0,
				Sources: cli.EnvVars("RATE_LIMIT_WINDOW"),
			},
			&cli.IntFlag{
				Name:    "rate-limit-max",
				Usage:   "Maximum requests per identifier per window",
				Value:   0,
				Sources: cli.EnvVars("RATE_LIMIT_MAX"),
			},
			&cli.StringFlag{
				Name:    "notifier",
				Usage:   "Notification transport (gochannel, kafka, slack)",
				Value:   "gochannel",
				Sources: cli.EnvVars("NOTIFIER_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "slack-webhook-url",
				Usage:   "Incoming webhook URL for the slack notifier",
				Sources: cli.EnvVars("SLACK_WEBHOOK_URL"),
			},
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "Token used for workflow dispatch and release annotation",
				Sources: cli.EnvVars("GITHUB_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "github-ref",
				Usage:   "Git ref workflow dispatches run against",
				Value:   "main",
				Sources: cli.EnvVars("GITHUB_REF"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing shiphook webhook server")

			var tracer trace.Tracer = noop.NewTracerProvider().Tracer("shiphook")

			if command.Bool("tracing") {
				t, err := otelhelper.NewTracer(ctx, "shiphook")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracing, continuing without it", "error", err)
				} else {
					tracer = t
				}
			}

			rateLimiter := cmd.NewLimiter(
				command.String("limiter-url"),
				command.Duration("rate-limit-window"),
				command.Int("rate-limit-max"),
				logger,
			)
			defer func() {
				if err := rateLimiter.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close rate limiter", "error", err)
				}
			}()

			notifier := cmd.NewNotifier(
				command.String("notifier"),
				command.String("slack-webhook-url"),
				logger,
			)

			dispatcher := githubdispatcher.NewDispatcher(
				command.String("github-token"),
				command.String("github-ref"),
				logger,
			)

			releaseHandler := handler.NewReleaseHandler(
				orchestrator.NewOrchestrator(dispatcher, logger),
				notifier,
				dispatcher,
				logger,
			)

			signature := security.NewSignatureValidator(command.String("webhook-secret"), logger)

			handlers := web.NewWebhookHandlers(
				releaseHandler,
				rateLimiter,
				signature,
				tracer,
				command.String("callback-url"),
				logger,
			)

			statsJob := cron.New()
			if _, err := statsJob.AddFunc("@every 1m", func() {
				stats, err := rateLimiter.Stats(ctx)
				if err != nil {
					logger.Warn("Failed to read rate limiter stats", "error", err)

					return
				}

				logger.Info("Rate limiter stats",
					"tracked_identifiers", stats.TrackedIdentifiers,
					"in_window_requests", stats.InWindowRequests)
			}); err != nil {
				logger.ErrorContext(ctx, "Failed to schedule stats job", "error", err)
			}

			statsJob.Start()
			defer statsJob.Stop()

			api := NewAPI(logger, handlers)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Webhook server stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
