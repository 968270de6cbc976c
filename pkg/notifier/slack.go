package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/dukex/shiphook/pkg/models"
)

// SlackNotifier posts notification requests to a Slack-style incoming
// webhook URL.
type SlackNotifier struct {
	client     *resty.Client
	webhookURL string
	logger     *slog.Logger
}

// NewSlackNotifier creates a notifier posting to webhookURL.
func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:     resty.New(),
		webhookURL: webhookURL,
		logger:     logger.With("module", "slack_notifier"),
	}
}

// Send posts one message per notification request. Non-2xx responses are
// errors; there are no retries.
func (n *SlackNotifier) Send(ctx context.Context, req *models.NotificationRequest) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": renderMessage(req)}).
		Post(n.webhookURL)
	if err != nil {
		return err
	}

	if resp.IsError() {
		return errors.New("slack webhook returned status " + resp.Status())
	}

	n.logger.Debug("Notification delivered", "kind", string(req.Kind), "repository", req.Repository)

	return nil
}

func renderMessage(req *models.NotificationRequest) string {
	switch req.Kind {
	case models.NotificationReleasePublished:
		return fmt.Sprintf(":rocket: %s released %s (targets: %d)",
			req.Repository, releaseVersion(req), targetCount(req))
	case models.NotificationPrereleasePublished:
		return fmt.Sprintf(":test_tube: %s published prerelease %s",
			req.Repository, releaseVersion(req))
	case models.NotificationBuildFailure:
		return fmt.Sprintf(":x: release processing failed for %s: %s", req.Repository, req.Error)
	case models.NotificationInvalidMetadata:
		return fmt.Sprintf(":warning: invalid release metadata for %s: %s", req.Repository, req.Error)
	default:
		return fmt.Sprintf("%s: %s", req.Repository, string(req.Kind))
	}
}

func releaseVersion(req *models.NotificationRequest) string {
	if req.Release == nil {
		return "unknown"
	}

	return req.Release.Version
}

func targetCount(req *models.NotificationRequest) int {
	if req.Release == nil {
		return 0
	}

	return len(req.Release.Targets)
}
