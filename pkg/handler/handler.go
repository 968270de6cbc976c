// Package handler holds the release event state logic: which downstream
// actions each inbound release action triggers.
package handler

import (
	"context"
	"log/slog"

	"github.com/dukex/shiphook/pkg/classifier"
	"github.com/dukex/shiphook/pkg/models"
	"github.com/dukex/shiphook/pkg/orchestrator"
	"github.com/dukex/shiphook/pkg/protocol"
)

// ReleaseHandler routes release webhook events through classification,
// workflow fan-out, notification, and best-effort annotation.
type ReleaseHandler struct {
	orchestrator *orchestrator.Orchestrator
	notifier     protocol.Notifier
	annotator    protocol.ReleaseAnnotator
	logger       *slog.Logger
}

// NewReleaseHandler creates a handler with explicit collaborators, so tests
// can instantiate isolated instances instead of sharing global state.
func NewReleaseHandler(
	orch *orchestrator.Orchestrator,
	notifier protocol.Notifier,
	annotator protocol.ReleaseAnnotator,
	logger *slog.Logger,
) *ReleaseHandler {
	return &ReleaseHandler{
		orchestrator: orch,
		notifier:     notifier,
		annotator:    annotator,
		logger:       logger.With("module", "release_handler"),
	}
}

// Handle dispatches one webhook event by action kind.
//
// Any error escaping the published or prerelease path is caught exactly
// once: a best-effort failure notification is sent, then the original error
// is returned to the webhook boundary for the HTTP-level response. The
// notification send never suppresses or replaces the original error.
func (h *ReleaseHandler) Handle(ctx context.Context, event *models.WebhookEvent) error {
	logger := h.logger.With(
		"delivery_id", event.DeliveryID,
		"action", string(event.Action),
		"repository", event.Repository.FullName,
	)

	var err error

	switch event.Action {
	case models.ActionPublished:
		err = h.runPublished(ctx, event, logger)
	case models.ActionCreated, models.ActionPrereleased:
		err = h.handleCreated(ctx, event, logger)
	case models.ActionEdited:
		err = h.handleEdited(ctx, event, logger)
	default:
		logger.Info("Ignoring release action")

		return nil
	}

	if err != nil {
		h.notifyFailure(ctx, event, err, logger)

		return err
	}

	return nil
}

// handleCreated routes a created (or prereleased, which is handled the same
// way) event by the release's draft and prerelease flags. Drafts stop here:
// no classification, no workflows, no notification.
func (h *ReleaseHandler) handleCreated(ctx context.Context, event *models.WebhookEvent, logger *slog.Logger) error {
	if event.Release.Draft {
		logger.Info("Skipping draft release")

		return nil
	}

	if event.Release.Prerelease {
		return h.runPrerelease(ctx, event, logger)
	}

	return h.runPublished(ctx, event, logger)
}

// handleEdited re-runs the published path only when the edited release's
// draft flag is now false, capturing the draft-to-published transition.
func (h *ReleaseHandler) handleEdited(ctx context.Context, event *models.WebhookEvent, logger *slog.Logger) error {
	if event.Release.Draft {
		logger.Info("Edited release is still a draft, nothing to do")

		return nil
	}

	return h.runPublished(ctx, event, logger)
}

// runPublished is the full pipeline: classify, validate, trigger every
// workflow for all targets, notify, then attempt the cosmetic annotation.
func (h *ReleaseHandler) runPublished(ctx context.Context, event *models.WebhookEvent, logger *slog.Logger) error {
	metadata, err := h.classify(event, logger)
	if err != nil {
		return err
	}

	for _, warning := range h.orchestrator.ValidateWorkflows(metadata) {
		logger.Warn("Workflow configuration drift", "warning", warning)
	}

	results := h.orchestrator.TriggerWorkflows(ctx, metadata, event.Repository)
	logDispatchResults(logger, results)

	notification := models.NewNotificationRequest(models.NotificationReleasePublished, event.Repository.FullName)
	notification.Release = metadata

	if err := h.notifier.Send(ctx, notification); err != nil {
		return err
	}

	h.annotate(ctx, event, metadata, logger)

	return nil
}

// runPrerelease is the reduced pipeline: classify, trigger the
// prerelease-only workflow set, notify. No annotation attempt.
func (h *ReleaseHandler) runPrerelease(ctx context.Context, event *models.WebhookEvent, logger *slog.Logger) error {
	metadata, err := h.classify(event, logger)
	if err != nil {
		return err
	}

	results := h.orchestrator.TriggerPrereleaseWorkflows(ctx, metadata, event.Repository)
	logDispatchResults(logger, results)

	notification := models.NewNotificationRequest(models.NotificationPrereleasePublished, event.Repository.FullName)
	notification.Release = metadata

	return h.notifier.Send(ctx, notification)
}

func (h *ReleaseHandler) classify(event *models.WebhookEvent, logger *slog.Logger) (*models.ReleaseMetadata, error) {
	metadata, err := classifier.Classify(event.Release.TagName, event.Release.Name)
	if err != nil {
		logger.Error("Release classification failed", "tag", event.Release.TagName, "error", err)

		return nil, err
	}

	metadata.Draft = event.Release.Draft

	if err := metadata.Validate(); err != nil {
		logger.Error("Release metadata validation failed", "tag", event.Release.TagName, "error", err)

		return nil, err
	}

	logger.Info("Release classified",
		"type", string(metadata.Type),
		"targets", len(metadata.Targets),
		"version", metadata.Version,
		"prerelease", metadata.Prerelease)

	return metadata, nil
}

// annotate writes a processed marker back to the originating release.
// Failures here are purely cosmetic: logged and otherwise ignored.
func (h *ReleaseHandler) annotate(ctx context.Context, event *models.WebhookEvent, metadata *models.ReleaseMetadata, logger *slog.Logger) {
	note := "Release " + metadata.Version + " processed by shiphook"

	if err := h.annotator.Annotate(ctx, event.Repository, event.Release.ID, note); err != nil {
		logger.Warn("Release annotation failed", "release_id", event.Release.ID, "error", err)
	}
}

// notifyFailure sends the single failure notification for an error escaping
// the published or prerelease path: invalid_metadata for typed validation
// errors, build_failure otherwise. The send itself is best-effort.
func (h *ReleaseHandler) notifyFailure(ctx context.Context, event *models.WebhookEvent, cause error, logger *slog.Logger) {
	kind := models.NotificationBuildFailure
	if models.IsValidationError(cause) {
		kind = models.NotificationInvalidMetadata
	}

	notification := models.NewNotificationRequest(kind, event.Repository.FullName)
	notification.Error = cause.Error()

	if err := h.notifier.Send(ctx, notification); err != nil {
		logger.Error("Failure notification could not be sent", "kind", string(kind), "error", err)
	}
}

func logDispatchResults(logger *slog.Logger, results []orchestrator.DispatchResult) {
	attempted := len(results)
	failed := 0

	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}

	logger.Info("Workflow fan-out finished", "attempted", attempted, "failed", failed)
}
