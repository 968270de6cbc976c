package web

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/shiphook/pkg/handler"
	"github.com/dukex/shiphook/pkg/limiter"
	"github.com/dukex/shiphook/pkg/models"
	"github.com/dukex/shiphook/pkg/otelhelper"
	"github.com/dukex/shiphook/pkg/security"
)

// WebhookHandlers wires the webhook endpoint's admission, verification, and
// processing steps. All dependencies are constructor-injected.
type WebhookHandlers struct {
	release     *handler.ReleaseHandler
	limiter     limiter.Limiter
	signature   *security.SignatureValidator
	validator   *validator.Validate
	tracer      trace.Tracer
	callbackURL string
	logger      *slog.Logger
}

// NewWebhookHandlers creates the webhook endpoint handlers.
func NewWebhookHandlers(
	release *handler.ReleaseHandler,
	rateLimiter limiter.Limiter,
	signature *security.SignatureValidator,
	tracer trace.Tracer,
	callbackURL string,
	logger *slog.Logger,
) *WebhookHandlers {
	return &WebhookHandlers{
		release:     release,
		limiter:     rateLimiter,
		signature:   signature,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		tracer:      tracer,
		callbackURL: callbackURL,
		logger:      logger.With("module", "webhook_handlers"),
	}
}

// HandleRelease processes one inbound release webhook. Admission control and
// signature verification run before any business logic; nothing is partially
// processed for a rejected request.
func (h *WebhookHandlers) HandleRelease(c fiber.Ctx) error {
	clientID := clientIdentifier(c)

	allowed, err := h.limiter.Allow(c.Context(), clientID)
	if err != nil {
		h.logger.Error("Rate limiter backend failure", "error", err)

		return internalError(c, err)
	}

	if !allowed {
		return tooManyRequests(c, "Rate limit exceeded, retry later")
	}

	eventType := c.Get(EventTypeHeader)
	if eventType == "" {
		return unauthorized(c, "Missing event type header")
	}

	if !strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return badRequest(c, "Content type must be application/json")
	}

	// The raw bytes are what was signed; they must not be re-serialized
	// before verification.
	body := c.Body()

	if !h.signature.Verify(body, c.Get(SignatureHeader)) {
		return unauthorized(c, "Missing or invalid signature")
	}

	if eventType != ReleaseEventType {
		h.logger.Info("Ignoring non-release event", "event_type", security.SanitizeString(eventType, 64))

		return c.JSON(fiber.Map{"status": "ignored", "event_type": security.SanitizeString(eventType, 64)})
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return badRequest(c, "Invalid JSON in request body")
	}

	if err := validateEventShape(raw); err != nil {
		return badRequest(c, err.Error())
	}

	var payload ReleasePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return badRequest(c, "Invalid release payload")
	}

	if err := h.validator.Struct(payload); err != nil {
		return badRequest(c, err.Error())
	}

	event := h.buildEvent(c, eventType, body, raw, &payload)

	ctx, span := otelhelper.StartSpan(c.Context(), h.tracer, "webhook.release",
		attribute.String(otelhelper.DeliveryIDKey, event.DeliveryID),
		attribute.String(otelhelper.ActionKey, string(event.Action)),
		attribute.String(otelhelper.RepositoryKey, event.Repository.FullName),
		attribute.String(otelhelper.TagKey, event.Release.TagName),
	)
	defer span.End()

	if err := h.release.Handle(ctx, event); err != nil {
		otelhelper.SetError(span, err)

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":      "processed",
		"delivery_id": event.DeliveryID,
	})
}

// HandleInfo reports the webhook endpoint's expectations for operators
// configuring the source-control side. The secret value is never reported.
func (h *WebhookHandlers) HandleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"callback_url":      h.callbackURL,
		"content_type":      fiber.MIMEApplicationJSON,
		"secret_configured": h.signature.Configured(),
	})
}

// HandleLimits exposes aggregate rate limiter stats.
func (h *WebhookHandlers) HandleLimits(c fiber.Ctx) error {
	stats, err := h.limiter.Stats(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

// loggedReleaseFields are the only untrusted release payload fields that
// ever reach logs.
var loggedReleaseFields = []string{"tag_name", "name", "draft", "prerelease"}

// buildEvent sanitizes untrusted payload fields and assembles the transient
// unit of work for one request.
func (h *WebhookHandlers) buildEvent(c fiber.Ctx, eventType string, body []byte, raw map[string]any, payload *ReleasePayload) *models.WebhookEvent {
	deliveryID := security.SanitizeString(c.Get(DeliveryHeader), 64)
	if deliveryID == "" {
		deliveryID = uuid.New().String()
	}

	if rawRelease, ok := raw["release"].(map[string]any); ok {
		h.logger.Debug("Release event admitted",
			"delivery_id", deliveryID,
			"release", security.AllowlistCopy(rawRelease, loggedReleaseFields))
	}

	release := *payload.Release
	release.TagName = security.SanitizeTag(release.TagName)
	release.Name = security.SanitizeString(release.Name, security.MaxTextLength)

	return &models.WebhookEvent{
		DeliveryID: deliveryID,
		EventType:  eventType,
		Action:     models.ReleaseAction(payload.Action),
		RawPayload: body,
		Release:    &release,
		Repository: models.RepositoryRef{
			Owner:    security.SanitizeRepositoryName(payload.Repository.Owner.Login),
			Name:     security.SanitizeRepositoryName(payload.Repository.Name),
			FullName: security.SanitizeRepositoryName(payload.Repository.FullName),
		},
	}
}

// clientIdentifier picks the rate limit key: the first forwarded client
// address when present, the peer address otherwise.
func clientIdentifier(c fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")

		return strings.TrimSpace(first)
	}

	return c.IP()
}
