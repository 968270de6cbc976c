package web

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/shiphook/pkg/handler"
	"github.com/dukex/shiphook/pkg/limiter"
	"github.com/dukex/shiphook/pkg/models"
	"github.com/dukex/shiphook/pkg/orchestrator"
	"github.com/dukex/shiphook/pkg/security"
)

const testSecret = "s3cr3t"

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDispatcher struct {
	dispatched []models.Workflow
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ models.RepositoryRef, workflow models.Workflow) error {
	d.dispatched = append(d.dispatched, workflow)

	return nil
}

func (d *fakeDispatcher) Annotate(_ context.Context, _ models.RepositoryRef, _ int64, _ string) error {
	return nil
}

type fakeNotifier struct {
	sent []*models.NotificationRequest
}

func (n *fakeNotifier) Send(_ context.Context, req *models.NotificationRequest) error {
	n.sent = append(n.sent, req)

	return nil
}

type webFixture struct {
	app        *fiber.App
	dispatcher *fakeDispatcher
	notifier   *fakeNotifier
}

func newWebFixture(t *testing.T, limiterCfg limiter.Config) *webFixture {
	t.Helper()

	return newWebFixtureWithLogger(t, limiterCfg, createTestLogger())
}

func newWebFixtureWithLogger(t *testing.T, limiterCfg limiter.Config, logger *slog.Logger) *webFixture {
	t.Helper()

	dispatcher := &fakeDispatcher{}
	notifier := &fakeNotifier{}

	rateLimiter := limiter.NewMemoryLimiter(limiterCfg, logger)
	t.Cleanup(func() { _ = rateLimiter.Close() })

	release := handler.NewReleaseHandler(
		orchestrator.NewOrchestrator(dispatcher, logger),
		notifier,
		dispatcher,
		logger,
	)

	handlers := NewWebhookHandlers(
		release,
		rateLimiter,
		security.NewSignatureValidator(testSecret, logger),
		noop.NewTracerProvider().Tracer("test"),
		"http://localhost:9094/webhooks/release",
		logger,
	)

	app := fiber.New()
	app.Post("/webhooks/release", handlers.HandleRelease)
	app.Get("/webhooks/release/info", handlers.HandleInfo)
	app.Get("/limits", handlers.HandleLimits)

	return &webFixture{app: app, dispatcher: dispatcher, notifier: notifier}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func releaseBody(t *testing.T, action, tag string, draft, prerelease bool) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"action": action,
		"release": map[string]any{
			"id":         42,
			"tag_name":   tag,
			"name":       "Release " + tag,
			"draft":      draft,
			"prerelease": prerelease,
		},
		"repository": map[string]any{
			"name":      "app",
			"full_name": "acme/app",
			"owner":     map[string]any{"login": "acme"},
		},
	})
	require.NoError(t, err)

	return body
}

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/release", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(EventTypeHeader, ReleaseEventType)
	req.Header.Set(DeliveryHeader, "delivery-1")

	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	return req
}

func TestHandleRelease_ValidSignedEvent(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, f.dispatcher.dispatched)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.NotificationReleasePublished, f.notifier.sent[0].Kind)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "processed", payload["status"])
	assert.Equal(t, "delivery-1", payload["delivery_id"])
}

func TestHandleRelease_MissingSignature(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)

	resp, err := f.app.Test(webhookRequest(body, ""))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestHandleRelease_InvalidSignature(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)

	resp, err := f.app.Test(webhookRequest(body, signBody("wrong", body)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestHandleRelease_SignatureCoversRawBytes(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	// Signature computed over a semantically equal but differently
	// serialized body must not verify.
	body := releaseBody(t, "published", "v1.2.3", false, false)
	reordered := append([]byte(" "), body...)

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, reordered)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleRelease_MissingEventTypeHeader(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)
	req := webhookRequest(body, signBody(testSecret, body))
	req.Header.Del(EventTypeHeader)

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleRelease_WrongContentType(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)
	req := webhookRequest(body, signBody(testSecret, body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMETextPlain)

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRelease_NonReleaseEventIgnored(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := []byte(`{"zen":"Design for failure."}`)
	req := webhookRequest(body, signBody(testSecret, body))
	req.Header.Set(EventTypeHeader, "ping")

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.dispatcher.dispatched)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ignored", payload["status"])
}

func TestHandleRelease_MalformedJSON(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := []byte(`{"action": "published",`)

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRelease_ShapeViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing release", `{"action":"published","repository":{"full_name":"acme/app"}}`},
		{"missing tag_name", `{"action":"published","release":{"name":"x"},"repository":{"full_name":"acme/app"}}`},
		{"empty action", `{"action":"","release":{"tag_name":"v1.0.0"},"repository":{"full_name":"acme/app"}}`},
		{"missing repository", `{"action":"published","release":{"tag_name":"v1.0.0"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebFixture(t, limiter.Config{})
			body := []byte(tt.body)

			resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Empty(t, f.dispatcher.dispatched)
		})
	}
}

func TestHandleRelease_RateLimited(t *testing.T) {
	f := newWebFixture(t, limiter.Config{Window: time.Minute, MaxRequests: 2})

	body := releaseBody(t, "published", "v1.2.3", false, false)

	for i := 0; i < 2; i++ {
		resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Rejected before signature verification or any processing.
	assert.Len(t, f.notifier.sent, 2)
}

func TestHandleRelease_DraftCreatedProcessedWithoutDispatch(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "created", "v1.2.3", true, false)

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.dispatcher.dispatched)
	assert.Empty(t, f.notifier.sent)
}

func TestHandleRelease_ValidationFailureReturns500WithFailureNotification(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.0.0+general+mobile+desktop+cloud+sdk", false, false)

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.NotificationInvalidMetadata, f.notifier.sent[0].Kind)
}

func TestHandleRelease_GeneratesDeliveryIDWhenHeaderMissing(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)
	req := webhookRequest(body, signBody(testSecret, body))
	req.Header.Del(DeliveryHeader)

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotEmpty(t, payload["delivery_id"])
}

func TestHandleRelease_LogsOnlyAllowlistedReleaseFields(t *testing.T) {
	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newWebFixtureWithLogger(t, limiter.Config{}, logger)

	body, err := json.Marshal(map[string]any{
		"action": "published",
		"release": map[string]any{
			"id":       42,
			"tag_name": "v1.2.3",
			"name":     "Release 1.2.3",
			"body":     "deploy key: hunter2-credential",
		},
		"repository": map[string]any{
			"name":      "app",
			"full_name": "acme/app",
			"owner":     map[string]any{"login": "acme"},
		},
	})
	require.NoError(t, err)

	resp, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	logged := logs.String()
	assert.Contains(t, logged, "v1.2.3")
	// Free-text release notes are not in the allowlist and never reach logs.
	assert.NotContains(t, logged, "hunter2-credential")
}

func TestHandleInfo(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/release/info", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "http://localhost:9094/webhooks/release", payload["callback_url"])
	assert.Equal(t, fiber.MIMEApplicationJSON, payload["content_type"])
	assert.Equal(t, true, payload["secret_configured"])
}

func TestHandleLimits(t *testing.T) {
	f := newWebFixture(t, limiter.Config{})

	body := releaseBody(t, "published", "v1.2.3", false, false)

	_, err := f.app.Test(webhookRequest(body, signBody(testSecret, body)))
	require.NoError(t, err)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/limits", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats limiter.Stats

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TrackedIdentifiers)
	assert.Equal(t, int64(1), stats.InWindowRequests)
}
