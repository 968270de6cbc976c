// Package security guards the webhook trust boundary: signature verification
// and defensive sanitization of untrusted payload content.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

const signatureAlgorithm = "sha256"

// SignatureValidator verifies webhook authenticity via an HMAC-SHA256 hex
// digest of the raw payload bytes. The secret is read-only after construction.
type SignatureValidator struct {
	secret []byte
	logger *slog.Logger
}

// NewSignatureValidator creates a validator for the given shared secret.
// An empty secret yields a validator that rejects every request.
func NewSignatureValidator(secret string, logger *slog.Logger) *SignatureValidator {
	return &SignatureValidator{
		secret: []byte(secret),
		logger: logger.With("module", "signature_validator"),
	}
}

// Configured reports whether a shared secret is set. Exposed for the
// diagnostics endpoint; the secret value itself is never exposed.
func (v *SignatureValidator) Configured() bool {
	return len(v.secret) > 0
}

// Verify checks the signature header against the HMAC-SHA256 digest of
// payload. The payload must be the exact bytes that were signed, prior to
// any JSON re-serialization. Verify never panics and fails closed: missing
// secret, missing or malformed header, wrong algorithm prefix, and digest
// mismatch all return false.
func (v *SignatureValidator) Verify(payload []byte, header string) bool {
	if !v.Configured() {
		v.logger.Warn("Rejecting webhook: no signing secret configured")

		return false
	}

	if header == "" {
		v.logger.Warn("Rejecting webhook: signature header missing")

		return false
	}

	parts := strings.Split(header, "=")
	if len(parts) != 2 {
		v.logger.Warn("Rejecting webhook: malformed signature header")

		return false
	}

	if parts[0] != signatureAlgorithm {
		v.logger.Warn("Rejecting webhook: unsupported signature algorithm", "algorithm", parts[0])

		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		// Only truncated fragments are logged, never full digests.
		v.logger.Warn("Rejecting webhook: signature mismatch",
			"provided", truncateDigest(parts[1]),
			"expected", truncateDigest(expected))

		return false
	}

	return true
}

func truncateDigest(digest string) string {
	const visible = 8
	if len(digest) <= visible {
		return digest
	}

	return digest[:visible]
}
