// Package webhookhttp is the HTTP front end: a synchronous /hook
// endpoint that drives one engine.Engine.HandleEvent call per delivery,
// plus /ping and /shutdown for test orchestration. The handler is
// synchronous rather than fire-and-forget: webhook events are never
// queued, so the HTTP response is not sent until the engine run
// completes.
package webhookhttp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySignature checks a GitHub "X-Hub-Signature-256" HMAC-SHA256
// signature over payload with secret, using a constant-time comparison.
func VerifySignature(payload []byte, signature, secret string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	received := strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(received), []byte(expected))
}

// ValidateSignatureHeader checks the header is present and well-formed
// before VerifySignature does the cryptographic comparison.
func ValidateSignatureHeader(header string) error {
	if header == "" {
		return fmt.Errorf("missing X-Hub-Signature-256 header")
	}
	if !strings.HasPrefix(header, "sha256=") {
		return fmt.Errorf("invalid signature format, expected %q", "sha256=<hash>")
	}
	return nil
}
