package webhookhttp

import (
	"context"
	"io"
	"log"
	"net/http"
)

// EventHandler runs one webhook event to completion, matching
// engine.Engine.HandleEvent's signature. A Handler depends on this
// narrow interface rather than *engine.Engine directly so tests can
// substitute a fake.
type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte) (bool, error)
}

// Handler serves the service's three HTTP endpoints.
type Handler struct {
	Engine        EventHandler
	WebhookSecret string // empty disables signature verification

	shutdown chan<- struct{}
}

// NewHandler builds a Handler. shutdown, if non-nil, is signaled (once)
// on a request to /shutdown, for test orchestration.
func NewHandler(engine EventHandler, webhookSecret string, shutdown chan<- struct{}) *Handler {
	return &Handler{Engine: engine, WebhookSecret: webhookSecret, shutdown: shutdown}
}

// HandleHook implements POST /hook: verify (if a secret is configured),
// run the event synchronously, and translate the result to 204/500.
func (h *Handler) HandleHook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("webhookhttp: read payload: %v", err)
		http.Error(w, "error reading payload", http.StatusBadRequest)
		return
	}

	if h.WebhookSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if err := ValidateSignatureHeader(signature); err != nil {
			log.Printf("webhookhttp: %v", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		if !VerifySignature(payload, signature, h.WebhookSecret) {
			log.Printf("webhookhttp: signature verification failed")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	ok, err := h.Engine.HandleEvent(r.Context(), payload)
	if err != nil {
		log.Printf("webhookhttp: run failed: %v\npayload: %s", err, payload)
	}
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePing implements GET /ping.
func (h *Handler) HandlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// HandleShutdown implements POST /shutdown, for test orchestration.
func (h *Handler) HandleShutdown(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
	if h.shutdown != nil {
		select {
		case h.shutdown <- struct{}{}:
		default:
		}
	}
}
