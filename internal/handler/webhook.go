package handler

import (
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"
)

// EventConstructor verifies a webhook payload's signature and decodes it.
type EventConstructor interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// EventSink receives verified billing events.
type EventSink interface {
	HandleEvent(event stripe.Event)
}

type WebhookHandler struct {
	constructor EventConstructor
	sink        EventSink
	logger      *slog.Logger
}

func NewWebhookHandler(ec EventConstructor, sink EventSink, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		constructor: ec,
		sink:        sink,
		logger:      logger.With("component", "webhook_handler"),
	}
}

// HandleStripeWebhook verifies the payload signature and hands the event to
// the reconciler. Every verified event is ACKed with 200 so Stripe does not
// redeliver kinds we choose to ignore.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.constructor.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	h.sink.HandleEvent(event)

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
