package handler

import (
	"errors"
	"io"
	"net/http"

	"pack-store/internal/model"
	"pack-store/internal/payment"
	"pack-store/internal/service"

	"github.com/rs/zerolog"
)

// maxWebhookBytes matches the processor's documented maximum event size.
const maxWebhookBytes = 65536

// WebhookResponse acknowledges a processor event.
type WebhookResponse struct {
	Received bool   `json:"received"`
	OrderID  string `json:"orderId,omitempty"`
}

// WebhookHandler receives server-to-server payment notifications.
type WebhookHandler struct {
	verifier payment.WebhookVerifier
	orders   service.OrderService
	logger   zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(verifier payment.WebhookVerifier, orders service.OrderService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		orders:   orders,
		logger:   logger.With().Str("handler", "webhook").Logger(),
	}
}

// Stripe handles POST /api/webhooks/stripe requests.
// Non-2xx responses make the processor redeliver, so only transient failures return one.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", model.ErrCodeInvalidJSON, h.logger)
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rejected webhook")
		writeError(w, http.StatusBadRequest, "invalid webhook signature", model.ErrCodeInvalidWebhookSignature, h.logger)
		return
	}

	logger := h.logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	if event.Type != payment.EventCheckoutCompleted && event.Type != payment.EventCheckoutAsyncSucceeded {
		logger.Debug().Msg("ignoring webhook event")
		writeJSON(w, http.StatusOK, WebhookResponse{Received: true})
		return
	}

	order, err := h.orders.ConfirmSession(r.Context(), event.SessionID)
	switch {
	case err == nil:
		logger.Info().Str("session_id", event.SessionID).Str("order_id", order.ID.String()).Msg("webhook confirmed order")
		writeJSON(w, http.StatusOK, WebhookResponse{Received: true, OrderID: order.ID.String()})

	case errors.Is(err, model.ErrPaymentIncomplete):
		// Delayed payment methods complete later with an async_payment_succeeded event.
		logger.Info().Str("session_id", event.SessionID).Msg("checkout completed without payment yet")
		writeJSON(w, http.StatusOK, WebhookResponse{Received: true})

	case errors.Is(err, model.ErrOrderNotFound):
		logger.Warn().Str("session_id", event.SessionID).Msg("webhook for unknown session")
		writeJSON(w, http.StatusOK, WebhookResponse{Received: true})

	default:
		writeServiceError(w, err, logger)
	}
}
