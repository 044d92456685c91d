package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clovermart/api/internal/payments"
	"github.com/clovermart/api/internal/platform/httpx"
)

const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives payment provider callbacks.
type WebhookHandlers struct {
	stripe *payments.StripeWebhookProcessor
}

// NewWebhookHandlers constructs the webhook handler set.
func NewWebhookHandlers(stripe *payments.StripeWebhookProcessor) *WebhookHandlers {
	return &WebhookHandlers{stripe: stripe}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stripe == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.stripe.Process(ctx, payload, signature); err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		case errors.Is(err, payments.ErrMissingOrderID):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "event is missing order metadata", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "received"})
}
