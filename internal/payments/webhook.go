package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/clovermart/api/internal/services"
)

// WebhookLogger defines the logging contract for webhook processing.
type WebhookLogger func(ctx context.Context, event string, fields map[string]any)

// ErrInvalidSignature indicates the payload failed Stripe signature verification.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// ErrMissingOrderID indicates the payment intent carries no order reference.
var ErrMissingOrderID = errors.New("payments: payment intent has no order id")

// StripeWebhookConfig configures the StripeWebhookProcessor.
type StripeWebhookConfig struct {
	SigningSecret string
	Orders        services.OrderService
	Logger        WebhookLogger
	Clock         func() time.Time
}

// StripeWebhookProcessor verifies Stripe event signatures and applies payment
// confirmations to orders. Stripe retries deliveries, so a repeated
// payment_intent.succeeded for an already-paid order is treated as handled.
type StripeWebhookProcessor struct {
	secret string
	orders services.OrderService
	clock  func() time.Time
	logger WebhookLogger
}

// NewStripeWebhookProcessor constructs a webhook processor using the given configuration.
func NewStripeWebhookProcessor(cfg StripeWebhookConfig) (*StripeWebhookProcessor, error) {
	secret := strings.TrimSpace(cfg.SigningSecret)
	if secret == "" {
		return nil, errors.New("payments: webhook signing secret is required")
	}
	if cfg.Orders == nil {
		return nil, errors.New("payments: order service is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeWebhookProcessor{
		secret: secret,
		orders: cfg.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Process verifies the payload against the Stripe-Signature header and
// dispatches the event. Unrecognised event types are acknowledged without
// action so Stripe stops retrying them.
func (p *StripeWebhookProcessor) Process(ctx context.Context, payload []byte, signature string) error {
	if p == nil {
		return errors.New("payments: processor is nil")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.logger(ctx, "payments.webhook.signature_rejected", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch string(event.Type) {
	case "payment_intent.succeeded":
		return p.handlePaymentSucceeded(ctx, event)
	default:
		p.logger(ctx, "payments.webhook.ignored", map[string]any{
			"eventId":   event.ID,
			"eventType": string(event.Type),
		})
		return nil
	}
}

func (p *StripeWebhookProcessor) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("payments: decode payment intent: %w", err)
	}

	orderID := strings.TrimSpace(intent.Metadata["orderId"])
	if orderID == "" {
		p.logger(ctx, "payments.webhook.missing_order_id", map[string]any{
			"eventId":       event.ID,
			"paymentIntent": intent.ID,
		})
		return ErrMissingOrderID
	}

	updateTime := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		updateTime = p.clock()
	}

	_, err := p.orders.MarkPaid(ctx, services.MarkPaidCommand{
		OrderID: orderID,
		Payment: services.PaymentResult{
			ID:         intent.ID,
			Status:     string(intent.Status),
			Email:      intent.ReceiptEmail,
			UpdateTime: updateTime,
		},
	})
	if err != nil {
		// A retried delivery for an already-confirmed order is a success.
		if errors.Is(err, services.ErrOrderAlreadyPaid) {
			p.logger(ctx, "payments.webhook.duplicate_delivery", map[string]any{
				"eventId": event.ID,
				"orderId": orderID,
			})
			return nil
		}
		return err
	}

	p.logger(ctx, "payments.webhook.order_paid", map[string]any{
		"eventId":       event.ID,
		"orderId":       orderID,
		"paymentIntent": intent.ID,
	})
	return nil
}
