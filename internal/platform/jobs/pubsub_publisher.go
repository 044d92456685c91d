package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/clovermart/api/internal/services"
)

// PubSubOrderEventsPublisher fans order lifecycle events out to Pub/Sub topics.
// It backs the notification, loyalty, and low-stock hooks fired after order
// assembly and delivery.
type PubSubOrderEventsPublisher struct {
	notifications *pubsub.Topic
	loyalty       *pubsub.Topic
	lowStock      *pubsub.Topic
	marshal       func(any) ([]byte, error)
}

// NewPubSubOrderEventsPublisher constructs a publisher over the three topics.
// Any topic may be nil; publishing to a missing topic returns an error so
// callers can log and move on.
func NewPubSubOrderEventsPublisher(notifications, loyalty, lowStock *pubsub.Topic) (*PubSubOrderEventsPublisher, error) {
	if notifications == nil && loyalty == nil && lowStock == nil {
		return nil, errors.New("pubsub order events publisher: at least one topic is required")
	}
	return &PubSubOrderEventsPublisher{
		notifications: notifications,
		loyalty:       loyalty,
		lowStock:      lowStock,
		marshal:       json.Marshal,
	}, nil
}

// NotifyOrder publishes an order lifecycle notification.
func (p *PubSubOrderEventsPublisher) NotifyOrder(ctx context.Context, message services.OrderNotification) error {
	if p == nil || p.notifications == nil {
		return errors.New("pubsub order events publisher: notifications topic not configured")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal order notification: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "event", message.Event)

	result := p.notifications.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order notification: %w", err)
	}
	return nil
}

// AwardPoints publishes a loyalty award for a delivered order.
func (p *PubSubOrderEventsPublisher) AwardPoints(ctx context.Context, message services.LoyaltyAward) error {
	if p == nil || p.loyalty == nil {
		return errors.New("pubsub order events publisher: loyalty topic not configured")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal loyalty award: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "userId", message.UserID)
	setAttr(attrs, "points", strconv.FormatInt(message.Points, 10))

	result := p.loyalty.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish loyalty award: %w", err)
	}
	return nil
}

// PublishLowStock publishes a restock alert when stock dips under the threshold.
func (p *PubSubOrderEventsPublisher) PublishLowStock(ctx context.Context, message services.LowStockAlert) error {
	if p == nil || p.lowStock == nil {
		return errors.New("pubsub order events publisher: low-stock topic not configured")
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal low-stock alert: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "productId", message.ProductID)
	setAttr(attrs, "stock", strconv.FormatInt(message.Stock, 10))

	result := p.lowStock.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish low-stock alert: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
