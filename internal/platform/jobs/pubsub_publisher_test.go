package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/clovermart/api/internal/services"
)

func newTestTopic(t *testing.T, srv *pstest.Server, name string) *pubsub.Topic {
	t.Helper()
	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic
}

func TestPubSubOrderEventsPublisherNotifyOrder(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	topic := newTestTopic(t, srv, "order-notifications")
	publisher, err := NewPubSubOrderEventsPublisher(topic, nil, nil)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventsPublisher: %v", err)
	}

	msg := services.OrderNotification{
		OrderID:     "ord_test",
		OrderNumber: "CM-2026-000042",
		UserID:      "user-1",
		Event:       "created",
		TotalPrice:  12900,
		Currency:    "USD",
	}
	if err := publisher.NotifyOrder(ctx, msg); err != nil {
		t.Fatalf("NotifyOrder: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderNotification
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || payload.OrderNumber != msg.OrderNumber {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["event"]; attr != "created" {
		t.Fatalf("expected event attribute, got %q", attr)
	}
}

func TestPubSubOrderEventsPublisherAwardPoints(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	topic := newTestTopic(t, srv, "loyalty-awards")
	publisher, err := NewPubSubOrderEventsPublisher(nil, topic, nil)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventsPublisher: %v", err)
	}

	if err := publisher.AwardPoints(ctx, services.LoyaltyAward{
		UserID:  "user-1",
		OrderID: "ord_test",
		Points:  129,
	}); err != nil {
		t.Fatalf("AwardPoints: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["points"]; attr != "129" {
		t.Fatalf("expected points attribute, got %q", attr)
	}

	if err := publisher.PublishLowStock(ctx, services.LowStockAlert{ProductID: "prod_001", Stock: 2, Threshold: 5}); err == nil {
		t.Fatal("expected error publishing to unconfigured low-stock topic")
	}
}

func TestPubSubOrderEventsPublisherPublishLowStock(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	topic := newTestTopic(t, srv, "low-stock-alerts")
	publisher, err := NewPubSubOrderEventsPublisher(nil, nil, topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventsPublisher: %v", err)
	}

	if err := publisher.PublishLowStock(ctx, services.LowStockAlert{
		ProductID: "prod_001",
		Name:      "Canvas Tote",
		Stock:     2,
		Threshold: 5,
	}); err != nil {
		t.Fatalf("PublishLowStock: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.LowStockAlert
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ProductID != "prod_001" || payload.Stock != 2 {
		t.Fatalf("unexpected payload %#v", payload)
	}
}
