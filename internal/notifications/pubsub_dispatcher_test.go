package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/services"
)

func TestPubSubDispatcherPublishesTrackingMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-notifications")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	dispatcher, err := NewPubSubDispatcher(topic)
	if err != nil {
		t.Fatalf("NewPubSubDispatcher: %v", err)
	}

	occurred := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	notification := services.OrderNotification{
		OrderID:      "ord_1",
		OrderNumber:  "PB-2025-000001",
		TenantID:     "tenant-a",
		UserID:       "user-1",
		TrackingCode: "BR123456789BR",
		Carrier:      "correios",
		Status:       domain.ShippingStatusShipped,
		Description:  "objeto postado",
		OccurredAt:   occurred,
	}

	if err := dispatcher.SendShipped(ctx, notification); err != nil {
		t.Fatalf("SendShipped: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload trackingMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Kind != KindShipped || payload.OrderID != "ord_1" || payload.Status != "shipped" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["kind"]; attr != KindShipped {
		t.Fatalf("expected kind attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["trackingCode"]; attr != "BR123456789BR" {
		t.Fatalf("expected tracking code attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["customerEmail"]; ok {
		t.Fatal("customer email must not leak into attributes")
	}
}
