package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/printbound/api/internal/domain"
)

func TestNotificationPolicyRoutesByStatus(t *testing.T) {
	capture := &captureNotifications{}
	policy := notificationPolicy{dispatcher: capture}

	order := storedOrder(domain.OrderStatusShipped)
	order.Shipping = &domain.ShippingData{TrackingCode: "BR123456789BR", Carrier: "correios"}

	events := []TrackingEvent{
		{ID: "trk_1", Status: domain.ShippingStatusShipped},
		{ID: "trk_2", Status: domain.ShippingStatusInTransit},
		{ID: "trk_3", Status: domain.ShippingStatusOutForDelivery},
		{ID: "trk_4", Status: domain.ShippingStatusDelivered},
	}
	for _, event := range events {
		policy.Notify(context.Background(), order, event)
	}

	if len(capture.shipped) != 1 || len(capture.updates) != 1 || len(capture.lastMile) != 1 || len(capture.delivered) != 1 {
		t.Fatalf("unexpected routing: %+v", capture)
	}
	if capture.shipped[0].TrackingCode != "BR123456789BR" || capture.shipped[0].Carrier != "correios" {
		t.Errorf("unexpected payload %+v", capture.shipped[0])
	}
}

func TestNotificationPolicyLogsAndSwallowsFailures(t *testing.T) {
	capture := &captureNotifications{err: errors.New("broker down")}
	var logged []string
	policy := notificationPolicy{
		dispatcher: capture,
		logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	}

	policy.Notify(context.Background(), storedOrder(domain.OrderStatusShipped), TrackingEvent{
		ID:        "trk_1",
		Status:    domain.ShippingStatusShipped,
		Timestamp: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	})

	if len(logged) != 1 || logged[0] != "order.notification.failed" {
		t.Fatalf("expected failure log, got %v", logged)
	}
}

func TestNotificationPolicyNoDispatcher(t *testing.T) {
	policy := notificationPolicy{}
	if policy.enabled() {
		t.Fatal("policy without dispatcher must be disabled")
	}
	// Must not panic.
	policy.Notify(context.Background(), Order{}, TrackingEvent{Status: domain.ShippingStatusShipped})
}
