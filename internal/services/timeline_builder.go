package services

import (
	"sort"

	domain "github.com/printbound/api/internal/domain"
)

// BuildOrderTimeline projects an order into the customer-facing timeline. The
// projection is pure and recomputed on every read; the tracking log stays the
// source of truth for carrier milestones.
func BuildOrderTimeline(order Order) []TimelineEvent {
	events := make([]TimelineEvent, 0, 8)

	events = append(events, TimelineEvent{
		Type:      "order",
		Title:     "Order placed",
		Status:    string(domain.OrderStatusPending),
		Timestamp: order.CreatedAt,
	})

	if order.PaidAt != nil {
		events = append(events, TimelineEvent{
			Type:      "payment",
			Title:     "Payment confirmed",
			Status:    string(domain.OrderStatusPaid),
			Timestamp: *order.PaidAt,
		})
	}

	if order.Production != nil {
		if order.Production.StartedAt != nil {
			events = append(events, TimelineEvent{
				Type:      "production",
				Title:     "Production started",
				Status:    string(domain.OrderStatusProduction),
				Timestamp: *order.Production.StartedAt,
			})
		}
		if order.Production.CompletedAt != nil {
			events = append(events, TimelineEvent{
				Type:      "production",
				Title:     "Production completed",
				Status:    string(domain.OrderStatusReadyToShip),
				Timestamp: *order.Production.CompletedAt,
			})
		}
	}

	carrierDelivered := false
	if order.Shipping != nil {
		for _, tracking := range order.Shipping.TrackingEvents {
			if tracking.Status == domain.ShippingStatusDelivered {
				carrierDelivered = true
			}
			events = append(events, TimelineEvent{
				Type:        "tracking",
				Title:       trackingTitle(tracking.Status),
				Description: tracking.Description,
				Status:      string(tracking.Status),
				Timestamp:   tracking.Timestamp,
			})
		}
	}

	if order.DeliveredAt != nil && !carrierDelivered {
		events = append(events, TimelineEvent{
			Type:      "order",
			Title:     "Delivered",
			Status:    string(domain.OrderStatusDelivered),
			Timestamp: *order.DeliveredAt,
		})
	}

	if order.CompletedAt != nil {
		events = append(events, TimelineEvent{
			Type:      "order",
			Title:     "Order completed",
			Status:    string(domain.OrderStatusCompleted),
			Timestamp: *order.CompletedAt,
		})
	}

	if order.CancelledAt != nil {
		cancelled := TimelineEvent{
			Type:      "order",
			Title:     "Order cancelled",
			Status:    string(domain.OrderStatusCancelled),
			Timestamp: *order.CancelledAt,
		}
		if order.CancelReason != nil {
			cancelled.Description = *order.CancelReason
		}
		events = append(events, cancelled)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func trackingTitle(status ShippingStatus) string {
	switch status {
	case domain.ShippingStatusShipped:
		return "Shipped"
	case domain.ShippingStatusInTransit:
		return "In transit"
	case domain.ShippingStatusOutForDelivery:
		return "Out for delivery"
	case domain.ShippingStatusDelivered:
		return "Delivered"
	default:
		return "Tracking update"
	}
}
