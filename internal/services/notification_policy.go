package services

import (
	"context"

	domain "github.com/printbound/api/internal/domain"
)

// notificationPolicy maps a tracking event to the matching dispatcher call.
// Delivery failures are logged and swallowed; order state never depends on a
// notification going out.
type notificationPolicy struct {
	dispatcher NotificationDispatcher
	logger     func(context.Context, string, map[string]any)
}

func (p notificationPolicy) enabled() bool {
	return p.dispatcher != nil
}

func (p notificationPolicy) Notify(ctx context.Context, order Order, event TrackingEvent) {
	if p.dispatcher == nil {
		return
	}

	payload := buildOrderNotification(order, event)

	var err error
	switch event.Status {
	case domain.ShippingStatusShipped:
		err = p.dispatcher.SendShipped(ctx, payload)
	case domain.ShippingStatusOutForDelivery:
		err = p.dispatcher.SendOutForDelivery(ctx, payload)
	case domain.ShippingStatusDelivered:
		err = p.dispatcher.SendDelivered(ctx, payload)
	default:
		err = p.dispatcher.SendTrackingUpdate(ctx, payload)
	}

	if err != nil && p.logger != nil {
		p.logger(ctx, "order.notification.failed", map[string]any{
			"order":  order.ID,
			"status": string(event.Status),
			"event":  event.ID,
			"error":  err.Error(),
		})
	}
}

func buildOrderNotification(order Order, event TrackingEvent) OrderNotification {
	notification := OrderNotification{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		TenantID:      order.TenantID,
		UserID:        order.UserID,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		CustomerPhone: order.Customer.Phone,
		Status:        event.Status,
		Description:   event.Description,
		Location:      event.Location,
		OccurredAt:    event.Timestamp,
	}
	if order.Shipping != nil {
		notification.TrackingCode = order.Shipping.TrackingCode
		notification.Carrier = order.Shipping.Carrier
	}
	return notification
}
