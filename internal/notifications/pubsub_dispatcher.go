package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/printbound/api/internal/services"
)

// Message kinds consumed by the notification workers (email, WhatsApp).
const (
	KindShipped        = "order.shipped"
	KindTrackingUpdate = "order.tracking.updated"
	KindOutForDelivery = "order.out_for_delivery"
	KindDelivered      = "order.delivered"
)

// trackingMessage is the wire payload published per notification.
type trackingMessage struct {
	Kind          string    `json:"kind"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	TenantID      string    `json:"tenantId"`
	UserID        string    `json:"userId"`
	CustomerName  string    `json:"customerName,omitempty"`
	CustomerEmail string    `json:"customerEmail,omitempty"`
	CustomerPhone string    `json:"customerPhone,omitempty"`
	TrackingCode  string    `json:"trackingCode,omitempty"`
	Carrier       string    `json:"carrier,omitempty"`
	Status        string    `json:"status"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// PubSubDispatcher publishes order notifications to a Pub/Sub topic for the
// downstream notification workers.
type PubSubDispatcher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubDispatcher constructs a Pub/Sub backed notification dispatcher.
func NewPubSubDispatcher(topic *pubsub.Topic) (*PubSubDispatcher, error) {
	if topic == nil {
		return nil, errors.New("pubsub dispatcher: topic is required")
	}
	return &PubSubDispatcher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// SendShipped publishes the shipment-registered notification.
func (d *PubSubDispatcher) SendShipped(ctx context.Context, n services.OrderNotification) error {
	return d.publish(ctx, KindShipped, n)
}

// SendTrackingUpdate publishes an intermediate tracking milestone.
func (d *PubSubDispatcher) SendTrackingUpdate(ctx context.Context, n services.OrderNotification) error {
	return d.publish(ctx, KindTrackingUpdate, n)
}

// SendOutForDelivery publishes the last-mile notification.
func (d *PubSubDispatcher) SendOutForDelivery(ctx context.Context, n services.OrderNotification) error {
	return d.publish(ctx, KindOutForDelivery, n)
}

// SendDelivered publishes the delivery confirmation notification.
func (d *PubSubDispatcher) SendDelivered(ctx context.Context, n services.OrderNotification) error {
	return d.publish(ctx, KindDelivered, n)
}

func (d *PubSubDispatcher) publish(ctx context.Context, kind string, n services.OrderNotification) error {
	if d == nil || d.topic == nil {
		return errors.New("pubsub dispatcher: not initialised")
	}

	data, err := d.marshal(trackingMessage{
		Kind:          kind,
		OrderID:       n.OrderID,
		OrderNumber:   n.OrderNumber,
		TenantID:      n.TenantID,
		UserID:        n.UserID,
		CustomerName:  n.CustomerName,
		CustomerEmail: n.CustomerEmail,
		CustomerPhone: n.CustomerPhone,
		TrackingCode:  n.TrackingCode,
		Carrier:       n.Carrier,
		Status:        string(n.Status),
		Description:   n.Description,
		Location:      n.Location,
		OccurredAt:    n.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	attrs := make(map[string]string)
	attrs["kind"] = kind
	setAttr(attrs, "orderId", n.OrderID)
	setAttr(attrs, "tenantId", n.TenantID)
	setAttr(attrs, "trackingCode", n.TrackingCode)
	setAttr(attrs, "carrier", n.Carrier)

	result := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.NotificationDispatcher = (*PubSubDispatcher)(nil)
