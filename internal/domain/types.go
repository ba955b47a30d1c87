package domain

import (
	"time"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// OrderSort indicates the field used to order listings.
type OrderSort string

const (
	// OrderSortDate sorts orders by creation time.
	OrderSortDate OrderSort = "date"
	// OrderSortAmount sorts orders by total amount.
	OrderSortAmount OrderSort = "amount"
	// OrderSortStatus sorts orders lexicographically by status.
	OrderSortStatus OrderSort = "status"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates payment succeeded and production can begin.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusProduction indicates the photobook is actively being printed and bound.
	OrderStatusProduction OrderStatus = "production"
	// OrderStatusQualityCheck indicates the printed book is under inspection.
	OrderStatusQualityCheck OrderStatus = "quality_check"
	// OrderStatusReadyToShip indicates production is complete and the order awaits carrier handoff.
	OrderStatusReadyToShip OrderStatus = "ready_to_ship"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order has been delivered to the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCompleted indicates the order has been completed (post-delivery confirmation).
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order has been cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates payment was returned and the order is closed.
	OrderStatusRefunded OrderStatus = "refunded"
)

// PaymentStatus tracks the payment axis independently from the main order status.
type PaymentStatus string

const (
	// PaymentStatusPending indicates payment has not been confirmed yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates the payment was captured.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the payment attempt failed.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the payment was returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ProductionStatus tracks the print workshop axis.
type ProductionStatus string

const (
	// ProductionStatusNone indicates production has not been scheduled.
	ProductionStatusNone ProductionStatus = ""
	// ProductionStatusQueued indicates the order is waiting for a print slot.
	ProductionStatusQueued ProductionStatus = "queued"
	// ProductionStatusInProgress indicates printing/binding is underway.
	ProductionStatusInProgress ProductionStatus = "in_progress"
	// ProductionStatusCompleted indicates production finished.
	ProductionStatusCompleted ProductionStatus = "completed"
)

// ShippingStatus tracks the carrier axis, derived from the tracking event log.
type ShippingStatus string

const (
	// ShippingStatusPending indicates no tracking information exists yet.
	ShippingStatusPending ShippingStatus = "pending"
	// ShippingStatusShipped indicates the parcel was posted.
	ShippingStatusShipped ShippingStatus = "shipped"
	// ShippingStatusInTransit indicates the parcel is moving through the carrier network.
	ShippingStatusInTransit ShippingStatus = "in_transit"
	// ShippingStatusOutForDelivery indicates the parcel is on the last-mile vehicle.
	ShippingStatusOutForDelivery ShippingStatus = "out_for_delivery"
	// ShippingStatusDelivered indicates the carrier confirmed delivery.
	ShippingStatusDelivered ShippingStatus = "delivered"
)

// OrderItemStatus enumerates per-item states driven by the parent order lifecycle.
type OrderItemStatus string

const (
	// OrderItemStatusPending indicates the item awaits production.
	OrderItemStatusPending OrderItemStatus = "pending"
	// OrderItemStatusProduction indicates the item is being produced.
	OrderItemStatusProduction OrderItemStatus = "production"
	// OrderItemStatusCompleted indicates the item finished production.
	OrderItemStatusCompleted OrderItemStatus = "completed"
	// OrderItemStatusCancelled indicates the item was cancelled with the order.
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

// Order is the aggregate root for the photobook order lifecycle.
type Order struct {
	ID               string
	OrderNumber      string
	TenantID         string
	UserID           string
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	ProductionStatus ProductionStatus
	ShippingStatus   ShippingStatus
	PaymentRef       string
	Currency         string
	Customer         CustomerSnapshot
	BillingAddress   *Address
	ShippingAddress  *Address
	Items            []OrderItem
	Totals           OrderTotals
	Production       *ProductionData
	Shipping         *ShippingData
	StatusHistory    []StatusHistoryEntry
	Metadata         map[string]any
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
	DeliveredAt      *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     *string
}

// CustomerSnapshot freezes the customer's contact data at order creation so
// historical orders stay consistent when the profile changes later.
type CustomerSnapshot struct {
	Name     string
	Email    string
	Phone    string
	Document string
}

// OrderTotals holds monetary fields in the smallest currency unit, fixed at
// creation from the checkout summary and never recomputed afterwards.
type OrderTotals struct {
	Subtotal  int64
	Discounts int64
	Taxes     int64
	Shipping  int64
	Total     int64
}

// OrderItem mirrors checkout line items at the time of order creation.
type OrderItem struct {
	ID         string
	ProductRef string
	SKU        string
	Name       string
	Options    map[string]any
	Quantity   int
	UnitPrice  int64
	Total      int64
	Status     OrderItemStatus
}

// Address represents postal address structures shared by checkout and order layers.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// ProductionData records print workshop progress for an order.
type ProductionData struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	Station     string
	Notes       string
	Files       []ProductionFile
}

// ProductionFile references a generated print artifact (imposition PDF, cover proof).
type ProductionFile struct {
	ID        string
	Kind      string
	URL       string
	CreatedAt time.Time
}

// ShippingData is created when a tracking code is first attached and owns the
// append-only tracking event log.
type ShippingData struct {
	TrackingCode      string
	Carrier           string
	Service           string
	EstimatedDelivery *time.Time
	TrackingEvents    []TrackingEvent
}

// TrackingEvent is an immutable carrier milestone. Events are only ever
// appended; the current shipping status is the status of the last-appended
// event, not the one with the greatest timestamp.
type TrackingEvent struct {
	ID          string
	Status      ShippingStatus
	Description string
	Location    string
	Timestamp   time.Time
	RecordedAt  time.Time
}

// StatusHistoryEntry records an audit note for a status transition.
type StatusHistoryEntry struct {
	Status    OrderStatus
	Notes     string
	ActorID   string
	CreatedAt time.Time
}

// TimelineEvent is a customer-facing projection entry, distinct from the
// append-only tracking log.
type TimelineEvent struct {
	Type        string
	Title       string
	Description string
	Status      string
	Timestamp   time.Time
}

// CheckoutSession carries the confirmed checkout snapshot an order is created from.
type CheckoutSession struct {
	ID              string
	TenantID        string
	UserID          string
	Currency        string
	Customer        CustomerSnapshot
	BillingAddress  *Address
	ShippingAddress *Address
	Items           []CheckoutItem
	Summary         CheckoutSummary
	Metadata        map[string]any
}

// CheckoutItem is a confirmed line item copied 1:1 into an OrderItem.
type CheckoutItem struct {
	ProductRef string
	SKU        string
	Name       string
	Options    map[string]any
	Quantity   int
	UnitPrice  int64
}

// CheckoutSummary rolls up the totals computed by the checkout flow.
type CheckoutSummary struct {
	Subtotal  int64
	Discounts int64
	Taxes     int64
	Shipping  int64
	Total     int64
}

// CarrierTrackingResult normalises a raw carrier response.
type CarrierTrackingResult struct {
	Events            []TrackingEvent
	EstimatedDelivery *time.Time
	CurrentStatus     ShippingStatus
	LastUpdate        *time.Time
}

// SystemHealthReport summarises downstream dependency status for health endpoints.
type SystemHealthReport struct {
	Components map[string]ComponentHealth
	CheckedAt  time.Time
}

// ComponentHealth reports one dependency's availability.
type ComponentHealth struct {
	Healthy bool
	Detail  string
}
