package services

import (
	"context"
	"time"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order                 = domain.Order
	OrderItem             = domain.OrderItem
	OrderTotals           = domain.OrderTotals
	OrderStatus           = domain.OrderStatus
	PaymentStatus         = domain.PaymentStatus
	ProductionStatus      = domain.ProductionStatus
	ShippingStatus        = domain.ShippingStatus
	ShippingData          = domain.ShippingData
	ProductionData        = domain.ProductionData
	ProductionFile        = domain.ProductionFile
	TrackingEvent         = domain.TrackingEvent
	TimelineEvent         = domain.TimelineEvent
	StatusHistoryEntry    = domain.StatusHistoryEntry
	CustomerSnapshot      = domain.CustomerSnapshot
	Address               = domain.Address
	CheckoutSession       = domain.CheckoutSession
	CheckoutItem          = domain.CheckoutItem
	CheckoutSummary       = domain.CheckoutSummary
	CarrierTrackingResult = domain.CarrierTrackingResult
	SystemHealthReport    = domain.SystemHealthReport
	OrderSort             = domain.OrderSort
	SortOrder             = domain.SortOrder
)

// OrderService orchestrates the order lifecycle from checkout confirmation
// through production, shipping, and delivery.
type OrderService interface {
	CreateFromCheckout(ctx context.Context, cmd CreateOrderFromCheckoutCommand) (Order, error)
	GetOrder(ctx context.Context, ref OrderRef) (Order, error)
	GetOrderByNumber(ctx context.Context, tenantID, orderNumber string) (Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) (OrderList, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error)
	StartProduction(ctx context.Context, cmd StartProductionCommand) (Order, error)
	CompleteProduction(ctx context.Context, cmd CompleteProductionCommand) (Order, error)
	AddTracking(ctx context.Context, cmd AddTrackingCommand) (Order, error)
	UpdateTracking(ctx context.Context, cmd UpdateTrackingCommand) (Order, error)
	RefreshTracking(ctx context.Context, ref OrderRef) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Order, error)
	Complete(ctx context.Context, cmd CompleteOrderCommand) (Order, error)
	Reorder(ctx context.Context, cmd ReorderCommand) (Order, error)
	Stats(ctx context.Context, query OrderListQuery) (OrderStats, error)
	Timeline(ctx context.Context, ref OrderRef) ([]TimelineEvent, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// PaymentGateway cancels or refunds a payment held by the PSP. Failures during
// order cancellation are logged and swallowed; the cancellation stands.
type PaymentGateway interface {
	CancelPayment(ctx context.Context, paymentRef string, reason string) error
}

// NotificationDispatcher delivers customer-facing shipping notifications.
type NotificationDispatcher interface {
	SendShipped(ctx context.Context, notification OrderNotification) error
	SendTrackingUpdate(ctx context.Context, notification OrderNotification) error
	SendOutForDelivery(ctx context.Context, notification OrderNotification) error
	SendDelivered(ctx context.Context, notification OrderNotification) error
}

// CarrierTrackingProvider fetches live tracking data from a carrier and
// normalises it into tracking events.
type CarrierTrackingProvider interface {
	FetchTracking(ctx context.Context, carrier, trackingCode string) (CarrierTrackingResult, error)
}

// OrderNotification is the payload handed to the dispatcher.
type OrderNotification struct {
	OrderID       string
	OrderNumber   string
	TenantID      string
	UserID        string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	TrackingCode  string
	Carrier       string
	Status        ShippingStatus
	Description   string
	Location      string
	OccurredAt    time.Time
}

// Command and DTO definitions ------------------------------------------------

// OrderRef scopes an order lookup. UserID is empty for staff access; when set,
// orders owned by other users behave as missing.
type OrderRef struct {
	TenantID string
	UserID   string
	OrderID  string
}

type CreateOrderFromCheckoutCommand struct {
	Checkout   CheckoutSession
	PaymentRef string
	ActorID    string
	Metadata   map[string]any
}

type UpdateOrderStatusCommand struct {
	TenantID     string
	OrderID      string
	TargetStatus OrderStatus
	Notes        string
	ActorID      string
}

type UpdatePaymentStatusCommand struct {
	TenantID      string
	OrderID       string
	PaymentStatus PaymentStatus
	PaymentRef    string
	ActorID       string
}

type StartProductionCommand struct {
	TenantID string
	OrderID  string
	Station  string
	ActorID  string
}

type CompleteProductionCommand struct {
	TenantID string
	OrderID  string
	Files    []ProductionFileInput
	ActorID  string
}

// ProductionFileInput describes a generated print artifact to attach.
type ProductionFileInput struct {
	Kind string
	URL  string
}

type AddTrackingCommand struct {
	TenantID          string
	OrderID           string
	TrackingCode      string
	Carrier           string
	Service           string
	EstimatedDelivery *time.Time
	ActorID           string
}

type UpdateTrackingCommand struct {
	TenantID    string
	OrderID     string
	Status      ShippingStatus
	Description string
	Location    string
	Timestamp   *time.Time
	ActorID     string
}

type CancelOrderCommand struct {
	TenantID string
	UserID   string
	OrderID  string
	Reason   string
	ActorID  string
}

type MarkDeliveredCommand struct {
	TenantID string
	OrderID  string
	Notes    string
	ActorID  string
}

type CompleteOrderCommand struct {
	TenantID string
	OrderID  string
	Notes    string
	ActorID  string
}

type ReorderCommand struct {
	TenantID string
	UserID   string
	OrderID  string
	ActorID  string
}

// OrderListQuery filters, sorts, and paginates order listings. A zero Limit
// falls back to the service default.
type OrderListQuery struct {
	TenantID      string
	UserID        string
	Status        []OrderStatus
	PaymentStatus []PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	SortBy        OrderSort
	SortOrder     SortOrder
	Offset        int
	Limit         int
}

// OrderList is one page of orders plus aggregates computed over the whole
// filtered set, not just the page.
type OrderList struct {
	Orders  []Order
	Total   int
	Offset  int
	Limit   int
	HasMore bool
	Stats   OrderStats
}

// OrderStats aggregates the filtered set before pagination. Monetary values
// are integer minor units in the orders' currency.
type OrderStats struct {
	Count        int
	TotalSpend   int64
	AverageSpend int64
	ByStatus     map[OrderStatus]int
}

// OrderListFilter re-exports the repository filter for handler wiring.
type OrderListFilter = repositories.OrderListFilter
