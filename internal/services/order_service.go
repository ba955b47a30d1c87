package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/repositories"
)

const (
	orderIDPrefix         = "ord_"
	trackingEventIDPrefix = "trk_"

	defaultListLimit = 20
	maxListLimit     = 100
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located within the caller's scope.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates a status transition outside the state machine.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrPaymentNotConfirmed indicates production was requested before payment cleared.
	ErrPaymentNotConfirmed = errors.New("order: payment not confirmed")
	// ErrCheckoutInvalid indicates the checkout snapshot cannot produce a valid order.
	ErrCheckoutInvalid = errors.New("order: invalid checkout state")
	// ErrOrderNotCancellable indicates the order has progressed past the cancellable window.
	ErrOrderNotCancellable = errors.New("order: not cancellable")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Counters      repositories.CounterRepository
	UnitOfWork    repositories.UnitOfWork
	Payments      PaymentGateway
	Notifications NotificationDispatcher
	Tracking      CarrierTrackingProvider
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
	// NotificationRunner executes notification dispatch. Defaults to spawning
	// a goroutine; tests inject an inline runner for determinism.
	NotificationRunner func(fn func())
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	payments   PaymentGateway
	policy     notificationPolicy
	tracking   CarrierTrackingProvider
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
	runAsync   func(fn func())
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	runAsync := deps.NotificationRunner
	if runAsync == nil {
		runAsync = func(fn func()) {
			go fn()
		}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		unitOfWork: unit,
		payments:   deps.Payments,
		policy: notificationPolicy{
			dispatcher: deps.Notifications,
			logger:     logger,
		},
		tracking: deps.Tracking,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		logger:   logger,
		runAsync: runAsync,
	}, nil
}

func (s *orderService) CreateFromCheckout(ctx context.Context, cmd CreateOrderFromCheckoutCommand) (Order, error) {
	checkout := cmd.Checkout

	tenantID := strings.TrimSpace(checkout.TenantID)
	if tenantID == "" {
		return Order{}, fmt.Errorf("%w: tenant id is required", ErrOrderInvalidInput)
	}
	userID := strings.TrimSpace(checkout.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	currency := strings.TrimSpace(checkout.Currency)
	if currency == "" {
		return Order{}, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	if len(checkout.Items) == 0 {
		return Order{}, fmt.Errorf("%w: checkout must contain at least one item", ErrCheckoutInvalid)
	}
	for i, item := range checkout.Items {
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item %d has non-positive quantity", ErrCheckoutInvalid, i)
		}
		if item.UnitPrice < 0 {
			return Order{}, fmt.Errorf("%w: item %d has negative unit price", ErrCheckoutInvalid, i)
		}
	}
	if checkout.Summary.Total <= 0 {
		return Order{}, fmt.Errorf("%w: checkout total must be positive", ErrCheckoutInvalid)
	}
	if expected := checkout.Summary.Subtotal - checkout.Summary.Discounts + checkout.Summary.Taxes + checkout.Summary.Shipping; checkout.Summary.Total != expected {
		return Order{}, fmt.Errorf("%w: total %d does not match summary components %d", ErrCheckoutInvalid, checkout.Summary.Total, expected)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	order := Order{
		ID:               s.nextOrderID(),
		TenantID:         tenantID,
		UserID:           userID,
		Status:           domain.OrderStatusPending,
		PaymentStatus:    domain.PaymentStatusPending,
		ProductionStatus: domain.ProductionStatusNone,
		ShippingStatus:   domain.ShippingStatusPending,
		PaymentRef:       strings.TrimSpace(cmd.PaymentRef),
		Currency:         currency,
		Customer:         checkout.Customer,
		BillingAddress:   cloneAddress(checkout.BillingAddress),
		ShippingAddress:  cloneAddress(checkout.ShippingAddress),
		Items:            buildOrderItems(checkout.Items),
		Totals: OrderTotals{
			Subtotal:  checkout.Summary.Subtotal,
			Discounts: checkout.Summary.Discounts,
			Taxes:     checkout.Summary.Taxes,
			Shipping:  checkout.Summary.Shipping,
			Total:     checkout.Summary.Total,
		},
		Metadata:  cloneAndMergeMetadata(checkout.Metadata, cmd.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
		StatusHistory: []StatusHistoryEntry{{
			Status:    domain.OrderStatusPending,
			Notes:     "order created from checkout",
			ActorID:   actor,
			CreatedAt: now,
		}},
	}

	if checkoutID := strings.TrimSpace(checkout.ID); checkoutID != "" {
		order.Metadata = ensureMap(order.Metadata)
		order.Metadata["checkoutId"] = checkoutID
	}

	number, err := s.generateOrderNumber(ctx, tenantID, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	order.Version = 1

	s.logger(ctx, "order.created", map[string]any{
		"order":  order.ID,
		"number": order.OrderNumber,
		"tenant": order.TenantID,
		"total":  order.Totals.Total,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, ref OrderRef) (Order, error) {
	return s.findScoped(ctx, ref)
}

func (s *orderService) GetOrderByNumber(ctx context.Context, tenantID, orderNumber string) (Order, error) {
	tenantID = strings.TrimSpace(tenantID)
	orderNumber = strings.TrimSpace(orderNumber)
	if tenantID == "" || orderNumber == "" {
		return Order{}, fmt.Errorf("%w: tenant id and order number are required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByNumber(ctx, tenantID, orderNumber)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) (OrderList, error) {
	orders, err := s.listFiltered(ctx, query)
	if err != nil {
		return OrderList{}, err
	}

	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	total := len(orders)
	var page []Order
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = orders[offset:end]
	}

	return OrderList{
		Orders:  page,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+limit < total,
		Stats:   computeOrderStats(orders),
	}, nil
}

func (s *orderService) Stats(ctx context.Context, query OrderListQuery) (OrderStats, error) {
	orders, err := s.listFiltered(ctx, query)
	if err != nil {
		return OrderStats{}, err
	}
	return computeOrderStats(orders), nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	target := OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !domain.IsKnownStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	if err := s.applyStatusTransition(&order, target, cmd.ActorID, cmd.Notes, now); err != nil {
		return Order{}, err
	}

	return s.persist(ctx, order)
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error) {
	switch cmd.PaymentStatus {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
	default:
		return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, cmd.PaymentStatus)
	}

	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order.PaymentStatus = cmd.PaymentStatus
	order.UpdatedAt = now
	if ref := strings.TrimSpace(cmd.PaymentRef); ref != "" {
		order.PaymentRef = ref
	}

	switch cmd.PaymentStatus {
	case domain.PaymentStatusPaid:
		if order.PaidAt == nil {
			order.PaidAt = &now
		}
		if order.Status == domain.OrderStatusPending {
			if err := s.applyStatusTransition(&order, domain.OrderStatusPaid, cmd.ActorID, "payment confirmed", now); err != nil {
				return Order{}, err
			}
			order.ProductionStatus = domain.ProductionStatusQueued
		}
	case domain.PaymentStatusRefunded:
		// Refunds close the order from any state. This is the documented
		// override of the transition table: a refund can arrive after
		// production or shipping has started.
		if order.Status != domain.OrderStatusRefunded {
			s.forceStatus(&order, domain.OrderStatusRefunded, cmd.ActorID, "payment refunded", now)
		}
	}

	return s.persist(ctx, order)
}

func (s *orderService) StartProduction(ctx context.Context, cmd StartProductionCommand) (Order, error) {
	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	if order.PaymentStatus != domain.PaymentStatusPaid {
		return Order{}, fmt.Errorf("%w: payment status is %q", ErrPaymentNotConfirmed, order.PaymentStatus)
	}

	now := s.now()
	if err := s.applyStatusTransition(&order, domain.OrderStatusProduction, cmd.ActorID, "production started", now); err != nil {
		return Order{}, err
	}

	order.ProductionStatus = domain.ProductionStatusInProgress
	if order.Production == nil {
		order.Production = &ProductionData{}
	}
	if order.Production.StartedAt == nil {
		order.Production.StartedAt = &now
	}
	if station := strings.TrimSpace(cmd.Station); station != "" {
		order.Production.Station = station
	}
	for i := range order.Items {
		if order.Items[i].Status == domain.OrderItemStatusPending {
			order.Items[i].Status = domain.OrderItemStatusProduction
		}
	}

	return s.persist(ctx, order)
}

func (s *orderService) CompleteProduction(ctx context.Context, cmd CompleteProductionCommand) (Order, error) {
	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	if err := s.applyStatusTransition(&order, domain.OrderStatusReadyToShip, cmd.ActorID, "production completed", now); err != nil {
		return Order{}, err
	}

	order.ProductionStatus = domain.ProductionStatusCompleted
	if order.Production == nil {
		order.Production = &ProductionData{}
	}
	order.Production.CompletedAt = &now
	for _, file := range cmd.Files {
		kind := strings.TrimSpace(file.Kind)
		url := strings.TrimSpace(file.URL)
		if url == "" {
			continue
		}
		order.Production.Files = append(order.Production.Files, ProductionFile{
			ID:        fmt.Sprintf("pf_%02d", len(order.Production.Files)+1),
			Kind:      kind,
			URL:       url,
			CreatedAt: now,
		})
	}
	for i := range order.Items {
		if order.Items[i].Status == domain.OrderItemStatusProduction || order.Items[i].Status == domain.OrderItemStatusPending {
			order.Items[i].Status = domain.OrderItemStatusCompleted
		}
	}

	return s.persist(ctx, order)
}

func (s *orderService) AddTracking(ctx context.Context, cmd AddTrackingCommand) (Order, error) {
	trackingCode := strings.TrimSpace(cmd.TrackingCode)
	carrier := strings.TrimSpace(cmd.Carrier)
	if trackingCode == "" || carrier == "" {
		return Order{}, fmt.Errorf("%w: tracking code and carrier are required", ErrOrderInvalidInput)
	}

	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	if order.Shipping == nil {
		order.Shipping = &ShippingData{}
	}
	order.Shipping.TrackingCode = trackingCode
	order.Shipping.Carrier = carrier
	order.Shipping.Service = strings.TrimSpace(cmd.Service)
	if cmd.EstimatedDelivery != nil {
		estimate := cmd.EstimatedDelivery.UTC()
		order.Shipping.EstimatedDelivery = &estimate
	}

	// Seed the log so the derived shipping status has a first event even when
	// the carrier has not reported anything yet.
	seeded := s.appendTrackingEvent(&order, TrackingEvent{
		Status:      domain.ShippingStatusShipped,
		Description: "shipment registered with carrier",
		Timestamp:   now,
	}, now)

	if order.Status != domain.OrderStatusShipped {
		// Tracking registration is authoritative over the lifecycle position;
		// the parcel is with the carrier regardless of what the workshop says.
		s.forceStatus(&order, domain.OrderStatusShipped, cmd.ActorID, "tracking code added", now)
	} else {
		order.UpdatedAt = now
	}

	updated, err := s.persist(ctx, order)
	if err != nil {
		return Order{}, err
	}

	s.notifyTracking(ctx, updated, seeded)
	return updated, nil
}

func (s *orderService) UpdateTracking(ctx context.Context, cmd UpdateTrackingCommand) (Order, error) {
	switch cmd.Status {
	case domain.ShippingStatusShipped, domain.ShippingStatusInTransit, domain.ShippingStatusOutForDelivery, domain.ShippingStatusDelivered:
	default:
		return Order{}, fmt.Errorf("%w: unknown shipping status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	if order.Shipping == nil || order.Shipping.TrackingCode == "" {
		return Order{}, fmt.Errorf("%w: order has no tracking registered", ErrOrderInvalidInput)
	}

	now := s.now()
	timestamp := now
	if cmd.Timestamp != nil {
		timestamp = cmd.Timestamp.UTC()
	}

	event := s.appendTrackingEvent(&order, TrackingEvent{
		Status:      cmd.Status,
		Description: strings.TrimSpace(cmd.Description),
		Location:    strings.TrimSpace(cmd.Location),
		Timestamp:   timestamp,
	}, now)
	order.UpdatedAt = now

	if cmd.Status == domain.ShippingStatusDelivered && order.Status != domain.OrderStatusDelivered {
		s.forceStatus(&order, domain.OrderStatusDelivered, cmd.ActorID, "delivery confirmed by carrier", now)
	}

	updated, err := s.persist(ctx, order)
	if err != nil {
		return Order{}, err
	}

	s.notifyTracking(ctx, updated, event)
	return updated, nil
}

func (s *orderService) RefreshTracking(ctx context.Context, ref OrderRef) (Order, error) {
	if s.tracking == nil {
		return Order{}, errors.New("order: tracking provider not configured")
	}

	order, err := s.findScoped(ctx, ref)
	if err != nil {
		return Order{}, err
	}
	if order.Shipping == nil || order.Shipping.TrackingCode == "" {
		return Order{}, fmt.Errorf("%w: order has no tracking registered", ErrOrderInvalidInput)
	}

	result, err := s.tracking.FetchTracking(ctx, order.Shipping.Carrier, order.Shipping.TrackingCode)
	if err != nil {
		return Order{}, fmt.Errorf("order: carrier fetch failed: %w", err)
	}

	now := s.now()
	known := len(order.Shipping.TrackingEvents)
	var appended []TrackingEvent
	for i, event := range result.Events {
		if i < known {
			continue
		}
		appended = append(appended, s.appendTrackingEvent(&order, event, now))
	}
	if result.EstimatedDelivery != nil {
		estimate := result.EstimatedDelivery.UTC()
		order.Shipping.EstimatedDelivery = &estimate
	}

	if len(appended) == 0 {
		return order, nil
	}
	order.UpdatedAt = now

	if order.ShippingStatus == domain.ShippingStatusDelivered && order.Status != domain.OrderStatusDelivered {
		s.forceStatus(&order, domain.OrderStatusDelivered, "", "delivery confirmed by carrier", now)
	}

	updated, err := s.persist(ctx, order)
	if err != nil {
		return Order{}, err
	}

	s.notifyTracking(ctx, updated, appended...)
	return updated, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, UserID: cmd.UserID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	if !domain.CanCancel(order.Status) {
		return Order{}, fmt.Errorf("%w: order status is %q", ErrOrderNotCancellable, order.Status)
	}

	now := s.now()
	reason := strings.TrimSpace(cmd.Reason)
	if err := s.applyStatusTransition(&order, domain.OrderStatusCancelled, cmd.ActorID, reason, now); err != nil {
		return Order{}, err
	}
	order.CancelReason = optionalString(reason)
	for i := range order.Items {
		if order.Items[i].Status != domain.OrderItemStatusCompleted {
			order.Items[i].Status = domain.OrderItemStatusCancelled
		}
	}

	updated, err := s.persist(ctx, order)
	if err != nil {
		return Order{}, err
	}

	// The cancellation is authoritative; a gateway failure only delays the
	// refund, which the payment webhook reconciles later.
	if updated.PaymentStatus == domain.PaymentStatusPaid && s.payments != nil && updated.PaymentRef != "" {
		if err := s.payments.CancelPayment(ctx, updated.PaymentRef, reason); err != nil {
			s.logger(ctx, "order.payment.cancel.failed", map[string]any{
				"order":   updated.ID,
				"payment": updated.PaymentRef,
				"error":   err.Error(),
			})
		}
	}

	return updated, nil
}

func (s *orderService) MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Order, error) {
	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	notes := strings.TrimSpace(cmd.Notes)
	if notes == "" {
		notes = "delivery confirmed"
	}
	if err := s.applyStatusTransition(&order, domain.OrderStatusDelivered, cmd.ActorID, notes, now); err != nil {
		return Order{}, err
	}
	if order.Shipping != nil && len(order.Shipping.TrackingEvents) > 0 {
		// Record the manual confirmation in the log so the derived shipping
		// status still matches the last-appended event.
		s.appendTrackingEvent(&order, TrackingEvent{
			Status:      domain.ShippingStatusDelivered,
			Description: notes,
			Timestamp:   now,
		}, now)
	} else {
		order.ShippingStatus = domain.ShippingStatusDelivered
	}

	return s.persist(ctx, order)
}

func (s *orderService) Complete(ctx context.Context, cmd CompleteOrderCommand) (Order, error) {
	order, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	notes := strings.TrimSpace(cmd.Notes)
	if notes == "" {
		notes = "order completed"
	}
	if err := s.applyStatusTransition(&order, domain.OrderStatusCompleted, cmd.ActorID, notes, now); err != nil {
		return Order{}, err
	}

	return s.persist(ctx, order)
}

func (s *orderService) Reorder(ctx context.Context, cmd ReorderCommand) (Order, error) {
	source, err := s.findScoped(ctx, OrderRef{TenantID: cmd.TenantID, UserID: cmd.UserID, OrderID: cmd.OrderID})
	if err != nil {
		return Order{}, err
	}

	if !domain.CanReorder(source.Status) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, source.Status, domain.OrderStatusPending)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	reorder := Order{
		ID:               s.nextOrderID(),
		TenantID:         source.TenantID,
		UserID:           source.UserID,
		Status:           domain.OrderStatusPending,
		PaymentStatus:    domain.PaymentStatusPending,
		ProductionStatus: domain.ProductionStatusNone,
		ShippingStatus:   domain.ShippingStatusPending,
		Currency:         source.Currency,
		Customer:         source.Customer,
		BillingAddress:   cloneAddress(source.BillingAddress),
		ShippingAddress:  cloneAddress(source.ShippingAddress),
		Items:            cloneItemsForReorder(source.Items),
		Totals:           source.Totals,
		Metadata: map[string]any{
			"reorderOf":                source.ID,
			"reorderSourceOrderNumber": source.OrderNumber,
		},
		CreatedAt: now,
		UpdatedAt: now,
		StatusHistory: []StatusHistoryEntry{{
			Status:    domain.OrderStatusPending,
			Notes:     "reorder of " + source.OrderNumber,
			ActorID:   actor,
			CreatedAt: now,
		}},
	}

	number, err := s.generateOrderNumber(ctx, reorder.TenantID, now)
	if err != nil {
		return Order{}, err
	}
	reorder.OrderNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, reorder); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	reorder.Version = 1

	s.logger(ctx, "order.reordered", map[string]any{
		"order":  reorder.ID,
		"source": source.ID,
		"tenant": reorder.TenantID,
	})

	return reorder, nil
}

func (s *orderService) Timeline(ctx context.Context, ref OrderRef) ([]TimelineEvent, error) {
	order, err := s.findScoped(ctx, ref)
	if err != nil {
		return nil, err
	}
	return BuildOrderTimeline(order), nil
}

// findScoped loads an order within the tenant and, when ref.UserID is set,
// hides orders owned by other users behind a not-found error.
func (s *orderService) findScoped(ctx context.Context, ref OrderRef) (Order, error) {
	tenantID := strings.TrimSpace(ref.TenantID)
	orderID := strings.TrimSpace(ref.OrderID)
	if tenantID == "" {
		return Order{}, fmt.Errorf("%w: tenant id is required", ErrOrderInvalidInput)
	}
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if userID := strings.TrimSpace(ref.UserID); userID != "" && order.UserID != userID {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) listFiltered(ctx context.Context, query OrderListQuery) ([]Order, error) {
	tenantID := strings.TrimSpace(query.TenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrOrderInvalidInput)
	}

	filter := repositories.OrderListFilter{
		TenantID:      tenantID,
		UserID:        strings.TrimSpace(query.UserID),
		Status:        query.Status,
		PaymentStatus: query.PaymentStatus,
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
	}
	filter.DateRange.From = query.DateFrom
	filter.DateRange.To = query.DateTo

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// persist writes the order through the unit of work and returns the stored
// copy with its bumped version.
func (s *orderService) persist(ctx context.Context, order Order) (Order, error) {
	var stored Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		updated, err := s.orders.Update(txCtx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		stored = updated
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return stored, nil
}

func (s *orderService) applyStatusTransition(order *Order, target OrderStatus, actor, notes string, now time.Time) error {
	if !domain.CanTransition(order.Status, target) {
		return fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, target)
	}
	s.forceStatus(order, target, actor, notes, now)
	return nil
}

// forceStatus moves the main axis without consulting the transition table.
// Callers outside the refund and carrier overrides must go through
// applyStatusTransition.
func (s *orderService) forceStatus(order *Order, target OrderStatus, actor, notes string, now time.Time) {
	order.Status = target
	order.UpdatedAt = now
	s.updateTimestamps(order, target, now)
	order.StatusHistory = append(order.StatusHistory, StatusHistoryEntry{
		Status:    target,
		Notes:     notes,
		ActorID:   strings.TrimSpace(actor),
		CreatedAt: now,
	})
}

func (s *orderService) updateTimestamps(order *Order, status OrderStatus, now time.Time) {
	switch status {
	case domain.OrderStatusPaid:
		if order.PaidAt == nil {
			order.PaidAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case domain.OrderStatusCompleted:
		order.CompletedAt = &now
	case domain.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	}
}

// appendTrackingEvent appends to the log and re-derives the shipping status
// from the appended event. Event IDs are sequential within the order.
func (s *orderService) appendTrackingEvent(order *Order, event TrackingEvent, now time.Time) TrackingEvent {
	if order.Shipping == nil {
		order.Shipping = &ShippingData{}
	}
	event.ID = fmt.Sprintf("%s%d", trackingEventIDPrefix, len(order.Shipping.TrackingEvents)+1)
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}
	event.RecordedAt = now
	order.Shipping.TrackingEvents = append(order.Shipping.TrackingEvents, event)
	order.ShippingStatus = event.Status
	return event
}

func (s *orderService) notifyTracking(ctx context.Context, order Order, events ...TrackingEvent) {
	if len(events) == 0 || !s.policy.enabled() {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.runAsync(func() {
		for _, event := range events {
			s.policy.Notify(detached, order, event)
		}
	})
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, tenantID string, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders-"+tenantID, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PB-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func computeOrderStats(orders []Order) OrderStats {
	stats := OrderStats{
		Count:    len(orders),
		ByStatus: make(map[OrderStatus]int),
	}
	for _, order := range orders {
		stats.TotalSpend += order.Totals.Total
		stats.ByStatus[order.Status]++
	}
	if stats.Count > 0 {
		stats.AverageSpend = stats.TotalSpend / int64(stats.Count)
	}
	return stats
}

func buildOrderItems(items []CheckoutItem) []OrderItem {
	built := make([]OrderItem, 0, len(items))
	for i, item := range items {
		built = append(built, OrderItem{
			ID:         fmt.Sprintf("itm_%03d", i+1),
			ProductRef: strings.TrimSpace(item.ProductRef),
			SKU:        strings.TrimSpace(item.SKU),
			Name:       strings.TrimSpace(item.Name),
			Options:    cloneMap(item.Options),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.UnitPrice * int64(item.Quantity),
			Status:     domain.OrderItemStatusPending,
		})
	}
	return built
}

func cloneItemsForReorder(items []OrderItem) []OrderItem {
	cloned := make([]OrderItem, len(items))
	for i, item := range items {
		cloned[i] = OrderItem{
			ID:         fmt.Sprintf("itm_%03d", i+1),
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			Name:       item.Name,
			Options:    cloneMap(item.Options),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
			Status:     domain.OrderItemStatusPending,
		}
	}
	return cloned
}

func cloneAddress(addr *Address) *Address {
	if addr == nil {
		return nil
	}
	cloned := *addr
	return &cloned
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func cloneAndMergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	if base == nil && extra == nil {
		return nil
	}
	result := cloneMap(base)
	if len(extra) == 0 {
		return result
	}
	if result == nil {
		result = map[string]any{}
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}
