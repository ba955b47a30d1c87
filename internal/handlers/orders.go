package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/platform/auth"
	"github.com/printbound/api/internal/platform/httpx"
	"github.com/printbound/api/internal/platform/requestctx"
	"github.com/printbound/api/internal/services"
)

const (
	defaultRefreshLimit  = 6
	defaultRefreshWindow = time.Minute
)

var validPaymentStatuses = map[domain.PaymentStatus]struct{}{
	domain.PaymentStatusPending:  {},
	domain.PaymentStatusPaid:     {},
	domain.PaymentStatusFailed:   {},
	domain.PaymentStatusRefunded: {},
}

var validShippingStatuses = map[domain.ShippingStatus]struct{}{
	domain.ShippingStatusShipped:        {},
	domain.ShippingStatusInTransit:      {},
	domain.ShippingStatusOutForDelivery: {},
	domain.ShippingStatusDelivered:      {},
}

// OrderHandlers exposes the order lifecycle endpoints. Customers reach the
// read, cancel, and reorder routes; everything that advances the lifecycle is
// staff only.
type OrderHandlers struct {
	orders  services.OrderService
	refresh rateLimiter
}

// OrderOption customises the handlers.
type OrderOption func(*OrderHandlers)

// WithRefreshLimiter throttles carrier refresh polls per order.
func WithRefreshLimiter(limit int, window time.Duration, clock func() time.Time) OrderOption {
	return func(h *OrderHandlers) {
		h.refresh = newSimpleRateLimiter(limit, window, clock)
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:  orders,
		refresh: newSimpleRateLimiter(defaultRefreshLimit, defaultRefreshWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Get("/", h.listOrders)
	r.Get("/stats", h.getOrderStats)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/timeline", h.getTimeline)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.With(auth.RequireUser()).Post("/{orderID}:reorder", h.reorderOrder)

	r.Group(func(staff chi.Router) {
		staff.Use(auth.RequireStaff())
		staff.Post("/", h.createOrder)
		staff.Get("/number/{orderNumber}", h.getOrderByNumber)
		staff.Post("/{orderID}:status", h.updateStatus)
		staff.Post("/{orderID}:payment", h.updatePaymentStatus)
		staff.Post("/{orderID}:deliver", h.markDelivered)
		staff.Post("/{orderID}:complete", h.completeOrder)
		staff.Post("/{orderID}/production:start", h.startProduction)
		staff.Post("/{orderID}/production:complete", h.completeProduction)
		staff.Post("/{orderID}/tracking", h.addTracking)
		staff.Post("/{orderID}/tracking:update", h.updateTracking)
		staff.Post("/{orderID}/tracking:refresh", h.refreshTracking)
	})
}

func (h *OrderHandlers) requireActor(w http.ResponseWriter, r *http.Request) (requestctx.Actor, bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return requestctx.Actor{}, false
	}
	actor, ok := requestctx.ActorFromContext(ctx)
	if !ok || actor.TenantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return requestctx.Actor{}, false
	}
	return actor, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

// scopeUserID narrows reads to the caller's own orders. Staff actors see the
// whole tenant.
func scopeUserID(actor requestctx.Actor) string {
	if actor.Staff {
		return ""
	}
	return actor.UserID
}

func actorID(actor requestctx.Actor) string {
	if actor.UserID != "" {
		return actor.UserID
	}
	if actor.Staff {
		return "staff"
	}
	return ""
}

// ----- create -----

type createOrderRequest struct {
	Checkout   checkoutRequest `json:"checkout"`
	PaymentRef string          `json:"payment_ref"`
	Metadata   map[string]any  `json:"metadata"`
}

type checkoutRequest struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Currency        string                `json:"currency"`
	Customer        customerRequest       `json:"customer"`
	BillingAddress  *addressPayload       `json:"billing_address"`
	ShippingAddress *addressPayload       `json:"shipping_address"`
	Items           []checkoutItemRequest `json:"items"`
	Summary         totalsPayload         `json:"summary"`
	Metadata        map[string]any        `json:"metadata"`
}

type customerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

type checkoutItemRequest struct {
	ProductRef string         `json:"product_ref"`
	SKU        string         `json:"sku"`
	Name       string         `json:"name"`
	Options    map[string]any `json:"options"`
	Quantity   int            `json:"quantity"`
	UnitPrice  int64          `json:"unit_price"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	checkout := domain.CheckoutSession{
		ID:       strings.TrimSpace(req.Checkout.ID),
		TenantID: actor.TenantID,
		UserID:   strings.TrimSpace(req.Checkout.UserID),
		Currency: strings.TrimSpace(req.Checkout.Currency),
		Customer: domain.CustomerSnapshot{
			Name:     strings.TrimSpace(req.Checkout.Customer.Name),
			Email:    strings.TrimSpace(req.Checkout.Customer.Email),
			Phone:    strings.TrimSpace(req.Checkout.Customer.Phone),
			Document: strings.TrimSpace(req.Checkout.Customer.Document),
		},
		BillingAddress:  decodeAddressPayload(req.Checkout.BillingAddress),
		ShippingAddress: decodeAddressPayload(req.Checkout.ShippingAddress),
		Summary: domain.CheckoutSummary{
			Subtotal:  req.Checkout.Summary.Subtotal,
			Discounts: req.Checkout.Summary.Discounts,
			Taxes:     req.Checkout.Summary.Taxes,
			Shipping:  req.Checkout.Summary.Shipping,
			Total:     req.Checkout.Summary.Total,
		},
		Metadata: cloneMap(req.Checkout.Metadata),
	}
	for _, item := range req.Checkout.Items {
		checkout.Items = append(checkout.Items, domain.CheckoutItem{
			ProductRef: strings.TrimSpace(item.ProductRef),
			SKU:        strings.TrimSpace(item.SKU),
			Name:       strings.TrimSpace(item.Name),
			Options:    cloneMap(item.Options),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	order, err := h.orders.CreateFromCheckout(ctx, services.CreateOrderFromCheckoutCommand{
		Checkout:   checkout,
		PaymentRef: strings.TrimSpace(req.PaymentRef),
		ActorID:    actorID(actor),
		Metadata:   cloneMap(req.Metadata),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

// ----- reads -----

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.OrderRef{
		TenantID: actor.TenantID,
		UserID:   scopeUserID(actor),
		OrderID:  orderID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	if orderNumber == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order number is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrderByNumber(ctx, actor.TenantID, orderNumber)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	events, err := h.orders.Timeline(ctx, services.OrderRef{
		TenantID: actor.TenantID,
		UserID:   scopeUserID(actor),
		OrderID:  orderID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]timelineEventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, timelineEventPayload{
			Type:        event.Type,
			Title:       event.Title,
			Description: event.Description,
			Status:      event.Status,
			Timestamp:   formatTime(event.Timestamp),
		})
	}
	writeJSONResponse(w, http.StatusOK, timelineResponse{Events: payload})
}

// parseListQuery builds the scoped filter shared by the list and stats
// endpoints. Offset and limit are parsed by the list endpoint alone.
func parseListQuery(w http.ResponseWriter, r *http.Request, actor requestctx.Actor) (services.OrderListQuery, bool) {
	ctx := r.Context()
	query := r.URL.Query()

	listQuery := services.OrderListQuery{
		TenantID: actor.TenantID,
		UserID:   scopeUserID(actor),
	}
	if actor.Staff {
		listQuery.UserID = strings.TrimSpace(query.Get("user_id"))
	}

	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.OrderStatus(strings.ToLower(raw))
		if !domain.IsKnownStatus(status) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status filter contains an unknown status", http.StatusBadRequest))
			return services.OrderListQuery{}, false
		}
		listQuery.Status = append(listQuery.Status, status)
	}

	for _, raw := range parseFilterValues(query["payment_status"]) {
		status := domain.PaymentStatus(strings.ToLower(raw))
		if _, ok := validPaymentStatuses[status]; !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_status filter contains an unknown status", http.StatusBadRequest))
			return services.OrderListQuery{}, false
		}
		listQuery.PaymentStatus = append(listQuery.PaymentStatus, status)
	}

	if raw := strings.TrimSpace(query.Get("date_from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_from must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return services.OrderListQuery{}, false
		}
		listQuery.DateFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("date_to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date_to must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return services.OrderListQuery{}, false
		}
		listQuery.DateTo = &ts
	}

	switch sortBy := strings.TrimSpace(query.Get("sort_by")); sortBy {
	case "", "date":
		listQuery.SortBy = domain.OrderSortDate
	case "amount":
		listQuery.SortBy = domain.OrderSortAmount
	case "status":
		listQuery.SortBy = domain.OrderSortStatus
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sort_by must be one of date, amount, status", http.StatusBadRequest))
		return services.OrderListQuery{}, false
	}

	switch order := strings.TrimSpace(query.Get("sort_order")); order {
	case "", "desc":
		listQuery.SortOrder = domain.SortDesc
	case "asc":
		listQuery.SortOrder = domain.SortAsc
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sort_order must be asc or desc", http.StatusBadRequest))
		return services.OrderListQuery{}, false
	}

	return listQuery, true
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	listQuery, ok := parseListQuery(w, r, actor)
	if !ok {
		return
	}

	query := r.URL.Query()
	var err error
	if listQuery.Offset, err = parseIntParam(query.Get("offset")); err != nil || listQuery.Offset < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "offset must be a non-negative integer", http.StatusBadRequest))
		return
	}
	if listQuery.Limit, err = parseIntParam(query.Get("limit")); err != nil || listQuery.Limit < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, listQuery)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Orders))
	for _, order := range page.Orders {
		items = append(items, buildOrderSummary(order))
	}

	byStatus := make(map[string]int, len(page.Stats.ByStatus))
	for status, count := range page.Stats.ByStatus {
		byStatus[string(status)] = count
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:   items,
		Total:   page.Total,
		Offset:  page.Offset,
		Limit:   page.Limit,
		HasMore: page.HasMore,
		Stats: orderStatsPayload{
			Count:        page.Stats.Count,
			TotalSpend:   page.Stats.TotalSpend,
			AverageSpend: page.Stats.AverageSpend,
			ByStatus:     byStatus,
		},
	})
}

func (h *OrderHandlers) getOrderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	listQuery, ok := parseListQuery(w, r, actor)
	if !ok {
		return
	}

	stats, err := h.orders.Stats(ctx, listQuery)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"stats": orderStatsPayload{
			Count:        stats.Count,
			TotalSpend:   stats.TotalSpend,
			AverageSpend: stats.AverageSpend,
			ByStatus:     byStatus,
		},
	})
}

// ----- lifecycle -----

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !domain.IsKnownStatus(target) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		TenantID:     actor.TenantID,
		OrderID:      orderID,
		TargetStatus: target,
		Notes:        strings.TrimSpace(req.Notes),
		ActorID:      actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
	PaymentRef    string `json:"payment_ref"`
}

func (h *OrderHandlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updatePaymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
	if _, ok := validPaymentStatuses[status]; !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_status must be a valid payment status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdatePaymentStatus(ctx, services.UpdatePaymentStatusCommand{
		TenantID:      actor.TenantID,
		OrderID:       orderID,
		PaymentStatus: status,
		PaymentRef:    strings.TrimSpace(req.PaymentRef),
		ActorID:       actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type startProductionRequest struct {
	Station string `json:"station"`
}

func (h *OrderHandlers) startProduction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req startProductionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.StartProduction(ctx, services.StartProductionCommand{
		TenantID: actor.TenantID,
		OrderID:  orderID,
		Station:  strings.TrimSpace(req.Station),
		ActorID:  actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type completeProductionRequest struct {
	Files []productionFileRequest `json:"files"`
}

type productionFileRequest struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

func (h *OrderHandlers) completeProduction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req completeProductionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	files := make([]services.ProductionFileInput, 0, len(req.Files))
	for _, file := range req.Files {
		files = append(files, services.ProductionFileInput{
			Kind: strings.TrimSpace(file.Kind),
			URL:  strings.TrimSpace(file.URL),
		})
	}

	order, err := h.orders.CompleteProduction(ctx, services.CompleteProductionCommand{
		TenantID: actor.TenantID,
		OrderID:  orderID,
		Files:    files,
		ActorID:  actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// ----- tracking -----

type addTrackingRequest struct {
	TrackingCode      string `json:"tracking_code"`
	Carrier           string `json:"carrier"`
	Service           string `json:"service"`
	EstimatedDelivery string `json:"estimated_delivery"`
}

func (h *OrderHandlers) addTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req addTrackingRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.AddTrackingCommand{
		TenantID:     actor.TenantID,
		OrderID:      orderID,
		TrackingCode: strings.TrimSpace(req.TrackingCode),
		Carrier:      strings.TrimSpace(req.Carrier),
		Service:      strings.TrimSpace(req.Service),
		ActorID:      actorID(actor),
	}
	if raw := strings.TrimSpace(req.EstimatedDelivery); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "estimated_delivery must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.EstimatedDelivery = &ts
	}

	order, err := h.orders.AddTracking(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type updateTrackingRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Timestamp   string `json:"timestamp"`
}

func (h *OrderHandlers) updateTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateTrackingRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	status := domain.ShippingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if _, ok := validShippingStatuses[status]; !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid shipping status", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateTrackingCommand{
		TenantID:    actor.TenantID,
		OrderID:     orderID,
		Status:      status,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		ActorID:     actorID(actor),
	}
	if raw := strings.TrimSpace(req.Timestamp); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "timestamp must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.Timestamp = &ts
	}

	order, err := h.orders.UpdateTracking(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) refreshTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if h.refresh != nil && !h.refresh.Allow(actor.TenantID+"/"+orderID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "tracking refresh limit reached, try again shortly", http.StatusTooManyRequests))
		return
	}

	order, err := h.orders.RefreshTracking(ctx, services.OrderRef{
		TenantID: actor.TenantID,
		OrderID:  orderID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// ----- cancel / reorder / completion -----

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	if !actor.Staff && actor.UserID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "user identity required", http.StatusUnauthorized))
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		TenantID: actor.TenantID,
		UserID:   scopeUserID(actor),
		OrderID:  orderID,
		Reason:   strings.TrimSpace(req.Reason),
		ActorID:  actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) reorderOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Reorder(ctx, services.ReorderCommand{
		TenantID: actor.TenantID,
		UserID:   actor.UserID,
		OrderID:  orderID,
		ActorID:  actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *OrderHandlers) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req notesRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.MarkDelivered(ctx, services.MarkDeliveredCommand{
		TenantID: actor.TenantID,
		OrderID:  orderID,
		Notes:    strings.TrimSpace(req.Notes),
		ActorID:  actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req notesRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Complete(ctx, services.CompleteOrderCommand{
		TenantID: actor.TenantID,
		OrderID:  orderID,
		Notes:    strings.TrimSpace(req.Notes),
		ActorID:  actorID(actor),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// ----- helpers -----

func parseIntParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_invalid", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPaymentNotConfirmed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_confirmed", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotCancellable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
