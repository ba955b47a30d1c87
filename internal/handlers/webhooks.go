package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/printbound/api/internal/carriers"
	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/payments"
	"github.com/printbound/api/internal/platform/httpx"
	"github.com/printbound/api/internal/platform/requestctx"
	"github.com/printbound/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives payment and carrier push notifications.
type WebhookHandlers struct {
	orders        services.OrderService
	stripeSecret  string
	carrierVerify func(http.Handler) http.Handler
}

// WebhookOption customises the webhook handlers.
type WebhookOption func(*WebhookHandlers)

// WithCarrierVerifier guards the carrier route with a signature middleware.
// Stripe ships its own signature scheme, so the guard applies to the carrier
// route only.
func WithCarrierVerifier(mw func(http.Handler) http.Handler) WebhookOption {
	return func(h *WebhookHandlers) {
		h.carrierVerify = mw
	}
}

// NewWebhookHandlers constructs the webhook endpoints.
func NewWebhookHandlers(orders services.OrderService, stripeSecret string, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		orders:       orders,
		stripeSecret: strings.TrimSpace(stripeSecret),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
	if h.carrierVerify != nil {
		r.With(h.carrierVerify).Post("/carrier", h.carrierWebhook)
		return
	}
	r.Post("/carrier", h.carrierWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	if h.orders == nil || h.stripeSecret == "" {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "stripe webhook not configured", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	event, err := payments.ParseStripeWebhook(body, r.Header.Get("Stripe-Signature"), h.stripeSecret)
	if errors.Is(err, payments.ErrUnhandledWebhookEvent) {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "handled": false})
		return
	}
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_invalid", "webhook verification failed", http.StatusBadRequest))
		return
	}

	if event.OrderID == "" || event.TenantID == "" {
		// Ack events that cannot be routed; retrying will not add the metadata.
		logger.Warn("stripe webhook missing order routing metadata",
			zap.String("event", event.Type),
			zap.String("paymentRef", event.PaymentRef),
		)
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "handled": false})
		return
	}

	_, err = h.orders.UpdatePaymentStatus(ctx, services.UpdatePaymentStatusCommand{
		TenantID:      event.TenantID,
		OrderID:       event.OrderID,
		PaymentStatus: event.PaymentStatus,
		PaymentRef:    event.PaymentRef,
		ActorID:       "stripe-webhook",
	})
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			logger.Warn("stripe webhook for unknown order",
				zap.String("event", event.Type),
				zap.String("orderId", event.OrderID),
			)
			writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "handled": false})
			return
		}
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "handled": true})
}

type carrierWebhookRequest struct {
	TenantID    string `json:"tenant_id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Timestamp   string `json:"timestamp"`
}

func (h *WebhookHandlers) carrierWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "carrier webhook not configured", http.StatusServiceUnavailable))
		return
	}

	var req carrierWebhookRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	orderID := strings.TrimSpace(req.OrderID)
	if tenantID == "" || orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tenant_id and order_id are required", http.StatusBadRequest))
		return
	}

	status := domain.ShippingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if _, ok := validShippingStatuses[status]; !ok {
		// Push payloads without an explicit status carry the raw pt-BR
		// description; classify it the same way the polling client does.
		status = carriers.ClassifyDescription(req.Description)
	}

	cmd := services.UpdateTrackingCommand{
		TenantID:    tenantID,
		OrderID:     orderID,
		Status:      status,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		ActorID:     "carrier-webhook",
	}
	if raw := strings.TrimSpace(req.Timestamp); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "timestamp must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.Timestamp = &ts
	}

	if _, err := h.orders.UpdateTracking(ctx, cmd); err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true, "handled": true})
}
