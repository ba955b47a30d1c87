package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/services"
)

const testStripeSecret = "whsec_test"

func newWebhookRouter(svc services.OrderService) chi.Router {
	h := NewWebhookHandlers(svc, testStripeSecret)
	return NewRouter(WithWebhookRoutes(h.Routes))
}

// stripeSignature computes the v1 scheme Stripe uses for webhook payloads.
func stripeSignature(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEventBody(eventType string, data string) []byte {
	// webhook.ConstructEvent rejects events whose api_version differs from
	// the stripe-go library's pinned version, so stamp it on the fixture.
	return []byte(fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":%s}}`, stripe.APIVersion, eventType, data))
}

func TestStripeWebhookUpdatesPaymentStatus(t *testing.T) {
	var captured services.UpdatePaymentStatusCommand
	svc := &stubOrderService{
		updatePaymentFn: func(_ context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}

	body := stripeEventBody("payment_intent.succeeded",
		`{"id":"pi_123","metadata":{"orderId":"ord_1","tenantId":"tenant-a"}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(body)))
	req.Header.Set("Stripe-Signature", stripeSignature(body, testStripeSecret, time.Now()))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	if captured.TenantID != "tenant-a" || captured.OrderID != "ord_1" {
		t.Fatalf("unexpected routing %#v", captured)
	}
	if captured.PaymentStatus != domain.PaymentStatusPaid || captured.PaymentRef != "pi_123" {
		t.Errorf("unexpected payment command %#v", captured)
	}
	if captured.ActorID != "stripe-webhook" {
		t.Errorf("unexpected actor %q", captured.ActorID)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	called := false
	svc := &stubOrderService{
		updatePaymentFn: func(context.Context, services.UpdatePaymentStatusCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}

	body := stripeEventBody("payment_intent.succeeded", `{"id":"pi_123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(body)))
	req.Header.Set("Stripe-Signature", stripeSignature(body, "whsec_other", time.Now()))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if called {
		t.Error("service must not be called for unverified webhooks")
	}
}

func TestStripeWebhookAcksUnhandledEvents(t *testing.T) {
	called := false
	svc := &stubOrderService{
		updatePaymentFn: func(context.Context, services.UpdatePaymentStatusCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}

	body := stripeEventBody("customer.created", `{"id":"cus_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(body)))
	req.Header.Set("Stripe-Signature", stripeSignature(body, testStripeSecret, time.Now()))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if handled, _ := resp["handled"].(bool); handled {
		t.Error("unhandled event must be acked with handled=false")
	}
	if called {
		t.Error("service must not be called for unhandled events")
	}
}

func TestStripeWebhookAcksMissingRoutingMetadata(t *testing.T) {
	called := false
	svc := &stubOrderService{
		updatePaymentFn: func(context.Context, services.UpdatePaymentStatusCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}

	body := stripeEventBody("payment_intent.succeeded", `{"id":"pi_123","metadata":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(body)))
	req.Header.Set("Stripe-Signature", stripeSignature(body, testStripeSecret, time.Now()))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", rec.Code)
	}
	if called {
		t.Error("unroutable event must not hit the order service")
	}
}

func TestCarrierWebhookClassifiesDescription(t *testing.T) {
	var captured services.UpdateTrackingCommand
	svc := &stubOrderService{
		updTrackingFn: func(_ context.Context, cmd services.UpdateTrackingCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}

	body := `{
		"tenant_id": "tenant-a",
		"order_id": "ord_1",
		"description": "Saiu para entrega ao destinatario",
		"location": "Sao Paulo / SP",
		"timestamp": "2025-05-02T08:15:00Z"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", strings.NewReader(body))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	if captured.Status != domain.ShippingStatusOutForDelivery {
		t.Errorf("expected classified status, got %s", captured.Status)
	}
	if captured.Timestamp == nil || !captured.Timestamp.Equal(time.Date(2025, 5, 2, 8, 15, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", captured.Timestamp)
	}
	if captured.ActorID != "carrier-webhook" {
		t.Errorf("unexpected actor %q", captured.ActorID)
	}
}

func TestCarrierWebhookPrefersExplicitStatus(t *testing.T) {
	var captured services.UpdateTrackingCommand
	svc := &stubOrderService{
		updTrackingFn: func(_ context.Context, cmd services.UpdateTrackingCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}

	body := `{"tenant_id":"tenant-a","order_id":"ord_1","status":"delivered","description":"entregue"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", strings.NewReader(body))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Status != domain.ShippingStatusDelivered {
		t.Errorf("expected explicit status, got %s", captured.Status)
	}
}

func TestCarrierWebhookRequiresRouting(t *testing.T) {
	svc := &stubOrderService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/carrier", strings.NewReader(`{"description":"entregue"}`))

	rec := httptest.NewRecorder()
	newWebhookRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
