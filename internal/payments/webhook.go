package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/printbound/api/internal/domain"
)

// ErrUnhandledWebhookEvent marks event types the order flow does not react to.
var ErrUnhandledWebhookEvent = errors.New("payments: unhandled webhook event")

// WebhookEvent is the normalised payment signal extracted from a PSP webhook.
type WebhookEvent struct {
	Type          string
	PaymentRef    string
	PaymentStatus domain.PaymentStatus
	OrderID       string
	TenantID      string
}

// ParseStripeWebhook verifies the signature and maps the Stripe event onto the
// payment axis. Order routing relies on the orderId/tenantId metadata stamped
// on the intent at checkout time.
func ParseStripeWebhook(payload []byte, signature, secret string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("payments: webhook signature: %w", err)
	}
	return mapStripeEvent(event)
}

func mapStripeEvent(event stripe.Event) (WebhookEvent, error) {
	var status domain.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = domain.PaymentStatusPaid
	case "payment_intent.payment_failed":
		status = domain.PaymentStatusFailed
	case "charge.refunded":
		status = domain.PaymentStatusRefunded
	default:
		return WebhookEvent{}, fmt.Errorf("%w: %s", ErrUnhandledWebhookEvent, event.Type)
	}

	var intent struct {
		ID            string            `json:"id"`
		PaymentIntent string            `json:"payment_intent"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return WebhookEvent{}, fmt.Errorf("payments: webhook payload: %w", err)
	}

	ref := strings.TrimSpace(intent.ID)
	// Charge events carry the intent as a reference field.
	if intent.PaymentIntent != "" {
		ref = strings.TrimSpace(intent.PaymentIntent)
	}
	if ref == "" {
		return WebhookEvent{}, errors.New("payments: webhook payload missing payment reference")
	}

	return WebhookEvent{
		Type:          string(event.Type),
		PaymentRef:    ref,
		PaymentStatus: status,
		OrderID:       strings.TrimSpace(intent.Metadata["orderId"]),
		TenantID:      strings.TrimSpace(intent.Metadata["tenantId"]),
	}, nil
}
