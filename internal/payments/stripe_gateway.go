package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Logger defines the logging contract for gateway operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

type stripeIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
}

// StripeGatewayConfig configures the StripeGateway.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   Logger
	Clock    func() time.Time
	Clients  *stripeClients
}

// StripeGateway cancels or refunds payment intents held by Stripe. An
// uncaptured intent is cancelled outright; a captured one is refunded instead.
type StripeGateway struct {
	api    stripeClients
	clock  func() time.Time
	logger Logger
}

// NewStripeGateway constructs a Stripe-backed payment gateway.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		api: clients,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CancelPayment voids or refunds the payment intent behind paymentRef.
func (g *StripeGateway) CancelPayment(ctx context.Context, paymentRef string, reason string) error {
	if g == nil {
		return errors.New("stripe: gateway is nil")
	}
	intentID := strings.TrimSpace(paymentRef)
	if intentID == "" {
		return errors.New("stripe: payment reference is required")
	}

	lookup := &stripe.PaymentIntentParams{}
	lookup.Context = ctx
	intent, err := g.api.intents.Get(intentID, lookup)
	if err != nil {
		return fmt.Errorf("stripe: lookup payment intent: %w", err)
	}

	if intent.Status == stripe.PaymentIntentStatusSucceeded {
		return g.refund(ctx, intentID, reason)
	}
	if intent.Status == stripe.PaymentIntentStatusCanceled {
		return nil
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if cancellation := mapCancellationReason(reason); cancellation != "" {
		params.CancellationReason = stripe.String(cancellation)
	}
	if _, err := g.api.intents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe: cancel payment intent: %w", err)
	}

	g.logger(ctx, "payments.stripe.intent.cancelled", map[string]any{
		"paymentIntent": intentID,
	})
	return nil
}

func (g *StripeGateway) refund(ctx context.Context, intentID, reason string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	if mapped := mapRefundReason(reason); mapped != "" {
		params.Reason = stripe.String(mapped)
	}
	if _, err := g.api.refunds.New(params); err != nil {
		return fmt.Errorf("stripe: refund payment intent: %w", err)
	}

	g.logger(ctx, "payments.stripe.intent.refunded", map[string]any{
		"paymentIntent": intentID,
	})
	return nil
}

func mapCancellationReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "duplicate":
		return string(stripe.PaymentIntentCancellationReasonDuplicate)
	case "fraudulent":
		return string(stripe.PaymentIntentCancellationReasonFraudulent)
	case "abandoned":
		return string(stripe.PaymentIntentCancellationReasonAbandoned)
	default:
		return string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)
	}
}

func mapRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	default:
		return string(stripe.RefundReasonRequestedByCustomer)
	}
}
