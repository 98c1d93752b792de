package payments

import (
	"context"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/subscription"
	"go.uber.org/zap"

	apppayments "github.com/carebridge/backend/internal/application/payments"
)

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string
}

// Validate validates the gateway configuration
func (c *StripeGatewayConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	return nil
}

// StripeGateway implements the outbound processor operations against the
// Stripe API. Payment intents are created and authorized by the checkout
// flow upstream; this gateway only captures them and creates the
// follow-on subscription.
type StripeGateway struct {
	logger *zap.Logger
}

// NewStripeGateway creates a Stripe gateway and initializes the API client
func NewStripeGateway(config StripeGatewayConfig, logger *zap.Logger) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stripe.Key = config.SecretKey

	return &StripeGateway{logger: logger}, nil
}

// CapturePaymentIntent finalizes the charge for an authorized, uncaptured
// payment intent
func (g *StripeGateway) CapturePaymentIntent(ctx context.Context, paymentIntentID string) (*apppayments.CaptureOutput, error) {
	g.logger.Debug("Capturing payment intent",
		zap.String("payment_intent_id", paymentIntentID))

	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx

	intent, err := paymentintent.Capture(paymentIntentID, params)
	if err != nil {
		g.logger.Error("Failed to capture payment intent",
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to capture payment intent: %w", err)
	}

	g.logger.Info("Captured payment intent",
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount_received", intent.AmountReceived))

	return &apppayments.CaptureOutput{
		ProcessorPaymentID: intent.ID,
		AmountCaptured:     decimal.New(intent.AmountReceived, -2),
		Currency:           string(intent.Currency),
	}, nil
}

// CreateSubscription creates a recurring subscription bound to the payment
// method of an already-captured payment
func (g *StripeGateway) CreateSubscription(ctx context.Context, input apppayments.SubscriptionInput) (*apppayments.SubscriptionOutput, error) {
	g.logger.Debug("Creating subscription",
		zap.String("customer_id", input.CustomerID),
		zap.String("price_id", input.PriceID))

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(input.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(input.PriceID)},
		},
	}
	params.Context = ctx

	if input.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(input.PaymentMethodID)
	}

	params.Metadata = map[string]string{}
	maps.Copy(params.Metadata, input.Metadata)
	if input.Interval != "" {
		params.Metadata["billing_interval"] = input.Interval
	}

	sub, err := subscription.New(params)
	if err != nil {
		g.logger.Error("Failed to create subscription",
			zap.String("customer_id", input.CustomerID),
			zap.String("price_id", input.PriceID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create subscription: %w", err)
	}

	g.logger.Info("Created subscription",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))

	return &apppayments.SubscriptionOutput{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
	}, nil
}

var _ apppayments.ProcessorGateway = (*StripeGateway)(nil)
