package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// CaptureOutput reports the processor's view of a completed capture
type CaptureOutput struct {
	ProcessorPaymentID string
	AmountCaptured     decimal.Decimal
	Currency           string
}

// SubscriptionInput describes the recurring subscription created after a
// successful capture. The price and interval come from the order's
// checkout-time billing linkage; the payment method is reused from the
// captured payment.
type SubscriptionInput struct {
	CustomerID      string
	PriceID         string
	Interval        string
	PaymentMethodID string
	Metadata        map[string]string
}

// SubscriptionOutput reports the created subscription
type SubscriptionOutput struct {
	SubscriptionID string
	Status         string
}

// ProcessorGateway wraps the outbound payment-processor API surface the
// coordinator needs. Implemented by the Stripe adapter in infrastructure.
type ProcessorGateway interface {
	// CapturePaymentIntent finalizes the charge for an authorized,
	// uncaptured payment intent
	CapturePaymentIntent(ctx context.Context, paymentIntentID string) (*CaptureOutput, error)

	// CreateSubscription creates a recurring subscription bound to the
	// payment method of an already-captured payment
	CreateSubscription(ctx context.Context, input SubscriptionInput) (*SubscriptionOutput, error)
}
