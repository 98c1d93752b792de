package payments

import (
	"context"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CaptureCoordinator converts an authorized-but-not-captured payment into
// a captured payment plus a recurring billing subscription. It sits on
// the approval path: both human approvers and the autonomous engine reach
// it through the ApprovalService.
//
// Capture and subscription creation are independent fallible steps. A
// capture success followed by a subscription-creation failure never rolls
// the capture back and never blocks fulfillment; it is logged for manual
// reconciliation because the patient has already been billed.
type CaptureCoordinator struct {
	transitions *orders.TransitionService
	orders      ordering.OrderRepository
	payments    ordering.PaymentRepository
	gateway     ProcessorGateway
	logger      *zap.Logger
}

// CaptureCoordinatorConfig contains dependencies for CaptureCoordinator
type CaptureCoordinatorConfig struct {
	Transitions *orders.TransitionService
	Orders      ordering.OrderRepository
	Payments    ordering.PaymentRepository
	Gateway     ProcessorGateway
	Logger      *zap.Logger
}

// NewCaptureCoordinator creates a new CaptureCoordinator
func NewCaptureCoordinator(cfg CaptureCoordinatorConfig) *CaptureCoordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureCoordinator{
		transitions: cfg.Transitions,
		orders:      cfg.Orders,
		payments:    cfg.Payments,
		gateway:     cfg.Gateway,
		logger:      logger,
	}
}

var _ orders.PaymentCapturer = (*CaptureCoordinator)(nil)

// EnsureCaptured captures the order's payment if it is still awaiting
// capture. Orders that are already paid or not yet authorized pass
// through unchanged.
func (c *CaptureCoordinator) EnsureCaptured(ctx context.Context, order *ordering.Order) error {
	if order.Status != ordering.OrderStatusAuthorizedCapturable {
		return nil
	}
	return c.CaptureAndSubscribe(ctx, order.ID)
}

// CaptureAndSubscribe runs the two-step capture flow for one order.
//
// Step one, capture: on success the captured amount is recorded, the
// order moves to paid and the payment row is marked succeeded. On failure
// the order moves to payment_due, the payment row is marked failed and
// the error is returned so the caller can escalate.
//
// Step two, subscription: only attempted after a successful capture and
// only when a billing price was attached at checkout. Its failure is
// logged and swallowed.
func (c *CaptureCoordinator) CaptureAndSubscribe(ctx context.Context, orderID uuid.UUID) error {
	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentIntentID == "" {
		return shared.NewDomainErrorf("MISSING_PAYMENT_INTENT",
			"Order %s has no payment intent to capture", order.OrderNumber)
	}

	captured, err := c.gateway.CapturePaymentIntent(ctx, order.PaymentIntentID)
	if err != nil {
		c.logger.Error("Payment capture failed",
			zap.String("order_number", order.OrderNumber),
			zap.String("payment_intent_id", order.PaymentIntentID),
			zap.Error(err))

		if _, trErr := c.transitions.RequestTransition(ctx, orderID,
			ordering.OrderStatusPaymentDue, ordering.CauseCaptureResult); trErr != nil {
			c.logger.Error("Failed to move order to payment_due after capture failure",
				zap.String("order_number", order.OrderNumber),
				zap.Error(trErr))
		}
		c.markPaymentFailed(ctx, order, err.Error())
		return err
	}

	order, err = c.transitions.Perform(ctx, orderID, func(o *ordering.Order) error {
		if err := o.RecordCapture(captured.AmountCaptured); err != nil {
			return err
		}
		return o.TransitionTo(ordering.OrderStatusPaid, ordering.CauseCaptureResult)
	})
	if err != nil {
		return err
	}
	c.markPaymentSucceeded(ctx, order, captured)

	c.logger.Info("Payment captured",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_intent_id", order.PaymentIntentID),
		zap.String("amount", captured.AmountCaptured.String()))

	c.createSubscription(ctx, order)
	return nil
}

// createSubscription creates the recurring subscription from the order's
// checkout-time billing linkage. Failure is left for reconciliation.
func (c *CaptureCoordinator) createSubscription(ctx context.Context, order *ordering.Order) {
	if order.BillingPriceID == "" {
		c.logger.Info("Order has no billing price linkage; skipping subscription",
			zap.String("order_number", order.OrderNumber))
		return
	}

	sub, err := c.gateway.CreateSubscription(ctx, SubscriptionInput{
		PriceID:  order.BillingPriceID,
		Interval: order.BillingInterval,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		c.logger.Error("Subscription creation failed after successful capture; needs manual reconciliation",
			zap.String("order_number", order.OrderNumber),
			zap.String("billing_price_id", order.BillingPriceID),
			zap.Error(err))
		return
	}

	if payment, pErr := c.payments.FindByProcessorPaymentID(ctx, order.PaymentIntentID); pErr == nil {
		payment.SubscriptionRef = sub.SubscriptionID
		payment.Touch()
		if saveErr := c.payments.Save(ctx, payment); saveErr != nil {
			c.logger.Error("Failed to record subscription ref on payment",
				zap.String("order_number", order.OrderNumber),
				zap.Error(saveErr))
		}
	}

	c.logger.Info("Subscription created",
		zap.String("order_number", order.OrderNumber),
		zap.String("subscription_id", sub.SubscriptionID))
}

func (c *CaptureCoordinator) markPaymentSucceeded(ctx context.Context, order *ordering.Order, captured *CaptureOutput) {
	payment, err := c.upsertPayment(ctx, order, captured)
	if err != nil {
		c.logger.Error("Failed to load payment record after capture",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
		return
	}
	payment.MarkSucceeded()
	if err := c.payments.Save(ctx, payment); err != nil {
		c.logger.Error("Failed to save payment record after capture",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}

func (c *CaptureCoordinator) markPaymentFailed(ctx context.Context, order *ordering.Order, reason string) {
	payment, err := c.payments.FindByProcessorPaymentID(ctx, order.PaymentIntentID)
	if err != nil {
		return
	}
	payment.MarkFailed(reason)
	if err := c.payments.Save(ctx, payment); err != nil {
		c.logger.Error("Failed to save failed payment record",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}

func (c *CaptureCoordinator) upsertPayment(ctx context.Context, order *ordering.Order, captured *CaptureOutput) (*ordering.Payment, error) {
	payment, err := c.payments.FindByProcessorPaymentID(ctx, order.PaymentIntentID)
	if err == nil {
		return payment, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}
	return ordering.NewPayment(order.ID, order.PaymentIntentID, captured.AmountCaptured, captured.Currency)
}
