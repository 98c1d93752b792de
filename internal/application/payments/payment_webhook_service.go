package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// CaseStarter opens a telemedicine case for an order once its payment
// becomes capturable. Implemented by the case bridge service.
type CaseStarter interface {
	EnsureCaseForOrder(ctx context.Context, order *ordering.Order) error
}

// WebhookResult contains the result of processing a processor webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PaymentWebhookService handles payment-processor webhook events. Each
// event verifies against the raw-body signature, passes the duplicate
// ledger, mutates the payment row and requests the matching order
// transition. The event id is recorded in the ledger only after the
// handler completes, so a crash mid-handler lets the redelivery through.
type PaymentWebhookService struct {
	webhookSecret string
	orders        ordering.OrderRepository
	payments      ordering.PaymentRepository
	transitions   *orders.TransitionService
	ledger        shared.EventLedger
	caseStarter   CaseStarter
	logger        *zap.Logger
}

// PaymentWebhookServiceConfig contains configuration for PaymentWebhookService
type PaymentWebhookServiceConfig struct {
	WebhookSecret string
	Orders        ordering.OrderRepository
	Payments      ordering.PaymentRepository
	Transitions   *orders.TransitionService
	Ledger        shared.EventLedger
	CaseStarter   CaseStarter
	Logger        *zap.Logger
}

// NewPaymentWebhookService creates a new PaymentWebhookService
func NewPaymentWebhookService(cfg PaymentWebhookServiceConfig) *PaymentWebhookService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentWebhookService{
		webhookSecret: cfg.WebhookSecret,
		orders:        cfg.Orders,
		payments:      cfg.Payments,
		transitions:   cfg.Transitions,
		ledger:        cfg.Ledger,
		caseStarter:   cfg.CaseStarter,
		logger:        logger,
	}
}

// ProcessWebhook verifies, deduplicates and dispatches one processor
// event. A nil result with an error means the signature failed; callers
// must answer 401. A duplicate returns success without re-processing.
func (s *PaymentWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify processor webhook signature", zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	seen, err := s.ledger.Seen(ctx, event.ID)
	if err != nil {
		s.logger.Error("Duplicate ledger lookup failed",
			zap.String("event_id", event.ID), zap.Error(err))
	} else if seen {
		s.logger.Info("Duplicate processor event acknowledged",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		result.Duplicate = true
		result.Message = "Duplicate event"
		return result, nil
	}

	s.logger.Info("Processing processor webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	switch event.Type {
	case "payment_intent.amount_capturable_updated":
		err = s.handleAmountCapturable(ctx, event)
	case "payment_intent.succeeded":
		err = s.handlePaymentSucceeded(ctx, event)
	case "payment_intent.payment_failed":
		err = s.handlePaymentFailed(ctx, event)
	case "payment_intent.canceled":
		err = s.handlePaymentCanceled(ctx, event)
	case "charge.dispute.created":
		err = s.handleDisputeCreated(ctx, event)
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		err = s.handleSubscriptionLifecycle(ctx, event)
	default:
		s.logger.Debug("Unhandled processor event type",
			zap.String("event_type", string(event.Type)))
		result.Processed = false
		result.Message = "Event type not handled"
		return result, nil
	}

	if err != nil {
		s.logger.Error("Failed to process processor event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Message = err.Error()
		return result, err
	}

	if recordErr := s.ledger.Record(ctx, event.ID); recordErr != nil {
		s.logger.Error("Failed to record processed event id",
			zap.String("event_id", event.ID), zap.Error(recordErr))
	}

	result.Processed = true
	return result, nil
}

// handleAmountCapturable moves the order to authorized_capturable and, if
// the patient has a case-partner identity, opens the telemedicine case
func (s *PaymentWebhookService) handleAmountCapturable(ctx context.Context, event stripe.Event) error {
	intent, err := unmarshalIntent(event)
	if err != nil {
		return err
	}

	order, err := s.resolveOrder(ctx, intent)
	if err != nil {
		if err == shared.ErrNotFound {
			// Events for payments not in our system are acknowledged so
			// the processor stops redelivering
			s.logger.Warn("No order for payment intent, skipping",
				zap.String("payment_intent_id", intent.ID))
			return nil
		}
		return err
	}

	if _, err := s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		if o.PaymentIntentID == "" {
			o.AttachPaymentIntent(intent.ID)
		}
		return o.TransitionTo(ordering.OrderStatusAuthorizedCapturable, ordering.CausePaymentWebhook)
	}); err != nil {
		return err
	}

	s.upsertPaymentFromIntent(ctx, order, intent, func(p *ordering.Payment) {
		p.MarkAuthorized()
	})

	if s.caseStarter != nil {
		// Case creation is a partner call; its failure never fails the
		// payment event
		if caseErr := s.caseStarter.EnsureCaseForOrder(ctx, order); caseErr != nil {
			s.logger.Error("Failed to open telemedicine case for capturable order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(caseErr))
		}
	}

	return nil
}

func (s *PaymentWebhookService) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	intent, err := unmarshalIntent(event)
	if err != nil {
		return err
	}

	order, err := s.resolveOrder(ctx, intent)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("No order for payment intent, skipping",
				zap.String("payment_intent_id", intent.ID))
			return nil
		}
		return err
	}

	amount := amountFromCents(intent.AmountReceived)
	if _, err := s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		if o.PaymentIntentID == "" {
			o.AttachPaymentIntent(intent.ID)
		}
		if amount.IsPositive() && o.CapturedAmount.IsZero() {
			if err := o.RecordCapture(amount); err != nil {
				return err
			}
		}
		return o.TransitionTo(ordering.OrderStatusPaid, ordering.CausePaymentWebhook)
	}); err != nil {
		return err
	}

	s.upsertPaymentFromIntent(ctx, order, intent, func(p *ordering.Payment) {
		p.MarkSucceeded()
	})
	return nil
}

func (s *PaymentWebhookService) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	intent, err := unmarshalIntent(event)
	if err != nil {
		return err
	}

	order, err := s.resolveOrder(ctx, intent)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil
		}
		return err
	}

	reason := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}

	if _, err := s.transitions.RequestTransition(ctx, order.ID,
		ordering.OrderStatusPaymentDue, ordering.CausePaymentWebhook); err != nil {
		return err
	}

	s.upsertPaymentFromIntent(ctx, order, intent, func(p *ordering.Payment) {
		p.MarkFailed(reason)
	})
	return nil
}

func (s *PaymentWebhookService) handlePaymentCanceled(ctx context.Context, event stripe.Event) error {
	intent, err := unmarshalIntent(event)
	if err != nil {
		return err
	}

	order, err := s.resolveOrder(ctx, intent)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil
		}
		return err
	}

	if _, err := s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		o.SetCancelReason("payment cancelled by processor")
		return o.TransitionTo(ordering.OrderStatusCancelled, ordering.CausePaymentWebhook)
	}); err != nil {
		return err
	}

	s.upsertPaymentFromIntent(ctx, order, intent, func(p *ordering.Payment) {
		p.MarkCancelled()
	})
	return nil
}

func (s *PaymentWebhookService) handleDisputeCreated(ctx context.Context, event stripe.Event) error {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return fmt.Errorf("failed to unmarshal dispute: %w", err)
	}
	if dispute.PaymentIntent == nil || dispute.PaymentIntent.ID == "" {
		s.logger.Warn("Dispute has no payment intent, skipping",
			zap.String("dispute_id", dispute.ID))
		return nil
	}

	payment, err := s.payments.FindByProcessorPaymentID(ctx, dispute.PaymentIntent.ID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("No payment for disputed intent, skipping",
				zap.String("payment_intent_id", dispute.PaymentIntent.ID))
			return nil
		}
		return err
	}

	payment.MarkDisputed()
	if err := s.payments.Save(ctx, payment); err != nil {
		return fmt.Errorf("failed to save disputed payment: %w", err)
	}

	s.logger.Warn("Dispute opened against payment",
		zap.String("payment_intent_id", dispute.PaymentIntent.ID),
		zap.String("dispute_reason", string(dispute.Reason)))
	return nil
}

// handleCheckoutCompleted links the checkout session's payment intent and
// billing price onto the order created at checkout time
func (s *PaymentWebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	orderID, ok := orderIDFromMetadata(session.Metadata, session.ClientReferenceID)
	if !ok {
		s.logger.Warn("Checkout session carries no order reference, skipping",
			zap.String("session_id", session.ID))
		return nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("No order for checkout session, skipping",
				zap.String("session_id", session.ID))
			return nil
		}
		return err
	}

	_, err = s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			o.AttachPaymentIntent(session.PaymentIntent.ID)
		}
		if priceID := session.Metadata["billing_price_id"]; priceID != "" {
			o.SetBillingPrice(priceID, session.Metadata["billing_interval"])
		}
		if o.Status == ordering.OrderStatusPending {
			return o.TransitionTo(ordering.OrderStatusPaymentProcessing, ordering.CausePaymentWebhook)
		}
		return nil
	})
	return err
}

// handleSubscriptionLifecycle records the subscription reference on the
// order's payment row for reconciliation
func (s *PaymentWebhookService) handleSubscriptionLifecycle(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	orderID, ok := orderIDFromMetadata(subscription.Metadata, "")
	if !ok {
		s.logger.Debug("Subscription event carries no order reference",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	payment, err := s.payments.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil
		}
		return err
	}

	payment.SubscriptionRef = subscription.ID
	payment.Touch()
	if err := s.payments.Save(ctx, payment); err != nil {
		return fmt.Errorf("failed to save payment subscription ref: %w", err)
	}

	s.logger.Info("Subscription lifecycle recorded",
		zap.String("subscription_id", subscription.ID),
		zap.String("subscription_status", string(subscription.Status)),
		zap.String("order_id", orderID.String()))
	return nil
}

// resolveOrder finds the order for a payment intent, preferring the
// stored intent correlation and falling back to the order id embedded in
// the intent's metadata at checkout time
func (s *PaymentWebhookService) resolveOrder(ctx context.Context, intent *stripe.PaymentIntent) (*ordering.Order, error) {
	order, err := s.orders.FindByPaymentIntentID(ctx, intent.ID)
	if err == nil {
		return order, nil
	}
	if err != shared.ErrNotFound {
		return nil, err
	}

	if orderID, ok := orderIDFromMetadata(intent.Metadata, ""); ok {
		return s.orders.FindByID(ctx, orderID)
	}
	return nil, shared.ErrNotFound
}

// upsertPaymentFromIntent loads or creates the payment row mirroring the
// intent and applies the status mutation. Mirror-row failures are logged,
// not returned; the order transition already committed.
func (s *PaymentWebhookService) upsertPaymentFromIntent(ctx context.Context, order *ordering.Order, intent *stripe.PaymentIntent, mutate func(*ordering.Payment)) {
	payment, err := s.payments.FindByProcessorPaymentID(ctx, intent.ID)
	if err == shared.ErrNotFound {
		amount := amountFromCents(intent.Amount)
		payment, err = ordering.NewPayment(order.ID, intent.ID, amount, string(intent.Currency))
	}
	if err != nil {
		s.logger.Error("Failed to load payment record for intent",
			zap.String("payment_intent_id", intent.ID), zap.Error(err))
		return
	}

	mutate(payment)
	if err := s.payments.Save(ctx, payment); err != nil {
		s.logger.Error("Failed to save payment record",
			zap.String("payment_intent_id", intent.ID), zap.Error(err))
	}
}

func unmarshalIntent(event stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	return &intent, nil
}

func orderIDFromMetadata(metadata map[string]string, fallback string) (uuid.UUID, bool) {
	raw := metadata["order_id"]
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// amountFromCents converts the processor's integer minor-unit amount
func amountFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
