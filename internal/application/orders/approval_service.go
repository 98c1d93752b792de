package orders

import (
	"context"

	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentCapturer finalizes an authorized-but-not-captured payment.
// Implemented by the payment capture coordinator.
type PaymentCapturer interface {
	// EnsureCaptured captures the order's payment if it is still in the
	// authorized-capturable stage. It is a no-op for already-paid orders.
	EnsureCaptured(ctx context.Context, order *ordering.Order) error
}

// FulfillmentDispatcher routes an approved, paid order to its pharmacy
// partner. Implemented by the fulfillment dispatcher.
type FulfillmentDispatcher interface {
	Dispatch(ctx context.Context, order *ordering.Order) (*fulfillment.ShippingOrder, error)
}

// ApprovalService is the single clinical-approval path. Human approvers
// and the autonomous engine both enter here, so the downstream sequence
// (capture, processing transition, fulfillment dispatch) is identical
// regardless of who approved.
//
// Approval and payment are decoupled: a capture failure is logged and
// left retryable, never undoing the clinical decision. Fulfillment
// failure likewise never reverses approval.
type ApprovalService struct {
	transitions *TransitionService
	orders      ordering.OrderRepository
	capturer    PaymentCapturer
	dispatcher  FulfillmentDispatcher
	logger      *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	transitions *TransitionService,
	orders ordering.OrderRepository,
	capturer PaymentCapturer,
	dispatcher FulfillmentDispatcher,
	logger *zap.Logger,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		transitions: transitions,
		orders:      orders,
		capturer:    capturer,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// ApproveByClinician records a human approval decision and runs the
// shared approval path
func (s *ApprovalService) ApproveByClinician(ctx context.Context, orderID, clinicianID uuid.UUID) error {
	order, err := s.transitions.Perform(ctx, orderID, func(o *ordering.Order) error {
		return o.Approve(clinicianID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Order approved by clinician",
		zap.String("order_number", order.OrderNumber),
		zap.String("clinician_id", clinicianID.String()))

	return s.CompleteApproval(ctx, orderID, ordering.CauseManualApproval)
}

// CompleteApproval runs the downstream side of an approval decision:
// capture a still-capturable payment, move a paid order into processing
// and dispatch it to fulfillment.
//
// A returned error means the approval path itself failed (the processing
// transition could not be applied); callers that marked approval flags
// speculatively must revert them. Payment and fulfillment failures are
// retryable conditions, logged and surfaced but not returned.
func (s *ApprovalService) CompleteApproval(ctx context.Context, orderID uuid.UUID, cause ordering.TransitionCause) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == ordering.OrderStatusAuthorizedCapturable {
		if err := s.capturer.EnsureCaptured(ctx, order); err != nil {
			// The clinical decision stands; payment is retried or
			// escalated independently
			s.logger.Error("Payment capture failed after approval",
				zap.String("order_number", order.OrderNumber),
				zap.String("payment_intent_id", order.PaymentIntentID),
				zap.Error(err))
			return nil
		}
		order, err = s.orders.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
	}

	if !order.IsPaid() {
		s.logger.Warn("Approved order is not yet paid; fulfillment deferred",
			zap.String("order_number", order.OrderNumber),
			zap.String("status", order.Status.String()))
		return nil
	}

	if order.Status == ordering.OrderStatusPaid {
		order, err = s.transitions.RequestTransition(ctx, orderID, ordering.OrderStatusProcessing, cause)
		if err != nil {
			return err
		}
	}

	if _, err := s.dispatcher.Dispatch(ctx, order); err != nil {
		// Never silently swallowed, never reverses approval: the order
		// stays approved and dispatch alone can be retried
		s.logger.Error("Fulfillment dispatch failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}

	return nil
}

// RetryDispatch re-runs fulfillment dispatch alone, without re-running
// approval
func (s *ApprovalService) RetryDispatch(ctx context.Context, orderID uuid.UUID) (*fulfillment.ShippingOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Dispatch(ctx, order)
}
