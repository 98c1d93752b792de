package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Partner event types
const (
	EventOrderCreated   = "order_created"
	EventOrderProcessed = "order_processed"
	EventOrderFilled    = "order_filled"
	EventOrderApproved  = "order_approved"
	EventOrderShipped   = "order_shipped"
	EventOrderDelivered = "order_delivered"
	EventOrderProblem   = "order_problem"
	EventOrderRejected  = "order_rejected"
	EventOrderCompleted = "order_completed"
	EventOrderCancelled = "order_cancelled"
)

// SignatureVerifier authenticates an inbound partner payload. Partners
// use either a raw-body signature or a bearer shared secret; both
// implement this contract.
type SignatureVerifier interface {
	Verify(payload []byte, credential string) error
}

// WebhookResult contains the result of processing a partner webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// partnerEvent is the inbound webhook payload shape. Partners correlate
// via their own order identifier.
type partnerEvent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	PartnerOrderID string `json:"order_id"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// eventStatus maps partner event types onto the shipping status model
var eventStatus = map[string]fulfillment.ShippingOrderStatus{
	EventOrderCreated:   fulfillment.ShippingStatusPending,
	EventOrderProcessed: fulfillment.ShippingStatusProcessing,
	EventOrderFilled:    fulfillment.ShippingStatusFilled,
	EventOrderApproved:  fulfillment.ShippingStatusApproved,
	EventOrderShipped:   fulfillment.ShippingStatusShipped,
	EventOrderDelivered: fulfillment.ShippingStatusDelivered,
	EventOrderProblem:   fulfillment.ShippingStatusProblem,
	EventOrderRejected:  fulfillment.ShippingStatusRejected,
	EventOrderCompleted: fulfillment.ShippingStatusCompleted,
	EventOrderCancelled: fulfillment.ShippingStatusCancelled,
}

// PharmacyWebhookService consumes pharmacy-partner webhook streams. Each
// event updates the ShippingOrder addressed by the partner's order id and
// mirrors the milestones a patient cares about (shipped, delivered,
// cancelled) onto the parent order.
type PharmacyWebhookService struct {
	verifiers      map[fulfillment.PharmacyPartner]SignatureVerifier
	ledger         shared.EventLedger
	shippingOrders fulfillment.ShippingOrderRepository
	transitions    *orders.TransitionService
	logger         *zap.Logger
}

// PharmacyWebhookServiceConfig contains configuration for PharmacyWebhookService
type PharmacyWebhookServiceConfig struct {
	Verifiers      map[fulfillment.PharmacyPartner]SignatureVerifier
	Ledger         shared.EventLedger
	ShippingOrders fulfillment.ShippingOrderRepository
	Transitions    *orders.TransitionService
	Logger         *zap.Logger
}

// NewPharmacyWebhookService creates a new PharmacyWebhookService
func NewPharmacyWebhookService(cfg PharmacyWebhookServiceConfig) *PharmacyWebhookService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PharmacyWebhookService{
		verifiers:      cfg.Verifiers,
		ledger:         cfg.Ledger,
		shippingOrders: cfg.ShippingOrders,
		transitions:    cfg.Transitions,
		logger:         logger,
	}
}

// ProcessWebhook verifies, deduplicates and applies one partner event
func (s *PharmacyWebhookService) ProcessWebhook(ctx context.Context, partner fulfillment.PharmacyPartner, payload []byte, credential string) (*WebhookResult, error) {
	verifier, ok := s.verifiers[partner]
	if !ok {
		return nil, shared.NewDomainErrorf("PARTNER_NOT_CONFIGURED",
			"No webhook verifier configured for partner %s", partner)
	}
	if err := verifier.Verify(payload, credential); err != nil {
		s.logger.Error("Failed to verify pharmacy-partner webhook",
			zap.String("partner", partner.String()), zap.Error(err))
		return nil, err
	}

	var event partnerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pharmacy-partner event: %w", err)
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: event.Type,
	}

	ledgerKey := partner.String() + ":" + event.ID
	seen, err := s.ledger.Seen(ctx, ledgerKey)
	if err != nil {
		s.logger.Error("Duplicate ledger lookup failed",
			zap.String("event_id", event.ID), zap.Error(err))
	} else if seen {
		s.logger.Info("Duplicate pharmacy-partner event acknowledged",
			zap.String("partner", partner.String()),
			zap.String("event_id", event.ID))
		result.Duplicate = true
		result.Message = "Duplicate event"
		return result, nil
	}

	status, ok := eventStatus[event.Type]
	if !ok {
		s.logger.Debug("Unhandled pharmacy-partner event type",
			zap.String("event_type", event.Type))
		result.Message = "Event type not handled"
		return result, nil
	}

	shippingOrder, err := s.shippingOrders.FindByPartnerOrderID(ctx, partner, event.PartnerOrderID)
	if err != nil {
		if err == shared.ErrNotFound {
			// Events for orders we never dispatched are acknowledged so
			// the partner stops redelivering
			s.logger.Warn("No shipping order for partner event, skipping",
				zap.String("partner", partner.String()),
				zap.String("partner_order_id", event.PartnerOrderID))
			result.Message = "No matching shipping order"
			return result, nil
		}
		return result, err
	}

	if err := s.applyEvent(ctx, shippingOrder, event, status); err != nil {
		s.logger.Error("Failed to process pharmacy-partner event",
			zap.String("partner", partner.String()),
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		result.Message = err.Error()
		return result, err
	}

	if recordErr := s.ledger.Record(ctx, ledgerKey); recordErr != nil {
		s.logger.Error("Failed to record processed event id",
			zap.String("event_id", event.ID), zap.Error(recordErr))
	}

	result.Processed = true
	return result, nil
}

func (s *PharmacyWebhookService) applyEvent(ctx context.Context, shippingOrder *fulfillment.ShippingOrder, event partnerEvent, status fulfillment.ShippingOrderStatus) error {
	if err := shippingOrder.ApplyPartnerStatus(status); err != nil {
		return err
	}
	if event.TrackingNumber != "" {
		shippingOrder.SetTrackingNumber(event.TrackingNumber)
	}
	if event.Reason != "" && (status == fulfillment.ShippingStatusProblem || status == fulfillment.ShippingStatusRejected) {
		shippingOrder.SetProblem(event.Reason)
	}
	if err := s.shippingOrders.Save(ctx, shippingOrder); err != nil {
		return err
	}

	return s.mirrorToOrder(ctx, shippingOrder, event, status)
}

// mirrorToOrder reflects partner milestones onto the parent order.
// Problem and rejection events annotate the order without changing its
// status; the dispatch stays retryable.
func (s *PharmacyWebhookService) mirrorToOrder(ctx context.Context, shippingOrder *fulfillment.ShippingOrder, event partnerEvent, status fulfillment.ShippingOrderStatus) error {
	switch status {
	case fulfillment.ShippingStatusShipped:
		_, err := s.transitions.RequestTransition(ctx, shippingOrder.OrderID,
			ordering.OrderStatusShipped, ordering.CausePharmacyWebhook)
		return err
	case fulfillment.ShippingStatusDelivered:
		_, err := s.transitions.RequestTransition(ctx, shippingOrder.OrderID,
			ordering.OrderStatusDelivered, ordering.CausePharmacyWebhook)
		return err
	case fulfillment.ShippingStatusCancelled:
		_, err := s.transitions.Perform(ctx, shippingOrder.OrderID, func(o *ordering.Order) error {
			o.SetCancelReason(fmt.Sprintf("cancelled by pharmacy partner %s", shippingOrder.Partner))
			return o.TransitionTo(ordering.OrderStatusCancelled, ordering.CausePharmacyWebhook)
		})
		return err
	case fulfillment.ShippingStatusProblem, fulfillment.ShippingStatusRejected:
		_, err := s.transitions.Perform(ctx, shippingOrder.OrderID, func(o *ordering.Order) error {
			o.AppendNote(fmt.Sprintf("Pharmacy partner %s reported %s: %s",
				shippingOrder.Partner, status, event.Reason))
			return nil
		})
		return err
	}
	return nil
}
