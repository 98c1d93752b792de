package cases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Partner event types
const (
	EventCaseCreated           = "case_created"
	EventCaseAssigned          = "case_assigned"
	EventCaseProcessing        = "case_processing"
	EventCaseApproved          = "case_approved"
	EventCaseCompleted         = "case_completed"
	EventPrescriptionSubmitted = "prescription_submitted"
	EventOfferingSubmitted     = "offering_submitted"
	EventMessageCreated        = "message_created"
)

// CreateCaseInput describes the case opened with the telemedicine
// partner. The order id travels in the metadata because the partner's
// webhooks only carry their own case id.
type CreateCaseInput struct {
	PatientPartnerID string
	Metadata         map[string]string
}

// CreateCaseOutput reports the created case
type CreateCaseOutput struct {
	CaseID string
	Status string
}

// CasePartnerClient wraps the outbound telemedicine-partner API surface
type CasePartnerClient interface {
	CreateCase(ctx context.Context, input CreateCaseInput) (*CreateCaseOutput, error)
}

// SignatureVerifier authenticates an inbound partner payload
type SignatureVerifier interface {
	Verify(payload []byte, signature string) error
}

// Approver runs the shared clinical-approval path for an order
type Approver interface {
	ApproveByClinician(ctx context.Context, orderID, clinicianID uuid.UUID) error
}

// WebhookResult contains the result of processing a partner webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// partnerEvent is the inbound webhook payload shape
type partnerEvent struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	CaseID      string            `json:"case_id"`
	ClinicianID string            `json:"clinician_id,omitempty"`
	Message     string            `json:"message,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CaseBridgeService links orders to telemedicine cases: it opens a case
// when a payment becomes capturable and consumes the partner's webhook
// stream to drive order state.
//
// Order resolution always attempts the metadata order id first because it
// is unambiguous; the stored case id is the fallback for partner events
// that omit metadata.
type CaseBridgeService struct {
	client      CasePartnerClient
	verifier    SignatureVerifier
	ledger      shared.EventLedger
	orders      ordering.OrderRepository
	patients    clinical.PatientRepository
	transitions *orders.TransitionService
	approver    Approver
	logger      *zap.Logger
}

// CaseBridgeServiceConfig contains configuration for CaseBridgeService
type CaseBridgeServiceConfig struct {
	Client      CasePartnerClient
	Verifier    SignatureVerifier
	Ledger      shared.EventLedger
	Orders      ordering.OrderRepository
	Patients    clinical.PatientRepository
	Transitions *orders.TransitionService
	Approver    Approver
	Logger      *zap.Logger
}

// NewCaseBridgeService creates a new CaseBridgeService
func NewCaseBridgeService(cfg CaseBridgeServiceConfig) *CaseBridgeService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseBridgeService{
		client:      cfg.Client,
		verifier:    cfg.Verifier,
		ledger:      cfg.Ledger,
		orders:      cfg.Orders,
		patients:    cfg.Patients,
		transitions: cfg.Transitions,
		approver:    cfg.Approver,
		logger:      logger,
	}
}

// EnsureCaseForOrder opens a telemedicine case for the order if its
// patient carries a case-partner identity and no case is attached yet
func (s *CaseBridgeService) EnsureCaseForOrder(ctx context.Context, order *ordering.Order) error {
	if order.HasCase() {
		return nil
	}

	patient, err := s.patients.FindByID(ctx, order.UserID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Debug("No patient record for order, skipping case creation",
				zap.String("order_number", order.OrderNumber))
			return nil
		}
		return err
	}
	if !patient.HasCasePartnerIdentity() {
		s.logger.Debug("Patient has no case-partner identity, skipping case creation",
			zap.String("order_number", order.OrderNumber))
		return nil
	}

	created, err := s.client.CreateCase(ctx, CreateCaseInput{
		PatientPartnerID: patient.CasePartnerID,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create telemedicine case: %w", err)
	}

	if _, err := s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		o.AttachCase(created.CaseID)
		return nil
	}); err != nil {
		return err
	}

	s.logger.Info("Telemedicine case opened",
		zap.String("order_number", order.OrderNumber),
		zap.String("case_id", created.CaseID))
	return nil
}

// ProcessWebhook verifies, deduplicates and dispatches one partner event
func (s *CaseBridgeService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if err := s.verifier.Verify(payload, signature); err != nil {
		s.logger.Error("Failed to verify case-partner webhook signature", zap.Error(err))
		return nil, err
	}

	var event partnerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case-partner event: %w", err)
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: event.Type,
	}

	seen, err := s.ledger.Seen(ctx, event.ID)
	if err != nil {
		s.logger.Error("Duplicate ledger lookup failed",
			zap.String("event_id", event.ID), zap.Error(err))
	} else if seen {
		s.logger.Info("Duplicate case-partner event acknowledged",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type))
		result.Duplicate = true
		result.Message = "Duplicate event"
		return result, nil
	}

	s.logger.Info("Processing case-partner event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("case_id", event.CaseID))

	order, err := s.resolveOrder(ctx, event)
	if err != nil {
		if err == shared.ErrNotFound {
			// Partner events for cases we do not track are acknowledged
			s.logger.Warn("No order for case-partner event, skipping",
				zap.String("event_id", event.ID),
				zap.String("case_id", event.CaseID))
			result.Message = "No matching order"
			return result, nil
		}
		return result, err
	}

	switch event.Type {
	case EventCaseCreated:
		err = s.handleCaseCreated(ctx, order, event)
	case EventCaseAssigned, EventCaseProcessing:
		err = s.annotate(ctx, order, fmt.Sprintf("Telemedicine case %s: %s", event.CaseID, event.Type))
	case EventCaseApproved:
		err = s.handleCaseApproved(ctx, order, event)
	case EventCaseCompleted:
		err = s.handleCaseCompleted(ctx, order, event)
	case EventPrescriptionSubmitted:
		err = s.annotate(ctx, order, fmt.Sprintf("Prescription submitted for case %s", event.CaseID))
	case EventOfferingSubmitted:
		err = s.annotate(ctx, order, fmt.Sprintf("Offering submitted for case %s", event.CaseID))
	case EventMessageCreated:
		err = s.annotate(ctx, order, fmt.Sprintf("Case %s message: %s", event.CaseID, event.Message))
	default:
		s.logger.Debug("Unhandled case-partner event type",
			zap.String("event_type", event.Type))
		result.Message = "Event type not handled"
		return result, nil
	}

	if err != nil {
		s.logger.Error("Failed to process case-partner event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
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

// resolveOrder finds the order for a partner event, metadata order id
// first, stored case id as fallback
func (s *CaseBridgeService) resolveOrder(ctx context.Context, event partnerEvent) (*ordering.Order, error) {
	if raw := event.Metadata["order_id"]; raw != "" {
		if orderID, err := uuid.Parse(raw); err == nil {
			order, err := s.orders.FindByID(ctx, orderID)
			if err == nil {
				return order, nil
			}
			if err != shared.ErrNotFound {
				return nil, err
			}
		}
	}
	if event.CaseID == "" {
		return nil, shared.ErrNotFound
	}
	return s.orders.FindByCaseID(ctx, event.CaseID)
}

func (s *CaseBridgeService) handleCaseCreated(ctx context.Context, order *ordering.Order, event partnerEvent) error {
	_, err := s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		if !o.HasCase() {
			o.AttachCase(event.CaseID)
		}
		o.AppendNote(fmt.Sprintf("Telemedicine case %s created", event.CaseID))
		return nil
	})
	return err
}

// handleCaseApproved enters the human approval path: the partner's
// clinician made the clinical decision
func (s *CaseBridgeService) handleCaseApproved(ctx context.Context, order *ordering.Order, event partnerEvent) error {
	clinicianID := uuid.Nil
	if parsed, err := uuid.Parse(event.ClinicianID); err == nil {
		clinicianID = parsed
	}
	return s.approver.ApproveByClinician(ctx, order.ID, clinicianID)
}

// handleCaseCompleted moves a paid order into processing. Webhook
// delivery order is not guaranteed, so a completion arriving before the
// order is paid is annotated and deferred rather than rejected.
func (s *CaseBridgeService) handleCaseCompleted(ctx context.Context, order *ordering.Order, event partnerEvent) error {
	if order.Status == ordering.OrderStatusPaid {
		_, err := s.transitions.RequestTransition(ctx, order.ID,
			ordering.OrderStatusProcessing, ordering.CauseCaseWebhook)
		return err
	}

	s.logger.Warn("Case completed for order not in paid status; deferring",
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.Status.String()))
	return s.annotate(ctx, order,
		fmt.Sprintf("Telemedicine case %s completed while order was %s", event.CaseID, order.Status))
}

func (s *CaseBridgeService) annotate(ctx context.Context, order *ordering.Order, note string) error {
	_, err := s.transitions.Perform(ctx, order.ID, func(o *ordering.Order) error {
		o.AppendNote(note)
		return nil
	})
	return err
}
