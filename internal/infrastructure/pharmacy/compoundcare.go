package pharmacy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	appfulfillment "github.com/carebridge/backend/internal/application/fulfillment"
	"github.com/carebridge/backend/internal/domain/fulfillment"
)

// documentLinkTTL bounds how long the intake team's download link stays
// valid. Sized to cover a long weekend.
const documentLinkTTL = 96 * time.Hour

// CompoundCareIntegration is the manual fulfillment path: instead of an
// order API, an order document is rendered, stored, and surfaced to the
// pharmacy's intake team. The partner order ID is derived from the order
// number because CompoundCare echoes it back in status webhooks.
type CompoundCareIntegration struct {
	storage appfulfillment.DocumentStorage
	logger  *zap.Logger
}

// NewCompoundCareIntegration creates the CompoundCare integration
func NewCompoundCareIntegration(storage appfulfillment.DocumentStorage, logger *zap.Logger) (*CompoundCareIntegration, error) {
	if storage == nil {
		return nil, fmt.Errorf("compoundcare: document storage is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompoundCareIntegration{storage: storage, logger: logger}, nil
}

// Partner returns the partner this integration submits to
func (i *CompoundCareIntegration) Partner() fulfillment.PharmacyPartner {
	return fulfillment.PartnerCompoundCare
}

// orderDocument is the rendered intake document shape
type orderDocument struct {
	PartnerOrderID string    `json:"partner_order_id"`
	OrderNumber    string    `json:"order_number"`
	SubmittedAt    time.Time `json:"submitted_at"`

	Patient struct {
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		DateOfBirth string `json:"date_of_birth"`
		Email       string `json:"email,omitempty"`
		Phone       string `json:"phone,omitempty"`
	} `json:"patient"`

	Medication struct {
		Name       string `json:"name"`
		DosageMg   string `json:"dosage_mg"`
		Compounded bool   `json:"compounded"`
	} `json:"medication"`
}

// SubmitOrder renders and stores the order document for CompoundCare's
// intake team
func (i *CompoundCareIntegration) SubmitOrder(ctx context.Context, req fulfillment.DispatchRequest) (*fulfillment.DispatchResult, error) {
	partnerOrderID := "cc-" + req.Order.OrderNumber

	doc := orderDocument{
		PartnerOrderID: partnerOrderID,
		OrderNumber:    req.Order.OrderNumber,
		SubmittedAt:    time.Now().UTC(),
	}
	doc.Patient.FirstName = req.Patient.FirstName
	doc.Patient.LastName = req.Patient.LastName
	doc.Patient.DateOfBirth = req.Patient.DateOfBirth
	doc.Patient.Email = req.Patient.Email
	doc.Patient.Phone = req.Patient.Phone
	doc.Medication.Name = req.Treatment.Name
	doc.Medication.DosageMg = req.Treatment.DosageMg.String()
	doc.Medication.Compounded = req.Treatment.Compounded

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("compoundcare: failed to render order document: %w", err)
	}

	storageKey := fmt.Sprintf("compoundcare/orders/%s.json", req.Order.OrderNumber)
	if err := i.storage.Upload(ctx, storageKey, data, "application/json"); err != nil {
		return nil, fmt.Errorf("compoundcare: failed to store order document: %w", err)
	}

	documentURL, _, err := i.storage.GenerateDownloadURL(ctx, storageKey, documentLinkTTL)
	if err != nil {
		return nil, fmt.Errorf("compoundcare: failed to generate document link: %w", err)
	}

	// The intake team works off this log stream
	i.logger.Info("Order document ready for CompoundCare intake",
		zap.String("order_number", req.Order.OrderNumber),
		zap.String("partner_order_id", partnerOrderID),
		zap.String("document_url", documentURL))

	return &fulfillment.DispatchResult{
		PartnerOrderID: partnerOrderID,
		DocumentURL:    documentURL,
	}, nil
}

var _ fulfillment.Integration = (*CompoundCareIntegration)(nil)
