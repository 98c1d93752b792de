package fulfillment

import (
	"context"
	"strings"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/ordering"
)

// PharmacyPartner identifies a fulfillment partner in the closed set of
// supported integrations. Routing decisions resolve to this enum rather
// than matching on free-form provider strings.
type PharmacyPartner string

const (
	// PartnerPharmaDirect submits orders through the partner's order API
	PartnerPharmaDirect PharmacyPartner = "pharmadirect"
	// PartnerCompoundCare is a manual partner: order documents are
	// generated and logged for the pharmacy's intake team
	PartnerCompoundCare PharmacyPartner = "compoundcare"
)

// IsValid returns true if the partner is in the supported set
func (p PharmacyPartner) IsValid() bool {
	switch p {
	case PartnerPharmaDirect, PartnerCompoundCare:
		return true
	}
	return false
}

// String returns the string representation of PharmacyPartner
func (p PharmacyPartner) String() string {
	return string(p)
}

// PartnerFromLegacyProvider maps the legacy per-treatment provider field
// onto the partner enum. Orders predating product-level coverage routing
// carry only this field.
func PartnerFromLegacyProvider(provider string) (PharmacyPartner, bool) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "pharmadirect", "pharma_direct":
		return PartnerPharmaDirect, true
	case "compoundcare", "compound_care", "compounding":
		return PartnerCompoundCare, true
	}
	return "", false
}

// DispatchRequest carries everything a partner integration needs to
// submit an order
type DispatchRequest struct {
	Order     *ordering.Order
	Patient   *clinical.Patient
	Treatment *clinical.Treatment
}

// DispatchResult is the outcome of a successful partner submission
type DispatchResult struct {
	PartnerOrderID string
	DocumentURL    string
}

// Integration is the uniform contract every pharmacy partner implements:
// given an order, either succeed with the partner's order ID or fail with
// a reason, leaving the order's clinical approval intact and the
// fulfillment step retryable.
type Integration interface {
	// Partner returns the partner this integration submits to
	Partner() PharmacyPartner

	// SubmitOrder submits the order to the partner
	SubmitOrder(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}
