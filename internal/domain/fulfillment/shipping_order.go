package fulfillment

import (
	"time"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ShippingOrderStatus represents the fulfillment partner's view of a
// dispatched order
type ShippingOrderStatus string

const (
	ShippingStatusPending    ShippingOrderStatus = "pending"
	ShippingStatusProcessing ShippingOrderStatus = "processing"
	ShippingStatusFilled     ShippingOrderStatus = "filled"
	ShippingStatusApproved   ShippingOrderStatus = "approved"
	ShippingStatusShipped    ShippingOrderStatus = "shipped"
	ShippingStatusDelivered  ShippingOrderStatus = "delivered"
	ShippingStatusCancelled  ShippingOrderStatus = "cancelled"
	ShippingStatusRejected   ShippingOrderStatus = "rejected"
	ShippingStatusProblem    ShippingOrderStatus = "problem"
	ShippingStatusCompleted  ShippingOrderStatus = "completed"
)

// IsValid checks if the status is a valid ShippingOrderStatus
func (s ShippingOrderStatus) IsValid() bool {
	switch s {
	case ShippingStatusPending, ShippingStatusProcessing, ShippingStatusFilled,
		ShippingStatusApproved, ShippingStatusShipped, ShippingStatusDelivered,
		ShippingStatusCancelled, ShippingStatusRejected, ShippingStatusProblem,
		ShippingStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of ShippingOrderStatus
func (s ShippingOrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that accept no further updates
func (s ShippingOrderStatus) IsTerminal() bool {
	switch s {
	case ShippingStatusDelivered, ShippingStatusCancelled, ShippingStatusRejected,
		ShippingStatusCompleted:
		return true
	}
	return false
}

// BlocksRedispatch reports whether a shipping order in this status stands
// in for an active dispatch. Terminal statuses and problem rows do not: a
// problem report leaves the dispatch retryable, and the partner either
// resolves the problem row or the retry supersedes it.
func (s ShippingOrderStatus) BlocksRedispatch() bool {
	return !s.IsTerminal() && s != ShippingStatusProblem
}

// ShippingOrder records one dispatch attempt to a pharmacy partner.
// An order may have multiple, one per attempt. Created by the dispatcher;
// updated only by partner webhook events.
type ShippingOrder struct {
	shared.BaseEntity
	OrderID        uuid.UUID
	Partner        PharmacyPartner
	PartnerOrderID string
	Status         ShippingOrderStatus
	TrackingNumber string
	DocumentURL    string
	ProblemReason  string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}

// NewShippingOrder creates a shipping order for a successful dispatch
func NewShippingOrder(orderID uuid.UUID, partner PharmacyPartner, partnerOrderID string) (*ShippingOrder, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if !partner.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_PARTNER", "Unknown pharmacy partner %q", partner)
	}
	if partnerOrderID == "" {
		return nil, shared.NewDomainError("INVALID_PARTNER_ORDER_ID", "Partner order ID cannot be empty")
	}

	return &ShippingOrder{
		BaseEntity:     shared.NewBaseEntity(),
		OrderID:        orderID,
		Partner:        partner,
		PartnerOrderID: partnerOrderID,
		Status:         ShippingStatusPending,
	}, nil
}

// ApplyPartnerStatus applies a status reported by the partner.
// Reporting the current status again is a no-op. Terminal statuses accept
// no further updates.
func (so *ShippingOrder) ApplyPartnerStatus(status ShippingOrderStatus) error {
	if !status.IsValid() {
		return shared.NewDomainErrorf("INVALID_STATUS", "Unknown shipping status %q", status)
	}
	if so.Status == status {
		return nil
	}
	if so.Status.IsTerminal() {
		return shared.NewDomainErrorf("ILLEGAL_TRANSITION",
			"Shipping order %s cannot leave terminal status %s", so.PartnerOrderID, so.Status)
	}

	so.Status = status
	now := time.Now()
	switch status {
	case ShippingStatusShipped:
		so.ShippedAt = &now
	case ShippingStatusDelivered:
		so.DeliveredAt = &now
	}
	so.Touch()

	return nil
}

// SetTrackingNumber records the carrier tracking number
func (so *ShippingOrder) SetTrackingNumber(tracking string) {
	so.TrackingNumber = tracking
	so.Touch()
}

// SetProblem records the partner's problem reason
func (so *ShippingOrder) SetProblem(reason string) {
	so.ProblemReason = reason
	so.Touch()
}
