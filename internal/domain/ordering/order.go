package ordering

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of a treatment order
type OrderStatus string

const (
	OrderStatusPending              OrderStatus = "pending"
	OrderStatusPaymentProcessing    OrderStatus = "payment_processing"
	OrderStatusAuthorizedCapturable OrderStatus = "authorized_capturable"
	OrderStatusPaid                 OrderStatus = "paid"
	OrderStatusProcessing           OrderStatus = "processing"
	OrderStatusShipped              OrderStatus = "shipped"
	OrderStatusDelivered            OrderStatus = "delivered"
	OrderStatusPaymentDue           OrderStatus = "payment_due"
	OrderStatusCancelled            OrderStatus = "cancelled"
	OrderStatusRefunded             OrderStatus = "refunded"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaymentProcessing, OrderStatusAuthorizedCapturable,
		OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusPaymentDue, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses that accept no further transitions
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusPaymentProcessing ||
			target == OrderStatusAuthorizedCapturable ||
			target == OrderStatusPaid ||
			target == OrderStatusCancelled
	case OrderStatusPaymentProcessing:
		return target == OrderStatusAuthorizedCapturable ||
			target == OrderStatusPaid ||
			target == OrderStatusPaymentDue ||
			target == OrderStatusCancelled
	case OrderStatusAuthorizedCapturable:
		return target == OrderStatusPaid ||
			target == OrderStatusPaymentDue ||
			target == OrderStatusCancelled
	case OrderStatusPaid:
		return target == OrderStatusProcessing ||
			target == OrderStatusCancelled ||
			target == OrderStatusRefunded
	case OrderStatusProcessing:
		return target == OrderStatusShipped ||
			target == OrderStatusCancelled ||
			target == OrderStatusRefunded
	case OrderStatusShipped:
		return target == OrderStatusDelivered ||
			target == OrderStatusRefunded
	case OrderStatusPaymentDue:
		return target == OrderStatusPaymentProcessing ||
			target == OrderStatusPaid ||
			target == OrderStatusCancelled
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return false // Terminal states
	}
	return false
}

// TransitionCause identifies the single causal event behind a status
// transition: a webhook, an approval request, or a capture result.
type TransitionCause string

const (
	CausePaymentWebhook   TransitionCause = "payment_webhook"
	CauseCaseWebhook      TransitionCause = "case_webhook"
	CausePharmacyWebhook  TransitionCause = "pharmacy_webhook"
	CauseManualApproval   TransitionCause = "manual_approval"
	CauseAutoApproval     TransitionCause = "auto_approval"
	CauseCaptureResult    TransitionCause = "capture_result"
	CauseFulfillmentEvent TransitionCause = "fulfillment_dispatch"
)

// Order represents a patient's treatment purchase and its fulfillment.
// It is the single serialization point for order status: status is only
// ever mutated through TransitionTo.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber string
	UserID      uuid.UUID
	ClinicID    uuid.UUID

	// Linkage required for clinical approval
	TreatmentID         *uuid.UUID
	ShippingAddressID   *uuid.UUID
	AssignedClinicianID *uuid.UUID

	Status OrderStatus

	// Monetary amounts are immutable once a payment is captured against them
	SubtotalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	CapturedAmount decimal.Decimal
	Currency       string

	// Clinical approval flags. Auto-approval sets both flags; human
	// approval sets only ApprovedByDoctor.
	ApprovedByDoctor     bool
	AutoApprovedByDoctor bool
	AutoApprovalReason   string

	// External correlation
	PaymentIntentID string
	CaseID          string

	// Billing price linkage captured at checkout time, used to create the
	// recurring subscription after capture
	BillingPriceID  string
	BillingInterval string

	PaidAt       *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	RefundedAt   *time.Time
	CancelReason string

	// Notes accumulate partner and clinician annotations
	Notes []string
}

// NewOrder creates a new order in pending status
func NewOrder(userID, clinicID uuid.UUID, total decimal.Decimal, currency string) (*Order, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if clinicID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLINIC", "Clinic ID cannot be empty")
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Order total cannot be negative")
	}
	if currency == "" {
		currency = "usd"
	}

	order := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       GenerateOrderNumber(),
		UserID:            userID,
		ClinicID:          clinicID,
		Status:            OrderStatusPending,
		SubtotalAmount:    total,
		DiscountAmount:    decimal.Zero,
		TaxAmount:         decimal.Zero,
		ShippingAmount:    decimal.Zero,
		TotalAmount:       total,
		CapturedAmount:    decimal.Zero,
		Currency:          currency,
	}

	order.AddDomainEvent(NewOrderCreatedEvent(order))

	return order, nil
}

// GenerateOrderNumber builds a human-readable order number from the
// current time and a random suffix
func GenerateOrderNumber() string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return "ORD-" + time.Now().UTC().Format("20060102-150405") + "-" + hex.EncodeToString(suffix)
}

// TransitionTo requests a status transition on the order.
//
// Requesting the current status again is a no-op, not an error. Illegal
// transitions are rejected with an error identifying both the current and
// the requested status. Side effects (timestamp stamping, the status
// changed event) run only when the status actually changes.
func (o *Order) TransitionTo(target OrderStatus, cause TransitionCause) error {
	if !target.IsValid() {
		return shared.NewDomainErrorf("INVALID_STATUS", "Unknown order status %q", target)
	}
	if o.Status == target {
		return nil
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainErrorf("ILLEGAL_TRANSITION",
			"Order %s cannot transition from %s to %s", o.OrderNumber, o.Status, target)
	}

	previous := o.Status
	o.Status = target
	now := time.Now()

	switch target {
	case OrderStatusPaid:
		o.PaidAt = &now
	case OrderStatusShipped:
		o.ShippedAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	case OrderStatusRefunded:
		o.RefundedAt = &now
	}

	o.UpdatedAt = now
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, previous, cause))

	return nil
}

// Approve records a human clinical-approval decision
func (o *Order) Approve(clinicianID uuid.UUID) error {
	if o.Status.IsTerminal() {
		return shared.NewDomainErrorf("INVALID_STATE",
			"Cannot approve order %s in terminal status %s", o.OrderNumber, o.Status)
	}
	if o.ApprovedByDoctor {
		return nil
	}

	o.ApprovedByDoctor = true
	if clinicianID != uuid.Nil {
		o.AssignedClinicianID = &clinicianID
	}
	o.UpdatedAt = time.Now()
	o.AddDomainEvent(NewOrderApprovedEvent(o, false))

	return nil
}

// AutoApprove records a policy-driven clinical-approval decision.
// Only orders in paid status that have not already been auto-approved are
// eligible.
func (o *Order) AutoApprove(reason string) error {
	if o.Status != OrderStatusPaid {
		return shared.NewDomainErrorf("INVALID_STATE",
			"Cannot auto-approve order %s in status %s", o.OrderNumber, o.Status)
	}
	if o.AutoApprovedByDoctor {
		return shared.NewDomainErrorf("ALREADY_AUTO_APPROVED",
			"Order %s has already been auto-approved", o.OrderNumber)
	}

	o.ApprovedByDoctor = true
	o.AutoApprovedByDoctor = true
	o.AutoApprovalReason = reason
	o.UpdatedAt = time.Now()
	o.AddDomainEvent(NewOrderApprovedEvent(o, true))

	return nil
}

// RevertAutoApproval undoes a partially-committed auto-approval so the
// order is not left flagged without the approval path having completed.
// hadClinicianApproval is the approval flag as it stood before the engine
// touched the order: a clinician's decision granted earlier is restored,
// never wiped by an engine-side failure.
func (o *Order) RevertAutoApproval(hadClinicianApproval bool) {
	o.ApprovedByDoctor = hadClinicianApproval
	o.AutoApprovedByDoctor = false
	o.AutoApprovalReason = ""
	o.UpdatedAt = time.Now()
}

// RecordCapture accumulates a captured amount against the order total.
// The total captured amount can never exceed TotalAmount.
func (o *Order) RecordCapture(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Capture amount must be positive")
	}
	captured := o.CapturedAmount.Add(amount)
	if captured.GreaterThan(o.TotalAmount) {
		return shared.NewDomainErrorf("CAPTURE_EXCEEDS_TOTAL",
			"Capture of %s would exceed order total %s", amount, o.TotalAmount)
	}
	o.CapturedAmount = captured
	o.UpdatedAt = time.Now()
	return nil
}

// AttachPaymentIntent stores the processor's payment-intent correlation ID
func (o *Order) AttachPaymentIntent(paymentIntentID string) {
	o.PaymentIntentID = paymentIntentID
	o.UpdatedAt = time.Now()
}

// AttachCase stores the telemedicine partner's case correlation ID
func (o *Order) AttachCase(caseID string) {
	o.CaseID = caseID
	o.UpdatedAt = time.Now()
}

// SetBillingPrice records the billing price linkage chosen at checkout
func (o *Order) SetBillingPrice(priceID, interval string) {
	o.BillingPriceID = priceID
	o.BillingInterval = interval
	o.UpdatedAt = time.Now()
}

// AppendNote adds an annotation to the order's note trail
func (o *Order) AppendNote(note string) {
	if note == "" {
		return
	}
	o.Notes = append(o.Notes, note)
	o.UpdatedAt = time.Now()
	o.AddDomainEvent(NewOrderNotesAddedEvent(o, note))
}

// SetCancelReason records why the order was cancelled
func (o *Order) SetCancelReason(reason string) {
	o.CancelReason = reason
	o.UpdatedAt = time.Now()
}

// IsPaid returns true if the order has reached paid or a later status
func (o *Order) IsPaid() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// HasCase returns true if a telemedicine case is attached
func (o *Order) HasCase() bool {
	return o.CaseID != ""
}
