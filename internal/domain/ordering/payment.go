package ordering

import (
	"time"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus mirrors the processor's view of a payment
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusDisputed   PaymentStatus = "disputed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusSucceeded,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusDisputed,
		PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment tracks one processor payment, one-to-one with an order (or with
// a brand billing subscription, a sibling flow sharing this entity).
// It is updated only by webhook handlers reacting to processor events,
// never speculatively written by request handlers.
type Payment struct {
	shared.BaseEntity
	OrderID            *uuid.UUID
	SubscriptionRef    string
	ProcessorPaymentID string
	Status             PaymentStatus
	Amount             decimal.Decimal
	Currency           string
	FailureReason      string
	AuthorizedAt       *time.Time
	CapturedAt         *time.Time
}

// NewPayment creates a payment record for an order
func NewPayment(orderID uuid.UUID, processorPaymentID string, amount decimal.Decimal, currency string) (*Payment, error) {
	if processorPaymentID == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_ID", "Processor payment ID cannot be empty")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}

	id := orderID
	return &Payment{
		BaseEntity:         shared.NewBaseEntity(),
		OrderID:            &id,
		ProcessorPaymentID: processorPaymentID,
		Status:             PaymentStatusPending,
		Amount:             amount,
		Currency:           currency,
	}, nil
}

// MarkAuthorized records that the payment is authorized but not captured
func (p *Payment) MarkAuthorized() {
	now := time.Now()
	p.Status = PaymentStatusAuthorized
	p.AuthorizedAt = &now
	p.Touch()
}

// MarkSucceeded records a completed capture
func (p *Payment) MarkSucceeded() {
	now := time.Now()
	p.Status = PaymentStatusSucceeded
	p.CapturedAt = &now
	p.Touch()
}

// MarkFailed records a failed payment with the processor's reason
func (p *Payment) MarkFailed(reason string) {
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.Touch()
}

// MarkCancelled records a cancelled payment
func (p *Payment) MarkCancelled() {
	p.Status = PaymentStatusCancelled
	p.Touch()
}

// MarkDisputed records a dispute opened against the payment
func (p *Payment) MarkDisputed() {
	p.Status = PaymentStatusDisputed
	p.Touch()
}

// MarkRefunded records a refunded payment
func (p *Payment) MarkRefunded() {
	p.Status = PaymentStatusRefunded
	p.Touch()
}
