package ordering

import (
	"context"

	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber finds an order by its human-readable number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindByPaymentIntentID finds the order correlated with a processor
	// payment-intent ID
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Order, error)

	// FindByCaseID finds the order correlated with a telemedicine case ID
	FindByCaseID(ctx context.Context, caseID string) (*Order, error)

	// FindAutoApprovalCandidates returns a bounded batch of orders in paid
	// status that have not yet been auto-approved, oldest first
	FindAutoApprovalCandidates(ctx context.Context, limit int) ([]Order, error)

	// FindAll lists orders with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)

	// Save creates or updates an order
	Save(ctx context.Context, order *Order) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, order *Order) error
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByProcessorPaymentID finds a payment by the processor's ID
	FindByProcessorPaymentID(ctx context.Context, processorPaymentID string) (*Payment, error)

	// FindByOrderID finds the payment for an order
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)

	// Save creates or updates a payment
	Save(ctx context.Context, payment *Payment) error
}
