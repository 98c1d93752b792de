package fulfillment

import (
	"context"

	"github.com/google/uuid"
)

// ShippingOrderRepository defines the interface for shipping order persistence
type ShippingOrderRepository interface {
	// FindByID finds a shipping order by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*ShippingOrder, error)

	// FindByPartnerOrderID finds a shipping order by the partner's own
	// order identifier
	FindByPartnerOrderID(ctx context.Context, partner PharmacyPartner, partnerOrderID string) (*ShippingOrder, error)

	// FindByOrderID finds all shipping orders for an order, newest first
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]ShippingOrder, error)

	// Save creates or updates a shipping order
	Save(ctx context.Context, shippingOrder *ShippingOrder) error
}
