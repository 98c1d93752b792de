package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/backend/internal/domain/fulfillment"
)

// ShippingOrderModel is the persistence model for the ShippingOrder entity
type ShippingOrderModel struct {
	BaseModel
	OrderID uuid.UUID `gorm:"type:uuid;not null;index"`

	Partner        fulfillment.PharmacyPartner `gorm:"type:varchar(50);not null;uniqueIndex:idx_shipping_partner_order,priority:1"`
	PartnerOrderID string                      `gorm:"type:varchar(255);not null;uniqueIndex:idx_shipping_partner_order,priority:2"`

	Status         fulfillment.ShippingOrderStatus `gorm:"type:varchar(20);not null;index"`
	TrackingNumber string                          `gorm:"type:varchar(100)"`
	DocumentURL    string                          `gorm:"type:text"`
	ProblemReason  string                          `gorm:"type:text"`
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}

// TableName returns the table name for GORM
func (ShippingOrderModel) TableName() string {
	return "shipping_orders"
}

// ToDomain converts the persistence model to a domain ShippingOrder
func (m *ShippingOrderModel) ToDomain() *fulfillment.ShippingOrder {
	return &fulfillment.ShippingOrder{
		BaseEntity:     m.BaseModel.ToDomain(),
		OrderID:        m.OrderID,
		Partner:        m.Partner,
		PartnerOrderID: m.PartnerOrderID,
		Status:         m.Status,
		TrackingNumber: m.TrackingNumber,
		DocumentURL:    m.DocumentURL,
		ProblemReason:  m.ProblemReason,
		ShippedAt:      m.ShippedAt,
		DeliveredAt:    m.DeliveredAt,
	}
}

// FromDomain populates the persistence model from a domain ShippingOrder
func (m *ShippingOrderModel) FromDomain(shippingOrder *fulfillment.ShippingOrder) {
	m.FromDomainBaseEntity(shippingOrder.BaseEntity)
	m.OrderID = shippingOrder.OrderID
	m.Partner = shippingOrder.Partner
	m.PartnerOrderID = shippingOrder.PartnerOrderID
	m.Status = shippingOrder.Status
	m.TrackingNumber = shippingOrder.TrackingNumber
	m.DocumentURL = shippingOrder.DocumentURL
	m.ProblemReason = shippingOrder.ProblemReason
	m.ShippedAt = shippingOrder.ShippedAt
	m.DeliveredAt = shippingOrder.DeliveredAt
}
