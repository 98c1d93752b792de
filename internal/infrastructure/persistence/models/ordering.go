package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
)

// OrderModel is the persistence model for the Order aggregate
type OrderModel struct {
	AggregateModel
	OrderNumber string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ClinicID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TreatmentID *uuid.UUID `gorm:"type:uuid;index"`

	ShippingAddressID   *uuid.UUID `gorm:"type:uuid"`
	AssignedClinicianID *uuid.UUID `gorm:"type:uuid"`

	Status ordering.OrderStatus `gorm:"type:varchar(30);not null;index"`

	SubtotalAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CapturedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string          `gorm:"type:varchar(10);not null;default:'usd'"`

	ApprovedByDoctor     bool   `gorm:"not null;default:false"`
	AutoApprovedByDoctor bool   `gorm:"not null;default:false;index"`
	AutoApprovalReason   string `gorm:"type:text"`

	PaymentIntentID string `gorm:"type:varchar(255);index"`
	CaseID          string `gorm:"type:varchar(255);index"`

	BillingPriceID  string `gorm:"type:varchar(255)"`
	BillingInterval string `gorm:"type:varchar(20)"`

	PaidAt       *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	RefundedAt   *time.Time
	CancelReason string `gorm:"type:text"`

	Notes []string `gorm:"serializer:json;type:text"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *ordering.Order {
	return &ordering.Order{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		OrderNumber:          m.OrderNumber,
		UserID:               m.UserID,
		ClinicID:             m.ClinicID,
		TreatmentID:          m.TreatmentID,
		ShippingAddressID:    m.ShippingAddressID,
		AssignedClinicianID:  m.AssignedClinicianID,
		Status:               m.Status,
		SubtotalAmount:       m.SubtotalAmount,
		DiscountAmount:       m.DiscountAmount,
		TaxAmount:            m.TaxAmount,
		ShippingAmount:       m.ShippingAmount,
		TotalAmount:          m.TotalAmount,
		CapturedAmount:       m.CapturedAmount,
		Currency:             m.Currency,
		ApprovedByDoctor:     m.ApprovedByDoctor,
		AutoApprovedByDoctor: m.AutoApprovedByDoctor,
		AutoApprovalReason:   m.AutoApprovalReason,
		PaymentIntentID:      m.PaymentIntentID,
		CaseID:               m.CaseID,
		BillingPriceID:       m.BillingPriceID,
		BillingInterval:      m.BillingInterval,
		PaidAt:               m.PaidAt,
		ShippedAt:            m.ShippedAt,
		DeliveredAt:          m.DeliveredAt,
		CancelledAt:          m.CancelledAt,
		RefundedAt:           m.RefundedAt,
		CancelReason:         m.CancelReason,
		Notes:                m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(order *ordering.Order) {
	m.FromDomainAggregateRoot(order.BaseAggregateRoot)
	m.OrderNumber = order.OrderNumber
	m.UserID = order.UserID
	m.ClinicID = order.ClinicID
	m.TreatmentID = order.TreatmentID
	m.ShippingAddressID = order.ShippingAddressID
	m.AssignedClinicianID = order.AssignedClinicianID
	m.Status = order.Status
	m.SubtotalAmount = order.SubtotalAmount
	m.DiscountAmount = order.DiscountAmount
	m.TaxAmount = order.TaxAmount
	m.ShippingAmount = order.ShippingAmount
	m.TotalAmount = order.TotalAmount
	m.CapturedAmount = order.CapturedAmount
	m.Currency = order.Currency
	m.ApprovedByDoctor = order.ApprovedByDoctor
	m.AutoApprovedByDoctor = order.AutoApprovedByDoctor
	m.AutoApprovalReason = order.AutoApprovalReason
	m.PaymentIntentID = order.PaymentIntentID
	m.CaseID = order.CaseID
	m.BillingPriceID = order.BillingPriceID
	m.BillingInterval = order.BillingInterval
	m.PaidAt = order.PaidAt
	m.ShippedAt = order.ShippedAt
	m.DeliveredAt = order.DeliveredAt
	m.CancelledAt = order.CancelledAt
	m.RefundedAt = order.RefundedAt
	m.CancelReason = order.CancelReason
	m.Notes = order.Notes
}

// PaymentModel is the persistence model for the Payment entity
type PaymentModel struct {
	BaseModel
	OrderID            *uuid.UUID             `gorm:"type:uuid;index"`
	SubscriptionRef    string                 `gorm:"type:varchar(255);index"`
	ProcessorPaymentID string                 `gorm:"type:varchar(255);not null;uniqueIndex"`
	Status             ordering.PaymentStatus `gorm:"type:varchar(20);not null"`
	Amount             decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	Currency           string                 `gorm:"type:varchar(10);not null;default:'usd'"`
	FailureReason      string                 `gorm:"type:text"`
	AuthorizedAt       *time.Time
	CapturedAt         *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *ordering.Payment {
	return &ordering.Payment{
		BaseEntity:         m.BaseModel.ToDomain(),
		OrderID:            m.OrderID,
		SubscriptionRef:    m.SubscriptionRef,
		ProcessorPaymentID: m.ProcessorPaymentID,
		Status:             m.Status,
		Amount:             m.Amount,
		Currency:           m.Currency,
		FailureReason:      m.FailureReason,
		AuthorizedAt:       m.AuthorizedAt,
		CapturedAt:         m.CapturedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(payment *ordering.Payment) {
	m.FromDomainBaseEntity(payment.BaseEntity)
	m.OrderID = payment.OrderID
	m.SubscriptionRef = payment.SubscriptionRef
	m.ProcessorPaymentID = payment.ProcessorPaymentID
	m.Status = payment.Status
	m.Amount = payment.Amount
	m.Currency = payment.Currency
	m.FailureReason = payment.FailureReason
	m.AuthorizedAt = payment.AuthorizedAt
	m.CapturedAt = payment.CapturedAt
}
