package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
)

// OrderResponse is the transport shape of a treatment order
type OrderResponse struct {
	ID                   string          `json:"id"`
	OrderNumber          string          `json:"order_number"`
	UserID               string          `json:"user_id"`
	ClinicID             string          `json:"clinic_id"`
	TreatmentID          *string         `json:"treatment_id,omitempty"`
	Status               string          `json:"status"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	CapturedAmount       decimal.Decimal `json:"captured_amount"`
	Currency             string          `json:"currency"`
	ApprovedByDoctor     bool            `json:"approved_by_doctor"`
	AutoApprovedByDoctor bool            `json:"auto_approved_by_doctor"`
	AutoApprovalReason   string          `json:"auto_approval_reason,omitempty"`
	PaymentIntentID      string          `json:"payment_intent_id,omitempty"`
	CaseID               string          `json:"case_id,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	ShippedAt            *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason         string          `json:"cancel_reason,omitempty"`
	Notes                []string        `json:"notes,omitempty"`
	Version              int             `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewOrderResponse converts a domain order to its transport shape
func NewOrderResponse(order *ordering.Order) OrderResponse {
	resp := OrderResponse{
		ID:                   order.ID.String(),
		OrderNumber:          order.OrderNumber,
		UserID:               order.UserID.String(),
		ClinicID:             order.ClinicID.String(),
		Status:               order.Status.String(),
		TotalAmount:          order.TotalAmount,
		CapturedAmount:       order.CapturedAmount,
		Currency:             order.Currency,
		ApprovedByDoctor:     order.ApprovedByDoctor,
		AutoApprovedByDoctor: order.AutoApprovedByDoctor,
		AutoApprovalReason:   order.AutoApprovalReason,
		PaymentIntentID:      order.PaymentIntentID,
		CaseID:               order.CaseID,
		PaidAt:               order.PaidAt,
		ShippedAt:            order.ShippedAt,
		DeliveredAt:          order.DeliveredAt,
		CancelledAt:          order.CancelledAt,
		CancelReason:         order.CancelReason,
		Notes:                order.Notes,
		Version:              order.Version,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
	if order.TreatmentID != nil {
		id := order.TreatmentID.String()
		resp.TreatmentID = &id
	}
	return resp
}

// ShippingOrderResponse is the transport shape of a shipping order
type ShippingOrderResponse struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	Partner        string     `json:"partner"`
	PartnerOrderID string     `json:"partner_order_id"`
	Status         string     `json:"status"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	DocumentURL    string     `json:"document_url,omitempty"`
	ProblemReason  string     `json:"problem_reason,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewShippingOrderResponse converts a domain shipping order to its
// transport shape
func NewShippingOrderResponse(shippingOrder *fulfillment.ShippingOrder) ShippingOrderResponse {
	return ShippingOrderResponse{
		ID:             shippingOrder.ID.String(),
		OrderID:        shippingOrder.OrderID.String(),
		Partner:        shippingOrder.Partner.String(),
		PartnerOrderID: shippingOrder.PartnerOrderID,
		Status:         shippingOrder.Status.String(),
		TrackingNumber: shippingOrder.TrackingNumber,
		DocumentURL:    shippingOrder.DocumentURL,
		ProblemReason:  shippingOrder.ProblemReason,
		ShippedAt:      shippingOrder.ShippedAt,
		DeliveredAt:    shippingOrder.DeliveredAt,
		CreatedAt:      shippingOrder.CreatedAt,
		UpdatedAt:      shippingOrder.UpdatedAt,
	}
}

// ApproveOrderRequest is the body for a manual clinical approval
type ApproveOrderRequest struct {
	ClinicianID string `json:"clinician_id" binding:"required,uuid"`
}

// ListOrdersRequest carries list filters for orders
type ListOrdersRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Status   string `form:"status"`
	UserID   string `form:"user_id" binding:"omitempty,uuid"`
	ClinicID string `form:"clinic_id" binding:"omitempty,uuid"`
}
