package ordering

import (
	"context"

	"github.com/google/uuid"
)

// Realtime event names broadcast to connected clients
const (
	NotifyOrderCreated       = "order:created"
	NotifyOrderUpdated       = "order:updated"
	NotifyOrderApproved      = "order:approved"
	NotifyOrderStatusChanged = "order:status-changed"
	NotifyOrderNotesAdded    = "order:notes-added"
)

// OrderEventPayload is the payload broadcast with every realtime order event
type OrderEventPayload struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	UserID       uuid.UUID `json:"userId"`
	ClinicID     uuid.UUID `json:"clinicId"`
	Status       string    `json:"status"`
	AutoApproved *bool     `json:"autoApproved,omitempty"`
}

// NewOrderEventPayload builds the broadcast payload for an order
func NewOrderEventPayload(order *Order) OrderEventPayload {
	payload := OrderEventPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		ClinicID:    order.ClinicID,
		Status:      string(order.Status),
	}
	if order.ApprovedByDoctor {
		auto := order.AutoApprovedByDoctor
		payload.AutoApproved = &auto
	}
	return payload
}

// Notifier broadcasts order lifecycle events to connected clients.
// Emit is fire-and-forget: implementations must never block the caller
// on slow consumers, and a failure to notify never fails the underlying
// transition.
type Notifier interface {
	Emit(ctx context.Context, eventName string, payload OrderEventPayload)
}

// NopNotifier discards all events
type NopNotifier struct{}

// Emit implements Notifier
func (NopNotifier) Emit(context.Context, string, OrderEventPayload) {}
