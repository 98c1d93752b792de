package ordering

import (
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderStatusChanged = "OrderStatusChanged"
	EventTypeOrderApproved      = "OrderApproved"
	EventTypeOrderNotesAdded    = "OrderNotesAdded"
)

// OrderCreatedEvent is raised when a new order is placed
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	ClinicID    uuid.UUID       `json:"clinic_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(order *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		ClinicID:        order.ClinicID,
		TotalAmount:     order.TotalAmount,
	}
}

// EventType returns the event type name
func (e *OrderCreatedEvent) EventType() string {
	return EventTypeOrderCreated
}

// OrderStatusChangedEvent is raised on every applied status transition
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID       `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         uuid.UUID       `json:"user_id"`
	ClinicID       uuid.UUID       `json:"clinic_id"`
	PreviousStatus OrderStatus     `json:"previous_status"`
	NewStatus      OrderStatus     `json:"new_status"`
	Cause          TransitionCause `json:"cause"`
}

// NewOrderStatusChangedEvent creates a new OrderStatusChangedEvent
func NewOrderStatusChangedEvent(order *Order, previous OrderStatus, cause TransitionCause) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		ClinicID:        order.ClinicID,
		PreviousStatus:  previous,
		NewStatus:       order.Status,
		Cause:           cause,
	}
}

// EventType returns the event type name
func (e *OrderStatusChangedEvent) EventType() string {
	return EventTypeOrderStatusChanged
}

// OrderApprovedEvent is raised when an order gains clinical approval,
// whether from a human clinician or from the autonomous engine
type OrderApprovedEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	UserID       uuid.UUID `json:"user_id"`
	ClinicID     uuid.UUID `json:"clinic_id"`
	AutoApproved bool      `json:"auto_approved"`
	Reason       string    `json:"reason,omitempty"`
}

// NewOrderApprovedEvent creates a new OrderApprovedEvent
func NewOrderApprovedEvent(order *Order, autoApproved bool) *OrderApprovedEvent {
	return &OrderApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderApproved, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		ClinicID:        order.ClinicID,
		AutoApproved:    autoApproved,
		Reason:          order.AutoApprovalReason,
	}
}

// EventType returns the event type name
func (e *OrderApprovedEvent) EventType() string {
	return EventTypeOrderApproved
}

// OrderNotesAddedEvent is raised when an annotation is appended to the
// order's note trail
type OrderNotesAddedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	ClinicID    uuid.UUID `json:"clinic_id"`
	Note        string    `json:"note"`
}

// NewOrderNotesAddedEvent creates a new OrderNotesAddedEvent
func NewOrderNotesAddedEvent(order *Order, note string) *OrderNotesAddedEvent {
	return &OrderNotesAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderNotesAdded, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		ClinicID:        order.ClinicID,
		Note:            note,
	}
}

// EventType returns the event type name
func (e *OrderNotesAddedEvent) EventType() string {
	return EventTypeOrderNotesAdded
}
