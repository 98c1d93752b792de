package telemetry

import (
	"context"

	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
)

// OrderMetricsHandler subscribes to order domain events and feeds the
// order lifecycle counters. Registered on the in-process event bus so
// approval counting stays out of the application services.
type OrderMetricsHandler struct {
	metrics *OrderMetrics
}

// NewOrderMetricsHandler creates the event-bus handler for order metrics
func NewOrderMetricsHandler(metrics *OrderMetrics) *OrderMetricsHandler {
	return &OrderMetricsHandler{metrics: metrics}
}

// Handle implements shared.EventHandler
func (h *OrderMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if approved, ok := event.(*ordering.OrderApprovedEvent); ok {
		h.metrics.RecordApproval(ctx, approved.AutoApproved)
	}
	return nil
}

// EventTypes implements shared.EventHandler
func (h *OrderMetricsHandler) EventTypes() []string {
	return []string{ordering.EventTypeOrderApproved}
}

var _ shared.EventHandler = (*OrderMetricsHandler)(nil)
