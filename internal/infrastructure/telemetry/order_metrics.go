package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// OrderMetrics tracks the order lifecycle: approvals, dispatches,
// payment captures, and webhook traffic.
type OrderMetrics struct {
	logger *zap.Logger

	approvedTotal     *Counter
	autoApprovedTotal *Counter
	dispatchedTotal   *Counter
	capturedTotal     *Counter
	webhooksTotal     *Counter
}

// NewOrderMetrics creates the order lifecycle metrics
func NewOrderMetrics(meter metric.Meter, logger *zap.Logger) (*OrderMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &OrderMetrics{logger: logger}

	var err error
	if m.approvedTotal, err = NewCounter(meter,
		"carebridge_order_approved_total",
		"Total number of clinically approved orders",
		"{orders}"); err != nil {
		return nil, err
	}
	if m.autoApprovedTotal, err = NewCounter(meter,
		"carebridge_order_auto_approved_total",
		"Total number of autonomously approved orders",
		"{orders}"); err != nil {
		return nil, err
	}
	if m.dispatchedTotal, err = NewCounter(meter,
		"carebridge_order_dispatched_total",
		"Total number of orders dispatched to fulfillment partners",
		"{orders}"); err != nil {
		return nil, err
	}
	if m.capturedTotal, err = NewCounter(meter,
		"carebridge_payment_captured_total",
		"Total number of captured payments",
		"{payments}"); err != nil {
		return nil, err
	}
	if m.webhooksTotal, err = NewCounter(meter,
		"carebridge_webhook_processed_total",
		"Total number of processed partner webhooks",
		"{events}"); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordApproval records a clinical approval. auto distinguishes the
// autonomous engine from a human clinician.
func (m *OrderMetrics) RecordApproval(ctx context.Context, auto bool) {
	m.approvedTotal.Inc(ctx)
	if auto {
		m.autoApprovedTotal.Inc(ctx)
	}
}

// RecordDispatch records a successful partner dispatch
func (m *OrderMetrics) RecordDispatch(ctx context.Context, partner string) {
	m.dispatchedTotal.Inc(ctx, AttrPartner.String(partner))
}

// RecordCapture records a payment capture outcome
func (m *OrderMetrics) RecordCapture(ctx context.Context, status string) {
	m.capturedTotal.Inc(ctx, AttrStatus.String(status))
}

// RecordWebhook records a processed inbound webhook
func (m *OrderMetrics) RecordWebhook(ctx context.Context, source, eventType string) {
	m.webhooksTotal.Inc(ctx,
		AttrPartner.String(source),
		AttrEventType.String(eventType))
}
