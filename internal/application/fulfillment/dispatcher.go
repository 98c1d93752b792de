package fulfillment

import (
	"context"
	"time"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const defaultSubmitTimeout = 30 * time.Second

// Dispatcher routes approved, paid orders to their pharmacy partner.
// Routing prefers the product-level coverage record and falls back to the
// legacy per-treatment provider field for orders predating coverage
// routing. Submission failures leave clinical approval intact and the
// dispatch retryable.
type Dispatcher struct {
	shippingOrders fulfillment.ShippingOrderRepository
	treatments     clinical.TreatmentRepository
	patients       clinical.PatientRepository
	integrations   map[fulfillment.PharmacyPartner]fulfillment.Integration
	submitTimeout  time.Duration
	logger         *zap.Logger
}

// DispatcherConfig contains configuration for Dispatcher
type DispatcherConfig struct {
	ShippingOrders fulfillment.ShippingOrderRepository
	Treatments     clinical.TreatmentRepository
	Patients       clinical.PatientRepository
	Integrations   []fulfillment.Integration
	SubmitTimeout  time.Duration
	Logger         *zap.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}

	integrations := make(map[fulfillment.PharmacyPartner]fulfillment.Integration, len(cfg.Integrations))
	for _, integration := range cfg.Integrations {
		integrations[integration.Partner()] = integration
	}

	return &Dispatcher{
		shippingOrders: cfg.ShippingOrders,
		treatments:     cfg.Treatments,
		patients:       cfg.Patients,
		integrations:   integrations,
		submitTimeout:  timeout,
		logger:         logger,
	}
}

var _ orders.FulfillmentDispatcher = (*Dispatcher)(nil)

// Dispatch submits the order to its pharmacy partner and records the
// resulting ShippingOrder. A retry for an order that already has a live
// shipping order returns the existing one instead of double-submitting.
func (d *Dispatcher) Dispatch(ctx context.Context, order *ordering.Order) (*fulfillment.ShippingOrder, error) {
	if !order.IsPaid() {
		return nil, shared.NewDomainErrorf("ORDER_NOT_PAID",
			"Cannot dispatch order %s in status %s", order.OrderNumber, order.Status)
	}
	if !order.ApprovedByDoctor {
		return nil, shared.NewDomainErrorf("ORDER_NOT_APPROVED",
			"Cannot dispatch order %s without clinical approval", order.OrderNumber)
	}

	if existing, err := d.liveShippingOrder(ctx, order); err != nil {
		return nil, err
	} else if existing != nil {
		d.logger.Info("Order already dispatched; returning existing shipping order",
			zap.String("order_number", order.OrderNumber),
			zap.String("partner_order_id", existing.PartnerOrderID))
		return existing, nil
	}

	if order.TreatmentID == nil {
		return nil, shared.NewDomainErrorf("MISSING_TREATMENT",
			"Order %s has no treatment to dispatch", order.OrderNumber)
	}
	treatment, err := d.treatments.FindByID(ctx, *order.TreatmentID)
	if err != nil {
		return nil, err
	}
	patient, err := d.patients.FindByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}

	partner, err := d.route(order, treatment)
	if err != nil {
		return nil, err
	}
	integration, ok := d.integrations[partner]
	if !ok {
		return nil, shared.NewDomainErrorf("PARTNER_NOT_CONFIGURED",
			"No integration configured for partner %s", partner)
	}

	submitCtx, cancel := context.WithTimeout(ctx, d.submitTimeout)
	defer cancel()

	result, err := integration.SubmitOrder(submitCtx, fulfillment.DispatchRequest{
		Order:     order,
		Patient:   patient,
		Treatment: treatment,
	})
	if err != nil {
		d.logger.Error("Partner submission failed",
			zap.String("order_number", order.OrderNumber),
			zap.String("partner", partner.String()),
			zap.Error(err))
		return nil, err
	}

	shippingOrder, err := fulfillment.NewShippingOrder(order.ID, partner, result.PartnerOrderID)
	if err != nil {
		return nil, err
	}
	shippingOrder.DocumentURL = result.DocumentURL
	if err := d.shippingOrders.Save(ctx, shippingOrder); err != nil {
		return nil, err
	}

	d.logger.Info("Order dispatched to pharmacy partner",
		zap.String("order_number", order.OrderNumber),
		zap.String("partner", partner.String()),
		zap.String("partner_order_id", result.PartnerOrderID))
	return shippingOrder, nil
}

// liveShippingOrder returns the newest shipping order still standing in
// for an active dispatch, if any. Terminal and problem rows do not count,
// so a partner-reported problem or rejection leaves the order
// redispatchable.
func (d *Dispatcher) liveShippingOrder(ctx context.Context, order *ordering.Order) (*fulfillment.ShippingOrder, error) {
	existing, err := d.shippingOrders.FindByOrderID(ctx, order.ID)
	if err != nil && err != shared.ErrNotFound {
		return nil, err
	}
	for i := range existing {
		if existing[i].Status.BlocksRedispatch() {
			return &existing[i], nil
		}
	}
	return nil, nil
}

// route resolves the pharmacy partner for the order, coverage record
// first, legacy provider field second
func (d *Dispatcher) route(order *ordering.Order, treatment *clinical.Treatment) (fulfillment.PharmacyPartner, error) {
	if treatment.CoveragePartner != "" {
		partner := fulfillment.PharmacyPartner(treatment.CoveragePartner)
		if partner.IsValid() {
			return partner, nil
		}
		d.logger.Warn("Coverage record names an unknown partner; trying legacy provider",
			zap.String("order_number", order.OrderNumber),
			zap.String("coverage_partner", treatment.CoveragePartner))
	}
	if partner, ok := fulfillment.PartnerFromLegacyProvider(treatment.LegacyPharmacyProvider); ok {
		return partner, nil
	}
	return "", shared.NewDomainErrorf("NO_PARTNER_ROUTE",
		"No pharmacy partner route for order %s (coverage %q, legacy provider %q)",
		order.OrderNumber, treatment.CoveragePartner, treatment.LegacyPharmacyProvider)
}
