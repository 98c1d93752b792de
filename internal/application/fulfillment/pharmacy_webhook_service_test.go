package fulfillment

import (
	"context"
	"testing"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiCredential    = "sig-pharmadirect"
	manualCredential = "bearer-compoundcare"
)

type webhookFixture struct {
	orders   *memoryOrderRepo
	shipping *memoryShippingRepo
	service  *PharmacyWebhookService
}

func newPharmacyWebhookFixture() *webhookFixture {
	ordersRepo := newMemoryOrderRepo()
	shipping := newMemoryShippingRepo()
	service := NewPharmacyWebhookService(PharmacyWebhookServiceConfig{
		Verifiers: map[fulfillment.PharmacyPartner]SignatureVerifier{
			fulfillment.PartnerPharmaDirect: staticVerifier{accept: apiCredential},
			fulfillment.PartnerCompoundCare: staticVerifier{accept: manualCredential},
		},
		Ledger:         newMemoryLedger(),
		ShippingOrders: shipping,
		Transitions:    orders.NewTransitionService(ordersRepo, nil, nil, nil),
	})
	return &webhookFixture{orders: ordersRepo, shipping: shipping, service: service}
}

func (f *webhookFixture) seedDispatched(t *testing.T, partner fulfillment.PharmacyPartner, partnerOrderID string, orderStatus ordering.OrderStatus) (*ordering.Order, *fulfillment.ShippingOrder) {
	t.Helper()

	order, err := ordering.NewOrder(uuid.New(), uuid.New(), decimal.NewFromInt(95), "usd")
	require.NoError(t, err)
	order.Status = orderStatus
	order.ApprovedByDoctor = true
	order.ClearDomainEvents()
	f.orders.put(order)

	shippingOrder, err := fulfillment.NewShippingOrder(order.ID, partner, partnerOrderID)
	require.NoError(t, err)
	require.NoError(t, f.shipping.Save(context.Background(), shippingOrder))
	return order, shippingOrder
}

func TestPharmacyWebhook_InvalidCredential(t *testing.T) {
	f := newPharmacyWebhookFixture()

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect,
		[]byte(`{"id":"evt_1","type":"order_shipped","order_id":"PD-1"}`),
		"wrong")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestPharmacyWebhook_UnconfiguredPartner(t *testing.T) {
	f := newPharmacyWebhookFixture()

	_, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PharmacyPartner("unknown"), []byte(`{}`), apiCredential)
	require.Error(t, err)
}

// Shipped events update the shipping order and mirror onto the parent
// order
func TestPharmacyWebhook_ShippedMirrorsToOrder(t *testing.T) {
	f := newPharmacyWebhookFixture()
	order, _ := f.seedDispatched(t, fulfillment.PartnerPharmaDirect, "PD-10", ordering.OrderStatusProcessing)

	payload := []byte(`{"id":"evt_ship","type":"order_shipped","order_id":"PD-10","tracking_number":"1Z999"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	savedShipping, err := f.shipping.FindByPartnerOrderID(context.Background(),
		fulfillment.PartnerPharmaDirect, "PD-10")
	require.NoError(t, err)
	assert.Equal(t, fulfillment.ShippingStatusShipped, savedShipping.Status)
	assert.Equal(t, "1Z999", savedShipping.TrackingNumber)
	assert.NotNil(t, savedShipping.ShippedAt)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusShipped, savedOrder.Status)
	assert.NotNil(t, savedOrder.ShippedAt)
}

func TestPharmacyWebhook_DeliveredMirrorsToOrder(t *testing.T) {
	f := newPharmacyWebhookFixture()
	order, _ := f.seedDispatched(t, fulfillment.PartnerCompoundCare, "CC-20", ordering.OrderStatusShipped)

	payload := []byte(`{"id":"evt_del","type":"order_delivered","order_id":"CC-20"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerCompoundCare, payload, manualCredential)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusDelivered, savedOrder.Status)
	assert.NotNil(t, savedOrder.DeliveredAt)
}

// Problem events annotate the order without changing its status
func TestPharmacyWebhook_ProblemAnnotatesOrder(t *testing.T) {
	f := newPharmacyWebhookFixture()
	order, _ := f.seedDispatched(t, fulfillment.PartnerPharmaDirect, "PD-30", ordering.OrderStatusProcessing)

	payload := []byte(`{"id":"evt_prob","type":"order_problem","order_id":"PD-30","reason":"out of stock"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	savedShipping, err := f.shipping.FindByPartnerOrderID(context.Background(),
		fulfillment.PartnerPharmaDirect, "PD-30")
	require.NoError(t, err)
	assert.Equal(t, fulfillment.ShippingStatusProblem, savedShipping.Status)
	assert.Equal(t, "out of stock", savedShipping.ProblemReason)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusProcessing, savedOrder.Status)
	require.Len(t, savedOrder.Notes, 1)
	assert.Contains(t, savedOrder.Notes[0], "out of stock")
}

func TestPharmacyWebhook_CancelledCancelsOrder(t *testing.T) {
	f := newPharmacyWebhookFixture()
	order, _ := f.seedDispatched(t, fulfillment.PartnerPharmaDirect, "PD-40", ordering.OrderStatusProcessing)

	payload := []byte(`{"id":"evt_cancel","type":"order_cancelled","order_id":"PD-40"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.True(t, result.Processed)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusCancelled, savedOrder.Status)
	assert.NotEmpty(t, savedOrder.CancelReason)
}

func TestPharmacyWebhook_DuplicateSuppression(t *testing.T) {
	f := newPharmacyWebhookFixture()
	f.seedDispatched(t, fulfillment.PartnerPharmaDirect, "PD-50", ordering.OrderStatusProcessing)

	payload := []byte(`{"id":"evt_dup","type":"order_filled","order_id":"PD-50"}`)

	first, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
}

// Partner event ids are namespaced per partner in the ledger: the same
// id from two partners is two distinct events
func TestPharmacyWebhook_LedgerNamespacedByPartner(t *testing.T) {
	f := newPharmacyWebhookFixture()
	f.seedDispatched(t, fulfillment.PartnerPharmaDirect, "PD-60", ordering.OrderStatusProcessing)
	f.seedDispatched(t, fulfillment.PartnerCompoundCare, "CC-60", ordering.OrderStatusProcessing)

	fromAPI := []byte(`{"id":"evt_shared","type":"order_filled","order_id":"PD-60"}`)
	fromManual := []byte(`{"id":"evt_shared","type":"order_filled","order_id":"CC-60"}`)

	first, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, fromAPI, apiCredential)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerCompoundCare, fromManual, manualCredential)
	require.NoError(t, err)
	assert.True(t, second.Processed)
	assert.False(t, second.Duplicate)
}

func TestPharmacyWebhook_UnknownShippingOrderAcknowledged(t *testing.T) {
	f := newPharmacyWebhookFixture()

	payload := []byte(`{"id":"evt_ghost","type":"order_shipped","order_id":"PD-999"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, "No matching shipping order", result.Message)
}

// A terminal shipping order absorbs no further partner updates
func TestPharmacyWebhook_TerminalShippingOrderRejectsUpdate(t *testing.T) {
	f := newPharmacyWebhookFixture()
	_, shippingOrder := f.seedDispatched(t, fulfillment.PartnerPharmaDirect, "PD-70", ordering.OrderStatusDelivered)
	require.NoError(t, shippingOrder.ApplyPartnerStatus(fulfillment.ShippingStatusDelivered))
	require.NoError(t, f.shipping.Save(context.Background(), shippingOrder))

	payload := []byte(`{"id":"evt_late","type":"order_processed","order_id":"PD-70"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.Error(t, err)
	assert.Contains(t, result.Message, "terminal")

	saved, findErr := f.shipping.FindByPartnerOrderID(context.Background(),
		fulfillment.PartnerPharmaDirect, "PD-70")
	require.NoError(t, findErr)
	assert.Equal(t, fulfillment.ShippingStatusDelivered, saved.Status)
}

func TestPharmacyWebhook_UnhandledEventType(t *testing.T) {
	f := newPharmacyWebhookFixture()

	payload := []byte(`{"id":"evt_odd","type":"inventory_sync","order_id":"PD-1"}`)

	result, err := f.service.ProcessWebhook(context.Background(),
		fulfillment.PartnerPharmaDirect, payload, apiCredential)
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, "Event type not handled", result.Message)
}
