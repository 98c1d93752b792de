package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type dispatcherFixture struct {
	shipping   *memoryShippingRepo
	treatments *MockTreatmentRepository
	patients   *MockPatientRepository
	api        *MockIntegration
	manual     *MockIntegration
	dispatcher *Dispatcher
}

func newDispatcherFixture() *dispatcherFixture {
	shipping := newMemoryShippingRepo()
	treatments := new(MockTreatmentRepository)
	patients := new(MockPatientRepository)
	api := newMockIntegration(fulfillment.PartnerPharmaDirect)
	manual := newMockIntegration(fulfillment.PartnerCompoundCare)
	dispatcher := NewDispatcher(DispatcherConfig{
		ShippingOrders: shipping,
		Treatments:     treatments,
		Patients:       patients,
		Integrations:   []fulfillment.Integration{api, manual},
	})
	return &dispatcherFixture{
		shipping:   shipping,
		treatments: treatments,
		patients:   patients,
		api:        api,
		manual:     manual,
		dispatcher: dispatcher,
	}
}

func approvedOrder(t *testing.T) *ordering.Order {
	t.Helper()

	order, err := ordering.NewOrder(uuid.New(), uuid.New(), decimal.NewFromInt(110), "usd")
	require.NoError(t, err)
	treatmentID := uuid.New()
	order.TreatmentID = &treatmentID
	order.Status = ordering.OrderStatusProcessing
	order.ApprovedByDoctor = true
	order.ClearDomainEvents()
	return order
}

func TestDispatcher_RoutesByCoveragePartner(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	f.treatments.On("FindByID", mock.Anything, *order.TreatmentID).
		Return(&clinical.Treatment{Name: "Tretinoin", CoveragePartner: "pharmadirect"}, nil)
	f.patients.On("FindByID", mock.Anything, order.UserID).
		Return(&clinical.Patient{}, nil)
	f.api.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(&fulfillment.DispatchResult{PartnerOrderID: "PD-3001"}, nil).Once()

	shippingOrder, err := f.dispatcher.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.PartnerPharmaDirect, shippingOrder.Partner)
	assert.Equal(t, "PD-3001", shippingOrder.PartnerOrderID)
	assert.Equal(t, fulfillment.ShippingStatusPending, shippingOrder.Status)
	f.manual.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

// Orders predating coverage routing fall back to the legacy per-treatment
// provider field
func TestDispatcher_FallsBackToLegacyProvider(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	f.treatments.On("FindByID", mock.Anything, *order.TreatmentID).
		Return(&clinical.Treatment{Name: "Compounded Tretinoin", LegacyPharmacyProvider: "compound_care"}, nil)
	f.patients.On("FindByID", mock.Anything, order.UserID).
		Return(&clinical.Patient{}, nil)
	f.manual.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(&fulfillment.DispatchResult{PartnerOrderID: "CC-88", DocumentURL: "s3://orders/cc-88.pdf"}, nil).Once()

	shippingOrder, err := f.dispatcher.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, fulfillment.PartnerCompoundCare, shippingOrder.Partner)
	assert.Equal(t, "s3://orders/cc-88.pdf", shippingOrder.DocumentURL)
}

func TestDispatcher_NoRouteFails(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	f.treatments.On("FindByID", mock.Anything, *order.TreatmentID).
		Return(&clinical.Treatment{Name: "Orphan"}, nil)
	f.patients.On("FindByID", mock.Anything, order.UserID).
		Return(&clinical.Patient{}, nil)

	_, err := f.dispatcher.Dispatch(context.Background(), order)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NO_PARTNER_ROUTE", domainErr.Code)
	assert.Zero(t, f.shipping.count())
}

func TestDispatcher_GuardsUnpaidAndUnapproved(t *testing.T) {
	f := newDispatcherFixture()

	unpaid := approvedOrder(t)
	unpaid.Status = ordering.OrderStatusPending
	_, err := f.dispatcher.Dispatch(context.Background(), unpaid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot dispatch")

	unapproved := approvedOrder(t)
	unapproved.ApprovedByDoctor = false
	_, err = f.dispatcher.Dispatch(context.Background(), unapproved)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without clinical approval")

	assert.Zero(t, f.shipping.count())
}

// A submission failure leaves no shipping order behind; a subsequent
// retry submits again and creates exactly one
func TestDispatcher_RetryAfterFailureCreatesExactlyOne(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	f.treatments.On("FindByID", mock.Anything, *order.TreatmentID).
		Return(&clinical.Treatment{Name: "Tretinoin", CoveragePartner: "pharmadirect"}, nil)
	f.patients.On("FindByID", mock.Anything, order.UserID).
		Return(&clinical.Patient{}, nil)
	f.api.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(nil, errors.New("partner API timeout")).Once()
	f.api.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(&fulfillment.DispatchResult{PartnerOrderID: "PD-3002"}, nil).Once()

	_, err := f.dispatcher.Dispatch(context.Background(), order)
	require.Error(t, err)
	assert.Zero(t, f.shipping.count())

	shippingOrder, err := f.dispatcher.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "PD-3002", shippingOrder.PartnerOrderID)
	assert.Equal(t, 1, f.shipping.count())
}

// A retry for an already-dispatched order returns the live shipping
// order instead of double-submitting
func TestDispatcher_IdempotentForLiveShippingOrder(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	existing, err := fulfillment.NewShippingOrder(order.ID, fulfillment.PartnerPharmaDirect, "PD-3003")
	require.NoError(t, err)
	require.NoError(t, f.shipping.Save(context.Background(), existing))

	shippingOrder, err := f.dispatcher.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, shippingOrder.ID)
	assert.Equal(t, 1, f.shipping.count())
	f.api.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}

// A terminal shipping order does not block a fresh dispatch attempt
func TestDispatcher_TerminalShippingOrderAllowsRedispatch(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	rejected, err := fulfillment.NewShippingOrder(order.ID, fulfillment.PartnerPharmaDirect, "PD-3004")
	require.NoError(t, err)
	require.NoError(t, rejected.ApplyPartnerStatus(fulfillment.ShippingStatusRejected))
	require.NoError(t, f.shipping.Save(context.Background(), rejected))

	f.treatments.On("FindByID", mock.Anything, *order.TreatmentID).
		Return(&clinical.Treatment{Name: "Tretinoin", CoveragePartner: "pharmadirect"}, nil)
	f.patients.On("FindByID", mock.Anything, order.UserID).
		Return(&clinical.Patient{}, nil)
	f.api.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(&fulfillment.DispatchResult{PartnerOrderID: "PD-3005"}, nil).Once()

	shippingOrder, err := f.dispatcher.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "PD-3005", shippingOrder.PartnerOrderID)
	assert.Equal(t, 2, f.shipping.count())
}

// A partner-reported problem leaves the dispatch retryable: the problem
// row does not stand in for an active dispatch
func TestDispatcher_ProblemShippingOrderAllowsRedispatch(t *testing.T) {
	f := newDispatcherFixture()
	order := approvedOrder(t)

	problem, err := fulfillment.NewShippingOrder(order.ID, fulfillment.PartnerPharmaDirect, "PD-3006")
	require.NoError(t, err)
	require.NoError(t, problem.ApplyPartnerStatus(fulfillment.ShippingStatusProblem))
	require.NoError(t, f.shipping.Save(context.Background(), problem))

	f.treatments.On("FindByID", mock.Anything, *order.TreatmentID).
		Return(&clinical.Treatment{Name: "Tretinoin", CoveragePartner: "pharmadirect"}, nil)
	f.patients.On("FindByID", mock.Anything, order.UserID).
		Return(&clinical.Patient{}, nil)
	f.api.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(&fulfillment.DispatchResult{PartnerOrderID: "PD-3007"}, nil).Once()

	shippingOrder, err := f.dispatcher.Dispatch(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "PD-3007", shippingOrder.PartnerOrderID)
	assert.Equal(t, 2, f.shipping.count())
}
