package fulfillment

import (
	"context"
	"sort"
	"sync"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memoryOrderRepo is a thread-safe in-memory ordering.OrderRepository
type memoryOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]ordering.Order
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[uuid.UUID]ordering.Order)}
}

func (r *memoryOrderRepo) put(order *ordering.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
}

func (r *memoryOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := order
	return &copied, nil
}

func (r *memoryOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*ordering.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.OrderNumber == orderNumber {
			copied := order
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOrderRepo) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*ordering.Order, error) {
	return nil, shared.ErrNotFound
}

func (r *memoryOrderRepo) FindByCaseID(ctx context.Context, caseID string) (*ordering.Order, error) {
	return nil, shared.ErrNotFound
}

func (r *memoryOrderRepo) FindAutoApprovalCandidates(ctx context.Context, limit int) ([]ordering.Order, error) {
	return nil, nil
}

func (r *memoryOrderRepo) FindAll(ctx context.Context, filter shared.Filter) ([]ordering.Order, error) {
	return nil, nil
}

func (r *memoryOrderRepo) Save(ctx context.Context, order *ordering.Order) error {
	r.put(order)
	return nil
}

func (r *memoryOrderRepo) SaveWithLock(ctx context.Context, order *ordering.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.ID]
	if ok && current.GetVersion() != order.GetVersion() {
		return shared.ErrConcurrencyConflict
	}
	order.IncrementVersion()
	r.orders[order.ID] = *order
	return nil
}

var _ ordering.OrderRepository = (*memoryOrderRepo)(nil)

// memoryShippingRepo is a thread-safe in-memory ShippingOrderRepository
type memoryShippingRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]fulfillment.ShippingOrder
}

func newMemoryShippingRepo() *memoryShippingRepo {
	return &memoryShippingRepo{orders: make(map[uuid.UUID]fulfillment.ShippingOrder)}
}

func (r *memoryShippingRepo) FindByID(ctx context.Context, id uuid.UUID) (*fulfillment.ShippingOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := so
	return &copied, nil
}

func (r *memoryShippingRepo) FindByPartnerOrderID(ctx context.Context, partner fulfillment.PharmacyPartner, partnerOrderID string) (*fulfillment.ShippingOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, so := range r.orders {
		if so.Partner == partner && so.PartnerOrderID == partnerOrderID {
			copied := so
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryShippingRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]fulfillment.ShippingOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fulfillment.ShippingOrder
	for _, so := range r.orders {
		if so.OrderID == orderID {
			out = append(out, so)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryShippingRepo) Save(ctx context.Context, shippingOrder *fulfillment.ShippingOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[shippingOrder.ID] = *shippingOrder
	return nil
}

func (r *memoryShippingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

var _ fulfillment.ShippingOrderRepository = (*memoryShippingRepo)(nil)

// memoryLedger is an in-memory shared.EventLedger
type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{seen: make(map[string]bool)}
}

func (l *memoryLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[eventID], nil
}

func (l *memoryLedger) Record(ctx context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[eventID] = true
	return nil
}

func (l *memoryLedger) Close() error { return nil }

// MockPatientRepository is a mock implementation of clinical.PatientRepository
type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) FindByID(ctx context.Context, id uuid.UUID) (*clinical.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clinical.Patient), args.Error(1)
}

func (m *MockPatientRepository) FindByCasePartnerID(ctx context.Context, casePartnerID string) (*clinical.Patient, error) {
	args := m.Called(ctx, casePartnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clinical.Patient), args.Error(1)
}

func (m *MockPatientRepository) Save(ctx context.Context, patient *clinical.Patient) error {
	args := m.Called(ctx, patient)
	return args.Error(0)
}

// MockTreatmentRepository is a mock implementation of clinical.TreatmentRepository
type MockTreatmentRepository struct {
	mock.Mock
}

func (m *MockTreatmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*clinical.Treatment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clinical.Treatment), args.Error(1)
}

func (m *MockTreatmentRepository) Save(ctx context.Context, treatment *clinical.Treatment) error {
	args := m.Called(ctx, treatment)
	return args.Error(0)
}

// MockIntegration is a mock implementation of fulfillment.Integration
type MockIntegration struct {
	mock.Mock
	partner fulfillment.PharmacyPartner
}

func newMockIntegration(partner fulfillment.PharmacyPartner) *MockIntegration {
	return &MockIntegration{partner: partner}
}

func (m *MockIntegration) Partner() fulfillment.PharmacyPartner {
	return m.partner
}

func (m *MockIntegration) SubmitOrder(ctx context.Context, req fulfillment.DispatchRequest) (*fulfillment.DispatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.DispatchResult), args.Error(1)
}

// staticVerifier accepts one known credential
type staticVerifier struct {
	accept string
}

func (v staticVerifier) Verify(payload []byte, credential string) error {
	if credential != v.accept {
		return shared.ErrUnauthorized
	}
	return nil
}
