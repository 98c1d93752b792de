package orders

import (
	"context"
	"sync"

	"github.com/carebridge/backend/internal/domain/clinical"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memoryOrderRepo is a thread-safe in-memory OrderRepository with
// copy-on-read semantics and optimistic locking, mimicking the database
// contract closely enough for concurrency tests
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
	stored := *order
	stored.ClearDomainEvents()
	r.orders[order.ID] = stored
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
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.PaymentIntentID == paymentIntentID {
			copied := order
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOrderRepo) FindByCaseID(ctx context.Context, caseID string) (*ordering.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.CaseID == caseID {
			copied := order
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOrderRepo) FindAutoApprovalCandidates(ctx context.Context, limit int) ([]ordering.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []ordering.Order
	for _, order := range r.orders {
		if order.Status == ordering.OrderStatusPaid && !order.AutoApprovedByDoctor {
			candidates = append(candidates, order)
			if len(candidates) >= limit {
				break
			}
		}
	}
	return candidates, nil
}

func (r *memoryOrderRepo) FindAll(ctx context.Context, filter shared.Filter) ([]ordering.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ordering.Order, 0, len(r.orders))
	for _, order := range r.orders {
		out = append(out, order)
	}
	return out, nil
}

func (r *memoryOrderRepo) Save(ctx context.Context, order *ordering.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *order
	stored.ClearDomainEvents()
	r.orders[order.ID] = stored
	return nil
}

func (r *memoryOrderRepo) SaveWithLock(ctx context.Context, order *ordering.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != order.Version {
		return shared.ErrConcurrencyConflict
	}
	order.IncrementVersion()
	stored := *order
	stored.ClearDomainEvents()
	r.orders[order.ID] = stored
	return nil
}

var _ ordering.OrderRepository = (*memoryOrderRepo)(nil)

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

// MockCapturer is a mock implementation of PaymentCapturer
type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) EnsureCaptured(ctx context.Context, order *ordering.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockDispatcher is a mock implementation of FulfillmentDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, order *ordering.Order) (*fulfillment.ShippingOrder, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.ShippingOrder), args.Error(1)
}

// recordingNotifier captures emitted realtime events
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Emit(ctx context.Context, eventName string, payload ordering.OrderEventPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventName)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}
