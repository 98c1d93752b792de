package payments

import (
	"context"
	"sync"

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
	var out []ordering.Order
	for _, order := range r.orders {
		if order.Status == ordering.OrderStatusPaid && !order.AutoApprovedByDoctor {
			out = append(out, order)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
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

// memoryPaymentRepo is a thread-safe in-memory ordering.PaymentRepository
type memoryPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]ordering.Payment
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{payments: make(map[uuid.UUID]ordering.Payment)}
}

func (r *memoryPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := payment
	return &copied, nil
}

func (r *memoryPaymentRepo) FindByProcessorPaymentID(ctx context.Context, processorPaymentID string) (*ordering.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.payments {
		if payment.ProcessorPaymentID == processorPaymentID {
			copied := payment
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPaymentRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*ordering.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, payment := range r.payments {
		if payment.OrderID != nil && *payment.OrderID == orderID {
			copied := payment
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPaymentRepo) Save(ctx context.Context, payment *ordering.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[payment.ID] = *payment
	return nil
}

var _ ordering.PaymentRepository = (*memoryPaymentRepo)(nil)

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

// MockGateway is a mock implementation of ProcessorGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CapturePaymentIntent(ctx context.Context, paymentIntentID string) (*CaptureOutput, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CaptureOutput), args.Error(1)
}

func (m *MockGateway) CreateSubscription(ctx context.Context, input SubscriptionInput) (*SubscriptionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubscriptionOutput), args.Error(1)
}

// MockCaseStarter is a mock implementation of CaseStarter
type MockCaseStarter struct {
	mock.Mock
}

func (m *MockCaseStarter) EnsureCaseForOrder(ctx context.Context, order *ordering.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}
