package orders

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lockStripes is the size of the fixed lock set serializing per-order
// mutations. Orders hash onto stripes, so the set never grows with the
// number of orders; two orders sharing a stripe serialize against each
// other, which is harmless.
const lockStripes = 256

// TransitionService is the authoritative entry point for order mutation.
// All status changes flow through it: each mutation takes the order's
// lock, re-reads current state, validates the requested change against it
// and saves with an optimistic version check. Two events for the same
// order arriving concurrently therefore cannot advance status past each
// other's target.
type TransitionService struct {
	orders   ordering.OrderRepository
	eventBus shared.EventPublisher
	notifier ordering.Notifier
	logger   *zap.Logger

	locks [lockStripes]sync.Mutex
}

// NewTransitionService creates a new TransitionService
func NewTransitionService(
	orders ordering.OrderRepository,
	eventBus shared.EventPublisher,
	notifier ordering.Notifier,
	logger *zap.Logger,
) *TransitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = ordering.NopNotifier{}
	}
	return &TransitionService{
		orders:   orders,
		eventBus: eventBus,
		notifier: notifier,
		logger:   logger,
	}
}

// orderLock returns the stripe mutex serializing mutations for the order
func (s *TransitionService) orderLock(orderID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(orderID[:])
	return &s.locks[h.Sum32()%lockStripes]
}

// Perform runs a serialized read-modify-write against one order. The
// mutation function receives the freshly loaded order; on success the
// order is saved with a version check, pending domain events are
// published and a realtime update is emitted.
func (s *TransitionService) Perform(ctx context.Context, orderID uuid.UUID, mutate func(*ordering.Order) error) (*ordering.Order, error) {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updatedBefore := order.UpdatedAt
	if err := mutate(order); err != nil {
		return nil, err
	}

	events := order.GetDomainEvents()
	if len(events) == 0 && order.UpdatedAt.Equal(updatedBefore) {
		// Nothing observable changed (e.g. an idempotent re-request);
		// skip the write entirely
		return order, nil
	}

	if err := s.orders.SaveWithLock(ctx, order); err != nil {
		return nil, err
	}
	order.ClearDomainEvents()

	if s.eventBus != nil && len(events) > 0 {
		if err := s.eventBus.Publish(ctx, events...); err != nil {
			s.logger.Error("Failed to publish order events",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		}
	}

	for _, event := range events {
		s.emitFor(ctx, order, event)
	}

	return order, nil
}

// RequestTransition requests a status transition for the order.
// Requesting the current status again is a no-op; illegal transitions are
// rejected with an error identifying the current and requested status.
func (s *TransitionService) RequestTransition(ctx context.Context, orderID uuid.UUID, target ordering.OrderStatus, cause ordering.TransitionCause) (*ordering.Order, error) {
	order, err := s.Perform(ctx, orderID, func(o *ordering.Order) error {
		return o.TransitionTo(target, cause)
	})
	if err != nil {
		s.logger.Warn("Order transition rejected",
			zap.String("order_id", orderID.String()),
			zap.String("target_status", target.String()),
			zap.String("cause", string(cause)),
			zap.Error(err))
		return nil, err
	}
	return order, nil
}

// emitFor maps a domain event onto the realtime notifier contract.
// Notification failures never fail the transition.
func (s *TransitionService) emitFor(ctx context.Context, order *ordering.Order, event shared.DomainEvent) {
	payload := ordering.NewOrderEventPayload(order)

	switch event.EventType() {
	case ordering.EventTypeOrderCreated:
		s.notifier.Emit(ctx, ordering.NotifyOrderCreated, payload)
	case ordering.EventTypeOrderApproved:
		s.notifier.Emit(ctx, ordering.NotifyOrderApproved, payload)
	case ordering.EventTypeOrderStatusChanged:
		s.notifier.Emit(ctx, ordering.NotifyOrderStatusChanged, payload)
	case ordering.EventTypeOrderNotesAdded:
		s.notifier.Emit(ctx, ordering.NotifyOrderNotesAdded, payload)
	default:
		s.notifier.Emit(ctx, ordering.NotifyOrderUpdated, payload)
	}
}
