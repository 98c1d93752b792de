package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedTransitionOrder(t *testing.T, repo *memoryOrderRepo, status ordering.OrderStatus) *ordering.Order {
	t.Helper()
	order, err := ordering.NewOrder(uuid.New(), uuid.New(), decimal.NewFromInt(199), "usd")
	require.NoError(t, err)
	order.Status = status
	order.ClearDomainEvents()
	repo.put(order)
	return order
}

func TestTransitionService_RequestTransition(t *testing.T) {
	repo := newMemoryOrderRepo()
	notifier := &recordingNotifier{}
	svc := NewTransitionService(repo, nil, notifier, zap.NewNop())
	order := seedTransitionOrder(t, repo, ordering.OrderStatusPaid)

	updated, err := svc.RequestTransition(context.Background(), order.ID, ordering.OrderStatusProcessing, ordering.CauseManualApproval)

	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusProcessing, updated.Status)
	assert.Equal(t, 1, notifier.count())

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusProcessing, stored.Status)
}

func TestTransitionService_SameStatusIsNoOp(t *testing.T) {
	repo := newMemoryOrderRepo()
	notifier := &recordingNotifier{}
	svc := NewTransitionService(repo, nil, notifier, zap.NewNop())
	order := seedTransitionOrder(t, repo, ordering.OrderStatusPaid)
	versionBefore := order.GetVersion()

	_, err := svc.RequestTransition(context.Background(), order.ID, ordering.OrderStatusPaid, ordering.CausePaymentWebhook)

	require.NoError(t, err)
	assert.Equal(t, 0, notifier.count(), "no-op must not notify")

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, versionBefore, stored.GetVersion(), "no-op must not write")
}

func TestTransitionService_OrderLockIsStableAndBounded(t *testing.T) {
	svc := NewTransitionService(newMemoryOrderRepo(), nil, nil, nil)

	orderID := uuid.New()
	assert.Same(t, svc.orderLock(orderID), svc.orderLock(orderID),
		"one order must always map to the same lock")

	distinct := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10*lockStripes; i++ {
		distinct[svc.orderLock(uuid.New())] = struct{}{}
	}
	assert.LessOrEqual(t, len(distinct), lockStripes,
		"lock set must not grow with the number of orders")
}

func TestTransitionService_IllegalTransitionRejected(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := NewTransitionService(repo, nil, nil, zap.NewNop())
	order := seedTransitionOrder(t, repo, ordering.OrderStatusPending)

	_, err := svc.RequestTransition(context.Background(), order.ID, ordering.OrderStatusDelivered, ordering.CausePharmacyWebhook)

	require.Error(t, err)
	stored, _ := repo.FindByID(context.Background(), order.ID)
	assert.Equal(t, ordering.OrderStatusPending, stored.Status)
}

func TestTransitionService_UnknownOrder(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := NewTransitionService(repo, nil, nil, zap.NewNop())

	_, err := svc.RequestTransition(context.Background(), uuid.New(), ordering.OrderStatusPaid, ordering.CausePaymentWebhook)

	assert.Error(t, err)
}

// Two webhook events for the same order processed concurrently: both
// target legal successors, and the final state must reflect transitions
// applied one after the other with no lost update.
func TestTransitionService_ConcurrentTransitionsLinearized(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := NewTransitionService(repo, nil, nil, zap.NewNop())
	order := seedTransitionOrder(t, repo, ordering.OrderStatusProcessing)

	var wg sync.WaitGroup
	results := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.RequestTransition(context.Background(), order.ID, ordering.OrderStatusShipped, ordering.CausePharmacyWebhook)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.RequestTransition(context.Background(), order.ID, ordering.OrderStatusDelivered, ordering.CausePharmacyWebhook)
	}()
	wg.Wait()

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)

	// Either shipped was applied first and delivered followed (both
	// succeed), or delivered was requested while still processing and
	// was rejected, leaving shipped as the final state. Both outcomes
	// are linearizations; a shipped state with a delivered error means
	// the delivered request lost the race legally.
	switch stored.Status {
	case ordering.OrderStatusDelivered:
		assert.NoError(t, results[0])
		assert.NoError(t, results[1])
	case ordering.OrderStatusShipped:
		assert.NoError(t, results[0])
		assert.Error(t, results[1])
	default:
		t.Fatalf("unexpected final status %s", stored.Status)
	}
}

func TestTransitionService_ConcurrentSameTarget(t *testing.T) {
	repo := newMemoryOrderRepo()
	notifier := &recordingNotifier{}
	svc := NewTransitionService(repo, nil, notifier, zap.NewNop())
	order := seedTransitionOrder(t, repo, ordering.OrderStatusProcessing)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.RequestTransition(context.Background(), order.ID, ordering.OrderStatusShipped, ordering.CausePharmacyWebhook)
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, ordering.OrderStatusShipped, stored.Status)
	assert.Equal(t, 1, notifier.count(), "duplicate requests must apply the transition exactly once")
}

func TestTransitionService_PerformSavesFieldOnlyMutations(t *testing.T) {
	repo := newMemoryOrderRepo()
	svc := NewTransitionService(repo, nil, nil, zap.NewNop())
	order := seedTransitionOrder(t, repo, ordering.OrderStatusPending)

	_, err := svc.Perform(context.Background(), order.ID, func(o *ordering.Order) error {
		o.AttachPaymentIntent("pi_123")
		return nil
	})

	require.NoError(t, err)
	stored, _ := repo.FindByID(context.Background(), order.ID)
	assert.Equal(t, "pi_123", stored.PaymentIntentID)
}
