package cache

import (
	"context"
	"sync"

	"github.com/carebridge/backend/internal/domain/shared"
)

// BoundedEventLedger implements EventLedger with an in-memory set bounded
// by capacity. When the ledger is full, recording a new event ID evicts
// the oldest recorded one. This is suitable for single-instance
// deployments and testing; distributed deployments should use
// RedisEventLedger so duplicate suppression spans instances.
type BoundedEventLedger struct {
	mu       sync.RWMutex
	seen     map[string]struct{}
	ring     []string
	next     int
	capacity int
}

// NewBoundedEventLedger creates a ledger retaining at most capacity event IDs
func NewBoundedEventLedger(capacity int) *BoundedEventLedger {
	if capacity <= 0 {
		capacity = shared.DefaultLedgerConfig().Capacity
	}
	return &BoundedEventLedger{
		seen:     make(map[string]struct{}, capacity),
		ring:     make([]string, capacity),
		capacity: capacity,
	}
}

// Seen reports whether the event ID has already been recorded
func (l *BoundedEventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[eventID]
	return ok, nil
}

// Record marks the event ID as processed, evicting the oldest entry when
// the ledger is at capacity
func (l *BoundedEventLedger) Record(ctx context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[eventID]; ok {
		return nil
	}

	if evicted := l.ring[l.next]; evicted != "" {
		delete(l.seen, evicted)
	}
	l.ring[l.next] = eventID
	l.next = (l.next + 1) % l.capacity
	l.seen[eventID] = struct{}{}
	return nil
}

// Close releases resources; a no-op for the in-memory ledger
func (l *BoundedEventLedger) Close() error {
	return nil
}

// Size returns the number of recorded event IDs (for testing/monitoring)
func (l *BoundedEventLedger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

var _ shared.EventLedger = (*BoundedEventLedger)(nil)
