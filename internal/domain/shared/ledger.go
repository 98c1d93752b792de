package shared

import "context"

// EventLedger stores recently-processed external event IDs to suppress
// duplicate webhook processing.
//
// Seen and Record are deliberately separate operations: a handler checks
// Seen before processing and calls Record only after it has completed
// successfully. A crash mid-handler therefore leaves the event unrecorded
// and the sender's redelivery is processed normally.
type EventLedger interface {
	// Seen reports whether the event ID has already been recorded
	Seen(ctx context.Context, eventID string) (bool, error)

	// Record marks the event ID as processed
	Record(ctx context.Context, eventID string) error

	// Close releases any resources held by the ledger
	Close() error
}

// LedgerConfig holds configuration for duplicate suppression
type LedgerConfig struct {
	// Capacity is the maximum number of event IDs retained in-memory
	// before the oldest entries are evicted. Sized so that practical
	// redelivery windows (minutes to low hours) never wrap around.
	Capacity int

	// Enabled determines whether duplicate suppression is enabled
	Enabled bool
}

// DefaultLedgerConfig returns the default ledger configuration
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Capacity: 10000,
		Enabled:  true,
	}
}
