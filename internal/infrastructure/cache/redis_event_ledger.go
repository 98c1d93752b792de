package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/backend/internal/domain/shared"
)

// RedisEventLedger implements EventLedger using Redis. This is suitable
// for distributed deployments where multiple instances need to share
// duplicate suppression state.
type RedisEventLedger struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisLedgerConfig holds Redis ledger connection configuration
type RedisLedgerConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds how long a recorded event ID suppresses redeliveries
	TTL time.Duration
}

// NewRedisEventLedger creates a Redis-backed event ledger
func NewRedisEventLedger(cfg RedisLedgerConfig) (*RedisEventLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisEventLedgerWithClient(client, "", cfg.TTL), nil
}

// NewRedisEventLedgerWithClient creates a ledger with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisEventLedgerWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisEventLedger {
	if keyPrefix == "" {
		keyPrefix = "webhook:ledger:"
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisEventLedger{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Seen reports whether the event ID has already been recorded
func (l *RedisEventLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event ledger: %w", err)
	}
	return exists > 0, nil
}

// Record marks the event ID as processed with the configured TTL
func (l *RedisEventLedger) Record(ctx context.Context, eventID string) error {
	if err := l.client.SetNX(ctx, l.keyPrefix+eventID, "1", l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisEventLedger) Close() error {
	return l.client.Close()
}

var _ shared.EventLedger = (*RedisEventLedger)(nil)
