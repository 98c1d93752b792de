// Package realtime broadcasts order lifecycle events to connected SSE
// clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/backend/internal/domain/ordering"
)

// clientBufferSize allows messages to queue without blocking broadcast
const clientBufferSize = 100

// Message is a single SSE frame
type Message struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// Client represents a connected SSE client
type Client struct {
	ID   string
	Chan chan Message
	Done chan struct{}
}

// Hub fans order events out to connected clients. Emit never blocks: a
// client whose buffer is full misses the message and is expected to
// refetch on reconnect.
type Hub struct {
	logger     *zap.Logger
	clients    sync.Map // map[string]*Client
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	maxClients int
	startOnce  sync.Once
	stopOnce   sync.Once
}

// HubOption is a functional option for configuring the hub
type HubOption func(*Hub)

// WithHeartbeat sets the heartbeat interval
func WithHeartbeat(interval time.Duration) HubOption {
	return func(h *Hub) {
		h.heartbeat = interval
	}
}

// WithMaxClients sets the maximum number of concurrent clients
func WithMaxClients(max int) HubOption {
	return func(h *Hub) {
		h.maxClients = max
	}
}

// NewHub creates a realtime hub
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  30 * time.Second,
		maxClients: 10000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins sending heartbeats to keep connections alive
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		go h.sendHeartbeats()
		h.logger.Info("Realtime hub started")
	})
}

// Stop disconnects all clients and stops the hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		h.clients.Range(func(key, value any) bool {
			if client, ok := value.(*Client); ok {
				close(client.Done)
			}
			return true
		})
		h.logger.Info("Realtime hub stopped")
	})
}

// Done returns a channel closed when the hub is stopped
func (h *Hub) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Register adds a client to the hub. Returns an error when the client
// limit is reached.
func (h *Hub) Register() (*Client, error) {
	if h.maxClients > 0 && h.ClientCount() >= h.maxClients {
		return nil, fmt.Errorf("realtime: maximum number of connections reached")
	}

	client := &Client{
		ID:   uuid.New().String(),
		Chan: make(chan Message, clientBufferSize),
		Done: make(chan struct{}),
	}
	h.clients.Store(client.ID, client)

	h.logger.Info("Realtime client connected", zap.String("client_id", client.ID))
	return client, nil
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	// Close the channel first to prevent sends to a removed client
	if _, loaded := h.clients.LoadAndDelete(client.ID); loaded {
		close(client.Chan)
	}
	h.logger.Info("Realtime client disconnected", zap.String("client_id", client.ID))
}

// Emit implements ordering.Notifier
func (h *Hub) Emit(ctx context.Context, eventName string, payload ordering.OrderEventPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal realtime payload", zap.Error(err))
		return
	}

	h.broadcast(Message{
		Event: eventName,
		Data:  string(data),
		ID:    fmt.Sprintf("%d", time.Now().UnixNano()),
	})
}

// broadcast sends a message to all connected clients without blocking
func (h *Hub) broadcast(msg Message) {
	h.clients.Range(func(key, value any) bool {
		client, ok := value.(*Client)
		if !ok {
			return true
		}

		select {
		case client.Chan <- msg:
		default:
			h.logger.Warn("Client channel full, dropping message",
				zap.String("client_id", client.ID),
				zap.String("event", msg.Event))
		}
		return true
	})
}

// sendHeartbeats periodically pings clients to keep connections alive
func (h *Hub) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(Message{
				Event: "heartbeat",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			})
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

var _ ordering.Notifier = (*Hub)(nil)
