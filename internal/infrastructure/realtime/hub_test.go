package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/backend/internal/domain/ordering"
)

func TestHub_EmitReachesRegisteredClients(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	client, err := hub.Register()
	require.NoError(t, err)
	defer hub.Unregister(client)

	orderID := uuid.New()
	hub.Emit(context.Background(), ordering.NotifyOrderStatusChanged, ordering.OrderEventPayload{
		OrderID: orderID,
		Status:  "paid",
	})

	select {
	case msg := <-client.Chan:
		assert.Equal(t, ordering.NotifyOrderStatusChanged, msg.Event)

		var payload ordering.OrderEventPayload
		require.NoError(t, json.Unmarshal([]byte(msg.Data), &payload))
		assert.Equal(t, orderID, payload.OrderID)
		assert.Equal(t, "paid", payload.Status)
	case <-time.After(time.Second):
		t.Fatal("expected message on client channel")
	}
}

func TestHub_EmitDoesNotBlockOnFullClient(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	client, err := hub.Register()
	require.NoError(t, err)
	defer hub.Unregister(client)

	// Fill the buffer without draining it
	for i := 0; i < clientBufferSize+10; i++ {
		hub.Emit(context.Background(), ordering.NotifyOrderUpdated, ordering.OrderEventPayload{})
	}

	assert.Len(t, client.Chan, clientBufferSize)
}

func TestHub_RegisterEnforcesClientLimit(t *testing.T) {
	hub := NewHub(nil, WithMaxClients(1))
	defer hub.Stop()

	first, err := hub.Register()
	require.NoError(t, err)

	_, err = hub.Register()
	assert.Error(t, err)

	hub.Unregister(first)
	_, err = hub.Register()
	assert.NoError(t, err)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Stop()

	client, err := hub.Register()
	require.NoError(t, err)

	hub.Unregister(client)
	hub.Unregister(client)

	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_StopClosesClientDone(t *testing.T) {
	hub := NewHub(nil)

	client, err := hub.Register()
	require.NoError(t, err)

	hub.Stop()
	hub.Stop()

	select {
	case <-client.Done:
	case <-time.After(time.Second):
		t.Fatal("expected Done to be closed on Stop")
	}
}

func TestHub_Heartbeat(t *testing.T) {
	hub := NewHub(nil, WithHeartbeat(10*time.Millisecond))
	hub.Start()
	defer hub.Stop()

	client, err := hub.Register()
	require.NoError(t, err)
	defer hub.Unregister(client)

	select {
	case msg := <-client.Chan:
		assert.Equal(t, "heartbeat", msg.Event)
	case <-time.After(time.Second):
		t.Fatal("expected heartbeat message")
	}
}
